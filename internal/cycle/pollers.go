package cycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

// Pollers runs the periodic fetch jobs (settings, orders) on a cron engine.
// A job that is still running when its next slot comes up is skipped.
type Pollers struct {
	log logx.Logger

	mu      sync.Mutex
	ctx     context.Context
	running bool
	c       *cron.Cron
	entries map[string]pollEntry
}

type pollEntry struct {
	id    cron.EntryID
	every time.Duration
	job   cron.Job
}

func NewPollers(log logx.Logger) *Pollers {
	if log.IsZero() {
		log = logx.Nop()
	}
	cl := cronLogger{log: log}
	return &Pollers{
		log:     log,
		ctx:     context.Background(),
		c:       cron.New(cron.WithLogger(cl)),
		entries: map[string]pollEntry{},
	}
}

// Schedule registers job under name to run every interval, replacing any
// previous registration under the same name. The job also runs once right
// away when the pollers are started, or immediately for a new name added
// after Start.
func (p *Pollers) Schedule(name string, every time.Duration, job func(ctx context.Context)) error {
	if every < time.Second || every%time.Second != 0 {
		return fmt.Errorf("poll %s: interval must be a whole number of seconds, got %s", name, every)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	old, replaced := p.entries[name]
	if replaced {
		if old.every == every {
			return nil
		}
		p.c.Remove(old.id)
	}
	wrapped := cron.NewChain(cron.Recover(cronLogger{log: p.log}), cron.SkipIfStillRunning(cronLogger{log: p.log})).
		Then(cron.FuncJob(func() {
			p.mu.Lock()
			ctx := p.ctx
			p.mu.Unlock()
			job(ctx)
		}))
	id := p.c.Schedule(cron.Every(every), wrapped)
	p.entries[name] = pollEntry{id: id, every: every, job: wrapped}
	p.log.Info("poll scheduled", logx.String("name", name), logx.Duration("every", every), logx.Bool("replaced", replaced))

	if p.running && !replaced && p.ctx.Err() == nil {
		go wrapped.Run()
	}
	return nil
}

// Start begins polling; every registered job runs once immediately.
func (p *Pollers) Start(ctx context.Context) {
	p.mu.Lock()
	p.ctx = ctx
	p.running = true
	jobs := make([]cron.Job, 0, len(p.entries))
	for _, e := range p.entries {
		jobs = append(jobs, e.job)
	}
	p.c.Start()
	p.mu.Unlock()
	for _, j := range jobs {
		go j.Run()
	}
}

// Stop halts the cron engine and waits for running jobs.
func (p *Pollers) Stop() {
	<-p.c.Stop().Done()
}

// Every reports the interval name is scheduled at.
func (p *Pollers) Every(name string) (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[name]
	return e.every, ok
}

type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
