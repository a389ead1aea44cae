package cycle

import (
	"context"
	"sync"
	"time"

	"github.com/mishka20003-proger/live-sales-notifications/internal/eventbus"
	"github.com/mishka20003-proger/live-sales-notifications/internal/feed"
	"github.com/mishka20003-proger/live-sales-notifications/internal/settings"
	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

const inboxSize = 64

// Snapshot is a point-in-time copy of the machine.
type Snapshot struct {
	State      State
	Phase      Phase
	Visible    string
	Narrow     bool
	Loaded     bool
	Settings   settings.Settings
	WorkingSet []feed.PurchaseEvent
	GuardSize  int
}

// Runner is the single execution context around a Machine. Every event, timer
// firings included, goes through one inbox consumed by Run.
type Runner struct {
	m     *Machine
	bus   eventbus.Bus
	log   logx.Logger
	inbox chan func()
	done  chan struct{}

	// Owned by the Run goroutine.
	armed map[TimerKind]*armedTimer
	gen   uint64

	stopOnce sync.Once
}

type armedTimer struct {
	t   *time.Timer
	gen uint64
}

func NewRunner(surface Surface, bus eventbus.Bus, log logx.Logger) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.New()
	}
	r := &Runner{
		bus:   bus,
		log:   log,
		inbox: make(chan func(), inboxSize),
		done:  make(chan struct{}),
		armed: map[TimerKind]*armedTimer{},
	}
	r.m = NewMachine(runnerTimers{r}, publishingSurface{inner: surface, bus: bus}, log)
	return r
}

// Run consumes the inbox until ctx is done. Pending timers are stopped on exit.
func (r *Runner) Run(ctx context.Context) error {
	defer r.stop()
	r.log.Debug("cycle runner started")
	for {
		select {
		case <-ctx.Done():
			r.log.Debug("cycle runner stopped")
			return nil
		case fn := <-r.inbox:
			before := r.m.State()
			fn()
			if after := r.m.State(); after != before {
				r.log.Info("cycle state", logx.String("from", before.String()), logx.String("to", after.String()))
				r.bus.Publish(eventbus.Event{Type: EventState, Data: StateChanged{From: before, To: after}})
			}
		}
	}
}

func (r *Runner) stop() {
	r.stopOnce.Do(func() {
		close(r.done)
		for k, a := range r.armed {
			a.t.Stop()
			delete(r.armed, k)
		}
	})
}

// post enqueues fn; it is dropped once the runner has stopped.
func (r *Runner) post(fn func()) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.inbox <- fn:
		return true
	case <-r.done:
		return false
	}
}

func (r *Runner) Settings(u settings.Update) {
	r.post(func() { r.m.SettingsArrived(u) })
}

func (r *Runner) Orders(events []feed.PurchaseEvent) {
	r.post(func() { r.m.OrdersArrived(events) })
}

// Close is the user dismissing notification id.
func (r *Runner) Close(id string) {
	r.post(func() { r.m.UserClosed(id) })
}

func (r *Runner) Viewport(narrow bool) {
	r.post(func() { r.m.ViewportChanged(narrow) })
}

// Snapshot waits for the runner to copy its state.
func (r *Runner) Snapshot(ctx context.Context) (Snapshot, error) {
	out := make(chan Snapshot, 1)
	ok := r.post(func() {
		cfg, loaded := r.m.Config()
		out <- Snapshot{
			State:      r.m.State(),
			Phase:      r.m.Phase(),
			Visible:    r.m.Visible(),
			Narrow:     r.m.Narrow(),
			Loaded:     loaded,
			Settings:   cfg,
			WorkingSet: r.m.WorkingSet(),
			GuardSize:  r.m.GuardSize(),
		}
	})
	if !ok {
		return Snapshot{}, context.Canceled
	}
	select {
	case s := <-out:
		return s, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case <-r.done:
		return Snapshot{}, context.Canceled
	}
}

// runnerTimers implements Timers with time.AfterFunc. Each arm bumps a
// generation so a firing that raced with Cancel or a re-arm is dropped.
type runnerTimers struct{ r *Runner }

func (t runnerTimers) Arm(tm Timer) {
	r := t.r
	t.Cancel(tm.Kind)
	r.gen++
	gen := r.gen
	a := &armedTimer{gen: gen}
	a.t = time.AfterFunc(tm.After, func() {
		r.post(func() { r.fire(tm, gen) })
	})
	r.armed[tm.Kind] = a
}

func (t runnerTimers) Cancel(kind TimerKind) {
	if a, ok := t.r.armed[kind]; ok {
		a.t.Stop()
		delete(t.r.armed, kind)
	}
}

func (r *Runner) fire(tm Timer, gen uint64) {
	a, ok := r.armed[tm.Kind]
	if !ok || a.gen != gen {
		return
	}
	delete(r.armed, tm.Kind)
	switch tm.Kind {
	case TimerInitialDelay:
		r.m.DelayElapsed()
	case TimerCycle:
		r.m.TickFired()
	case TimerDismiss:
		r.m.DismissElapsed(tm.ID)
	}
}
