package settings

import (
	"context"
	"sync"

	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

// Fetcher reads the settings resource. base is the last known configuration;
// fields missing from the response keep their base value.
type Fetcher interface {
	FetchSettings(ctx context.Context, base Settings) (Settings, error)
}

// Update is emitted after a fetch produced an applicable change.
type Update struct {
	Settings Settings
	Change   Change
	// First is set for the first configuration ever applied.
	First bool
}

// Synchronizer polls the settings resource and emits diffs against the last
// applied configuration. Failed or invalid fetches never replace it.
type Synchronizer struct {
	fetch Fetcher
	sink  func(Update)
	log   logx.Logger

	mu       sync.Mutex
	last     Settings
	loaded   bool
	failures int
}

func NewSynchronizer(fetch Fetcher, sink func(Update), log logx.Logger) *Synchronizer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Synchronizer{fetch: fetch, sink: sink, log: log}
}

// Last returns the last applied configuration and whether one exists.
func (s *Synchronizer) Last() (Settings, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.loaded
}

// Poll performs one fetch/validate/diff round.
func (s *Synchronizer) Poll(ctx context.Context) {
	s.mu.Lock()
	base, loaded := s.last, s.loaded
	s.mu.Unlock()
	if !loaded {
		base = Default()
	}

	next, err := s.fetch.FetchSettings(ctx, base)
	if err != nil {
		s.mu.Lock()
		s.failures++
		n := s.failures
		s.mu.Unlock()
		s.log.Warn("settings fetch failed; keeping last known", logx.Err(err), logx.Int("consecutive", n), logx.Bool("loaded", loaded))
		return
	}
	if err := next.Validate(); err != nil {
		s.log.Warn("settings rejected; keeping last known", logx.Err(err))
		return
	}

	s.mu.Lock()
	s.failures = 0
	var up Update
	if !s.loaded {
		up = Update{Settings: next, First: true}
	} else {
		ch := Compare(s.last, next)
		if ch.None() {
			s.mu.Unlock()
			s.log.Debug("settings unchanged")
			return
		}
		up = Update{Settings: next, Change: ch}
	}
	s.last = next
	s.loaded = true
	s.mu.Unlock()

	if up.First {
		s.log.Info("settings loaded", Fields(next)...)
	} else {
		s.log.Info("settings changed", append([]logx.Field{logx.String("changed", up.Change.String())}, Fields(next)...)...)
	}
	if s.sink != nil {
		s.sink(up)
	}
}
