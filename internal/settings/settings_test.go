package settings

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(s *Settings)
	}{
		{name: "zero duration", mutate: func(s *Settings) { s.DisplayDurationMs = 0 }},
		{name: "zero interval", mutate: func(s *Settings) { s.DisplayIntervalMs = 0 }},
		{name: "zero fake interval", mutate: func(s *Settings) { s.FakeIntervalMs = 0 }},
		{name: "zero initial delay", mutate: func(s *Settings) { s.InitialDelayMs = 0 }},
		{name: "zero max", mutate: func(s *Settings) { s.MaxDisplayed = 0 }},
		{name: "huge duration", mutate: func(s *Settings) { s.DisplayDurationMs = math.MaxUint }},
		{name: "huge interval", mutate: func(s *Settings) { s.DisplayIntervalMs = math.MaxUint }},
		{name: "huge fake interval", mutate: func(s *Settings) { s.FakeIntervalMs = MaxDurationMs + 1 }},
		{name: "huge initial delay", mutate: func(s *Settings) { s.InitialDelayMs = math.MaxUint }},
		{name: "bad position", mutate: func(s *Settings) { s.Position = "middle" }},
		{name: "bad size", mutate: func(s *Settings) { s.Size = "huge" }},
		{name: "bad source", mutate: func(s *Settings) { s.DataSource = "mixed" }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := Default()
			tt.mutate(&s)
			err := s.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestValidateAcceptsMaxDuration(t *testing.T) {
	t.Parallel()
	s := Default()
	s.DisplayIntervalMs = MaxDurationMs
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil at the cap", err)
	}
	if got := s.EffectiveInterval(); got != 24*time.Hour {
		t.Fatalf("EffectiveInterval = %v, want 24h", got)
	}
}

func TestEffectiveInterval(t *testing.T) {
	t.Parallel()
	s := Default()
	s.DisplayIntervalMs = 7000
	s.FakeIntervalMs = 3000
	if got := s.EffectiveInterval(); got != 7*time.Second {
		t.Fatalf("real EffectiveInterval = %v, want 7s", got)
	}
	s.DataSource = SourceFake
	if got := s.EffectiveInterval(); got != 3*time.Second {
		t.Fatalf("fake EffectiveInterval = %v, want 3s", got)
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(s *Settings)
		want   Change
	}{
		{name: "identical", mutate: func(s *Settings) {}, want: 0},
		{name: "disable", mutate: func(s *Settings) { s.Enabled = false }, want: Disabled},
		{name: "source", mutate: func(s *Settings) { s.DataSource = SourceFake }, want: DataSourceChanged},
		{name: "active interval", mutate: func(s *Settings) { s.DisplayIntervalMs = 20000 }, want: IntervalChanged},
		{name: "inactive interval", mutate: func(s *Settings) { s.FakeIntervalMs = 20000 }, want: OtherChanged},
		{name: "position", mutate: func(s *Settings) { s.Position = TopCenter }, want: AppearanceChanged},
		{name: "size", mutate: func(s *Settings) { s.Size = Large }, want: AppearanceChanged},
		{name: "capacity", mutate: func(s *Settings) { s.MaxDisplayed = 3 }, want: CapacityChanged},
		{name: "mobile", mutate: func(s *Settings) { s.HideOnMobile = true }, want: MobileRuleChanged},
		{name: "flags", mutate: func(s *Settings) { s.ShowTotalPrice = false }, want: OtherChanged},
		{
			name: "source with differing intervals",
			mutate: func(s *Settings) {
				s.DataSource = SourceFake
				s.FakeIntervalMs = 4000
			},
			want: DataSourceChanged | IntervalChanged,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			prev := Default()
			next := prev
			tt.mutate(&next)
			if got := Compare(prev, next); got != tt.want {
				t.Fatalf("Compare = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCompareReEnable(t *testing.T) {
	t.Parallel()
	prev := Default()
	prev.Enabled = false
	next := Default()
	got := Compare(prev, next)
	if !got.Has(Enabled) || got.Has(Disabled) {
		t.Fatalf("Compare = %s, want enabled", got)
	}
}

type stubFetcher struct {
	next func(base Settings) (Settings, error)
	seen []Settings
}

func (f *stubFetcher) FetchSettings(_ context.Context, base Settings) (Settings, error) {
	f.seen = append(f.seen, base)
	return f.next(base)
}

func TestSynchronizerLifecycle(t *testing.T) {
	t.Parallel()
	var got []Update
	f := &stubFetcher{}
	s := NewSynchronizer(f, func(u Update) { got = append(got, u) }, logx.Nop())

	// first load
	f.next = func(base Settings) (Settings, error) { return base, nil }
	s.Poll(context.Background())
	if len(got) != 1 || !got[0].First {
		t.Fatalf("updates = %+v, want one first update", got)
	}

	// unchanged -> nothing
	s.Poll(context.Background())
	if len(got) != 1 {
		t.Fatalf("unchanged poll emitted %d updates", len(got)-1)
	}

	// transient failure keeps last known and never reads as disabled
	f.next = func(Settings) (Settings, error) { return Settings{}, errors.New("boom") }
	s.Poll(context.Background())
	last, ok := s.Last()
	if !ok || !last.Enabled {
		t.Fatalf("Last() = %+v (ok=%v), want enabled config retained", last, ok)
	}

	// invalid config rejected
	f.next = func(base Settings) (Settings, error) {
		base.MaxDisplayed = 0
		return base, nil
	}
	s.Poll(context.Background())
	if len(got) != 1 {
		t.Fatalf("invalid config emitted an update")
	}

	// an interval too large for time.Duration is rejected, last known kept
	f.next = func(base Settings) (Settings, error) {
		base.DisplayIntervalMs = math.MaxUint
		return base, nil
	}
	s.Poll(context.Background())
	if len(got) != 1 {
		t.Fatalf("overflowing interval emitted an update")
	}
	if last, _ := s.Last(); last.EffectiveInterval() != 10*time.Second {
		t.Fatalf("EffectiveInterval = %v, want last known 10s", last.EffectiveInterval())
	}

	// real change
	f.next = func(base Settings) (Settings, error) {
		base.Enabled = false
		return base, nil
	}
	s.Poll(context.Background())
	if len(got) != 2 || !got[1].Change.Has(Disabled) {
		t.Fatalf("updates = %+v, want disabled change", got)
	}

	// the fetcher receives the last applied config as decode base
	if base := f.seen[len(f.seen)-1]; !base.Enabled {
		t.Fatalf("base before disable = %+v, want enabled", base)
	}
}
