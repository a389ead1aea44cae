package cycle

import (
	"reflect"
	"testing"
	"time"

	"github.com/mishka20003-proger/live-sales-notifications/internal/feed"
	"github.com/mishka20003-proger/live-sales-notifications/internal/settings"
	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

type fakeTimers struct {
	armed map[TimerKind]Timer
	arms  []Timer
}

func newFakeTimers() *fakeTimers { return &fakeTimers{armed: map[TimerKind]Timer{}} }

func (f *fakeTimers) Arm(t Timer) {
	f.armed[t.Kind] = t
	f.arms = append(f.arms, t)
}

func (f *fakeTimers) Cancel(kind TimerKind) { delete(f.armed, kind) }

func (f *fakeTimers) isArmed(kind TimerKind) bool {
	_, ok := f.armed[kind]
	return ok
}

type fakeSurface struct {
	shown      []string
	hidden     []string
	clears     int
	classified []settings.Position
}

func (f *fakeSurface) Show(ev feed.PurchaseEvent, _ settings.DisplayFlags) {
	f.shown = append(f.shown, ev.ID)
}
func (f *fakeSurface) Hide(id string) { f.hidden = append(f.hidden, id) }
func (f *fakeSurface) Clear()         { f.clears++ }
func (f *fakeSurface) Classify(pos settings.Position, _ settings.Size) {
	f.classified = append(f.classified, pos)
}

func events(ids ...string) []feed.PurchaseEvent {
	out := make([]feed.PurchaseEvent, len(ids))
	for i, id := range ids {
		out[i] = feed.PurchaseEvent{ID: id}
	}
	return out
}

func newTestMachine() (*Machine, *fakeTimers, *fakeSurface) {
	ft, fs := newFakeTimers(), &fakeSurface{}
	return NewMachine(ft, fs, logx.Nop()), ft, fs
}

// cycling drives a fresh machine with cfg to the Cycling state.
func cycling(t *testing.T, cfg settings.Settings, orders ...string) (*Machine, *fakeTimers, *fakeSurface) {
	t.Helper()
	m, ft, fs := newTestMachine()
	if len(orders) > 0 {
		m.OrdersArrived(events(orders...))
	}
	m.SettingsArrived(settings.Update{Settings: cfg, First: true})
	if m.State() != InitialDelay {
		t.Fatalf("State = %s, want initial_delay", m.State())
	}
	m.DelayElapsed()
	if m.State() != Cycling {
		t.Fatalf("State = %s, want cycling", m.State())
	}
	return m, ft, fs
}

func TestFirstSettingsStartInitialDelay(t *testing.T) {
	t.Parallel()
	m, ft, fs := newTestMachine()
	if m.State() != Idle {
		t.Fatalf("State = %s, want idle", m.State())
	}
	cfg := settings.Default()
	cfg.InitialDelayMs = 2500
	m.SettingsArrived(settings.Update{Settings: cfg, First: true})

	if m.State() != InitialDelay {
		t.Fatalf("State = %s, want initial_delay", m.State())
	}
	if got := ft.armed[TimerInitialDelay].After; got != 2500*time.Millisecond {
		t.Fatalf("initial delay armed for %v, want 2.5s", got)
	}
	if len(fs.classified) != 1 || fs.classified[0] != settings.BottomLeft {
		t.Fatalf("classified = %v, want [bottom-left]", fs.classified)
	}
}

func TestDisabledAtLoadSuspends(t *testing.T) {
	t.Parallel()
	m, ft, _ := newTestMachine()
	cfg := settings.Default()
	cfg.Enabled = false
	m.SettingsArrived(settings.Update{Settings: cfg, First: true})
	if m.State() != Suspended {
		t.Fatalf("State = %s, want suspended", m.State())
	}
	if len(ft.armed) != 0 {
		t.Fatalf("armed timers = %v, want none", ft.armed)
	}
}

func TestEnteringCyclingShowsAndArmsCycle(t *testing.T) {
	t.Parallel()
	cfg := settings.Default()
	m, ft, fs := cycling(t, cfg, "b", "a")

	if !reflect.DeepEqual(fs.shown, []string{"b"}) {
		t.Fatalf("shown = %v, want [b]", fs.shown)
	}
	if m.Phase() != Showing || m.Visible() != "b" {
		t.Fatalf("phase=%s visible=%q, want showing b", m.Phase(), m.Visible())
	}
	if got := ft.armed[TimerCycle].After; got != cfg.EffectiveInterval() {
		t.Fatalf("cycle armed for %v, want %v", got, cfg.EffectiveInterval())
	}
	if d := ft.armed[TimerDismiss]; d.ID != "b" || d.After != cfg.DisplayDuration() {
		t.Fatalf("dismiss timer = %+v", d)
	}
}

func TestTickRoundRobinAndDismiss(t *testing.T) {
	t.Parallel()
	m, _, fs := cycling(t, settings.Default(), "c", "b", "a")

	for i := 0; i < 4; i++ {
		m.DismissElapsed(m.Visible())
		m.TickFired()
	}
	want := []string{"c", "b", "a", "c", "b"}
	if !reflect.DeepEqual(fs.shown, want) {
		t.Fatalf("shown = %v, want %v", fs.shown, want)
	}
	if !reflect.DeepEqual(fs.hidden, want[:4]) {
		t.Fatalf("hidden = %v, want %v", fs.hidden, want[:4])
	}
}

func TestTickSkippedWhileShowing(t *testing.T) {
	t.Parallel()
	m, ft, fs := cycling(t, settings.Default(), "b", "a")
	arms := len(ft.arms)
	m.TickFired()
	if !reflect.DeepEqual(fs.shown, []string{"b"}) {
		t.Fatalf("shown = %v, want [b] only", fs.shown)
	}
	if !ft.isArmed(TimerCycle) || len(ft.arms) != arms+1 {
		t.Fatalf("cycle timer not re-armed on skipped tick")
	}
}

func TestEmptyTickIsNoop(t *testing.T) {
	t.Parallel()
	m, ft, fs := cycling(t, settings.Default())
	m.TickFired()
	m.TickFired()
	if len(fs.shown) != 0 || m.Phase() != Waiting {
		t.Fatalf("shown = %v phase = %s, want nothing", fs.shown, m.Phase())
	}
	if !ft.isArmed(TimerCycle) {
		t.Fatal("cycle timer not armed after empty tick")
	}
	m.OrdersArrived(events("x"))
	m.TickFired()
	if !reflect.DeepEqual(fs.shown, []string{"x"}) {
		t.Fatalf("shown = %v, want [x]", fs.shown)
	}
}

func TestUserCloseHidesEarly(t *testing.T) {
	t.Parallel()
	m, ft, fs := cycling(t, settings.Default(), "a")
	m.UserClosed("other")
	if m.Phase() != Showing {
		t.Fatal("closing an id that is not visible changed the phase")
	}
	m.UserClosed("a")
	if m.Phase() != Waiting || ft.isArmed(TimerDismiss) {
		t.Fatalf("phase=%s dismissArmed=%v after close", m.Phase(), ft.isArmed(TimerDismiss))
	}
	// The late dismiss for the closed notification is ignored.
	m.DismissElapsed("a")
	if !reflect.DeepEqual(fs.hidden, []string{"a"}) {
		t.Fatalf("hidden = %v, want [a]", fs.hidden)
	}
}

func TestDisableClearsAndStops(t *testing.T) {
	t.Parallel()
	cfg := settings.Default()
	m, ft, fs := cycling(t, cfg, "a")

	off := cfg
	off.Enabled = false
	m.SettingsArrived(settings.Update{Settings: off, Change: settings.Disabled})

	if m.State() != Suspended || m.Visible() != "" || fs.clears != 1 {
		t.Fatalf("state=%s visible=%q clears=%d", m.State(), m.Visible(), fs.clears)
	}
	if len(ft.armed) != 0 {
		t.Fatalf("armed timers after disable = %v", ft.armed)
	}
	m.TickFired()
	m.DelayElapsed()
	m.OrdersArrived(events("b"))
	m.TickFired()
	if len(fs.shown) != 1 {
		t.Fatalf("shown = %v, want no shows while suspended", fs.shown)
	}

	m.SettingsArrived(settings.Update{Settings: cfg, Change: settings.Enabled})
	if m.State() != InitialDelay || !ft.isArmed(TimerInitialDelay) {
		t.Fatalf("state=%s after re-enable, want initial_delay", m.State())
	}
}

func TestDataSourceChangeResetsWorkingSet(t *testing.T) {
	t.Parallel()
	cfg := settings.Default()
	m, ft, fs := cycling(t, cfg, "real-1")
	m.DismissElapsed("real-1")
	arms := len(ft.arms)

	fake := cfg
	fake.DataSource = settings.SourceFake
	m.SettingsArrived(settings.Update{Settings: fake, Change: settings.DataSourceChanged})

	if len(m.WorkingSet()) != 0 || m.GuardSize() != 0 {
		t.Fatalf("working set %v guard %d after source change", m.WorkingSet(), m.GuardSize())
	}
	if len(ft.arms) != arms+1 || ft.armed[TimerCycle].After != fake.EffectiveInterval() {
		t.Fatalf("cycle timer not restarted: %+v", ft.armed)
	}
	m.TickFired()
	if len(fs.shown) != 1 {
		t.Fatalf("stale real order reappeared: shown = %v", fs.shown)
	}
}

func TestIntervalRestartKeepsVisible(t *testing.T) {
	t.Parallel()
	cfg := settings.Default()
	m, ft, fs := cycling(t, cfg, "a")

	next := cfg
	next.DisplayIntervalMs = 20000
	m.SettingsArrived(settings.Update{Settings: next, Change: settings.IntervalChanged})

	if m.Visible() != "a" || len(fs.hidden) != 0 || fs.clears != 0 {
		t.Fatalf("restart touched the visible notification: visible=%q hidden=%v", m.Visible(), fs.hidden)
	}
	if got := ft.armed[TimerCycle].After; got != 20*time.Second {
		t.Fatalf("cycle armed for %v, want 20s", got)
	}
	if !ft.isArmed(TimerDismiss) {
		t.Fatal("dismiss timer lost on restart")
	}
}

func TestAppearanceAndCapacity(t *testing.T) {
	t.Parallel()
	cfg := settings.Default()
	m, _, fs := cycling(t, cfg, "c", "b", "a")

	next := cfg
	next.Position = settings.TopCenter
	next.MaxDisplayed = 1
	m.SettingsArrived(settings.Update{Settings: next})

	if last := fs.classified[len(fs.classified)-1]; last != settings.TopCenter {
		t.Fatalf("classified = %v, want top-center last", fs.classified)
	}
	if len(m.WorkingSet()) != 1 {
		t.Fatalf("working set len = %d, want 1", len(m.WorkingSet()))
	}
}

func TestNewestWinsUnderCap(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestMachine()
	cfg := settings.Default()
	cfg.MaxDisplayed = 1
	m.SettingsArrived(settings.Update{Settings: cfg, First: true})
	m.OrdersArrived(events("a"))
	m.OrdersArrived(events("a", "b"))
	if got := m.WorkingSet(); len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("working set = %v, want [b]", got)
	}
}

func TestHideOnMobile(t *testing.T) {
	t.Parallel()
	cfg := settings.Default()
	cfg.HideOnMobile = true

	m, ft, fs := newTestMachine()
	m.ViewportChanged(true)
	m.SettingsArrived(settings.Update{Settings: cfg, First: true})
	if m.State() != Suspended {
		t.Fatalf("State = %s on narrow viewport, want suspended", m.State())
	}

	m.ViewportChanged(false)
	if m.State() != InitialDelay {
		t.Fatalf("State = %s after widening, want initial_delay", m.State())
	}
	m.OrdersArrived(events("a"))
	m.DelayElapsed()
	if m.Visible() != "a" {
		t.Fatalf("Visible = %q, want a", m.Visible())
	}

	m.ViewportChanged(true)
	// One clear when suspended at load, one now.
	if m.State() != Suspended || fs.clears != 2 || len(ft.armed) != 0 {
		t.Fatalf("state=%s clears=%d armed=%v after narrowing", m.State(), fs.clears, ft.armed)
	}

	// Turning the rule off while narrow resumes.
	off := cfg
	off.HideOnMobile = false
	m.SettingsArrived(settings.Update{Settings: off, Change: settings.MobileRuleChanged})
	if m.State() != InitialDelay {
		t.Fatalf("State = %s after rule off, want initial_delay", m.State())
	}
}

func TestOrdersBeforeSettingsUseDefaultCap(t *testing.T) {
	t.Parallel()
	m, _, _ := newTestMachine()
	ids := make([]string, 15)
	for i := range ids {
		ids[i] = string(rune('a' + i))
	}
	m.OrdersArrived(events(ids...))
	if n := len(m.WorkingSet()); n != int(settings.Default().MaxDisplayed) {
		t.Fatalf("working set len = %d, want default cap", n)
	}
	cfg := settings.Default()
	cfg.MaxDisplayed = 2
	m.SettingsArrived(settings.Update{Settings: cfg, First: true})
	if n := len(m.WorkingSet()); n != 2 {
		t.Fatalf("working set len = %d after first settings, want 2", n)
	}
}
