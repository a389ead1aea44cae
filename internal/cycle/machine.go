package cycle

import (
	"time"

	"github.com/mishka20003-proger/live-sales-notifications/internal/feed"
	"github.com/mishka20003-proger/live-sales-notifications/internal/settings"
	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

type State int

const (
	// Idle: no configuration has arrived yet.
	Idle State = iota
	InitialDelay
	Cycling
	// Suspended: disabled, or hidden on a narrow viewport.
	Suspended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case InitialDelay:
		return "initial_delay"
	case Cycling:
		return "cycling"
	case Suspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Phase is the sub-phase of Cycling.
type Phase int

const (
	Waiting Phase = iota
	Showing
)

func (p Phase) String() string {
	if p == Showing {
		return "showing"
	}
	return "waiting"
}

type TimerKind int

const (
	TimerInitialDelay TimerKind = iota
	TimerCycle
	TimerDismiss
)

func (k TimerKind) String() string {
	switch k {
	case TimerInitialDelay:
		return "initial_delay"
	case TimerCycle:
		return "cycle"
	case TimerDismiss:
		return "dismiss"
	default:
		return "unknown"
	}
}

// Timer is a one-shot request. ID carries the notification a dismiss timer
// belongs to.
type Timer struct {
	Kind  TimerKind
	After time.Duration
	ID    string
}

// Timers arms and cancels the machine's one-shot timers. Arming a kind that is
// already armed replaces it.
type Timers interface {
	Arm(t Timer)
	Cancel(kind TimerKind)
}

// Surface is what puts notifications on screen.
type Surface interface {
	Show(ev feed.PurchaseEvent, flags settings.DisplayFlags)
	Hide(id string)
	Clear()
	Classify(pos settings.Position, size settings.Size)
}

// Machine is the notification scheduler state. Each exported method is one
// event; none of them block or spawn goroutines. Not safe for concurrent use:
// the Runner serializes calls.
type Machine struct {
	timers  Timers
	surface Surface
	log     logx.Logger

	state  State
	phase  Phase
	cfg    settings.Settings
	loaded bool
	narrow bool

	set     *feed.WorkingSet
	visible string
}

func NewMachine(timers Timers, surface Surface, log logx.Logger) *Machine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Machine{
		timers:  timers,
		surface: surface,
		log:     log,
		set:     feed.NewWorkingSet(),
	}
}

func (m *Machine) State() State { return m.state }
func (m *Machine) Phase() Phase { return m.phase }

// Visible returns the id on screen, or "" when nothing is shown.
func (m *Machine) Visible() string { return m.visible }

func (m *Machine) Config() (settings.Settings, bool) { return m.cfg, m.loaded }

func (m *Machine) Narrow() bool { return m.narrow }

func (m *Machine) WorkingSet() []feed.PurchaseEvent { return m.set.Events() }

func (m *Machine) GuardSize() int { return m.set.GuardSize() }

func (m *Machine) capacity() int {
	if m.loaded {
		return int(m.cfg.MaxDisplayed)
	}
	return int(settings.Default().MaxDisplayed)
}

// SettingsArrived applies a configuration from the synchronizer. The change
// set is recomputed against the machine's own copy so updates are safe to
// apply in any order relative to order batches.
func (m *Machine) SettingsArrived(u settings.Update) {
	next := u.Settings
	if !m.loaded {
		m.cfg, m.loaded = next, true
		m.surface.Classify(next.Position, next.Size)
		m.set.Truncate(m.capacity())
		if next.Visible(m.narrow) {
			m.enterInitialDelay()
		} else {
			m.suspend("hidden at load")
		}
		return
	}

	prev := m.cfg
	ch := settings.Compare(prev, next)
	if ch.None() {
		return
	}
	m.cfg = next

	if ch.Has(settings.AppearanceChanged) {
		m.surface.Classify(next.Position, next.Size)
	}
	if ch.Has(settings.DataSourceChanged) {
		m.set.Reset()
		m.log.Info("data source changed; working set discarded", logx.String("data_source", string(next.DataSource)))
	} else if ch.Has(settings.CapacityChanged) {
		m.set.Truncate(m.capacity())
	}

	was, now := prev.Visible(m.narrow), next.Visible(m.narrow)
	switch {
	case was && !now:
		m.suspend(suspendReason(next, m.narrow))
	case !was && now:
		m.enterInitialDelay()
	case now && m.state == Cycling && ch.Has(settings.DataSourceChanged|settings.IntervalChanged):
		m.restartCycle()
	}
}

// OrdersArrived proposes a batch from the order feed poller.
func (m *Machine) OrdersArrived(events []feed.PurchaseEvent) {
	n := m.set.Merge(events, m.capacity())
	if n > 0 {
		m.log.Debug("orders merged", logx.Int("accepted", n), logx.Int("working_set", m.set.Len()))
	}
}

// DelayElapsed ends the initial delay.
func (m *Machine) DelayElapsed() {
	if m.state != InitialDelay {
		return
	}
	m.state = Cycling
	m.phase = Waiting
	m.timers.Arm(Timer{Kind: TimerCycle, After: m.cfg.EffectiveInterval()})
	m.showNext()
}

// TickFired is one period of the cycle timer.
func (m *Machine) TickFired() {
	if m.state != Cycling {
		return
	}
	m.timers.Arm(Timer{Kind: TimerCycle, After: m.cfg.EffectiveInterval()})
	m.showNext()
}

// DismissElapsed hides id once its display duration is over.
func (m *Machine) DismissElapsed(id string) {
	if m.phase != Showing || id == "" || id != m.visible {
		return
	}
	m.hide(id)
}

// UserClosed hides id ahead of its display duration.
func (m *Machine) UserClosed(id string) {
	if m.phase != Showing || id == "" || id != m.visible {
		return
	}
	m.timers.Cancel(TimerDismiss)
	m.hide(id)
}

// ViewportChanged re-evaluates the hideOnMobile rule.
func (m *Machine) ViewportChanged(narrow bool) {
	if narrow == m.narrow {
		return
	}
	was := m.loaded && m.cfg.Visible(m.narrow)
	m.narrow = narrow
	if !m.loaded {
		return
	}
	now := m.cfg.Visible(narrow)
	switch {
	case was && !now:
		m.suspend(suspendReason(m.cfg, narrow))
	case !was && now:
		m.enterInitialDelay()
	}
}

func (m *Machine) showNext() {
	if m.phase == Showing {
		m.log.Debug("tick skipped; notification still visible", logx.String("id", m.visible))
		return
	}
	ev, ok := m.set.Next()
	if !ok {
		return
	}
	m.set.MarkShown(ev.ID)
	m.surface.Show(ev, m.cfg.Flags())
	m.visible = ev.ID
	m.phase = Showing
	m.timers.Arm(Timer{Kind: TimerDismiss, After: m.cfg.DisplayDuration(), ID: ev.ID})
}

func (m *Machine) hide(id string) {
	m.surface.Hide(id)
	m.visible = ""
	m.phase = Waiting
}

func (m *Machine) enterInitialDelay() {
	m.timers.Cancel(TimerCycle)
	m.state = InitialDelay
	m.timers.Arm(Timer{Kind: TimerInitialDelay, After: m.cfg.InitialDelay()})
}

// restartCycle re-arms the cycle timer without touching what is visible.
func (m *Machine) restartCycle() {
	m.timers.Cancel(TimerCycle)
	m.timers.Arm(Timer{Kind: TimerCycle, After: m.cfg.EffectiveInterval()})
	m.log.Debug("cycle timer restarted", logx.Duration("interval", m.cfg.EffectiveInterval()))
}

func (m *Machine) suspend(reason string) {
	m.timers.Cancel(TimerInitialDelay)
	m.timers.Cancel(TimerCycle)
	m.timers.Cancel(TimerDismiss)
	m.surface.Clear()
	m.visible = ""
	m.phase = Waiting
	m.state = Suspended
	m.log.Info("cycle suspended", logx.String("reason", reason))
}

func suspendReason(s settings.Settings, narrow bool) string {
	if !s.Enabled {
		return "disabled"
	}
	if s.HideOnMobile && narrow {
		return "hidden on mobile"
	}
	return "hidden"
}
