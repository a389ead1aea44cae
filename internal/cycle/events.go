package cycle

import (
	"github.com/mishka20003-proger/live-sales-notifications/internal/eventbus"
	"github.com/mishka20003-proger/live-sales-notifications/internal/feed"
	"github.com/mishka20003-proger/live-sales-notifications/internal/settings"
)

// Event types published by the Runner.
const (
	EventShown  = "notification.shown"
	EventHidden = "notification.hidden"
	EventState  = "cycle.state"
)

type Shown struct {
	Event feed.PurchaseEvent
	Flags settings.DisplayFlags
}

type Hidden struct {
	// ID is empty when every notification was cleared at once.
	ID string
}

type StateChanged struct {
	From, To State
}

// publishingSurface forwards to the real surface and reports to the bus.
type publishingSurface struct {
	inner Surface
	bus   eventbus.Bus
}

func (p publishingSurface) Show(ev feed.PurchaseEvent, flags settings.DisplayFlags) {
	p.inner.Show(ev, flags)
	p.bus.Publish(eventbus.Event{Type: EventShown, Data: Shown{Event: ev, Flags: flags}})
}

func (p publishingSurface) Hide(id string) {
	p.inner.Hide(id)
	p.bus.Publish(eventbus.Event{Type: EventHidden, Data: Hidden{ID: id}})
}

func (p publishingSurface) Clear() {
	p.inner.Clear()
	p.bus.Publish(eventbus.Event{Type: EventHidden, Data: Hidden{}})
}

func (p publishingSurface) Classify(pos settings.Position, size settings.Size) {
	p.inner.Classify(pos, size)
}
