package feed

import (
	"context"

	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

// Fetcher reads the order feed resource.
type Fetcher interface {
	FetchOrders(ctx context.Context) ([]PurchaseEvent, error)
}

// Poller periodically proposes fresh order batches to the scheduler. It keeps
// no display state of its own; dedup happens where the working set lives.
type Poller struct {
	fetch Fetcher
	sink  func([]PurchaseEvent)
	log   logx.Logger
}

func NewPoller(fetch Fetcher, sink func([]PurchaseEvent), log logx.Logger) *Poller {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{fetch: fetch, sink: sink, log: log}
}

// Poll performs one best-effort fetch. Failures leave everything untouched.
func (p *Poller) Poll(ctx context.Context) {
	events, err := p.fetch.FetchOrders(ctx)
	if err != nil {
		p.log.Warn("order feed fetch failed", logx.Err(err))
		return
	}
	if len(events) == 0 {
		p.log.Debug("order feed empty")
		return
	}
	p.log.Debug("order feed fetched", logx.Int("count", len(events)))
	if p.sink != nil {
		p.sink(events)
	}
}
