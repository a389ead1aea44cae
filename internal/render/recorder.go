package render

import (
	"sync"
	"time"

	"github.com/mishka20003-proger/live-sales-notifications/internal/feed"
	"github.com/mishka20003-proger/live-sales-notifications/internal/settings"
)

// Op is one call recorded by a Recorder.
type Op struct {
	Kind         string // show | hide | clear | classify
	Notification Notification
	ID           string
	Position     settings.Position
	Size         settings.Size
}

// Recorder is an in-memory surface for dry runs and tests.
type Recorder struct {
	mu      sync.Mutex
	now     func() time.Time
	ops     []Op
	limit   int
	visible string
}

func NewRecorder(now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{now: now}
}

// SetLimit keeps only the newest n ops. 0 means unbounded.
func (r *Recorder) SetLimit(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limit = max(n, 0)
	r.trim()
}

func (r *Recorder) record(op Op) {
	r.ops = append(r.ops, op)
	r.trim()
}

func (r *Recorder) trim() {
	if r.limit > 0 && len(r.ops) > r.limit {
		r.ops = append(r.ops[:0], r.ops[len(r.ops)-r.limit:]...)
	}
}

func (r *Recorder) Show(ev feed.PurchaseEvent, flags settings.DisplayFlags) {
	n := Build(ev, flags, r.now())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visible = n.ID
	r.record(Op{Kind: "show", Notification: n, ID: n.ID})
}

func (r *Recorder) Hide(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == r.visible {
		r.visible = ""
	}
	r.record(Op{Kind: "hide", ID: id})
}

func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visible = ""
	r.record(Op{Kind: "clear"})
}

func (r *Recorder) Classify(pos settings.Position, size settings.Size) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.record(Op{Kind: "classify", Position: pos, Size: size})
}

func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Op, len(r.ops))
	copy(out, r.ops)
	return out
}

// Visible returns the id currently shown, or "".
func (r *Recorder) Visible() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible
}
