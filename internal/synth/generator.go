package synth

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mishka20003-proger/live-sales-notifications/internal/feed"
)

// Mode selects how fake order totals are priced.
type Mode string

const (
	ModeRandom       Mode = "random"
	ModeRealProducts Mode = "real_products"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeRandom:
		return ModeRandom, nil
	case ModeRealProducts:
		return m, nil
	default:
		return "", fmt.Errorf("synth: unknown price mode %q", s)
	}
}

// Options are the per-shop pricing knobs.
type Options struct {
	Mode          Mode
	Min, Max      decimal.Decimal
	ProductPrices []decimal.Decimal
}

// Generator fabricates demo purchase events. Safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	r   *rand.Rand
	now func() time.Time
}

// NewGenerator returns a generator using r for every random draw and now as
// its clock. A nil r is seeded from the runtime; a nil now uses time.Now.
func NewGenerator(r *rand.Rand, now func() time.Time) *Generator {
	if r == nil {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if now == nil {
		now = time.Now
	}
	return &Generator{r: r, now: now}
}

// Seeded is a convenience for reproducible runs.
func Seeded(seed uint64, now func() time.Time) *Generator {
	return NewGenerator(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), now)
}

// Order builds one synthesized purchase for shop.
func (g *Generator) Order(shop string, opts Options) (feed.PurchaseEvent, error) {
	price, err := g.Price(opts)
	if err != nil {
		return feed.PurchaseEvent{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	first := pick(g.r, firstNames)
	last := pick(g.r, lastNames)
	minutesAgo := time.Duration(1+g.r.IntN(60)) * time.Minute

	return feed.PurchaseEvent{
		ID:           "fake-" + uuid.NewString(),
		Shop:         shop,
		OrderNumber:  fmt.Sprintf("#%d", 1000+g.r.IntN(9000)),
		TotalPrice:   feed.NewMoney(price),
		Currency:     "USD",
		CustomerName: first + " " + last[:1] + ".",
		ProductName:  pick(g.r, Products),
		CreatedAt:    g.now().Add(-minutesAgo).UTC(),
	}, nil
}

// Price draws a total for opts. real_products without any usable price uses
// the random range like random mode does.
func (g *Generator) Price(opts Options) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if opts.Mode == ModeRealProducts && hasPositive(opts.ProductPrices) {
		return BasketPrice(g.r, opts.ProductPrices), nil
	}
	return RandomPrice(g.r, opts.Min, opts.Max)
}

func hasPositive(prices []decimal.Decimal) bool {
	for _, p := range prices {
		if p.IsPositive() {
			return true
		}
	}
	return false
}
