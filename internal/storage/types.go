package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mishka20003-proger/live-sales-notifications/internal/settings"
	"github.com/mishka20003-proger/live-sales-notifications/internal/synth"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("storage: not found")
)

// Recent-order window served to storefronts.
const (
	DefaultTimeframeDays = 7
	MaxRecentOrders      = 20
)

// Config configures storage.
//
// Driver values:
//   - "file": JSON snapshot + order journal next to Path
//   - "sqlite": SQLite database file at Path
//   - "postgres": PostgreSQL reachable at DSN
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default
	MaxConns    int           // postgres only; 0 means pgx default
}

// ShopSettings is everything persisted per shop: the public widget settings
// plus the server-side demo pricing knobs and the display counter.
type ShopSettings struct {
	Shop                string            `json:"shop"`
	Settings            settings.Settings `json:"settings"`
	PriceMin            decimal.Decimal   `json:"priceMin"`
	PriceMax            decimal.Decimal   `json:"priceMax"`
	PriceMode           synth.Mode        `json:"priceMode"`
	ProductPrices       []decimal.Decimal `json:"productPrices,omitempty"`
	OrdersTimeframeDays int               `json:"ordersTimeframeDays"`
	TotalShows          int64             `json:"totalShows"`
	UpdatedAt           time.Time         `json:"updatedAt"`
}

// DefaultShop is what a shop that never saved anything gets.
func DefaultShop(shop string) ShopSettings {
	return ShopSettings{
		Shop:                shop,
		Settings:            settings.Default(),
		PriceMin:            decimal.NewFromInt(10),
		PriceMax:            decimal.NewFromInt(200),
		PriceMode:           synth.ModeRandom,
		OrdersTimeframeDays: DefaultTimeframeDays,
	}
}

func (s ShopSettings) Validate() error {
	if s.Shop == "" {
		return fmt.Errorf("%w: shop is required", settings.ErrInvalid)
	}
	if err := s.Settings.Validate(); err != nil {
		return err
	}
	if _, err := synth.ParseMode(string(s.PriceMode)); err != nil {
		return fmt.Errorf("%w: %v", settings.ErrInvalid, err)
	}
	if s.PriceMin.IsNegative() {
		return fmt.Errorf("%w: priceMin %s is negative", settings.ErrInvalid, s.PriceMin)
	}
	if _, _, err := synth.CentRange(s.PriceMin, s.PriceMax); err != nil {
		return fmt.Errorf("%w: %v", settings.ErrInvalid, err)
	}
	if s.OrdersTimeframeDays < 1 {
		return fmt.Errorf("%w: ordersTimeframeDays must be >= 1", settings.ErrInvalid)
	}
	return nil
}

// SynthOptions maps the pricing knobs onto the generator's options.
func (s ShopSettings) SynthOptions() synth.Options {
	mode, err := synth.ParseMode(string(s.PriceMode))
	if err != nil {
		mode = synth.ModeRandom
	}
	return synth.Options{Mode: mode, Min: s.PriceMin, Max: s.PriceMax, ProductPrices: s.ProductPrices}
}
