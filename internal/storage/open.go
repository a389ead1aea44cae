package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mishka20003-proger/live-sales-notifications/internal/feed"
	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

// Store is the persistence API used by the storefront proxy.
type Store interface {
	// GetShop returns ErrNotFound for a shop that never saved settings.
	GetShop(ctx context.Context, shop string) (ShopSettings, error)
	PutShop(ctx context.Context, s ShopSettings) error
	// InsertOrder reports inserted=false for an order id already stored.
	InsertOrder(ctx context.Context, ev feed.PurchaseEvent) (inserted bool, err error)
	// RecentOrders returns up to limit orders created at or after since,
	// most recent first.
	RecentOrders(ctx context.Context, shop string, since time.Time, limit int) ([]feed.PurchaseEvent, error)
	// IncrementShows bumps the display counter of a saved shop.
	IncrementShows(ctx context.Context, shop string) (int64, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("driver", driver))

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(ctx, cfg, log)
	case "postgres", "postgresql", "pgx":
		return openPostgres(ctx, cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxRecentOrders {
		return MaxRecentOrders
	}
	return limit
}
