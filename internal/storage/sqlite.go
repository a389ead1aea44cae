package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/mishka20003-proger/live-sales-notifications/internal/feed"
	"github.com/mishka20003-proger/live-sales-notifications/internal/synth"
	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

//go:embed migrations_sqlite.sql
var sqliteSchema string

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return &sqliteStore{db: db, log: log}, nil
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) GetShop(ctx context.Context, shop string) (ShopSettings, error) {
	var (
		out                        = ShopSettings{Shop: shop}
		raw, pmin, pmax, mode, pps string
		updated                    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT settings, price_min, price_max, price_mode, product_prices, orders_timeframe_days, total_shows, updated_at
		 FROM shops WHERE shop = ?`, shop,
	).Scan(&raw, &pmin, &pmax, &mode, &pps, &out.OrdersTimeframeDays, &out.TotalShows, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return ShopSettings{}, ErrNotFound
	}
	if err != nil {
		return ShopSettings{}, err
	}
	if out.Settings, err = decodeSettings(raw); err != nil {
		return ShopSettings{}, fmt.Errorf("shop %s settings: %w", shop, err)
	}
	if out.PriceMin, err = decimal.NewFromString(pmin); err != nil {
		return ShopSettings{}, fmt.Errorf("shop %s price_min: %w", shop, err)
	}
	if out.PriceMax, err = decimal.NewFromString(pmax); err != nil {
		return ShopSettings{}, fmt.Errorf("shop %s price_max: %w", shop, err)
	}
	if out.ProductPrices, err = decodePrices(pps); err != nil {
		return ShopSettings{}, fmt.Errorf("shop %s product_prices: %w", shop, err)
	}
	out.PriceMode = synth.Mode(mode)
	out.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return out, nil
}

func (s *sqliteStore) PutShop(ctx context.Context, v ShopSettings) error {
	raw, err := encodeSettings(v.Settings)
	if err != nil {
		return err
	}
	pps, err := encodePrices(v.ProductPrices)
	if err != nil {
		return err
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO shops(shop, settings, price_min, price_max, price_mode, product_prices, orders_timeframe_days, updated_at)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(shop) DO UPDATE SET
		   settings=excluded.settings, price_min=excluded.price_min, price_max=excluded.price_max,
		   price_mode=excluded.price_mode, product_prices=excluded.product_prices,
		   orders_timeframe_days=excluded.orders_timeframe_days, updated_at=excluded.updated_at`,
		v.Shop, raw, v.PriceMin.StringFixed(2), v.PriceMax.StringFixed(2), string(v.PriceMode), pps,
		v.OrdersTimeframeDays, v.UpdatedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) IncrementShows(ctx context.Context, shop string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`UPDATE shops SET total_shows = total_shows + 1 WHERE shop = ? RETURNING total_shows`, shop,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return n, err
}

func (s *sqliteStore) InsertOrder(ctx context.Context, ev feed.PurchaseEvent) (bool, error) {
	if ev.ID == "" || ev.Shop == "" {
		return false, errors.New("order id and shop are required")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO orders(shop, id, order_number, total_price, currency, customer_name, product_name, created_at)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(shop, id) DO NOTHING`,
		ev.Shop, ev.ID, ev.OrderNumber, ev.TotalPrice.String(), ev.Currency,
		nullStr(ev.CustomerName), nullStr(ev.ProductName), ev.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *sqliteStore) RecentOrders(ctx context.Context, shop string, since time.Time, limit int) ([]feed.PurchaseEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_number, total_price, currency, customer_name, product_name, created_at
		 FROM orders WHERE shop = ? AND created_at >= ?
		 ORDER BY created_at DESC LIMIT ?`,
		shop, since.UnixMilli(), clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("recent orders: %w", err)
	}
	defer rows.Close()

	var out []feed.PurchaseEvent
	for rows.Next() {
		var (
			ev            = feed.PurchaseEvent{Shop: shop}
			price         string
			name, product sql.NullString
			created       int64
		)
		if err := rows.Scan(&ev.ID, &ev.OrderNumber, &price, &ev.Currency, &name, &product, &created); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if ev.TotalPrice, err = feed.ParseMoney(price); err != nil {
			return nil, fmt.Errorf("order %s price: %w", ev.ID, err)
		}
		ev.CustomerName = name.String
		ev.ProductName = product.String
		ev.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}
