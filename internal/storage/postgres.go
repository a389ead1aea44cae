package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mishka20003-proger/live-sales-notifications/internal/feed"
	"github.com/mishka20003-proger/live-sales-notifications/internal/synth"
	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

//go:embed migrations_postgres.sql
var postgresSchema string

type postgresStore struct {
	pool *pgxpool.Pool
	log  logx.Logger
}

func openPostgres(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("storage.dsn is required for postgres driver")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	log.Debug("postgres store opened", logx.Int("max_conns", int(poolCfg.MaxConns)))
	return &postgresStore{pool: pool, log: log}, nil
}

func (s *postgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *postgresStore) GetShop(ctx context.Context, shop string) (ShopSettings, error) {
	var (
		out        = ShopSettings{Shop: shop}
		raw, pps   string
		pmin, pmax string
		mode       string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT settings::text, price_min::text, price_max::text, price_mode, product_prices::text,
		        orders_timeframe_days, total_shows, updated_at
		 FROM shops WHERE shop = $1`, shop,
	).Scan(&raw, &pmin, &pmax, &mode, &pps, &out.OrdersTimeframeDays, &out.TotalShows, &out.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ShopSettings{}, ErrNotFound
	}
	if err != nil {
		return ShopSettings{}, fmt.Errorf("get shop %s: %w", shop, err)
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
	return out, nil
}

func (s *postgresStore) PutShop(ctx context.Context, v ShopSettings) error {
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
	_, err = s.pool.Exec(ctx, `
		INSERT INTO shops(shop, settings, price_min, price_max, price_mode, product_prices, orders_timeframe_days, updated_at)
		VALUES($1, $2::jsonb, $3::numeric, $4::numeric, $5, $6::jsonb, $7, $8)
		ON CONFLICT (shop) DO UPDATE SET
			settings = EXCLUDED.settings,
			price_min = EXCLUDED.price_min,
			price_max = EXCLUDED.price_max,
			price_mode = EXCLUDED.price_mode,
			product_prices = EXCLUDED.product_prices,
			orders_timeframe_days = EXCLUDED.orders_timeframe_days,
			updated_at = EXCLUDED.updated_at`,
		v.Shop, raw, v.PriceMin.StringFixed(2), v.PriceMax.StringFixed(2), string(v.PriceMode), pps,
		v.OrdersTimeframeDays, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put shop %s: %w", v.Shop, err)
	}
	return nil
}

func (s *postgresStore) IncrementShows(ctx context.Context, shop string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`UPDATE shops SET total_shows = total_shows + 1 WHERE shop = $1 RETURNING total_shows`, shop,
	).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return n, err
}

func (s *postgresStore) InsertOrder(ctx context.Context, ev feed.PurchaseEvent) (bool, error) {
	if ev.ID == "" || ev.Shop == "" {
		return false, errors.New("order id and shop are required")
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO orders(shop, id, order_number, total_price, currency, customer_name, product_name, created_at)
		VALUES($1, $2, $3, $4::numeric, $5, $6, $7, $8)
		ON CONFLICT (shop, id) DO NOTHING`,
		ev.Shop, ev.ID, ev.OrderNumber, ev.TotalPrice.String(), ev.Currency,
		nullStr(ev.CustomerName), nullStr(ev.ProductName), ev.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert order %s: %w", ev.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *postgresStore) RecentOrders(ctx context.Context, shop string, since time.Time, limit int) ([]feed.PurchaseEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, order_number, total_price::text, currency, coalesce(customer_name, ''), coalesce(product_name, ''), created_at
		FROM orders WHERE shop = $1 AND created_at >= $2
		ORDER BY created_at DESC LIMIT $3`,
		shop, since, clampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("recent orders: %w", err)
	}
	defer rows.Close()

	var out []feed.PurchaseEvent
	for rows.Next() {
		ev := feed.PurchaseEvent{Shop: shop}
		var price string
		if err := rows.Scan(&ev.ID, &ev.OrderNumber, &price, &ev.Currency, &ev.CustomerName, &ev.ProductName, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		if ev.TotalPrice, err = feed.ParseMoney(price); err != nil {
			return nil, fmt.Errorf("order %s price: %w", ev.ID, err)
		}
		ev.CreatedAt = ev.CreatedAt.UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}
