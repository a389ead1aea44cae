package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mishka20003-proger/live-sales-notifications/internal/feed"
	"github.com/mishka20003-proger/live-sales-notifications/internal/settings"
	"github.com/mishka20003-proger/live-sales-notifications/internal/synth"
	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

func order(shop, id string, at time.Time) feed.PurchaseEvent {
	price, _ := feed.ParseMoney("19.90")
	return feed.PurchaseEvent{
		ID:           id,
		Shop:         shop,
		OrderNumber:  "#" + id,
		TotalPrice:   price,
		Currency:     "USD",
		CustomerName: "Ann K",
		CreatedAt:    at.UTC().Truncate(time.Millisecond),
	}
}

func drivers(t *testing.T) map[string]Config {
	dir := t.TempDir()
	return map[string]Config{
		"file":   {Driver: "file", Path: filepath.Join(dir, "file", "salespop.json")},
		"sqlite": {Driver: "sqlite", Path: filepath.Join(dir, "sqlite", "salespop.db"), BusyTimeout: time.Second},
	}
}

func TestOpenDisabledAndUnknown(t *testing.T) {
	t.Parallel()
	st, err := Open(context.Background(), Config{Driver: "none"}, logx.Nop())
	if err != nil || st != nil {
		t.Fatalf("Open(none) = %v, %v; want nil, nil", st, err)
	}
	if _, err := Open(context.Background(), Config{Driver: "mongo"}, logx.Nop()); err == nil {
		t.Fatal("Open(mongo) succeeded")
	}
	if _, err := Open(context.Background(), Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("Open(postgres) without dsn succeeded")
	}
}

func TestStoreContract(t *testing.T) {
	t.Parallel()
	for name, cfg := range drivers(t) {
		name, cfg := name, cfg
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			st, err := Open(ctx, cfg, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer st.Close()

			if _, err := st.GetShop(ctx, "a.test"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("GetShop on empty store = %v, want ErrNotFound", err)
			}
			if _, err := st.IncrementShows(ctx, "a.test"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("IncrementShows on unknown shop = %v, want ErrNotFound", err)
			}

			shop := DefaultShop("a.test")
			shop.Settings.DataSource = settings.SourceFake
			shop.PriceMode = synth.ModeRealProducts
			shop.ProductPrices = []decimal.Decimal{decimal.NewFromInt(15), decimal.RequireFromString("30.5")}
			if err := st.PutShop(ctx, shop); err != nil {
				t.Fatalf("PutShop: %v", err)
			}
			for i := 1; i <= 2; i++ {
				n, err := st.IncrementShows(ctx, "a.test")
				if err != nil || n != int64(i) {
					t.Fatalf("IncrementShows = %d, %v; want %d", n, err, i)
				}
			}
			// Saving settings again keeps the counter.
			if err := st.PutShop(ctx, shop); err != nil {
				t.Fatalf("PutShop again: %v", err)
			}
			got, err := st.GetShop(ctx, "a.test")
			if err != nil {
				t.Fatalf("GetShop: %v", err)
			}
			if got.Settings != shop.Settings || got.PriceMode != synth.ModeRealProducts || got.TotalShows != 2 {
				t.Fatalf("GetShop = %+v", got)
			}
			if !got.PriceMin.Equal(shop.PriceMin) || len(got.ProductPrices) != 2 || !got.ProductPrices[1].Equal(decimal.RequireFromString("30.5")) {
				t.Fatalf("pricing round trip = %+v", got)
			}

			now := time.Now()
			for i := 0; i < 25; i++ {
				ins, err := st.InsertOrder(ctx, order("a.test", fmt.Sprintf("o%02d", i), now.Add(-time.Duration(i)*time.Hour)))
				if err != nil || !ins {
					t.Fatalf("InsertOrder %d = %v, %v", i, ins, err)
				}
			}
			ins, err := st.InsertOrder(ctx, order("a.test", "o00", now))
			if err != nil || ins {
				t.Fatalf("duplicate InsertOrder = %v, %v; want false, nil", ins, err)
			}
			if _, err := st.InsertOrder(ctx, order("b.test", "o00", now)); err != nil {
				t.Fatalf("same id other shop: %v", err)
			}

			recent, err := st.RecentOrders(ctx, "a.test", now.Add(-10*time.Hour-time.Minute), 0)
			if err != nil {
				t.Fatalf("RecentOrders: %v", err)
			}
			if len(recent) != 11 || recent[0].ID != "o00" || recent[10].ID != "o10" {
				t.Fatalf("RecentOrders ids = %d items, first %q", len(recent), recent[0].ID)
			}
			if recent[0].TotalPrice.String() != "19.90" || recent[0].CustomerName != "Ann K" || recent[0].Shop != "a.test" {
				t.Fatalf("order round trip = %+v", recent[0])
			}
			all, err := st.RecentOrders(ctx, "a.test", now.AddDate(0, 0, -7), 100)
			if err != nil || len(all) != MaxRecentOrders {
				t.Fatalf("RecentOrders cap = %d, %v; want %d", len(all), err, MaxRecentOrders)
			}
		})
	}
}

func TestFileStoreReopens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := Config{Driver: "file", Path: filepath.Join(t.TempDir(), "state.json")}

	st, err := Open(ctx, cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	now := time.Now()
	if err := st.PutShop(ctx, DefaultShop("s")); err != nil {
		t.Fatalf("PutShop: %v", err)
	}
	if _, err := st.InsertOrder(ctx, order("s", "older", now.Add(-time.Minute))); err != nil {
		t.Fatalf("InsertOrder: %v", err)
	}
	if _, err := st.InsertOrder(ctx, order("s", "newer", now)); err != nil {
		t.Fatalf("InsertOrder: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, err = Open(ctx, cfg, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st.Close()
	if _, err := st.GetShop(ctx, "s"); err != nil {
		t.Fatalf("GetShop after reopen: %v", err)
	}
	got, err := st.RecentOrders(ctx, "s", now.Add(-time.Hour), 0)
	if err != nil || len(got) != 2 || got[0].ID != "newer" {
		t.Fatalf("RecentOrders after reopen = %+v, %v", got, err)
	}
	if ins, _ := st.InsertOrder(ctx, order("s", "older", now)); ins {
		t.Fatal("replayed order accepted twice")
	}
}

func TestShopSettingsValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(s *ShopSettings)
		ok     bool
	}{
		{name: "default", mutate: func(*ShopSettings) {}, ok: true},
		{name: "no shop", mutate: func(s *ShopSettings) { s.Shop = "" }},
		{name: "inverted price", mutate: func(s *ShopSettings) { s.PriceMin = decimal.NewFromInt(300) }},
		{name: "no cent in range", mutate: func(s *ShopSettings) {
			s.PriceMin = decimal.RequireFromString("10.001")
			s.PriceMax = decimal.RequireFromString("10.009")
		}},
		{name: "single cent", mutate: func(s *ShopSettings) {
			s.PriceMin = decimal.RequireFromString("10.001")
			s.PriceMax = decimal.RequireFromString("10.01")
		}, ok: true},
		{name: "bad mode", mutate: func(s *ShopSettings) { s.PriceMode = "mixed" }},
		{name: "no timeframe", mutate: func(s *ShopSettings) { s.OrdersTimeframeDays = 0 }},
		{name: "bad settings", mutate: func(s *ShopSettings) { s.Settings.MaxDisplayed = 0 }},
	}
	for _, tt := range tests {
		s := DefaultShop("x.test")
		tt.mutate(&s)
		err := s.Validate()
		if tt.ok && err != nil {
			t.Fatalf("%s: Validate() = %v", tt.name, err)
		}
		if !tt.ok && !errors.Is(err, settings.ErrInvalid) {
			t.Fatalf("%s: Validate() = %v, want ErrInvalid", tt.name, err)
		}
	}
}
