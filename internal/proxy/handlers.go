package proxy

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mishka20003-proger/live-sales-notifications/internal/feed"
	"github.com/mishka20003-proger/live-sales-notifications/internal/feedapi"
	"github.com/mishka20003-proger/live-sales-notifications/internal/settings"
	"github.com/mishka20003-proger/live-sales-notifications/internal/storage"
	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

const maxBody = 1 << 20

// Shop domain headers accepted on the order webhook, in lookup order.
var shopHeaders = []string{"X-Shop-Domain", "X-Shopify-Shop-Domain"}

func shopParam(r *http.Request) string {
	return normalizeShop(r.URL.Query().Get("shop"))
}

func normalizeShop(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// loadShop returns the stored shop or its defaults. found reports whether
// the shop ever saved anything.
func (s *Server) loadShop(r *http.Request, shop string) (storage.ShopSettings, bool, error) {
	v, err := s.store.GetShop(r.Context(), shop)
	switch {
	case err == nil:
		return v, true, nil
	case errors.Is(err, storage.ErrNotFound):
		return storage.DefaultShop(shop), false, nil
	default:
		return storage.ShopSettings{}, false, err
	}
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	shop := shopParam(r)
	if shop == "" {
		writeError(w, http.StatusBadRequest, "MISSING_SHOP", "Missing shop parameter")
		return
	}
	v, _, err := s.loadShop(r, shop)
	if err != nil {
		s.log.Error("load settings failed", logx.String("shop", shop), logx.Err(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, cacheShort, v.Settings)
}

type missingShopOrders struct {
	Error  string               `json:"error"`
	Orders []feed.PurchaseEvent `json:"orders"`
	Count  int                  `json:"count"`
}

func (s *Server) handleRecentOrders(w http.ResponseWriter, r *http.Request) {
	shop := shopParam(r)
	if shop == "" {
		writeJSON(w, http.StatusBadRequest, cacheNoStore, missingShopOrders{
			Error:  "Missing shop parameter",
			Orders: []feed.PurchaseEvent{},
		})
		return
	}
	v, found, err := s.loadShop(r, shop)
	if err != nil {
		s.log.Error("load shop failed", logx.String("shop", shop), logx.Err(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to load orders")
		return
	}
	now := s.now().UTC()

	if !v.Settings.Enabled {
		writeJSON(w, http.StatusOK, cacheShort, feedapi.OrdersResponse{
			Orders:      []feed.PurchaseEvent{},
			DataSource:  "disabled",
			LastUpdated: &now,
		})
		return
	}

	if v.Settings.DataSource == settings.SourceFake {
		ev, err := s.gen.Order(shop, v.SynthOptions())
		if err != nil {
			s.log.Error("synthesize order failed", logx.String("shop", shop), logx.Err(err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to generate order")
			return
		}
		if found {
			s.countShow(r, shop)
		}
		writeJSON(w, http.StatusOK, cacheNoStore, feedapi.OrdersResponse{
			Orders:      []feed.PurchaseEvent{ev},
			Count:       1,
			DataSource:  string(settings.SourceFake),
			PriceMode:   string(v.SynthOptions().Mode),
			LastUpdated: &now,
		})
		return
	}

	since := now.AddDate(0, 0, -v.OrdersTimeframeDays)
	orders, err := s.store.RecentOrders(r.Context(), shop, since, storage.MaxRecentOrders)
	if err != nil {
		s.log.Error("recent orders failed", logx.String("shop", shop), logx.Err(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to load orders")
		return
	}
	if orders == nil {
		orders = []feed.PurchaseEvent{}
	}
	if len(orders) > 0 && found {
		s.countShow(r, shop)
	}
	writeJSON(w, http.StatusOK, cacheShort, feedapi.OrdersResponse{
		Orders:      orders,
		Count:       len(orders),
		DataSource:  string(settings.SourceReal),
		LastUpdated: &now,
	})
}

// countShow bumps TotalShows. A failure never fails the feed response.
func (s *Server) countShow(r *http.Request, shop string) {
	if _, err := s.store.IncrementShows(r.Context(), shop); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn("increment shows failed", logx.String("shop", shop), logx.Err(err))
	}
}

// flexString decodes a JSON string or number into its text.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type orderWebhook struct {
	ID          flexString `json:"id"`
	OrderNumber flexString `json:"order_number"`
	TotalPrice  flexString `json:"total_price"`
	Currency    string     `json:"currency"`
	CreatedAt   string     `json:"created_at"`
	Customer    *struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"customer"`
}

func (p orderWebhook) event(shop string, now time.Time) (feed.PurchaseEvent, error) {
	price := string(p.TotalPrice)
	if strings.TrimSpace(price) == "" {
		price = "0.00"
	}
	total, err := feed.ParseMoney(price)
	if err != nil {
		return feed.PurchaseEvent{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = "USD"
	}
	created := now
	if p.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, p.CreatedAt); err == nil {
			created = t
		}
	}
	var number string
	if n := strings.TrimSpace(string(p.OrderNumber)); n != "" {
		number = "#" + n
	}
	name := "Guest"
	if p.Customer != nil {
		if n := strings.TrimSpace(p.Customer.FirstName + " " + p.Customer.LastName); n != "" {
			name = n
		}
	}
	return feed.PurchaseEvent{
		ID:           string(p.ID),
		Shop:         shop,
		OrderNumber:  number,
		TotalPrice:   total,
		Currency:     currency,
		CustomerName: name,
		CreatedAt:    created.UTC(),
	}, nil
}

func (s *Server) handleOrderWebhook(w http.ResponseWriter, r *http.Request) {
	var shop string
	for _, h := range shopHeaders {
		if shop = normalizeShop(r.Header.Get(h)); shop != "" {
			break
		}
	}
	if shop == "" {
		writeError(w, http.StatusBadRequest, "MISSING_SHOP", "Missing shop domain header")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_BODY", "Failed to read body")
		return
	}
	var payload orderWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", "Malformed order payload")
		return
	}
	if strings.TrimSpace(string(payload.ID)) == "" {
		writeError(w, http.StatusBadRequest, "MISSING_ID", "Order id is required")
		return
	}
	ev, err := payload.event(shop, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_PRICE", "Malformed total_price")
		return
	}

	inserted, err := s.store.InsertOrder(r.Context(), ev)
	if err != nil {
		s.log.Error("store order failed", logx.String("shop", shop), logx.String("order", ev.ID), logx.Err(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to store order")
		return
	}
	if !inserted {
		s.log.Debug("duplicate order ignored", logx.String("shop", shop), logx.String("order", ev.ID))
	} else {
		s.log.Info("order stored", logx.String("shop", shop), logx.String("order", ev.ID), logx.String("number", ev.OrderNumber))
	}
	writeJSON(w, http.StatusOK, cacheNoStore, map[string]any{"success": true, "duplicate": !inserted})
}

func (s *Server) handleGetAdminSettings(w http.ResponseWriter, r *http.Request) {
	shop := shopParam(r)
	if shop == "" {
		writeError(w, http.StatusBadRequest, "MISSING_SHOP", "Missing shop parameter")
		return
	}
	v, _, err := s.loadShop(r, shop)
	if err != nil {
		s.log.Error("load shop failed", logx.String("shop", shop), logx.Err(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, cacheNoStore, v)
}

// handlePutAdminSettings decodes the body onto the stored (or default)
// settings so a partial document only changes what it names.
func (s *Server) handlePutAdminSettings(w http.ResponseWriter, r *http.Request) {
	shop := shopParam(r)
	if shop == "" {
		writeError(w, http.StatusBadRequest, "MISSING_SHOP", "Missing shop parameter")
		return
	}
	cur, _, err := s.loadShop(r, shop)
	if err != nil {
		s.log.Error("load shop failed", logx.String("shop", shop), logx.Err(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to load settings")
		return
	}
	next := cur
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", "Malformed settings document")
		return
	}
	next.Shop = shop
	next.TotalShows = cur.TotalShows
	next.UpdatedAt = s.now().UTC()
	if err := next.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_SETTINGS", err.Error())
		return
	}
	if err := s.store.PutShop(r.Context(), next); err != nil {
		s.log.Error("save settings failed", logx.String("shop", shop), logx.Err(err))
		writeError(w, http.StatusInternalServerError, "INTERNAL", "Failed to save settings")
		return
	}
	s.log.Info("settings saved",
		logx.String("shop", shop),
		logx.Bool("enabled", next.Settings.Enabled),
		logx.String("data_source", string(next.Settings.DataSource)),
	)
	writeJSON(w, http.StatusOK, cacheNoStore, next)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, cacheNoStore, map[string]any{
		"status": "ok",
		"time":   s.now().UTC(),
	})
}
