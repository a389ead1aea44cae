package feedapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mishka20003-proger/live-sales-notifications/internal/feed"
	"github.com/mishka20003-proger/live-sales-notifications/internal/settings"
)

const (
	SettingsPath = "/apps/proxy/settings"
	OrdersPath   = "/apps/proxy/recent-orders"

	maxBody = 1 << 20
)

// ErrStatus is returned for non-2xx responses.
var ErrStatus = errors.New("feed: unexpected status")

// OrdersResponse is the order feed document.
type OrdersResponse struct {
	Orders      []feed.PurchaseEvent `json:"orders"`
	Count       int                  `json:"count"`
	DataSource  string               `json:"dataSource,omitempty"`
	PriceMode   string               `json:"priceMode,omitempty"`
	LastUpdated *time.Time           `json:"lastUpdated,omitempty"`
}

// Client reads the two polled resources for one shop.
type Client struct {
	BaseURL string
	Shop    string
	HTTP    *http.Client
}

func NewClient(baseURL, shop string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Shop:    shop,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// FetchSettings decodes the settings resource onto base, so fields the
// server leaves out keep their previous value.
func (c *Client) FetchSettings(ctx context.Context, base settings.Settings) (settings.Settings, error) {
	out := base
	if err := c.getJSON(ctx, SettingsPath, &out); err != nil {
		return base, err
	}
	return out, nil
}

// FetchOrders returns the feed's events, most recent first.
func (c *Client) FetchOrders(ctx context.Context) ([]feed.PurchaseEvent, error) {
	var resp OrdersResponse
	if err := c.getJSON(ctx, OrdersPath, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	u := c.BaseURL + path + "?shop=" + url.QueryEscape(c.Shop)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return fmt.Errorf("%w: %s %d", ErrStatus, path, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
