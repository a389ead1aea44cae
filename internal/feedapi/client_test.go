package feedapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mishka20003-proger/live-sales-notifications/internal/settings"
)

func TestFetchSettingsKeepsAbsentFields(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != SettingsPath || r.URL.Query().Get("shop") != "demo.myshop.test" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"enabled":false,"position":"top-center"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "demo.myshop.test", time.Second)
	base := settings.Default()
	base.MaxDisplayed = 3
	got, err := c.FetchSettings(context.Background(), base)
	if err != nil {
		t.Fatalf("FetchSettings: %v", err)
	}
	if got.Enabled || got.Position != settings.TopCenter {
		t.Fatalf("decoded fields not applied: %+v", got)
	}
	if got.MaxDisplayed != 3 {
		t.Fatalf("MaxDisplayed = %d, want base value 3", got.MaxDisplayed)
	}
}

func TestFetchOrders(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orders":[{"id":"b","totalPrice":"9.5","currency":"USD"},{"id":"a","totalPrice":"3.00"}],"count":2}`))
	}))
	defer srv.Close()

	got, err := NewClient(srv.URL, "s", 0).FetchOrders(context.Background())
	if err != nil {
		t.Fatalf("FetchOrders: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[0].TotalPrice.String() != "9.50" {
		t.Fatalf("orders = %+v", got)
	}
}

func TestFetchFailures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		handler http.HandlerFunc
		is      error
	}{
		{
			name:    "status",
			handler: func(w http.ResponseWriter, _ *http.Request) { http.Error(w, "boom", http.StatusBadGateway) },
			is:      ErrStatus,
		},
		{
			name:    "malformed",
			handler: func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"orders":`)) },
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			c := NewClient(srv.URL, "s", time.Second)

			if _, err := c.FetchOrders(context.Background()); err == nil || (tt.is != nil && !errors.Is(err, tt.is)) {
				t.Fatalf("FetchOrders err = %v, want %v", err, tt.is)
			}
			base := settings.Default()
			got, err := c.FetchSettings(context.Background(), base)
			if err == nil {
				t.Fatal("FetchSettings succeeded")
			}
			if got != base {
				t.Fatalf("FetchSettings returned %+v on failure, want base", got)
			}
		})
	}
}
