package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mishka20003-proger/live-sales-notifications/internal/config"
	"github.com/mishka20003-proger/live-sales-notifications/internal/cycle"
)

func TestMapWidgetConfig(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		in      config.WidgetConfig
		want    Widget
		wantErr string
	}{
		{
			name: "defaults",
			in:   config.WidgetConfig{Shop: " Demo.Example.com ", BaseURL: "http://localhost:8080"},
			want: Widget{
				Shop:           "demo.example.com",
				BaseURL:        "http://localhost:8080",
				SettingsPoll:   10 * time.Second,
				OrdersPoll:     15 * time.Second,
				RequestTimeout: 10 * time.Second,
				ViewportWidth:  1280,
				NarrowWidth:    768,
				Surface:        SurfaceConsole,
				Columns:        80,
			},
		},
		{
			name: "explicit",
			in: config.WidgetConfig{
				Shop: "a", BaseURL: "https://x", SettingsPoll: "2s", OrdersPoll: "3s", RequestTimeout: "1s",
				ViewportWidth: 375, NarrowWidth: 600, Surface: "NONE", Columns: 60,
			},
			want: Widget{
				Shop: "a", BaseURL: "https://x", SettingsPoll: 2 * time.Second, OrdersPoll: 3 * time.Second,
				RequestTimeout: time.Second, ViewportWidth: 375, NarrowWidth: 600, Surface: SurfaceNone, Columns: 60,
			},
		},
		{name: "bad duration", in: config.WidgetConfig{OrdersPoll: "soon"}, wantErr: "widget.orders_poll"},
		{name: "sub-second poll", in: config.WidgetConfig{SettingsPoll: "500ms"}, wantErr: "widget.settings_poll"},
		{name: "fractional poll", in: config.WidgetConfig{OrdersPoll: "1500ms"}, wantErr: "widget.orders_poll"},
		{name: "negative width", in: config.WidgetConfig{ViewportWidth: -1}, wantErr: "widths"},
		{name: "unknown surface", in: config.WidgetConfig{Surface: "html"}, wantErr: "widget.surface"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := mapWidgetConfig(&config.Config{Widget: tc.in})
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("mapWidgetConfig: %v", err)
			}
			if got != tc.want {
				t.Fatalf("widget = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestWidgetNarrowAndRequireFeed(t *testing.T) {
	t.Parallel()
	w := Widget{Shop: "demo", BaseURL: "http://localhost:8080", ViewportWidth: 375, NarrowWidth: 768}
	if !w.Narrow() {
		t.Fatal("Narrow = false for 375 < 768")
	}
	if err := w.requireFeed(); err != nil {
		t.Fatalf("requireFeed = %v, want nil", err)
	}
	for _, bad := range []Widget{
		{BaseURL: "http://localhost"},
		{Shop: "demo", BaseURL: "ftp://host"},
		{Shop: "demo", BaseURL: "localhost:8080"},
	} {
		if err := bad.requireFeed(); err == nil {
			t.Fatalf("requireFeed(%+v) = nil, want error", bad)
		}
	}
}

func TestMapStorageConfig(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name        string
		in          *config.StorageConfig
		wantEnabled bool
		wantDriver  string
		wantPath    string
		wantBusy    time.Duration
		wantErr     bool
	}{
		{name: "absent"},
		{name: "none", in: &config.StorageConfig{Driver: "none"}},
		{name: "file default path", in: &config.StorageConfig{Driver: "File"}, wantEnabled: true, wantDriver: "file", wantPath: "./data/salespop.json"},
		{name: "sqlite", in: &config.StorageConfig{Driver: "sqlite", Path: "x.db"}, wantEnabled: true, wantDriver: "sqlite", wantPath: "x.db", wantBusy: time.Second},
		{name: "sqlite busy", in: &config.StorageConfig{Driver: "sqlite", Path: "x.db", BusyTimeout: "3s"}, wantEnabled: true, wantDriver: "sqlite", wantPath: "x.db", wantBusy: 3 * time.Second},
		{name: "sqlite without path", in: &config.StorageConfig{Driver: "sqlite"}, wantErr: true},
		{name: "postgres without dsn", in: &config.StorageConfig{Driver: "postgres"}, wantErr: true},
		{name: "postgres", in: &config.StorageConfig{Driver: "postgres", DSN: "postgres://u@h/db"}, wantEnabled: true, wantDriver: "postgres"},
		{name: "unknown", in: &config.StorageConfig{Driver: "redis"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, enabled, err := mapStorageConfig(&config.Config{Storage: tc.in})
			if tc.wantErr {
				if err == nil {
					t.Fatal("err = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("mapStorageConfig: %v", err)
			}
			if enabled != tc.wantEnabled {
				t.Fatalf("enabled = %v, want %v", enabled, tc.wantEnabled)
			}
			if got.Driver != tc.wantDriver || got.Path != tc.wantPath || got.BusyTimeout != tc.wantBusy {
				t.Fatalf("storage = %+v, want driver %q path %q busy %v", got, tc.wantDriver, tc.wantPath, tc.wantBusy)
			}
		})
	}
}

func TestMapServerConfig(t *testing.T) {
	t.Parallel()
	got, err := mapServerConfig(&config.Config{})
	if err != nil {
		t.Fatalf("mapServerConfig: %v", err)
	}
	if got.Addr != ":8080" || got.RateWindow != time.Minute || got.ShutdownTimeout != 5*time.Second || got.RateLimit != 0 {
		t.Fatalf("defaults = %+v", got)
	}

	got, err = mapServerConfig(&config.Config{Server: config.ServerConfig{Addr: "127.0.0.1:9000", RateLimit: 60, RateWindow: "30s", Pprof: true}})
	if err != nil {
		t.Fatalf("mapServerConfig: %v", err)
	}
	if got.Addr != "127.0.0.1:9000" || got.RateLimit != 60 || got.RateWindow != 30*time.Second || !got.Profiler {
		t.Fatalf("explicit = %+v", got)
	}

	if _, err := mapServerConfig(&config.Config{Server: config.ServerConfig{RateLimit: -1}}); err == nil {
		t.Fatal("negative rate_limit accepted")
	}
}

func TestMapLoggingConfigChatNeedsTarget(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Logging: config.LoggingConfig{Telegram: config.LoggingTelegram{Enabled: true}}}
	if mapLoggingConfig(cfg).Chat.Enabled {
		t.Fatal("chat enabled without token and chat_id")
	}
	cfg.Telegram = config.TelegramConfig{Token: "t", ChatID: 42}
	if got := mapLoggingConfig(cfg).Chat; !got.Enabled || got.ChatID != 42 {
		t.Fatalf("chat = %+v, want enabled for 42", got)
	}
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		cfg  *config.Config
		ok   bool
	}{
		{"nil", nil, false},
		{"empty", &config.Config{}, true},
		{"bad widget", &config.Config{Widget: config.WidgetConfig{SettingsPoll: "x"}}, false},
		{"bad server", &config.Config{Server: config.ServerConfig{ShutdownTimeout: "x"}}, false},
		{"bad storage", &config.Config{Storage: &config.StorageConfig{Driver: "sqlite"}}, false},
		{"bad chat rate", &config.Config{Logging: config.LoggingConfig{Telegram: config.LoggingTelegram{RatePerSec: -1}}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := validateConfig(tc.cfg)
			if (err == nil) != tc.ok {
				t.Fatalf("validateConfig = %v, want ok=%v", err, tc.ok)
			}
		})
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "salespop.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func stopApp(t *testing.T, a *App) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Stop(ctx, StopAppStop); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestStartWatchRequiresFeed(t *testing.T) {
	t.Parallel()
	a, err := New(writeConfig(t, "logging:\n  level: error\n"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.StartWatch(context.Background()); err == nil {
		t.Fatal("StartWatch without widget.shop = nil, want error")
	}
}

func TestStartServeRequiresStorage(t *testing.T) {
	t.Parallel()
	a, err := New(writeConfig(t, "logging:\n  level: error\n"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.StartServe(context.Background()); err == nil {
		t.Fatal("StartServe without storage = nil, want error")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	if _, err := New(writeConfig(t, "widget:\n  surface: html\n")); err == nil {
		t.Fatal("New with bad surface = nil, want error")
	}
}

// TestServeAndWatch runs the feed server and a headless widget against it and
// waits for the first notification.
func TestServeAndWatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	base := "http://" + ln.Addr().String()

	serveCfg := writeConfig(t, fmt.Sprintf(`logging:
  level: error
storage:
  driver: file
  path: %s
synth:
  seed: 11
`, filepath.Join(dir, "store.json")))
	srv, err := New(serveCfg, WithListener(ln))
	if err != nil {
		t.Fatalf("New serve: %v", err)
	}
	if err := srv.StartServe(context.Background()); err != nil {
		t.Fatalf("StartServe: %v", err)
	}
	defer stopApp(t, srv)

	body := `{"settings":{"enabled":true,"position":"top-center","displayDurationMs":2000,"displayIntervalMs":500,` +
		`"maxDisplayed":5,"dataSource":"fake","fakeIntervalMs":200,"size":"small","showCustomerName":true,` +
		`"showOrderNumber":true,"showTotalPrice":true,"initialDelayMs":10,"hideOnMobile":false}}`
	req, _ := http.NewRequest(http.MethodPut, base+"/admin/settings?shop=demo.example.com", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT settings: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT settings status = %d, want 200", resp.StatusCode)
	}

	watchCfg := writeConfig(t, fmt.Sprintf(`logging:
  level: error
widget:
  shop: demo.example.com
  base_url: %s
  settings_poll: 1s
  orders_poll: 1s
  surface: none
`, base))
	w, err := New(watchCfg)
	if err != nil {
		t.Fatalf("New watch: %v", err)
	}
	shown, unsub := w.Bus().Subscribe(4, cycle.EventShown)
	defer unsub()
	if err := w.StartWatch(context.Background()); err != nil {
		t.Fatalf("StartWatch: %v", err)
	}
	defer stopApp(t, w)

	select {
	case e := <-shown:
		ev := e.Data.(cycle.Shown).Event
		if !strings.HasPrefix(ev.OrderNumber, "#") || ev.Currency == "" {
			t.Fatalf("shown event = %+v", ev)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("no notification shown")
	}

	rec := w.Recorder()
	if rec == nil {
		t.Fatal("Recorder = nil for surface none")
	}
	if rec.Visible() == "" {
		var kinds []string
		for _, op := range rec.Ops() {
			kinds = append(kinds, op.Kind)
		}
		t.Fatalf("nothing visible after show; ops = %v", kinds)
	}

	snap, err := w.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.State != cycle.Cycling {
		t.Fatalf("state = %v, want Cycling", snap.State)
	}
}
