package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mishka20003-proger/live-sales-notifications/internal/config"
	"github.com/mishka20003-proger/live-sales-notifications/internal/proxy"
	"github.com/mishka20003-proger/live-sales-notifications/internal/storage"
	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

// Widget is the parsed widget section.
type Widget struct {
	Shop           string
	BaseURL        string
	SettingsPoll   time.Duration
	OrdersPoll     time.Duration
	RequestTimeout time.Duration
	ViewportWidth  int
	NarrowWidth    int
	Surface        string
	Columns        int
}

// Narrow reports whether the simulated viewport counts as mobile.
func (w Widget) Narrow() bool { return w.ViewportWidth < w.NarrowWidth }

const (
	SurfaceConsole = "console"
	SurfaceNone    = "none"
)

func mapWidgetConfig(cfg *config.Config) (Widget, error) {
	wc := cfg.Widget
	w := Widget{
		Shop:          strings.ToLower(strings.TrimSpace(wc.Shop)),
		BaseURL:       strings.TrimSpace(wc.BaseURL),
		ViewportWidth: wc.ViewportWidth,
		NarrowWidth:   wc.NarrowWidth,
		Surface:       strings.ToLower(strings.TrimSpace(wc.Surface)),
		Columns:       wc.Columns,
	}
	var err error
	if w.SettingsPoll, err = config.ParseDurationOrDefault("widget.settings_poll", wc.SettingsPoll, 10*time.Second); err != nil {
		return Widget{}, err
	}
	if w.OrdersPoll, err = config.ParseDurationOrDefault("widget.orders_poll", wc.OrdersPoll, 15*time.Second); err != nil {
		return Widget{}, err
	}
	if w.RequestTimeout, err = config.ParseDurationOrDefault("widget.request_timeout", wc.RequestTimeout, 10*time.Second); err != nil {
		return Widget{}, err
	}
	// Polls run on cron schedules, which tick in whole seconds.
	for _, p := range []struct {
		key   string
		every time.Duration
	}{{"widget.settings_poll", w.SettingsPoll}, {"widget.orders_poll", w.OrdersPoll}} {
		if p.every < time.Second || p.every%time.Second != 0 {
			return Widget{}, fmt.Errorf("%s: need a whole number of seconds >= 1s, got %s", p.key, p.every)
		}
	}
	if w.ViewportWidth < 0 || w.NarrowWidth < 0 || w.Columns < 0 {
		return Widget{}, errors.New("widget: widths must be >= 0")
	}
	if w.ViewportWidth == 0 {
		w.ViewportWidth = 1280
	}
	if w.NarrowWidth == 0 {
		w.NarrowWidth = 768
	}
	if w.Columns == 0 {
		w.Columns = 80
	}
	switch w.Surface {
	case "":
		w.Surface = SurfaceConsole
	case SurfaceConsole, SurfaceNone:
	default:
		return Widget{}, fmt.Errorf("widget.surface: unknown %q", wc.Surface)
	}
	return w, nil
}

// requireFeed checks the fields the watch command cannot run without.
func (w Widget) requireFeed() error {
	if w.Shop == "" {
		return errors.New("widget.shop is required")
	}
	u, err := url.Parse(w.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("widget.base_url: need an http(s) URL, got %q", w.BaseURL)
	}
	return nil
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			// No chat target means nothing to send to.
			Enabled:    cfg.Logging.Telegram.Enabled && cfg.Telegram.ChatID != 0 && strings.TrimSpace(cfg.Telegram.Token) != "",
			ChatID:     cfg.Telegram.ChatID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func mapServerConfig(cfg *config.Config) (proxy.Config, error) {
	sc := cfg.Server
	out := proxy.Config{
		Addr:           strings.TrimSpace(sc.Addr),
		AllowedOrigins: sc.CORSOrigins,
		RateLimit:      sc.RateLimit,
		Profiler:       sc.Pprof,
	}
	if out.Addr == "" {
		out.Addr = ":8080"
	}
	if sc.RateLimit < 0 {
		return proxy.Config{}, errors.New("server.rate_limit must be >= 0")
	}
	var err error
	if out.RateWindow, err = config.ParseDurationOrDefault("server.rate_window", sc.RateWindow, time.Minute); err != nil {
		return proxy.Config{}, err
	}
	if out.ReadTimeout, err = config.ParseDurationOrDefault("server.read_timeout", sc.ReadTimeout, 15*time.Second); err != nil {
		return proxy.Config{}, err
	}
	if out.WriteTimeout, err = config.ParseDurationOrDefault("server.write_timeout", sc.WriteTimeout, 15*time.Second); err != nil {
		return proxy.Config{}, err
	}
	if out.ShutdownTimeout, err = config.ParseDurationOrDefault("server.shutdown_timeout", sc.ShutdownTimeout, 5*time.Second); err != nil {
		return proxy.Config{}, err
	}
	return out, nil
}

// mapStorageConfig reports enabled=false when the section is absent or the
// driver is "none".
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	if cfg.Storage == nil {
		return storage.Config{}, false, nil
	}
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" || driver == "none" {
		return storage.Config{}, false, nil
	}
	out := storage.Config{Driver: driver, Path: strings.TrimSpace(sc.Path), DSN: strings.TrimSpace(sc.DSN), MaxConns: sc.MaxConns}

	switch driver {
	case "file":
		if out.Path == "" {
			out.Path = "./data/salespop.json"
		}
	case "sqlite", "sqlite3":
		if out.Path == "" {
			return storage.Config{}, false, errors.New("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, false, err
		}
		out.BusyTimeout = busy
	case "postgres", "postgresql", "pgx":
		if out.DSN == "" {
			return storage.Config{}, false, errors.New("storage.dsn is required when storage.driver=postgres")
		}
		if sc.MaxConns < 0 {
			return storage.Config{}, false, errors.New("storage.max_conns must be >= 0")
		}
	default:
		return storage.Config{}, false, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
	return out, true, nil
}

// validateConfig is the hot-reload gate: a config that fails here never
// replaces the running one.
func validateConfig(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if _, err := mapWidgetConfig(cfg); err != nil {
		return err
	}
	if _, err := mapServerConfig(cfg); err != nil {
		return err
	}
	if _, _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if cfg.Logging.Telegram.RatePerSec < 0 {
		return errors.New("logging.telegram.rate_per_sec must be >= 0")
	}
	return nil
}
