package config

// Config is the salespop config file. All durations are Go duration strings
// (e.g. "500ms", "10s", "1m").
type Config struct {
	Widget   WidgetConfig   `json:"widget"`
	Logging  LoggingConfig  `json:"logging"`
	Telegram TelegramConfig `json:"telegram"`
	Server   ServerConfig   `json:"server"`
	Storage  *StorageConfig `json:"storage,omitempty"`
	Synth    SynthConfig    `json:"synth"`
}

// WidgetConfig drives the `watch` command: which feed to poll and how the
// simulated storefront looks.
//
// Defaults (when fields are omitted/zero):
//   - settings_poll: "10s"
//   - orders_poll: "15s"
//
// Poll intervals must be whole seconds.
//   - request_timeout: "10s"
//   - viewport_width: 1280
//   - narrow_width: 768
//   - surface: "console"
//   - columns: 80
type WidgetConfig struct {
	Shop    string `json:"shop"`
	BaseURL string `json:"base_url"`

	SettingsPoll   string `json:"settings_poll,omitempty"`
	OrdersPoll     string `json:"orders_poll,omitempty"`
	RequestTimeout string `json:"request_timeout,omitempty"`

	// ViewportWidth is the simulated device width in CSS pixels. Widths
	// below NarrowWidth count as mobile for hideOnMobile.
	ViewportWidth int `json:"viewport_width,omitempty"`
	NarrowWidth   int `json:"narrow_width,omitempty"`

	// Surface is "console" (terminal toast) or "none" (headless; useful
	// with the Telegram mirror).
	Surface string `json:"surface,omitempty"`
	Columns int    `json:"columns,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards log lines at or above MinLevel to telegram.chat_id.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// TelegramConfig holds the bot used for the log sink and the notification
// mirror. The token is never logged.
type TelegramConfig struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
	Mirror bool   `json:"mirror"`
}

// ServerConfig controls the `serve` command.
//
// Defaults:
//   - addr: ":8080"
//   - rate_limit: 0 (disabled), rate_window: "1m"
//   - shutdown_timeout: "5s"
type ServerConfig struct {
	Addr        string   `json:"addr,omitempty"`
	CORSOrigins []string `json:"cors_origins,omitempty"`

	RateLimit  int    `json:"rate_limit,omitempty"`
	RateWindow string `json:"rate_window,omitempty"`

	ReadTimeout     string `json:"read_timeout,omitempty"`
	WriteTimeout    string `json:"write_timeout,omitempty"`
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`

	// Pprof mounts the runtime profiler under /debug.
	Pprof bool `json:"pprof,omitempty"`
}

// StorageConfig controls the proxy's persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/salespop.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"` // postgres; do not log
	BusyTimeout string `json:"busy_timeout,omitempty"`
	MaxConns    int    `json:"max_conns,omitempty"`
}

// SynthConfig seeds the fake-order generator. Seed 0 means a random seed.
type SynthConfig struct {
	Seed uint64 `json:"seed,omitempty"`
}
