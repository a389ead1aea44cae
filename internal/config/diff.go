package config

import (
	"reflect"
	"sort"
	"strings"

	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

// SummarizeConfigChange returns a sorted list of changed sections and safe
// structured attrs for logging. Secrets (bot token, DSN) only show up as
// "*_set" booleans.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Widget != newCfg.Widget {
		changed = append(changed, "widget")
		attrs = append(attrs,
			logx.String("widget.shop", newCfg.Widget.Shop),
			logx.String("widget.settings_poll", strings.TrimSpace(newCfg.Widget.SettingsPoll)),
			logx.String("widget.orders_poll", strings.TrimSpace(newCfg.Widget.OrdersPoll)),
			logx.Int("widget.viewport_width", newCfg.Widget.ViewportWidth),
			logx.String("widget.surface", newCfg.Widget.Surface),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logx.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Telegram.ChatID != newCfg.Telegram.ChatID ||
		oldCfg.Telegram.Mirror != newCfg.Telegram.Mirror ||
		oldCfg.Telegram.Token != newCfg.Telegram.Token {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
			logx.Bool("telegram.chat_set", newCfg.Telegram.ChatID != 0),
			logx.Bool("telegram.mirror", newCfg.Telegram.Mirror),
		)
	}

	if !reflect.DeepEqual(oldCfg.Server, newCfg.Server) {
		changed = append(changed, "server")
		attrs = append(attrs,
			logx.String("server.addr", newCfg.Server.Addr),
			logx.Int("server.cors_origins", len(newCfg.Server.CORSOrigins)),
			logx.Int("server.rate_limit", newCfg.Server.RateLimit),
			logx.Bool("server.pprof", newCfg.Server.Pprof),
		)
	}

	// Nil means disabled.
	var oS, nS StorageConfig
	if oldCfg.Storage != nil {
		oS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		nS = *newCfg.Storage
	}
	if oS != nS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nS.Path) != ""),
			logx.Bool("storage.dsn_set", strings.TrimSpace(nS.DSN) != ""),
		)
	}

	if oldCfg.Synth != newCfg.Synth {
		changed = append(changed, "synth")
		attrs = append(attrs, logx.Bool("synth.seeded", newCfg.Synth.Seed != 0))
	}

	sort.Strings(changed)
	return changed, attrs
}
