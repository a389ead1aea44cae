package storage

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mishka20003-proger/live-sales-notifications/internal/settings"
)

func encodeSettings(s settings.Settings) (string, error) {
	b, err := json.Marshal(s)
	return string(b), err
}

// decodeSettings starts from defaults so rows written before a field
// existed still validate.
func decodeSettings(raw string) (settings.Settings, error) {
	s := settings.Default()
	err := json.Unmarshal([]byte(raw), &s)
	return s, err
}

func encodePrices(p []decimal.Decimal) (string, error) {
	if p == nil {
		p = []decimal.Decimal{}
	}
	b, err := json.Marshal(p)
	return string(b), err
}

func decodePrices(raw string) ([]decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []decimal.Decimal
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
