package settings

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid marks a configuration that failed validation. Callers keep the
// last known good configuration when they see it.
var ErrInvalid = errors.New("invalid settings")

type Position string

const (
	BottomLeft  Position = "bottom-left"
	BottomRight Position = "bottom-right"
	TopCenter   Position = "top-center"
)

type Size string

const (
	Small  Size = "small"
	Medium Size = "medium"
	Large  Size = "large"
)

type DataSource string

const (
	SourceReal DataSource = "real"
	SourceFake DataSource = "fake"
)

// Settings is the live widget configuration served by the settings resource.
//
// Durations are milliseconds on the wire.
type Settings struct {
	Enabled           bool       `json:"enabled"`
	Position          Position   `json:"position"`
	DisplayDurationMs uint       `json:"displayDurationMs"`
	DisplayIntervalMs uint       `json:"displayIntervalMs"`
	MaxDisplayed      uint       `json:"maxDisplayed"`
	DataSource        DataSource `json:"dataSource"`
	FakeIntervalMs    uint       `json:"fakeIntervalMs"`
	Size              Size       `json:"size"`
	ShowCustomerName  bool       `json:"showCustomerName"`
	ShowOrderNumber   bool       `json:"showOrderNumber"`
	ShowTotalPrice    bool       `json:"showTotalPrice"`
	InitialDelayMs    uint       `json:"initialDelayMs"`
	HideOnMobile      bool       `json:"hideOnMobile"`
}

// DisplayFlags are the content toggles consumed by the renderer.
type DisplayFlags struct {
	CustomerName bool
	OrderNumber  bool
	TotalPrice   bool
}

// Default mirrors what the settings resource returns for a shop that never
// saved anything.
func Default() Settings {
	return Settings{
		Enabled:           true,
		Position:          BottomLeft,
		DisplayDurationMs: 5000,
		DisplayIntervalMs: 10000,
		MaxDisplayed:      10,
		DataSource:        SourceReal,
		FakeIntervalMs:    10000,
		Size:              Medium,
		ShowCustomerName:  true,
		ShowOrderNumber:   true,
		ShowTotalPrice:    true,
		InitialDelayMs:    5000,
		HideOnMobile:      false,
	}
}

// MaxDurationMs caps every millisecond field at 24h.
const MaxDurationMs uint = 24 * 60 * 60 * 1000

func (s Settings) Validate() error {
	switch s.Position {
	case BottomLeft, BottomRight, TopCenter:
	default:
		return fmt.Errorf("%w: position %q", ErrInvalid, s.Position)
	}
	switch s.Size {
	case Small, Medium, Large:
	default:
		return fmt.Errorf("%w: size %q", ErrInvalid, s.Size)
	}
	switch s.DataSource {
	case SourceReal, SourceFake:
	default:
		return fmt.Errorf("%w: dataSource %q", ErrInvalid, s.DataSource)
	}
	for _, f := range []struct {
		name string
		v    uint
	}{
		{"displayDurationMs", s.DisplayDurationMs},
		{"displayIntervalMs", s.DisplayIntervalMs},
		{"fakeIntervalMs", s.FakeIntervalMs},
		{"initialDelayMs", s.InitialDelayMs},
	} {
		if f.v == 0 || f.v > MaxDurationMs {
			return fmt.Errorf("%w: %s must be in [1, %d]", ErrInvalid, f.name, MaxDurationMs)
		}
	}
	if s.MaxDisplayed < 1 {
		return fmt.Errorf("%w: maxDisplayed must be >= 1", ErrInvalid)
	}
	return nil
}

// EffectiveInterval is the spacing between notifications for the current
// data source.
func (s Settings) EffectiveInterval() time.Duration {
	if s.DataSource == SourceFake {
		return ms(s.FakeIntervalMs)
	}
	return ms(s.DisplayIntervalMs)
}

func (s Settings) DisplayDuration() time.Duration { return ms(s.DisplayDurationMs) }
func (s Settings) InitialDelay() time.Duration    { return ms(s.InitialDelayMs) }

func (s Settings) Flags() DisplayFlags {
	return DisplayFlags{
		CustomerName: s.ShowCustomerName,
		OrderNumber:  s.ShowOrderNumber,
		TotalPrice:   s.ShowTotalPrice,
	}
}

// Visible reports whether the widget may show anything on a viewport of the
// given class.
func (s Settings) Visible(narrow bool) bool {
	return s.Enabled && !(s.HideOnMobile && narrow)
}

func ms(v uint) time.Duration { return time.Duration(v) * time.Millisecond }
