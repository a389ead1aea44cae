package settings

import (
	"strings"

	logx "github.com/mishka20003-proger/live-sales-notifications/pkg/logx"
)

// Change is a bitmask describing how a freshly fetched configuration differs
// from the last applied one.
type Change uint16

const (
	// Disabled: enabled went true -> false.
	Disabled Change = 1 << iota
	// Enabled: enabled went false -> true.
	Enabled
	// DataSourceChanged: real <-> fake.
	DataSourceChanged
	// IntervalChanged: the effective interval moved while enabled.
	IntervalChanged
	// AppearanceChanged: position or size.
	AppearanceChanged
	// CapacityChanged: maxDisplayed.
	CapacityChanged
	// MobileRuleChanged: hideOnMobile.
	MobileRuleChanged
	// OtherChanged: durations, content flags, initial delay, inactive interval.
	OtherChanged
)

func (c Change) Has(flag Change) bool { return c&flag != 0 }

func (c Change) None() bool { return c == 0 }

var changeNames = []struct {
	flag Change
	name string
}{
	{Disabled, "disabled"},
	{Enabled, "enabled"},
	{DataSourceChanged, "data_source"},
	{IntervalChanged, "interval"},
	{AppearanceChanged, "appearance"},
	{CapacityChanged, "capacity"},
	{MobileRuleChanged, "mobile_rule"},
	{OtherChanged, "other"},
}

func (c Change) String() string {
	if c == 0 {
		return "none"
	}
	parts := make([]string, 0, len(changeNames))
	for _, n := range changeNames {
		if c.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, ",")
}

// Compare diffs prev against next along the axes the scheduler reacts to.
func Compare(prev, next Settings) Change {
	var c Change
	switch {
	case prev.Enabled && !next.Enabled:
		c |= Disabled
	case !prev.Enabled && next.Enabled:
		c |= Enabled
	}
	if prev.DataSource != next.DataSource {
		c |= DataSourceChanged
	}
	if next.Enabled && prev.EffectiveInterval() != next.EffectiveInterval() {
		c |= IntervalChanged
	}
	if prev.Position != next.Position || prev.Size != next.Size {
		c |= AppearanceChanged
	}
	if prev.MaxDisplayed != next.MaxDisplayed {
		c |= CapacityChanged
	}
	if prev.HideOnMobile != next.HideOnMobile {
		c |= MobileRuleChanged
	}

	// Whatever is left after the named axes.
	rest := prev
	rest.Enabled = next.Enabled
	rest.DataSource = next.DataSource
	rest.Position = next.Position
	rest.Size = next.Size
	rest.MaxDisplayed = next.MaxDisplayed
	rest.HideOnMobile = next.HideOnMobile
	if next.Enabled {
		if next.DataSource == SourceFake {
			rest.FakeIntervalMs = next.FakeIntervalMs
		} else {
			rest.DisplayIntervalMs = next.DisplayIntervalMs
		}
	}
	if rest != next {
		c |= OtherChanged
	}
	return c
}

// Fields returns safe structured log attributes for a settings snapshot.
func Fields(s Settings) []logx.Field {
	return []logx.Field{
		logx.Bool("enabled", s.Enabled),
		logx.String("position", string(s.Position)),
		logx.String("size", string(s.Size)),
		logx.String("data_source", string(s.DataSource)),
		logx.Duration("interval", s.EffectiveInterval()),
		logx.Duration("duration", s.DisplayDuration()),
		logx.Int("max_displayed", int(s.MaxDisplayed)),
	}
}
