// Package models provides domain models for the analyst swarm.
package models

import (
	"strings"
)

// Signal is the qualitative reading attached to an indicator.
type Signal string

const (
	SignalBullish Signal = "bullish"
	SignalNeutral Signal = "neutral"
	SignalBearish Signal = "bearish"
)

// Normalize maps any unrecognized value to SignalNeutral.
func (s Signal) Normalize() Signal {
	switch s {
	case SignalBullish, SignalBearish:
		return s
	default:
		return SignalNeutral
	}
}

// Action is a voter-level recommendation.
type Action string

const (
	StrongBuy  Action = "STRONG_BUY"
	Buy        Action = "BUY"
	Hold       Action = "HOLD"
	Sell       Action = "SELL"
	StrongSell Action = "STRONG_SELL"
)

// Valid reports whether a is one of the five voter actions.
func (a Action) Valid() bool {
	switch a {
	case StrongBuy, Buy, Hold, Sell, StrongSell:
		return true
	}
	return false
}

// Indicator is one market metric as read for a single day.
type Indicator struct {
	Name        string  `json:"name" yaml:"name"`
	Value       float64 `json:"value" yaml:"value"`
	Signal      Signal  `json:"signal" yaml:"signal"`
	Timestamp   string  `json:"timestamp" yaml:"timestamp"`
	Source      string  `json:"source,omitempty" yaml:"source,omitempty"`
	URL         string  `json:"url,omitempty" yaml:"url,omitempty"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}

// Indicators maps indicator display name to its reading.
type Indicators map[string]Indicator

// Names returns the indicator names in no particular order.
func (is Indicators) Names() []string {
	names := make([]string, 0, len(is))
	for name := range is {
		names = append(names, name)
	}
	return names
}

// ByKey finds an indicator by normalized key, so "Rainbow Bands",
// "rainbow_bands" and "RAINBOW BANDS" all resolve to the same entry.
func (is Indicators) ByKey(key string) (Indicator, bool) {
	if ind, ok := is[key]; ok {
		return ind, true
	}
	want := Key(key)
	for name, ind := range is {
		if Key(name) == want {
			return ind, true
		}
	}
	return Indicator{}, false
}

// Key normalizes a display name into the directory-style key used on disk.
func Key(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
