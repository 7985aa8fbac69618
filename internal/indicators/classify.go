// Package indicators fetches, classifies and mocks the daily market indicators.
package indicators

import (
	"crypto-swarm/internal/models"
	"crypto-swarm/pkg/utils"
)

// Display names of the tracked indicators.
const (
	NameCBBI         = "CBBI"
	NameRainbowBands = "Rainbow Bands"
	NamePiCycle      = "Pi Cycle"
)

type thresholds struct {
	bearishAt float64
	bullishAt float64
}

var signalThresholds = map[string]thresholds{
	"cbbi":          {bearishAt: 0.8, bullishAt: 0.3},
	"rainbow_bands": {bearishAt: 7, bullishAt: 2},
	"pi_cycle":      {bearishAt: 0.95, bullishAt: 0.5},
}

var defaultThresholds = thresholds{bearishAt: 70, bullishAt: 30}

// Classify derives a signal from an indicator value. Names are matched by
// key, so "Rainbow Bands" and "rainbow_bands" share thresholds.
func Classify(name string, value float64) models.Signal {
	th, ok := signalThresholds[models.Key(name)]
	if !ok {
		th = defaultThresholds
	}
	switch {
	case value >= th.bearishAt:
		return models.SignalBearish
	case value <= th.bullishAt:
		return models.SignalBullish
	default:
		return models.SignalNeutral
	}
}

// DisplayName maps a directory key back to its display name. Unknown keys
// are title-cased.
func DisplayName(key string) string {
	for _, name := range []string{NameCBBI, NameRainbowBands, NamePiCycle} {
		if models.Key(name) == models.Key(key) {
			return name
		}
	}
	return utils.Title(key)
}
