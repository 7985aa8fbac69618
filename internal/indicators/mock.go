package indicators

import (
	"math"
	"math/rand"

	"crypto-swarm/internal/models"
)

// RainbowBandNames lists band labels from band 1 (lowest) to band 9.
var RainbowBandNames = []string{
	"Basically a Fire Sale",
	"Buy",
	"Accumulate",
	"Still Cheap",
	"HODL",
	"Is This a Bubble?",
	"FOMO Intensifies",
	"Sell. Seriously, Sell",
	"Maximum Bubble",
}

// MockGenerator produces plausible indicator readings for offline runs.
// The same seed always yields the same sequence.
type MockGenerator struct {
	rng *rand.Rand
}

// NewMockGenerator creates a generator from seed.
func NewMockGenerator(seed int64) *MockGenerator {
	return &MockGenerator{rng: rand.New(rand.NewSource(seed))}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (g *MockGenerator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

// Generate returns CBBI, Rainbow Bands and Pi Cycle readings stamped at noon
// UTC on date. With 70% probability the secondary signals lean the same way
// as CBBI.
func (g *MockGenerator) Generate(date string) []models.Indicator {
	ts := date + "T12:00:00Z"

	cbbiValue := round2(g.uniform(0.2, 0.9))
	cbbi := models.Indicator{
		Name:        NameCBBI,
		Value:       cbbiValue,
		Signal:      Classify(NameCBBI, cbbiValue),
		Timestamp:   ts,
		Source:      "mock_data",
		URL:         "https://cbbi.info/",
		Description: "Crypto Bull/Bear Index - A composite of different indicators to gauge market sentiment",
	}

	band := g.rng.Intn(9) + 1
	rainbow := models.Indicator{
		Name:        NameRainbowBands,
		Value:       float64(band),
		Signal:      Classify(NameRainbowBands, float64(band)),
		Timestamp:   ts,
		Source:      "mock_data",
		URL:         "https://www.blockchaincenter.net/en/bitcoin-rainbow-chart/",
		Description: "Bitcoin Rainbow Price Chart band: " + RainbowBandNames[band-1],
	}

	piValue := round2(g.uniform(0.3, 0.98))
	pi := models.Indicator{
		Name:        NamePiCycle,
		Value:       piValue,
		Signal:      Classify(NamePiCycle, piValue),
		Timestamp:   ts,
		Source:      "mock_data",
		URL:         "https://www.lookintobitcoin.com/charts/pi-cycle-top-indicator/",
		Description: "Pi Cycle Top Indicator - identifies market cycle tops based on the relationship between two moving averages",
	}

	if g.rng.Float64() < 0.7 {
		switch cbbi.Signal {
		case models.SignalBullish:
			rainbow.Signal = g.pick(models.SignalBullish, models.SignalNeutral)
			pi.Signal = g.pick(models.SignalBullish, models.SignalNeutral)
		case models.SignalBearish:
			rainbow.Signal = g.pick(models.SignalBearish, models.SignalNeutral)
			pi.Signal = g.pick(models.SignalBearish, models.SignalNeutral)
		}
	}

	return []models.Indicator{cbbi, rainbow, pi}
}

func (g *MockGenerator) pick(a, b models.Signal) models.Signal {
	if g.rng.Intn(2) == 0 {
		return a
	}
	return b
}
