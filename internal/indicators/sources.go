package indicators

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crypto-swarm/internal/models"
)

// Default endpoints.
const (
	DefaultCBBIURL    = "https://ccbitcoinindex.appspot.com/api/score"
	DefaultRainbowURL = "https://api.blockchaincenter.net/v1/rainbow"
)

// Source produces one indicator reading for a day.
type Source interface {
	Name() string
	Fetch(ctx context.Context, date string) (models.Indicator, error)
	// Fallback is the neutral reading used when Fetch fails.
	Fallback(date string) models.Indicator
}

// Getter is the HTTP dependency of the remote sources.
type Getter interface {
	Get(ctx context.Context, url string) (Response, error)
}

func newIndicator(name string, value float64, ts time.Time) models.Indicator {
	return models.Indicator{
		Name:      name,
		Value:     value,
		Signal:    Classify(name, value),
		Timestamp: ts.Format(time.RFC3339),
	}
}

// CBBISource reads the Crypto Bull/Bear Index score.
type CBBISource struct {
	URL    string
	Getter Getter
	Now    func() time.Time
}

func (s *CBBISource) Name() string { return NameCBBI }

func (s *CBBISource) Fetch(ctx context.Context, date string) (models.Indicator, error) {
	resp, err := s.Getter.Get(ctx, s.URL)
	if err != nil {
		return models.Indicator{}, err
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return models.Indicator{}, fmt.Errorf("decode cbbi: %w", err)
	}

	value, err := numberField(payload, "score")
	if err != nil {
		return models.Indicator{}, fmt.Errorf("decode cbbi: %w", err)
	}

	ind := newIndicator(NameCBBI, value, clock(s.Now)())
	ind.Source = "ccbitcoinindex"
	ind.URL = s.URL
	return ind, nil
}

func (s *CBBISource) Fallback(date string) models.Indicator {
	return newIndicator(NameCBBI, 0.5, clock(s.Now)())
}

// RainbowSource locates the latest BTC price within the Rainbow Chart bands.
type RainbowSource struct {
	URL    string
	Getter Getter
	Now    func() time.Time
}

func (s *RainbowSource) Name() string { return NameRainbowBands }

func (s *RainbowSource) Fetch(ctx context.Context, date string) (models.Indicator, error) {
	resp, err := s.Getter.Get(ctx, s.URL)
	if err != nil {
		return models.Indicator{}, err
	}

	band, ts, err := ParseRainbowCSV(resp.Body)
	if err != nil {
		return models.Indicator{}, err
	}

	ind := newIndicator(NameRainbowBands, float64(band), ts)
	ind.Source = "blockchaincenter"
	ind.URL = s.URL
	return ind, nil
}

func (s *RainbowSource) Fallback(date string) models.Indicator {
	return newIndicator(NameRainbowBands, 4, clock(s.Now)())
}

// ParseRainbowCSV reads the band position from the last row: column 0 is the
// date, column 1 the price and columns 2 through 9 the band floors from
// bottom to top. The band is the highest floor the price exceeds.
func ParseRainbowCSV(data []byte) (int, time.Time, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("parse rainbow csv: %w", err)
	}
	if len(rows) < 2 {
		return 0, time.Time{}, fmt.Errorf("parse rainbow csv: no data rows")
	}

	latest := rows[len(rows)-1]
	if len(latest) < 2 {
		return 0, time.Time{}, fmt.Errorf("parse rainbow csv: short row")
	}

	ts, err := time.Parse("2006-01-02", strings.TrimSpace(latest[0]))
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("parse rainbow date: %w", err)
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(latest[1]), 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("parse rainbow price: %w", err)
	}

	band := 1
	for i := 2; i < 10 && i < len(latest); i++ {
		floor, err := strconv.ParseFloat(strings.TrimSpace(latest[i]), 64)
		if err != nil {
			return 0, time.Time{}, fmt.Errorf("parse rainbow band %d: %w", i-1, err)
		}
		if price > floor {
			band = i - 1
		}
	}
	return band, ts, nil
}

// PiCycleSource produces a synthetic Pi Cycle ratio of 0.5 + day-of-month/100
// until a moving-average price feed is wired in.
type PiCycleSource struct {
	Now func() time.Time
}

func (s *PiCycleSource) Name() string { return NamePiCycle }

func (s *PiCycleSource) Fetch(_ context.Context, date string) (models.Indicator, error) {
	now := clock(s.Now)()
	day := now.Day()
	if d, err := time.Parse("2006-01-02", date); err == nil {
		day = d.Day()
	}
	ind := newIndicator(NamePiCycle, 0.5+float64(day)/100, now)
	ind.Source = "synthetic"
	ind.Description = "Ratio of the 111-day MA to twice the 350-day MA"
	return ind, nil
}

func (s *PiCycleSource) Fallback(date string) models.Indicator {
	return newIndicator(NamePiCycle, 0.7, clock(s.Now)())
}

func clock(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

func numberField(payload map[string]interface{}, field string) (float64, error) {
	raw, ok := payload[field]
	if !ok {
		return 0, fmt.Errorf("missing %q", field)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("field %q has type %T", field, raw)
	}
}
