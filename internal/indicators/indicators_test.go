package indicators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"

	"crypto-swarm/internal/models"
	"crypto-swarm/pkg/utils"
)

func fastRetry() utils.RetryConfig {
	return utils.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, BackoffFactor: 2}
}

func TestClassifyThresholds(t *testing.T) {
	cases := []struct {
		name  string
		value float64
		want  models.Signal
	}{
		{"CBBI", 0.8, models.SignalBearish},
		{"cbbi", 0.3, models.SignalBullish},
		{"CBBI", 0.5, models.SignalNeutral},
		{"Rainbow Bands", 7, models.SignalBearish},
		{"rainbow_bands", 2, models.SignalBullish},
		{"Rainbow Bands", 5, models.SignalNeutral},
		{"Pi Cycle", 0.95, models.SignalBearish},
		{"pi_cycle", 0.5, models.SignalBullish},
		{"Fear Greed", 75, models.SignalBearish},
		{"Fear Greed", 20, models.SignalBullish},
		{"Fear Greed", 50, models.SignalNeutral},
	}
	for _, tc := range cases {
		if got := Classify(tc.name, tc.value); got != tc.want {
			t.Errorf("Classify(%q, %v) = %s, want %s", tc.name, tc.value, got, tc.want)
		}
	}
}

func TestParseRainbowCSV(t *testing.T) {
	data := []byte("date,price,b1,b2,b3,b4,b5,b6,b7,b8\n" +
		"2025-01-01,90000,10000,20000,30000,40000,50000,60000,70000,80000\n" +
		"2025-01-02,45000,10000,20000,30000,40000,50000,60000,70000,80000\n")

	band, ts, err := ParseRainbowCSV(data)
	if err != nil {
		t.Fatal(err)
	}
	if band != 4 {
		t.Errorf("band = %d, want 4", band)
	}
	if ts.Format("2006-01-02") != "2025-01-02" {
		t.Errorf("timestamp = %v", ts)
	}

	if _, _, err := ParseRainbowCSV([]byte("header only\n")); err == nil {
		t.Error("expected an error without data rows")
	}
	if _, _, err := ParseRainbowCSV([]byte("h\n2025-01-02,notaprice\n")); err == nil {
		t.Error("expected an error for a bad price")
	}
}

func TestCacheTTL(t *testing.T) {
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	c := NewCache(time.Hour)
	c.now = func() time.Time { return now }

	c.Set("Rainbow Bands", "2025-01-02", models.Indicator{Name: "Rainbow Bands", Value: 5})
	if _, ok := c.Get("rainbow_bands", "2025-01-02"); !ok {
		t.Fatal("expected a hit under the normalized key")
	}
	if _, ok := c.Get("Rainbow Bands", "2025-01-03"); ok {
		t.Fatal("a different day must miss")
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get("Rainbow Bands", "2025-01-02"); ok {
		t.Fatal("expired entry should miss")
	}
	if CacheKey("Pi Cycle", "2025-01-02") != "pi_cycle_2025-01-02" {
		t.Errorf("CacheKey = %s", CacheKey("Pi Cycle", "2025-01-02"))
	}
}

func TestFetchAllWithServer(t *testing.T) {
	var cbbiCalls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/cbbi", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&cbbiCalls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"score": 0.82}`))
	})
	mux.HandleFunc("/rainbow", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("date,price,b1,b2\n2025-01-02,100,10,20\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	fixed := time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC)
	getter := NewHTTPGetter(time.Second, fastRetry(), zerolog.Nop())
	sources := []Source{
		&CBBISource{URL: srv.URL + "/cbbi", Getter: getter, Now: func() time.Time { return fixed }},
		&RainbowSource{URL: srv.URL + "/rainbow", Getter: getter},
		&PiCycleSource{Now: func() time.Time { return fixed }},
	}
	cache := NewCache(0)
	f := NewFetcher(sources, cache, zerolog.Nop())

	results, err := f.FetchAll(context.Background(), "2025-01-02")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}

	cbbi := results[0]
	if cbbi.Fallback || cbbi.Indicator.Value != 0.82 || cbbi.Indicator.Signal != models.SignalBearish {
		t.Errorf("cbbi result = %+v", cbbi)
	}
	if atomic.LoadInt32(&cbbiCalls) != 2 {
		t.Errorf("expected one retry after 429, got %d calls", cbbiCalls)
	}

	if results[1].Indicator.Value != 2 || results[1].Indicator.Signal != models.SignalBullish {
		t.Errorf("rainbow result = %+v", results[1].Indicator)
	}

	if results[2].Indicator.Value != 0.52 {
		t.Errorf("pi cycle = %v, want 0.52", results[2].Indicator.Value)
	}

	// Second run is served from the cache.
	again, _ := f.FetchAll(context.Background(), "2025-01-02")
	if !again[0].Cached || atomic.LoadInt32(&cbbiCalls) != 2 {
		t.Error("expected the cached CBBI reading")
	}

	set := Indicators(results)
	if _, ok := set.ByKey("rainbow_bands"); !ok {
		t.Error("indicator set lost Rainbow Bands")
	}
}

func TestFetchFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	getter := NewHTTPGetter(time.Second, fastRetry(), zerolog.Nop())
	f := NewFetcher([]Source{
		&CBBISource{URL: srv.URL, Getter: getter},
		&RainbowSource{URL: srv.URL, Getter: getter},
	}, NewCache(0), zerolog.Nop())

	results, err := f.FetchAll(context.Background(), "2025-01-02")
	if err != nil {
		t.Fatal(err)
	}
	if !results[0].Fallback || results[0].Indicator.Value != 0.5 || results[0].Indicator.Signal != models.SignalNeutral {
		t.Errorf("cbbi fallback = %+v", results[0])
	}
	if !results[1].Fallback || results[1].Indicator.Value != 4 {
		t.Errorf("rainbow fallback = %+v", results[1])
	}
}

func TestMockGeneratorDeterministic(t *testing.T) {
	a := NewMockGenerator(7).Generate("2025-01-02")
	b := NewMockGenerator(7).Generate("2025-01-02")
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed produced different indicators")
	}
	if a[0].Timestamp != "2025-01-02T12:00:00Z" || a[0].Source != "mock_data" {
		t.Errorf("mock envelope = %+v", a[0])
	}
}

// Property: Mock readings stay inside their documented ranges.
func TestProperty_MockRanges(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("Mock values are in range", prop.ForAll(
		func(seed int64) bool {
			inds := NewMockGenerator(seed).Generate("2025-01-02")
			cbbi, rainbow, pi := inds[0].Value, inds[1].Value, inds[2].Value
			return cbbi >= 0.2 && cbbi <= 0.9 &&
				rainbow >= 1 && rainbow <= 9 &&
				pi >= 0.3 && pi <= 0.98
		},
		gen.Int64(),
	))

	properties.TestingRun(t)
}
