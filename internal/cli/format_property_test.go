package cli

import (
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Property: Score formatting round-trips to one decimal place
//
// For any score in [0, 100], FormatScore should:
// 1. Have exactly one decimal place
// 2. Parse back to within 0.05 of the input
func TestProperty_ScoreFormatting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	properties.Property("FormatScore keeps one decimal", prop.ForAll(
		func(score float64) bool {
			formatted := FormatScore(score)

			parts := strings.Split(formatted, ".")
			if len(parts) != 2 || len(parts[1]) != 1 {
				t.Logf("Expected one decimal for %f, got %s", score, formatted)
				return false
			}

			parsed, err := strconv.ParseFloat(formatted, 64)
			if err != nil {
				return false
			}
			return math.Abs(parsed-score) <= 0.05+1e-9
		},
		gen.Float64Range(0, 100),
	))

	properties.TestingRun(t)
}

// Property: Truncation never exceeds the limit
//
// For any string and limit >= 4, TruncateString returns at most limit runes,
// and returns the input unchanged when it already fits.
func TestProperty_TruncateString(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())
	properties := gopter.NewProperties(parameters)

	properties.Property("TruncateString respects the limit", prop.ForAll(
		func(s string, limit int) bool {
			out := TruncateString(s, limit)
			if runeLen(out) > limit {
				return false
			}
			if runeLen(s) <= limit {
				return out == s
			}
			return strings.HasSuffix(out, "...")
		},
		gen.AnyString(),
		gen.IntRange(4, 60),
	))

	properties.TestingRun(t)
}

func TestFormatValueAndTimestamp(t *testing.T) {
	for in, want := range map[float64]string{0.65: "0.65", 2: "2", 0.12346: "0.1235", 0: "0"} {
		if got := FormatValue(in); got != want {
			t.Errorf("FormatValue(%v) = %q, want %q", in, got, want)
		}
	}
	if got := FormatTimestamp("2025-03-01T08:30:00Z"); got != "2025-03-01 08:30 UTC" {
		t.Errorf("FormatTimestamp() = %q", got)
	}
	if got := FormatTimestamp("yesterday"); got != "yesterday" {
		t.Errorf("FormatTimestamp(invalid) = %q", got)
	}
	if got := FormatRatio(0.5); got != "50%" {
		t.Errorf("FormatRatio() = %q", got)
	}
}
