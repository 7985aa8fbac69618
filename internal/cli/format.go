package cli

import (
	"fmt"
	"strings"
	"time"
)

// FormatScore formats a 0-100 score with one decimal place.
func FormatScore(score float64) string {
	return fmt.Sprintf("%.1f", score)
}

// FormatRatio formats a 0-1 ratio as a whole percentage.
func FormatRatio(ratio float64) string {
	return fmt.Sprintf("%.0f%%", ratio*100)
}

// FormatValue formats an indicator value without trailing zeros.
func FormatValue(v float64) string {
	s := strings.TrimRight(fmt.Sprintf("%.4f", v), "0")
	return strings.TrimSuffix(s, ".")
}

// FormatTimestamp shortens an RFC3339 timestamp to minutes in UTC. Other
// values are returned unchanged.
func FormatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

// TruncateString truncates a string to max runes with ellipsis.
func TruncateString(s string, maxLen int) string {
	if runeLen(s) <= maxLen {
		return s
	}
	r := []rune(s)
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
