package printer

import (
	"fmt"
	"time"
)

// FormatBytes returns a human-readable byte size string.
// Examples: "0 B", "512 B", "1.5 KB", "700 MB".
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "0 B"
	}

	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)

	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// TimeAgo returns a human-readable relative time string in UTC.
// Examples: "5 seconds ago (UTC)", "2 minutes ago (UTC)", "3 days ago (UTC)".
func TimeAgo(t time.Time) string {
	return timeAgo(time.Now().UTC(), t.UTC())
}

func timeAgo(now, t time.Time) string {
	diff := now.Sub(t)
	if diff < 0 {
		return "in the future (UTC)"
	}

	return plural(diff) + " ago (UTC)"
}

// TimeUntil returns a human-readable duration until t, used for quota resets.
// Examples: "now", "in 40 seconds", "in 1 hour".
func TimeUntil(t time.Time) string {
	diff := time.Until(t)
	if diff <= 0 {
		return "now"
	}

	return "in " + plural(diff)
}

func plural(d time.Duration) string {
	unit, n := "second", int(d.Seconds())
	switch {
	case d >= 24*time.Hour:
		unit, n = "day", int(d.Hours()/24)
	case d >= time.Hour:
		unit, n = "hour", int(d.Hours())
	case d >= time.Minute:
		unit, n = "minute", int(d.Minutes())
	}

	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FormatTimestamp returns a formatted timestamp string in UTC.
// Format: "2006-01-02 15:04:05 UTC".
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}
