package printer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	tests := map[string]struct {
		input int64
		exp   string
	}{
		"zero bytes":                           {input: 0, exp: "0 B"},
		"negative bytes should return zero":    {input: -100, exp: "0 B"},
		"small bytes":                          {input: 512, exp: "512 B"},
		"one kilobyte":                         {input: 1024, exp: "1.0 KB"},
		"kilobytes":                            {input: 1536, exp: "1.5 KB"},
		"hundreds of megabytes":                {input: 700 * 1024 * 1024, exp: "700.0 MB"},
		"gigabytes should be the biggest unit": {input: 2048 * 1024 * 1024 * 1024, exp: "2048.0 GB"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, FormatBytes(test.input))
		})
	}
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		time     time.Time
		expected string
	}{
		"1 second ago":   {time: now.Add(-1 * time.Second), expected: "1 second ago (UTC)"},
		"30 seconds ago": {time: now.Add(-30 * time.Second), expected: "30 seconds ago (UTC)"},
		"1 minute ago":   {time: now.Add(-1 * time.Minute), expected: "1 minute ago (UTC)"},
		"45 minutes ago": {time: now.Add(-45 * time.Minute), expected: "45 minutes ago (UTC)"},
		"5 hours ago":    {time: now.Add(-5 * time.Hour), expected: "5 hours ago (UTC)"},
		"1 day ago":      {time: now.Add(-24 * time.Hour), expected: "1 day ago (UTC)"},
		"7 days ago":     {time: now.Add(-7 * 24 * time.Hour), expected: "7 days ago (UTC)"},
		"future time":    {time: now.Add(5 * time.Minute), expected: "in the future (UTC)"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, timeAgo(now, test.time))
		})
	}
}

func TestTimeUntil(t *testing.T) {
	assert.Equal(t, "now", TimeUntil(time.Now().Add(-time.Minute)))
	assert.Equal(t, "in 2 hours", TimeUntil(time.Now().Add(2*time.Hour+30*time.Second)))
}

func TestFormatTimestamp(t *testing.T) {
	tests := map[string]struct {
		time     time.Time
		expected string
	}{
		"standard timestamp": {
			time:     time.Date(2026, 1, 30, 10, 15, 30, 0, time.UTC),
			expected: "2026-01-30 10:15:30 UTC",
		},
		"timestamp with different timezone gets converted to UTC": {
			time:     time.Date(2026, 1, 30, 10, 15, 30, 0, time.FixedZone("EST", -5*3600)),
			expected: "2026-01-30 15:15:30 UTC",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, FormatTimestamp(test.time))
		})
	}
}
