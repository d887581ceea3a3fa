package config

import (
	"strconv"
	"strings"
	"time"
)

// IntervalAt returns the polling interval effective at t, switching to
// the quiet interval inside the configured quiet-hours window.
func (p PollConfig) IntervalAt(t time.Time) time.Duration {
	if p.QuietInterval > 0 && inHourRange(p.QuietHours, t.Hour()) {
		return p.QuietInterval
	}
	return p.Interval
}

// inHourRange reports whether hour falls in a "start-end" range.
// Ranges may wrap midnight ("23-7" covers 23:00 through 06:59); the
// end hour is exclusive. Malformed specs match nothing.
func inHourRange(spec string, hour int) bool {
	start, end, ok := parseHourRange(spec)
	if !ok || start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

func parseHourRange(spec string) (start, end int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(spec), "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	start, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || start < 0 || start > 23 {
		return 0, 0, false
	}
	end, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || end < 0 || end > 23 {
		return 0, 0, false
	}
	return start, end, true
}
