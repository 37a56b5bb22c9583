package parse

import (
	"encoding/json"
	"strings"
	"time"
)

// msThreshold separates second-based epochs from millisecond-based ones.
const msThreshold = 1e12

var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04Z07:00",
}

// layouts without an offset are read as UTC
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp converts a log timestamp (epoch seconds, epoch milliseconds
// or an ISO-8601 string) to milliseconds since the epoch. The second return
// value is false when the value is missing or unreadable.
func ParseTimestamp(v any) (int64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return epochMillis(t), true
	case float32:
		return epochMillis(float64(t)), true
	case int:
		return epochMillis(float64(t)), true
	case int64:
		if t > msThreshold {
			return t, true
		}
		return t * 1000, true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return ParseTimestamp(i)
		}
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return epochMillis(f), true
	case string:
		return parseTimestampString(t)
	}
	return 0, false
}

func epochMillis(f float64) int64 {
	if f > msThreshold {
		return int64(f)
	}
	return int64(f * 1000)
}

func parseTimestampString(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// bounds tracks the earliest and latest timestamps seen in a file.
type bounds struct {
	start, end int64
	seen       bool
}

func (b *bounds) observe(ms int64) {
	if !b.seen {
		b.start, b.end, b.seen = ms, ms, true
		return
	}
	if ms < b.start {
		b.start = ms
	}
	if ms > b.end {
		b.end = ms
	}
}
