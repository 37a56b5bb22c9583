package search

import (
	"strings"
	"time"
)

// DefaultLimit applies when a caller passes a non-positive limit.
const DefaultLimit = 200

const (
	SortStart = "start"
	SortLast  = "last"
)

// Options is a list query as received from the CLI or HTTP layer. Dates are
// calendar dates (YYYY-MM-DD) in local time.
type Options struct {
	Query     string
	StartDate string
	EndDate   string
	Project   string
	Sort      string
	Limit     int
}

// Filter is the store-level form of Options.
type Filter struct {
	Terms   []string
	StartMs *int64 // inclusive lower bound on start_ts_ms
	EndMs   *int64 // inclusive upper bound on start_ts_ms
	Project string
	Sort    string
	Limit   int
}

// Compile expands dates to millisecond bounds, splits the query into terms
// and normalizes sort and limit. Unparsable dates impose no bound.
func (o Options) Compile() Filter {
	f := Filter{
		Terms:   Terms(o.Query),
		Project: o.Project,
		Sort:    NormalizeSort(o.Sort),
		Limit:   NormalizeLimit(o.Limit),
	}
	if ms, ok := ParseDate(o.StartDate, false); ok {
		f.StartMs = &ms
	}
	if ms, ok := ParseDate(o.EndDate, true); ok {
		f.EndMs = &ms
	}
	return f
}

// ParseDate converts a YYYY-MM-DD calendar date in local time to the
// millisecond epoch of 00:00:00.000 that day, or of 23:59:59.000 when
// endOfDay is set.
func ParseDate(s string, endOfDay bool) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	d, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return 0, false
	}
	if endOfDay {
		d = time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, time.Local)
	}
	return d.UnixMilli(), true
}

// NormalizeSort maps sort aliases onto SortLast; anything else is SortStart.
func NormalizeSort(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "last", "end", "updated", "update":
		return SortLast
	}
	return SortStart
}

func NormalizeLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return n
}

// Terms splits a query on whitespace.
func Terms(q string) []string {
	return strings.Fields(q)
}

// Snippet extracts the text around the first case-insensitive occurrence of
// term, marking the match with >>> and <<<. Without a match the head of text
// is returned.
func Snippet(text, term string, contextChars int) string {
	runes := []rune(text)
	lowerRunes := []rune(strings.ToLower(text))
	qRunes := []rune(strings.ToLower(term))

	pos := -1
	if len(qRunes) > 0 && len(lowerRunes) == len(runes) {
		pos = indexRunes(lowerRunes, qRunes)
	}
	if pos < 0 {
		if len(runes) > contextChars*2 {
			return string(runes[:contextChars*2]) + "..."
		}
		return text
	}

	start := pos - contextChars
	if start < 0 {
		start = 0
	}
	end := pos + len(qRunes) + contextChars
	if end > len(runes) {
		end = len(runes)
	}
	prefix, suffix := "", ""
	if start > 0 {
		prefix = "..."
	}
	if end < len(runes) {
		suffix = "..."
	}
	return prefix + string(runes[start:pos]) +
		">>>" + string(runes[pos:pos+len(qRunes)]) + "<<<" +
		string(runes[pos+len(qRunes):end]) + suffix
}

func indexRunes(s, sub []rune) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}
