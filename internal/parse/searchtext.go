package parse

import (
	"strings"
	"unicode/utf8"
)

// searchText accumulates newline-joined searchable text up to a fixed number
// of characters. Text past the budget is dropped silently.
type searchText struct {
	b     strings.Builder
	n     int // characters written, separators included
	limit int
}

func newSearchText(limit int) *searchText {
	return &searchText{limit: limit}
}

func (s *searchText) add(text string) {
	if text == "" || s.n >= s.limit {
		return
	}
	if s.n > 0 {
		s.b.WriteByte('\n')
		s.n++
		if s.n >= s.limit {
			return
		}
	}
	remaining := s.limit - s.n
	if utf8.RuneCountInString(text) > remaining {
		text = truncateRunes(text, remaining)
	}
	s.b.WriteString(text)
	s.n += utf8.RuneCountInString(text)
}

func (s *searchText) String() string {
	return s.b.String()
}

// truncateRunes returns at most n characters of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
