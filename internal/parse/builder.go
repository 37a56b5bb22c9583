package parse

import (
	"path/filepath"
	"strings"
)

type pendingMessage struct {
	Message
	hasTS bool
}

// builder accumulates the state shared by both format parsers while a file
// is read line by line.
type builder struct {
	path      string
	id        string
	cwd       string
	title     string
	count     int
	bounds    bounds
	messages  []pendingMessage
	search    *searchText
	toolNames map[string]string // call id -> tool name

	// acceptTitle rejects candidate first lines; nil accepts any.
	acceptTitle func(firstLine string) bool
}

func newBuilder(path string) *builder {
	return &builder{
		path:      path,
		search:    newSearchText(MaxSearchChars),
		toolNames: make(map[string]string),
	}
}

// timestamp normalizes v and widens the session bounds with it.
func (b *builder) timestamp(v any) (int64, bool) {
	ms, ok := ParseTimestamp(v)
	if ok {
		b.bounds.observe(ms)
	}
	return ms, ok
}

// add appends a rendered message and feeds it to the search text.
func (b *builder) add(ts int64, hasTS bool, role, kind, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	b.messages = append(b.messages, pendingMessage{
		Message: Message{TsMs: ts, Role: role, Kind: kind, Text: text},
		hasTS:   hasTS,
	})
	b.search.add(text)
}

// addDisplay appends a plain conversational message after context
// normalization. Genuine messages count toward the session's message count
// and may supply its title.
func (b *builder) addDisplay(ts int64, hasTS bool, role, text string) {
	n := NormalizeContext(role, KindMessage, text)
	if strings.TrimSpace(n.Text) == "" {
		return
	}
	b.add(ts, hasTS, n.Role, n.Kind, n.Text)
	if n.Context {
		return
	}
	b.count++
	if b.title == "" && n.Role == RoleUser {
		b.offerTitle(n.Text)
	}
}

func (b *builder) offerTitle(text string) {
	first, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	first = strings.TrimRight(first, "\r")
	if first == "" {
		return
	}
	if b.acceptTitle != nil && !b.acceptTitle(first) {
		return
	}
	b.title = truncateRunes(first, maxTitleChars)
}

func (b *builder) result() *Result {
	id := b.id
	if id == "" {
		base := filepath.Base(b.path)
		id = "file-" + strings.TrimSuffix(base, filepath.Ext(base))
	}

	var start, end int64
	if b.bounds.seen {
		start, end = b.bounds.start, b.bounds.end
	}

	title := b.title
	if title == "" {
		title = "Session " + truncateRunes(id, 8)
	}

	msgs := make([]Message, len(b.messages))
	for i, m := range b.messages {
		msgs[i] = m.Message
		if !m.hasTS {
			msgs[i].TsMs = start
		}
	}

	return &Result{
		Session: Session{
			ID:           id,
			FilePath:     b.path,
			StartTsMs:    start,
			EndTsMs:      end,
			Cwd:          b.cwd,
			Title:        title,
			MessageCount: b.count,
		},
		Messages:   msgs,
		SearchBlob: b.search.String(),
	}
}
