package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/ai-session-index/internal/index"
	"github.com/Zuo-Peng/ai-session-index/internal/parse"
)

const (
	colorReset   = "\033[0m"
	colorUser    = "\033[1;34m" // bold blue
	colorAssist  = "\033[1;32m" // bold green
	colorThink   = "\033[2;35m" // dim magenta for thinking
	colorTool    = "\033[1;33m" // bold yellow
	colorDim     = "\033[2m"
	colorHit     = "\033[43m"   // yellow background
	colorBoldRed = "\033[1;31m" // bold red for keyword highlights
)

type Options struct {
	Width      int    // wrap width (0 = no wrap)
	Query      string // terms to highlight; the first matching message is the hit
	ShowHidden bool   // include "other"-role messages such as raw thinking
	NoColor    bool
}

// highlightKeywords wraps case-insensitive matches of query terms in bold red ANSI codes.
func highlightKeywords(text, query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return text
	}
	for _, term := range terms {
		lower := strings.ToLower(term)
		i := 0
		for i < len(text) {
			idx := strings.Index(strings.ToLower(text[i:]), lower)
			if idx < 0 {
				break
			}
			pos := i + idx
			if pos+len(term) > len(text) {
				break // case folding changed byte lengths
			}
			orig := text[pos : pos+len(term)]
			replacement := colorBoldRed + orig + colorReset
			text = text[:pos] + replacement + text[pos+len(term):]
			i = pos + len(replacement)
		}
	}
	return text
}

func matchesAll(text, query string) bool {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, t := range terms {
		if !strings.Contains(lower, strings.ToLower(t)) {
			return false
		}
	}
	return true
}

// indentLines prepends each line of text with the given prefix.
func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

// wrapLine breaks a single line into multiple lines that fit within maxWidth
// visible columns, correctly skipping ANSI escape sequences when measuring width.
func wrapLine(line string, maxWidth int) []string {
	if maxWidth <= 0 {
		return []string{line}
	}

	var result []string
	var cur strings.Builder
	visW := 0

	i := 0
	for i < len(line) {
		// check for ANSI escape sequence: ESC[ ... m
		if i+1 < len(line) && line[i] == '\033' && line[i+1] == '[' {
			j := i + 2
			for j < len(line) && line[j] != 'm' {
				j++
			}
			if j < len(line) {
				j++ // include 'm'
			}
			cur.WriteString(line[i:j])
			i = j
			continue
		}

		r, size := utf8.DecodeRuneInString(line[i:])
		rw := runewidth.RuneWidth(r)

		if visW+rw > maxWidth {
			result = append(result, cur.String())
			cur.Reset()
			visW = 0
		}

		cur.WriteRune(r)
		visW += rw
		i += size
	}

	if cur.Len() > 0 {
		result = append(result, cur.String())
	}

	if len(result) == 0 {
		return []string{""}
	}
	return result
}

// FormatTime renders a millisecond timestamp in local time; zero renders as "-".
func FormatTime(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04")
}

func roleStyle(m index.MessageRow) (color, label string) {
	switch {
	case m.Kind == parse.KindContext:
		return colorDim, "CTX"
	case m.Kind == parse.KindThinking, m.Kind == parse.KindReasoningSummary, m.Kind == parse.KindAgentReasoning:
		return colorThink, "THINK"
	}
	switch m.Role {
	case parse.RoleUser:
		return colorUser, "USER"
	case parse.RoleAssistant:
		return colorAssist, "ASST"
	case parse.RoleTool:
		return colorTool, "TOOL"
	default:
		return colorDim, strings.ToUpper(m.Role)
	}
}

// Session renders a session detail for a terminal. It returns the content and
// the 0-based line of the first message matching opts.Query, or -1.
func Session(d *index.SessionDetail, opts Options) (string, int) {
	var b strings.Builder
	hitLine := -1
	lineCount := 0
	separator := colorDim + strings.Repeat("-", 50) + colorReset

	writeLine := func(s string) {
		for _, wl := range wrapLine(s, opts.Width) {
			b.WriteString(wl)
			b.WriteString("\n")
			lineCount++
		}
	}

	s := d.Session
	writeLine(fmt.Sprintf("%s--- %s ---%s", colorDim, s.Title, colorReset))
	writeLine(fmt.Sprintf("%sid: %s  cwd: %s%s", colorDim, s.ID, orDash(s.Cwd), colorReset))
	writeLine(fmt.Sprintf("%s%s .. %s  (%d messages)%s",
		colorDim, FormatTime(s.StartTsMs), FormatTime(s.EndTsMs), s.MessageCount, colorReset))

	shown := 0
	for _, m := range d.Messages {
		if m.Role == parse.RoleOther && !opts.ShowHidden {
			continue
		}
		if shown > 0 {
			writeLine(separator)
		}
		shown++

		isHit := hitLine < 0 && matchesAll(m.Text, opts.Query)
		if isHit {
			hitLine = lineCount
		}

		color, label := roleStyle(m)
		if isHit {
			writeLine(fmt.Sprintf("%s>> %s > %s <<%s", colorHit, label, FormatTime(m.TsMs), colorReset))
		} else {
			writeLine(fmt.Sprintf("%s%s >%s %s%s%s", color, label, colorReset, colorDim, FormatTime(m.TsMs), colorReset))
		}

		text := m.Text
		if m.Kind == parse.KindThinking || m.Kind == parse.KindContext {
			text = colorDim + text + colorReset
		}
		text = highlightKeywords(text, opts.Query)
		for _, tl := range strings.Split(indentLines(text, "  "), "\n") {
			writeLine(tl)
		}
		writeLine("") // blank line after message
	}
	if shown == 0 {
		writeLine("(empty session)")
	}

	out := b.String()
	if opts.NoColor {
		out = StripANSI(out)
	}
	return out, hitLine
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// StripANSI removes ESC[...m sequences.
func StripANSI(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\033' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && s[j] != 'm' {
				j++
			}
			i = j
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
