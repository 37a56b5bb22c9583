package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/Zuo-Peng/ai-session-index/internal/index"
)

// linesPerItem is the number of terminal lines each session occupies.
const linesPerItem = 2

// renderList renders the left panel: the session list with scrolling.
func (m model) renderList(width, height int) string {
	if len(m.results) == 0 {
		return lipgloss.NewStyle().
			Foreground(colorDim).
			Width(width).
			Height(height).
			Align(lipgloss.Center, lipgloss.Center).
			Render("No sessions")
	}

	var lines []string
	for i, r := range m.results {
		if i < m.listOffset {
			continue
		}
		if len(lines)+linesPerItem > height {
			break
		}
		lines = append(lines, formatSessionLines(r, width, i == m.cursor)...)
	}

	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

// formatSessionLines formats one session as two lines:
//
//	line 1: [>] MM-DD HH:MM  title
//	line 2:     cwd · N msgs (dimmed)
func formatSessionLines(s index.SessionSummary, width int, selected bool) []string {
	date := "--:-- --:--"
	if s.StartTsMs > 0 {
		date = time.UnixMilli(s.StartTsMs).Local().Format("01-02 15:04")
	}

	title := strings.ReplaceAll(s.Title, "\n", " ")
	titleMax := width - 2 - runewidth.StringWidth(date) - 1
	if titleMax < 0 {
		titleMax = 0
	}
	if runewidth.StringWidth(title) > titleMax {
		title = runewidth.Truncate(title, titleMax, "…")
	}

	line1 := styleListDate.Render(date) + " "
	if selected {
		line1 = styleListSelected.Render("> ") + line1 + styleListSelected.Render(title)
	} else {
		line1 = "  " + line1 + styleListNormal.Render(title)
	}

	cwd := s.Cwd
	if cwd == "" {
		cwd = "-"
	}
	meta := fmt.Sprintf("%s · %d msgs", cwd, s.MessageCount)
	metaMax := width - 4 // indent
	if metaMax < 0 {
		metaMax = 0
	}
	if runewidth.StringWidth(meta) > metaMax {
		// keep the tail of long paths
		meta = "…" + runewidth.TruncateLeft(meta, runewidth.StringWidth(meta)-metaMax+1, "")
	}
	line2 := "    " + styleListMeta.Render(meta)

	return []string{line1, line2}
}

// adjustListScroll keeps the cursor visible within the list viewport.
func (m *model) adjustListScroll(listHeight int) {
	visibleItems := listHeight / linesPerItem
	if visibleItems < 1 {
		visibleItems = 1
	}
	if m.cursor < m.listOffset {
		m.listOffset = m.cursor
	}
	if m.cursor >= m.listOffset+visibleItems {
		m.listOffset = m.cursor - visibleItems + 1
	}
}
