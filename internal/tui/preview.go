package tui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Zuo-Peng/ai-session-index/internal/render"
)

// previewRenderedMsg is sent when an async preview render completes.
type previewRenderedMsg struct {
	key     string
	content string
	hitLine int
	err     error
}

// loadPreviewCmd fetches and renders a session off the update loop.
func loadPreviewCmd(src Source, key, id, query string, width int, showHidden bool) tea.Cmd {
	return func() tea.Msg {
		detail, err := src.GetSession(id)
		if err != nil {
			return previewRenderedMsg{key: key, hitLine: -1, err: err}
		}
		content, hitLine := render.Session(detail, render.Options{
			Width:      width,
			Query:      query,
			ShowHidden: showHidden,
		})
		return previewRenderedMsg{key: key, content: content, hitLine: hitLine}
	}
}

// newViewport creates a new viewport model with the given dimensions.
func newViewport(width, height int) viewport.Model {
	vp := viewport.New(width, height)
	vp.Style = stylePanelBorder
	return vp
}
