package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/ai-session-index/internal/index"
	"github.com/Zuo-Peng/ai-session-index/internal/search"
)

type fakeSource struct {
	name     string
	sessions []index.SessionSummary
	lastOpts search.Options
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) List(opts search.Options) ([]index.SessionSummary, error) {
	f.lastOpts = opts
	return f.sessions, nil
}

func (f *fakeSource) GetSession(id string) (*index.SessionDetail, error) {
	for _, s := range f.sessions {
		if s.ID == id {
			return &index.SessionDetail{Session: s}, nil
		}
	}
	return nil, index.ErrNotFound
}

func TestExtractUUID(t *testing.T) {
	got, ok := ExtractUUID("rollout-2026-01-26T17-30-22-019BF9A3-d433-7fc1-8214-b82613804964")
	assert.True(t, ok)
	assert.Equal(t, "019bf9a3-d433-7fc1-8214-b82613804964", got)

	_, ok = ExtractUUID("file-notes")
	assert.False(t, ok)
}

func TestResumeCommand(t *testing.T) {
	codex := index.SessionSummary{
		ID:       "019bf9a3-d433-7fc1-8214-b82613804964",
		FilePath: "/x/rollout-2026-01-26T17-30-22-019bf9a3-d433-7fc1-8214-b82613804964.jsonl",
		Cwd:      "/a/proj",
	}
	assert.Equal(t, "cd /a/proj && codex resume 019bf9a3-d433-7fc1-8214-b82613804964", ResumeCommand("codex", codex))

	synthesized := index.SessionSummary{
		ID:       "file-rollout-2026-01-26T17-30-22-019bf9a3-d433-7fc1-8214-b82613804964",
		FilePath: "/x/rollout-2026-01-26T17-30-22-019bf9a3-d433-7fc1-8214-b82613804964.jsonl",
	}
	assert.Equal(t, "codex resume 019bf9a3-d433-7fc1-8214-b82613804964", ResumeCommand("codex", synthesized))

	claude := index.SessionSummary{
		ID:       "file-5f0c3a9e",
		FilePath: "/p/5f0c3a9e.jsonl",
		Cwd:      "/my proj",
	}
	assert.Equal(t, "cd '/my proj' && claude --resume 5f0c3a9e", ResumeCommand("claude", claude))
}

func TestModelSwitchesSource(t *testing.T) {
	codex := &fakeSource{name: "codex", sessions: []index.SessionSummary{{ID: "c1"}, {ID: "c2"}}}
	claude := &fakeSource{name: "claude", sessions: []index.SessionSummary{{ID: "k1"}}}
	m := initialModel([]Source{codex, claude}, search.Options{Query: "fix", Sort: "last"})

	msg := m.doList(m.query)()
	next, _ := m.Update(msg)
	m = next.(model)
	require.Len(t, m.results, 2)
	assert.Equal(t, "fix", codex.lastOpts.Query)
	assert.Equal(t, "last", codex.lastOpts.Sort)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = next.(model)
	assert.Equal(t, 1, m.cursor)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(model)
	assert.Equal(t, 1, m.active)
	assert.Empty(t, m.results)
	require.NotNil(t, cmd)

	// a late result from the previous source is dropped
	next, _ = m.Update(listResultMsg{source: 0, query: "fix", results: codex.sessions})
	m = next.(model)
	assert.Empty(t, m.results)

	next, _ = m.Update(cmd())
	m = next.(model)
	require.Len(t, m.results, 1)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	require.NotNil(t, m.chosen)
	assert.Equal(t, "k1", m.chosen.ID)
	assert.Equal(t, "claude", m.chosenFrom)
}

func TestModelSortToggleRelists(t *testing.T) {
	codex := &fakeSource{name: "codex", sessions: []index.SessionSummary{{ID: "c1"}}}
	m := initialModel([]Source{codex}, search.Options{})
	assert.Equal(t, search.SortStart, m.opts.Sort)

	next, _ := m.Update(m.doList(m.query)())
	m = next.(model)
	require.Len(t, m.results, 1)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	m = next.(model)
	assert.Equal(t, search.SortLast, m.opts.Sort)
	assert.Empty(t, m.results)
	require.NotNil(t, cmd)

	// an answer for the old ordering is ignored
	next, _ = m.Update(listResultMsg{source: 0, sort: search.SortStart, results: codex.sessions})
	m = next.(model)
	assert.Empty(t, m.results)

	next, _ = m.Update(cmd())
	m = next.(model)
	assert.Len(t, m.results, 1)
	assert.Equal(t, search.SortLast, codex.lastOpts.Sort)

	// a single source ignores Tab
	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(model)
	assert.Nil(t, cmd)
	assert.Equal(t, 0, m.active)
}

func TestModelHiddenToggleChangesPreviewKey(t *testing.T) {
	codex := &fakeSource{name: "codex", sessions: []index.SessionSummary{{ID: "c1"}}}
	m := initialModel([]Source{codex}, search.Options{})
	next, _ := m.Update(m.doList(m.query)())
	m = next.(model)
	assert.Equal(t, "codex:c1", m.currentKey())

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	m = next.(model)
	assert.True(t, m.showHidden)
	assert.Equal(t, "codex:c1:all", m.currentKey())
	require.NotNil(t, cmd)

	rendered, ok := cmd().(previewRenderedMsg)
	require.True(t, ok)
	assert.Equal(t, "codex:c1:all", rendered.key)
	require.NoError(t, rendered.err)

	next, _ = m.Update(rendered)
	m = next.(model)
	assert.Equal(t, "codex:c1:all", m.previewKey)
}
