package tui

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/Zuo-Peng/ai-session-index/internal/index"
	"github.com/Zuo-Peng/ai-session-index/internal/search"
)

const debounceDelay = 200 * time.Millisecond

// Source is one browsable pipeline.
type Source interface {
	Name() string
	List(opts search.Options) ([]index.SessionSummary, error)
	GetSession(id string) (*index.SessionDetail, error)
}

// listResultMsg carries the answer to one List call. source, query and sort
// identify the request so late answers can be recognized.
type listResultMsg struct {
	source  int
	query   string
	sort    string
	results []index.SessionSummary
	err     error
}

type debounceTickMsg struct {
	query string
}

type model struct {
	sources []Source
	active  int
	opts    search.Options
	query   string

	results    []index.SessionSummary
	cursor     int
	listOffset int

	filterInput textinput.Model
	preview     viewport.Model
	previewKey  string // key of the rendered preview
	showHidden  bool

	width, height int
	ready         bool
	quitting      bool

	chosen     *index.SessionSummary
	chosenFrom string
}

func initialModel(sources []Source, opts search.Options) model {
	opts.Sort = search.NormalizeSort(opts.Sort)

	ti := textinput.New()
	ti.Placeholder = "Filter by words, all must match..."
	ti.Prompt = "> "
	ti.PromptStyle = styleInputPrompt
	ti.TextStyle = styleInput
	ti.CharLimit = 256
	ti.SetValue(opts.Query)
	ti.Focus()

	return model{
		sources:     sources,
		opts:        opts,
		query:       opts.Query,
		filterInput: ti,
		preview:     viewport.New(0, 0),
	}
}

// Run starts the browser and blocks until it exits. Choosing a session copies
// its resume command to the clipboard, or prints it to out when the
// clipboard is unavailable.
func Run(sources []Source, opts search.Options, out io.Writer) error {
	if len(sources) == 0 {
		return fmt.Errorf("tui: no sources")
	}
	p := tea.NewProgram(initialModel(sources, opts), tea.WithAltScreen(), tea.WithMouseCellMotion())
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}

	fm := final.(model)
	if fm.chosen == nil {
		return nil
	}
	cmd := ResumeCommand(fm.chosenFrom, *fm.chosen)
	if err := clipboard.WriteAll(cmd); err != nil {
		fmt.Fprintln(out, cmd)
		return nil
	}
	fmt.Fprintf(out, "Copied to clipboard: %s\n", cmd)
	return nil
}

// ResumeCommand builds the shell command that resumes a session in its
// agent, prefixed with a cd into the session's working directory.
func ResumeCommand(source string, s index.SessionSummary) string {
	var resume string
	switch source {
	case "claude":
		id := s.ID
		if strings.HasPrefix(id, "file-") {
			id = strings.TrimSuffix(filepath.Base(s.FilePath), ".jsonl")
		}
		resume = "claude --resume " + id
	case "codex":
		// codex wants the bare UUID, not the rollout-<time>-<uuid> file stem
		id, ok := ExtractUUID(s.ID)
		if !ok {
			id, ok = ExtractUUID(filepath.Base(s.FilePath))
		}
		if !ok {
			id = s.ID
		}
		resume = "codex resume " + id
	default:
		resume = s.ID
	}

	if s.Cwd == "" {
		return resume
	}
	return "cd " + shellQuote(s.Cwd) + " && " + resume
}

var uuidRe = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

// ExtractUUID finds the first valid UUID in s and returns it in canonical form.
func ExtractUUID(s string) (string, bool) {
	for _, cand := range uuidRe.FindAllString(s, -1) {
		if u, err := uuid.Parse(cand); err == nil {
			return u.String(), true
		}
	}
	return "", false
}

func shellQuote(s string) string {
	if !strings.ContainsAny(s, " \t'\"$`\\;&|<>()*?") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.doList(m.query))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.preview = newViewport(m.previewWidth(), m.panelHeight())
		m.previewKey = ""
		return m, m.loadCurrentPreview()

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case debounceTickMsg:
		// only fire if the query hasn't changed since the tick was scheduled
		if msg.query != m.query {
			return m, nil
		}
		return m, m.doList(msg.query)

	case listResultMsg:
		return m.applyResults(msg)

	case previewRenderedMsg:
		return m.applyPreview(msg), nil
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Enter):
		if m.cursor < len(m.results) {
			r := m.results[m.cursor]
			m.chosen = &r
			m.chosenFrom = m.sources[m.active].Name()
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case key.Matches(msg, keys.Switch):
		if len(m.sources) < 2 {
			return m, nil
		}
		m.active = (m.active + 1) % len(m.sources)
		return m, m.relist()

	case key.Matches(msg, keys.Sort):
		if m.opts.Sort == search.SortLast {
			m.opts.Sort = search.SortStart
		} else {
			m.opts.Sort = search.SortLast
		}
		return m, m.relist()

	case key.Matches(msg, keys.Hidden):
		m.showHidden = !m.showHidden
		return m, m.loadCurrentPreview()

	case key.Matches(msg, keys.Up):
		return m, m.moveCursor(m.cursor - 1)

	case key.Matches(msg, keys.Down):
		return m, m.moveCursor(m.cursor + 1)

	case key.Matches(msg, keys.PreviewUp):
		m.preview.LineUp(m.panelHeight() / 2)
		return m, nil

	case key.Matches(msg, keys.PreviewDn):
		m.preview.LineDown(m.panelHeight() / 2)
		return m, nil

	case key.Matches(msg, keys.PageUp):
		m.preview.LineUp(m.panelHeight())
		return m, nil

	case key.Matches(msg, keys.PageDown):
		m.preview.LineDown(m.panelHeight())
		return m, nil
	}

	// everything else edits the filter
	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	if q := m.filterInput.Value(); q != m.query {
		m.query = q
		return m, tea.Batch(cmd, scheduleDebouncedList(q))
	}
	return m, cmd
}

func (m model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if !m.ready || len(m.results) == 0 {
		return m, nil
	}
	region, item := m.hitTest(msg.X, msg.Y)
	wheel := msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown

	switch region {
	case regionList:
		switch {
		case msg.Button == tea.MouseButtonWheelUp:
			if m.listOffset > 0 {
				m.listOffset--
			}
		case msg.Button == tea.MouseButtonWheelDown:
			if m.listOffset < m.maxListOffset() {
				m.listOffset++
			}
		case msg.Button == tea.MouseButtonLeft && msg.Action == tea.MouseActionPress:
			if item >= 0 && item < len(m.results) && item != m.cursor {
				return m, m.moveCursor(item)
			}
		}
	case regionPreview:
		if wheel {
			var cmd tea.Cmd
			m.preview, cmd = m.preview.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m model) applyResults(msg listResultMsg) (tea.Model, tea.Cmd) {
	if msg.source != m.active || msg.query != m.query || msg.sort != m.opts.Sort {
		return m, nil
	}
	m.cursor, m.listOffset = 0, 0
	m.previewKey = ""
	m.results = msg.results
	if msg.err != nil {
		m.results = nil
		m.preview.SetContent("Error: " + msg.err.Error())
		return m, nil
	}
	if len(m.results) == 0 {
		m.preview.SetContent("")
		return m, nil
	}
	return m, m.loadCurrentPreview()
}

func (m model) applyPreview(msg previewRenderedMsg) model {
	if msg.key == m.previewKey || msg.key != m.currentKey() {
		return m
	}
	m.previewKey = msg.key
	if msg.err != nil {
		m.preview.SetContent("Preview error: " + msg.err.Error())
		return m
	}
	m.preview.SetContent(msg.content)
	if msg.hitLine > 0 {
		m.preview.SetYOffset(msg.hitLine)
	} else {
		m.preview.GotoTop()
	}
	return m
}

// relist clears the current results and queries the active source again.
func (m *model) relist() tea.Cmd {
	m.results = nil
	m.cursor, m.listOffset = 0, 0
	m.previewKey = ""
	m.preview.SetContent("")
	return m.doList(m.query)
}

// moveCursor selects item i when it exists and loads its preview.
func (m *model) moveCursor(i int) tea.Cmd {
	if i < 0 || i >= len(m.results) {
		return nil
	}
	m.cursor = i
	m.adjustListScroll(m.panelHeight())
	return m.loadCurrentPreview()
}

func (m model) View() string {
	if m.quitting || !m.ready {
		return ""
	}

	listW, previewW, panelH := m.listWidth(), m.previewWidth(), m.panelHeight()

	header := lipgloss.JoinHorizontal(lipgloss.Top, m.tabs(), " ", m.filterInput.View())

	listPanel := stylePanelBorder.
		Width(listW).
		Height(panelH).
		Render(m.renderList(listW, panelH))

	m.preview.Width = previewW
	m.preview.Height = panelH
	previewPanel := styleActiveBorder.
		Width(previewW).
		Height(panelH).
		Render(m.preview.View())

	panels := lipgloss.JoinHorizontal(lipgloss.Top, listPanel, previewPanel)
	return lipgloss.JoinVertical(lipgloss.Left, header, panels, m.statusBar())
}

// tabs renders one label per source with the active one highlighted.
func (m model) tabs() string {
	labels := make([]string, len(m.sources))
	for i, s := range m.sources {
		if i == m.active {
			labels[i] = styleTabActive.Render(s.Name())
		} else {
			labels[i] = styleTabInactive.Render(s.Name())
		}
	}
	return strings.Join(labels, "")
}

func (m model) listWidth() int {
	if m.width <= 0 {
		return 40
	}
	// 40% of the screen less border and padding
	return max(m.width*40/100-4, 20)
}

func (m model) previewWidth() int {
	if m.width <= 0 {
		return 60
	}
	return max(m.width*60/100-4, 20)
}

func (m model) panelHeight() int {
	if m.height <= 0 {
		return 20
	}
	// header (1) + status bar (1) + borders (4)
	return max(m.height-6, 5)
}

func (m model) maxListOffset() int {
	return max(len(m.results)-m.panelHeight()/linesPerItem, 0)
}

type mouseRegion int

const (
	regionNone mouseRegion = iota
	regionList
	regionPreview
)

// hitTest maps terminal coordinates to a panel region and list item index.
func (m model) hitTest(x, y int) (mouseRegion, int) {
	const top = 2 // header row + top border
	if y < top || y >= top+m.panelHeight() {
		return regionNone, -1
	}

	lw := m.listWidth()
	switch {
	case x >= 1 && x <= lw:
		return regionList, m.listOffset + (y-top)/linesPerItem
	case x > lw+2:
		return regionPreview, -1
	}
	return regionNone, -1
}

func (m model) statusBar() string {
	sort := "newest first"
	if m.opts.Sort == search.SortLast {
		sort = "last active"
	}
	parts := []string{
		fmt.Sprintf("%d sessions, %s", len(m.results), sort),
		"up/dn move",
		"C-u/C-d preview",
		"C-s sort",
		"C-t thinking",
		"Enter copy resume cmd",
	}
	if len(m.sources) > 1 {
		parts = append(parts, "Tab source")
	}
	parts = append(parts, "Esc quit")
	return styleStatusBar.Render(strings.Join(parts, " | "))
}

func (m model) doList(filter string) tea.Cmd {
	src, active := m.sources[m.active], m.active
	opts := m.opts
	opts.Query = filter
	return func() tea.Msg {
		results, err := src.List(opts)
		return listResultMsg{source: active, query: filter, sort: opts.Sort, results: results, err: err}
	}
}

func scheduleDebouncedList(query string) tea.Cmd {
	return tea.Tick(debounceDelay, func(time.Time) tea.Msg {
		return debounceTickMsg{query: query}
	})
}

// currentKey identifies the preview the selection calls for.
func (m model) currentKey() string {
	if m.cursor >= len(m.results) {
		return ""
	}
	k := m.sources[m.active].Name() + ":" + m.results[m.cursor].ID
	if m.showHidden {
		k += ":all"
	}
	return k
}

func (m model) loadCurrentPreview() tea.Cmd {
	k := m.currentKey()
	if k == "" || k == m.previewKey {
		return nil
	}
	return loadPreviewCmd(m.sources[m.active], k, m.results[m.cursor].ID, m.query, m.previewWidth(), m.showHidden)
}
