package server

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zuo-Peng/ai-session-index/internal/index"
	"github.com/Zuo-Peng/ai-session-index/internal/search"
)

type fakePipeline struct {
	name      string
	lastOpts  search.Options
	lastQ     string
	lastLimit int
	rescans   int
	failList  bool
}

func (f *fakePipeline) List(opts search.Options) ([]index.SessionSummary, error) {
	f.lastOpts = opts
	if f.failList {
		return nil, errors.New("disk I/O error")
	}
	return []index.SessionSummary{{ID: f.name + "-1", Title: "t"}}, nil
}

func (f *fakePipeline) ListProjects(q string, limit int) ([]index.Project, error) {
	f.lastQ, f.lastLimit = q, limit
	return []index.Project{{Project: "/a/proj", SessionCount: 2, LastTsMs: 7}}, nil
}

func (f *fakePipeline) GetSession(id string) (*index.SessionDetail, error) {
	if id != "with space/and-slash" {
		return nil, index.ErrNotFound
	}
	return &index.SessionDetail{
		Session:  index.SessionSummary{ID: id},
		Messages: []index.MessageRow{{TsMs: 1, Role: "user", Kind: "message", Text: "hi"}},
	}, nil
}

func (f *fakePipeline) ForceRescan() (index.Stats, error) {
	f.rescans++
	return index.Stats{Scanned: 3, Updated: 1, Skipped: 2}, nil
}

func newTestApp() (*fakePipeline, *fakePipeline, func(method, target string) (int, map[string]any, error)) {
	codex := &fakePipeline{name: "codex"}
	claude := &fakePipeline{name: "claude"}
	app := NewApp(codex, claude, zerolog.Nop())
	do := func(method, target string) (int, map[string]any, error) {
		resp, err := app.Test(httptest.NewRequest(method, target, nil))
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return resp.StatusCode, nil, err
		}
		return resp.StatusCode, body, nil
	}
	return codex, claude, do
}

func TestListSessionsParams(t *testing.T) {
	codex, claude, do := newTestApp()

	status, body, err := do("GET", "/api/sessions?q=+fix+build+&start=2024-01-01&end=2024-01-31&project=/a/proj&sort=last&limit=5")
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, search.Options{
		Query: "fix build", StartDate: "2024-01-01", EndDate: "2024-01-31",
		Project: "/a/proj", Sort: "last", Limit: 5,
	}, codex.lastOpts)
	sessions := body["sessions"].([]any)
	require.Len(t, sessions, 1)
	assert.Equal(t, "codex-1", sessions[0].(map[string]any)["id"])

	status, body, err = do("GET", "/api/claude/sessions?limit=abc")
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, search.DefaultLimit, claude.lastOpts.Limit)
	assert.Equal(t, "claude-1", body["sessions"].([]any)[0].(map[string]any)["id"])
}

func TestListSessionsStoreError(t *testing.T) {
	codex, _, do := newTestApp()
	codex.failList = true

	status, body, err := do("GET", "/api/sessions")
	require.NoError(t, err)
	assert.Equal(t, 500, status)
	assert.Equal(t, "disk I/O error", body["error"])
}

func TestListProjects(t *testing.T) {
	_, claude, do := newTestApp()
	status, body, err := do("GET", "/api/claude/projects?q=proj")
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, "proj", claude.lastQ)
	assert.Equal(t, search.DefaultLimit, claude.lastLimit)

	projects := body["projects"].([]any)
	require.Len(t, projects, 1)
	p := projects[0].(map[string]any)
	assert.Equal(t, "/a/proj", p["project"])
	assert.Equal(t, float64(2), p["session_count"])
}

func TestGetSession(t *testing.T) {
	_, _, do := newTestApp()

	status, body, err := do("GET", "/api/session/with%20space/and-slash")
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, "with space/and-slash", body["session"].(map[string]any)["id"])
	assert.Len(t, body["messages"], 1)

	status, body, err = do("GET", "/api/claude/session/missing")
	require.NoError(t, err)
	assert.Equal(t, 404, status)
	assert.Equal(t, "not_found", body["error"])
}

func TestReindex(t *testing.T) {
	codex, claude, do := newTestApp()

	status, body, err := do("GET", "/api/reindex")
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, float64(1), body["updated"])

	status, _, err = do("POST", "/api/claude/reindex")
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, 1, codex.rescans)
	assert.Equal(t, 1, claude.rescans)
}
