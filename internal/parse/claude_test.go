package parse

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClaude(t *testing.T) {
	path := writeLog(t, "5f0c3a9e-8f7d-4c1b-9a2e-1d2c3b4a5f60.jsonl",
		`{"type":"user","sessionId":"5f0c3a9e-8f7d-4c1b-9a2e-1d2c3b4a5f60","cwd":"/b/proj","timestamp":"2023-11-14T22:13:20.000Z","message":{"role":"user","content":"Warmup"}}`,
		`{"type":"user","sessionId":"5f0c3a9e-8f7d-4c1b-9a2e-1d2c3b4a5f60","timestamp":"2023-11-14T22:13:21.000Z","message":{"role":"user","content":[{"type":"text","text":"Add tests"},{"type":"image","source":{"type":"base64","data":"..."}}]}}`,
		`{"type":"assistant","timestamp":"2023-11-14T22:13:22.000Z","message":{"role":"assistant","content":[{"type":"thinking","thinking":"they want coverage"},{"type":"text","text":"Sure."},{"type":"tool_use","id":"toolu_1","name":"Bash","input":{"command":"go test ./...","description":"Run tests"}}]}}`,
		`{"type":"user","timestamp":"2023-11-14T22:13:23.000Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_1","content":"ok\n","is_error":false}]}}`,
		`{"type":"file-history-snapshot","messageId":"m1","snapshot":{"trackedFileBackups":{}}}`,
		`not json at all`,
		`{"type":"user","timestamp":"2023-11-14T22:13:25.000Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_1","content":[],"is_error":true}]},"toolUseResult":{"stdout":"out","stderr":"err"}}`,
	)

	res, err := ParseClaude(path)
	require.NoError(t, err)
	require.NotNil(t, res)

	const base = int64(1700000000000)
	want := Session{
		ID:           "5f0c3a9e-8f7d-4c1b-9a2e-1d2c3b4a5f60",
		FilePath:     path,
		StartTsMs:    base,
		EndTsMs:      base + 5000,
		Cwd:          "/b/proj",
		Title:        "Add tests",
		MessageCount: 3,
	}
	if diff := cmp.Diff(want, res.Session); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}

	wantMsgs := []Message{
		{TsMs: base, Role: RoleUser, Kind: KindMessage, Text: "Warmup"},
		{TsMs: base + 1000, Role: RoleUser, Kind: KindMessage, Text: "Add tests\n[image]"},
		{TsMs: base + 2000, Role: RoleOther, Kind: KindThinking, Text: "they want coverage"},
		{TsMs: base + 2000, Role: RoleAssistant, Kind: KindMessage, Text: "Sure."},
		{TsMs: base + 2000, Role: RoleTool, Kind: KindToolUse,
			Text: "Tool use: Bash\nCall ID: toolu_1\nDescription: Run tests\nCommand:\n```bash\ngo test ./...\n```"},
		{TsMs: base + 3000, Role: RoleTool, Kind: KindToolResult,
			Text: "Tool result: Bash\nCall ID: toolu_1\nStatus: ok\nOutput:\n````\nok\n````"},
		{TsMs: base + 5000, Role: RoleTool, Kind: KindToolResult,
			Text: "Tool result: Bash\nCall ID: toolu_1\nStatus: error\nOutput:\n````\nout\nerr\n````"},
	}
	if diff := cmp.Diff(wantMsgs, res.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestParseClaudeSummaryTitle(t *testing.T) {
	path := writeLog(t, "s.jsonl",
		`{"type":"summary","summary":"  Refactor the parser  ","leafUuid":"x"}`,
		`{"type":"user","sessionId":"s1","message":{"role":"user","content":"first question"}}`,
	)
	res, err := ParseClaude(path)
	require.NoError(t, err)
	assert.Equal(t, "Refactor the parser", res.Session.Title)
	assert.Equal(t, 1, res.Session.MessageCount)
}

func TestParseClaudeContextNotCounted(t *testing.T) {
	path := writeLog(t, "s.jsonl",
		`{"type":"user","sessionId":"s1","message":{"role":"user","content":"<environment_context><cwd>/x</cwd></environment_context>"}}`,
		`{"type":"user","sessionId":"s1","message":{"role":"user","content":"real question"}}`,
	)
	res, err := ParseClaude(path)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Session.MessageCount)
	assert.Equal(t, "real question", res.Session.Title)
	assert.Equal(t, []string{KindContext, KindMessage}, kinds(res.Messages))
}

func TestParseClaudeMissingFile(t *testing.T) {
	res, err := ParseClaude(filepath.Join(t.TempDir(), "gone.jsonl"))
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestClaudeExclude(t *testing.T) {
	assert.True(t, ClaudeExclude("/p/agent-1234.jsonl"))
	assert.False(t, ClaudeExclude("/p/agent-dir/5f0c.jsonl"))
	assert.False(t, ClaudeExclude("/p/5f0c.jsonl"))
}
