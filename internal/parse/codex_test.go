package parse

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCodex(t *testing.T) {
	path := writeLog(t, "rollout-2023-11-14.jsonl",
		`{"timestamp":"2023-11-14T22:13:20Z","type":"session_meta","payload":{"id":"abc-123","cwd":"/a/proj","timestamp":"2023-11-14T22:13:19Z"}}`,
		`{"timestamp":"2023-11-14T22:13:21Z","type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"<environment_context>\n<cwd>/a/proj</cwd>\n</environment_context>"}]}}`,
		`{"timestamp": "2023-11-14T22:13:22Z", "type": "response_item", "payload": {oops`,
		`{"timestamp":"2023-11-14T22:13:23Z","type":"response_item","payload":{"type":"message","role":"user","content":[{"type":"input_text","text":"Fix the build\nplease"}]}}`,
		`{"timestamp":"2023-11-14T22:13:24Z","type":"response_item","payload":{"type":"reasoning","summary":[{"type":"summary_text","text":"Looking at go.mod"}]}}`,
		`{"timestamp":"2023-11-14T22:13:25Z","type":"response_item","payload":{"type":"function_call","name":"shell","call_id":"call_1","arguments":"{\"command\":[\"go\",\"build\"],\"workdir\":\"/a/proj\"}"}}`,
		`{"timestamp":"2023-11-14T22:13:26Z","type":"response_item","payload":{"type":"function_call_output","call_id":"call_1","output":"{\"output\":\"ok\\n\",\"metadata\":{\"exit_code\":0,\"duration_seconds\":0.25}}"}}`,
		`{"timestamp":"2023-11-14T22:13:27Z","type":"response_item","payload":{"type":"function_call","name":"update_plan","call_id":"call_2","arguments":"{}"}}`,
		`{"timestamp":"2023-11-14T22:13:28Z","type":"response_item","payload":{"type":"function_call_output","call_id":"call_2","output":"Plan updated"}}`,
		`{"type":"response_item","payload":{"type":"message","role":"assistant","content":[{"type":"output_text","text":"Done."}]}}`,
		`{"timestamp":"2023-11-14T22:13:30Z","type":"event_msg","payload":{"type":"agent_reasoning","text":"Wrapping up"}}`,
	)

	res, err := ParseCodex(path)
	require.NoError(t, err)
	require.NotNil(t, res)

	const base = int64(1700000000000)
	want := Session{
		ID:           "abc-123",
		FilePath:     path,
		StartTsMs:    base - 1000,
		EndTsMs:      base + 10000,
		Cwd:          "/a/proj",
		Title:        "Fix the build",
		MessageCount: 2,
	}
	if diff := cmp.Diff(want, res.Session); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []string{
		KindContext, KindMessage, KindReasoningSummary, KindToolUse, KindToolResult, KindMessage, KindAgentReasoning,
	}, kinds(res.Messages))

	ctx := res.Messages[0]
	assert.Equal(t, RoleSystem, ctx.Role)
	assert.Equal(t, "Environment context:\n- cwd: /a/proj", ctx.Text)

	assert.Equal(t, "Tool use: shell\nCall ID: call_1\nWorkdir: `/a/proj`\nCommand:\n```bash\ngo build\n```", res.Messages[3].Text)
	assert.Equal(t, "Tool result: shell\nCall ID: call_1\nStatus: ok\nExit code: 0\nWall time: 0.250s\nOutput:\n````\nok\n````", res.Messages[4].Text)

	// the assistant line carried no timestamp
	assert.Equal(t, want.StartTsMs, res.Messages[5].TsMs)
	assert.Equal(t, RoleAssistant, res.Messages[6].Role)

	assert.Contains(t, res.SearchBlob, "Fix the build\nplease")
	assert.Contains(t, res.SearchBlob, "Environment context:")
	assert.NotContains(t, res.SearchBlob, "Plan updated")
}

func TestParseCodexMalformedLineDoesNotAbort(t *testing.T) {
	path := writeLog(t, "r.jsonl",
		`{"timestamp":1700000000,"type":"response_item","payload":{"type":"message","role":"user","content":"first"}}`,
		`{"timestamp":`,
		`{"timestamp":1700000005,"type":"response_item","payload":{"type":"message","role":"assistant","content":"second"}}`,
	)
	res, err := ParseCodex(path)
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, "first", res.Messages[0].Text)
	assert.Equal(t, "second", res.Messages[1].Text)
	assert.Equal(t, 2, res.Session.MessageCount)
	assert.Equal(t, int64(1700000005000), res.Session.EndTsMs)
}

func TestParseCodexRoles(t *testing.T) {
	path := writeLog(t, "r.jsonl",
		`{"type":"response_item","payload":{"type":"message","role":"developer","content":"be terse"}}`,
		`{"type":"response_item","payload":{"type":"message","role":"critic","content":"hm"}}`,
	)
	res, err := ParseCodex(path)
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, RoleSystem, res.Messages[0].Role)
	assert.Equal(t, RoleOther, res.Messages[1].Role)
}

func TestParseCodexDefaults(t *testing.T) {
	path := writeLog(t, "rollout-xyz.jsonl",
		`{"type":"response_item","payload":{"type":"message","role":"assistant","content":"hello"}}`,
	)
	res, err := ParseCodex(path)
	require.NoError(t, err)
	assert.Equal(t, "file-rollout-xyz", res.Session.ID)
	assert.Equal(t, "Session file-rol", res.Session.Title)
	assert.Zero(t, res.Session.StartTsMs)
	assert.Zero(t, res.Session.EndTsMs)
	assert.Empty(t, res.Session.Cwd)
}

func TestParseCodexMissingFile(t *testing.T) {
	res, err := ParseCodex(filepath.Join(t.TempDir(), "gone.jsonl"))
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestParseCodexSearchBlobBudget(t *testing.T) {
	half := MaxSearchChars / 2
	path := writeLog(t, "big.jsonl",
		`{"type":"response_item","payload":{"type":"message","role":"user","content":"`+strings.Repeat("a", half)+`"}}`,
		`{"type":"response_item","payload":{"type":"message","role":"assistant","content":"`+strings.Repeat("b", half)+`"}}`,
	)
	res, err := ParseCodex(path)
	require.NoError(t, err)

	// 2,000,001 characters including the separator; one is dropped
	assert.Len(t, res.SearchBlob, MaxSearchChars)
	assert.True(t, strings.HasSuffix(res.SearchBlob, "\n"+strings.Repeat("b", half-1)))
	assert.Len(t, []rune(res.Session.Title), 80)
}
