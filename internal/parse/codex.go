package parse

import (
	"encoding/json"
	"errors"
	"io/fs"
	"strings"
)

// Top-level record in Codex JSONL
type codexRecord struct {
	Timestamp any             `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// codexPayload covers the payload shapes of session_meta, response_item and
// event_msg records. Fields whose JSON type varies between versions are
// decoded as any.
type codexPayload struct {
	Type      string `json:"type"`
	ID        any    `json:"id"`
	Cwd       any    `json:"cwd"`
	Timestamp any    `json:"timestamp"`

	// message
	Role    string `json:"role"`
	Content any    `json:"content"`

	// reasoning
	Summary any `json:"summary"`

	// function_call / custom_tool_call and their outputs
	Name      string `json:"name"`
	CallID    string `json:"call_id"`
	Arguments any    `json:"arguments"`
	Input     any    `json:"input"`
	Output    any    `json:"output"`

	// agent_reasoning
	Text any `json:"text"`
}

// codexSilentTools register their call id but render nothing.
var codexSilentTools = map[string]bool{
	"update_plan": true,
}

// ParseCodex parses one Codex rollout file.
func ParseCodex(filePath string) (*Result, error) {
	b := newBuilder(filePath)

	err := eachLine(filePath, func(line []byte) {
		var rec codexRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return
		}
		ts, hasTS := b.timestamp(rec.Timestamp)

		if len(rec.Payload) == 0 {
			return
		}
		var p codexPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return
		}

		switch rec.Type {
		case "session_meta":
			if id, ok := p.ID.(string); ok && id != "" {
				b.id = id
			}
			if cwd, ok := p.Cwd.(string); ok && cwd != "" {
				b.cwd = cwd
			}
			b.timestamp(p.Timestamp)

		case "response_item":
			codexResponseItem(b, ts, hasTS, &p)

		case "event_msg":
			if p.Type == "agent_reasoning" {
				if text, ok := p.Text.(string); ok {
					b.add(ts, hasTS, RoleAssistant, KindAgentReasoning, text)
				}
			}
		}
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b.result(), nil
}

func codexResponseItem(b *builder, ts int64, hasTS bool, p *codexPayload) {
	switch p.Type {
	case "message":
		b.addDisplay(ts, hasTS, codexRole(p.Role), codexContentText(p.Content))

	case "reasoning":
		b.add(ts, hasTS, RoleAssistant, KindReasoningSummary, codexSummaryText(p.Summary))

	case "function_call", "custom_tool_call":
		name := p.Name
		if name == "" {
			name = "tool"
		}
		if p.CallID != "" {
			b.toolNames[p.CallID] = name
		}
		if codexSilentTools[name] {
			return
		}
		args := p.Arguments
		if p.Type == "custom_tool_call" {
			args = p.Input
		}
		call := toolCall{Name: name, CallID: p.CallID}
		if raw, ok := args.(string); ok {
			call.Raw = raw
			call.Input = tryParseJSON(raw)
		} else {
			call.Input = args
		}
		b.add(ts, hasTS, RoleTool, KindToolUse, renderToolUse(call))

	case "function_call_output", "custom_tool_call_output":
		name := b.toolNames[p.CallID]
		if codexSilentTools[name] {
			return
		}
		r := toolResult{Name: name, CallID: p.CallID}
		fillShellOutput(&r, p.Output)
		b.add(ts, hasTS, RoleTool, KindToolResult, renderToolResult(r))
	}
}

// codexRole maps Codex message roles onto the normalized role set.
func codexRole(role string) string {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
		return role
	case "developer":
		return RoleSystem
	}
	return RoleOther
}

// codexContentText concatenates text parts; image parts become a placeholder.
func codexContentText(content any) string {
	if s, ok := content.(string); ok {
		return s
	}
	items, _ := content.([]any)
	var texts []string
	for _, it := range items {
		item, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := item["text"].(string); ok {
			if text != "" {
				texts = append(texts, text)
			}
			continue
		}
		switch item["type"] {
		case "image_url", "input_image", "output_image":
			texts = append(texts, "[image]")
		}
	}
	return strings.Join(texts, "\n")
}

func codexSummaryText(summary any) string {
	items, _ := summary.([]any)
	var parts []string
	for _, it := range items {
		item, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := item["text"].(string); ok && text != "" {
			parts = append(parts, text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
