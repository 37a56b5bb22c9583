package parse

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
)

type claudeRecord struct {
	Type          string          `json:"type"`
	SessionID     any             `json:"sessionId"`
	Timestamp     any             `json:"timestamp"`
	Cwd           any             `json:"cwd"`
	Summary       any             `json:"summary"` // for type="summary" records
	Message       json.RawMessage `json:"message"`
	ToolUseResult any             `json:"toolUseResult"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ClaudeExclude rejects sub-agent transcripts, which are indexed through
// their parent session.
func ClaudeExclude(path string) bool {
	return strings.HasPrefix(filepath.Base(path), "agent-")
}

// ParseClaude parses one Claude Code project transcript.
func ParseClaude(filePath string) (*Result, error) {
	b := newBuilder(filePath)
	b.acceptTitle = func(first string) bool {
		return strings.ToLower(strings.TrimSpace(first)) != "warmup"
	}

	err := eachLine(filePath, func(line []byte) {
		var rec claudeRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return
		}
		if id, ok := rec.SessionID.(string); ok && id != "" && b.id == "" {
			b.id = id
		}
		ts, hasTS := b.timestamp(rec.Timestamp)
		if cwd, ok := rec.Cwd.(string); ok && cwd != "" && b.cwd == "" {
			b.cwd = cwd
		}

		switch rec.Type {
		case "summary":
			if s, ok := rec.Summary.(string); ok && b.title == "" {
				if s = strings.TrimSpace(s); s != "" {
					b.title = truncateRunes(s, maxTitleChars)
				}
			}
			return
		case "file-history-snapshot":
			return
		}

		raw := bytes.TrimSpace(rec.Message)
		if len(raw) == 0 || raw[0] != '{' {
			return
		}
		var msg claudeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return
		}
		role := msg.Role
		if role == "" {
			role = rec.Type
		}

		switch role {
		case RoleUser:
			claudeUserContent(b, ts, hasTS, msg.Content, rec.ToolUseResult)
		case RoleAssistant:
			claudeAssistantContent(b, ts, hasTS, msg.Content)
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

// textRun gathers adjacent text and image blocks into one display message.
type textRun struct {
	parts []string
}

func (r *textRun) push(s string) {
	r.parts = append(r.parts, s)
}

func (r *textRun) flush(b *builder, ts int64, hasTS bool, role string) {
	if len(r.parts) == 0 {
		return
	}
	text := strings.TrimSpace(strings.Join(r.parts, "\n"))
	r.parts = r.parts[:0]
	b.addDisplay(ts, hasTS, role, text)
}

func claudeUserContent(b *builder, ts int64, hasTS bool, content, toolUseResult any) {
	if s, ok := content.(string); ok {
		b.addDisplay(ts, hasTS, RoleUser, strings.TrimSpace(s))
		return
	}
	items, _ := content.([]any)
	var run textRun
	for _, it := range items {
		item, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if item["type"] == "tool_result" {
			run.flush(b, ts, hasTS, RoleUser)
			b.add(ts, hasTS, RoleTool, KindToolResult, claudeToolResult(b, item, toolUseResult))
			continue
		}
		if text, ok := claudeBlockText(item); ok {
			run.push(text)
		}
	}
	run.flush(b, ts, hasTS, RoleUser)
}

func claudeAssistantContent(b *builder, ts int64, hasTS bool, content any) {
	if s, ok := content.(string); ok {
		b.addDisplay(ts, hasTS, RoleAssistant, strings.TrimSpace(s))
		return
	}
	items, _ := content.([]any)
	var run textRun
	for _, it := range items {
		item, ok := it.(map[string]any)
		if !ok {
			continue
		}
		switch item["type"] {
		case "thinking":
			run.flush(b, ts, hasTS, RoleAssistant)
			if thinking, ok := item["thinking"].(string); ok {
				// hidden from default views through the "other" role
				b.add(ts, hasTS, RoleOther, KindThinking, strings.TrimSpace(thinking))
			}
		case "tool_use":
			run.flush(b, ts, hasTS, RoleAssistant)
			name, _ := item["name"].(string)
			id, _ := item["id"].(string)
			if id != "" && name != "" {
				b.toolNames[id] = name
			}
			b.add(ts, hasTS, RoleTool, KindToolUse, renderToolUse(toolCall{
				Name:   name,
				CallID: id,
				Input:  item["input"],
			}))
		default:
			if text, ok := claudeBlockText(item); ok {
				run.push(text)
			}
		}
	}
	run.flush(b, ts, hasTS, RoleAssistant)
}

// claudeBlockText returns the displayable text of a content block.
func claudeBlockText(item map[string]any) (string, bool) {
	if item["type"] == "image" {
		return "[image]", true
	}
	if text, ok := item["text"].(string); ok && text != "" {
		return text, true
	}
	return "", false
}

func claudeToolResult(b *builder, item map[string]any, toolUseResult any) string {
	id, _ := item["tool_use_id"].(string)
	r := toolResult{Name: b.toolNames[id], CallID: id}
	if isErr, ok := item["is_error"].(bool); ok {
		r.IsError = &isErr
	}

	content := item["content"]
	if s, ok := content.(string); ok && strings.TrimSpace(s) != "" {
		r.Output = s
		return renderToolResult(r)
	}

	if tur, ok := toolUseResult.(map[string]any); ok {
		stdout, hasOut := tur["stdout"].(string)
		stderr, hasErr := tur["stderr"].(string)
		if hasOut || hasErr {
			combined := stdout
			if stderr != "" {
				if combined != "" && !strings.HasSuffix(combined, "\n") {
					combined += "\n"
				}
				combined += stderr
			}
			r.Output = combined
			return renderToolResult(r)
		}
	}

	switch content.(type) {
	case nil, string:
	default:
		if text, ok := contentText(content); ok {
			r.Output = text
		} else {
			r.Output = prettyJSON(content)
		}
	}
	return renderToolResult(r)
}
