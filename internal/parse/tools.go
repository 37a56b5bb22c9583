package parse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// toolCall is one tool invocation as recorded by either log format.
type toolCall struct {
	Name   string
	CallID string
	Raw    string // argument text when the log stores arguments as a string
	Input  any    // decoded arguments, nil when Raw is not JSON
}

// toolResult is the display model of a tool's output.
type toolResult struct {
	Name     string
	CallID   string
	IsError  *bool
	ExitCode *int
	WallTime string
	Output   string
}

// toolBlock collects the lines of a rendered tool block.
type toolBlock struct {
	lines []string
}

func (b *toolBlock) add(lines ...string) {
	b.lines = append(b.lines, lines...)
}

func (b *toolBlock) fence(label, lang, body string) {
	b.add(label, "```"+lang+"\n"+body+"\n```")
}

func (b *toolBlock) String() string {
	return strings.TrimSpace(strings.Join(b.lines, "\n"))
}

// toolRenderer writes the tool-specific body of a tool_use block. It reports
// false when the call does not have the shape it understands, in which case
// the default rendering is used.
type toolRenderer func(b *toolBlock, call toolCall) bool

// toolRenderers is keyed by the lower-cased tool name.
var toolRenderers = map[string]toolRenderer{
	"apply_patch":     renderPatch,
	"shell":           renderShell,
	"shell_command":   renderShell,
	"exec_command":    renderShell,
	"bash":            renderShell,
	"grep":            renderGrep,
	"glob":            renderGlob,
	"askuserquestion": renderQuestions,
}

func toolKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func renderToolUse(call toolCall) string {
	name := strings.TrimSpace(call.Name)
	if name == "" {
		name = "tool"
	}
	b := &toolBlock{}
	b.add("Tool use: " + name)
	if call.CallID != "" {
		b.add("Call ID: " + call.CallID)
	}
	if fields, ok := call.Input.(map[string]any); ok {
		if desc := stringField(fields, "description"); desc != "" {
			b.add("Description: " + desc)
		}
	}
	if render, ok := toolRenderers[toolKey(name)]; ok && render(b, call) {
		return b.String()
	}
	renderDefault(b, call)
	return b.String()
}

func renderPatch(b *toolBlock, call toolCall) bool {
	patch := ""
	switch {
	case call.Input == nil:
		patch = call.Raw
	default:
		if fields, ok := call.Input.(map[string]any); ok {
			patch, _ = fields["input"].(string)
			if patch == "" {
				patch, _ = fields["patch"].(string)
			}
		}
	}
	if strings.TrimSpace(patch) == "" {
		return false
	}
	b.fence("Patch:", "patch", strings.TrimRight(patch, " \t\r\n"))
	return true
}

func renderShell(b *toolBlock, call toolCall) bool {
	fields, ok := call.Input.(map[string]any)
	if !ok {
		return false
	}
	workdir := stringField(fields, "workdir")
	if workdir == "" {
		workdir = stringField(fields, "cwd")
	}
	if workdir != "" {
		b.add("Workdir: `" + workdir + "`")
	}
	if cmd := commandText(fields["command"]); cmd != "" {
		b.fence("Command:", "bash", cmd)
		return true
	}
	if cmd := commandText(fields["cmd"]); cmd != "" {
		b.fence("Command:", "bash", cmd)
		return true
	}
	b.fence("Input:", "json", prettyJSON(fields))
	return true
}

// commandText accepts a command string or an argv array.
func commandText(v any) string {
	switch c := v.(type) {
	case string:
		if strings.TrimSpace(c) == "" {
			return ""
		}
		return strings.TrimRight(c, " \t\r\n")
	case []any:
		parts := make([]string, 0, len(c))
		for _, p := range c {
			s, ok := p.(string)
			if !ok {
				return ""
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, " ")
	}
	return ""
}

func renderGrep(b *toolBlock, call toolCall) bool {
	fields, ok := call.Input.(map[string]any)
	if !ok {
		return false
	}
	if v, _ := fields["pattern"].(string); v != "" {
		b.add("Pattern: `" + v + "`")
	}
	if v, _ := fields["path"].(string); v != "" {
		b.add("Path: `" + v + "`")
	}
	if v, _ := fields["output_mode"].(string); v != "" {
		b.add("Mode: `" + v + "`")
	}
	if n, ok := intField(fields, "head_limit"); ok {
		b.add("Limit: `" + strconv.Itoa(n) + "`")
	}
	return true
}

func renderGlob(b *toolBlock, call toolCall) bool {
	fields, ok := call.Input.(map[string]any)
	if !ok {
		return false
	}
	if v, _ := fields["pattern"].(string); v != "" {
		b.add("Pattern: `" + v + "`")
	}
	if v, _ := fields["path"].(string); v != "" {
		b.add("Path: `" + v + "`")
	}
	return true
}

func renderQuestions(b *toolBlock, call toolCall) bool {
	fields, ok := call.Input.(map[string]any)
	if !ok {
		return false
	}
	questions, _ := fields["questions"].([]any)
	for _, item := range questions {
		q, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if header := stringField(q, "header"); header != "" {
			b.add("Question (" + header + "):")
		} else {
			b.add("Question:")
		}
		if text := stringField(q, "question"); text != "" {
			b.add(text)
		}
		if options, _ := q["options"].([]any); len(options) > 0 {
			b.add("Options:")
			for _, o := range options {
				opt, ok := o.(map[string]any)
				if !ok {
					continue
				}
				label := stringField(opt, "label")
				if label == "" {
					continue
				}
				if desc := stringField(opt, "description"); desc != "" {
					b.add("- " + label + " — " + desc)
				} else {
					b.add("- " + label)
				}
			}
		}
		if multi, ok := q["multiSelect"].(bool); ok {
			b.add("Multi-select: `" + strconv.FormatBool(multi) + "`")
		}
	}
	return true
}

func renderDefault(b *toolBlock, call toolCall) {
	switch in := call.Input.(type) {
	case map[string]any:
		if cmd, ok := in["command"].(string); ok {
			b.fence("Command:", "bash", cmd)
			return
		}
		if path, ok := in["file_path"].(string); ok {
			b.add("File: " + path)
			return
		}
		keys := make([]string, 0, len(in))
		for k := range in {
			if k != "description" && k != "command" {
				keys = append(keys, k)
			}
		}
		if len(keys) == 0 {
			return
		}
		sort.Strings(keys)
		b.add("Input:")
		for _, k := range keys {
			var value string
			if s, ok := in[k].(string); ok {
				value = strings.TrimSpace(s)
			} else {
				value = compactJSON(in[k])
			}
			if value != "" {
				b.add("- " + k + ": " + value)
			}
		}
	case nil:
		if strings.TrimSpace(call.Raw) != "" {
			b.fence("Input:", "", strings.TrimRight(call.Raw, " \t\r\n"))
		}
	default:
		b.fence("Input:", "json", prettyJSON(in))
	}
}

func renderToolResult(r toolResult) string {
	b := &toolBlock{}
	if name := strings.TrimSpace(r.Name); name != "" {
		b.add("Tool result: " + name)
	} else {
		b.add("Tool result:")
	}
	if r.CallID != "" {
		b.add("Call ID: " + r.CallID)
	}
	switch {
	case r.IsError != nil:
		b.add(statusLine(!*r.IsError))
	case r.ExitCode != nil:
		b.add(statusLine(*r.ExitCode == 0))
	}
	if r.ExitCode != nil {
		b.add("Exit code: " + strconv.Itoa(*r.ExitCode))
	}
	if r.WallTime != "" {
		b.add("Wall time: " + r.WallTime)
	}
	if strings.TrimSpace(r.Output) != "" {
		b.add("Output:", "````\n"+strings.TrimRight(r.Output, " \t\r\n")+"\n````")
	}
	return b.String()
}

func statusLine(ok bool) string {
	if ok {
		return "Status: ok"
	}
	return "Status: error"
}

var (
	exitCodeRe = regexp.MustCompile(`(?m)^Exit code:\s*(-?\d+)\s*$`)
	wallTimeRe = regexp.MustCompile(`(?m)^Wall time:\s*(.+?)\s*$`)
)

// fillShellOutput reads tool output that is either a structured
// {"output": ..., "metadata": {...}} payload or the textual
// "Exit code: N / Wall time: T / Output:" convention.
func fillShellOutput(r *toolResult, raw any) {
	if s, ok := raw.(string); ok {
		if parsed, ok := tryParseJSON(s).(map[string]any); ok && hasOutputShape(parsed) {
			fillStructuredOutput(r, parsed)
			return
		}
		fillTextOutput(r, s)
		return
	}
	switch v := raw.(type) {
	case nil:
	case map[string]any:
		if hasOutputShape(v) {
			fillStructuredOutput(r, v)
			return
		}
		r.Output = prettyJSON(v)
	default:
		if text, ok := contentText(v); ok {
			fillTextOutput(r, text)
			return
		}
		r.Output = prettyJSON(v)
	}
}

func hasOutputShape(m map[string]any) bool {
	_, out := m["output"]
	_, meta := m["metadata"]
	return out || meta
}

func fillStructuredOutput(r *toolResult, m map[string]any) {
	if meta, ok := m["metadata"].(map[string]any); ok {
		if code, ok := intField(meta, "exit_code"); ok {
			r.ExitCode = &code
		}
		if dur, ok := meta["duration_seconds"].(float64); ok {
			r.WallTime = fmt.Sprintf("%.3fs", dur)
		}
	}
	switch out := m["output"].(type) {
	case nil:
	case string:
		r.Output = strings.Trim(out, "\n")
	default:
		r.Output = prettyJSON(out)
	}
}

func fillTextOutput(r *toolResult, s string) {
	if m := exitCodeRe.FindStringSubmatch(s); m != nil {
		if code, err := strconv.Atoi(m[1]); err == nil {
			r.ExitCode = &code
		}
	}
	if m := wallTimeRe.FindStringSubmatch(s); m != nil {
		r.WallTime = strings.TrimSpace(m[1])
	}
	if _, body, ok := strings.Cut(s, "\nOutput:\n"); ok {
		r.Output = strings.Trim(body, "\n")
		return
	}
	r.Output = strings.Trim(s, "\n")
}

// contentText joins an array of {"text": ...} content parts. It reports false
// when v is not such an array.
func contentText(v any) (string, bool) {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return "", false
	}
	var parts []string
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return "", false
		}
		text, ok := m["text"].(string)
		if !ok {
			return "", false
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n"), true
}

// tryParseJSON decodes s when it looks like a JSON object or array.
func tryParseJSON(s string) any {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') {
		return nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil
	}
	return v
}

func prettyJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return strings.TrimSpace(s)
}

// intField reads an integral JSON number.
func intField(m map[string]any, key string) (int, bool) {
	f, ok := m[key].(float64)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
