package parse

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dlclark/regexp2"
)

const (
	permissionsOpen  = "<permissions instructions>"
	permissionsClose = "</permissions instructions>"
	environmentOpen  = "<environment_context>"
	environmentClose = "</environment_context>"
	agentsHeader     = "# AGENTS.md instructions for "
	instructionsTag  = "<INSTRUCTIONS>"
)

var (
	permissionsRe = regexp.MustCompile(`(?s)<permissions instructions>\s*(.*?)\s*</permissions instructions>`)
	environmentRe = regexp.MustCompile(`(?s)<environment_context>\s*(.*?)\s*</environment_context>`)
	skillRe       = regexp.MustCompile(`(?m)^-\s*([a-zA-Z0-9_-]+):`)

	// RE2 has no backreferences, so matching <key>value</key> pairs needs regexp2.
	envPairRe = regexp2.MustCompile(`<([a-zA-Z0-9_]+)>(.*?)</\1>`, regexp2.Singleline)
)

// Normalized is the outcome of NormalizeContext.
type Normalized struct {
	Role    string
	Kind    string
	Text    string
	Context bool // harness boilerplate; excluded from counts and titles
}

// NormalizeContext detects harness-injected wrapper messages (permission
// banners, environment dumps, agent instruction files) and rewrites them into
// a compact summary with kind "context". Text that matches no known wrapper is
// returned unchanged.
func NormalizeContext(role, kind, text string) Normalized {
	out := Normalized{Role: role, Kind: kind, Text: text}
	if text == "" {
		return out
	}
	s := strings.TrimSpace(text)

	switch {
	case strings.Contains(s, permissionsOpen) && strings.Contains(s, permissionsClose):
		out.Text = s
		if m := permissionsRe.FindStringSubmatch(s); m != nil {
			out.Text = strings.TrimSpace(m[1])
		}
		out.Kind, out.Context = KindContext, true

	case strings.Contains(s, environmentOpen) && strings.Contains(s, environmentClose):
		var inner string
		if m := environmentRe.FindStringSubmatch(s); m != nil {
			inner = m[1]
		}
		out.Role, out.Kind, out.Text, out.Context = RoleSystem, KindContext, summarizeEnvironment(inner), true

	case strings.HasPrefix(s, agentsHeader) || strings.Contains(s, instructionsTag):
		out.Role, out.Kind, out.Text, out.Context = RoleSystem, KindContext, summarizeInstructions(s), true
	}
	return out
}

func summarizeEnvironment(inner string) string {
	lines := []string{"Environment context:"}
	m, _ := envPairRe.FindStringMatch(inner)
	for m != nil {
		groups := m.Groups()
		if val := strings.TrimSpace(groups[2].String()); val != "" {
			lines = append(lines, "- "+groups[1].String()+": "+val)
		}
		m, _ = envPairRe.FindNextMatch(m)
	}
	if len(lines) == 1 {
		lines = append(lines, "(empty)")
	}
	return strings.Join(lines, "\n")
}

func summarizeInstructions(s string) string {
	first, _, _ := strings.Cut(s, "\n")
	lines := []string{strings.TrimSpace(first)}

	seen := make(map[string]struct{})
	var skills []string
	for _, m := range skillRe.FindAllStringSubmatch(s, -1) {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		skills = append(skills, m[1])
	}
	if len(skills) > 0 {
		sort.Strings(skills)
		lines = append(lines, "Skills: "+strings.Join(skills, ", "))
	}
	lines = append(lines, "(omitted)")
	return strings.Join(lines, "\n")
}
