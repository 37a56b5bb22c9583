package parse

// Roles a normalized message can carry.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
	RoleOther     = "other"
)

// Kinds a normalized message can carry.
const (
	KindMessage          = "message"
	KindContext          = "context"
	KindToolUse          = "tool_use"
	KindToolResult       = "tool_result"
	KindReasoningSummary = "reasoning_summary"
	KindAgentReasoning   = "agent_reasoning"
	KindThinking         = "thinking"
)

// Parser versions. Bump when the rendering of a format changes so that
// existing index rows are re-derived on the next scan.
const (
	CodexParserVersion  = 4
	ClaudeParserVersion = 3
)

// MaxSearchChars caps the searchable text kept per session.
const MaxSearchChars = 2_000_000

const maxTitleChars = 80

type Session struct {
	ID           string
	FilePath     string
	StartTsMs    int64
	EndTsMs      int64
	Cwd          string // empty when the log never recorded one
	Title        string
	MessageCount int
}

type Message struct {
	TsMs int64
	Role string
	Kind string
	Text string
}

// Result is everything derived from one log file.
type Result struct {
	Session    Session
	Messages   []Message
	SearchBlob string
}

// Func parses one log file. A nil Result with a nil error means the file
// disappeared and should be skipped for this cycle.
type Func func(path string) (*Result, error)
