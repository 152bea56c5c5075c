package agentloop

import "time"

// RunParams carries the inputs to one agent turn.
type RunParams struct {
	UserMessage string
	SessionKey  string
	CWD         string
	Config      Config
	OnToken     func(delta string) // optional streaming callback
}

// Config configures one run of the agent loop.
type Config struct {
	Model                    string
	Temperature              float64
	MaxTokens                int
	SystemPrompt             string
	Tools                    []string
	UseMemory                bool
	MaxRetries               int
	PlanningMode             PlanningMode
	ContextWindowTokens      int // used to derive compactionTokenThreshold (90%)
	AllowUnsafeExternalContent bool
}

// PlanningMode controls whether and when a plan is generated (step 3).
type PlanningMode string

const (
	PlanningFast       PlanningMode = "fast"
	PlanningAuto       PlanningMode = "auto"
	PlanningAutonomous PlanningMode = "autonomous"
)

// DefaultConfig returns sensible defaults mirroring the teacher's.
func DefaultConfig() Config {
	return Config{
		Model:               "claude-3-5-sonnet-20241022",
		Temperature:         0.7,
		MaxTokens:           4096,
		MaxRetries:          3,
		PlanningMode:        PlanningAuto,
		ContextWindowTokens: 200_000,
	}
}

// RunResult is returned from a completed agent turn.
type RunResult struct {
	Reply      string
	History    []Message
	Usage      TokenUsage
	ToolCalls  []ToolCall
	Aborted    bool
	TokenMode  string // "exact-ish" or "estimate"
}

// Message is one entry of conversational history, provider-agnostic.
type Message struct {
	Role       string // system, user, assistant, tool
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Metadata   map[string]interface{}
}

// ToolCall is one LLM-requested tool invocation.
type ToolCall struct {
	ID         string
	Name       string
	Parameters map[string]interface{}
}

// TokenUsage tallies input/output tokens for a turn.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// AuthProfile is one set of provider credentials, ordered by Priority and
// subject to cooldown after repeated failures.
type AuthProfile struct {
	ID            string
	Provider      string // "anthropic", "openai", "gemini"
	APIKey        string
	CooldownUntil *int64
	FailureCount  int
	Priority      int
}

// PlanStep is one step of an execution plan (step 3).
type PlanStep struct {
	Description string `json:"description"`
	Done        bool   `json:"done"`
}

// Plan is the JSON structure an LLM plan call is expected to return.
type Plan struct {
	Goal               string     `json:"goal"`
	Steps              []PlanStep `json:"steps"`
	CompletionCriteria []string   `json:"completion_criteria"`
}

func nowMs() int64 { return time.Now().UnixMilli() }
