package shared

import (
	"time"
)

// TokenUsage tracks the tokens consumed by a request.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// AgentMeta holds operational metadata for a single model call made on
// behalf of an operation (initial plan, next day plan, triage).
type AgentMeta struct {
	AgentName string
	Usage     TokenUsage
	Latency   time.Duration
}
