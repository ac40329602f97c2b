package domain

import "context"

// Role is a chat message author.
type Role string

// Chat roles understood by completers.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ResponseFormat selects the completion output format.
type ResponseFormat string

const (
	// FormatText requests free-form text.
	FormatText ResponseFormat = "text"
	// FormatJSON requests a single JSON object.
	FormatJSON ResponseFormat = "json_object"
)

// Message is one chat turn.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest describes one call to a text completer.
// Model may be empty, in which case the completer uses its configured default.
type CompletionRequest struct {
	Messages    []Message
	Model       string
	Temperature float32
	MaxTokens   int
	Format      ResponseFormat
}

// CompletionResult is the generated text plus usage counts.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// TextCompleter is the text generation contract consumed by the search reranker.
type TextCompleter interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
}
