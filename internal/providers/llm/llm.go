package llm

import (
	"context"
	"errors"
)

// ErrCompletionFailed wraps every remote chat-completion failure:
// transport errors, timeouts, and responses with no choices.
var ErrCompletionFailed = errors.New("completion failed")

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Options struct {
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
}

type Completion struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
	FinishReason     string
}

type Provider interface {
	Complete(ctx context.Context, messages []Message, opts Options) (*Completion, error)
	Close() error
}
