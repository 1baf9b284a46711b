package chatports

import "context"

// PromptMessage is a single chat message sent to the model.
type PromptMessage struct {
	Role    Role
	Content string
}

// PromptInput aggregates everything the provider needs for one completion.
type PromptInput struct {
	System   string          // optional system instructions, sent first
	Messages []PromptMessage // ordered chat history
}

// Options controls decoding for one completion.
type Options struct {
	Temperature float64
	MaxTokens   int // 0 means provider default
}

// Usage captures token accounting when the endpoint reports it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completion is the provider's response.
type Completion struct {
	Text  string
	Usage *Usage
}

// Provider is the abstraction over LLM backends. Transport failures wrap
// ErrLLMUnreachable; non-success responses wrap ErrLLMRejected. The provider
// must send messages in exactly the order they appear in the input.
type Provider interface {
	Complete(ctx context.Context, in PromptInput, opts Options) (Completion, error)
}
