//go:build !llama

package adapters

import (
	"context"
	"fmt"

	chatports "github.com/murmurvoice/murmur/murmur/chat/ports"
)

// LlamaProvider stub for builds without the llama tag.
type LlamaProvider struct{}

func NewLlamaProvider(modelPath string, contextSize int) (*LlamaProvider, error) {
	return nil, fmt.Errorf("%w: built without llama.cpp support (rebuild with -tags llama)", chatports.ErrLLMUnreachable)
}

func (p *LlamaProvider) Complete(ctx context.Context, in chatports.PromptInput, opts chatports.Options) (chatports.Completion, error) {
	return chatports.Completion{}, fmt.Errorf("%w: built without llama.cpp support", chatports.ErrLLMUnreachable)
}

func (p *LlamaProvider) Close() {}

var _ chatports.Provider = (*LlamaProvider)(nil)
