//go:build llama

package adapters

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"

	chatports "github.com/murmurvoice/murmur/murmur/chat/ports"
)

// LlamaProvider runs a GGUF model in-process through llama.cpp instead of
// calling out to LM Studio. The model is loaded once at startup; Predict is
// serialized behind a mutex since llama contexts are not goroutine-safe.
type LlamaProvider struct {
	mu    sync.Mutex
	model *llama.LLama
}

// NewLlamaProvider loads the GGUF model at modelPath.
func NewLlamaProvider(modelPath string, contextSize int) (*LlamaProvider, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: model file %s: %v", chatports.ErrLLMUnreachable, modelPath, err)
	}
	if contextSize <= 0 {
		contextSize = 4096
	}

	model, err := llama.New(modelPath, llama.SetContext(contextSize))
	if err != nil {
		return nil, fmt.Errorf("%w: loading %s: %v", chatports.ErrLLMUnreachable, modelPath, err)
	}

	return &LlamaProvider{model: model}, nil
}

// Complete flattens the history into a ChatML prompt and generates a reply.
func (p *LlamaProvider) Complete(ctx context.Context, in chatports.PromptInput, opts chatports.Options) (chatports.Completion, error) {
	if err := ctx.Err(); err != nil {
		return chatports.Completion{}, fmt.Errorf("%w: %v", chatports.ErrLLMUnreachable, err)
	}

	prompt := buildChatMLPrompt(in)

	predictOpts := []llama.PredictOption{
		llama.SetTemperature(float32(opts.Temperature)),
		llama.SetStopWords("<|im_end|>"),
	}
	if opts.MaxTokens > 0 {
		predictOpts = append(predictOpts, llama.SetTokens(opts.MaxTokens))
	}

	p.mu.Lock()
	text, err := p.model.Predict(prompt, predictOpts...)
	p.mu.Unlock()
	if err != nil {
		return chatports.Completion{}, fmt.Errorf("%w: prediction: %v", chatports.ErrLLMRejected, err)
	}

	return chatports.Completion{Text: strings.TrimSpace(text)}, nil
}

// Close frees the underlying llama context.
func (p *LlamaProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		p.model.Free()
		p.model = nil
	}
}

// buildChatMLPrompt renders the history in ChatML, the lingua franca of
// local instruction-tuned GGUF builds.
func buildChatMLPrompt(in chatports.PromptInput) string {
	var b strings.Builder
	if in.System != "" {
		fmt.Fprintf(&b, "<|im_start|>system\n%s<|im_end|>\n", strings.TrimSpace(in.System))
	}
	for _, m := range in.Messages {
		fmt.Fprintf(&b, "<|im_start|>%s\n%s<|im_end|>\n", m.Role, strings.TrimSpace(m.Content))
	}
	b.WriteString("<|im_start|>assistant\n")
	return b.String()
}

var _ chatports.Provider = (*LlamaProvider)(nil)
