package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	chatports "github.com/murmurvoice/murmur/murmur/chat/ports"
)

// LMStudioProvider talks to an LM Studio server through its OpenAI-compatible
// chat completions endpoint.
type LMStudioProvider struct {
	client openai.Client
	model  string
}

// NewLMStudioProvider creates a provider for the given base URL (typically
// http://localhost:1234/v1) and model identifier. LM Studio ignores API keys
// but the client requires one, so a placeholder is sent.
func NewLMStudioProvider(baseURL, model string, timeout time.Duration) *LMStudioProvider {
	client := openai.NewClient(
		option.WithBaseURL(strings.TrimSuffix(baseURL, "/")),
		option.WithAPIKey("lm-studio"),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0), // retry policy belongs to the manager
	)
	return &LMStudioProvider{client: client, model: model}
}

// Complete sends the full ordered history and returns the assistant text.
func (p *LMStudioProvider) Complete(ctx context.Context, in chatports.PromptInput, opts chatports.Options) (chatports.Completion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(in.Messages)+1)
	if in.System != "" {
		messages = append(messages, openai.SystemMessage(in.System))
	}
	for _, m := range in.Messages {
		switch m.Role {
		case chatports.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Content))
		case chatports.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.model),
		Messages:    messages,
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(opts.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return chatports.Completion{}, classifyLMStudioError(err)
	}

	if len(resp.Choices) == 0 {
		return chatports.Completion{}, fmt.Errorf("%w: response carried no choices", chatports.ErrLLMRejected)
	}

	completion := chatports.Completion{Text: resp.Choices[0].Message.Content}
	if resp.Usage.TotalTokens > 0 {
		completion.Usage = &chatports.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		}
	}

	return completion, nil
}

// classifyLMStudioError maps transport failures to ErrLLMUnreachable and any
// answered non-success status to ErrLLMRejected.
func classifyLMStudioError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: status %d: %s", chatports.ErrLLMRejected, apiErr.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("%w: %v", chatports.ErrLLMUnreachable, err)
}

var _ chatports.Provider = (*LMStudioProvider)(nil)
