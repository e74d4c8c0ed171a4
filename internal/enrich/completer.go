package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"feedbrief/internal/config"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

var (
	ErrMissingCredential = errors.New("missing credential")
	ErrEmptyResponse     = errors.New("empty response from summarization service")
	ErrMalformedResponse = errors.New("malformed response from summarization service")
)

// Completer sends one system/user prompt pair to a hosted language model and
// returns the raw reply text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// CompleterFunc adapts a plain function to Completer
type CompleterFunc func(ctx context.Context, system, user string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// NewCompleter builds the completer for the configured provider. It returns
// ErrMissingCredential when no API key is set; callers are expected to carry
// on with a nil completer and degraded enrichment.
func NewCompleter(cfg config.AIConfig) (Completer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredential
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAICompleter(cfg), nil
	case config.ProviderAnthropic:
		return NewAnthropicCompleter(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported AI provider %q", cfg.Provider)
	}
}

// OpenAICompleter talks to any OpenAI-compatible chat completions endpoint.
// Groq is the default.
type OpenAICompleter struct {
	client      openaiclient.Client
	model       string
	temperature float64
	maxTokens   int64
}

func NewOpenAICompleter(cfg config.AIConfig) *OpenAICompleter {
	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(cfg.APIKey),
		openaioption.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, openaioption.WithBaseURL(baseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, openaioption.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAICompleter{
		client:      openaiclient.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   int64(cfg.MaxTokens),
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	params := openaiclient.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openaiclient.ChatCompletionMessageParamUnion{
			openaiclient.SystemMessage(system),
			openaiclient.UserMessage(user),
		},
		Temperature: openaiclient.Float(c.temperature),
		ResponseFormat: openaiclient.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openaiclient.Int(c.maxTokens)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}

// AnthropicCompleter uses the Anthropic Messages API
type AnthropicCompleter struct {
	client      anthropicclient.Client
	model       string
	temperature float64
	maxTokens   int64
}

func NewAnthropicCompleter(cfg config.AIConfig) *AnthropicCompleter {
	opts := []anthropicoption.RequestOption{
		anthropicoption.WithAPIKey(cfg.APIKey),
		anthropicoption.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, anthropicoption.WithRequestTimeout(cfg.Timeout))
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 500
	}

	return &AnthropicCompleter{
		client:      anthropicclient.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

func (c *AnthropicCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropicclient.MessageNewParams{
		Model:       anthropicclient.Model(c.model),
		MaxTokens:   c.maxTokens,
		Temperature: anthropicclient.Float(c.temperature),
		System:      []anthropicclient.TextBlockParam{{Text: system}},
		Messages: []anthropicclient.MessageParam{
			anthropicclient.NewUserMessage(anthropicclient.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("messages request failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}

	return sb.String(), nil
}
