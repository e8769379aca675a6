package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chatrelay/pkg/config"
	providertypes "chatrelay/pkg/provider/types"

	osdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	openRouterBaseURL = "https://openrouter.ai/api/v1"
	openAIBaseURL     = "https://api.openai.com/v1"
)

var errMissingAPIKey = errors.New("completion.api_key is not configured")

// Client speaks the chat-completions wire format. OpenRouter and OpenAI
// share it, only the base URL and model naming differ.
type Client struct {
	name   string
	model  string
	client osdk.Client
	hasKey bool
}

// New builds a chat-completions client. A missing API key is not fatal here;
// every Complete call fails instead so the caller's fallback applies.
func New(name string, cfg config.CompletionConfig, httpClient *http.Client) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL(name)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("completion.model is required")
	}

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL + "/"),
		option.WithAPIKey(cfg.APIKey),
		// Retries would stretch a webhook request past the completion timeout.
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	if cfg.APIKey == "" {
		providerLogger(name).Warn("Completion API key missing; replies will use fallback text")
	}

	return &Client{
		name:   name,
		model:  model,
		client: osdk.NewClient(opts...),
		hasKey: cfg.APIKey != "",
	}, nil
}

func (c *Client) Name() string {
	return c.name
}

func (c *Client) Complete(ctx context.Context, req providertypes.CompletionRequest) (providertypes.Completion, error) {
	log := providerLogger(c.name).With("operation", "complete")
	startedAt := time.Now()

	if !c.hasKey {
		return providertypes.Completion{}, errMissingAPIKey
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}

	messages := make([]osdk.ChatCompletionMessageParamUnion, 0, 2)
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, osdk.SystemMessage(system))
	}
	messages = append(messages, osdk.UserMessage(req.Prompt))

	log.Debug("provider request started", "model", model, "prompt_length", len(req.Prompt))

	response, err := c.client.Chat.Completions.New(ctx, osdk.ChatCompletionNewParams{
		Model:    osdk.ChatModel(model),
		Messages: messages,
	})
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return providertypes.Completion{}, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(response.Choices) == 0 {
		return providertypes.Completion{}, errors.New("chat completion returned no choices")
	}

	text := response.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "empty content")
		return providertypes.Completion{}, errors.New("chat completion returned no text")
	}

	responseModel := response.Model
	if responseModel == "" {
		responseModel = model
	}

	log.Debug("provider request completed",
		"duration_ms", time.Since(startedAt).Milliseconds(),
		"response_length", len(text),
		"model", responseModel,
	)

	return providertypes.Completion{
		Text: text,
		Metadata: providertypes.CompletionMetadata{
			Provider: c.name,
			Model:    responseModel,
			Usage: providertypes.UsageOrNil(providertypes.TokenUsage{
				InputTokens:     response.Usage.PromptTokens,
				OutputTokens:    response.Usage.CompletionTokens,
				TotalTokens:     response.Usage.TotalTokens,
				ReasoningTokens: response.Usage.CompletionTokensDetails.ReasoningTokens,
				CacheReadTokens: response.Usage.PromptTokensDetails.CachedTokens,
			}),
		},
	}, nil
}

func defaultBaseURL(name string) string {
	if name == "openai" {
		return openAIBaseURL
	}

	return openRouterBaseURL
}

func providerLogger(name string) *slog.Logger {
	return slog.Default().With("component", "provider."+name)
}
