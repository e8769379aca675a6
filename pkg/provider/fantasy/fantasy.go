package fantasy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	core "charm.land/fantasy"
	provideropenai "charm.land/fantasy/providers/openai"

	"chatrelay/pkg/config"
	providertypes "chatrelay/pkg/provider/types"
)

const providerName = "fantasy"

type languageModelProvider interface {
	LanguageModel(ctx context.Context, modelID string) (core.LanguageModel, error)
}

// Client runs single-turn completions through the fantasy agent runtime
// backed by its OpenAI-compatible provider.
type Client struct {
	provider languageModelProvider
	modelID  string
	generate func(context.Context, core.LanguageModel, core.AgentCall) (*core.AgentResult, error)
}

func New(cfg config.CompletionConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("completion.api_key is required for the fantasy provider")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	modelID, err := normalizeModel(cfg.Model, baseURL == "")
	if err != nil {
		return nil, err
	}

	providerOptions := []provideropenai.Option{provideropenai.WithAPIKey(cfg.APIKey)}
	if baseURL != "" {
		providerOptions = append(providerOptions, provideropenai.WithBaseURL(baseURL))
	}

	fantasyProvider, err := provideropenai.New(providerOptions...)
	if err != nil {
		return nil, fmt.Errorf("initialize fantasy openai provider: %w", err)
	}

	return &Client{
		provider: fantasyProvider,
		modelID:  modelID,
		generate: generateWithFantasyAgent,
	}, nil
}

func (c *Client) Name() string {
	return providerName
}

func (c *Client) Complete(ctx context.Context, req providertypes.CompletionRequest) (providertypes.Completion, error) {
	modelID := c.modelID
	if requested := strings.TrimSpace(req.Model); requested != "" {
		modelID = requested
	}

	languageModel, err := c.provider.LanguageModel(ctx, modelID)
	if err != nil {
		return providertypes.Completion{}, fmt.Errorf("resolve language model: %w", err)
	}

	call := core.AgentCall{Prompt: req.Prompt}
	if system := strings.TrimSpace(req.System); system != "" {
		call.Messages = []core.Message{{
			Role:    core.MessageRoleSystem,
			Content: []core.MessagePart{core.TextPart{Text: system}},
		}}
	}

	generate := c.generate
	if generate == nil {
		generate = generateWithFantasyAgent
	}

	result, err := generate(ctx, languageModel, call)
	if err != nil {
		return providertypes.Completion{}, fmt.Errorf("completion failed: %w", err)
	}

	text := extractText(result.Response.Content)
	if text == "" {
		return providertypes.Completion{}, errors.New("completion succeeded but returned no text")
	}

	return providertypes.Completion{
		Text: text,
		Metadata: providertypes.CompletionMetadata{
			Provider: providerName,
			Model:    modelID,
			Usage: providertypes.UsageOrNil(providertypes.TokenUsage{
				InputTokens:     result.TotalUsage.InputTokens,
				OutputTokens:    result.TotalUsage.OutputTokens,
				TotalTokens:     result.TotalUsage.TotalTokens,
				ReasoningTokens: result.TotalUsage.ReasoningTokens,
				CacheReadTokens: result.TotalUsage.CacheReadTokens,
			}),
		},
	}, nil
}

// normalizeModel strips an "openai/" prefix when talking to OpenAI directly.
// Custom base URLs (OpenRouter and friends) receive the model id untouched.
func normalizeModel(model string, direct bool) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", errors.New("completion.model is required")
	}
	if !direct {
		return model, nil
	}

	providerID, modelID, found := strings.Cut(model, "/")
	if !found {
		return model, nil
	}

	providerID = strings.TrimSpace(providerID)
	modelID = strings.TrimSpace(modelID)
	if providerID == "" || modelID == "" {
		return "", errors.New("completion.model is invalid")
	}
	if providerID != "openai" {
		return "", fmt.Errorf("model provider %q needs completion.base_url pointing at a compatible gateway", providerID)
	}

	return modelID, nil
}

func extractText(content core.ResponseContent) string {
	lines := make([]string, 0)
	for _, part := range content {
		if part.GetType() != core.ContentTypeText {
			continue
		}

		textPart, ok := core.AsContentType[core.TextContent](part)
		if !ok {
			continue
		}

		line := strings.TrimSpace(textPart.Text)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func generateWithFantasyAgent(ctx context.Context, model core.LanguageModel, call core.AgentCall) (*core.AgentResult, error) {
	runtime := core.NewAgent(model)
	return runtime.Generate(ctx, call)
}
