package opencode

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"chatrelay/pkg/config"
	providertypes "chatrelay/pkg/provider/types"

	sdk "github.com/sst/opencode-sdk-go"
	"github.com/sst/opencode-sdk-go/option"
)

const (
	providerName    = "opencode"
	sessionTitle    = "chatrelay"
	defaultUsername = "opencode"
)

// Client forwards prompts to an opencode server. Each completion opens a
// fresh session so no conversation state leaks between chats.
type Client struct {
	client *sdk.Client
	model  string
}

func New(cfg config.CompletionConfig, httpClient *http.Client) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("completion.base_url is required for the opencode provider")
	}

	opts := []option.RequestOption{option.WithBaseURL(baseURL)}
	if authHeader, ok := buildBasicAuthHeader(cfg.Username, cfg.Password); ok {
		opts = append(opts, option.WithHeader("Authorization", authHeader))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &Client{
		client: sdk.NewClient(opts...),
		model:  strings.TrimSpace(cfg.Model),
	}, nil
}

func (c *Client) Name() string {
	return providerName
}

func (c *Client) Complete(ctx context.Context, req providertypes.CompletionRequest) (providertypes.Completion, error) {
	log := providerLogger().With("operation", "complete")
	startedAt := time.Now()

	if strings.TrimSpace(req.System) != "" {
		// The opencode agent carries its own system prompt.
		log.Debug("system prompt not forwarded to opencode")
	}

	session, err := c.client.Session.New(ctx, sdk.SessionNewParams{Title: sdk.F(sessionTitle)})
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return providertypes.Completion{}, fmt.Errorf("create session failed: %w", err)
	}
	if session.ID == "" {
		return providertypes.Completion{}, errors.New("create session returned empty session id")
	}

	params := sdk.SessionPromptParams{
		Parts: sdk.F([]sdk.SessionPromptParamsPartUnion{
			sdk.TextPartInputParam{
				Type: sdk.F(sdk.TextPartInputTypeText),
				Text: sdk.F(req.Prompt),
			},
		}),
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	if providerID, modelID, ok := parseModelRef(model); ok {
		params.Model = sdk.F(sdk.SessionPromptParamsModel{
			ProviderID: sdk.F(providerID),
			ModelID:    sdk.F(modelID),
		})
	}

	log.Debug("provider request started", "session_id", session.ID, "model", model, "prompt_length", len(req.Prompt))

	response, err := c.client.Session.Prompt(ctx, session.ID, params)
	if err != nil {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", err)
		return providertypes.Completion{}, fmt.Errorf("prompt failed: %w", err)
	}

	text := extractText(response.Parts)
	if text == "" {
		log.Debug("provider request failed", "duration_ms", time.Since(startedAt).Milliseconds(), "error", "no text parts")
		return providertypes.Completion{}, errors.New("prompt succeeded but returned no text parts")
	}
	log.Debug("provider request completed",
		"duration_ms", time.Since(startedAt).Milliseconds(),
		"response_length", len(text),
		"parts_count", len(response.Parts),
	)

	input := tokenCount(response.Info.Tokens.Input)
	output := tokenCount(response.Info.Tokens.Output)

	return providertypes.Completion{
		Text: text,
		Metadata: providertypes.CompletionMetadata{
			Provider: providerName,
			Model:    strings.TrimSpace(response.Info.ModelID),
			Usage: providertypes.UsageOrNil(providertypes.TokenUsage{
				InputTokens:     input,
				OutputTokens:    output,
				TotalTokens:     input + output,
				ReasoningTokens: tokenCount(response.Info.Tokens.Reasoning),
				CacheReadTokens: tokenCount(response.Info.Tokens.Cache.Read),
			}),
		},
	}, nil
}

func providerLogger() *slog.Logger {
	return slog.Default().With("component", "provider.opencode")
}

func buildBasicAuthHeader(username, password string) (string, bool) {
	password = strings.TrimSpace(password)
	if password == "" {
		return "", false
	}

	username = strings.TrimSpace(username)
	if username == "" {
		username = defaultUsername
	}

	token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	return "Basic " + token, true
}

func parseModelRef(input string) (providerID string, modelID string, ok bool) {
	providerID, modelID, found := strings.Cut(strings.TrimSpace(input), "/")
	if !found {
		return "", "", false
	}

	providerID = strings.TrimSpace(providerID)
	modelID = strings.TrimSpace(modelID)
	if providerID == "" || modelID == "" {
		return "", "", false
	}

	return providerID, modelID, true
}

func extractText(parts []sdk.Part) string {
	var lines []string
	for _, part := range parts {
		if part.Type == sdk.PartTypeText {
			text := strings.TrimSpace(part.Text)
			if text != "" {
				lines = append(lines, text)
			}
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func tokenCount(value float64) int64 {
	if value <= 0 {
		return 0
	}

	return int64(math.Round(value))
}
