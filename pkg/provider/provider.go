package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"chatrelay/pkg/config"
	providerfantasy "chatrelay/pkg/provider/fantasy"
	provideropenai "chatrelay/pkg/provider/openai"
	"chatrelay/pkg/provider/opencode"
	providertypes "chatrelay/pkg/provider/types"
)

const (
	OpenRouter = "openrouter"
	OpenAI     = "openai"
	Fantasy    = "fantasy"
	OpenCode   = "opencode"
)

// Client performs one fallible completion call. Implementations never
// substitute fallback text; that policy belongs to the caller.
type Client interface {
	Name() string
	Complete(ctx context.Context, req providertypes.CompletionRequest) (providertypes.Completion, error)
}

// New builds the configured provider. httpClient is shared with other
// outbound calls where the backend SDK accepts one; nil uses SDK defaults.
func New(cfg config.CompletionConfig, httpClient *http.Client) (Client, error) {
	providerID := cfg.Provider
	if providerID == "" {
		providerID = OpenRouter
	}

	slog.Default().With("component", "provider.factory").Debug("Resolving provider client", "provider", providerID)

	switch providerID {
	case OpenRouter, OpenAI:
		return provideropenai.New(providerID, cfg, httpClient)
	case Fantasy:
		return providerfantasy.New(cfg)
	case OpenCode:
		return opencode.New(cfg, httpClient)
	default:
		return nil, fmt.Errorf("unsupported completion provider: %s", providerID)
	}
}
