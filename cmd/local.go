package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chatrelay/pkg/bus"
	"chatrelay/pkg/channel"
	"chatrelay/pkg/channel/telegram"
	"chatrelay/pkg/config"
	"chatrelay/pkg/relay"
	"chatrelay/pkg/ui/chat"
)

const (
	consoleChatID   = "console"
	consoleSenderID = "console"
)

// mirrorChatID, when set, sends local replies to that Telegram chat instead of
// keeping them in the console.
var mirrorChatID string

// localNotifier picks the delivery channel for ask and console.
func localNotifier(cfg *config.Config, chatID string, httpClient *http.Client, log *slog.Logger) (channel.Notifier, string, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return chat.NewNotifier(), consoleChatID, nil
	}

	if err := cfg.RequireTelegramToken(); err != nil {
		return nil, "", fmt.Errorf("--chat-id needs a bot token: %w", err)
	}
	notifier, err := telegram.NewNotifier(cfg.Telegram, httpClient, log)
	if err != nil {
		return nil, "", fmt.Errorf("configure telegram: %w", err)
	}

	return notifier, chatID, nil
}

// relayPrompt adapts the pipeline to the console's prompt contract.
func relayPrompt(pipeline *relay.Pipeline, chatID string) chat.PromptFunc {
	return func(ctx context.Context, prompt string) (chat.Reply, error) {
		outcome := pipeline.Handle(ctx, bus.InboundEvent{
			ChatID:     chatID,
			SenderID:   consoleSenderID,
			Text:       prompt,
			ReceivedAt: time.Now().UTC(),
		})

		return chat.Reply{
			Text:      outcome.Reply,
			Delivered: outcome.Delivered,
			Recorded:  outcome.Recorded,
			Note:      outcomeNote(outcome),
		}, nil
	}
}

func outcomeNote(outcome relay.Outcome) string {
	switch outcome.Reason {
	case relay.ReasonNoChat:
		return "ignored: no chat"
	case relay.ReasonEmptyText:
		return "ignored: empty message"
	}

	return ""
}

func runtimeInfo(cfg *config.Config, stack *relayStack, notifier channel.Notifier) chat.RuntimeInfo {
	return chat.RuntimeInfo{
		Provider: stack.provider.Name(),
		Model:    cfg.Completion.Model,
		Store:    stack.sink.Name(),
		Channel:  notifier.Name(),
	}
}
