package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
)

// SetWebhook points Telegram at url. dropPending discards updates queued
// while no webhook was registered.
func (n *Notifier) SetWebhook(ctx context.Context, url string, dropPending bool) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("webhook url is required")
	}

	if err := n.bot.SetWebhook(ctx, &telego.SetWebhookParams{
		URL:                url,
		AllowedUpdates:     []string{"message"},
		DropPendingUpdates: dropPending,
	}); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}

	n.log.Info("Webhook registered", "url", url)
	return nil
}

// DeleteWebhook removes the registered webhook.
func (n *Notifier) DeleteWebhook(ctx context.Context, dropPending bool) error {
	if err := n.bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{DropPendingUpdates: dropPending}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}

	n.log.Info("Webhook deleted")
	return nil
}

// WebhookInfo reports the current webhook registration.
func (n *Notifier) WebhookInfo(ctx context.Context) (*telego.WebhookInfo, error) {
	info, err := n.bot.GetWebhookInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("get webhook info: %w", err)
	}

	return info, nil
}
