package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	"github.com/spf13/cobra"

	"chatrelay/pkg/channel/telegram"
)

var dropPending bool

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Manage the Telegram webhook registration",
}

var webhookSetCmd = &cobra.Command{
	Use:   "set <url>",
	Short: "Point Telegram at this relay's /webhook endpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBot(cmd.Context(), func(ctx context.Context, bot *telegram.Notifier) error {
			if err := bot.SetWebhook(ctx, args[0], dropPending); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "webhook set: %s\n", strings.TrimSpace(args[0]))
			return nil
		})
	},
}

var webhookDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove the Telegram webhook registration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withBot(cmd.Context(), func(ctx context.Context, bot *telegram.Notifier) error {
			if err := bot.DeleteWebhook(ctx, dropPending); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "webhook deleted")
			return nil
		})
	},
}

var webhookInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the current Telegram webhook registration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withBot(cmd.Context(), func(ctx context.Context, bot *telegram.Notifier) error {
			info, err := bot.WebhookInfo(ctx)
			if err != nil {
				return err
			}
			printWebhookInfo(cmd.OutOrStdout(), info)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(webhookCmd)
	webhookCmd.AddCommand(webhookSetCmd, webhookDeleteCmd, webhookInfoCmd)
	webhookCmd.PersistentFlags().BoolVar(&dropPending, "drop-pending", false, "discard updates queued by Telegram")
}

func withBot(ctx context.Context, fn func(context.Context, *telegram.Notifier) error) error {
	cfg, log, err := loadRuntime(ctx)
	if err != nil {
		return err
	}
	if err := cfg.RequireTelegramToken(); err != nil {
		return err
	}

	bot, err := telegram.NewNotifier(cfg.Telegram, newHTTPClient(), log)
	if err != nil {
		return fmt.Errorf("configure telegram: %w", err)
	}

	return fn(ctx, bot)
}

func printWebhookInfo(out io.Writer, info *telego.WebhookInfo) {
	if info == nil || info.URL == "" {
		fmt.Fprintln(out, "webhook: not set")
		return
	}

	fmt.Fprintf(out, "webhook: %s\n", info.URL)
	fmt.Fprintf(out, "pending updates: %d\n", info.PendingUpdateCount)
	if len(info.AllowedUpdates) > 0 {
		fmt.Fprintf(out, "allowed updates: %s\n", strings.Join(info.AllowedUpdates, ","))
	}
	if info.LastErrorMessage != "" {
		at := time.Unix(info.LastErrorDate, 0).UTC().Format(time.RFC3339)
		fmt.Fprintf(out, "last error: %s (%s)\n", info.LastErrorMessage, at)
	}
}
