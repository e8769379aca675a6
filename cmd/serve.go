package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chatrelay/pkg/channel/telegram"
	"chatrelay/pkg/config"
	"chatrelay/pkg/gateway"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Telegram webhook over HTTP",
	Long:  "Runs the webhook ingress with liveness and health endpoints until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg, log, err := loadRuntime(runCtx)
		if err != nil {
			return err
		}

		svc, stack, err := buildGateway(runCtx, cfg, newHTTPClient(), log)
		if err != nil {
			return err
		}
		defer stack.Close()

		log.With("component", "cmd.serve").Info("Relay starting",
			"provider", stack.provider.Name(),
			"model", cfg.Completion.Model,
			"store", stack.sink.Name(),
		)
		if err := svc.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// buildGateway wires the Telegram notifier, the pipeline and the ingress.
func buildGateway(ctx context.Context, cfg *config.Config, httpClient *http.Client, log *slog.Logger) (*gateway.Service, *relayStack, error) {
	if err := cfg.RequireTelegramToken(); err != nil {
		return nil, nil, err
	}

	notifier, err := telegram.NewNotifier(cfg.Telegram, httpClient, log)
	if err != nil {
		return nil, nil, fmt.Errorf("configure telegram: %w", err)
	}

	stack, err := buildStack(ctx, cfg, httpClient, notifier, log)
	if err != nil {
		return nil, nil, err
	}

	svc, err := gateway.NewService(cfg.Gateway, stack.pipeline, stack.sink.Enabled(), log)
	if err != nil {
		stack.Close()
		return nil, nil, fmt.Errorf("initialize gateway: %w", err)
	}

	return svc, stack, nil
}
