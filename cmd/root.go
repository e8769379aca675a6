package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"chatrelay/pkg/config"
	"chatrelay/pkg/logger"
	"chatrelay/pkg/paramstore"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "chatrelay",
	Short:         "Relay Telegram messages to an LLM and send the replies back",
	Long:          "chatrelay receives Telegram webhook updates, asks a completion provider for a reply, delivers it to the chat and optionally records the exchange.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config file (json or yaml)")
}

// loadRuntime reads configuration, installs the process logger and resolves
// ssm: secret references.
func loadRuntime(ctx context.Context) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)

	if err := paramstore.ResolveFromEnvironment(ctx, cfg); err != nil {
		return nil, nil, fmt.Errorf("resolve secrets: %w", err)
	}

	return cfg, appLogger, nil
}
