package cmd

import (
	"github.com/spf13/cobra"

	"chatrelay/pkg/ui/chat"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Chat with the relay pipeline in the terminal",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg, log, err := loadRuntime(ctx)
		if err != nil {
			return err
		}

		httpClient := newHTTPClient()
		notifier, chatID, err := localNotifier(cfg, mirrorChatID, httpClient, log)
		if err != nil {
			return err
		}

		stack, err := buildStack(ctx, cfg, httpClient, notifier, log)
		if err != nil {
			return err
		}
		defer stack.Close()

		return chat.RunInteractive(ctx, relayPrompt(stack.pipeline, chatID), runtimeInfo(cfg, stack, notifier))
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
	consoleCmd.Flags().StringVar(&mirrorChatID, "chat-id", "", "deliver replies to this Telegram chat")
}
