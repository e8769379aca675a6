package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"chatrelay/pkg/ui/chat"
)

var (
	promptText string
	plainReply bool
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Send one message through the relay pipeline",
	Long:  "Runs a single message through the same pipeline the webhook uses and prints the reply.",
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := resolvePrompt(args)
		if prompt == "" {
			return errors.New("a prompt is required (pass it as arguments or with --prompt)")
		}

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

		promptFn := relayPrompt(stack.pipeline, chatID)
		if plainReply {
			reply, err := promptFn(ctx, prompt)
			if err != nil {
				return err
			}
			printAssistantMessage(cmd.OutOrStdout(), reply.Text)
			return nil
		}

		return chat.RunOneShot(ctx, promptFn, prompt, runtimeInfo(cfg, stack, notifier))
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&promptText, "prompt", "p", "", "prompt text to send")
	askCmd.Flags().BoolVar(&plainReply, "plain", false, "print the reply without the terminal UI")
	askCmd.Flags().StringVar(&mirrorChatID, "chat-id", "", "deliver the reply to this Telegram chat")
}

func resolvePrompt(args []string) string {
	if value := strings.TrimSpace(promptText); value != "" {
		return value
	}

	if len(args) == 0 {
		return ""
	}

	return strings.TrimSpace(strings.Join(args, " "))
}

func printAssistantMessage(out io.Writer, message string) {
	lines := assistantLines(message)
	for _, line := range lines {
		fmt.Fprintf(out, "🤖 %s\n", line)
	}
	if len(lines) > 0 {
		fmt.Fprintln(out)
	}
}

func assistantLines(message string) []string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return nil
	}

	return strings.Split(trimmed, "\n")
}
