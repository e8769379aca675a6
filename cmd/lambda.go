package cmd

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Serve the Telegram webhook as an AWS Lambda behind API Gateway",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		cfg, log, err := loadRuntime(ctx)
		if err != nil {
			return err
		}

		svc, stack, err := buildGateway(ctx, cfg, newHTTPClient(), log)
		if err != nil {
			return err
		}
		defer stack.Close()

		log.With("component", "cmd.lambda").Info("Lambda handler ready",
			"provider", stack.provider.Name(),
			"store", stack.sink.Name(),
		)
		lambda.Start(svc.HandleLambda)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lambdaCmd)
}
