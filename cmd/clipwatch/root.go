package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var gatewayFlag string
	var tokenFlag string

	ctx := newCommandContext(&configFlag, &gatewayFlag, &tokenFlag)

	rootCmd := &cobra.Command{
		Use:           "clipwatch",
		Short:         "Clip boundary detection and similarity search",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&gatewayFlag, "gateway", "", "Gateway base URL (defaults to recorder.gateway_url)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Bearer token for mutating gateway routes (defaults to server.api_token)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newCaptureCommand(ctx))
	rootCmd.AddCommand(newSegmentCommand(ctx))
	rootCmd.AddCommand(newSignaturesCommand(ctx))
	for _, cmd := range newSearchCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range newVerifyCommands(ctx) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newJobsCommand(ctx))
	rootCmd.AddCommand(newDepsCommand(ctx))
	rootCmd.AddCommand(newNotifyTestCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
