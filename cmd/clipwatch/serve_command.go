package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipwatch/internal/daemon"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway, workflow manager and folder watcher in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if verbose {
				logLevel = "debug"
			}
			return daemon.Run(cmd.Context(), cfg, daemon.Options{LogLevel: logLevel, Development: verbose})
		},
	}
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging with source locations")
	return cmd
}
