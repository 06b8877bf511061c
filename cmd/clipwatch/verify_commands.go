package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"clipwatch/internal/api"
	"clipwatch/internal/workflow"
)

func newVerifyCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newVerifyCommand(ctx),
		newVerifyStatusCommand(ctx),
		newUpdateDBCommand(ctx),
		newHealthCommand(ctx),
	}
}

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "verify <video-path>",
		Short: "Ask the engine how closely a clip matches its own library entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve path: %w", err)
			}
			client := ctx.gatewayClient()
			started, err := client.StartVerify(cmd.Context(), abs)
			if err != nil {
				return wrapGatewayError(err, ctx.gatewayURL())
			}
			out := cmd.OutOrStdout()
			if !wait {
				fmt.Fprintln(out, started.VerifyID)
				return nil
			}
			status, err := waitForVerify(cmd.Context(), client, started.VerifyID, interval)
			if err != nil {
				return wrapGatewayError(err, ctx.gatewayURL())
			}
			printVerifyStatus(cmd, started.VerifyID, status)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until the verification finishes")
	cmd.Flags().DurationVar(&interval, "interval", defaultPollInterval, "Polling interval for --wait")
	return cmd
}

func newVerifyStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "verify-status <verify-id>",
		Short: "Show the state of a verification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := ctx.gatewayClient().VerifyStatus(cmd.Context(), args[0])
			if err != nil {
				return wrapGatewayError(err, ctx.gatewayURL())
			}
			if asJSON {
				return writeJSON(cmd, status)
			}
			printVerifyStatus(cmd, args[0], status)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func newUpdateDBCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "update-db",
		Short: "Rebuild the similarity engine's library index",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.gatewayClient().UpdateDB(cmd.Context())
			if err != nil {
				return wrapGatewayError(err, ctx.gatewayURL())
			}
			out := cmd.OutOrStdout()
			if !resp.Success {
				return fmt.Errorf("index rebuild failed: %s", resp.Message)
			}
			fmt.Fprintf(out, "Index rebuilt: %d videos\n", resp.TotalVideos)
			if resp.Message != "" {
				fmt.Fprintln(out, resp.Message)
			}
			return nil
		},
	}
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check gateway, store and engine connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := ctx.gatewayClient().Health(cmd.Context())
			if err != nil {
				return wrapGatewayError(err, ctx.gatewayURL())
			}
			if asJSON {
				return writeJSON(cmd, health)
			}
			colorize := shouldColorize(cmd.OutOrStdout())
			rows := [][]string{
				{"Gateway", ctx.gatewayURL(), colorStatus("ok", colorize)},
				{"Store", "", colorStatus(health.Store, colorize)},
				{"Engine", health.EngineURL, colorStatus(health.Engine, colorize)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Component", "Address", "Status"}, rows, nil))
			if health.Error != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Error: %s\n", health.Error)
			}
			if health.Engine != "connected" || health.Store != "connected" {
				return fmt.Errorf("gateway reports unhealthy dependencies")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func waitForVerify(ctx context.Context, client *api.Client, id string, interval time.Duration) (api.VerifyStatus, error) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := client.VerifyStatus(ctx, id)
		if err != nil {
			return api.VerifyStatus{}, err
		}
		if status.Status != workflow.VerifyProcessing {
			return status, nil
		}
		select {
		case <-ctx.Done():
			return api.VerifyStatus{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printVerifyStatus(cmd *cobra.Command, id string, status api.VerifyStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Verification %s: %s (%d%%)\n", id, colorStatus(status.Status, shouldColorize(out)), status.Progress)
	if status.VideoPath != "" {
		fmt.Fprintf(out, "Video: %s\n", status.VideoPath)
	}
	switch {
	case status.Error != "":
		fmt.Fprintf(out, "Error: %s\n", status.Error)
	case status.Status == workflow.VerifyCompleted:
		fmt.Fprintf(out, "Similarity: %.1f%%\n", status.Similarity)
	}
}
