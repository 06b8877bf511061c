package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clipwatch/internal/api"
)

const defaultPollInterval = time.Second

func newSearchCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newSearchCommand(ctx),
		newResultCommand(ctx),
		newLatestCommand(ctx),
		newMatchCommand(ctx),
		newForgetCommand(ctx),
		newResetCommand(ctx),
	}
}

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var upload bool
	var wait bool
	var interval time.Duration
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <path>",
		Short: "Submit a video file or directory for similarity search",
		Long: `Submit a video for similarity search.

By default the gateway reads the path from its own filesystem; a directory
queues every video inside it. With --upload the file is streamed to the
gateway instead and removed there once the search finishes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.gatewayClient()
			path := args[0]

			var accepted api.SearchAccepted
			var err error
			if upload {
				accepted, err = client.UploadSearch(cmd.Context(), path)
			} else {
				abs, absErr := filepath.Abs(path)
				if absErr != nil {
					return fmt.Errorf("resolve path: %w", absErr)
				}
				accepted, err = client.SearchPath(cmd.Context(), abs)
			}
			if err != nil {
				return wrapGatewayError(err, ctx.gatewayURL())
			}

			ids := accepted.RequestIDs
			if len(ids) == 0 {
				ids = []string{accepted.RequestID}
			}
			if !wait {
				if asJSON {
					return writeJSON(cmd, accepted)
				}
				out := cmd.OutOrStdout()
				if accepted.Batch {
					fmt.Fprintf(out, "Queued %d searches\n", accepted.Count)
				}
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			}

			results := make(map[string]api.SearchResult, len(ids))
			for _, id := range ids {
				result, err := waitForResult(cmd.Context(), client, id, interval)
				if err != nil {
					return wrapGatewayError(err, ctx.gatewayURL())
				}
				results[id] = result
			}
			if asJSON {
				return writeJSON(cmd, results)
			}
			colorize := shouldColorize(cmd.OutOrStdout())
			for _, id := range ids {
				printSearchResult(cmd.OutOrStdout(), id, results[id], colorize)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&upload, "upload", "u", false, "Upload the file instead of sending its path")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll until every search finishes and print the results")
	cmd.Flags().DurationVar(&interval, "interval", defaultPollInterval, "Polling interval for --wait")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func newResultCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "result <request-id>",
		Short: "Show the state and ranked matches of a search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := ctx.gatewayClient().Result(cmd.Context(), args[0])
			if err != nil {
				return wrapGatewayError(err, ctx.gatewayURL())
			}
			if asJSON {
				return writeJSON(cmd, result)
			}
			printSearchResult(cmd.OutOrStdout(), args[0], result, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func newLatestCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Show the best matches across recently completed searches",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := ctx.gatewayClient().Latest(cmd.Context())
			if err != nil {
				return wrapGatewayError(err, ctx.gatewayURL())
			}
			if asJSON {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			if len(result.Results) == 0 {
				fmt.Fprintln(out, "No completed searches")
				return nil
			}
			fmt.Fprintln(out, renderResultTable(result.Results, true))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func newMatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "match <request-id> <video-path> <yes|no|clear>",
		Short: "Label a search result as a true or false match",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			label, err := parseMatchLabel(args[2])
			if err != nil {
				return err
			}
			resp, err := ctx.gatewayClient().SetMatch(cmd.Context(), args[0], args[1], label)
			if err != nil {
				return wrapGatewayError(err, ctx.gatewayURL())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Result labelled: %s\n", formatMatch(resp.ResultMatch))
			return nil
		},
	}
}

func newForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget <video-path>",
		Short: "Delete every stored result pointing at a library video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := ctx.gatewayClient().DeleteResult(cmd.Context(), args[0])
			if err != nil {
				return wrapGatewayError(err, ctx.gatewayURL())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d results and %d searches\n", resp.DeletedResults, resp.DeletedRequests)
			return nil
		},
	}
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every search, result and watched-folder video",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return fmt.Errorf("reset removes all searches and recordings; re-run with --yes to confirm")
			}
			resp, err := ctx.gatewayClient().Reset(cmd.Context())
			if err != nil {
				return wrapGatewayError(err, ctx.gatewayURL())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d searches, %d results and %d videos\n",
				resp.DeletedRequests, resp.DeletedResults, resp.DeletedVideos)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Confirm the reset")
	return cmd
}

func waitForResult(ctx context.Context, client *api.Client, id string, interval time.Duration) (api.SearchResult, error) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		result, err := client.Result(ctx, id)
		if err != nil {
			return api.SearchResult{}, err
		}
		if result.Status != api.StatusPending {
			return result, nil
		}
		select {
		case <-ctx.Done():
			return api.SearchResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func printSearchResult(out io.Writer, id string, result api.SearchResult, colorize bool) {
	fmt.Fprintf(out, "Search %s: %s\n", id, colorStatus(result.Status, colorize))
	switch {
	case result.Error != "":
		fmt.Fprintf(out, "Error: %s\n", result.Error)
	case result.Status == api.StatusCompleted && len(result.Results) == 0:
		fmt.Fprintln(out, "No matches")
	case len(result.Results) > 0:
		fmt.Fprintln(out, renderResultTable(result.Results, false))
	}
}

func renderResultTable(items []api.ResultItem, withTime bool) string {
	headers := []string{"Rank", "Name", "Similarity", "Match", "Path"}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft}
	if withTime {
		headers = append(headers, "Searched")
		aligns = append(aligns, alignLeft)
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		row := []string{
			strconv.Itoa(item.Rank),
			item.Name,
			fmt.Sprintf("%.1f%%", item.Similarity),
			formatMatch(item.ResultMatch),
			item.Path,
		}
		if withTime {
			row = append(row, item.CreatedAt)
		}
		rows = append(rows, row)
	}
	return renderTable(headers, rows, aligns)
}

func parseMatchLabel(value string) (*int, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "y", "1", "true":
		v := 1
		return &v, nil
	case "no", "n", "0", "false":
		v := 0
		return &v, nil
	case "clear", "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("match label must be yes, no or clear (got %q)", value)
	}
}

func formatMatch(match *int) string {
	switch {
	case match == nil:
		return "-"
	case *match == 1:
		return "yes"
	default:
		return "no"
	}
}
