package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clipwatch/internal/queue"
)

type jobView struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	Origin     string `json:"origin"`
	SourcePath string `json:"source_path"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type resultView struct {
	Rank       int     `json:"rank"`
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
	Path       string  `json:"path"`
	Match      *int    `json:"result_match"`
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List search jobs straight from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := parseStatusFilters(statuses)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				jobs, err := store.List(cmd.Context(), limit, filters...)
				if err != nil {
					return err
				}
				views := make([]jobView, 0, len(jobs))
				for _, job := range jobs {
					views = append(views, newJobView(job))
				}
				if asJSON {
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(views))
				for _, v := range views {
					rows = append(rows, []string{v.ID, colorStatus(v.Status, colorize), v.Origin, v.UpdatedAt, v.SourcePath})
				}
				fmt.Fprintln(out, renderTable([]string{"ID", "Status", "Origin", "Updated", "Source"}, rows, nil))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (pending, processing, completed, failed)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum jobs to list, newest first (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")

	cmd.AddCommand(newJobsShowCommand(ctx))
	cmd.AddCommand(newJobsStatsCommand(ctx))
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job and its stored results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				job, err := store.GetByID(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", args[0])
				}
				results, err := store.Results(cmd.Context(), job.ID)
				if err != nil {
					return err
				}
				view := newJobView(job)
				items := make([]resultView, 0, len(results))
				for _, r := range results {
					items = append(items, resultView{Rank: r.Rank, Name: r.Name, Similarity: r.Similarity, Path: r.Path, Match: r.Match})
				}
				if asJSON {
					return writeJSON(cmd, struct {
						jobView
						Results []resultView `json:"results"`
					}{view, items})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Job:     %s\n", view.ID)
				fmt.Fprintf(out, "Status:  %s\n", colorStatus(view.Status, shouldColorize(out)))
				fmt.Fprintf(out, "Origin:  %s\n", view.Origin)
				fmt.Fprintf(out, "Source:  %s\n", view.SourcePath)
				fmt.Fprintf(out, "Created: %s\n", view.CreatedAt)
				fmt.Fprintf(out, "Updated: %s\n", view.UpdatedAt)
				if view.Error != "" {
					fmt.Fprintf(out, "Error:   %s\n", view.Error)
				}
				if len(items) == 0 {
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.Itoa(item.Rank),
						item.Name,
						fmt.Sprintf("%.1f%%", item.Similarity),
						formatMatch(item.Match),
						item.Path,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Rank", "Name", "Similarity", "Match", "Path"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func newJobsStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count jobs by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				rows := [][]string{
					{string(queue.StatusPending), strconv.Itoa(health.Pending)},
					{string(queue.StatusProcessing), strconv.Itoa(health.Processing)},
					{string(queue.StatusCompleted), strconv.Itoa(health.Completed)},
					{string(queue.StatusFailed), strconv.Itoa(health.Failed)},
					{"total", strconv.Itoa(health.Total)},
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Store: %s (%s)\n", store.Location(), store.Driver())
				fmt.Fprintln(out, renderTable([]string{"Status", "Jobs"}, rows, []columnAlignment{alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func parseStatusFilters(values []string) ([]queue.Status, error) {
	var filters []queue.Status
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		filters = append(filters, status)
	}
	return filters, nil
}

func newJobView(job *queue.Job) jobView {
	return jobView{
		ID:         job.ID,
		Status:     string(job.Status),
		Origin:     string(job.Origin),
		SourcePath: job.SourcePath,
		Error:      job.ErrorMessage,
		CreatedAt:  job.CreatedAt.Local().Format(time.DateTime),
		UpdatedAt:  job.UpdatedAt.Local().Format(time.DateTime),
	}
}
