package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clipwatch/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check the external binaries clipwatch shells out to",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			if asJSON {
				return writeJSON(cmd, statuses)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(statuses))
			for _, s := range statuses {
				state := "available"
				switch {
				case s.Available:
				case s.Optional:
					state = "optional"
				default:
					state = "missing"
				}
				detail := s.Detail
				if detail == "" {
					detail = s.Description
				}
				rows = append(rows, []string{s.Name, s.Command, colorStatus(state, colorize), detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Dependency", "Command", "Status", "Detail"}, rows, nil))
			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required dependencies missing", len(missing))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}
