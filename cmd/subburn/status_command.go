package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"subburn/internal/client"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and load",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cl *client.Client) error {
				status, err := cl.Status(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				rows := [][]string{
					{"Running", strconv.FormatBool(status.Running)},
					{"Active renders", fmt.Sprintf("%d / %d", status.ActiveRenders, status.MaxConcurrent)},
					{"Queue depth", strconv.Itoa(status.QueueDepth)},
					{"Workspaces", strconv.Itoa(status.WorkspaceCount)},
					{"Workspace bytes", formatBytes(status.WorkspaceBytes)},
				}

				states := make([]string, 0, len(status.JobCounts))
				for state := range status.JobCounts {
					states = append(states, state)
				}
				sort.Strings(states)
				for _, state := range states {
					rows = append(rows, []string{"Jobs " + state, strconv.Itoa(status.JobCounts[state])})
				}

				fmt.Fprintln(out, renderTable(
					[]tableColumn{{title: "Field"}, {title: "Value", numeric: true}},
					rows,
				))
				return nil
			})
		},
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
