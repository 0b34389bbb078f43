package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"reelvault/internal/client"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cli *client.Client) error {
				status, err := cli.Status(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Daemon:     running=%s pid=%d api=%s\n",
					yesNo(status.Running), status.PID, status.APIVersion)
				fmt.Fprintf(out, "Workers:    %d (%d in flight, %d waiting)\n",
					status.Workers, status.InFlight, status.Waiting)
				if status.DBPath != "" {
					fmt.Fprintf(out, "Database:   %s\n", status.DBPath)
				}

				rows := buildJobCountRows(status.JobCounts)
				if len(rows) == 0 {
					fmt.Fprintln(out, "No conversion jobs")
					return nil
				}
				table := renderTable([]column{
					{header: "Status"},
					{header: "Count", numeric: true},
				}, rows)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}
}

// buildJobCountRows orders counts in lifecycle order and drops zero rows
// for statuses nobody has hit yet.
func buildJobCountRows(counts map[string]int) [][]string {
	order := []string{"pending", "processing", "completed", "failed", "cancelled"}
	seen := make(map[string]struct{}, len(order))
	rows := make([][]string, 0, len(counts))
	for _, status := range order {
		seen[status] = struct{}{}
		if count, ok := counts[status]; ok && count > 0 {
			rows = append(rows, []string{status, fmt.Sprintf("%d", count)})
		}
	}

	var extra []string
	for status, count := range counts {
		if _, ok := seen[status]; !ok && count > 0 {
			extra = append(extra, status)
		}
	}
	sort.Strings(extra)
	for _, status := range extra {
		rows = append(rows, []string{status, fmt.Sprintf("%d", counts[status])})
	}
	return rows
}
