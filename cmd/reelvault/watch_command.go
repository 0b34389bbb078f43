package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelvault/internal/client"
	"reelvault/internal/notifications"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var batchID string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream conversion events from the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cli *client.Client) error {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Streaming events; press Ctrl-C to stop")
				return cli.Events(cmd.Context(), func(event notifications.Event) {
					if batchID != "" && event.BatchID != batchID {
						return
					}
					printEvent(cmd, event)
				})
			})
		},
	}

	cmd.Flags().StringVarP(&batchID, "batch", "b", "", "Only show events for one batch")
	return cmd
}

func printEvent(cmd *cobra.Command, event notifications.Event) {
	out := cmd.OutOrStdout()
	switch event.Type {
	case notifications.EventJobQueued:
		fmt.Fprintf(out, "queued     job=%d preset=%s\n", event.JobID, event.PresetID)
	case notifications.EventJobStarted:
		fmt.Fprintf(out, "started    job=%d preset=%s\n", event.JobID, event.PresetID)
	case notifications.EventJobProgress:
		fmt.Fprintf(out, "progress   job=%d %.0f%%\n", event.JobID, event.Progress)
	case notifications.EventJobCompleted:
		fmt.Fprintf(out, "completed  job=%d\n", event.JobID)
	case notifications.EventJobFailed:
		fmt.Fprintf(out, "failed     job=%d: %s\n", event.JobID, event.Message)
	case notifications.EventJobCancelled:
		fmt.Fprintf(out, "cancelled  job=%d\n", event.JobID)
	case notifications.EventBatchCompleted:
		fmt.Fprintf(out, "batch done %s: %d completed, %d failed of %d\n",
			event.BatchID, event.Completed, event.Failed, event.Total)
	default:
		fmt.Fprintf(out, "%s job=%d\n", event.Type, event.JobID)
	}
}
