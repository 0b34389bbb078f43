package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"reelvault/internal/api"
	"reelvault/internal/client"
	"reelvault/internal/notifications"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var presetID string
	var follow bool
	var deleteOriginal bool

	cmd := &cobra.Command{
		Use:   "convert <videoID...>",
		Short: "Queue video conversions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if presetID == "" {
				return fmt.Errorf("a preset is required (see `reelvault presets`)")
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(cli *client.Client) error {
				resp, err := cli.CreateJobs(cmd.Context(), api.CreateJobsRequest{
					VideoIDs:       ids,
					PresetID:       presetID,
					DeleteOriginal: deleteOriginal,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Batch %s: queued %d jobs\n", resp.BatchID, len(resp.Jobs))
				for _, rejected := range resp.Rejected {
					fmt.Fprintf(out, "Video %d skipped: %s\n", rejected.VideoID, rejected.Reason)
				}
				if !follow {
					return nil
				}
				return followBatch(cmd, cli, resp.BatchID)
			})
		},
	}

	cmd.Flags().StringVarP(&presetID, "preset", "p", "", "Conversion preset id")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Stream progress until the batch finishes")
	cmd.Flags().BoolVar(&deleteOriginal, "delete-original", false, "Remove each source file after its conversion succeeds")
	return cmd
}

// followBatch mirrors daemon events for one batch until it completes.
func followBatch(cmd *cobra.Command, cli *client.Client, batchID string) error {
	out := cmd.OutOrStdout()
	done := make(chan struct{})
	streamCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	err := cli.Events(streamCtx, func(event notifications.Event) {
		if event.BatchID != batchID {
			return
		}
		switch event.Type {
		case notifications.EventJobStarted:
			fmt.Fprintf(out, "Job %d started\n", event.JobID)
		case notifications.EventJobProgress:
			fmt.Fprintf(out, "Job %d: %.0f%%\n", event.JobID, event.Progress)
		case notifications.EventJobCompleted:
			fmt.Fprintf(out, "Job %d completed\n", event.JobID)
		case notifications.EventJobFailed:
			fmt.Fprintf(out, "Job %d failed: %s\n", event.JobID, event.Message)
		case notifications.EventJobCancelled:
			fmt.Fprintf(out, "Job %d cancelled\n", event.JobID)
		case notifications.EventBatchCompleted:
			fmt.Fprintf(out, "Batch finished: %d completed, %d failed of %d\n",
				event.Completed, event.Failed, event.Total)
			select {
			case <-done:
			default:
				close(done)
			}
			cancel()
		}
	})
	select {
	case <-done:
		return nil
	default:
	}
	return err
}
