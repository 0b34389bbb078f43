package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"reelvault/internal/api"
	"reelvault/internal/client"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage conversion jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))
	jobsCmd.AddCommand(newJobsDeleteCommand(ctx))
	jobsCmd.AddCommand(newJobsClearPendingCommand(ctx))
	jobsCmd.AddCommand(newJobsClearProcessingCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var videoID int64

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversion jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cli *client.Client) error {
				var (
					resp api.JobListResponse
					err  error
				)
				if videoID > 0 {
					resp, err = cli.JobsForVideo(cmd.Context(), videoID)
				} else {
					resp, err = cli.ListJobs(cmd.Context(), listStatuses)
				}
				if err != nil {
					return err
				}
				if len(resp.Jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No conversion jobs")
					return nil
				}
				colorize := shouldColorize(cmd.OutOrStdout())
				table := renderTable(jobTableColumns(), buildJobRows(resp.Jobs, colorize))
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().Int64Var(&videoID, "video", 0, "Show the job history of one video")
	return cmd
}

func jobTableColumns() []column {
	return []column{
		{header: "ID", numeric: true},
		{header: "Video"},
		{header: "Preset"},
		{header: "Status"},
		{header: "Progress", numeric: true},
		{header: "Batch"},
	}
}

func buildJobRows(list []api.ConversionJob, colorize bool) [][]string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		rows = append(rows, []string{
			fmt.Sprintf("%d", job.ID),
			truncate(filepath.Base(job.InputPath), 40),
			job.PresetID,
			colorizeStatus(job.Status, colorize),
			formatProgress(job),
			shortBatchID(job.BatchID),
		})
	}
	return rows
}

func shortBatchID(batchID string) string {
	if len(batchID) > 8 {
		return batchID[:8]
	}
	return batchID
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <jobID>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(cli *client.Client) error {
				resp, err := cli.Job(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				printJobDetail(cmd, resp.Job)
				return nil
			})
		},
	}
}

func printJobDetail(cmd *cobra.Command, job api.ConversionJob) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:        %d\n", job.ID)
	fmt.Fprintf(out, "Video:      %d (%s)\n", job.VideoID, job.InputPath)
	fmt.Fprintf(out, "Preset:     %s\n", job.PresetID)
	fmt.Fprintf(out, "Status:     %s\n", job.Status)
	fmt.Fprintf(out, "Progress:   %s\n", formatProgress(job))
	if job.BatchID != "" {
		fmt.Fprintf(out, "Batch:      %s\n", job.BatchID)
	}
	if job.OutputPath != "" {
		fmt.Fprintf(out, "Output:     %s\n", job.OutputPath)
	}
	if job.OutputSizeBytes > 0 {
		fmt.Fprintf(out, "Size:       %s\n", formatSize(job.OutputSizeBytes))
	}
	if job.DeleteOriginal {
		fmt.Fprintln(out, "Cleanup:    remove original on success")
	}
	if job.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:      %s\n", job.ErrorMessage)
	}
	if job.CreatedAt != "" {
		fmt.Fprintf(out, "Created:    %s\n", job.CreatedAt)
	}
	if job.StartedAt != "" {
		fmt.Fprintf(out, "Started:    %s\n", job.StartedAt)
	}
	if job.CompletedAt != "" {
		fmt.Fprintf(out, "Finished:   %s\n", job.CompletedAt)
	}
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <jobID...>",
		Short: "Cancel queued jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(cli *client.Client) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					resp, err := cli.CancelJob(cmd.Context(), id)
					if err != nil {
						fmt.Fprintf(out, "Job %d: %v\n", id, err)
						continue
					}
					fmt.Fprintf(out, "Job %d cancelled (%s)\n", id, resp.Job.PresetID)
				}
				return nil
			})
		},
	}
}

func newJobsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <jobID...>",
		Short: "Delete finished jobs and their output files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(cli *client.Client) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					if err := cli.DeleteJob(cmd.Context(), id); err != nil {
						fmt.Fprintf(out, "Job %d: %v\n", id, err)
						continue
					}
					fmt.Fprintf(out, "Job %d deleted\n", id)
				}
				return nil
			})
		},
	}
}

func newJobsClearPendingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-pending",
		Short: "Cancel every queued job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cli *client.Client) error {
				resp, err := cli.ClearPending(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d pending jobs\n", resp.Cleared)
				return nil
			})
		},
	}
}

func newJobsClearProcessingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-processing",
		Short: "Force-fail every running job",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cli *client.Client) error {
				resp, err := cli.ClearProcessing(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d processing jobs\n", resp.Cleared)
				return nil
			})
		},
	}
}

func newBatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <batchID>",
		Short: "Show batch progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cli *client.Client) error {
				batch, err := cli.Batch(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Batch:      %s\n", batch.BatchID)
				fmt.Fprintf(out, "Total:      %d\n", batch.Total)
				fmt.Fprintf(out, "Pending:    %d\n", batch.Pending)
				fmt.Fprintf(out, "Processing: %d\n", batch.Processing)
				fmt.Fprintf(out, "Completed:  %d\n", batch.Completed)
				fmt.Fprintf(out, "Failed:     %d\n", batch.Failed)
				fmt.Fprintf(out, "Cancelled:  %d\n", batch.Cancelled)
				fmt.Fprintf(out, "Done:       %s\n", yesNo(batch.Done))
				if len(batch.Jobs) > 0 {
					colorize := shouldColorize(out)
					table := renderTable(jobTableColumns(), buildJobRows(batch.Jobs, colorize))
					fmt.Fprintln(out, table)
				}
				return nil
			})
		},
	}
}
