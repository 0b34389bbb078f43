package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelvault/internal/api"
	"reelvault/internal/client"
)

func newVideosCommand(ctx *commandContext) *cobra.Command {
	videosCmd := &cobra.Command{
		Use:   "videos",
		Short: "Inspect and manage library videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listVideos(cmd, ctx)
		},
	}

	videosCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List library videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listVideos(cmd, ctx)
		},
	})
	videosCmd.AddCommand(newVideosDeleteCommand(ctx))

	return videosCmd
}

func listVideos(cmd *cobra.Command, ctx *commandContext) error {
	return ctx.withClient(func(cli *client.Client) error {
		videos, err := cli.Videos(cmd.Context())
		if err != nil {
			return err
		}
		if len(videos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Library is empty; add watched directories and run `reelvault scan`")
			return nil
		}
		table := renderTable([]column{
			{header: "ID", numeric: true},
			{header: "Title"},
			{header: "Resolution"},
			{header: "Codec"},
			{header: "Duration", numeric: true},
			{header: "Size", numeric: true},
		}, buildVideoRows(videos))
		fmt.Fprintln(cmd.OutOrStdout(), table)
		return nil
	})
}

func newVideosDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <videoID...>",
		Short: "Remove videos from the library and from disk",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return ctx.withClient(func(cli *client.Client) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					if err := cli.DeleteVideo(cmd.Context(), id); err != nil {
						fmt.Fprintf(out, "Video %d: %v\n", id, err)
						continue
					}
					fmt.Fprintf(out, "Video %d deleted\n", id)
				}
				return nil
			})
		},
	}
}

func buildVideoRows(videos []api.VideoInfo) [][]string {
	rows := make([][]string, 0, len(videos))
	for _, video := range videos {
		rows = append(rows, []string{
			fmt.Sprintf("%d", video.ID),
			truncate(video.Title, 48),
			formatDimensions(video.Width, video.Height),
			video.Codec,
			formatDuration(video.DurationSeconds),
			formatSize(video.SizeBytes),
		})
	}
	return rows
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Rescan watched directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cli *client.Client) error {
				summary, err := cli.Scan(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Scan finished: %d added, %d updated, %d skipped\n",
					summary.Added, summary.Updated, summary.Skipped)
				return nil
			})
		},
	}
}

func newPresetsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List conversion presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cli *client.Client) error {
				presets, err := cli.Presets(cmd.Context())
				if err != nil {
					return err
				}
				table := renderTable([]column{
					{header: "ID"},
					{header: "Name"},
					{header: "Codec"},
					{header: "Width", numeric: true},
					{header: "Quality", numeric: true},
					{header: "Audio", numeric: true},
					{header: "Container"},
				}, buildPresetRows(presets))
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func buildPresetRows(presets []api.PresetInfo) [][]string {
	rows := make([][]string, 0, len(presets))
	for _, preset := range presets {
		width := "original"
		if preset.TargetWidth > 0 {
			width = fmt.Sprintf("%d", preset.TargetWidth)
		}
		rows = append(rows, []string{
			preset.ID,
			preset.Name,
			preset.Codec,
			width,
			fmt.Sprintf("%d", preset.Quality),
			fmt.Sprintf("%dk", preset.AudioBitrate),
			preset.Container,
		})
	}
	return rows
}
