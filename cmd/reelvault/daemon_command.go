package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"reelvault/internal/daemon"
	"reelvault/internal/deps"
	"reelvault/internal/logging"
)

// newDaemonCommand runs the conversion daemon in the foreground. It is the
// same process reelvaultd starts, kept here for interactive use and for
// systems without a service manager.
func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the conversion daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("prepare directories: %w", err)
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			for _, status := range deps.Check(deps.ForConfig(cfg)) {
				if status.Available {
					continue
				}
				if status.Optional {
					logger.Warn("optional dependency unavailable",
						logging.String("name", status.Name),
						logging.String("detail", status.Detail))
					continue
				}
				logger.Error("required dependency unavailable",
					logging.String("name", status.Name),
					logging.String("detail", status.Detail))
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			d, err := daemon.New(cfg, logger)
			if err != nil {
				return fmt.Errorf("create daemon: %w", err)
			}
			defer d.Close()

			if err := d.Start(runCtx); err != nil {
				return fmt.Errorf("start daemon: %w", err)
			}

			if result, err := d.ScanWatched(runCtx); err != nil {
				logger.Warn("initial library scan failed", logging.Error(err))
			} else if result.Added+result.Updated > 0 {
				logger.Info("initial library scan",
					logging.Int("added", result.Added),
					logging.Int("updated", result.Updated),
					logging.Int("skipped", result.Skipped))
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Daemon listening on %s (ctrl-c to stop)\n", cfg.Paths.APIBind)
			<-runCtx.Done()
			logger.Info("daemon shutting down")
			d.Stop()
			return nil
		},
	}
}
