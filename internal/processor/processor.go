package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"reelvault/internal/jobs"
	"reelvault/internal/library"
	"reelvault/internal/logging"
	"reelvault/internal/notifications"
	"reelvault/internal/presets"
	"reelvault/internal/queue"
	"reelvault/internal/transcode"
)

// Processor drives a conversion job from claim to terminal state. It is the
// handler the worker pool invokes for every dequeued payload.
type Processor struct {
	store    *jobs.Store
	videos   *library.Store
	runner   transcode.Runner
	notifier notifications.Service
	batches  *BatchTracker
	logger   *slog.Logger
}

// New constructs a processor. The library store is optional; without it the
// runner probes sources itself.
func New(
	store *jobs.Store,
	videos *library.Store,
	runner transcode.Runner,
	notifier notifications.Service,
	batches *BatchTracker,
	logger *slog.Logger,
) *Processor {
	if notifier == nil {
		notifier = notifications.NewNop()
	}
	return &Processor{
		store:    store,
		videos:   videos,
		runner:   runner,
		notifier: notifier,
		batches:  batches,
		logger:   logging.NewComponentLogger(logger, "processor"),
	}
}

// ProcessJob handles one dequeued payload. Stale payloads, such as jobs
// cancelled or deleted while queued, are skipped without error; the batch is
// still checked so a skipped member cannot strand its batch short of
// completion.
func (p *Processor) ProcessJob(ctx context.Context, payload queue.Payload) error {
	claimed, err := p.store.MarkProcessing(ctx, payload.JobID)
	if err != nil {
		return fmt.Errorf("claim job %d: %w", payload.JobID, err)
	}
	if !claimed {
		p.logger.Info("skipping stale payload", logging.Int64(logging.FieldJobID, payload.JobID))
		p.batches.JobFinished(ctx, payload.BatchID)
		return nil
	}

	logger := p.logger.With(
		logging.Int64(logging.FieldJobID, payload.JobID),
		logging.String(logging.FieldPreset, payload.PresetID),
	)
	logger.Info("conversion started", logging.String("input", payload.InputPath))
	p.publish(ctx, logger, notifications.Event{
		Type:     notifications.EventJobStarted,
		JobID:    payload.JobID,
		VideoID:  payload.VideoID,
		BatchID:  payload.BatchID,
		PresetID: payload.PresetID,
	})

	runErr := p.convert(ctx, logger, payload)

	if runErr == nil {
		size := p.statOutput(logger, payload.OutputPath)
		if err := p.store.MarkCompleted(ctx, payload.JobID, payload.OutputPath, size); err != nil {
			return fmt.Errorf("finalize job %d: %w", payload.JobID, err)
		}
		logger.Info("conversion completed",
			logging.String("output", payload.OutputPath),
			logging.Int64("size", size))
		if payload.DeleteOriginal {
			p.removeOriginal(ctx, logger, payload.VideoID, payload.InputPath)
		}
		p.publish(ctx, logger, notifications.Event{
			Type:     notifications.EventJobCompleted,
			JobID:    payload.JobID,
			VideoID:  payload.VideoID,
			BatchID:  payload.BatchID,
			PresetID: payload.PresetID,
			Progress: 100,
		})
		p.batches.JobFinished(ctx, payload.BatchID)
		return nil
	}

	p.removePartialOutput(logger, payload.OutputPath)

	if ctx.Err() != nil {
		// Daemon shutdown: leave the job processing so the startup sweep
		// can account for it.
		return runErr
	}

	logger.Error("conversion failed", logging.Error(runErr))
	if err := p.store.MarkFailed(ctx, payload.JobID, runErr.Error()); err != nil {
		logger.Error("recording failure state failed", logging.Error(err))
	}
	p.publish(ctx, logger, notifications.Event{
		Type:     notifications.EventJobFailed,
		JobID:    payload.JobID,
		VideoID:  payload.VideoID,
		BatchID:  payload.BatchID,
		PresetID: payload.PresetID,
		Message:  runErr.Error(),
	})
	p.batches.JobFinished(ctx, payload.BatchID)
	return nil
}

func (p *Processor) convert(ctx context.Context, logger *slog.Logger, payload queue.Payload) error {
	preset, ok := presets.Lookup(payload.PresetID)
	if !ok {
		return fmt.Errorf("unknown preset %q", payload.PresetID)
	}
	if _, err := os.Stat(payload.InputPath); err != nil {
		return fmt.Errorf("source unavailable: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(payload.OutputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	var (
		width, height int
		bitrate       int64
		duration      time.Duration
	)
	if p.videos != nil {
		if video, err := p.videos.GetByID(ctx, payload.VideoID); err == nil {
			width, height = video.Width, video.Height
			bitrate = video.Bitrate
			duration = time.Duration(video.DurationSeconds * float64(time.Second))
		}
	}

	plan := presets.PlanEncode(width, height, int(bitrate), preset)
	logger.Info("encode planned",
		logging.String("resolution", plan.Resolution),
		logging.Int("bitrate", plan.Rates.Bitrate),
		logging.Int("maxrate", plan.Rates.Maxrate))

	lastReported := 0.0
	return p.runner.Transcode(ctx, transcode.Request{
		InputPath:  payload.InputPath,
		OutputPath: payload.OutputPath,
		Preset:     preset,
		Plan:       plan,
		Duration:   duration,
	}, func(update transcode.ProgressUpdate) {
		if update.Done {
			return
		}
		// Throttle to 2-point steps so slow encodes do not flood the store
		// and the event stream.
		percent := math.Floor(update.Percent)
		if percent < lastReported+2 {
			return
		}
		lastReported = percent
		if err := p.store.UpdateProgress(ctx, payload.JobID, percent); err != nil {
			logger.Warn("progress update failed", logging.Error(err))
		}
		p.publish(ctx, logger, notifications.Event{
			Type:     notifications.EventJobProgress,
			JobID:    payload.JobID,
			BatchID:  payload.BatchID,
			PresetID: payload.PresetID,
			Progress: percent,
		})
	})
}

// statOutput measures the finished artifact. A stat failure is logged but
// never fails the job; the size simply stays zero.
func (p *Processor) statOutput(logger *slog.Logger, outputPath string) int64 {
	info, err := os.Stat(outputPath)
	if err != nil {
		logger.Warn("stat output failed",
			logging.String("output", outputPath),
			logging.Error(err))
		return 0
	}
	return info.Size()
}

// removeOriginal drops the source file and its library record after a
// successful conversion when the job asked for it. Removal problems never
// fail the job.
func (p *Processor) removeOriginal(ctx context.Context, logger *slog.Logger, videoID int64, inputPath string) {
	if err := os.Remove(inputPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("removing original failed",
			logging.String("input", inputPath),
			logging.Error(err))
		return
	}
	if p.videos != nil {
		if _, err := p.videos.Delete(ctx, videoID); err != nil && !errors.Is(err, library.ErrVideoNotFound) {
			logger.Warn("removing library record failed",
				logging.Int64("video_id", videoID),
				logging.Error(err))
		}
	}
	logger.Info("original removed", logging.String("input", inputPath))
}

func (p *Processor) removePartialOutput(logger *slog.Logger, outputPath string) {
	if outputPath == "" {
		return
	}
	if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("removing partial output failed",
			logging.String("output", outputPath),
			logging.Error(err))
	}
}

// publish sends an event and logs delivery problems. Notification failures
// never change job outcomes.
func (p *Processor) publish(ctx context.Context, logger *slog.Logger, event notifications.Event) {
	if err := p.notifier.Publish(ctx, event); err != nil {
		logger.Warn("notification failed",
			logging.String("event", string(event.Type)),
			logging.Error(err))
	}
}
