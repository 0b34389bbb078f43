package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"reelvault/internal/jobs"
	"reelvault/internal/library"
	"reelvault/internal/logging"
	"reelvault/internal/notifications"
	"reelvault/internal/presets"
	"reelvault/internal/queue"
)

// ErrValidation marks client mistakes so transports can map them to 400s.
var ErrValidation = errors.New("invalid request")

// Enqueuer hands accepted payloads to the worker pool.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload queue.Payload) error
}

// BacklogEditor removes queued payloads for cancelled or deleted jobs.
type BacklogEditor interface {
	Remove(ctx context.Context, jobID int64) error
}

// BatchWatcher is told whenever a job reaches a terminal state outside the
// processor, so batches whose last member was cancelled still complete.
type BatchWatcher interface {
	JobFinished(ctx context.Context, batchID string)
}

// ConversionService implements the conversion operations behind the REST
// endpoints and the CLI.
type ConversionService struct {
	store     *jobs.Store
	videos    *library.Store
	queue     Enqueuer
	backlog   BacklogEditor
	batches   BatchWatcher
	notifier  notifications.Service
	outputDir string
	logger    *slog.Logger
}

// NewConversionService wires the service. Backlog editor and batch watcher
// are optional; without them cancellations only flip job state.
func NewConversionService(
	store *jobs.Store,
	videos *library.Store,
	queue Enqueuer,
	backlog BacklogEditor,
	batches BatchWatcher,
	notifier notifications.Service,
	outputDir string,
	logger *slog.Logger,
) *ConversionService {
	if notifier == nil {
		notifier = notifications.NewNop()
	}
	return &ConversionService{
		store:     store,
		videos:    videos,
		queue:     queue,
		backlog:   backlog,
		batches:   batches,
		notifier:  notifier,
		outputDir: outputDir,
		logger:    logging.NewComponentLogger(logger, "api"),
	}
}

// CreateJobs validates the request, creates one job per video under a fresh
// batch id, and enqueues them in order. Individual rejections (unknown video,
// duplicate conversion) do not sink the rest of the batch.
func (s *ConversionService) CreateJobs(ctx context.Context, req CreateJobsRequest) (*CreateJobsResponse, error) {
	presetID := strings.ToLower(strings.TrimSpace(req.PresetID))
	preset, ok := presets.Lookup(presetID)
	if !ok {
		return nil, fmt.Errorf("%w: unknown preset %q", ErrValidation, req.PresetID)
	}
	if len(req.VideoIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one video id required", ErrValidation)
	}

	batchID := uuid.NewString()
	response := &CreateJobsResponse{BatchID: batchID}

	for _, videoID := range req.VideoIDs {
		video, err := s.videos.GetByID(ctx, videoID)
		if err != nil {
			if errors.Is(err, library.ErrVideoNotFound) {
				response.Rejected = append(response.Rejected, RejectedVideo{
					VideoID: videoID, Reason: "video not found",
				})
				continue
			}
			return nil, err
		}

		job, err := s.store.Create(ctx, jobs.NewJob{
			VideoID:        video.ID,
			BatchID:        batchID,
			PresetID:       preset.ID,
			InputPath:      video.Path,
			OutputPath:     s.outputPath(video, preset),
			DeleteOriginal: req.DeleteOriginal,
		})
		if err != nil {
			if errors.Is(err, jobs.ErrConflict) {
				response.Rejected = append(response.Rejected, RejectedVideo{
					VideoID: videoID, Reason: "conversion already queued for this preset",
				})
				continue
			}
			return nil, err
		}

		if err := s.queue.Enqueue(ctx, queue.PayloadFromJob(job)); err != nil {
			// The job row exists but never reached the backlog; fail it so it
			// does not linger pending forever.
			_ = s.store.MarkFailed(ctx, job.ID, "enqueue failed: "+err.Error())
			return nil, fmt.Errorf("enqueue job %d: %w", job.ID, err)
		}

		s.publish(ctx, notifications.Event{
			Type:     notifications.EventJobQueued,
			JobID:    job.ID,
			VideoID:  job.VideoID,
			BatchID:  batchID,
			PresetID: preset.ID,
		})
		response.Jobs = append(response.Jobs, FromJob(job))
	}

	if len(response.Jobs) == 0 {
		return nil, fmt.Errorf("%w: no jobs created", ErrValidation)
	}
	s.logger.Info("batch created",
		logging.String(logging.FieldBatchID, batchID),
		logging.String(logging.FieldPreset, preset.ID),
		logging.Int("jobs", len(response.Jobs)),
		logging.Int("rejected", len(response.Rejected)))
	return response, nil
}

// outputPath places converted files under the output directory, named after
// the source with the preset id and container appended.
func (s *ConversionService) outputPath(video *library.Video, preset presets.Preset) string {
	base := filepath.Base(video.Path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return filepath.Join(s.outputDir, fmt.Sprintf("%s.%s.%s", stem, preset.ID, preset.Container))
}

// List returns jobs, optionally filtered by status.
func (s *ConversionService) List(ctx context.Context, statuses ...jobs.Status) ([]ConversionJob, error) {
	list, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(list), nil
}

// ListForVideo returns every job ever created for one video.
func (s *ConversionService) ListForVideo(ctx context.Context, videoID int64) ([]ConversionJob, error) {
	list, err := s.store.ListByVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return FromJobs(list), nil
}

// Describe fetches a single job.
func (s *ConversionService) Describe(ctx context.Context, id int64) (*ConversionJob, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}

// Cancel withdraws a pending job and pulls its payload from the backlog.
// Jobs already processing run to completion or failure and cannot be
// cancelled.
func (s *ConversionService) Cancel(ctx context.Context, id int64) (*ConversionJob, error) {
	job, err := s.store.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.backlog != nil {
		if err := s.backlog.Remove(ctx, id); err != nil {
			s.logger.Warn("backlog removal failed",
				logging.Int64(logging.FieldJobID, id),
				logging.Error(err))
		}
	}

	s.publish(ctx, notifications.Event{
		Type:     notifications.EventJobCancelled,
		JobID:    job.ID,
		VideoID:  job.VideoID,
		BatchID:  job.BatchID,
		PresetID: job.PresetID,
	})
	// The worker never sees a payload we pulled from the backlog, so the
	// batch must be settled here.
	if s.batches != nil && job.BatchID != "" {
		s.batches.JobFinished(ctx, job.BatchID)
	}
	dto := FromJob(job)
	return &dto, nil
}

// Delete removes a finished job and its output artifact from disk.
func (s *ConversionService) Delete(ctx context.Context, id int64) error {
	job, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if s.backlog != nil {
		if err := s.backlog.Remove(ctx, id); err != nil {
			s.logger.Warn("backlog removal failed",
				logging.Int64(logging.FieldJobID, id),
				logging.Error(err))
		}
	}
	if job.Status == jobs.StatusCompleted && job.OutputPath != "" {
		if err := os.Remove(job.OutputPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("output artifact removal failed",
				logging.String("output", job.OutputPath),
				logging.Error(err))
		}
	}
	return nil
}

// ClearPending cancels every queued job and drops its backlog payloads.
func (s *ConversionService) ClearPending(ctx context.Context) (int64, error) {
	pending, err := s.store.List(ctx, jobs.StatusPending)
	if err != nil {
		return 0, err
	}
	cleared, err := s.store.ClearPending(ctx)
	if err != nil {
		return 0, err
	}
	for _, job := range pending {
		if s.backlog != nil {
			if err := s.backlog.Remove(ctx, job.ID); err != nil {
				s.logger.Warn("backlog removal failed",
					logging.Int64(logging.FieldJobID, job.ID),
					logging.Error(err))
			}
		}
		s.publish(ctx, notifications.Event{
			Type:     notifications.EventJobCancelled,
			JobID:    job.ID,
			VideoID:  job.VideoID,
			BatchID:  job.BatchID,
			PresetID: job.PresetID,
		})
	}
	s.settleBatches(ctx, pending)
	return cleared, nil
}

// ClearProcessing force-fails every running job. Their workers finish on
// their own; the completion write then conflicts and is discarded.
func (s *ConversionService) ClearProcessing(ctx context.Context) (int64, error) {
	running, err := s.store.List(ctx, jobs.StatusProcessing)
	if err != nil {
		return 0, err
	}
	cleared, err := s.store.ClearProcessing(ctx, "cleared by operator")
	if err != nil {
		return 0, err
	}
	s.settleBatches(ctx, running)
	return cleared, nil
}

// settleBatches notifies the batch watcher once per batch touched by a bulk
// state change.
func (s *ConversionService) settleBatches(ctx context.Context, affected []*jobs.Job) {
	if s.batches == nil {
		return
	}
	seen := make(map[string]struct{})
	for _, job := range affected {
		if job.BatchID == "" {
			continue
		}
		if _, ok := seen[job.BatchID]; ok {
			continue
		}
		seen[job.BatchID] = struct{}{}
		s.batches.JobFinished(ctx, job.BatchID)
	}
}

// Batch returns aggregate progress for a batch and its member jobs.
func (s *ConversionService) Batch(ctx context.Context, batchID string) (*BatchResponse, error) {
	stats, err := s.store.BatchStats(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if stats.Total == 0 {
		return nil, fmt.Errorf("batch %q: %w", batchID, jobs.ErrNotFound)
	}
	members, err := s.store.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return &BatchResponse{
		BatchID:    batchID,
		Total:      stats.Total,
		Pending:    stats.Pending,
		Processing: stats.Processing,
		Completed:  stats.Completed,
		Failed:     stats.Failed,
		Cancelled:  stats.Cancelled,
		Done:       stats.Done(),
		Jobs:       FromJobs(members),
	}, nil
}

// Stats returns job counts keyed by status string.
func (s *ConversionService) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]int{
		string(jobs.StatusPending):    stats.Pending,
		string(jobs.StatusProcessing): stats.Processing,
		string(jobs.StatusCompleted):  stats.Completed,
		string(jobs.StatusFailed):     stats.Failed,
		string(jobs.StatusCancelled):  stats.Cancelled,
	}, nil
}

// Presets lists the built-in conversion presets.
func (s *ConversionService) Presets() []PresetInfo {
	all := presets.All()
	out := make([]PresetInfo, 0, len(all))
	for _, preset := range all {
		out = append(out, PresetInfo{
			ID:           preset.ID,
			Name:         preset.Name,
			Codec:        string(preset.Codec),
			TargetWidth:  preset.TargetWidth,
			Quality:      preset.Quality,
			AudioBitrate: preset.AudioBitrate,
			Container:    preset.Container,
		})
	}
	return out
}

// Videos lists the library contents.
func (s *ConversionService) Videos(ctx context.Context) ([]VideoInfo, error) {
	list, err := s.videos.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]VideoInfo, 0, len(list))
	for _, video := range list {
		out = append(out, VideoInfo{
			ID:              video.ID,
			Path:            video.Path,
			Title:           video.Title,
			SizeBytes:       video.SizeBytes,
			DurationSeconds: video.DurationSeconds,
			Width:           video.Width,
			Height:          video.Height,
			Bitrate:         video.Bitrate,
			Codec:           video.Codec,
		})
	}
	return out, nil
}

// DeleteVideo removes a library video and its file on disk. Videos with an
// active conversion cannot be removed.
func (s *ConversionService) DeleteVideo(ctx context.Context, id int64) error {
	history, err := s.store.ListByVideo(ctx, id)
	if err != nil {
		return err
	}
	for _, job := range history {
		if job.Status.Active() {
			return fmt.Errorf("video %d has an active conversion job %d: %w",
				id, job.ID, jobs.ErrConflict)
		}
	}

	video, err := s.videos.Delete(ctx, id)
	if err != nil {
		return err
	}
	if err := os.Remove(video.Path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("video file removal failed",
			logging.String("path", video.Path),
			logging.Error(err))
	}
	s.logger.Info("video deleted",
		logging.Int64("video_id", id),
		logging.String("path", video.Path))
	return nil
}

func (s *ConversionService) publish(ctx context.Context, event notifications.Event) {
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.logger.Warn("notification failed",
			logging.String("event", string(event.Type)),
			logging.Error(err))
	}
}
