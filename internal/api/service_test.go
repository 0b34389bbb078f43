package api

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reelvault/internal/jobs"
	"reelvault/internal/library"
	"reelvault/internal/logging"
	"reelvault/internal/notifications"
	"reelvault/internal/processor"
	"reelvault/internal/queue"
)

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []queue.Payload
	removed  []int64
	failNext bool
}

func (f *fakeQueue) Enqueue(ctx context.Context, payload queue.Payload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errors.New("backlog unavailable")
	}
	f.enqueued = append(f.enqueued, payload)
	return nil
}

func (f *fakeQueue) Remove(ctx context.Context, jobID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, jobID)
	return nil
}

type serviceEnv struct {
	store     *jobs.Store
	videos    *library.Store
	queue     *fakeQueue
	batches   *processor.BatchTracker
	events    <-chan notifications.Event
	service   *ConversionService
	outputDir string
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := jobs.OpenPath(filepath.Join(dir, "reelvault.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	videos, err := library.NewStore(store.DB())
	if err != nil {
		t.Fatalf("library store: %v", err)
	}

	notifier := notifications.NewNop()
	events, cancel := notifier.Subscribe(64)
	t.Cleanup(cancel)

	fq := &fakeQueue{}
	batches := processor.NewBatchTracker(store, notifier, nil, logging.NewNop())
	outputDir := filepath.Join(dir, "converted")
	service := NewConversionService(
		store, videos, fq, fq, batches,
		notifier, outputDir, logging.NewNop(),
	)
	return &serviceEnv{
		store:     store,
		videos:    videos,
		queue:     fq,
		batches:   batches,
		events:    events,
		service:   service,
		outputDir: outputDir,
	}
}

func (e *serviceEnv) addVideo(t *testing.T, path string) *library.Video {
	t.Helper()
	video := &library.Video{Path: path, Width: 1920, Height: 1080, Bitrate: 6_000_000}
	if _, err := e.videos.Upsert(context.Background(), video); err != nil {
		t.Fatalf("upsert video: %v", err)
	}
	return video
}

func (e *serviceEnv) drainEvents() []notifications.Event {
	var out []notifications.Event
	for {
		select {
		case event := <-e.events:
			out = append(out, event)
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

func TestCreateJobsBuildsBatch(t *testing.T) {
	e := newServiceEnv(t)
	ctx := context.Background()
	one := e.addVideo(t, "/media/one.mkv")
	two := e.addVideo(t, "/media/two.mkv")

	resp, err := e.service.CreateJobs(ctx, CreateJobsRequest{
		VideoIDs: []int64{one.ID, two.ID},
		PresetID: "HEVC-1080P",
	})
	if err != nil {
		t.Fatalf("create jobs: %v", err)
	}
	if resp.BatchID == "" {
		t.Fatal("batch id missing")
	}
	if len(resp.Jobs) != 2 || len(resp.Rejected) != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
	for _, job := range resp.Jobs {
		if job.BatchID != resp.BatchID || job.Status != "pending" {
			t.Fatalf("unexpected job %+v", job)
		}
		if !strings.HasPrefix(job.OutputPath, e.outputDir) {
			t.Fatalf("output %q not under output dir", job.OutputPath)
		}
		if !strings.HasSuffix(job.OutputPath, ".hevc-1080p.mkv") {
			t.Fatalf("output %q missing preset suffix", job.OutputPath)
		}
	}
	if len(e.queue.enqueued) != 2 {
		t.Fatalf("enqueued %d jobs, want 2", len(e.queue.enqueued))
	}
	for i, payload := range e.queue.enqueued {
		job := resp.Jobs[i]
		if payload.JobID != job.ID || payload.VideoID != job.VideoID ||
			payload.BatchID != resp.BatchID || payload.PresetID != "hevc-1080p" ||
			payload.InputPath != job.InputPath || payload.OutputPath != job.OutputPath {
			t.Fatalf("payload %+v does not match job %+v", payload, job)
		}
	}
}

func TestCreateJobsRejectsBadRequests(t *testing.T) {
	e := newServiceEnv(t)
	ctx := context.Background()

	if _, err := e.service.CreateJobs(ctx, CreateJobsRequest{PresetID: "hevc-1080p"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for empty videos, got %v", err)
	}
	if _, err := e.service.CreateJobs(ctx, CreateJobsRequest{VideoIDs: []int64{1}, PresetID: "divx"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for unknown preset, got %v", err)
	}
}

func TestCreateJobsPartialRejection(t *testing.T) {
	e := newServiceEnv(t)
	ctx := context.Background()
	video := e.addVideo(t, "/media/solo.mkv")

	// First request occupies the (video, preset) pair.
	if _, err := e.service.CreateJobs(ctx, CreateJobsRequest{
		VideoIDs: []int64{video.ID}, PresetID: "hevc-1080p",
	}); err != nil {
		t.Fatalf("first create: %v", err)
	}

	resp, err := e.service.CreateJobs(ctx, CreateJobsRequest{
		VideoIDs: []int64{video.ID, 9999}, PresetID: "hevc-1080p",
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error when nothing was created, got %v resp=%+v", err, resp)
	}
}

func TestCancelPendingJobRemovesBacklogEntry(t *testing.T) {
	e := newServiceEnv(t)
	ctx := context.Background()
	video := e.addVideo(t, "/media/one.mkv")

	resp, err := e.service.CreateJobs(ctx, CreateJobsRequest{
		VideoIDs: []int64{video.ID}, PresetID: "h264-720p",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	jobID := resp.Jobs[0].ID

	cancelled, err := e.service.Cancel(ctx, jobID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != "cancelled" {
		t.Fatalf("status %q", cancelled.Status)
	}
	if len(e.queue.removed) != 1 || e.queue.removed[0] != jobID {
		t.Fatalf("backlog removal not requested: %v", e.queue.removed)
	}
}

func TestCancelRejectsProcessingJob(t *testing.T) {
	e := newServiceEnv(t)
	ctx := context.Background()
	video := e.addVideo(t, "/media/one.mkv")

	resp, err := e.service.CreateJobs(ctx, CreateJobsRequest{
		VideoIDs: []int64{video.ID}, PresetID: "h264-720p",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	jobID := resp.Jobs[0].ID
	if _, err := e.store.MarkProcessing(ctx, jobID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	if _, err := e.service.Cancel(ctx, jobID); !errors.Is(err, jobs.ErrConflict) {
		t.Fatalf("expected ErrConflict cancelling a processing job, got %v", err)
	}
	current, err := e.store.GetByID(ctx, jobID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if current.Status != jobs.StatusProcessing {
		t.Fatalf("status %q, the running conversion must not be touched", current.Status)
	}
}

func TestCancelLastMemberFiresBatchCompletion(t *testing.T) {
	e := newServiceEnv(t)
	ctx := context.Background()
	one := e.addVideo(t, "/media/one.mkv")
	two := e.addVideo(t, "/media/two.mkv")
	three := e.addVideo(t, "/media/three.mkv")

	resp, err := e.service.CreateJobs(ctx, CreateJobsRequest{
		VideoIDs: []int64{one.ID, two.ID, three.ID}, PresetID: "h264-720p",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Two members finish the way a worker would finish them.
	for _, job := range resp.Jobs[:2] {
		if _, err := e.store.MarkProcessing(ctx, job.ID); err != nil {
			t.Fatalf("mark processing: %v", err)
		}
		if err := e.store.MarkCompleted(ctx, job.ID, "/converted/out.mkv", 512); err != nil {
			t.Fatalf("mark completed: %v", err)
		}
		e.batches.JobFinished(ctx, resp.BatchID)
	}

	// Cancelling the last queued member must settle the batch.
	if _, err := e.service.Cancel(ctx, resp.Jobs[2].ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	var batchEvents []notifications.Event
	for _, event := range e.drainEvents() {
		if event.Type == notifications.EventBatchCompleted {
			batchEvents = append(batchEvents, event)
		}
	}
	if len(batchEvents) != 1 {
		t.Fatalf("batch completion fired %d times, want exactly once", len(batchEvents))
	}
	got := batchEvents[0]
	if got.BatchID != resp.BatchID || got.Total != 3 || got.Completed != 2 || got.Failed != 0 {
		t.Fatalf("unexpected batch event %+v", got)
	}
}

func TestDeleteCompletedJobRemovesArtifact(t *testing.T) {
	e := newServiceEnv(t)
	ctx := context.Background()
	video := e.addVideo(t, "/media/one.mkv")

	resp, err := e.service.CreateJobs(ctx, CreateJobsRequest{
		VideoIDs: []int64{video.ID}, PresetID: "h264-720p",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	jobID := resp.Jobs[0].ID

	output := filepath.Join(e.outputDir, "one.h264-720p.mp4")
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(output, []byte("converted"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	// Deletion is refused until the job reaches a terminal state.
	if err := e.service.Delete(ctx, jobID); !errors.Is(err, jobs.ErrConflict) {
		t.Fatalf("expected ErrConflict deleting a pending job, got %v", err)
	}

	if _, err := e.store.MarkProcessing(ctx, jobID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := e.store.MarkCompleted(ctx, jobID, output, int64(len("converted"))); err != nil {
		t.Fatalf("mark completed: %v", err)
	}

	if err := e.service.Delete(ctx, jobID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Fatal("artifact should be removed")
	}
	if _, err := e.store.GetByID(ctx, jobID); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("job should be gone, got %v", err)
	}
}

func TestBatchEndpointData(t *testing.T) {
	e := newServiceEnv(t)
	ctx := context.Background()
	one := e.addVideo(t, "/media/one.mkv")
	two := e.addVideo(t, "/media/two.mkv")

	resp, err := e.service.CreateJobs(ctx, CreateJobsRequest{
		VideoIDs: []int64{one.ID, two.ID}, PresetID: "av1-1080p",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	batch, err := e.service.Batch(ctx, resp.BatchID)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if batch.Total != 2 || batch.Pending != 2 || batch.Done {
		t.Fatalf("unexpected batch %+v", batch)
	}
	if len(batch.Jobs) != 2 {
		t.Fatalf("expected member jobs, got %d", len(batch.Jobs))
	}

	if _, err := e.service.Batch(ctx, "no-such-batch"); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClearPendingCancelsJobs(t *testing.T) {
	e := newServiceEnv(t)
	ctx := context.Background()
	one := e.addVideo(t, "/media/one.mkv")
	two := e.addVideo(t, "/media/two.mkv")

	resp, err := e.service.CreateJobs(ctx, CreateJobsRequest{
		VideoIDs: []int64{one.ID, two.ID}, PresetID: "h264-1080p",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	cleared, err := e.service.ClearPending(ctx)
	if err != nil {
		t.Fatalf("clear pending: %v", err)
	}
	if cleared != 2 {
		t.Fatalf("cleared %d, want 2", cleared)
	}
	if len(e.queue.removed) != 2 {
		t.Fatalf("backlog removals %v, want 2 entries", e.queue.removed)
	}

	// The jobs stay on record as cancelled, keeping batch totals intact.
	for _, job := range resp.Jobs {
		current, err := e.store.GetByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if current.Status != jobs.StatusCancelled {
			t.Fatalf("job %d status %q, want cancelled", job.ID, current.Status)
		}
	}
	batch, err := e.service.Batch(ctx, resp.BatchID)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if batch.Total != 2 || batch.Cancelled != 2 || !batch.Done {
		t.Fatalf("unexpected batch %+v", batch)
	}
}

func TestDeleteVideoRefusesActiveJobs(t *testing.T) {
	e := newServiceEnv(t)
	ctx := context.Background()

	source := filepath.Join(t.TempDir(), "doomed.mkv")
	if err := os.WriteFile(source, []byte("mkv"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	video := e.addVideo(t, source)

	resp, err := e.service.CreateJobs(ctx, CreateJobsRequest{
		VideoIDs: []int64{video.ID}, PresetID: "h264-720p",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := e.service.DeleteVideo(ctx, video.ID); !errors.Is(err, jobs.ErrConflict) {
		t.Fatalf("expected ErrConflict while job active, got %v", err)
	}

	if _, err := e.service.Cancel(ctx, resp.Jobs[0].ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := e.service.DeleteVideo(ctx, video.ID); err != nil {
		t.Fatalf("delete video: %v", err)
	}
	if _, err := os.Stat(source); !os.IsNotExist(err) {
		t.Fatal("source file should be removed")
	}
	if _, err := e.videos.GetByID(ctx, video.ID); !errors.Is(err, library.ErrVideoNotFound) {
		t.Fatalf("video row should be gone, got %v", err)
	}
}

func TestDeleteVideoUnknownID(t *testing.T) {
	e := newServiceEnv(t)
	if err := e.service.DeleteVideo(context.Background(), 4242); !errors.Is(err, library.ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound, got %v", err)
	}
}

func TestListForVideoReturnsFullHistory(t *testing.T) {
	e := newServiceEnv(t)
	ctx := context.Background()
	video := e.addVideo(t, "/media/history.mkv")
	other := e.addVideo(t, "/media/other.mkv")

	if _, err := e.service.CreateJobs(ctx, CreateJobsRequest{
		VideoIDs: []int64{video.ID}, PresetID: "h264-720p",
	}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := e.service.CreateJobs(ctx, CreateJobsRequest{
		VideoIDs: []int64{video.ID, other.ID}, PresetID: "hevc-1080p",
	}); err != nil {
		t.Fatalf("second create: %v", err)
	}

	history, err := e.service.ListForVideo(ctx, video.ID)
	if err != nil {
		t.Fatalf("list for video: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length %d, want 2", len(history))
	}
	for _, job := range history {
		if job.VideoID != video.ID {
			t.Fatalf("foreign job in history: %+v", job)
		}
	}
}

func TestPresetsListing(t *testing.T) {
	e := newServiceEnv(t)
	list := e.service.Presets()
	if len(list) == 0 {
		t.Fatal("expected presets")
	}
	for _, preset := range list {
		if preset.ID == "" || preset.Codec == "" || preset.Container == "" {
			t.Fatalf("incomplete preset %+v", preset)
		}
	}
}
