package processor

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"reelvault/internal/jobs"
	"reelvault/internal/library"
	"reelvault/internal/logging"
	"reelvault/internal/notifications"
)

// Rescanner refreshes library metadata for a directory after a batch lands
// new files in it.
type Rescanner interface {
	Scan(ctx context.Context, dir string) (library.ScanResult, error)
}

// BatchTracker watches batches for completion. A batch is complete when no
// member job is pending or processing, regardless of how the members ended.
// The completion event fires exactly once per batch.
type BatchTracker struct {
	store    *jobs.Store
	notifier notifications.Service
	scanner  Rescanner
	logger   *slog.Logger

	mu    sync.Mutex
	fired map[string]struct{}
}

// NewBatchTracker constructs a tracker. The scanner is optional.
func NewBatchTracker(store *jobs.Store, notifier notifications.Service, scanner Rescanner, logger *slog.Logger) *BatchTracker {
	if notifier == nil {
		notifier = notifications.NewNop()
	}
	return &BatchTracker{
		store:    store,
		notifier: notifier,
		scanner:  scanner,
		logger:   logging.NewComponentLogger(logger, "batch"),
		fired:    make(map[string]struct{}),
	}
}

// JobFinished must be called after every terminal job transition. Collaborator
// failures are logged and swallowed so a flaky notifier or scanner never
// affects job state.
func (t *BatchTracker) JobFinished(ctx context.Context, batchID string) {
	if batchID == "" {
		return
	}

	stats, err := t.store.BatchStats(ctx, batchID)
	if err != nil {
		t.logger.Error("batch stats lookup failed",
			logging.String(logging.FieldBatchID, batchID),
			logging.Error(err))
		return
	}
	if !stats.Done() {
		return
	}

	t.mu.Lock()
	if _, done := t.fired[batchID]; done {
		t.mu.Unlock()
		return
	}
	t.fired[batchID] = struct{}{}
	t.mu.Unlock()

	t.logger.Info("batch complete",
		logging.String(logging.FieldBatchID, batchID),
		logging.Int("completed", stats.Completed),
		logging.Int("failed", stats.Failed),
		logging.Int("total", stats.Total))

	if err := t.notifier.Publish(ctx, notifications.Event{
		Type:      notifications.EventBatchCompleted,
		BatchID:   batchID,
		Completed: stats.Completed,
		Failed:    stats.Failed,
		Total:     stats.Total,
	}); err != nil {
		t.logger.Warn("batch notification failed",
			logging.String(logging.FieldBatchID, batchID),
			logging.Error(err))
	}

	t.rescanOutputs(ctx, batchID)
}

// rescanOutputs refreshes library entries for every directory the batch
// wrote into.
func (t *BatchTracker) rescanOutputs(ctx context.Context, batchID string) {
	if t.scanner == nil {
		return
	}
	outputs, err := t.store.CompletedOutputs(ctx, batchID)
	if err != nil {
		t.logger.Warn("listing batch outputs failed",
			logging.String(logging.FieldBatchID, batchID),
			logging.Error(err))
		return
	}

	seen := make(map[string]struct{})
	for _, output := range outputs {
		dir := filepath.Dir(output)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		if _, err := t.scanner.Scan(ctx, dir); err != nil {
			t.logger.Warn("output rescan failed",
				logging.String("dir", dir),
				logging.Error(err))
		}
	}
}
