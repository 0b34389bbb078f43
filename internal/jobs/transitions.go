package jobs

import (
	"context"
	"fmt"
	"time"
)

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// MarkProcessing claims a pending job for a worker. It returns false when the
// job is no longer pending, which happens when it was cancelled or deleted
// while waiting in the queue.
func (s *Store) MarkProcessing(ctx context.Context, id int64) (bool, error) {
	timestamp := nowStamp()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE conversion_jobs
         SET status = ?, started_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusProcessing, timestamp, timestamp, id, StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateProgress records encoder progress for a running job. Progress never
// moves backwards and stays below 100 until completion; only MarkCompleted
// sets the final value.
func (s *Store) UpdateProgress(ctx context.Context, id int64, percent float64) error {
	if percent < 0 {
		percent = 0
	}
	if percent > 99 {
		percent = 99
	}
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE conversion_jobs
         SET progress = MAX(progress, ?), updated_at = ?
         WHERE id = ? AND status = ?`,
		percent, nowStamp(), id, StatusProcessing,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// MarkCompleted finalizes a successful conversion, recording where the
// artifact landed and how large it turned out.
func (s *Store) MarkCompleted(ctx context.Context, id int64, outputPath string, outputSize int64) error {
	timestamp := nowStamp()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE conversion_jobs
         SET status = ?, progress = 100, output_path = ?, output_size_bytes = ?,
             error_message = NULL, completed_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCompleted, outputPath, outputSize, timestamp, timestamp, id, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d is not processing: %w", id, ErrConflict)
	}
	return nil
}

// MarkFailed records a conversion failure. Pending jobs can fail too, for
// example when their payload refers to a job whose input disappeared.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	timestamp := nowStamp()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE conversion_jobs
         SET status = ?, error_message = ?, completed_at = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusFailed, message, timestamp, timestamp, id, StatusPending, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d already finished: %w", id, ErrConflict)
	}
	return nil
}

// Cancel withdraws a queued job. Cancellation only applies before work
// starts; a job that is already processing runs to completion or failure.
func (s *Store) Cancel(ctx context.Context, id int64) (*Job, error) {
	before, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if before.Status != StatusPending {
		return nil, fmt.Errorf("job %d is %s, only pending jobs can be cancelled: %w", id, before.Status, ErrConflict)
	}

	timestamp := nowStamp()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE conversion_jobs
         SET status = ?, completed_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCancelled, timestamp, timestamp, id, StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("job %d left pending concurrently: %w", id, ErrConflict)
	}

	before.Status = StatusCancelled
	return before, nil
}

// Delete removes a finished job record. Only terminal jobs can be deleted;
// pending jobs must be cancelled first and processing jobs must finish.
func (s *Store) Delete(ctx context.Context, id int64) (*Job, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !job.Status.Terminal() {
		return nil, fmt.Errorf("job %d is still %s: %w", id, job.Status, ErrConflict)
	}

	res, err := s.execWithRetry(ctx, `DELETE FROM conversion_jobs WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("job %d: %w", id, ErrNotFound)
	}
	return job, nil
}

// ClearPending cancels all jobs still waiting in the queue. The rows stay
// behind as history so batch totals keep adding up.
func (s *Store) ClearPending(ctx context.Context) (int64, error) {
	timestamp := nowStamp()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE conversion_jobs
         SET status = ?, completed_at = ?, updated_at = ?
         WHERE status = ?`,
		StatusCancelled, timestamp, timestamp, StatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("clear pending: %w", err)
	}
	return res.RowsAffected()
}

// ClearProcessing fails every job currently marked processing. Used on
// operator request and at daemon startup to sweep jobs orphaned by a crash.
func (s *Store) ClearProcessing(ctx context.Context, message string) (int64, error) {
	timestamp := nowStamp()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE conversion_jobs
         SET status = ?, error_message = ?, completed_at = ?, updated_at = ?
         WHERE status = ?`,
		StatusFailed, message, timestamp, timestamp, StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("clear processing: %w", err)
	}
	return res.RowsAffected()
}

// Stats aggregates job counts across every status.
func (s *Store) Stats(ctx context.Context) (QueueStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM conversion_jobs GROUP BY status`)
	if err != nil {
		return QueueStats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var stats QueueStats
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return QueueStats{}, err
		}
		stats.Total += count
		switch status {
		case StatusPending:
			stats.Pending = count
		case StatusProcessing:
			stats.Processing = count
		case StatusCompleted:
			stats.Completed = count
		case StatusFailed:
			stats.Failed = count
		case StatusCancelled:
			stats.Cancelled = count
		}
	}
	return stats, rows.Err()
}

// BatchStats aggregates the per-status counts for one batch.
func (s *Store) BatchStats(ctx context.Context, batchID string) (BatchStats, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT status, COUNT(*) FROM conversion_jobs WHERE batch_id = ? GROUP BY status`,
		batchID,
	)
	if err != nil {
		return BatchStats{}, fmt.Errorf("batch stats: %w", err)
	}
	defer rows.Close()

	stats := BatchStats{BatchID: batchID}
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return BatchStats{}, err
		}
		stats.Total += count
		switch status {
		case StatusPending:
			stats.Pending = count
		case StatusProcessing:
			stats.Processing = count
		case StatusCompleted:
			stats.Completed = count
		case StatusFailed:
			stats.Failed = count
		case StatusCancelled:
			stats.Cancelled = count
		}
	}
	return stats, rows.Err()
}

// CompletedOutputs returns the output paths of every completed job in a
// batch, in creation order.
func (s *Store) CompletedOutputs(ctx context.Context, batchID string) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT output_path FROM conversion_jobs
         WHERE batch_id = ? AND status = ? AND output_path != ''
         ORDER BY id`,
		batchID, StatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("completed outputs: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}
