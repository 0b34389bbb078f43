package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reelvault/internal/jobs"
)

// Payload is the self-contained work order a worker dequeues. It carries
// everything needed to run the conversion so workers never have to read the
// job row back before starting.
type Payload struct {
	JobID          int64
	VideoID        int64
	BatchID        string
	PresetID       string
	InputPath      string
	OutputPath     string
	DeleteOriginal bool
	CreatedAt      time.Time
}

// PayloadFromJob builds the queue payload for a freshly created job.
func PayloadFromJob(job *jobs.Job) Payload {
	return Payload{
		JobID:          job.ID,
		VideoID:        job.VideoID,
		BatchID:        job.BatchID,
		PresetID:       job.PresetID,
		InputPath:      job.InputPath,
		OutputPath:     job.OutputPath,
		DeleteOriginal: job.DeleteOriginal,
		CreatedAt:      job.CreatedAt,
	}
}

// Backlog is a durable FIFO of conversion payloads waiting for a worker. It
// shares the conversion database so queued work survives daemon restarts.
type Backlog struct {
	db *sql.DB
}

const backlogSchema = `
CREATE TABLE IF NOT EXISTS conversion_backlog (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id INTEGER NOT NULL,
    video_id INTEGER NOT NULL,
    batch_id TEXT NOT NULL DEFAULT '',
    preset_id TEXT NOT NULL,
    input_path TEXT NOT NULL,
    output_path TEXT NOT NULL DEFAULT '',
    delete_original INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL,
    enqueued_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversion_backlog_job ON conversion_backlog(job_id);
`

// NewBacklog prepares the backlog table on the shared database handle.
func NewBacklog(db *sql.DB) (*Backlog, error) {
	if db == nil {
		return nil, errors.New("backlog: database handle required")
	}
	if _, err := db.ExecContext(context.Background(), backlogSchema); err != nil {
		return nil, fmt.Errorf("init backlog schema: %w", err)
	}
	return &Backlog{db: db}, nil
}

// Enqueue appends a payload to the tail of the backlog.
func (b *Backlog) Enqueue(ctx context.Context, payload Payload) error {
	if payload.JobID <= 0 {
		return errors.New("backlog: job id required")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	deleteOriginal := 0
	if payload.DeleteOriginal {
		deleteOriginal = 1
	}
	if _, err := b.db.ExecContext(
		ctx,
		`INSERT INTO conversion_backlog (
            job_id, video_id, batch_id, preset_id, input_path, output_path,
            delete_original, created_at, enqueued_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payload.JobID,
		payload.VideoID,
		payload.BatchID,
		payload.PresetID,
		payload.InputPath,
		payload.OutputPath,
		deleteOriginal,
		payload.CreatedAt.UTC().Format(time.RFC3339Nano),
		timestamp,
	); err != nil {
		return fmt.Errorf("enqueue job %d: %w", payload.JobID, err)
	}
	return nil
}

// Dequeue pops the oldest payload. It returns false when the backlog is
// empty.
func (b *Backlog) Dequeue(ctx context.Context) (Payload, bool, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return Payload{}, false, fmt.Errorf("dequeue begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var (
		rowID          int64
		payload        Payload
		deleteOriginal int64
		createdAt      string
	)
	err = tx.QueryRowContext(
		ctx,
		`SELECT id, job_id, video_id, batch_id, preset_id, input_path,
            output_path, delete_original, created_at
         FROM conversion_backlog ORDER BY id LIMIT 1`,
	).Scan(
		&rowID,
		&payload.JobID,
		&payload.VideoID,
		&payload.BatchID,
		&payload.PresetID,
		&payload.InputPath,
		&payload.OutputPath,
		&deleteOriginal,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Payload{}, false, nil
	}
	if err != nil {
		return Payload{}, false, fmt.Errorf("dequeue select: %w", err)
	}
	payload.DeleteOriginal = deleteOriginal != 0
	if parsed, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
		payload.CreatedAt = parsed
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversion_backlog WHERE id = ?`, rowID); err != nil {
		return Payload{}, false, fmt.Errorf("dequeue delete: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Payload{}, false, fmt.Errorf("dequeue commit: %w", err)
	}
	return payload, true, nil
}

// Remove drops any backlog entries for a job, typically after cancellation.
func (b *Backlog) Remove(ctx context.Context, jobID int64) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM conversion_backlog WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("remove job %d from backlog: %w", jobID, err)
	}
	return nil
}

// Clear empties the backlog and returns the number of dropped entries.
func (b *Backlog) Clear(ctx context.Context) (int64, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM conversion_backlog`)
	if err != nil {
		return 0, fmt.Errorf("clear backlog: %w", err)
	}
	return res.RowsAffected()
}

// Len reports how many payloads are waiting.
func (b *Backlog) Len(ctx context.Context) (int, error) {
	var count int
	if err := b.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversion_backlog`).Scan(&count); err != nil {
		return 0, fmt.Errorf("backlog length: %w", err)
	}
	return count, nil
}
