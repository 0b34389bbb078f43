package jobs

import (
	"context"
	"fmt"
)

const schemaStatements = `
CREATE TABLE IF NOT EXISTS conversion_jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    video_id INTEGER NOT NULL,
    batch_id TEXT NOT NULL DEFAULT '',
    preset_id TEXT NOT NULL,
    input_path TEXT NOT NULL,
    output_path TEXT NOT NULL DEFAULT '',
    output_size_bytes INTEGER NOT NULL DEFAULT 0,
    delete_original INTEGER NOT NULL DEFAULT 0,
    status TEXT NOT NULL DEFAULT 'pending',
    progress REAL NOT NULL DEFAULT 0,
    error_message TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    started_at TEXT,
    completed_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_conversion_jobs_status ON conversion_jobs(status);
CREATE INDEX IF NOT EXISTS idx_conversion_jobs_video ON conversion_jobs(video_id, preset_id);
CREATE INDEX IF NOT EXISTS idx_conversion_jobs_batch ON conversion_jobs(batch_id);
`

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaStatements); err != nil {
		return fmt.Errorf("init jobs schema: %w", err)
	}
	return nil
}
