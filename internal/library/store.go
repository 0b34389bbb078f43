package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrVideoNotFound indicates the referenced video does not exist.
var ErrVideoNotFound = errors.New("video not found")

// Store persists library videos and watched directories on the shared
// conversion database.
type Store struct {
	db *sql.DB
}

const librarySchema = `
CREATE TABLE IF NOT EXISTS videos (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    size_bytes INTEGER NOT NULL DEFAULT 0,
    duration_seconds REAL NOT NULL DEFAULT 0,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    bitrate INTEGER NOT NULL DEFAULT 0,
    codec TEXT NOT NULL DEFAULT '',
    added_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS watched_directories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    added_at TEXT NOT NULL
);
`

// NewStore prepares the library tables on the shared database handle.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("library: database handle required")
	}
	if _, err := db.ExecContext(context.Background(), librarySchema); err != nil {
		return nil, fmt.Errorf("init library schema: %w", err)
	}
	return &Store{db: db}, nil
}

const videoColumns = `id, path, title, size_bytes, duration_seconds, width, height,
    bitrate, codec, added_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(scanner rowScanner) (*Video, error) {
	var (
		video     Video
		addedAt   string
		updatedAt string
	)
	if err := scanner.Scan(
		&video.ID,
		&video.Path,
		&video.Title,
		&video.SizeBytes,
		&video.DurationSeconds,
		&video.Width,
		&video.Height,
		&video.Bitrate,
		&video.Codec,
		&addedAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	video.AddedAt = parseTime(addedAt)
	video.UpdatedAt = parseTime(updatedAt)
	return &video, nil
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// Upsert inserts a video or refreshes its metadata when the path is already
// tracked. It reports whether a new row was created.
func (s *Store) Upsert(ctx context.Context, video *Video) (bool, error) {
	if video == nil {
		return false, errors.New("library: video is nil")
	}
	if strings.TrimSpace(video.Path) == "" {
		return false, errors.New("library: video path required")
	}
	if strings.TrimSpace(video.Title) == "" {
		video.Title = titleFromPath(video.Path)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	existing, err := s.GetByPath(ctx, video.Path)
	if err != nil && !errors.Is(err, ErrVideoNotFound) {
		return false, err
	}

	if existing != nil {
		if _, err := s.db.ExecContext(
			ctx,
			`UPDATE videos
             SET title = ?, size_bytes = ?, duration_seconds = ?, width = ?,
                 height = ?, bitrate = ?, codec = ?, updated_at = ?
             WHERE id = ?`,
			video.Title, video.SizeBytes, video.DurationSeconds, video.Width,
			video.Height, video.Bitrate, video.Codec, timestamp, existing.ID,
		); err != nil {
			return false, fmt.Errorf("update video: %w", err)
		}
		video.ID = existing.ID
		video.AddedAt = existing.AddedAt
		return false, nil
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO videos (
            path, title, size_bytes, duration_seconds, width, height,
            bitrate, codec, added_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		video.Path, video.Title, video.SizeBytes, video.DurationSeconds,
		video.Width, video.Height, video.Bitrate, video.Codec, timestamp, timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("insert video: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	video.ID = id
	return true, nil
}

// GetByID fetches a video by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("video %d: %w", id, ErrVideoNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return video, nil
}

// GetByPath fetches a video by its file path.
func (s *Store) GetByPath(ctx context.Context, path string) (*Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE path = ?`, path)
	video, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("video %q: %w", path, ErrVideoNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get video by path: %w", err)
	}
	return video, nil
}

// List returns every tracked video ordered by title.
func (s *Store) List(ctx context.Context) ([]*Video, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+videoColumns+` FROM videos ORDER BY title, id`)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var out []*Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, video)
	}
	return out, rows.Err()
}

// Delete removes a video row and returns the deleted record so callers can
// clean up the file on disk.
func (s *Store) Delete(ctx context.Context, id int64) (*Video, error) {
	video, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete video: %w", err)
	}
	return video, nil
}

// AddWatched registers a directory for periodic rescans. Registering the
// same path twice is a no-op.
func (s *Store) AddWatched(ctx context.Context, path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("library: directory path required")
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO watched_directories (path, added_at) VALUES (?, ?)`,
		path, timestamp,
	); err != nil {
		return fmt.Errorf("add watched directory: %w", err)
	}
	return nil
}

// ListWatched returns every watched directory.
func (s *Store) ListWatched(ctx context.Context) ([]*WatchedDirectory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, path, added_at FROM watched_directories ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("list watched directories: %w", err)
	}
	defer rows.Close()

	var out []*WatchedDirectory
	for rows.Next() {
		var (
			dir     WatchedDirectory
			addedAt string
		)
		if err := rows.Scan(&dir.ID, &dir.Path, &addedAt); err != nil {
			return nil, err
		}
		dir.AddedAt = parseTime(addedAt)
		out = append(out, &dir)
	}
	return out, rows.Err()
}

// RemoveWatched unregisters a watched directory.
func (s *Store) RemoveWatched(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM watched_directories WHERE path = ?`, path); err != nil {
		return fmt.Errorf("remove watched directory: %w", err)
	}
	return nil
}
