package testsupport

import (
	"context"
	"testing"

	"reelvault/internal/config"
	"reelvault/internal/jobs"
	"reelvault/internal/library"
)

// MustOpenStore opens a job store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// NewVideo registers a library video for tests using sensible 1080p defaults.
func NewVideo(t testing.TB, videos *library.Store, path string) *library.Video {
	t.Helper()

	video := &library.Video{
		Path:            path,
		SizeBytes:       1 << 20,
		DurationSeconds: 600,
		Width:           1920,
		Height:          1080,
		Bitrate:         6_000_000,
		Codec:           "h264",
	}
	if _, err := videos.Upsert(context.Background(), video); err != nil {
		t.Fatalf("library.Upsert: %v", err)
	}
	return video
}
