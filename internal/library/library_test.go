package library

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"reelvault/internal/jobs"
	"reelvault/internal/media/ffprobe"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	jobsStore, err := jobs.OpenPath(filepath.Join(t.TempDir(), "reelvault.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = jobsStore.Close()
	})
	store, err := NewStore(jobsStore.DB())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestUpsertInsertsThenUpdates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	video := &Video{Path: "/media/The.Big.Movie_2019.mkv", Width: 3840, Height: 2160}
	added, err := store.Upsert(ctx, video)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !added {
		t.Fatal("expected insert")
	}
	if video.Title != "The Big Movie 2019" {
		t.Fatalf("derived title %q", video.Title)
	}

	update := &Video{Path: video.Path, Title: "The Big Movie", Width: 1920, Height: 1080}
	added, err = store.Upsert(ctx, update)
	if err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	if added {
		t.Fatal("expected update, not insert")
	}
	if update.ID != video.ID {
		t.Fatalf("update id %d, want %d", update.ID, video.ID)
	}

	fetched, err := store.GetByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Width != 1920 || fetched.Title != "The Big Movie" {
		t.Fatalf("unexpected video %+v", fetched)
	}
}

func TestGetMissingVideo(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetByID(context.Background(), 404); !errors.Is(err, ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound, got %v", err)
	}
}

func TestDeleteReturnsRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	video := &Video{Path: "/media/clip.mp4"}
	if _, err := store.Upsert(ctx, video); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	deleted, err := store.Delete(ctx, video.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.Path != video.Path {
		t.Fatalf("deleted path %q", deleted.Path)
	}
	if _, err := store.GetByID(ctx, video.ID); !errors.Is(err, ErrVideoNotFound) {
		t.Fatalf("expected ErrVideoNotFound after delete, got %v", err)
	}
}

func TestWatchedDirectories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.AddWatched(ctx, "/media/movies"); err != nil {
		t.Fatalf("add watched: %v", err)
	}
	// Duplicate registration is harmless.
	if err := store.AddWatched(ctx, "/media/movies"); err != nil {
		t.Fatalf("re-add watched: %v", err)
	}
	if err := store.AddWatched(ctx, "/media/shows"); err != nil {
		t.Fatalf("add watched: %v", err)
	}

	dirs, err := store.ListWatched(ctx)
	if err != nil {
		t.Fatalf("list watched: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("got %d watched dirs, want 2", len(dirs))
	}

	if err := store.RemoveWatched(ctx, "/media/movies"); err != nil {
		t.Fatalf("remove watched: %v", err)
	}
	dirs, err = store.ListWatched(ctx)
	if err != nil {
		t.Fatalf("list watched: %v", err)
	}
	if len(dirs) != 1 || dirs[0].Path != "/media/shows" {
		t.Fatalf("unexpected watched dirs %+v", dirs)
	}
}

func TestScannerRecordsProbedVideos(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "movie.mkv"), "fake video payload")
	mustWriteFile(t, filepath.Join(dir, "notes.txt"), "not a video")
	mustWriteFile(t, filepath.Join(dir, "nested", "episode.mp4"), "fake episode")
	mustWriteFile(t, filepath.Join(dir, "broken.avi"), "corrupt")

	scanner := NewScanner(store, withProbe(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		if filepath.Base(path) == "broken.avi" {
			return ffprobe.Result{}, errors.New("moov atom not found")
		}
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080}},
			Format:  ffprobe.Format{Duration: "3600", BitRate: "8000000"},
		}, nil
	}))

	result, err := scanner.Scan(ctx, dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if result.Added != 2 || result.Skipped != 1 || result.Updated != 0 {
		t.Fatalf("unexpected result %+v", result)
	}

	videos, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("got %d videos, want 2", len(videos))
	}
	for _, video := range videos {
		if video.Width != 1920 || video.Bitrate != 8_000_000 || video.Codec != "h264" {
			t.Fatalf("unexpected metadata %+v", video)
		}
	}

	// Rescanning refreshes instead of duplicating.
	result, err = scanner.Scan(ctx, dir)
	if err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if result.Added != 0 || result.Updated != 2 {
		t.Fatalf("unexpected rescan result %+v", result)
	}
}

func TestScanAllWatchedSkipsMissingDirectories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dir := t.TempDir()
	mustWriteFile(t, filepath.Join(dir, "movie.mkv"), "fake")
	if err := store.AddWatched(ctx, dir); err != nil {
		t.Fatalf("add watched: %v", err)
	}
	if err := store.AddWatched(ctx, filepath.Join(dir, "gone")); err != nil {
		t.Fatalf("add watched: %v", err)
	}

	scanner := NewScanner(store, withProbe(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "video", Width: 1280, Height: 720}},
		}, nil
	}))

	result, err := scanner.ScanAllWatched(ctx)
	if err != nil {
		t.Fatalf("scan all: %v", err)
	}
	if result.Added != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestIsVideoFile(t *testing.T) {
	if !IsVideoFile("/a/b/Movie.MKV") {
		t.Fatal("mkv should match regardless of case")
	}
	if IsVideoFile("/a/b/cover.jpg") {
		t.Fatal("jpg must not match")
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}
