package queue

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"reelvault/internal/jobs"
)

func newTestBacklog(t *testing.T) *Backlog {
	t.Helper()
	store, err := jobs.OpenPath(filepath.Join(t.TempDir(), "reelvault.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	backlog, err := NewBacklog(store.DB())
	if err != nil {
		t.Fatalf("new backlog: %v", err)
	}
	return backlog
}

func testPayload(jobID int64) Payload {
	return Payload{
		JobID:     jobID,
		VideoID:   jobID * 10,
		PresetID:  "h264-720p",
		InputPath: "/library/in.mkv",
		CreatedAt: time.Now().UTC(),
	}
}

func TestBacklogFIFO(t *testing.T) {
	backlog := newTestBacklog(t)
	ctx := context.Background()

	for _, id := range []int64{11, 22, 33} {
		if err := backlog.Enqueue(ctx, testPayload(id)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if n, err := backlog.Len(ctx); err != nil || n != 3 {
		t.Fatalf("len=%d err=%v, want 3", n, err)
	}

	for _, want := range []int64{11, 22, 33} {
		got, ok, err := backlog.Dequeue(ctx)
		if err != nil || !ok {
			t.Fatalf("dequeue: ok=%v err=%v", ok, err)
		}
		if got.JobID != want {
			t.Fatalf("dequeued job %d, want %d", got.JobID, want)
		}
		if got.VideoID != want*10 || got.PresetID != "h264-720p" || got.InputPath != "/library/in.mkv" {
			t.Fatalf("payload lost fields: %+v", got)
		}
		if got.CreatedAt.IsZero() {
			t.Fatalf("payload lost creation time: %+v", got)
		}
	}

	if _, ok, err := backlog.Dequeue(ctx); err != nil || ok {
		t.Fatalf("empty backlog: ok=%v err=%v", ok, err)
	}
}

func TestBacklogCarriesCleanupFlag(t *testing.T) {
	backlog := newTestBacklog(t)
	ctx := context.Background()

	payload := testPayload(7)
	payload.BatchID = "batch-7"
	payload.OutputPath = "/converted/out.mkv"
	payload.DeleteOriginal = true
	if err := backlog.Enqueue(ctx, payload); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	got, ok, err := backlog.Dequeue(ctx)
	if err != nil || !ok {
		t.Fatalf("dequeue: ok=%v err=%v", ok, err)
	}
	if !got.DeleteOriginal || got.BatchID != "batch-7" || got.OutputPath != "/converted/out.mkv" {
		t.Fatalf("payload round trip lost fields: %+v", got)
	}
}

func TestBacklogRemoveAndClear(t *testing.T) {
	backlog := newTestBacklog(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2, 3} {
		if err := backlog.Enqueue(ctx, testPayload(id)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	if err := backlog.Remove(ctx, 2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, ok, _ := backlog.Dequeue(ctx)
	if !ok || got.JobID != 1 {
		t.Fatalf("dequeued %d, want 1", got.JobID)
	}
	got, ok, _ = backlog.Dequeue(ctx)
	if !ok || got.JobID != 3 {
		t.Fatalf("dequeued %d, want 3 after removal", got.JobID)
	}

	_ = backlog.Enqueue(ctx, testPayload(4))
	dropped, err := backlog.Clear(ctx)
	if err != nil || dropped != 1 {
		t.Fatalf("clear: dropped=%d err=%v", dropped, err)
	}
}

func TestPoolHonorsConcurrencyLimit(t *testing.T) {
	backlog := newTestBacklog(t)
	ctx := context.Background()

	var (
		current atomic.Int64
		peak    atomic.Int64
		done    sync.WaitGroup
	)
	done.Add(5)
	handler := func(ctx context.Context, payload Payload) error {
		defer done.Done()
		running := current.Add(1)
		defer current.Add(-1)
		for {
			observed := peak.Load()
			if running <= observed || peak.CompareAndSwap(observed, running) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		return nil
	}

	pool, err := NewPool(backlog, 2, handler, WithPollInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	pool.Start(ctx)
	defer pool.Stop()

	for i := int64(1); i <= 5; i++ {
		if err := pool.Enqueue(ctx, testPayload(i)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	done.Wait()

	if peak.Load() > 2 {
		t.Fatalf("observed %d concurrent handlers, limit is 2", peak.Load())
	}
	if n, err := backlog.Len(ctx); err != nil || n != 0 {
		t.Fatalf("backlog not drained: len=%d err=%v", n, err)
	}
}

func TestPoolIsolatesFailuresAndPanics(t *testing.T) {
	backlog := newTestBacklog(t)
	ctx := context.Background()

	var (
		processed sync.Map
		done      sync.WaitGroup
	)
	done.Add(3)
	handler := func(ctx context.Context, payload Payload) error {
		defer done.Done()
		processed.Store(payload.JobID, true)
		switch payload.JobID {
		case 1:
			return errors.New("encode failed")
		case 2:
			panic("worker blew up")
		}
		return nil
	}

	pool, err := NewPool(backlog, 1, handler, WithPollInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	pool.Start(ctx)
	defer pool.Stop()

	for i := int64(1); i <= 3; i++ {
		if err := pool.Enqueue(ctx, testPayload(i)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	done.Wait()

	for i := int64(1); i <= 3; i++ {
		if _, ok := processed.Load(i); !ok {
			t.Fatalf("job %d was not processed", i)
		}
	}
}

func TestPoolPicksUpPersistedBacklog(t *testing.T) {
	backlog := newTestBacklog(t)
	ctx := context.Background()

	// Entry written before the pool exists, as after a daemon restart.
	if err := backlog.Enqueue(ctx, testPayload(99)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	var done sync.WaitGroup
	done.Add(1)
	var got atomic.Int64
	pool, err := NewPool(backlog, 1, func(ctx context.Context, payload Payload) error {
		got.Store(payload.JobID)
		done.Done()
		return nil
	}, WithPollInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	pool.Start(ctx)
	defer pool.Stop()

	done.Wait()
	if got.Load() != 99 {
		t.Fatalf("processed %d, want 99", got.Load())
	}
}

func TestPoolStopLetsInFlightFinish(t *testing.T) {
	backlog := newTestBacklog(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	var sawCancel atomic.Bool
	var finished atomic.Bool
	handler := func(ctx context.Context, payload Payload) error {
		close(started)
		<-release
		if ctx.Err() != nil {
			sawCancel.Store(true)
		}
		finished.Store(true)
		return nil
	}

	pool, err := NewPool(backlog, 1, handler, WithPollInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	pool.Start(ctx)

	if err := pool.Enqueue(ctx, testPayload(1)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	<-started

	stopped := make(chan struct{})
	go func() {
		pool.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a handler was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the handler finished")
	}

	if !finished.Load() {
		t.Fatal("handler did not run to completion")
	}
	if sawCancel.Load() {
		t.Fatal("Stop must not cancel the handler context")
	}
}

func TestPoolStartIsIdempotent(t *testing.T) {
	backlog := newTestBacklog(t)
	pool, err := NewPool(backlog, 2, func(ctx context.Context, payload Payload) error { return nil })
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	ctx := context.Background()
	pool.Start(ctx)
	pool.Start(ctx)
	defer pool.Stop()

	status, err := pool.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Workers != 2 || status.InFlight != 0 || status.Waiting != 0 {
		t.Fatalf("unexpected status %+v", status)
	}
}
