package daemon_test

import (
	"context"
	"testing"

	"reelvault/internal/daemon"
	"reelvault/internal/logging"
	"reelvault/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status, err := d.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.Workers != cfg.Transcode.MaxConcurrent {
		t.Fatalf("workers %d, want %d", status.Workers, cfg.Transcode.MaxConcurrent)
	}

	// Second start should fail while the first instance holds the lock.
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status, err = d.Status(ctx)
	if err != nil {
		t.Fatalf("Status after stop: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonSingleInstanceLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	first, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = first.Close()
	})

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Stop()

	second, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("second daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = second.Close()
	})
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected lock conflict for second instance")
	}
}
