package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"reelvault/internal/api"
	"reelvault/internal/config"
	"reelvault/internal/jobs"
	"reelvault/internal/library"
	"reelvault/internal/logging"
	"reelvault/internal/notifications"
	"reelvault/internal/processor"
	"reelvault/internal/queue"
	"reelvault/internal/transcode"
)

// Daemon wires the conversion pipeline together and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *jobs.Store
	videos   *library.Store
	scanner  *library.Scanner
	backlog  *queue.Backlog
	pool     *queue.Pool
	proc     *processor.Processor
	notifier notifications.Service
	service  *api.ConversionService
	apiSrv   *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with all dependencies initialized. The returned
// daemon owns the database handle; call Close when done.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store, err := jobs.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	videos, err := library.NewStore(store.DB())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open library store: %w", err)
	}
	scanner := library.NewScanner(videos,
		library.WithProbeBinary(cfg.FFprobeBinary()),
		library.WithScanLogger(logger))

	backlog, err := queue.NewBacklog(store.DB())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open backlog: %w", err)
	}

	notifier := notifications.NewService(cfg)
	runner := transcode.NewFFmpeg(
		transcode.WithBinary(cfg.FFmpegBinary()),
		transcode.WithProbeBinary(cfg.FFprobeBinary()),
		transcode.WithHWDevice(cfg.Transcode.HWDevice),
		transcode.WithLogger(logger),
	)

	batches := processor.NewBatchTracker(store, notifier, scanner, logger)
	proc := processor.New(store, videos, runner, notifier, batches, logger)

	pool, err := queue.NewPool(backlog, cfg.Transcode.MaxConcurrent, proc.ProcessJob,
		queue.WithPoolLogger(logger))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build worker pool: %w", err)
	}

	service := api.NewConversionService(
		store, videos, pool, backlog, batches, notifier, cfg.Paths.OutputDir, logger)

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		videos:   videos,
		scanner:  scanner,
		backlog:  backlog,
		pool:     pool,
		proc:     proc,
		notifier: notifier,
		service:  service,
		lockPath: filepath.Join(cfg.Paths.DataDir, "reelvaultd.lock"),
	}
	d.lock = flock.New(d.lockPath)
	d.apiSrv = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock, sweeps jobs orphaned by a previous run,
// and launches the worker pool and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelvault daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	swept, err := d.store.ClearProcessing(runCtx, "interrupted by daemon restart")
	if err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("sweep orphaned jobs: %w", err)
	}
	if swept > 0 {
		d.logger.Warn("failed jobs orphaned by previous run", logging.Int64("count", swept))
	}

	d.pool.Start(runCtx)
	if err := d.apiSrv.start(runCtx); err != nil {
		d.pool.Stop()
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("reelvault daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("workers", d.cfg.Transcode.MaxConcurrent))
	return nil
}

// Stop halts background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.pool.Stop()
	d.apiSrv.stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("reelvault daemon stopped")
}

// Close stops the daemon and closes the database.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Service exposes the conversion service, for embedding and tests.
func (d *Daemon) Service() *api.ConversionService {
	return d.service
}

// ScanWatched rescans every watched directory.
func (d *Daemon) ScanWatched(ctx context.Context) (library.ScanResult, error) {
	return d.scanner.ScanAllWatched(ctx)
}

// Status summarizes daemon runtime state for the API.
func (d *Daemon) Status(ctx context.Context) (api.StatusResponse, error) {
	poolStatus, err := d.pool.Status(ctx)
	if err != nil {
		return api.StatusResponse{}, err
	}
	counts, err := d.service.Stats(ctx)
	if err != nil {
		return api.StatusResponse{}, err
	}
	return api.StatusResponse{
		Running:    d.running.Load(),
		PID:        os.Getpid(),
		Workers:    poolStatus.Workers,
		InFlight:   poolStatus.InFlight,
		Waiting:    poolStatus.Waiting,
		JobCounts:  counts,
		DBPath:     d.store.Path(),
		APIVersion: "v1",
	}, nil
}
