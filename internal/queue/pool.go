package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"reelvault/internal/logging"
)

// Handler processes one dequeued payload. Failures are the handler's
// business: a handler error or panic never takes down the pool or its
// siblings.
type Handler func(ctx context.Context, payload Payload) error

// Pool drains the backlog with a bounded set of workers. Workers are woken
// by Enqueue and also poll periodically so entries persisted by a previous
// run are picked up after restart.
type Pool struct {
	backlog      *Backlog
	handler      Handler
	workers      int
	pollInterval time.Duration
	logger       *slog.Logger

	wake     chan struct{}
	inFlight atomic.Int64

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// PoolStatus is a point-in-time snapshot of the pool.
type PoolStatus struct {
	Workers  int
	InFlight int
	Waiting  int
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPollInterval overrides how often idle workers re-check the backlog.
func WithPollInterval(interval time.Duration) PoolOption {
	return func(p *Pool) {
		if interval > 0 {
			p.pollInterval = interval
		}
	}
}

// WithPoolLogger attaches a logger to the pool.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logging.NewComponentLogger(logger, "queue")
		}
	}
}

// NewPool constructs a pool with the given concurrency limit.
func NewPool(backlog *Backlog, workers int, handler Handler, opts ...PoolOption) (*Pool, error) {
	if backlog == nil {
		return nil, errors.New("pool: backlog required")
	}
	if handler == nil {
		return nil, errors.New("pool: handler required")
	}
	if workers <= 0 {
		workers = 1
	}
	pool := &Pool{
		backlog:      backlog,
		handler:      handler,
		workers:      workers,
		pollInterval: time.Second,
		logger:       logging.NewNop(),
		wake:         make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(pool)
	}
	return pool, nil
}

// Start launches the workers. Handlers run against ctx, so cancelling it
// aborts in-flight work; calling Start on a running pool is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	p.stop = make(chan struct{})
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, p.stop, i)
	}
	p.logger.Info("worker pool started", logging.Int("workers", p.workers))
}

// Stop tells workers to quit pulling from the backlog and waits for
// in-flight handlers to finish on their own. It never aborts running work;
// cancelling the Start context does that.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()

	close(stop)
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// Enqueue persists a payload at the tail of the backlog and nudges an idle
// worker.
func (p *Pool) Enqueue(ctx context.Context, payload Payload) error {
	if err := p.backlog.Enqueue(ctx, payload); err != nil {
		return err
	}
	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// Status reports worker count, running handlers, and waiting entries.
func (p *Pool) Status(ctx context.Context) (PoolStatus, error) {
	waiting, err := p.backlog.Len(ctx)
	if err != nil {
		return PoolStatus{}, err
	}
	return PoolStatus{
		Workers:  p.workers,
		InFlight: int(p.inFlight.Load()),
		Waiting:  waiting,
	}, nil
}

func (p *Pool) worker(ctx context.Context, stop <-chan struct{}, index int) {
	defer p.wg.Done()
	logger := p.logger.With(logging.Int("worker", index))

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		payload, ok, err := p.backlog.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("dequeue failed", logging.Error(err))
		}
		if ok {
			p.run(ctx, logger, payload)
			continue
		}

		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-p.wake:
		case <-ticker.C:
		}
	}
}

func (p *Pool) run(ctx context.Context, logger *slog.Logger, payload Payload) {
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panicked",
				logging.Int64(logging.FieldJobID, payload.JobID),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())))
		}
	}()

	if err := p.handler(ctx, payload); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("job handler failed",
			logging.Int64(logging.FieldJobID, payload.JobID),
			logging.Error(fmt.Errorf("handle job: %w", err)))
	}
}
