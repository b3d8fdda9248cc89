package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrAlreadyStarted is returned by Start on a running Poller.
var ErrAlreadyStarted = errors.New("poller already started")

// Task is one unit of periodic work.
type Task interface {
	Poll(ctx context.Context) error
}

// TaskFunc is a function adapter for Task.
type TaskFunc func(ctx context.Context) error

func (f TaskFunc) Poll(ctx context.Context) error {
	return f(ctx)
}

// Config holds poller configuration.
type Config struct {
	Name        string        // Used in log lines
	Interval    time.Duration // Poll interval (default: 60s)
	Concurrency int           // Max concurrent tasks (default: 4)
	Timeout     time.Duration // Per-poll timeout (default: 10s)
	Immediate   bool          // Poll once on Start before the first tick
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Name:        "poller",
		Interval:    60 * time.Second,
		Concurrency: 4,
		Timeout:     10 * time.Second,
		Immediate:   true,
	}
}

// Stats holds poll counters.
type Stats struct {
	Cycles int64
	Polls  int64
	Errors int64
}

// Poller periodically runs its tasks.
type Poller struct {
	cfg    Config
	tasks  []Task
	logger *slog.Logger

	cycles atomic.Int64
	polls  atomic.Int64
	errors atomic.Int64

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, logger *slog.Logger, tasks ...Task) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Poller{
		cfg:    cfg,
		tasks:  tasks,
		logger: logger.With("poller", cfg.Name),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return ErrAlreadyStarted
	}
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run(ctx)

	p.logger.Info("poller started",
		"interval", p.cfg.Interval,
		"tasks", len(p.tasks),
	)

	return nil
}

// Stop gracefully shuts down the poller. The Poller may be started again.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current counters.
func (p *Poller) Stats() Stats {
	return Stats{
		Cycles: p.cycles.Load(),
		Polls:  p.polls.Load(),
		Errors: p.errors.Load(),
	}
}

// run is the main polling loop.
func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	if p.cfg.Immediate {
		p.pollAll(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollAll(ctx)
		}
	}
}

// pollAll runs every task concurrently.
func (p *Poller) pollAll(ctx context.Context) {
	start := time.Now()

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var failed atomic.Int64

	for i, task := range p.tasks {
		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()

			// Acquire semaphore slot.
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			if err := p.poll(ctx, task); err != nil {
				if ctx.Err() == nil {
					p.logger.Warn("poll failed",
						"task", i,
						"err", err,
					)
				}
				failed.Add(1)
			}
		}(i, task)
	}

	wg.Wait()
	p.cycles.Add(1)
	p.errors.Add(failed.Load())

	p.logger.Debug("poll cycle complete",
		"tasks", len(p.tasks),
		"errors", failed.Load(),
		"duration", time.Since(start),
	)
}

// poll runs one task under the per-poll timeout.
func (p *Poller) poll(ctx context.Context, task Task) error {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	p.polls.Add(1)
	return task.Poll(ctx)
}
