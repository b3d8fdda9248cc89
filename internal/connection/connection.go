package connection

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rickgao/tradestream/internal/emitter"
)

// stopper cancels a scheduled callback. *time.Timer satisfies it.
type stopper interface {
	Stop() bool
}

// Connection owns one transport to one channel path, reconnecting with
// capped exponential backoff and fanning inbound frames out by type.
type Connection struct {
	cfg    Config
	logger *slog.Logger
	events *emitter.Emitter

	// Swappable in tests
	newClient func(ClientConfig, *slog.Logger) Client
	afterFunc func(time.Duration, func()) stopper

	mu         sync.Mutex
	state      State
	credential string
	client     Client
	attempts   int
	backoff    backoff.BackOff
	retry      stopper
	cancelDial context.CancelFunc
	gen        uint64 // bumped on every dial and on Disconnect; stale callbacks compare it
}

// New creates an idle Connection for cfg.Path.
func New(cfg Config, logger *slog.Logger) *Connection {
	if logger == nil {
		logger = slog.Default()
	}

	return &Connection{
		cfg:       cfg,
		logger:    logger.With("path", cfg.Path),
		events:    emitter.New(),
		newClient: NewClient,
		afterFunc: func(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) },
		backoff:   newExponentialBackOff(cfg.ReconnectBaseDelay, cfg.ReconnectMaxDelay),
	}
}

// newExponentialBackOff yields min(base*2^k, maxDelay) for k = 0, 1, 2, ...
func newExponentialBackOff(base, maxDelay time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.MaxInterval = maxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

// Path returns the channel path this Connection is bound to.
func (c *Connection) Path() string {
	return c.cfg.Path
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the number of consecutive reconnect attempts scheduled
// since the last successful open.
func (c *Connection) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Handlers returns the number of registered handlers.
func (c *Connection) Handlers() int {
	return c.events.Len()
}

// Connect opens the transport using credential as the token query parameter.
// It returns immediately; failures feed the reconnect policy and are never
// reported to the caller. No-op while open or connecting: the transport keeps
// the credential it was dialed with. Connecting a closed Connection starts a
// fresh attempt budget, so a new subscriber revives an exhausted stream.
func (c *Connection) Connect(credential string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateOpen || c.state == StateConnecting {
		if credential != c.credential {
			c.logger.Debug("stream already active, keeping current credential",
				"state", c.state,
			)
		}
		return
	}

	if c.state == StateClosed {
		c.attempts = 0
		c.backoff.Reset()
	}

	c.credential = credential
	c.stopRetryLocked()
	c.dialLocked()
}

// Reconnect restarts a Connection that has gone silent, with a fresh
// attempt budget. No-op while open or connecting, or before the first Connect.
func (c *Connection) Reconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateClosed {
		return
	}

	c.attempts = 0
	c.backoff.Reset()
	c.stopRetryLocked()
	c.dialLocked()
}

// Disconnect permanently stops the Connection: it exhausts the retry budget,
// cancels any pending reconnect or in-flight dial, and closes the transport.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	c.attempts = c.cfg.MaxReconnectAttempts
	c.gen++
	c.stopRetryLocked()
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	cl := c.client
	c.client = nil
	if c.state != StateIdle {
		c.state = StateClosed
	}
	c.mu.Unlock()

	if cl != nil {
		cl.Close()
	}

	c.logger.Debug("stream disconnected")
}

// On registers h for eventType (or emitter.Wildcard) and returns a function
// that removes exactly this registration.
func (c *Connection) On(eventType string, h emitter.Handler) func() {
	return c.events.On(eventType, h)
}

// Send marshals v as JSON and writes it to the open transport.
func (c *Connection) Send(v any) error {
	c.mu.Lock()
	cl := c.client
	open := c.state == StateOpen
	c.mu.Unlock()

	if cl == nil || !open {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return cl.Send(data)
}

// dialLocked starts a dial goroutine. Must be called with mu held.
func (c *Connection) dialLocked() {
	c.gen++
	gen := c.gen
	c.state = StateConnecting

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	c.cancelDial = cancel

	cfg := c.cfg.Client
	cfg.URL = BuildTarget(c.cfg.BaseURL, c.cfg.Path, c.credential)

	go c.run(ctx, cancel, gen, cfg)
}

// run dials one transport and pumps it until it closes.
func (c *Connection) run(ctx context.Context, cancel context.CancelFunc, gen uint64, cfg ClientConfig) {
	defer cancel()

	cl := c.newClient(cfg, c.logger)
	err := cl.Connect(ctx)

	c.mu.Lock()
	if gen != c.gen {
		// Disconnected while dialing
		c.mu.Unlock()
		cl.Close()
		return
	}
	c.cancelDial = nil

	if err != nil {
		c.state = StateClosed
		c.logger.Warn("stream connect failed",
			"attempt", c.attempts,
			"error", err,
		)
		c.scheduleRetryLocked()
		c.mu.Unlock()
		return
	}

	c.client = cl
	c.state = StateOpen
	c.attempts = 0
	c.backoff.Reset()
	c.mu.Unlock()

	c.logger.Info("stream connected")

	err = Drain(cl, c.handleMessage)
	cl.Close()

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}

	c.client = nil
	c.state = StateClosed
	c.logger.Warn("stream closed", "error", err)
	c.scheduleRetryLocked()
}

// handleMessage decodes and dispatches one inbound message.
func (c *Connection) handleMessage(msg TimestampedMessage) {
	frame, err := emitter.Decode(msg.Data, msg.ReceivedAt)
	if err != nil {
		c.logger.Debug("dropping undecodable frame", "error", err, "bytes", len(msg.Data))
		return
	}
	c.events.Dispatch(frame)
}

// scheduleRetryLocked schedules the next reconnect, or stays silent once the
// attempt budget is spent. Must be called with mu held.
func (c *Connection) scheduleRetryLocked() {
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.logger.Warn("reconnect attempts exhausted, stream stays closed",
			"attempts", c.attempts,
		)
		return
	}

	delay := c.backoff.NextBackOff()
	if delay == backoff.Stop {
		return
	}
	c.attempts++

	gen := c.gen
	c.logger.Info("scheduling reconnect",
		"attempt", c.attempts,
		"delay", delay,
	)
	c.retry = c.afterFunc(delay, func() { c.fireRetry(gen) })
}

// fireRetry runs a scheduled reconnect unless the Connection moved on.
func (c *Connection) fireRetry(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.state != StateClosed {
		return
	}
	c.retry = nil
	c.dialLocked()
}

// stopRetryLocked cancels a pending reconnect. Must be called with mu held.
func (c *Connection) stopRetryLocked() {
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
}
