package pricestream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/rickgao/tradestream/internal/connection"
	"github.com/rickgao/tradestream/internal/credential"
	"github.com/rickgao/tradestream/internal/emitter"
	"github.com/rickgao/tradestream/internal/model"
)

// DefaultErrorMessage is reported for price_error frames without a message.
const DefaultErrorMessage = "price stream error"

// Status describes the adapter's transport.
type Status int

const (
	StatusIdle         Status = iota // No instrument subscribed
	StatusConnecting                 // First dial in flight
	StatusLive                       // Transport open
	StatusReconnecting               // Waiting for or dialing a retry
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusLive:
		return "live"
	case StatusReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Config holds adapter settings.
type Config struct {
	BaseURL        string                  // e.g. ws://localhost:8000/ws
	ReconnectDelay time.Duration           // Fixed delay between attempts
	DialTimeout    time.Duration           // Per-attempt dial timeout
	Client         connection.ClientConfig // Transport settings; URL is ignored
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay: 5 * time.Second,
		DialTimeout:    15 * time.Second,
		Client:         connection.DefaultClientConfig(),
	}
}

type stopper interface {
	Stop() bool
}

// Adapter streams prices for one instrument at a time.
type Adapter struct {
	cfg    Config
	store  credential.Store
	logger *slog.Logger
	events *emitter.Emitter

	// Swappable in tests
	newClient func(connection.ClientConfig, *slog.Logger) connection.Client
	afterFunc func(time.Duration, func()) stopper

	mu         sync.Mutex
	instrument string // desired instrument, empty when unsubscribed
	wired      string // instrument the open transport is currently streaming
	credential string
	client     connection.Client
	status     Status
	latest     *model.PriceTick
	errMsg     string
	backoff    backoff.BackOff
	retry      stopper
	cancelDial context.CancelFunc
	gen        uint64
}

// New creates an idle Adapter.
func New(cfg Config, store credential.Store, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}

	return &Adapter{
		cfg:       cfg,
		store:     store,
		logger:    logger.With("component", "pricestream"),
		events:    emitter.New(),
		newClient: connection.NewClient,
		afterFunc: func(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) },
		backoff:   backoff.NewConstantBackOff(cfg.ReconnectDelay),
	}
}

// Subscribe starts streaming code. The previous tick is cleared immediately.
// With a transport already open the switch is sent as a control frame; while
// a dial is in flight the switch is sent once it opens. With no transport a
// fresh connection is made, which requires a stored access token: Subscribe
// returns false when none is available.
func (a *Adapter) Subscribe(ctx context.Context, code string) bool {
	a.mu.Lock()
	a.latest = nil
	a.errMsg = ""
	a.instrument = code

	if a.client != nil {
		cl := a.client
		a.wired = code
		a.mu.Unlock()
		a.sendSwitch(cl, code)
		return true
	}
	if a.status == StatusConnecting || a.status == StatusReconnecting {
		a.mu.Unlock()
		return true
	}
	a.mu.Unlock()

	token, ok := credential.AccessToken(ctx, a.store, a.logger)
	if !ok {
		a.mu.Lock()
		if a.instrument == code {
			a.instrument = ""
		}
		a.mu.Unlock()
		a.logger.Debug("no access token, price stream skipped", "instrument", code)
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.instrument != code || a.status != StatusIdle {
		// Raced with another Subscribe or Unsubscribe
		return a.instrument != ""
	}
	a.credential = token
	a.backoff.Reset()
	a.dialLocked(StatusConnecting)
	return true
}

// Unsubscribe tears the transport down. No further reconnects happen.
func (a *Adapter) Unsubscribe() {
	a.mu.Lock()
	a.gen++
	a.instrument = ""
	a.wired = ""
	a.latest = nil
	a.status = StatusIdle
	if a.retry != nil {
		a.retry.Stop()
		a.retry = nil
	}
	if a.cancelDial != nil {
		a.cancelDial()
		a.cancelDial = nil
	}
	cl := a.client
	a.client = nil
	a.mu.Unlock()

	if cl != nil {
		cl.Close()
		a.logger.Info("price stream closed")
	}
}

// Close unsubscribes and drops every listener.
func (a *Adapter) Close() {
	a.Unsubscribe()
	a.events.Clear()
}

// Instrument returns the subscribed instrument, or "" when idle.
func (a *Adapter) Instrument() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.instrument
}

// Latest returns the most recent tick for the subscribed instrument.
func (a *Adapter) Latest() (model.PriceTick, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.latest == nil {
		return model.PriceTick{}, false
	}
	return *a.latest, true
}

// Connected reports whether the transport is open.
func (a *Adapter) Connected() bool {
	return a.Status() == StatusLive
}

// Status returns the transport status.
func (a *Adapter) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Err returns the last price_error message, or "" if none since the last switch.
func (a *Adapter) Err() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errMsg
}

// OnTick registers fn for every accepted price tick.
func (a *Adapter) OnTick(fn func(model.PriceTick)) func() {
	return a.events.On(model.TypePriceUpdate, func(f emitter.Frame) {
		var tick model.PriceTick
		if err := f.Decode(&tick); err == nil {
			fn(tick)
		}
	})
}

// OnError registers fn for every price_error.
func (a *Adapter) OnError(fn func(model.PriceError)) func() {
	return a.events.On(model.TypePriceError, func(f emitter.Frame) {
		var pe model.PriceError
		if err := f.Decode(&pe); err == nil {
			fn(pe)
		}
	})
}

// dialLocked starts a dial for the current instrument. Must be called with mu held.
func (a *Adapter) dialLocked(status Status) {
	a.gen++
	gen := a.gen
	a.status = status
	a.wired = a.instrument

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.DialTimeout)
	a.cancelDial = cancel

	cfg := a.cfg.Client
	cfg.URL = connection.BuildTarget(a.cfg.BaseURL, model.MarketChannel(a.instrument), a.credential)

	go a.run(ctx, cancel, gen, cfg)
}

// run dials one transport and pumps it until it closes.
func (a *Adapter) run(ctx context.Context, cancel context.CancelFunc, gen uint64, cfg connection.ClientConfig) {
	defer cancel()

	cl := a.newClient(cfg, a.logger)
	err := cl.Connect(ctx)

	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		cl.Close()
		return
	}
	a.cancelDial = nil

	if err != nil {
		a.logger.Warn("price stream connect failed", "instrument", a.instrument, "error", err)
		a.scheduleRetryLocked()
		a.mu.Unlock()
		return
	}

	a.client = cl
	a.status = StatusLive
	a.backoff.Reset()
	// Switch requested while dialing
	pending := ""
	if a.wired != a.instrument {
		pending = a.instrument
		a.wired = a.instrument
	}
	instrument := a.instrument
	a.mu.Unlock()

	a.logger.Info("price stream connected", "instrument", instrument)
	if pending != "" {
		a.sendSwitch(cl, pending)
	}

	err = connection.Drain(cl, func(msg connection.TimestampedMessage) {
		a.handleMessage(gen, msg)
	})
	cl.Close()

	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen {
		return
	}
	a.client = nil
	a.logger.Warn("price stream closed", "error", err)
	a.scheduleRetryLocked()
}

// scheduleRetryLocked retries at the fixed delay while subscribed. Must be
// called with mu held.
func (a *Adapter) scheduleRetryLocked() {
	if a.instrument == "" {
		a.status = StatusIdle
		return
	}
	a.status = StatusReconnecting

	delay := a.backoff.NextBackOff()
	if delay == backoff.Stop {
		a.status = StatusIdle
		return
	}

	gen := a.gen
	a.retry = a.afterFunc(delay, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if gen != a.gen || a.instrument == "" {
			return
		}
		a.retry = nil
		a.dialLocked(StatusReconnecting)
	})
}

// handleMessage applies one inbound frame from the transport of generation gen.
func (a *Adapter) handleMessage(gen uint64, msg connection.TimestampedMessage) {
	frame, err := emitter.Decode(msg.Data, msg.ReceivedAt)
	if err != nil {
		a.logger.Debug("dropping undecodable frame", "error", err)
		return
	}

	a.mu.Lock()
	current := gen == a.gen
	a.mu.Unlock()
	if !current {
		return
	}

	switch frame.Type {
	case model.TypePriceUpdate:
		var tick model.PriceTick
		if err := frame.Decode(&tick); err != nil {
			a.logger.Debug("dropping malformed price_update", "error", err)
			return
		}
		a.mu.Lock()
		// Ticks still in flight for the previous instrument are stale
		if tick.StockCode != "" && tick.StockCode != a.instrument {
			a.mu.Unlock()
			return
		}
		a.latest = &tick
		a.mu.Unlock()

	case model.TypePriceError:
		var pe model.PriceError
		if err := frame.Decode(&pe); err != nil {
			pe = model.PriceError{}
		}
		if pe.Message == "" {
			pe.Message = DefaultErrorMessage
		}
		a.mu.Lock()
		a.errMsg = pe.Message
		a.mu.Unlock()
		a.logger.Info("price stream error", "instrument", pe.StockCode, "message", pe.Message)
		if data, err := json.Marshal(pe); err == nil {
			frame.Data = data
		}
	}

	a.events.Dispatch(frame)
}

// sendSwitch writes a subscribe control frame. Failures are left to the read
// loop to surface as a transport close.
func (a *Adapter) sendSwitch(cl connection.Client, code string) {
	data, err := json.Marshal(model.NewSubscribeRequest(code))
	if err != nil {
		return
	}
	if err := cl.Send(data); err != nil && !errors.Is(err, connection.ErrNotConnected) {
		a.logger.Warn("instrument switch failed", "instrument", code, "error", err)
		return
	}
	a.logger.Info("instrument switched", "instrument", code)
}
