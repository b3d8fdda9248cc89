package subscription

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rickgao/tradestream/internal/connection"
	"github.com/rickgao/tradestream/internal/credential"
	"github.com/rickgao/tradestream/internal/emitter"
)

// Source hands out shared channels. *connection.Registry implements it.
type Source interface {
	Acquire(path, credential string) connection.Channel
}

type binding struct {
	eventType string
	handler   emitter.Handler
}

// Hook is one consumer's subscription to a channel path.
type Hook struct {
	source Source
	store  credential.Store
	path   string
	logger *slog.Logger

	mu       sync.Mutex
	bindings []binding
	channel  connection.Channel // nil while unmounted
	offs     []func()
}

// New creates an unmounted Hook on path.
func New(source Source, store credential.Store, path string, logger *slog.Logger) *Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hook{
		source: source,
		store:  store,
		path:   path,
		logger: logger.With("path", path),
	}
}

// Path returns the channel path.
func (h *Hook) Path() string {
	return h.path
}

// Handle declares interest in eventType. Handlers declared while mounted are
// registered immediately.
func (h *Hook) Handle(eventType string, fn emitter.Handler) *Hook {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.bindings = append(h.bindings, binding{eventType: eventType, handler: fn})
	if h.channel != nil {
		h.offs = append(h.offs, h.channel.On(eventType, fn))
	}
	return h
}

// Mount acquires the channel and registers every declared handler.
// It returns false, without touching the source, when no access token is
// available. Mounting twice is a no-op.
func (h *Hook) Mount(ctx context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channel != nil {
		return true
	}

	token, ok := credential.AccessToken(ctx, h.store, h.logger)
	if !ok {
		h.logger.Debug("no access token, subscription skipped")
		return false
	}

	ch := h.source.Acquire(h.path, token)
	offs := make([]func(), 0, len(h.bindings))
	for _, b := range h.bindings {
		offs = append(offs, ch.On(b.eventType, b.handler))
	}
	h.channel = ch
	h.offs = offs
	return true
}

// Unmount removes every registration and releases the channel. Safe to call
// when not mounted.
func (h *Hook) Unmount() {
	h.mu.Lock()
	ch := h.channel
	offs := h.offs
	h.channel = nil
	h.offs = nil
	h.mu.Unlock()

	if ch == nil {
		return
	}
	for _, off := range offs {
		off()
	}
	ch.Release()
}

// Mounted reports whether the hook currently holds a channel.
func (h *Hook) Mounted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.channel != nil
}

// Active returns the number of live handler registrations.
func (h *Hook) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.offs)
}

// State reports the underlying channel's state, or StateIdle when unmounted.
func (h *Hook) State() connection.State {
	h.mu.Lock()
	ch := h.channel
	h.mu.Unlock()

	if ch == nil {
		return connection.StateIdle
	}
	return ch.State()
}

// Send writes a control frame on the mounted channel.
func (h *Hook) Send(v any) error {
	h.mu.Lock()
	ch := h.channel
	h.mu.Unlock()

	if ch == nil {
		return connection.ErrNotConnected
	}
	return ch.Send(v)
}
