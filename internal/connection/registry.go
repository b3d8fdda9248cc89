package connection

import (
	"log/slog"
	"sync"

	"github.com/rickgao/tradestream/internal/emitter"
)

// Channel is one subscriber's handle on a shared Connection.
type Channel interface {
	// On registers a handler; the returned function removes it.
	On(eventType string, h emitter.Handler) func()

	// Send writes a JSON control frame to the shared transport.
	Send(v any) error

	// State reports the shared Connection's state.
	State() State

	// Release removes every handler registered through this Channel and drops
	// the reference. Safe to call more than once.
	Release()
}

// Registry lazily creates one Connection per channel path and disconnects it
// when the last Channel on that path is released.
type Registry struct {
	cfg    Config // Template; Path is set per entry
	logger *slog.Logger

	newConnection func(Config, *slog.Logger) *Connection

	mu      sync.Mutex
	entries map[string]*entry // channel path → shared connection
}

type entry struct {
	conn *Connection
	refs int
}

// NewRegistry creates an empty Registry. cfg.Path is ignored.
func NewRegistry(cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		cfg:           cfg,
		logger:        logger,
		newConnection: New,
		entries:       make(map[string]*entry),
	}
}

// Acquire returns a Channel on path, creating and connecting the shared
// Connection on first use.
func (r *Registry) Acquire(path, credential string) Channel {
	r.mu.Lock()
	e, ok := r.entries[path]
	if !ok {
		cfg := r.cfg
		cfg.Path = path
		e = &entry{conn: r.newConnection(cfg, r.logger)}
		r.entries[path] = e
		r.logger.Debug("shared connection created", "path", path)
	}
	e.refs++
	conn := e.conn
	r.mu.Unlock()

	conn.Connect(credential)

	return &lease{registry: r, conn: conn}
}

// Lookup returns the live Connection for path, if any.
func (r *Registry) Lookup(path string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[path]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

// Stats returns current statistics.
func (r *Registry) Stats() RegistryStats {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.entries))
	subscribers := 0
	for _, e := range r.entries {
		conns = append(conns, e.conn)
		subscribers += e.refs
	}
	r.mu.Unlock()

	stats := RegistryStats{
		Channels:    len(conns),
		Subscribers: subscribers,
	}
	for _, c := range conns {
		if c.State() == StateOpen {
			stats.Open++
		}
		stats.Handlers += c.Handlers()
	}
	return stats
}

// Close disconnects every shared Connection. Outstanding Channels become inert.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.conn.Disconnect()
	}

	r.logger.Info("connection registry closed", "channels", len(entries))
}

// release drops one reference on conn.
func (r *Registry) release(conn *Connection) {
	r.mu.Lock()
	e, ok := r.entries[conn.Path()]
	if !ok || e.conn != conn {
		r.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.entries, conn.Path())
	r.mu.Unlock()

	conn.Disconnect()
	r.logger.Debug("shared connection released", "path", conn.Path())
}

// lease implements Channel.
type lease struct {
	registry *Registry
	conn     *Connection

	mu       sync.Mutex
	offs     []func()
	released bool
}

func (l *lease) On(eventType string, h emitter.Handler) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.released {
		return func() {}
	}
	off := l.conn.On(eventType, h)
	l.offs = append(l.offs, off)
	return off
}

func (l *lease) Send(v any) error {
	return l.conn.Send(v)
}

func (l *lease) State() State {
	return l.conn.State()
}

func (l *lease) Release() {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return
	}
	l.released = true
	offs := l.offs
	l.offs = nil
	l.mu.Unlock()

	for _, off := range offs {
		off()
	}
	l.registry.release(l.conn)
}
