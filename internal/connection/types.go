package connection

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// State is the lifecycle state of a Connection.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // Full transport target including the token query
	HandshakeTimeout time.Duration // Dial handshake timeout
	PingInterval     time.Duration // Interval between keepalive pings
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      90 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// Config configures a Connection.
type Config struct {
	BaseURL              string        // WebSocket base URL (e.g., wss://dashboard.example.com/ws)
	Path                 string        // Channel path (e.g., "trading", "market/005930")
	ReconnectBaseDelay   time.Duration // Delay before the first retry
	ReconnectMaxDelay    time.Duration // Cap on the retry delay
	MaxReconnectAttempts int           // Consecutive retries before going silent
	DialTimeout          time.Duration // Upper bound for one dial attempt
	Client               ClientConfig  // Transport settings; URL is filled per dial
}

// DefaultConfig returns the reconnect policy used by the dashboard:
// 1s base, doubling per attempt, 30s cap, 10 attempts.
func DefaultConfig() Config {
	return Config{
		ReconnectBaseDelay:   1 * time.Second,
		ReconnectMaxDelay:    30 * time.Second,
		MaxReconnectAttempts: 10,
		DialTimeout:          15 * time.Second,
		Client:               DefaultClientConfig(),
	}
}

// BuildTarget returns {base}/{path}?token={credential}.
func BuildTarget(base, path, credential string) string {
	target := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	if credential == "" {
		return target
	}
	return target + "?token=" + url.QueryEscape(credential)
}

// RegistryStats provides statistics about shared connections.
type RegistryStats struct {
	Channels    int // Distinct channel paths with a live Connection
	Open        int // Connections currently in StateOpen
	Subscribers int // Outstanding Channel handles
	Handlers    int // Registered handlers across all Connections
}
