package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultAPIBaseURL           = "http://localhost:8000/api"
	DefaultWSBaseURL            = "ws://localhost:8000/ws"
	DefaultAPITimeout           = 10 * time.Second
	DefaultMaxRetries           = 3
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultMaxReconnectAttempts = 10
	DefaultDialTimeout          = 15 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultPingTimeout          = 90 * time.Second
	DefaultBufferSize           = 1000
	DefaultPriceReconnectDelay  = 5 * time.Second
	DefaultMaxToasts            = 5
	DefaultToastTTL             = 6 * time.Second
	DefaultUnreadPollInterval   = 60 * time.Second
	DefaultCredentialSource     = SourceStatic
	DefaultCredentialTable      = "local_storage"
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 4
	DefaultMinConns             = 1
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Stream defaults
	if c.Stream.WSBaseURL == "" {
		c.Stream.WSBaseURL = DefaultWSBaseURL
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.MaxReconnectAttempts == 0 {
		c.Stream.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Stream.DialTimeout == 0 {
		c.Stream.DialTimeout = DefaultDialTimeout
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.PingTimeout == 0 {
		c.Stream.PingTimeout = DefaultPingTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultBufferSize
	}

	// Price stream defaults
	if c.PriceStream.ReconnectDelay == 0 {
		c.PriceStream.ReconnectDelay = DefaultPriceReconnectDelay
	}

	// Notification defaults
	if c.Notifications.MaxToasts == 0 {
		c.Notifications.MaxToasts = DefaultMaxToasts
	}
	if c.Notifications.ToastTTL == 0 {
		c.Notifications.ToastTTL = DefaultToastTTL
	}
	if c.Notifications.PollInterval == 0 {
		c.Notifications.PollInterval = DefaultUnreadPollInterval
	}

	// Credential defaults
	if c.Credentials.Source == "" {
		c.Credentials.Source = DefaultCredentialSource
	}
	if c.Credentials.Table == "" {
		c.Credentials.Table = DefaultCredentialTable
	}

	applyDBDefaults(&c.Database)

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
