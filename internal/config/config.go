package config

import "time"

// Config is the root configuration for a streaming client process.
type Config struct {
	API           APIConfig           `yaml:"api"`
	Stream        StreamConfig        `yaml:"stream"`
	PriceStream   PriceStreamConfig   `yaml:"price_stream"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Credentials   CredentialsConfig   `yaml:"credentials"`
	Database      DBConfig            `yaml:"database"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// APIConfig holds dashboard REST settings.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// StreamConfig holds settings for the shared push-channel connections.
type StreamConfig struct {
	WSBaseURL            string        `yaml:"ws_base_url"` // e.g. wss://host/ws
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	DialTimeout          time.Duration `yaml:"dial_timeout"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	BufferSize           int           `yaml:"buffer_size"`
}

// PriceStreamConfig holds price stream adapter settings.
type PriceStreamConfig struct {
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	Instrument     string        `yaml:"instrument"` // initial instrument, optional
}

// NotificationsConfig holds toast queue settings.
type NotificationsConfig struct {
	MaxToasts    int           `yaml:"max_toasts"`
	ToastTTL     time.Duration `yaml:"toast_ttl"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Credential sources.
const (
	SourceStatic   = "static"
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// CredentialsConfig selects where the access token is read from.
type CredentialsConfig struct {
	Source string `yaml:"source"` // static, file or postgres
	Token  string `yaml:"token"`  // static source only
	File   string `yaml:"file"`   // file source only
	Table  string `yaml:"table"`  // postgres source only
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// LoggingConfig holds slog handler settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
