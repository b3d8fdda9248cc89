package database

import (
	"strings"
	"testing"

	"github.com/rickgao/tradestream/internal/config"
)

func TestPoolConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.DBConfig
		wantPort uint16
		wantTLS  bool
	}{
		{
			name: "basic",
			cfg: config.DBConfig{
				Host:     "localhost",
				Port:     5432,
				Name:     "dashboard",
				User:     "app",
				Password: "pw",
				SSLMode:  "disable",
			},
			wantPort: 5432,
		},
		{
			name: "password with special chars",
			cfg: config.DBConfig{
				Host:     "localhost",
				Port:     5432,
				Name:     "dashboard",
				User:     "app",
				Password: "p@ss:word/te st?",
				SSLMode:  "disable",
			},
			wantPort: 5432,
		},
		{
			name: "default ssl mode",
			cfg: config.DBConfig{
				Host:     "db.dashboard.test",
				Port:     5433,
				Name:     "prod",
				User:     "reader",
				Password: "secret",
			},
			wantPort: 5433,
			wantTLS:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poolCfg, err := PoolConfig(tt.cfg)
			if err != nil {
				t.Fatalf("PoolConfig failed: %v", err)
			}
			cc := poolCfg.ConnConfig
			if cc.Host != tt.cfg.Host {
				t.Errorf("Host = %q, want %q", cc.Host, tt.cfg.Host)
			}
			if cc.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", cc.Port, tt.wantPort)
			}
			if cc.Database != tt.cfg.Name {
				t.Errorf("Database = %q, want %q", cc.Database, tt.cfg.Name)
			}
			if cc.User != tt.cfg.User {
				t.Errorf("User = %q, want %q", cc.User, tt.cfg.User)
			}
			if cc.Password != tt.cfg.Password {
				t.Errorf("Password = %q, want %q", cc.Password, tt.cfg.Password)
			}
			if got := cc.RuntimeParams["application_name"]; got != AppName {
				t.Errorf("application_name = %q, want %q", got, AppName)
			}
			if (cc.TLSConfig != nil) != tt.wantTLS {
				t.Errorf("TLSConfig set = %v, want %v", cc.TLSConfig != nil, tt.wantTLS)
			}
		})
	}
}

func TestPoolConfig_ConnLimits(t *testing.T) {
	cfg := config.DBConfig{
		Host:     "localhost",
		Port:     5432,
		Name:     "dashboard",
		User:     "app",
		SSLMode:  "disable",
		MaxConns: 6,
		MinConns: 2,
	}

	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		t.Fatalf("PoolConfig failed: %v", err)
	}
	if poolCfg.MaxConns != 6 {
		t.Errorf("MaxConns = %d, want 6", poolCfg.MaxConns)
	}
	if poolCfg.MinConns != 2 {
		t.Errorf("MinConns = %d, want 2", poolCfg.MinConns)
	}
}

func TestPoolConfig_InvalidSSLMode(t *testing.T) {
	cfg := config.DBConfig{Host: "localhost", Port: 5432, Name: "db", User: "u", SSLMode: "sometimes"}
	if _, err := PoolConfig(cfg); err == nil {
		t.Error("expected parse error for invalid sslmode")
	}
}

func TestConnString_OmitsEmptyPassword(t *testing.T) {
	got := ConnString(config.DBConfig{Host: "localhost", Port: 5432, Name: "db", User: "u", SSLMode: "disable"})
	if strings.Contains(got, "u:@") {
		t.Errorf("ConnString() = %q, want no empty password", got)
	}
	if !strings.HasPrefix(got, "postgres://u@localhost:5432/db?") {
		t.Errorf("ConnString() = %q", got)
	}
}
