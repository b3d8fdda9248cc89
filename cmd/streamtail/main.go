// streamtail connects to the dashboard push channels and prints live events to console.
// Usage: go run ./cmd/streamtail --config configs/streamtail.example.yaml --instrument 005930
//
// The access token is read from the configured credential source. For a quick
// session against a local backend pass it directly:
//
//	STREAM_ACCESS_TOKEN=... go run ./cmd/streamtail --token "$STREAM_ACCESS_TOKEN"
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/rickgao/tradestream/internal/api"
	"github.com/rickgao/tradestream/internal/config"
	"github.com/rickgao/tradestream/internal/connection"
	"github.com/rickgao/tradestream/internal/credential"
	"github.com/rickgao/tradestream/internal/database"
	"github.com/rickgao/tradestream/internal/emitter"
	"github.com/rickgao/tradestream/internal/model"
	"github.com/rickgao/tradestream/internal/notify"
	"github.com/rickgao/tradestream/internal/pricestream"
	"github.com/rickgao/tradestream/internal/subscription"
	"github.com/rickgao/tradestream/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	envFile := flag.String("env", ".env", "dotenv file to load before reading config")
	token := flag.String("token", "", "access token; overrides the configured credential source")
	instrument := flag.String("instrument", "", "instrument code to stream prices for")
	verbose := flag.Bool("verbose", false, "print every frame on the trading channel")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Missing .env is fine
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envFile, err)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting streamtail",
		"version", version.Version,
		"commit", version.Commit,
		"api_url", cfg.API.BaseURL,
		"ws_url", cfg.Stream.WSBaseURL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	store, pool, err := openStore(ctx, cfg, *token, logger)
	if err != nil {
		logger.Error("failed to open credential store", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}
	if _, ok := credential.AccessToken(ctx, store, logger); !ok {
		logger.Warn("no access token available, live streams stay disconnected")
	}

	apiClient := api.NewClient(
		cfg.API.BaseURL,
		store,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	registry := connection.NewRegistry(connectionConfig(cfg.Stream), logger)
	defer registry.Close()

	// Trading channel consumers share one connection
	orders := subscription.OrderUpdates(registry, store, func(u model.OrderUpdate) {
		fmt.Printf("[ORDER] id=%s stock=%s side=%s status=%s qty=%d filled=%d price=%.2f\n",
			u.OrderID, u.StockCode, u.Side, u.Status, u.Quantity, u.FilledQuantity, u.Price)
	}, logger)
	signals := subscription.RecipeSignals(registry, store, func(s model.RecipeSignal) {
		fmt.Printf("[SIGNAL] recipe=%s stock=%s signal=%s price=%.2f reason=%q\n",
			s.RecipeID, s.StockCode, s.Signal, s.Price, s.Reason)
	}, logger)

	hooks := []*subscription.Hook{orders, signals}
	if *verbose {
		hooks = append(hooks, subscription.TradingEvents(registry, store, printFrame, logger))
	}
	for _, h := range hooks {
		h.Mount(ctx)
	}

	queue := notify.New(notify.Config{
		MaxToasts:    cfg.Notifications.MaxToasts,
		TTL:          cfg.Notifications.ToastTTL,
		PollInterval: cfg.Notifications.PollInterval,
		PollTimeout:  cfg.API.Timeout,
	}, registry, store, apiClient, logger)
	queue.OnChange(func() {
		toasts := queue.Toasts()
		if len(toasts) > 0 {
			t := toasts[0]
			fmt.Printf("[TOAST] unread=%d visible=%d latest=%q (%s)\n",
				queue.UnreadCount(), len(toasts), t.Title, t.Category)
		} else {
			fmt.Printf("[TOAST] unread=%d visible=0\n", queue.UnreadCount())
		}
	})
	if err := queue.Start(ctx); err != nil {
		logger.Error("failed to start notification queue", "error", err)
		os.Exit(1)
	}

	prices := pricestream.New(pricestream.Config{
		BaseURL:        cfg.Stream.WSBaseURL,
		ReconnectDelay: cfg.PriceStream.ReconnectDelay,
		DialTimeout:    cfg.Stream.DialTimeout,
		Client:         clientConfig(cfg.Stream),
	}, store, logger)
	prices.OnTick(func(t model.PriceTick) {
		fmt.Printf("[PRICE] stock=%s price=%.2f change=%.2f (%.2f%%) vol=%d\n",
			t.StockCode, t.Price, t.Change, t.ChangeRate, t.Volume)
	})
	prices.OnError(func(e model.PriceError) {
		fmt.Printf("[PRICE ERROR] stock=%s message=%q\n", e.StockCode, e.Message)
	})

	code := *instrument
	if code == "" {
		code = cfg.PriceStream.Instrument
	}
	if code != "" {
		prices.Subscribe(ctx, code)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := registry.Stats()
				logger.Info("stats",
					"channels", stats.Channels,
					"open", stats.Open,
					"subscribers", stats.Subscribers,
					"handlers", stats.Handlers,
					"price_stream", prices.Status(),
					"unread", queue.UnreadCount(),
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	prices.Close()
	queue.Stop(shutdownCtx)
	for _, h := range hooks {
		h.Unmount()
	}

	logger.Info("shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadAndValidate(path)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// openStore builds the configured credential source. The returned pool is
// non-nil only for the postgres source and must be closed by the caller.
func openStore(ctx context.Context, cfg *config.Config, token string, logger *slog.Logger) (credential.Store, *pgxpool.Pool, error) {
	if token != "" {
		return credential.NewMemoryStore(map[string]string{credential.AccessTokenKey: token}), nil, nil
	}

	switch cfg.Credentials.Source {
	case config.SourceFile:
		logger.Info("reading credentials from file", "path", cfg.Credentials.File)
		return credential.NewFileStore(cfg.Credentials.File), nil, nil

	case config.SourcePostgres:
		pool, err := database.Connect(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect credential database: %w", err)
		}
		return credential.NewPostgresStore(pool, cfg.Credentials.Table), pool, nil

	default:
		values := map[string]string{}
		if cfg.Credentials.Token != "" {
			values[credential.AccessTokenKey] = cfg.Credentials.Token
		}
		return credential.NewMemoryStore(values), nil, nil
	}
}

func clientConfig(s config.StreamConfig) connection.ClientConfig {
	c := connection.DefaultClientConfig()
	c.PingInterval = s.PingInterval
	c.PingTimeout = s.PingTimeout
	c.BufferSize = s.BufferSize
	return c
}

func connectionConfig(s config.StreamConfig) connection.Config {
	c := connection.DefaultConfig()
	c.BaseURL = s.WSBaseURL
	c.ReconnectBaseDelay = s.ReconnectBaseDelay
	c.ReconnectMaxDelay = s.ReconnectMaxDelay
	c.MaxReconnectAttempts = s.MaxReconnectAttempts
	c.DialTimeout = s.DialTimeout
	c.Client = clientConfig(s)
	return c
}

func printFrame(f emitter.Frame) {
	var pretty map[string]any
	if err := json.Unmarshal(f.Data, &pretty); err != nil {
		return
	}
	data, _ := json.MarshalIndent(pretty, "", "  ")
	fmt.Printf("[%s] %s\n", f.Type, data)
}
