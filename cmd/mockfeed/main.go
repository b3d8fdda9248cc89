// mockfeed serves a fake dashboard backend for local streamtail runs.
// Usage: go run ./cmd/mockfeed --addr :8000 --token devtoken
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rickgao/tradestream/internal/mockfeed"
	"github.com/rickgao/tradestream/internal/version"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", ":8000", "listen address")
	token := flag.String("token", os.Getenv("MOCKFEED_TOKEN"), "required access token (empty accepts any)")
	priceInterval := flag.Duration("price-interval", time.Second, "interval between price ticks")
	orderInterval := flag.Duration("order-interval", 5*time.Second, "interval between order updates")
	noteInterval := flag.Duration("notification-interval", 15*time.Second, "interval between notifications")
	unread := flag.Int("unread", 3, "initial unread notification count")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	cfg := mockfeed.DefaultConfig()
	cfg.Token = *token
	cfg.PriceInterval = *priceInterval
	cfg.OrderInterval = *orderInterval
	cfg.NotificationInterval = *noteInterval
	cfg.InitialUnread = *unread

	server := &http.Server{
		Addr:    *addr,
		Handler: mockfeed.New(cfg, logger).Handler(),
	}

	go func() {
		logger.Info("starting mockfeed", "address", server.Addr, "version", version.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("received shutdown signal", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("mockfeed stopped")
}
