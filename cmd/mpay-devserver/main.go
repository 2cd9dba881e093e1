// Runs the fake mpay backend on a local port so the console can be tried
// without a real deployment.
//
// Usage: go run ./cmd/mpay-devserver --addr 127.0.0.1:8080 --access-ttl 1m
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

	"github.com/nonfou/mpayctl/internal/testbackend"
)

const shutdownTimeout = 5 * time.Second

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "listen address")
	accessTTL := flag.Duration("access-ttl", 15*time.Minute, "access token lifetime")
	noRotate := flag.Bool("no-rotate", false, "keep the refresh token on refresh")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	opts := []testbackend.Option{testbackend.WithAccessTTL(*accessTTL)}
	if *noRotate {
		opts = append(opts, testbackend.WithoutRotation())
	}

	backend := testbackend.NewServer(opts...)
	backend.AddUser(testbackend.User{ID: 1, Username: "admin", Password: "admin", Email: "admin@example.com", Role: 1, RoleName: "admin", State: 1})
	backend.AddUser(testbackend.User{ID: 2, Username: "merchant", Password: "merchant", Email: "merchant@example.com", Role: 2, RoleName: "merchant", State: 1})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown", slog.String("error", err.Error()))
		}
	}()

	logger.Info("fake backend listening",
		slog.String("addr", *addr),
		slog.Duration("access_ttl", *accessTTL),
		slog.String("accounts", "admin/admin, merchant/merchant"),
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("serve", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
