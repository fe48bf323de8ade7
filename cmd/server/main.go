package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/tendant/simple-store/pkg/simplestore/config"
)

func main() {
	flags := flag.NewFlagSet("simple-store", flag.ExitOnError)
	flags.Usage = cleanenv.FUsage(flags.Output(), &config.EnvConfig{}, nil, flags.Usage)
	_ = flags.Parse(os.Args[1:])

	if err := run(); err != nil {
		slog.Error("simple-store stopped", "err", err)
		os.Exit(1)
	}
}

// run serves until SIGINT/SIGTERM or a listener failure. Deferred cleanup
// (the database pool) runs on both paths.
func run() error {
	serverConfig, err := config.Load(config.WithEnv())
	if err != nil {
		return fmt.Errorf("failed to load server configuration: %w", err)
	}

	logger := serverConfig.NewLogger()
	slog.SetDefault(logger)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	runtime, err := serverConfig.BuildService(ctx, registry)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to build service: %w", err)
	}
	defer runtime.Close()

	server := NewHTTPServer(runtime, serverConfig, registry, logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", serverConfig.Port),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("simple-store starting",
		"port", serverConfig.Port,
		"env", serverConfig.Environment,
		"prefix", serverConfig.APIPrefix,
		"database", serverConfig.DatabaseType,
		"storage", serverConfig.Storage.Type,
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	if err := serve(httpServer, quit); err != nil {
		return err
	}

	slog.Info("Server exiting")
	return nil
}

// serve runs srv until a signal arrives on quit, then shuts it down.
// A listener failure is returned instead.
func serve(srv *http.Server, quit <-chan os.Signal) error {
	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}
	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "err", err)
	}
	return nil
}
