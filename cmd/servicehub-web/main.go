package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/me/servicehub/internal/app"
	"github.com/me/servicehub/internal/config"
	"github.com/me/servicehub/internal/logging"
	"github.com/me/servicehub/internal/server"
	"github.com/me/servicehub/internal/ui"
)

func main() {
	configFile := flag.String("config", "", "Path to a YAML config file")
	addr := flag.String("addr", "", "Listen address (default 127.0.0.1:3000)")
	apiURL := flag.String("api-url", "", "Marketplace API base URL")
	stateDir := flag.String("state-dir", "", "Local state directory (default ~/.servicehub)")
	ephemeral := flag.Bool("ephemeral", false, "Keep all client state in memory")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "Log format (text, json)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "api-url":
			cfg.APIBaseURL = *apiURL
		case "state-dir":
			cfg.StateDir = *stateDir
		case "ephemeral":
			cfg.Ephemeral = *ephemeral
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		}
	})
	if *debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start client: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	// One console process is one session: settle it before serving.
	a.Session.Initialize(ctx)

	console := ui.New(a.Auth, a.Session, a.Guard, logger)
	srv := server.New(console, a.Session, a.Guard, logger, server.WithAPIURL(cfg.APIBaseURL))

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("console starting", "addr", cfg.Addr, "api", cfg.APIBaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("console failed", "error", err)
		a.Close()
		os.Exit(1)
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("console stopped")
}
