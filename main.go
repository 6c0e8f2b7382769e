package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raine/seller-insights/internal/config"
	"github.com/raine/seller-insights/internal/imagefetch"
	"github.com/raine/seller-insights/internal/insights"
	"github.com/raine/seller-insights/internal/llm"
	"github.com/raine/seller-insights/internal/prompts"
	"github.com/raine/seller-insights/internal/retention"
	"github.com/raine/seller-insights/internal/server"
	"github.com/raine/seller-insights/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	logFileName     = "seller-insights.log"
	shutdownTimeout = 30 * time.Second
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	config.LoadEnvFile()

	// JOURNAL_STREAM is set by systemd when running as a service.
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			fatal("failed to open log file: %v", err)
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))

		log.Info().Str("logFile", logFileName).Msg("logging to file")
	}

	cfg, err := config.Load()
	if err != nil {
		fatal("invalid configuration: %v", err)
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gemini, err := llm.NewGeminiClient(ctx, llm.GeminiConfig{APIKey: cfg.GeminiAPIKey, BaseURL: cfg.GeminiBaseURL})
	if err != nil {
		fatal("failed to initialize gemini client: %v", err)
	}

	builder, err := prompts.NewBuilder(cfg.Profiles)
	if err != nil {
		fatal("invalid feature profiles: %v", err)
	}

	svc := insights.NewService(gemini, builder).WithRetryPolicy(cfg.Retry)

	opts := server.Options{
		Analyzer:       svc,
		Fetcher:        imagefetch.NewFetcher(),
		AllowedOrigins: cfg.AllowedOrigins,
		BaseContext:    ctx,
	}

	var store *storage.SQLiteStore
	if cfg.LedgerEnabled() {
		store, err = storage.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			fatal("failed to open usage ledger: %v", err)
		}
		defer store.Close()
		log.Info().Str("dbPath", cfg.DBPath).Msg("usage ledger initialized")

		svc.WithUsageRecorder(store)
		opts.Usage = store
	} else {
		log.Info().Msg("usage ledger disabled")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if store != nil && cfg.LedgerRetention > 0 {
		pruner := retention.NewService(store, cfg.LedgerRetention)
		g.Go(func() error {
			pruner.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		log.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

func fatal(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Error().Msg(msg)
	fmt.Fprintln(os.Stderr, "Error:", msg)
	os.Exit(1)
}
