package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/HikariJones/Inclusive-AI-UMKM/internal/export"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/logging"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/pipeline"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/recognize"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/recognize/gemini"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/recognize/vision"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/repository"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/server"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/storage"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/table"
)

func main() {
	fs := ff.NewFlagSet("laporand")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		dbPath         = fs.StringLong("db", "laporan.db", "Registry database file path")
		storagePath    = fs.StringLong("storage", "./artifacts", "Artifact storage directory")
		visionKey      = fs.StringLong("vision-key", "", "Cloud Vision API key (empty disables the primary backend)")
		geminiKey      = fs.StringLong("gemini-key", "", "Gemini API key")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.0-flash", "Gemini model name")
		attemptTimeout = fs.DurationLong("attempt-timeout", 30*time.Second, "Per-backend attempt timeout")
		noiseThreshold = fs.Float64Long("noise-threshold", 0.20, "Token confidence floor")
		authCreds      = fs.StringLong("auth", "", "Basic auth principals, comma-separated user:pass pairs")
		logLevel       = fs.StringLong("log-level", "info", "Log level: debug, info, warn, error")
		logFile        = fs.StringLong("log-file", "", "Log file path (empty = stderr)")
	)

	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("LAPORAN")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = *logLevel
	logCfg.FilePath = *logFile
	logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logCleanup() }()
	logger := slog.Default()

	if *geminiKey == "" {
		logger.Error("gemini-key is required (set LAPORAN_GEMINI_KEY)")
		os.Exit(1)
	}

	creds, err := parseCreds(*authCreds)
	if err != nil {
		logger.Error("invalid --auth value", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := repository.NewBoltRegistry(*dbPath, logger)
	if err != nil {
		logger.Error("opening registry", "error", err)
		os.Exit(1)
	}
	defer func() { _ = registry.Close() }()

	store, err := storage.NewLocalStorage(*storagePath)
	if err != nil {
		logger.Error("opening artifact storage", "error", err)
		os.Exit(1)
	}

	var primary recognize.Recognizer
	if *visionKey != "" {
		primary = vision.NewClient(vision.Config{APIKey: *visionKey, Timeout: *attemptTimeout}, logger)
		logger.Info("primary backend enabled", "backend", primary.Name())
	} else {
		logger.Warn("no vision-key configured; running fallback-only")
	}

	fallback, err := gemini.NewClient(ctx, gemini.Config{APIKey: *geminiKey, Model: *geminiModel}, logger)
	if err != nil {
		logger.Error("creating gemini client", "error", err)
		os.Exit(1)
	}
	defer func() { _ = fallback.Close() }()

	adapter := recognize.NewAdapter(recognize.Config{AttemptTimeout: *attemptTimeout}, primary, fallback, logger)
	processor := pipeline.NewProcessor(
		pipeline.Config{NoiseThreshold: *noiseThreshold, Table: table.Config{NoiseThreshold: *noiseThreshold}},
		adapter,
		export.NewWriter(logger),
		store,
		registry,
		logger,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           server.New(processor, registry, store, creds, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	logger.Info("stopped")
}

func parseCreds(s string) ([]server.Credentials, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("at least one user:pass pair is required")
	}
	var creds []server.Credentials
	for _, pair := range strings.Split(s, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("malformed pair %q", pair)
		}
		creds = append(creds, server.Credentials{Username: parts[0], Password: parts[1]})
	}
	return creds, nil
}
