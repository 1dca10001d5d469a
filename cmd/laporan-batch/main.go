// laporan-batch digitizes a set of document images into XLSX artifacts in
// one shot, without running the HTTP service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"golang.org/x/sync/errgroup"

	"github.com/HikariJones/Inclusive-AI-UMKM/constants"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/entity"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/export"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/logging"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/pipeline"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/recognize"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/recognize/gemini"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/recognize/vision"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/repository"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/storage"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/table"
)

func main() {
	fs := ff.NewFlagSet("laporan-batch")
	var (
		dbPath         = fs.StringLong("db", "laporan.db", "Registry database file path")
		storagePath    = fs.StringLong("storage", "./artifacts", "Artifact storage directory")
		owner          = fs.StringLong("owner", "", "Owning principal for the produced artifacts")
		headerRow      = fs.BoolLong("header-row", "Treat the first reconstructed row as a header")
		visionKey      = fs.StringLong("vision-key", "", "Cloud Vision API key (empty disables the primary backend)")
		geminiKey      = fs.StringLong("gemini-key", "", "Gemini API key")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.0-flash", "Gemini model name")
		attemptTimeout = fs.DurationLong("attempt-timeout", 30*time.Second, "Per-backend attempt timeout")
		concurrency    = fs.IntLong("concurrency", 4, "Images processed in parallel")
		logLevel       = fs.StringLong("log-level", "warn", "Log level: debug, info, warn, error")
	)

	if err := ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("LAPORAN")); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	paths := fs.GetArgs()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: laporan-batch [flags] <image>...")
		os.Exit(2)
	}
	if *owner == "" {
		fmt.Fprintln(os.Stderr, "error: --owner is required")
		os.Exit(2)
	}
	if *geminiKey == "" {
		fmt.Fprintln(os.Stderr, "error: --gemini-key is required (or set LAPORAN_GEMINI_KEY)")
		os.Exit(2)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = *logLevel
	cleanup, err := logging.Setup(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = cleanup() }()
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry, err := repository.NewBoltRegistry(*dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: opening registry: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = registry.Close() }()

	store, err := storage.NewLocalStorage(*storagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: opening artifact storage: %v\n", err)
		os.Exit(1)
	}

	var primary recognize.Recognizer
	if *visionKey != "" {
		primary = vision.NewClient(vision.Config{APIKey: *visionKey, Timeout: *attemptTimeout}, logger)
	}
	fallback, err := gemini.NewClient(ctx, gemini.Config{APIKey: *geminiKey, Model: *geminiModel}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: creating gemini client: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = fallback.Close() }()

	adapter := recognize.NewAdapter(recognize.Config{AttemptTimeout: *attemptTimeout}, primary, fallback, logger)
	processor := pipeline.NewProcessor(
		pipeline.Config{Table: table.Config{}},
		adapter,
		export.NewWriter(logger),
		store,
		registry,
		logger,
	)

	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)
	for _, path := range paths {
		g.Go(func() error {
			res := processOne(gctx, processor, path, *owner, *headerRow)
			mu.Lock()
			defer mu.Unlock()
			printResult(path, res)
			if !res.Success {
				failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d images failed\n", failed, len(paths))
		os.Exit(1)
	}
}

func processOne(ctx context.Context, proc *pipeline.Processor, path, owner string, headerRow bool) entity.ExtractionResult {
	ext := filepath.Ext(path)
	if constants.MapExtToFormat(ext) == "" {
		return entity.ExtractionResult{Success: false, Error: fmt.Sprintf("unsupported file type: %s", path)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.ExtractionResult{Success: false, Error: fmt.Sprintf("read %s: %v", path, err)}
	}
	return proc.Process(ctx, pipeline.Request{
		Image:       data,
		ContentType: contentTypeFor(ext),
		Owner:       owner,
		HeaderRow:   headerRow,
	})
}

// contentTypeFor picks the upload MIME type from the extension. PDFs and
// HEIC need explicit types; the system table covers the rest.
func contentTypeFor(ext string) string {
	switch {
	case constants.MapExtToFormat(ext) == constants.PDF:
		return "application/pdf"
	case constants.IsHEICExt(ext):
		return "image/heic"
	default:
		return mime.TypeByExtension(ext)
	}
}

func printResult(path string, res entity.ExtractionResult) {
	switch {
	case res.Success && res.NoTextDetected:
		fmt.Printf("%s: no text detected (%d noise tokens)\n", path, res.NoiseTokens)
	case res.Success:
		fmt.Printf("%s: %d rows x %d columns, confidence %.2f%%, backend %s, artifact %s\n",
			path, res.RowsExtracted, res.ColumnsDetected, res.Confidence, res.Backend, res.ArtifactID)
	default:
		fmt.Printf("%s: FAILED: %s\n", path, res.Error)
	}
}
