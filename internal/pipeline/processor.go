// Package pipeline coordinates one extraction: recognize, reconstruct,
// normalize, export, register.
package pipeline

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/HikariJones/Inclusive-AI-UMKM/constants"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/entity"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/export"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/imageprep"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/recognize"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/repository"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/storage"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/table"
)

// Extractor is the backend adapter seam, satisfied by *recognize.Adapter.
type Extractor interface {
	Extract(ctx context.Context, png []byte) (recognize.Result, error)
}

// Config holds pipeline-level knobs; table tolerances ride along.
type Config struct {
	NoiseThreshold float64 // default entity.DefaultNoiseThreshold
	Table          table.Config
}

// Request is one extraction invocation. Each request is processed
// independently and statelessly.
type Request struct {
	Image       []byte
	ContentType string
	Owner       string
	HeaderRow   bool // treat the first reconstructed row as a header
}

// Processor runs the extraction pipeline. The registry is the only shared
// mutable state; everything else is per-request.
type Processor struct {
	cfg      Config
	backends Extractor
	writer   *export.Writer
	store    storage.Storage
	registry repository.ArtifactRegistry
	logger   *slog.Logger
}

func NewProcessor(cfg Config, backends Extractor, writer *export.Writer, store storage.Storage, registry repository.ArtifactRegistry, logger *slog.Logger) *Processor {
	if cfg.NoiseThreshold <= 0 {
		cfg.NoiseThreshold = entity.DefaultNoiseThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		cfg:      cfg,
		backends: backends,
		writer:   writer,
		store:    store,
		registry: registry,
		logger:   logger,
	}
}

// Process digitizes one document image into a registered XLSX artifact.
// It always returns a structured result; failures are named in the result,
// never raised past this boundary.
func (p *Processor) Process(ctx context.Context, req Request) entity.ExtractionResult {
	start := time.Now()

	png, converted, err := imageprep.Prepare(req.Image, req.ContentType)
	if err != nil {
		p.logger.Warn("pipeline.prepare.failed", "owner", req.Owner, "error", err)
		return p.fail(start, "", "invalid image: "+err.Error())
	}
	if converted {
		p.logger.Debug("pipeline.prepare.converted", "owner", req.Owner, "png_bytes", len(png))
	}

	res, err := p.backends.Extract(ctx, png)
	if err != nil {
		p.logger.Error("pipeline.extract.failed", "owner", req.Owner, "error", err)
		return p.fail(start, "", err.Error())
	}

	retained, noise := entity.FilterNoise(res.Tokens, p.cfg.NoiseThreshold)
	if len(retained) == 0 {
		// A valid terminal state, distinct from backend failure.
		p.logger.Info("pipeline.no_text_detected",
			"owner", req.Owner, "backend", res.Backend, "noise_tokens", noise)
		return entity.ExtractionResult{
			Success:        true,
			NoTextDetected: true,
			Backend:        res.Backend,
			NoiseTokens:    noise,
			ProcessingTime: time.Since(start),
			ProcessingSecs: roundSecs(time.Since(start)),
		}
	}

	grid := table.Reconstruct(retained, p.cfg.Table)
	clean, err := table.Normalize(grid)
	if err != nil {
		// Reconstruction bug; surface loudly, never swallow.
		p.logger.Error("pipeline.normalize.invariant_violated",
			"owner", req.Owner, "backend", res.Backend, "error", err)
		return p.fail(start, res.Backend, err.Error())
	}

	confidence := table.AggregateConfidence(retained)

	xlsx, err := p.writer.WriteXLSX(clean, req.HeaderRow)
	if err != nil {
		p.logger.Error("pipeline.export.failed", "owner", req.Owner, "error", err)
		return p.fail(start, res.Backend, "export failed: "+err.Error())
	}

	// Store first, register after: a reader must never observe an id whose
	// bytes do not exist yet. A cancellation between the two leaves only an
	// unregistered file behind, never a dangling registry entry.
	if err := ctx.Err(); err != nil {
		return p.fail(start, res.Backend, err.Error())
	}
	location, err := p.store.Save(uuid.New().String()+".xlsx", xlsx)
	if err != nil {
		p.logger.Error("pipeline.store.failed", "owner", req.Owner, "error", err)
		return p.fail(start, res.Backend, "store failed: "+err.Error())
	}
	art, err := p.registry.Register(ctx, req.Owner, location, time.Now())
	if err != nil {
		p.logger.Error("pipeline.register.failed", "owner", req.Owner, "location", location, "error", err)
		return p.fail(start, res.Backend, "register failed: "+err.Error())
	}

	result := entity.ExtractionResult{
		Success:         true,
		RowsExtracted:   clean.RowCount(),
		ColumnsDetected: clean.ColumnCount(),
		Confidence:      confidence,
		Backend:         res.Backend,
		NoiseTokens:     noise,
		ProcessingTime:  time.Since(start),
		ProcessingSecs:  roundSecs(time.Since(start)),
		ArtifactID:      art.ID.String(),
	}
	p.logger.Info("pipeline.process.ok",
		"owner", req.Owner,
		"artifact_id", result.ArtifactID,
		"backend", result.Backend,
		"rows", result.RowsExtracted,
		"columns", result.ColumnsDetected,
		"confidence", result.Confidence,
		"noise_tokens", noise,
		"elapsed_ms", result.ProcessingTime.Milliseconds(),
	)
	return result
}

func (p *Processor) fail(start time.Time, backend constants.BackendID, reason string) entity.ExtractionResult {
	return entity.ExtractionResult{
		Success:        false,
		Backend:        backend,
		ProcessingTime: time.Since(start),
		ProcessingSecs: roundSecs(time.Since(start)),
		Error:          reason,
	}
}

func roundSecs(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
