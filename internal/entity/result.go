package entity

import (
	"time"

	"github.com/HikariJones/Inclusive-AI-UMKM/constants"
)

// ExtractionResult summarizes one image-processing invocation. Produced once
// per request and never retried internally; the caller decides retry.
type ExtractionResult struct {
	Success         bool                `json:"success"`
	RowsExtracted   int                 `json:"rows_extracted"`
	ColumnsDetected int                 `json:"columns_detected"`
	Confidence      float64             `json:"confidence"` // percentage 0..100
	Backend         constants.BackendID `json:"backend_used,omitempty"`
	NoiseTokens     int                 `json:"noise_tokens"`
	NoTextDetected  bool                `json:"no_text_detected,omitempty"`
	ProcessingTime  time.Duration       `json:"-"`
	ProcessingSecs  float64             `json:"processing_time_seconds"`
	ArtifactID      string              `json:"artifact_id,omitempty"`
	Error           string              `json:"error,omitempty"`
}
