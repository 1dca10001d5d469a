package recognize

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/HikariJones/Inclusive-AI-UMKM/constants"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/entity"
)

// attemptState is the adapter's position in the selection state machine:
// INIT -> PRIMARY_ATTEMPT -> {SUCCESS | FALLBACK_ATTEMPT} -> {SUCCESS | FAILED}.
// No state is re-entered.
type attemptState string

const (
	stateInit            attemptState = "INIT"
	statePrimaryAttempt  attemptState = "PRIMARY_ATTEMPT"
	stateFallbackAttempt attemptState = "FALLBACK_ATTEMPT"
	stateSuccess         attemptState = "SUCCESS"
	stateFailed          attemptState = "FAILED"
)

// Config holds adapter behavior knobs.
type Config struct {
	AttemptTimeout time.Duration // per-backend attempt, default 30s
}

// Adapter selects between the primary and fallback recognizers. A result is
// wholly primary-sourced or wholly fallback-sourced, never mixed, and the
// fallback is attempted at most once per call.
type Adapter struct {
	cfg      Config
	primary  Recognizer
	fallback Recognizer
	logger   *slog.Logger
}

// Result is one whole-backend token set.
type Result struct {
	Tokens  []entity.Token
	Backend constants.BackendID
}

// NewAdapter builds an Adapter. primary may be nil (fallback-only
// configuration); fallback is required.
func NewAdapter(cfg Config, primary, fallback Recognizer, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	return &Adapter{cfg: cfg, primary: primary, fallback: fallback, logger: logger}
}

// Extract runs the selection policy over the configured backends.
func (a *Adapter) Extract(ctx context.Context, png []byte) (Result, error) {
	state := stateInit
	var primaryErr error

	if a.primary != nil {
		state = statePrimaryAttempt
		tokens, err := a.attempt(ctx, a.primary, png)
		if err == nil {
			state = stateSuccess
			a.logger.Info("recognize.extract.ok",
				"backend", a.primary.Name(), "state", state, "tokens", len(tokens))
			return Result{Tokens: tokens, Backend: a.primary.Name()}, nil
		}
		primaryErr = err
		a.logger.Warn("recognize.primary.failed",
			"backend", a.primary.Name(), "state", state, "error", err)
	}

	if a.fallback == nil {
		state = stateFailed
		return Result{}, &ExtractionFailedError{Primary: primaryErr, Fallback: errors.New("no fallback configured")}
	}

	state = stateFallbackAttempt
	tokens, err := a.attempt(ctx, a.fallback, png)
	if err != nil {
		state = stateFailed
		a.logger.Error("recognize.fallback.failed",
			"backend", a.fallback.Name(), "state", state, "error", err)
		return Result{}, &ExtractionFailedError{Primary: primaryErr, Fallback: err}
	}

	state = stateSuccess
	a.logger.Info("recognize.extract.ok",
		"backend", a.fallback.Name(), "state", state, "tokens", len(tokens), "fell_back", primaryErr != nil)
	return Result{Tokens: tokens, Backend: a.fallback.Name()}, nil
}

// attempt runs one backend under the per-attempt timeout. Timeout expiry is
// classified as unavailable, identically to any other backend error.
func (a *Adapter) attempt(ctx context.Context, r Recognizer, png []byte) ([]entity.Token, error) {
	actx, cancel := context.WithTimeout(ctx, a.cfg.AttemptTimeout)
	defer cancel()

	tokens, err := r.ExtractWithPositions(actx, png)
	if err != nil {
		if _, ok := AsBackendError(err); ok {
			return nil, err
		}
		// Recognizers classify their own failures; anything else (including
		// a deadline) is treated as the backend being unavailable.
		return nil, NewBackendError(r.Name(), KindUnavailable, err)
	}
	return tokens, nil
}
