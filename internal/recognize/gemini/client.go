// Package gemini implements the fallback recognition backend using the
// Gemini multimodal API. Positions are coarser than the primary backend's:
// the model reports grid coordinates which are scaled to nominal pixels.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/HikariJones/Inclusive-AI-UMKM/constants"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/entity"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/recognize"
)

// Config for the Gemini client.
type Config struct {
	APIKey string
	Model  string // default "gemini-2.0-flash"
}

type Client struct {
	cfg    Config
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Client{
		cfg:    cfg,
		client: client,
		model:  client.GenerativeModel(cfg.Model),
		logger: logger,
	}, nil
}

func (c *Client) Name() constants.BackendID { return constants.BackendGemini }

// Close releases the underlying API client.
func (c *Client) Close() error { return c.client.Close() }

// ExtractWithPositions implements recognize.Recognizer.
func (c *Client) ExtractWithPositions(ctx context.Context, png []byte) ([]entity.Token, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("gemini.extract.request",
		"req_id", rid, "model", c.cfg.Model, "image_bytes", len(png))

	parts := []genai.Part{
		genai.ImageData("png", png),
		genai.Text(tokenExtractionPrompt),
	}
	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		c.logger.Error("gemini.extract.api_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, classify(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, recognize.NewBackendError(c.Name(), recognize.KindUnavailable,
			errors.New("no candidates in gemini response"))
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	tokens, err := ParseTokens(sb.String())
	if err != nil {
		c.logger.Error("gemini.extract.parse_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, recognize.NewBackendError(c.Name(), recognize.KindUnavailable, err)
	}

	c.logger.Info("gemini.extract.ok",
		"req_id", rid, "tokens", len(tokens),
		"elapsed_ms", time.Since(start).Milliseconds())
	return tokens, nil
}

// classify maps Gemini API errors to the backend taxonomy.
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
		return recognize.NewBackendError(constants.BackendGemini, recognize.KindQuotaExceeded, err)
	}
	return recognize.NewBackendError(constants.BackendGemini, recognize.KindUnavailable, err)
}
