// Package vision implements the primary recognition backend on top of the
// Cloud Vision images:annotate REST endpoint (DOCUMENT_TEXT_DETECTION).
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/HikariJones/Inclusive-AI-UMKM/constants"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/entity"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/recognize"
)

// Config for the Vision client.
type Config struct {
	APIKey  string        // if empty, falls back to env GOOGLE_VISION_API_KEY
	BaseURL string        // default https://vision.googleapis.com/v1
	Timeout time.Duration // http client timeout
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GOOGLE_VISION_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://vision.googleapis.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (c *Client) Name() constants.BackendID { return constants.BackendVision }

// annotate request/response shapes: only the fields we send and read.
type annotateRequest struct {
	Requests []annotateEntry `json:"requests"`
}

type annotateEntry struct {
	Image    annotateImage     `json:"image"`
	Features []annotateFeature `json:"features"`
}

type annotateImage struct {
	Content string `json:"content"`
}

type annotateFeature struct {
	Type string `json:"type"`
}

type vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type annotateResponse struct {
	Responses []struct {
		FullTextAnnotation *struct {
			Pages []struct {
				Blocks []struct {
					Paragraphs []struct {
						Words []struct {
							Symbols []struct {
								Text       string  `json:"text"`
								Confidence float64 `json:"confidence"`
							} `json:"symbols"`
							BoundingBox struct {
								Vertices []vertex `json:"vertices"`
							} `json:"boundingBox"`
						} `json:"words"`
					} `json:"paragraphs"`
				} `json:"blocks"`
			} `json:"pages"`
		} `json:"fullTextAnnotation"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	} `json:"responses"`
}

// ExtractWithPositions implements recognize.Recognizer. Tokens are word-level:
// text joined from symbols, confidence averaged over symbols, bounding box
// from the word's boundingBox vertices.
func (c *Client) ExtractWithPositions(ctx context.Context, png []byte) ([]entity.Token, error) {
	rid := uuid.New().String()
	start := time.Now()

	req := annotateRequest{Requests: []annotateEntry{{
		Image:    annotateImage{Content: base64.StdEncoding.EncodeToString(png)},
		Features: []annotateFeature{{Type: "DOCUMENT_TEXT_DETECTION"}},
	}}}

	c.logger.Info("vision.annotate.request", "req_id", rid, "image_bytes", len(png))

	raw, status, err := c.post(ctx, req)
	if err != nil {
		c.logger.Error("vision.annotate.http_error",
			"req_id", rid, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, classifyHTTP(status, raw, err)
	}

	var resp annotateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, recognize.NewBackendError(c.Name(), recognize.KindUnavailable,
			fmt.Errorf("decode annotate response: %w", err))
	}
	if len(resp.Responses) == 0 {
		return nil, recognize.NewBackendError(c.Name(), recognize.KindUnavailable,
			errors.New("empty annotate response"))
	}
	if e := resp.Responses[0].Error; e != nil {
		return nil, classifyStatus(c.Name(), e.Code, e.Status, e.Message)
	}

	tokens := collectTokens(&resp)
	c.logger.Info("vision.annotate.ok",
		"req_id", rid, "tokens", len(tokens),
		"elapsed_ms", time.Since(start).Milliseconds())
	return tokens, nil
}

func collectTokens(resp *annotateResponse) []entity.Token {
	var tokens []entity.Token
	fta := resp.Responses[0].FullTextAnnotation
	if fta == nil {
		return tokens
	}
	for _, page := range fta.Pages {
		for _, block := range page.Blocks {
			for _, para := range block.Paragraphs {
				for _, word := range para.Words {
					var sb strings.Builder
					var confSum float64
					for _, sym := range word.Symbols {
						sb.WriteString(sym.Text)
						confSum += sym.Confidence
					}
					text := strings.TrimSpace(sb.String())
					if text == "" || len(word.Symbols) == 0 {
						continue
					}
					conf := confSum / float64(len(word.Symbols))
					box, ok := boxFromVertices(word.BoundingBox.Vertices)
					if !ok {
						continue
					}
					tokens = append(tokens, entity.Token{
						Text:       text,
						Box:        box,
						Confidence: conf,
					})
				}
			}
		}
	}
	return tokens
}

func boxFromVertices(vs []vertex) (entity.BBox, bool) {
	if len(vs) == 0 {
		return entity.BBox{}, false
	}
	box := entity.BBox{XMin: vs[0].X, YMin: vs[0].Y, XMax: vs[0].X, YMax: vs[0].Y}
	for _, v := range vs[1:] {
		if v.X < box.XMin {
			box.XMin = v.X
		}
		if v.X > box.XMax {
			box.XMax = v.X
		}
		if v.Y < box.YMin {
			box.YMin = v.Y
		}
		if v.Y > box.YMax {
			box.YMax = v.Y
		}
	}
	return box, true
}

func (c *Client) post(ctx context.Context, body any) ([]byte, int, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}
	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/images:annotate?key=" + c.cfg.APIKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.logger.Warn("vision.response_body_close_error", "error", err)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return raw, resp.StatusCode, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return raw, resp.StatusCode, nil
}

// classifyHTTP maps transport-level outcomes to the backend error taxonomy.
func classifyHTTP(status int, raw []byte, cause error) error {
	id := constants.BackendVision
	switch {
	case status == http.StatusForbidden && bytes.Contains(raw, []byte("BILLING_DISABLED")):
		return recognize.NewBackendError(id, recognize.KindBillingDisabled, cause)
	case status == http.StatusTooManyRequests:
		return recognize.NewBackendError(id, recognize.KindQuotaExceeded, cause)
	default:
		return recognize.NewBackendError(id, recognize.KindUnavailable, cause)
	}
}

// classifyStatus maps an in-body google.rpc error to the taxonomy.
func classifyStatus(id constants.BackendID, code int, status, message string) error {
	cause := fmt.Errorf("annotate error %d %s: %s", code, status, message)
	switch {
	case status == "PERMISSION_DENIED" && strings.Contains(message, "billing"):
		return recognize.NewBackendError(id, recognize.KindBillingDisabled, cause)
	case status == "RESOURCE_EXHAUSTED":
		return recognize.NewBackendError(id, recognize.KindQuotaExceeded, cause)
	default:
		return recognize.NewBackendError(id, recognize.KindUnavailable, cause)
	}
}
