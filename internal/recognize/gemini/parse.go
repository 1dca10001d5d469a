package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/HikariJones/Inclusive-AI-UMKM/internal/entity"
	"github.com/HikariJones/Inclusive-AI-UMKM/internal/llmjson"
)

// tokenExtractionPrompt instructs the model to report every visible text
// span on a coarse grid with a self-assessed confidence.
const tokenExtractionPrompt = `You are analyzing a photographed tabular document, possibly handwritten.
Extract EVERY visible word or number, even if your confidence is low.

For each word or number report:
- "text": the exact text content
- "y": its row position on the page, an integer starting from 1 at the top
- "x": its column position on the page, an integer starting from 1 at the left
- "confidence": how certain you are, 0-100

Return ONLY a JSON array in this exact format:
[{"text": "Buku", "y": 5, "x": 10, "confidence": 85}]

Important:
- Do not include any text before or after the JSON
- Do not use markdown code blocks
- Be thorough: include everything you can read`

// gridScale converts model grid positions to nominal pixels. Matches the
// coarse positioning used by the primary backend's pixel space closely
// enough for row and column clustering.
const gridScale = 20

// Nominal extent of one grid token. Height feeds the reconstruction
// tolerance, so it must be a plausible text height.
const (
	nominalTokenWidth  = 20.0
	nominalTokenHeight = 16.0
)

type rawToken struct {
	Text       string  `json:"text"`
	Y          float64 `json:"y"`
	X          float64 `json:"x"`
	Confidence float64 `json:"confidence"`
}

// tokenListSchema constrains the model's JSON output before unmarshaling.
func tokenListSchema() map[string]any {
	return map[string]any{
		"type": "array",
		"items": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"text":       map[string]any{"type": "string"},
				"y":          map[string]any{"type": "number", "minimum": 0},
				"x":          map[string]any{"type": "number", "minimum": 0},
				"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 100},
			},
			"required": []string{"text", "y", "x", "confidence"},
		},
	}
}

// ParseTokens turns the model's text response into positioned tokens.
// Markdown fences are stripped before validation.
func ParseTokens(response string) ([]entity.Token, error) {
	text := strings.TrimSpace(response)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	if err := llmjson.ValidateAgainstSchema(tokenListSchema(), []byte(text)); err != nil {
		return nil, fmt.Errorf("token list does not match schema: %w", err)
	}

	var raws []rawToken
	if err := json.Unmarshal([]byte(text), &raws); err != nil {
		return nil, fmt.Errorf("unmarshal token list: %w", err)
	}

	tokens := make([]entity.Token, 0, len(raws))
	for _, r := range raws {
		txt := strings.TrimSpace(r.Text)
		if txt == "" {
			continue
		}
		cx := r.X * gridScale
		cy := r.Y * gridScale
		tokens = append(tokens, entity.Token{
			Text: txt,
			Box: entity.BBox{
				XMin: cx - nominalTokenWidth/2,
				YMin: cy - nominalTokenHeight/2,
				XMax: cx + nominalTokenWidth/2,
				YMax: cy + nominalTokenHeight/2,
			},
			Confidence: r.Confidence / 100.0,
		})
	}
	return tokens, nil
}
