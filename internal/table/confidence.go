package table

import (
	"math"

	"github.com/HikariJones/Inclusive-AI-UMKM/internal/entity"
)

// AggregateConfidence is the arithmetic mean of the retained tokens'
// confidences, expressed as a percentage rounded to two decimals. Zero
// retained tokens yield 0.
func AggregateConfidence(tokens []entity.Token) float64 {
	if len(tokens) == 0 {
		return 0
	}
	var sum float64
	for _, t := range tokens {
		sum += t.Confidence
	}
	pct := sum / float64(len(tokens)) * 100
	return math.Round(pct*100) / 100
}
