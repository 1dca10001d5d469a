package entity

// BBox is an axis-aligned bounding box in image pixel space.
type BBox struct {
	XMin float64
	YMin float64
	XMax float64
	YMax float64
}

func (b BBox) CenterX() float64 { return (b.XMin + b.XMax) / 2 }
func (b BBox) CenterY() float64 { return (b.YMin + b.YMax) / 2 }
func (b BBox) Height() float64  { return b.YMax - b.YMin }

// Token is one recognized text span with its position and confidence,
// as produced by a recognition backend. Treated as immutable.
type Token struct {
	Text       string
	Box        BBox
	Confidence float64 // 0..1
}

// DefaultNoiseThreshold marks tokens below this confidence as noise.
const DefaultNoiseThreshold = 0.20

// FilterNoise splits tokens into retained and noise by confidence threshold.
// Empty-text tokens count as noise regardless of confidence.
func FilterNoise(tokens []Token, threshold float64) (retained []Token, noise int) {
	if threshold <= 0 {
		threshold = DefaultNoiseThreshold
	}
	retained = make([]Token, 0, len(tokens))
	for _, t := range tokens {
		if t.Text == "" || t.Confidence < threshold {
			noise++
			continue
		}
		retained = append(retained, t)
	}
	return retained, noise
}
