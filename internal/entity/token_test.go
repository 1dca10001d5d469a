package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterNoise(t *testing.T) {
	tokens := []Token{
		{Text: "keep", Confidence: 0.95},
		{Text: "exactly-at-threshold", Confidence: 0.20},
		{Text: "below", Confidence: 0.19},
		{Text: "", Confidence: 0.99},
	}

	retained, noise := FilterNoise(tokens, 0.20)
	require.Len(t, retained, 2)
	assert.Equal(t, "keep", retained[0].Text)
	assert.Equal(t, "exactly-at-threshold", retained[1].Text)
	assert.Equal(t, 2, noise)
}

func TestFilterNoiseZeroThresholdUsesDefault(t *testing.T) {
	tokens := []Token{
		{Text: "faint", Confidence: 0.1},
		{Text: "clear", Confidence: 0.5},
	}

	retained, noise := FilterNoise(tokens, 0)
	require.Len(t, retained, 1)
	assert.Equal(t, "clear", retained[0].Text)
	assert.Equal(t, 1, noise)
}

func TestFilterNoiseEmptyInput(t *testing.T) {
	retained, noise := FilterNoise(nil, 0.2)
	assert.Empty(t, retained)
	assert.Zero(t, noise)
}

func TestBBoxGeometry(t *testing.T) {
	b := BBox{XMin: 10, YMin: 20, XMax: 50, YMax: 36}
	assert.InDelta(t, 30.0, b.CenterX(), 1e-9)
	assert.InDelta(t, 28.0, b.CenterY(), 1e-9)
	assert.InDelta(t, 16.0, b.Height(), 1e-9)
}
