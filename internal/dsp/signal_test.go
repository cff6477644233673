package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHannWindow(t *testing.T) {
	w := HannWindow(5)
	assert.InDeltaSlice(t, []float64{0, 0.5, 1, 0.5, 0}, w, 1e-12)
	assert.Equal(t, []float64{1}, HannWindow(1))
	assert.Nil(t, HannWindow(0))
}

func TestApplyWindowInPlacePanicsOnMismatch(t *testing.T) {
	assert.Panics(t, func() { ApplyWindowInPlace([]float64{1, 2}, []float64{1}) })
}

func TestRootMeanSquare(t *testing.T) {
	assert.Equal(t, 0.0, RootMeanSquare(nil))
	assert.InDelta(t, 1.0, RootMeanSquare([]float64{1, -1, 1, -1}), 1e-12)
}

func TestZeroCrossingRate(t *testing.T) {
	assert.Equal(t, 0.0, ZeroCrossingRate([]float64{1}))
	assert.InDelta(t, 1.0, ZeroCrossingRate([]float64{1, -1, 1, -1}), 1e-12)
	assert.InDelta(t, 0.0, ZeroCrossingRate([]float64{1, 2, 3}), 1e-12)
}

func TestToMono(t *testing.T) {
	mono := ToMono([]float32{1, 3, -1, 1}, 2, nil)
	assert.Equal(t, []float64{2, 0}, mono)

	buf := make([]float64, 0, 8)
	out := ToMono([]float32{0.5, 0.25}, 1, buf)
	assert.Equal(t, []float64{0.5, 0.25}, out)
	assert.Equal(t, 8, cap(out))
}

func TestSmoother(t *testing.T) {
	s := NewSmoother(0.5)
	assert.Equal(t, 4.0, s.Step(4))
	assert.Equal(t, 6.0, s.Step(8))
	assert.Equal(t, 6.0, s.Value())

	seeded := NewSmootherFrom(0.5, 50)
	assert.Equal(t, 75.0, seeded.Step(100))
}
