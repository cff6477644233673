package dsp

import (
	"math"

	"github.com/cybre/yeelight-audio-sync/internal/utils"
)

// RootMeanSquare computes the RMS value of a frame.
func RootMeanSquare(frame []float64) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sumSquares float64
	for _, sample := range frame {
		sumSquares += sample * sample
	}
	return math.Sqrt(sumSquares / float64(len(frame)))
}

// ZeroCrossingRate returns the fraction of sign changes across consecutive samples.
func ZeroCrossingRate(frame []float64) float64 {
	if len(frame) < 2 {
		return 0
	}
	var crossings int
	prev := frame[0]
	for _, curr := range frame[1:] {
		if (prev >= 0) != (curr >= 0) {
			crossings++
		}
		prev = curr
	}
	return float64(crossings) / float64(len(frame)-1)
}

// ToMono averages interleaved multi-channel data into a mono frame, reusing dst
// when it has enough capacity.
func ToMono(samples []float32, channels int, dst []float64) []float64 {
	if channels <= 0 {
		channels = 1
	}
	frameLen := len(samples) / channels
	if cap(dst) < frameLen {
		dst = make([]float64, frameLen)
	} else {
		dst = dst[:frameLen]
	}
	idx := 0
	for i := range frameLen {
		sum := 0.0
		for range channels {
			sum += float64(samples[idx])
			idx++
		}
		dst[i] = sum / float64(channels)
	}
	return dst
}

// HannWindow returns a precomputed raised-cosine window for the requested size.
func HannWindow(n int) []float64 {
	if n <= 0 {
		return nil
	}
	window := make([]float64, n)
	if n == 1 {
		window[0] = 1
		return window
	}
	for i := range n {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return window
}

// ApplyWindowInPlace multiplies samples by a window function in-place.
func ApplyWindowInPlace(samples []float64, window []float64) {
	switch {
	case len(samples) == 0:
		return
	case len(samples) != len(window):
		panic("dsp: window length mismatch")
	}
	for i := range samples {
		samples[i] *= window[i]
	}
}

// Smoother implements a simple exponential moving average.
type Smoother struct {
	alpha       float64
	initialized bool
	value       float64
}

// NewSmoother constructs a Smoother using the supplied alpha (0..1). The first
// Step adopts its input as-is. Smaller values produce heavier smoothing.
func NewSmoother(alpha float64) *Smoother {
	return &Smoother{alpha: utils.Clamp(alpha, 0.0, 1.0)}
}

// NewSmootherFrom constructs a Smoother seeded with initial, so the very first
// Step already lags behind its input.
func NewSmootherFrom(alpha, initial float64) *Smoother {
	s := NewSmoother(alpha)
	s.value = initial
	s.initialized = true
	return s
}

// Step updates the internal state and returns the smoothed value.
func (s *Smoother) Step(v float64) float64 {
	if !s.initialized {
		s.value = v
		s.initialized = true
		return v
	}
	s.value = utils.EMA(s.value, v, s.alpha)
	return s.value
}

// Value returns the current smoothed value without updating it.
func (s *Smoother) Value() float64 {
	return s.value
}
