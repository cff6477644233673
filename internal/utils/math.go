package utils

import (
	"math"

	"golang.org/x/exp/constraints"
)

// balanceFloor is the combined magnitude below which two bands are treated as silent.
const balanceFloor = 1e-9

// Clamp constrains v to the range [minVal, maxVal].
func Clamp[T constraints.Ordered](v, minVal, maxVal T) T {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// EMA advances an exponential moving average by one step: prev + alpha*(value-prev).
func EMA(prev, value, alpha float64) float64 {
	if alpha <= 0 {
		return prev
	}
	if alpha >= 1 {
		return value
	}
	return prev + alpha*(value-prev)
}

// SpectralBalance returns the normalized difference (a-b)/(a+b) in [-1, 1].
// Near-silent inputs yield 0.
func SpectralBalance(a, b float64) float64 {
	total := a + b
	if total < balanceFloor {
		return 0
	}
	return Clamp((a-b)/total, -1.0, 1.0)
}

// SmoothHue moves current towards target by alpha along the shortest arc of
// the hue circle. The result is in [0, 360).
func SmoothHue(current, target, alpha float64) float64 {
	delta := math.Mod(target-current+540, 360) - 180
	return WrapDegrees(current + alpha*delta)
}

// WrapDegrees maps any angle onto [0, 360).
func WrapDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// ClampIndex bounds idx to the valid range for a slice of length.
func ClampIndex(idx, length int) int {
	if length <= 0 {
		return 0
	}
	if idx < 0 {
		return 0
	}
	if idx >= length {
		return length - 1
	}
	return idx
}
