package controller

import (
	"github.com/cybre/yeelight-audio-sync/internal/dsp"
	"github.com/cybre/yeelight-audio-sync/internal/patterns"
)

// inputs are the smoothed quantities every formula may draw from.
type inputs struct {
	bands         [3]float64
	centroid      float64
	rolloff       float64
	lowMidBalance float64
	midHiBalance  float64
	beatPulse     float64
	intensity     float64
	beatDensity   float64
}

func (in inputs) bass() float64 { return in.bands[dsp.BandBass] }
func (in inputs) mid() float64  { return in.bands[dsp.BandMid] }
func (in inputs) high() float64 { return in.bands[dsp.BandHigh] }

// formula computes unclamped HSV targets for one mode. Saturation is bounded
// by satMin/satMax before the configured range applies; brightness uses the
// configured range only.
type formula struct {
	hue        func(in inputs) float64
	saturation func(in inputs) float64
	brightness func(in inputs) float64
	satMin     float64
	satMax     float64
}

// formulas maps every mode to its target formulas. Rhythmic is punchy: bass
// pulls hue warm and beats drive brightness. Ambient flows with the spectral
// shape and leans on overall intensity.
var formulas = map[patterns.Mode]formula{
	patterns.ModeRhythmic: {
		hue: func(in inputs) float64 {
			base := 40 + 180*in.centroid - 100*in.bass() + 60*in.high()
			return base + 20*in.beatPulse*(0.5-in.lowMidBalance)
		},
		saturation: func(in inputs) float64 {
			return 38 + 42*in.mid() + 25*in.high() + 20*in.beatPulse + 16*in.beatDensity
		},
		brightness: func(in inputs) float64 {
			return 28 + 62*in.intensity + 32*in.beatPulse + 26*in.high()
		},
		satMin: 25,
		satMax: 100,
	},
	patterns.ModeAmbient: {
		hue: func(in inputs) float64 {
			return 210*in.centroid + 40*(in.rolloff-0.5) + 90*(in.midHiBalance-0.5) + 40
		},
		saturation: func(in inputs) float64 {
			return 42 + 50*in.mid() + 18*in.high() + 12*in.intensity
		},
		brightness: func(in inputs) float64 {
			return 34 + 56*in.intensity + 22*in.high() + 12*in.beatPulse
		},
		satMin: 28,
		satMax: 98,
	},
}
