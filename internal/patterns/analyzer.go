package patterns

import (
	"time"

	"github.com/cybre/yeelight-audio-sync/internal/beat"
	"github.com/cybre/yeelight-audio-sync/internal/config"
	"github.com/cybre/yeelight-audio-sync/internal/dsp"
	"github.com/cybre/yeelight-audio-sync/internal/utils"
)

// Mode describes the high-level lighting strategy selected by the pattern analyzer.
type Mode uint8

const (
	// ModeRhythmic emphasizes transient energy and beat-driven brightness pulses.
	ModeRhythmic Mode = iota
	// ModeAmbient focuses on spectral balance for flowing color changes.
	ModeAmbient
)

// String returns a human-friendly name for the mode.
func (m Mode) String() string {
	switch m {
	case ModeRhythmic:
		return "rhythmic"
	case ModeAmbient:
		return "ambient"
	default:
		return "unknown"
	}
}

// State summarises the rhythmic state for downstream visual mapping.
type State struct {
	Mode        Mode
	Intensity   float64
	BeatDensity float64
	EnergyNorm  float64
	LastSwitch  time.Time
}

// Analyzer tracks beat density and intensity and runs a two-state mode
// machine with a minimum hold time between switches.
type Analyzer struct {
	cfg config.PatternConfig

	beatTimes      []time.Time
	intensity      float64
	currentMode    Mode
	lastModeSwitch time.Time

	// OnModeChange, when set, is invoked after every switch.
	OnModeChange func(from, to Mode, ts time.Time)
}

// NewAnalyzer returns an Analyzer in ModeRhythmic.
func NewAnalyzer(cfg config.PatternConfig) *Analyzer {
	return &Analyzer{
		cfg:         cfg,
		currentMode: ModeRhythmic,
	}
}

// Process ingests the latest features and beat verdict and returns the updated state.
func (a *Analyzer) Process(features dsp.Features, ev beat.Event) State {
	ts := features.Timestamp
	if a.lastModeSwitch.IsZero() {
		a.lastModeSwitch = ts
	}

	if ev.Beat {
		a.beatTimes = append(a.beatTimes, ts)
	}
	a.pruneBeats(ts)

	beatDensity := utils.Clamp(float64(len(a.beatTimes))/a.cfg.ExpectedBeats, 0.0, 1.0)
	energyNorm := utils.Clamp(features.RMS*a.cfg.EnergyGain, 0.0, 1.0)
	centroid := features.SpectralCentroidNorm

	instant := utils.Clamp(
		a.cfg.EnergyWeight*energyNorm+
			a.cfg.DensityWeight*beatDensity+
			a.cfg.CentroidWeight*centroid,
		0.0, 1.0)
	a.intensity = utils.EMA(a.intensity, instant, a.cfg.IntensityAlpha)

	a.updateMode(ts, energyNorm, centroid)

	return State{
		Mode:        a.currentMode,
		Intensity:   a.intensity,
		BeatDensity: beatDensity,
		EnergyNorm:  energyNorm,
		LastSwitch:  a.lastModeSwitch,
	}
}

// Mode returns the current mode.
func (a *Analyzer) Mode() Mode {
	return a.currentMode
}

// pruneBeats drops every beat strictly older than the lookback window.
func (a *Analyzer) pruneBeats(now time.Time) {
	cutoff := now.Add(-a.cfg.BeatWindow)
	idx := 0
	for _, ts := range a.beatTimes {
		if !ts.Before(cutoff) {
			a.beatTimes[idx] = ts
			idx++
		}
	}
	a.beatTimes = a.beatTimes[:idx]
}

// updateMode leaves Rhythmic only on sustained loud, bright content (AND) but
// returns from Ambient as soon as either cue fades (OR).
func (a *Analyzer) updateMode(ts time.Time, energyNorm, centroidNorm float64) {
	if ts.Sub(a.lastModeSwitch) < a.cfg.ModeHold {
		return
	}

	mode := a.currentMode
	switch a.currentMode {
	case ModeRhythmic:
		if energyNorm > a.cfg.AmbientEnergy && centroidNorm > a.cfg.AmbientCentroid {
			mode = ModeAmbient
		}
	case ModeAmbient:
		if energyNorm < a.cfg.RhythmicEnergy || centroidNorm < a.cfg.RhythmicCentroid {
			mode = ModeRhythmic
		}
	}

	if mode == a.currentMode {
		return
	}
	from := a.currentMode
	a.currentMode = mode
	a.lastModeSwitch = ts
	if a.OnModeChange != nil {
		a.OnModeChange(from, mode, ts)
	}
}
