// Package beat detects beats from per-frame loudness using an adaptive
// threshold over a rolling energy history.
package beat

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/cybre/yeelight-audio-sync/internal/config"
	"github.com/cybre/yeelight-audio-sync/internal/utils"
)

// Event is the detector verdict for a single frame.
type Event struct {
	Beat     bool
	Strength float64
}

// Detector tracks a noise floor, a decaying peak envelope, and a bounded
// history of recent RMS values. It is not safe for concurrent use; feed it
// frames in arrival order from a single goroutine.
type Detector struct {
	cfg config.BeatConfig

	history    []float64
	head       int
	count      int
	noiseFloor float64
	peakEnergy float64
	lastBeat   time.Time
}

// NewDetector returns a Detector configured by cfg.
func NewDetector(cfg config.BeatConfig) *Detector {
	if cfg.HistorySize < 2 {
		cfg.HistorySize = 2
	}
	return &Detector{
		cfg:        cfg,
		history:    make([]float64, cfg.HistorySize),
		noiseFloor: cfg.InitialNoiseFloor,
		peakEnergy: cfg.InitialPeak,
	}
}

// Detect ingests the RMS of the frame observed at ts and reports whether it is a beat.
func (d *Detector) Detect(ts time.Time, rms float64) Event {
	d.noiseFloor = utils.EMA(d.noiseFloor, rms, d.cfg.NoiseAlpha)
	if rms > d.peakEnergy {
		d.peakEnergy = utils.EMA(d.peakEnergy, rms, d.cfg.PeakRiseAlpha)
	} else {
		d.peakEnergy = utils.EMA(d.peakEnergy, rms, d.cfg.PeakDecayAlpha)
	}
	if minPeak := d.noiseFloor * d.cfg.PeakFloorRatio; d.peakEnergy < minPeak {
		d.peakEnergy = minPeak
	}
	d.push(rms)

	if d.count < len(d.history)/2 {
		return Event{}
	}
	if !d.lastBeat.IsZero() && ts.Sub(d.lastBeat) < d.cfg.MinInterval {
		return Event{}
	}

	threshold := d.cfg.Threshold * stat.Mean(d.history[:d.count], nil)
	if rms <= threshold {
		return Event{}
	}

	d.lastBeat = ts
	return Event{
		Beat:     true,
		Strength: utils.Clamp((rms-threshold)/(d.peakEnergy-threshold+1e-9), 0.0, 1.0),
	}
}

// push appends rms to the ring, evicting the oldest value once full. The
// filled prefix history[:count] always holds exactly the retained values.
func (d *Detector) push(rms float64) {
	d.history[d.head] = rms
	d.head = (d.head + 1) % len(d.history)
	if d.count < len(d.history) {
		d.count++
	}
}

// NoiseFloor returns the current slow-tracking noise estimate.
func (d *Detector) NoiseFloor() float64 { return d.noiseFloor }

// PeakEnergy returns the current peak envelope.
func (d *Detector) PeakEnergy() float64 { return d.peakEnergy }

// Warm reports whether the history is full enough for detection.
func (d *Detector) Warm() bool { return d.count >= len(d.history)/2 }
