package dsp

import (
	"math/cmplx"
	"time"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/floats"

	"github.com/cybre/yeelight-audio-sync/internal/config"
	"github.com/cybre/yeelight-audio-sync/internal/utils"
)

// energyFloor keeps band fractions finite on silent frames.
const energyFloor = 1e-9

// Band indices into Features.BandEnergy / BandEnergyNormalized.
const (
	BandBass = iota
	BandMid
	BandHigh
)

// Features is the set of per-frame DSP metrics that downstream stages consume.
// Values are produced fresh for every frame and never mutated afterwards.
type Features struct {
	Timestamp            time.Time
	RMS                  float64
	ZeroCrossingRate     float64
	SpectralCentroid     float64
	SpectralCentroidNorm float64
	SpectralRolloff      float64
	SpectralRolloffNorm  float64
	BandEnergy           [3]float64
	BandEnergyNormalized [3]float64
	TotalEnergy          float64
	PeakFrequency        float64
	PeakMagnitude        float64
	FrameDuration        time.Duration
}

// Bass returns the normalized bass fraction.
func (f Features) Bass() float64 { return f.BandEnergyNormalized[BandBass] }

// Mid returns the normalized mid fraction.
func (f Features) Mid() float64 { return f.BandEnergyNormalized[BandMid] }

// High returns the normalized high fraction.
func (f Features) High() float64 { return f.BandEnergyNormalized[BandHigh] }

// binRange is a half-open range of FFT bins [start, end).
type binRange struct {
	start int
	end   int
}

// Analyzer transforms mono frames into spectral features. Window, bin
// frequencies, and band masks are computed once; scratch buffers are reused
// to keep allocations predictable for real-time processing.
type Analyzer struct {
	sampleRate    float64
	frameSize     int
	nyquist       float64
	rolloffRatio  float64
	window        []float64
	freqs         []float64
	bandBins      [3]binRange
	windowedFrame []float64
	magnitudes    []float64
	frameDuration time.Duration
}

// NewAnalyzer constructs an Analyzer configured for a given sample rate/frame size.
func NewAnalyzer(sampleRate float64, frameSize int, cfg config.SpectrumConfig) *Analyzer {
	if frameSize < 2 {
		panic("dsp: frameSize must be >= 2")
	}
	if sampleRate <= 0 {
		panic("dsp: sampleRate must be > 0")
	}

	half := frameSize/2 + 1
	binWidth := sampleRate / float64(frameSize)
	freqs := make([]float64, half)
	for i := range freqs {
		freqs[i] = float64(i) * binWidth
	}

	a := &Analyzer{
		sampleRate:    sampleRate,
		frameSize:     frameSize,
		nyquist:       sampleRate / 2,
		rolloffRatio:  cfg.RolloffRatio,
		window:        HannWindow(frameSize),
		freqs:         freqs,
		windowedFrame: make([]float64, frameSize),
		magnitudes:    make([]float64, half),
		frameDuration: time.Duration(float64(frameSize) / sampleRate * float64(time.Second)),
	}
	for i, band := range cfg.Bands() {
		a.bandBins[i] = maskBins(freqs, band)
	}
	return a
}

// maskBins returns the bins whose frequency f satisfies band.Low <= f < band.High.
// freqs is ascending, so the mask is a contiguous range.
func maskBins(freqs []float64, band config.Band) binRange {
	r := binRange{start: len(freqs), end: len(freqs)}
	for i, f := range freqs {
		if f >= band.Low {
			r.start = i
			break
		}
	}
	for i := r.start; i < len(freqs); i++ {
		if freqs[i] >= band.High {
			r.end = i
			break
		}
	}
	return r
}

// FrameSize is the exact frame length Process accepts.
func (a *Analyzer) FrameSize() int {
	return a.frameSize
}

// Process computes spectral features for the supplied mono frame. Frames whose
// length differs from the configured size are rejected with ok=false and leave
// no trace in the analyzer.
func (a *Analyzer) Process(frame []float64, ts time.Time) (Features, bool) {
	if len(frame) != a.frameSize {
		return Features{}, false
	}

	copy(a.windowedFrame, frame)
	ApplyWindowInPlace(a.windowedFrame, a.window)

	spectrum := fft.FFTReal(a.windowedFrame)
	for i := range a.magnitudes {
		a.magnitudes[i] = cmplx.Abs(spectrum[i])
	}

	var bandEnergy [3]float64
	for i, r := range a.bandBins {
		for bin := r.start; bin < r.end; bin++ {
			mag := a.magnitudes[bin]
			bandEnergy[i] += mag * mag
		}
	}
	totalEnergy := bandEnergy[BandBass] + bandEnergy[BandMid] + bandEnergy[BandHigh] + energyFloor

	var bandNorm [3]float64
	for i := range bandEnergy {
		bandNorm[i] = utils.Clamp(bandEnergy[i]/totalEnergy, 0.0, 1.0)
	}

	centroid := floats.Dot(a.freqs, a.magnitudes) / (floats.Sum(a.magnitudes) + energyFloor)
	rolloff := a.computeRolloff(totalEnergy)
	peakIdx := floats.MaxIdx(a.magnitudes)

	return Features{
		Timestamp:            ts,
		RMS:                  RootMeanSquare(frame),
		ZeroCrossingRate:     ZeroCrossingRate(frame),
		SpectralCentroid:     centroid,
		SpectralCentroidNorm: utils.Clamp(centroid/a.nyquist, 0.0, 1.0),
		SpectralRolloff:      rolloff,
		SpectralRolloffNorm:  utils.Clamp(rolloff/a.nyquist, 0.0, 1.0),
		BandEnergy:           bandEnergy,
		BandEnergyNormalized: bandNorm,
		TotalEnergy:          totalEnergy,
		PeakFrequency:        a.freqs[peakIdx],
		PeakMagnitude:        a.magnitudes[peakIdx],
		FrameDuration:        a.frameDuration,
	}, true
}

// computeRolloff returns the frequency of the first bin at which the cumulative
// squared magnitude reaches rolloffRatio of totalEnergy. Bins ascend in
// frequency and squared magnitudes are non-negative, so the running sum is
// monotonic. When the target is never reached the last bin is used.
func (a *Analyzer) computeRolloff(totalEnergy float64) float64 {
	target := totalEnergy * a.rolloffRatio
	var cumulative float64
	idx := len(a.magnitudes)
	for i, mag := range a.magnitudes {
		cumulative += mag * mag
		if cumulative >= target {
			idx = i
			break
		}
	}
	return a.freqs[utils.ClampIndex(idx, len(a.freqs))]
}
