package dsp

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybre/yeelight-audio-sync/internal/config"
)

const (
	testSampleRate = 44100.0
	testFrameSize  = 2048
)

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(testSampleRate, testFrameSize, config.Default().Spectrum)
}

func sineFrame(freq, amplitude float64, n int) []float64 {
	frame := make([]float64, n)
	for i := range frame {
		frame[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/testSampleRate)
	}
	return frame
}

func TestProcessRejectsWrongLength(t *testing.T) {
	a := newTestAnalyzer()

	for _, n := range []int{0, 1, testFrameSize - 1, testFrameSize + 1, testFrameSize * 2} {
		_, ok := a.Process(make([]float64, n), time.Now())
		assert.False(t, ok, "frame length %d", n)
	}
}

func TestProcessSilentFrameIsFinite(t *testing.T) {
	a := newTestAnalyzer()

	f, ok := a.Process(make([]float64, testFrameSize), time.Now())
	require.True(t, ok)

	assert.Equal(t, 0.0, f.RMS)
	assert.InDelta(t, energyFloor, f.TotalEnergy, 1e-15)
	for i, v := range f.BandEnergyNormalized {
		assert.False(t, math.IsNaN(v), "band %d is NaN", i)
		assert.Equal(t, 0.0, v)
	}
	assert.False(t, math.IsNaN(f.SpectralCentroidNorm))
	assert.Equal(t, 0.0, f.SpectralCentroidNorm)
	assert.Equal(t, 1.0, f.SpectralRolloffNorm)
	assert.Equal(t, 0.0, f.PeakFrequency)
}

func TestProcessBassToneConcentratesInBassBand(t *testing.T) {
	a := newTestAnalyzer()
	ts := time.Unix(100, 0)

	f, ok := a.Process(sineFrame(100, 0.5, testFrameSize), ts)
	require.True(t, ok)

	assert.Equal(t, ts, f.Timestamp)
	assert.InDelta(t, 0.5/math.Sqrt2, f.RMS, 0.01)
	assert.Greater(t, f.Bass(), 0.95)
	assert.Less(t, f.Mid(), 0.05)
	assert.Less(t, f.High(), 0.01)
	assert.InDelta(t, 100, f.PeakFrequency, testSampleRate/testFrameSize)
	assert.Less(t, f.SpectralCentroidNorm, 0.1)
	assert.Less(t, f.SpectralRolloffNorm, 0.02)
}

func TestProcessHighToneConcentratesInHighBand(t *testing.T) {
	a := newTestAnalyzer()

	f, ok := a.Process(sineFrame(4000, 0.5, testFrameSize), time.Now())
	require.True(t, ok)

	assert.Greater(t, f.High(), 0.95)
	assert.Less(t, f.Bass(), 0.01)
	assert.InDelta(t, 4000, f.PeakFrequency, testSampleRate/testFrameSize)
	assert.Greater(t, f.SpectralCentroidNorm, f.SpectralRolloffNorm*0.5)
}

func TestBandFractionsStayInRange(t *testing.T) {
	a := newTestAnalyzer()

	frames := [][]float64{
		sineFrame(60, 1, testFrameSize),
		sineFrame(900, 0.01, testFrameSize),
		sineFrame(12000, 0.8, testFrameSize),
	}
	noise := make([]float64, testFrameSize)
	for i := range noise {
		noise[i] = math.Sin(float64(i)*12.9898) * 0.7
	}
	frames = append(frames, noise)

	for _, frame := range frames {
		f, ok := a.Process(frame, time.Now())
		require.True(t, ok)
		for _, v := range f.BandEnergyNormalized {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
		assert.GreaterOrEqual(t, f.SpectralCentroidNorm, 0.0)
		assert.LessOrEqual(t, f.SpectralCentroidNorm, 1.0)
		assert.GreaterOrEqual(t, f.SpectralRolloffNorm, 0.0)
		assert.LessOrEqual(t, f.SpectralRolloffNorm, 1.0)
	}
}

func TestMaskBinsIsHalfOpen(t *testing.T) {
	freqs := []float64{0, 10, 20, 30, 40}

	r := maskBins(freqs, config.Band{Low: 10, High: 30})
	assert.Equal(t, binRange{start: 1, end: 3}, r)

	r = maskBins(freqs, config.Band{Low: 35, High: 100})
	assert.Equal(t, binRange{start: 4, end: 5}, r)

	r = maskBins(freqs, config.Band{Low: 100, High: 200})
	assert.Equal(t, 0, r.end-r.start)
}

func TestDefaultBandMasksAreDisjoint(t *testing.T) {
	a := newTestAnalyzer()
	assert.LessOrEqual(t, a.bandBins[BandBass].end, a.bandBins[BandMid].start)
	assert.LessOrEqual(t, a.bandBins[BandMid].end, a.bandBins[BandHigh].start)
	assert.Equal(t, 1, a.bandBins[BandBass].start, "bin 0 (DC) is below 20Hz")
}
