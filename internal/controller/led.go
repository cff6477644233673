package controller

import (
	"math"

	"github.com/crazy3lf/colorconv"

	"github.com/cybre/yeelight-audio-sync/internal/beat"
	"github.com/cybre/yeelight-audio-sync/internal/config"
	"github.com/cybre/yeelight-audio-sync/internal/dsp"
	"github.com/cybre/yeelight-audio-sync/internal/patterns"
	"github.com/cybre/yeelight-audio-sync/internal/utils"
)

// Color is an HSV triple in the light's integer units.
type Color struct {
	Hue        int
	Saturation int
	Brightness int
}

// RGB converts the color to 8-bit RGB at its own brightness.
func (c Color) RGB() (r, g, b uint8, err error) {
	return colorconv.HSVToRGB(
		float64(c.Hue),
		utils.Clamp(float64(c.Saturation)/100, 0.0, 1.0),
		utils.Clamp(float64(c.Brightness)/100, 0.0, 1.0),
	)
}

// Snapshot exposes the continuous synthesizer state for display.
type Snapshot struct {
	Hue        float64
	Saturation float64
	Brightness float64
	BeatPulse  float64
	Bands      [3]float64
	Centroid   float64
	Rolloff    float64
}

// LEDController turns analyzed audio into a smoothed HSV color. Every
// estimate starts from the configured initial state and lags its target.
type LEDController struct {
	cfg config.ColorConfig

	hue       float64
	beatPulse float64

	satSmoother      *dsp.Smoother
	brightSmoother   *dsp.Smoother
	bandSmoothers    [3]*dsp.Smoother
	centroidSmoother *dsp.Smoother
	rolloffSmoother  *dsp.Smoother
}

// NewLEDController constructs a controller with the configured smoothing.
func NewLEDController(cfg config.ColorConfig) *LEDController {
	var bandSmoothers [3]*dsp.Smoother
	for i := range bandSmoothers {
		bandSmoothers[i] = dsp.NewSmootherFrom(cfg.BandAlpha, 0)
	}

	return &LEDController{
		cfg:              cfg,
		hue:              utils.WrapDegrees(cfg.InitialHue),
		satSmoother:      dsp.NewSmootherFrom(cfg.SaturationAlpha, cfg.InitialSat),
		brightSmoother:   dsp.NewSmootherFrom(cfg.BrightnessAlpha, cfg.InitialBright),
		bandSmoothers:    bandSmoothers,
		centroidSmoother: dsp.NewSmootherFrom(cfg.CentroidAlpha, 0),
		rolloffSmoother:  dsp.NewSmootherFrom(cfg.RolloffAlpha, 0),
	}
}

// Update advances the controller by one frame and returns the color to emit.
func (c *LEDController) Update(features dsp.Features, state patterns.State, ev beat.Event) Color {
	if ev.Beat {
		c.beatPulse = utils.Clamp(ev.Strength*c.cfg.PulseGain, 0.0, 1.0)
	} else {
		c.beatPulse *= c.cfg.PulseDecay
	}

	var in inputs
	for i := range in.bands {
		in.bands[i] = c.bandSmoothers[i].Step(features.BandEnergyNormalized[i])
	}
	in.centroid = c.centroidSmoother.Step(features.SpectralCentroidNorm)
	in.rolloff = c.rolloffSmoother.Step(features.SpectralRolloffNorm)
	in.lowMidBalance = utils.SpectralBalance(in.bass(), in.mid())
	in.midHiBalance = utils.SpectralBalance(in.mid(), in.high())
	in.beatPulse = c.beatPulse
	in.intensity = state.Intensity
	in.beatDensity = state.BeatDensity

	f, ok := formulas[state.Mode]
	if !ok {
		f = formulas[patterns.ModeRhythmic]
	}

	targetHue := utils.Clamp(f.hue(in), 0.0, 359.0)
	targetSat := utils.Clamp(f.saturation(in), f.satMin, f.satMax)
	targetSat = utils.Clamp(targetSat, float64(c.cfg.MinSaturation), float64(c.cfg.MaxSaturation))
	targetBright := utils.Clamp(f.brightness(in), float64(c.cfg.MinBrightness), float64(c.cfg.MaxBrightness))

	c.hue = utils.SmoothHue(c.hue, targetHue, c.cfg.HueAlpha)
	sat := c.satSmoother.Step(targetSat)
	bright := c.brightSmoother.Step(targetBright)

	return Color{
		Hue:        int(math.Round(c.hue)) % 360,
		Saturation: utils.Clamp(int(math.Round(sat)), c.cfg.MinSaturation, c.cfg.MaxSaturation),
		Brightness: utils.Clamp(int(math.Round(bright)), c.cfg.MinBrightness, c.cfg.MaxBrightness),
	}
}

// Snapshot returns the current continuous state.
func (c *LEDController) Snapshot() Snapshot {
	var bands [3]float64
	for i, s := range c.bandSmoothers {
		bands[i] = s.Value()
	}
	return Snapshot{
		Hue:        c.hue,
		Saturation: c.satSmoother.Value(),
		Brightness: c.brightSmoother.Value(),
		BeatPulse:  c.beatPulse,
		Bands:      bands,
		Centroid:   c.centroidSmoother.Value(),
		Rolloff:    c.rolloffSmoother.Value(),
	}
}
