package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvAddress   = "YEELIGHT_ADDRESS"
	EnvMusicPort = "YEELIGHT_MUSIC_PORT"
	EnvMetrics   = "YEELIGHT_METRICS_ADDR"
)

// Load reads the YAML file at path over the defaults and validates the result.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, eris.Wrapf(err, "open config %q", path)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f, Default())
	if err != nil {
		return Config{}, eris.Wrapf(err, "parse config %q", path)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r on top of base. Keys absent from the
// document keep their base values; unknown keys are rejected.
func LoadFromReader(r io.Reader, base Config) (Config, error) {
	cfg := base
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, eris.Wrap(err, "decode yaml")
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return eris.Wrapf(err, "load env file %q", file)
		}
	}
	return nil
}

// ApplyEnv returns a copy of cfg with environment overrides applied.
// lookup is usually os.LookupEnv.
func ApplyEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	if v, ok := lookup(EnvAddress); ok && v != "" {
		cfg.Device.Address = v
	}
	if v, ok := lookup(EnvMusicPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, eris.Wrapf(err, "parse %s", EnvMusicPort)
		}
		cfg.Device.MusicPort = port
	}
	if v, ok := lookup(EnvMetrics); ok {
		cfg.Metrics.Addr = v
	}
	return cfg, nil
}

// Validate checks that cfg is coherent. It reports every violation at once.
func Validate(cfg Config) error {
	var errs []error

	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %.0f must not be negative", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameSize < 2 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must be at least 2", cfg.Audio.FrameSize))
	}
	if cfg.Audio.Channels < 1 {
		errs = append(errs, fmt.Errorf("audio.channels %d must be at least 1", cfg.Audio.Channels))
	}

	for name, band := range map[string]Band{
		"bass": cfg.Spectrum.Bass,
		"mid":  cfg.Spectrum.Mid,
		"high": cfg.Spectrum.High,
	} {
		if band.Low < 0 || band.High <= band.Low {
			errs = append(errs, fmt.Errorf("spectrum.%s [%.0f, %.0f) is not a valid band", name, band.Low, band.High))
		}
	}
	if cfg.Spectrum.Bass.High > cfg.Spectrum.Mid.Low || cfg.Spectrum.Mid.High > cfg.Spectrum.High.Low {
		errs = append(errs, errors.New("spectrum bands must be ascending and disjoint"))
	}
	if cfg.Spectrum.RolloffRatio <= 0 || cfg.Spectrum.RolloffRatio > 1 {
		errs = append(errs, fmt.Errorf("spectrum.rolloff_ratio %.2f is out of range (0, 1]", cfg.Spectrum.RolloffRatio))
	}

	if cfg.Beat.HistorySize < 2 {
		errs = append(errs, fmt.Errorf("beat.history_size %d must be at least 2", cfg.Beat.HistorySize))
	}
	if cfg.Beat.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("beat.threshold %.2f must be positive", cfg.Beat.Threshold))
	}
	if cfg.Beat.MinInterval < 0 {
		errs = append(errs, fmt.Errorf("beat.min_interval %s must not be negative", cfg.Beat.MinInterval))
	}
	errs = appendAlpha(errs, "beat.noise_alpha", cfg.Beat.NoiseAlpha)
	errs = appendAlpha(errs, "beat.peak_rise_alpha", cfg.Beat.PeakRiseAlpha)
	errs = appendAlpha(errs, "beat.peak_decay_alpha", cfg.Beat.PeakDecayAlpha)

	if cfg.Pattern.BeatWindow <= 0 {
		errs = append(errs, fmt.Errorf("pattern.beat_window %s must be positive", cfg.Pattern.BeatWindow))
	}
	if cfg.Pattern.ExpectedBeats <= 0 {
		errs = append(errs, fmt.Errorf("pattern.expected_beats %.1f must be positive", cfg.Pattern.ExpectedBeats))
	}
	if cfg.Pattern.ModeHold < 0 {
		errs = append(errs, fmt.Errorf("pattern.mode_hold %s must not be negative", cfg.Pattern.ModeHold))
	}
	errs = appendAlpha(errs, "pattern.intensity_alpha", cfg.Pattern.IntensityAlpha)

	errs = appendAlpha(errs, "color.hue_alpha", cfg.Color.HueAlpha)
	errs = appendAlpha(errs, "color.saturation_alpha", cfg.Color.SaturationAlpha)
	errs = appendAlpha(errs, "color.brightness_alpha", cfg.Color.BrightnessAlpha)
	errs = appendAlpha(errs, "color.band_alpha", cfg.Color.BandAlpha)
	errs = appendAlpha(errs, "color.centroid_alpha", cfg.Color.CentroidAlpha)
	errs = appendAlpha(errs, "color.rolloff_alpha", cfg.Color.RolloffAlpha)
	if cfg.Color.PulseDecay < 0 || cfg.Color.PulseDecay >= 1 {
		errs = append(errs, fmt.Errorf("color.pulse_decay %.2f is out of range [0, 1)", cfg.Color.PulseDecay))
	}
	if cfg.Color.MinSaturation < 0 || cfg.Color.MaxSaturation > 100 || cfg.Color.MinSaturation > cfg.Color.MaxSaturation {
		errs = append(errs, fmt.Errorf("color saturation range [%d, %d] is invalid; must lie within [0, 100]",
			cfg.Color.MinSaturation, cfg.Color.MaxSaturation))
	}
	if cfg.Color.MinBrightness < 1 || cfg.Color.MaxBrightness > 100 || cfg.Color.MinBrightness > cfg.Color.MaxBrightness {
		errs = append(errs, fmt.Errorf("color brightness range [%d, %d] is invalid; must lie within [1, 100]",
			cfg.Color.MinBrightness, cfg.Color.MaxBrightness))
	}

	if !validPort(cfg.Device.ControlPort) {
		errs = append(errs, fmt.Errorf("device.control_port %d is out of range", cfg.Device.ControlPort))
	}
	if !validPort(cfg.Device.MusicPort) {
		errs = append(errs, fmt.Errorf("device.music_port %d is out of range", cfg.Device.MusicPort))
	}
	if cfg.Device.ConnectTimeout <= 0 || cfg.Device.AcceptTimeout <= 0 || cfg.Device.DisableTimeout <= 0 {
		errs = append(errs, errors.New("device timeouts must be positive"))
	}
	if cfg.Device.CommandInterval < 0 {
		errs = append(errs, fmt.Errorf("device.command_interval %s must not be negative", cfg.Device.CommandInterval))
	}
	if cfg.Device.TransitionMs < 30 {
		// Yeelight rejects smooth transitions shorter than 30ms.
		errs = append(errs, fmt.Errorf("device.transition_ms %d must be at least 30", cfg.Device.TransitionMs))
	}

	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}

	if err := errors.Join(errs...); err != nil {
		return eris.Wrap(err, "invalid config")
	}
	return nil
}

func appendAlpha(errs []error, name string, alpha float64) []error {
	if alpha <= 0 || alpha > 1 {
		return append(errs, fmt.Errorf("%s %.3f is out of range (0, 1]", name, alpha))
	}
	return errs
}

func validPort(port int) bool {
	return port > 0 && port <= 65535
}
