// Package config defines the immutable runtime configuration shared by the
// analysis chain and the device session. A Config is built once at startup
// (defaults, then YAML file, then environment, then CLI flags), validated, and
// handed by value to each component constructor.
package config

import "time"

// Band is a frequency span in Hz. Bins with Low <= f < High belong to the band.
type Band struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Config is the complete runtime configuration.
type Config struct {
	Audio    AudioConfig    `yaml:"audio"`
	Spectrum SpectrumConfig `yaml:"spectrum"`
	Beat     BeatConfig     `yaml:"beat"`
	Pattern  PatternConfig  `yaml:"pattern"`
	Color    ColorConfig    `yaml:"color"`
	Device   DeviceConfig   `yaml:"device"`
	Driver   DriverConfig   `yaml:"driver"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AudioConfig describes the capture frame contract.
type AudioConfig struct {
	// SampleRate in Hz. Zero means the capture device default.
	SampleRate float64 `yaml:"sample_rate"`
	// FrameSize is the number of mono samples per analysis frame.
	FrameSize int `yaml:"frame_size"`
	// Channels captured from the input device before downmixing.
	Channels int `yaml:"channels"`
	// DeviceIndex selects the input device; -1 asks interactively.
	DeviceIndex int `yaml:"device_index"`
	// Latency overrides the device input latency when > 0.
	Latency time.Duration `yaml:"latency"`
}

// SpectrumConfig configures feature extraction.
type SpectrumConfig struct {
	Bass         Band    `yaml:"bass"`
	Mid          Band    `yaml:"mid"`
	High         Band    `yaml:"high"`
	RolloffRatio float64 `yaml:"rolloff_ratio"`
}

// Bands returns the bass/mid/high spans in analysis order.
func (s SpectrumConfig) Bands() [3]Band {
	return [3]Band{s.Bass, s.Mid, s.High}
}

// BeatConfig tunes the adaptive beat detector.
type BeatConfig struct {
	HistorySize       int           `yaml:"history_size"`
	Threshold         float64       `yaml:"threshold"`
	MinInterval       time.Duration `yaml:"min_interval"`
	NoiseAlpha        float64       `yaml:"noise_alpha"`
	PeakRiseAlpha     float64       `yaml:"peak_rise_alpha"`
	PeakDecayAlpha    float64       `yaml:"peak_decay_alpha"`
	PeakFloorRatio    float64       `yaml:"peak_floor_ratio"`
	InitialNoiseFloor float64       `yaml:"initial_noise_floor"`
	InitialPeak       float64       `yaml:"initial_peak"`
}

// PatternConfig tunes beat density, intensity, and the mode machine.
// The transition thresholds are heuristics tuned by ear.
type PatternConfig struct {
	BeatWindow       time.Duration `yaml:"beat_window"`
	ExpectedBeats    float64       `yaml:"expected_beats"`
	EnergyGain       float64       `yaml:"energy_gain"`
	EnergyWeight     float64       `yaml:"energy_weight"`
	DensityWeight    float64       `yaml:"density_weight"`
	CentroidWeight   float64       `yaml:"centroid_weight"`
	IntensityAlpha   float64       `yaml:"intensity_alpha"`
	ModeHold         time.Duration `yaml:"mode_hold"`
	AmbientEnergy    float64       `yaml:"ambient_energy"`
	AmbientCentroid  float64       `yaml:"ambient_centroid"`
	RhythmicEnergy   float64       `yaml:"rhythmic_energy"`
	RhythmicCentroid float64       `yaml:"rhythmic_centroid"`
}

// ColorConfig tunes HSV synthesis and smoothing.
type ColorConfig struct {
	HueAlpha        float64 `yaml:"hue_alpha"`
	SaturationAlpha float64 `yaml:"saturation_alpha"`
	BrightnessAlpha float64 `yaml:"brightness_alpha"`
	BandAlpha       float64 `yaml:"band_alpha"`
	CentroidAlpha   float64 `yaml:"centroid_alpha"`
	RolloffAlpha    float64 `yaml:"rolloff_alpha"`
	PulseGain       float64 `yaml:"pulse_gain"`
	PulseDecay      float64 `yaml:"pulse_decay"`
	MinSaturation   int     `yaml:"min_saturation"`
	MaxSaturation   int     `yaml:"max_saturation"`
	MinBrightness   int     `yaml:"min_brightness"`
	MaxBrightness   int     `yaml:"max_brightness"`
	InitialHue      float64 `yaml:"initial_hue"`
	InitialSat      float64 `yaml:"initial_saturation"`
	InitialBright   float64 `yaml:"initial_brightness"`
}

// DeviceConfig describes the light and its music-mode session.
type DeviceConfig struct {
	// Address is ip or ip:port of the light. Empty triggers discovery.
	Address         string        `yaml:"address"`
	ControlPort     int           `yaml:"control_port"`
	MusicPort       int           `yaml:"music_port"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	AcceptTimeout   time.Duration `yaml:"accept_timeout"`
	DisableTimeout  time.Duration `yaml:"disable_timeout"`
	CommandInterval time.Duration `yaml:"command_interval"`
	TransitionMs    int           `yaml:"transition_ms"`
	ProbeAddress    string        `yaml:"probe_address"`
}

// DriverConfig tunes the frame loop.
type DriverConfig struct {
	ReadBackoff time.Duration `yaml:"read_backoff"`
}

// LogConfig selects log verbosity and the terminal visualizer.
type LogConfig struct {
	Level     LogLevel `yaml:"level"`
	Visualize bool     `yaml:"visualize"`
}

// MetricsConfig enables the Prometheus scrape endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// LogLevel is a textual slog level.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// IsValid reports whether l is a known level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

const (
	// DefaultControlPort is the light's TCP control port.
	DefaultControlPort = 55443
	// DefaultMusicPort is the local port the light connects back to.
	DefaultMusicPort = 54321
)

// Default returns the tuned defaults for ~44.1kHz capture with 2048-sample frames.
func Default() Config {
	return Config{
		Audio: AudioConfig{
			SampleRate:  44100,
			FrameSize:   2048,
			Channels:    2,
			DeviceIndex: -1,
		},
		Spectrum: SpectrumConfig{
			Bass:         Band{Low: 20, High: 250},
			Mid:          Band{Low: 250, High: 2000},
			High:         Band{Low: 2000, High: 8000},
			RolloffRatio: 0.85,
		},
		Beat: BeatConfig{
			HistorySize:       48,
			Threshold:         1.35,
			MinInterval:       160 * time.Millisecond,
			NoiseAlpha:        0.01,
			PeakRiseAlpha:     0.34,
			PeakDecayAlpha:    0.02,
			PeakFloorRatio:    1.5,
			InitialNoiseFloor: 1e-3,
			InitialPeak:       1e-2,
		},
		Pattern: PatternConfig{
			BeatWindow:       2 * time.Second,
			ExpectedBeats:    8,
			EnergyGain:       50,
			EnergyWeight:     0.65,
			DensityWeight:    0.25,
			CentroidWeight:   0.1,
			IntensityAlpha:   0.18,
			ModeHold:         2500 * time.Millisecond,
			AmbientEnergy:    0.6,
			AmbientCentroid:  0.45,
			RhythmicEnergy:   0.35,
			RhythmicCentroid: 0.3,
		},
		Color: ColorConfig{
			HueAlpha:        0.08,
			SaturationAlpha: 0.06,
			BrightnessAlpha: 0.10,
			BandAlpha:       0.05,
			CentroidAlpha:   0.12,
			RolloffAlpha:    0.10,
			PulseGain:       1.2,
			PulseDecay:      0.88,
			MinSaturation:   0,
			MaxSaturation:   100,
			MinBrightness:   5,
			MaxBrightness:   100,
			InitialHue:      0,
			InitialSat:      50,
			InitialBright:   50,
		},
		Device: DeviceConfig{
			ControlPort:     DefaultControlPort,
			MusicPort:       DefaultMusicPort,
			ConnectTimeout:  5 * time.Second,
			AcceptTimeout:   30 * time.Second,
			DisableTimeout:  3 * time.Second,
			CommandInterval: 60 * time.Millisecond,
			TransitionMs:    50,
			ProbeAddress:    "8.8.8.8:80",
		},
		Driver: DriverConfig{
			ReadBackoff: 100 * time.Millisecond,
		},
		Log: LogConfig{
			Level: LogLevelInfo,
		},
	}
}
