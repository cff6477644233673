package main

import (
	"flag"
	"io"
	"time"

	"github.com/cybre/yeelight-audio-sync/internal/config"
)

type runtimeOptions struct {
	configPath    string
	envFile       string
	bulbAddr      string
	deviceIndex   int
	sampleRate    float64
	frameSize     int
	channels      int
	latency       time.Duration
	musicPort     int
	maxBrightness int
	metricsAddr   string
	visualize     bool
	debug         bool

	// set holds the flags given on the command line.
	set map[string]bool
}

func parseCLIFlags(args []string, output io.Writer) (runtimeOptions, error) {
	var (
		opts      runtimeOptions
		latencyMs int
	)

	fs := flag.NewFlagSet("controller", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&opts.configPath, "config", "", "YAML config file (optional)")
	fs.StringVar(&opts.envFile, "env-file", ".env", "dotenv file with YEELIGHT_* overrides (ignored when missing)")
	fs.StringVar(&opts.bulbAddr, "bulb", "", "yeelight address (ip[:port], default port 55443); discovered when empty")
	fs.IntVar(&opts.deviceIndex, "device", -1, "audio input device index (leave blank to choose interactively)")
	fs.Float64Var(&opts.sampleRate, "sample-rate", 0, "capture sample rate (0 = device default)")
	fs.IntVar(&opts.frameSize, "frame-size", 2048, "analysis frame size in samples")
	fs.IntVar(&opts.channels, "channels", 2, "number of input channels to capture (<= device max)")
	fs.IntVar(&latencyMs, "latency-ms", 0, "override input latency in milliseconds (0 = device default)")
	fs.IntVar(&opts.musicPort, "music-port", config.DefaultMusicPort, "local port the light connects back to")
	fs.IntVar(&opts.maxBrightness, "max-brightness", 100, "upper brightness limit sent to the light (1-100)")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9464)")
	fs.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	fs.BoolVar(&opts.visualize, "visualize", false, "render realtime terminal visualization (logs go to stderr)")

	if err := fs.Parse(args); err != nil {
		return runtimeOptions{}, err
	}

	opts.latency = time.Duration(latencyMs) * time.Millisecond
	opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	return opts, nil
}

// applyFlags overrides cfg with every flag given explicitly.
func applyFlags(cfg config.Config, opts runtimeOptions) config.Config {
	if opts.set["bulb"] {
		cfg.Device.Address = opts.bulbAddr
	}
	if opts.set["device"] {
		cfg.Audio.DeviceIndex = opts.deviceIndex
	}
	if opts.set["sample-rate"] {
		cfg.Audio.SampleRate = opts.sampleRate
	}
	if opts.set["frame-size"] {
		cfg.Audio.FrameSize = opts.frameSize
	}
	if opts.set["channels"] {
		cfg.Audio.Channels = opts.channels
	}
	if opts.set["latency-ms"] {
		cfg.Audio.Latency = opts.latency
	}
	if opts.set["music-port"] {
		cfg.Device.MusicPort = opts.musicPort
	}
	if opts.set["max-brightness"] {
		cfg.Color.MaxBrightness = opts.maxBrightness
	}
	if opts.set["metrics-addr"] {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if opts.set["debug"] && opts.debug {
		cfg.Log.Level = config.LogLevelDebug
	}
	if opts.set["visualize"] {
		cfg.Log.Visualize = opts.visualize
	}
	return cfg
}
