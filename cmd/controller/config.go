package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/cybre/yeelight-audio-sync/internal/audio"
	"github.com/cybre/yeelight-audio-sync/internal/audio/portaudio"
	"github.com/cybre/yeelight-audio-sync/internal/config"
	"github.com/cybre/yeelight-audio-sync/internal/ui"
	"github.com/cybre/yeelight-audio-sync/internal/yeelight"
)

// loadConfig layers defaults, the YAML file, the environment and the flags,
// then validates the result.
func loadConfig(opts runtimeOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.ApplyEnv(cfg, os.LookupEnv)
	if err != nil {
		return config.Config{}, err
	}

	cfg = applyFlags(cfg, opts)

	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func resolveLights(ctx context.Context, logger *slog.Logger, cfg config.DeviceConfig) ([]yeelight.DeviceInfo, error) {
	if cfg.Address != "" {
		address := cfg.Address
		if _, _, err := net.SplitHostPort(address); err != nil {
			address = net.JoinHostPort(address, strconv.Itoa(cfg.ControlPort))
		}
		addr, err := yeelight.ParseAddress(address)
		if err != nil {
			return nil, eris.Wrap(err, "parse light address")
		}
		return []yeelight.DeviceInfo{{Addr: addr}}, nil
	}

	logger.Info("discovering lights")
	lights, err := yeelight.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if len(lights) == 0 {
		return nil, eris.New("no lights found; pass -bulb ip[:port]")
	}
	for _, l := range lights {
		if len(l.Support) > 0 && !l.Supports("set_music") {
			logger.Warn("light does not advertise music mode", slog.String("light", l.Label()))
		}
	}
	return lights, nil
}

func selectLightAndDevice(
	lights []yeelight.DeviceInfo,
	devices []*portaudio.DeviceInfo,
	defaultDeviceIndex int,
	cfg config.Config,
) (yeelight.DeviceInfo, *portaudio.DeviceInfo, error) {
	if len(lights) == 0 {
		return yeelight.DeviceInfo{}, nil, eris.New("no lights available")
	}
	if len(devices) == 0 {
		return yeelight.DeviceInfo{}, nil, eris.New("no input devices available")
	}

	requested := cfg.Audio.DeviceIndex
	if requested >= len(devices) {
		return yeelight.DeviceInfo{}, nil, eris.Errorf("invalid device index %d", requested)
	}

	choices := []ui.Choice{
		{
			Name:     "Light",
			Title:    "Select a Yeelight",
			Options:  lightOptions(lights),
			Required: cfg.Device.Address == "" && len(lights) > 1,
		},
		{
			Name:     "Device",
			Title:    "Select an audio input device",
			Options:  deviceOptions(devices),
			Initial:  audio.InitialDeviceIndex(requested, defaultDeviceIndex, len(devices)),
			Required: requested < 0,
		},
	}

	selected, err := ui.RunSetup(choices)
	if err != nil {
		if !eris.Is(err, ui.ErrNoInteractiveTTY) {
			return yeelight.DeviceInfo{}, nil, err
		}
		selected = ui.DefaultSelection(choices)
	}

	return lights[selected[0]], devices[selected[1]], nil
}

func lightOptions(lights []yeelight.DeviceInfo) []ui.Option {
	options := make([]ui.Option, len(lights))
	for i, l := range lights {
		id, model, fw := l.ID, l.Model, l.FirmwareVersion
		if id == "" {
			id = "n/a"
		}
		if model == "" {
			model = "n/a"
		}
		if fw == "" {
			fw = "n/a"
		}
		options[i] = ui.Option{
			Label: fmt.Sprintf("%s [%s] · model:%s · fw:%s", l.Label(), id, model, fw),
		}
	}
	return options
}

func deviceOptions(devices []*portaudio.DeviceInfo) []ui.Option {
	options := make([]ui.Option, len(devices))
	for i, dev := range devices {
		options[i] = ui.Option{
			Label: fmt.Sprintf(
				"[%d] %s · %.0fHz · in:%d · latency:%.1fms",
				i,
				dev.Name,
				dev.DefaultSampleRate,
				dev.MaxInputChannels,
				dev.DefaultLowInputLatency.Seconds()*1000,
			),
		}
	}
	return options
}
