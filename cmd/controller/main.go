package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/cybre/yeelight-audio-sync/internal/audio"
	"github.com/cybre/yeelight-audio-sync/internal/audio/portaudio"
	"github.com/cybre/yeelight-audio-sync/internal/config"
	"github.com/cybre/yeelight-audio-sync/internal/observe"
	"github.com/cybre/yeelight-audio-sync/internal/pipeline"
	"github.com/cybre/yeelight-audio-sync/internal/ui"
	"github.com/cybre/yeelight-audio-sync/internal/yeelight"
)

const shutdownTimeout = 3 * time.Second

func main() {
	opts, err := parseCLIFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runController(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func runController(ctx context.Context, opts runtimeOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Visualize)

	metrics, shutdownMetrics, err := setupMetrics(ctx, cfg.Metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownMetrics(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("failed to shut down metrics provider", slog.Any("error", err))
		}
	}()

	lights, err := resolveLights(ctx, logger, cfg.Device)
	if err != nil {
		return err
	}

	terminate, err := portaudio.Initialize()
	if err != nil {
		return err
	}
	defer terminate()

	devices, defaultDevice, err := portaudio.Devices()
	if err != nil {
		return err
	}

	light, device, err := selectLightAndDevice(lights, devices, defaultDevice, cfg)
	if err != nil {
		return eris.Wrap(err, "select light/device")
	}
	if device.MaxInputChannels < 1 {
		return eris.Errorf("device %s has no input channels; select a loopback/monitor device", device.Name)
	}

	channels := audio.ChannelCount(cfg.Audio.Channels, device.MaxInputChannels)
	if cfg.Audio.Channels > device.MaxInputChannels {
		logger.Warn("requested channels exceed device capabilities",
			slog.Int("requested", cfg.Audio.Channels),
			slog.Int("max", device.MaxInputChannels),
			slog.Int("using", channels),
		)
	}
	sampleRate := audio.SampleRate(cfg.Audio.SampleRate, device.DefaultSampleRate)

	source, err := portaudio.Open(portaudio.StreamConfig{
		Device:     device,
		SampleRate: sampleRate,
		FrameSize:  cfg.Audio.FrameSize,
		Channels:   channels,
		Latency:    cfg.Audio.Latency,
	}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := source.Close(); err != nil {
			logger.Warn("failed to close audio stream", slog.Any("error", err))
		}
	}()

	logger.Info("using yeelight",
		slog.String("addr", light.Addr.String()),
		slog.String("id", light.ID),
		slog.String("name", light.Name),
		slog.String("model", light.Model),
		slog.String("firmware_version", light.FirmwareVersion),
	)

	session := yeelight.NewSession(light.Addr, cfg.Device,
		yeelight.WithLogger(logger),
		yeelight.WithMetrics(metrics),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	driverOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(metrics),
	}
	if cfg.Log.Visualize {
		viz := ui.NewVisualizer(cancel)
		defer viz.Close()
		driverOpts = append(driverOpts, pipeline.WithObserver(viz.Observe))
	}

	driver := pipeline.NewDriver(cfg, sampleRate, source, session, driverOpts...)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return driver.Run(gctx)
	})

	if cfg.Metrics.Addr != "" {
		serveMetrics(gctx, g, logger, cfg.Metrics.Addr)
	}

	if err := g.Wait(); err != nil {
		logger.Error("audio reactive loop failed",
			slog.String("class", errorClass(err)),
			slog.Any("error", err),
		)
		return err
	}

	logger.Info("stopped")
	return nil
}

func setupLogger(level config.LogLevel, visualize bool) *slog.Logger {
	logOutput := os.Stdout
	logLevel := slog.LevelInfo
	switch level {
	case config.LogLevelDebug:
		logLevel = slog.LevelDebug
	case config.LogLevelWarn:
		logLevel = slog.LevelWarn
	case config.LogLevelError:
		logLevel = slog.LevelError
	}
	if visualize && logLevel == slog.LevelInfo {
		logLevel = slog.LevelWarn
	}
	if visualize {
		logOutput = os.Stderr
	}

	logger := slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	return logger
}

func setupMetrics(ctx context.Context, cfg config.MetricsConfig) (*observe.Metrics, func(context.Context) error, error) {
	if cfg.Addr == "" {
		return observe.Noop(), func(context.Context) error { return nil }, nil
	}

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		return nil, nil, err
	}

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		_ = shutdown(ctx)
		return nil, nil, eris.Wrap(err, "create metric instruments")
	}

	return metrics, shutdown, nil
}

func serveMetrics(ctx context.Context, g *errgroup.Group, logger *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observe.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("serving metrics", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "serve metrics")
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}

// errorClass names the failure for the final log line.
func errorClass(err error) string {
	switch {
	case eris.Is(err, yeelight.ErrModeRejected),
		eris.Is(err, yeelight.ErrAcceptTimeout),
		eris.Is(err, yeelight.ErrConnect):
		return "device_connect"
	case eris.Is(err, yeelight.ErrSendFailed):
		return "device_send"
	case eris.Is(err, audio.ErrClosed), eris.Is(err, audio.ErrOverflow):
		return "audio"
	default:
		return "other"
	}
}
