// Package pipeline runs the frame loop that turns captured audio into light
// commands: read, analyze, detect beats, classify, synthesize color, send.
package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cybre/yeelight-audio-sync/internal/audio"
	"github.com/cybre/yeelight-audio-sync/internal/beat"
	"github.com/cybre/yeelight-audio-sync/internal/config"
	"github.com/cybre/yeelight-audio-sync/internal/controller"
	"github.com/cybre/yeelight-audio-sync/internal/dsp"
	"github.com/cybre/yeelight-audio-sync/internal/observe"
	"github.com/cybre/yeelight-audio-sync/internal/patterns"
	"github.com/cybre/yeelight-audio-sync/internal/yeelight"
)

// Session is the light-side contract the driver needs. *yeelight.Session
// satisfies it.
type Session interface {
	Start(ctx context.Context) error
	Send(ctx context.Context, hue, saturation, brightness int) (bool, error)
	Teardown(ctx context.Context) yeelight.TeardownResult
}

// Snapshot is everything computed for one frame.
type Snapshot struct {
	Timestamp time.Time
	Features  dsp.Features
	Beat      beat.Event
	State     patterns.State
	Color     controller.Color
	LED       controller.Snapshot
	Sent      bool
}

// Observer receives a Snapshot after every processed frame, on the loop
// goroutine. It must not block.
type Observer func(Snapshot)

// Driver owns the analysis chain and runs it against one source and one
// session. Only Stop may be called from another goroutine.
type Driver struct {
	cfg     config.DriverConfig
	source  audio.Source
	session Session

	analyzer *dsp.Analyzer
	detector *beat.Detector
	patterns *patterns.Analyzer
	led      *controller.LEDController

	logger   *slog.Logger
	metrics  *observe.Metrics
	observer Observer
	now      func() time.Time

	running atomic.Bool
}

// Option configures optional Driver behaviour.
type Option func(*Driver)

// WithLogger sets the driver logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithMetrics records frame and beat counts on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithObserver registers a per-frame callback.
func WithObserver(o Observer) Option {
	return func(d *Driver) { d.observer = o }
}

// WithClock replaces time.Now for frame timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// NewDriver builds the analysis chain from cfg. sampleRate is the effective
// capture rate, which may differ from cfg.Audio.SampleRate when the device
// default is used.
func NewDriver(cfg config.Config, sampleRate float64, source audio.Source, session Session, opts ...Option) *Driver {
	d := &Driver{
		cfg:      cfg.Driver,
		source:   source,
		session:  session,
		analyzer: dsp.NewAnalyzer(sampleRate, cfg.Audio.FrameSize, cfg.Spectrum),
		detector: beat.NewDetector(cfg.Beat),
		patterns: patterns.NewAnalyzer(cfg.Pattern),
		led:      controller.NewLEDController(cfg.Color),
		logger:   slog.Default(),
		metrics:  observe.Noop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}

	d.patterns.OnModeChange = d.onModeChange

	return d
}

// Run starts the session, processes frames until ctx ends, Stop is called or
// a send fails, and always tears the session down on the way out.
// Cancellation is a normal stop and returns nil.
func (d *Driver) Run(ctx context.Context) error {
	d.running.Store(true)
	defer d.running.Store(false)

	defer func() {
		res := d.session.Teardown(context.WithoutCancel(ctx))
		if res.LocalErr != nil || res.RemoteErr != nil {
			d.logger.Warn("teardown finished with errors",
				slog.Any("local_error", res.LocalErr),
				slog.Any("remote_error", res.RemoteErr),
			)
		}
	}()

	if err := d.session.Start(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return eris.Wrap(err, "start music mode")
	}

	for d.running.Load() {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := d.source.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if eris.Is(err, audio.ErrClosed) {
				return eris.Wrap(err, "read audio frame")
			}

			d.logger.Warn("audio read failed, retrying", slog.Any("error", err))
			if !d.sleep(ctx, d.cfg.ReadBackoff) {
				return nil
			}
			continue
		}

		if err := d.step(ctx, frame); err != nil {
			d.running.Store(false)
			return err
		}
	}

	return nil
}

// Stop asks Run to return after the current frame.
func (d *Driver) Stop() {
	d.running.Store(false)
}

// Running reports whether Run is processing frames.
func (d *Driver) Running() bool {
	return d.running.Load()
}

func (d *Driver) step(ctx context.Context, frame []float64) error {
	ts := d.now()

	features, ok := d.analyzer.Process(frame, ts)
	if !ok {
		d.metrics.FramesDropped.Add(ctx, 1)
		d.logger.Debug("skipping frame with unexpected length",
			slog.Int("got", len(frame)),
			slog.Int("want", d.analyzer.FrameSize()),
		)
		return nil
	}

	ev := d.detector.Detect(ts, features.RMS)
	state := d.patterns.Process(features, ev)
	color := d.led.Update(features, state, ev)

	d.metrics.FramesProcessed.Add(ctx, 1)
	d.metrics.FrameDuration.Record(ctx, d.now().Sub(ts).Seconds())

	if ev.Beat {
		d.metrics.Beats.Add(ctx, 1)
		d.logger.Debug("beat",
			slog.String("mode", state.Mode.String()),
			slog.Float64("strength", ev.Strength),
			slog.Int("hue", color.Hue),
			slog.Int("sat", color.Saturation),
			slog.Int("bright", color.Brightness),
			slog.Float64("bass", features.Bass()),
			slog.Float64("mid", features.Mid()),
			slog.Float64("high", features.High()),
		)
	}

	sent, err := d.session.Send(ctx, color.Hue, color.Saturation, color.Brightness)
	if err != nil {
		return eris.Wrap(err, "send color to light")
	}

	if d.observer != nil {
		d.observer(Snapshot{
			Timestamp: ts,
			Features:  features,
			Beat:      ev,
			State:     state,
			Color:     color,
			LED:       d.led.Snapshot(),
			Sent:      sent,
		})
	}

	return nil
}

func (d *Driver) onModeChange(from, to patterns.Mode, ts time.Time) {
	d.metrics.RecordModeSwitch(context.Background(), to.String())
	d.logger.Info("pattern mode changed",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
		slog.Time("at", ts),
	)
}

func (d *Driver) sleep(ctx context.Context, wait time.Duration) bool {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
