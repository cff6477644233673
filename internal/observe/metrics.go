// Package observe provides the OpenTelemetry metric instruments recorded by
// the frame loop and the device session.
//
// Instruments are created from any [metric.MeterProvider]. [InitProvider]
// wires the SDK provider to a Prometheus exporter for scraping; tests should
// build [Metrics] from an SDK provider with a ManualReader, and callers that
// do not care use [Noop].
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/cybre/yeelight-audio-sync"

// Metrics holds all metric instruments. The underlying OTel types are safe
// for concurrent use.
type Metrics struct {
	// FramesProcessed counts frames that went through the full analysis chain.
	FramesProcessed metric.Int64Counter

	// FramesDropped counts frames skipped for having the wrong length.
	FramesDropped metric.Int64Counter

	// Beats counts accepted beat events.
	Beats metric.Int64Counter

	// ModeSwitches counts pattern mode transitions. Use with attribute:
	//   attribute.String("mode", ...) (the mode entered)
	ModeSwitches metric.Int64Counter

	// CommandsSent counts color+brightness batches written to the light.
	CommandsSent metric.Int64Counter

	// CommandsThrottled counts batches dropped by the rate limiter.
	CommandsThrottled metric.Int64Counter

	// SessionErrors counts fatal session failures. Use with attribute:
	//   attribute.String("kind", ...)
	SessionErrors metric.Int64Counter

	// FrameDuration tracks analysis time per frame.
	FrameDuration metric.Float64Histogram
}

// frameBuckets are histogram boundaries (seconds) around the ~46ms frame budget.
var frameBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.FramesProcessed, "yeelight.frames.processed", "Audio frames analyzed."},
		{&met.FramesDropped, "yeelight.frames.dropped", "Audio frames skipped due to unexpected length."},
		{&met.Beats, "yeelight.beats", "Beats detected."},
		{&met.ModeSwitches, "yeelight.mode.switches", "Pattern mode transitions by entered mode."},
		{&met.CommandsSent, "yeelight.commands.sent", "Color and brightness batches sent to the light."},
		{&met.CommandsThrottled, "yeelight.commands.throttled", "Batches dropped by the command rate limit."},
		{&met.SessionErrors, "yeelight.session.errors", "Fatal device session errors by kind."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	if met.FrameDuration, err = m.Float64Histogram("yeelight.frame.duration",
		metric.WithDescription("Time spent analyzing one audio frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(frameBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Noop returns Metrics backed by a no-op provider.
func Noop() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: failed to create no-op metrics: " + err.Error())
	}
	return m
}

// RecordModeSwitch counts a transition into mode.
func (m *Metrics) RecordModeSwitch(ctx context.Context, mode string) {
	m.ModeSwitches.Add(ctx, 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordSessionError counts a fatal session failure of the given kind.
func (m *Metrics) RecordSessionError(ctx context.Context, kind string) {
	m.SessionErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
