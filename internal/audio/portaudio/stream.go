// Package portaudio captures interleaved PCM from PortAudio into an
// audio.Queue. It is the only package that links against libportaudio.
package portaudio

import (
	"log/slog"
	"sync"
	"time"

	pa "github.com/gordonklaus/portaudio"
	"github.com/rotisserie/eris"

	"github.com/cybre/yeelight-audio-sync/internal/audio"
)

// DeviceInfo is PortAudio's device description.
type DeviceInfo = pa.DeviceInfo

// StreamConfig describes the capture stream.
type StreamConfig struct {
	Device     *DeviceInfo
	SampleRate float64
	FrameSize  int
	Channels   int
	// Latency overrides the device's default low input latency when positive.
	Latency time.Duration
	// Buffer is how many frames may queue before the oldest is dropped.
	Buffer int
}

// Stream is an audio.Source fed by a PortAudio callback stream.
type Stream struct {
	*audio.Queue
	stream *pa.Stream

	closeOnce sync.Once
	closeErr  error
}

// Initialize starts PortAudio and returns its terminate function.
func Initialize() (func() error, error) {
	if err := pa.Initialize(); err != nil {
		return nil, eris.Wrap(err, "initialize PortAudio")
	}
	return pa.Terminate, nil
}

// Devices lists every PortAudio device and the index of the default input.
// The default index is -1 when no default input exists.
func Devices() ([]*DeviceInfo, int, error) {
	devices, err := pa.Devices()
	if err != nil {
		return nil, -1, eris.Wrap(err, "enumerate audio devices")
	}

	def, err := pa.DefaultInputDevice()
	if err != nil {
		return devices, -1, nil
	}

	return devices, def.Index, nil
}

// Open opens and starts an input stream on cfg.Device. PortAudio must
// already be initialized.
func Open(cfg StreamConfig, logger *slog.Logger) (*Stream, error) {
	if cfg.Device == nil {
		return nil, eris.New("audio device is not specified")
	}

	logger.Info("using audio input device",
		slog.String("name", cfg.Device.Name),
		slog.Float64("sample_rate", cfg.SampleRate),
		slog.Int("channels", cfg.Channels),
		slog.Int("frame_size", cfg.FrameSize))

	params := pa.StreamParameters{
		Input: pa.StreamDeviceParameters{
			Device:   cfg.Device,
			Channels: cfg.Channels,
			Latency:  cfg.Device.DefaultLowInputLatency,
		},
		SampleRate:      cfg.SampleRate,
		FramesPerBuffer: cfg.FrameSize,
	}
	if cfg.Latency > 0 {
		params.Input.Latency = cfg.Latency
	}

	s := &Stream{Queue: audio.NewQueue(cfg.Channels, cfg.Buffer)}

	stream, err := pa.OpenStream(params, s.Push)
	if err != nil {
		return nil, eris.Wrap(err, "open audio stream")
	}
	s.stream = stream

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		return nil, eris.Wrap(err, "start audio stream")
	}

	return s, nil
}

// Close stops and closes the stream. Pending and future Reads return
// audio.ErrClosed.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.Queue.Close()
		if err := s.stream.Stop(); err != nil {
			s.closeErr = eris.Wrap(err, "stop audio stream")
		}
		if err := s.stream.Close(); err != nil && s.closeErr == nil {
			s.closeErr = eris.Wrap(err, "close audio stream")
		}
	})
	return s.closeErr
}
