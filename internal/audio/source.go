// Package audio defines the frame source the analysis loop reads from and
// the buffering shared by capture backends.
package audio

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"

	"github.com/cybre/yeelight-audio-sync/internal/dsp"
)

const defaultQueueSize = 32

var (
	// ErrOverflow reports that frames were dropped because the reader fell
	// behind. The next Read resumes with the oldest buffered frame.
	ErrOverflow = eris.New("audio input overflowed")
	// ErrClosed is returned by Read after Close.
	ErrClosed = eris.New("audio source closed")
)

// Source yields fixed-size mono frames.
type Source interface {
	// Read blocks until the next frame is available. The returned slice is
	// only valid until the next call.
	Read(ctx context.Context) ([]float64, error)
}

// Queue is a Source fed by a capture callback. Pushed frames are interleaved
// PCM; Read downmixes them to mono. When full, the oldest frame is dropped.
type Queue struct {
	frames   chan []float32
	channels int
	mono     []float64
	dropped  atomic.Int64

	closeOnce sync.Once
	closed    chan struct{}
}

// NewQueue holds up to size frames of the given channel count.
func NewQueue(channels, size int) *Queue {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Queue{
		frames:   make(chan []float32, size),
		channels: channels,
		closed:   make(chan struct{}),
	}
}

// Push copies in onto the queue. It never blocks, so it is safe to call from
// a realtime audio callback.
func (q *Queue) Push(in []float32) {
	frame := make([]float32, len(in))
	copy(frame, in)

	select {
	case q.frames <- frame:
		return
	default:
	}

	select {
	case <-q.frames:
		q.dropped.Add(1)
	default:
	}
	select {
	case q.frames <- frame:
	default:
		q.dropped.Add(1)
	}
}

func (q *Queue) Read(ctx context.Context) ([]float64, error) {
	if n := q.dropped.Swap(0); n > 0 {
		return nil, eris.Wrapf(ErrOverflow, "%d frames dropped", n)
	}

	select {
	case frame := <-q.frames:
		return q.downmix(frame), nil
	default:
	}

	select {
	case frame := <-q.frames:
		return q.downmix(frame), nil
	case <-q.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *Queue) downmix(frame []float32) []float64 {
	q.mono = dsp.ToMono(frame, q.channels, q.mono)
	return q.mono
}

// Close wakes pending Reads. Frames already queued are still delivered,
// after which Read returns ErrClosed.
func (q *Queue) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}
