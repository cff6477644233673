package audio

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadDownmixesStereo(t *testing.T) {
	q := NewQueue(2, 4)
	q.Push([]float32{1, 0, 0.5, 0.5, -1, 1})

	frame, err := q.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.5, 0}, frame)
}

func TestPushCopiesInput(t *testing.T) {
	q := NewQueue(1, 4)
	in := []float32{0.25, 0.5}
	q.Push(in)
	in[0] = 9

	frame, err := q.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.5}, frame)
}

func TestOverflowDropsOldestAndReportsOnce(t *testing.T) {
	q := NewQueue(1, 2)
	q.Push([]float32{1})
	q.Push([]float32{2})
	q.Push([]float32{3})

	_, err := q.Read(context.Background())
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrOverflow))

	frame, err := q.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, frame)

	frame, err = q.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, frame)
}

func TestReadHonoursContext(t *testing.T) {
	q := NewQueue(1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Read(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReadAfterClose(t *testing.T) {
	q := NewQueue(1, 1)
	q.Close()
	q.Close()

	_, err := q.Read(context.Background())
	assert.True(t, eris.Is(err, ErrClosed))
}

func TestReadDrainsQueueBeforeClosed(t *testing.T) {
	q := NewQueue(1, 4)
	q.Push([]float32{1})
	q.Push([]float32{2})
	q.Close()

	for _, want := range []float64{1, 2} {
		frame, err := q.Read(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []float64{want}, frame)
	}

	_, err := q.Read(context.Background())
	assert.True(t, eris.Is(err, ErrClosed))
}

func TestDefaultQueueSize(t *testing.T) {
	q := NewQueue(1, 0)
	assert.Equal(t, defaultQueueSize, cap(q.frames))
}

func TestChannelCount(t *testing.T) {
	assert.Equal(t, 1, ChannelCount(0, 2))
	assert.Equal(t, 2, ChannelCount(2, 2))
	assert.Equal(t, 2, ChannelCount(6, 2))
	assert.Equal(t, 6, ChannelCount(6, 0))
}

func TestSampleRate(t *testing.T) {
	assert.Equal(t, 48000.0, SampleRate(48000, 44100))
	assert.Equal(t, 44100.0, SampleRate(0, 44100))
	assert.Equal(t, 44100.0, SampleRate(0, 0))
}

func TestInitialDeviceIndex(t *testing.T) {
	assert.Equal(t, 0, InitialDeviceIndex(3, 1, 0))
	assert.Equal(t, 2, InitialDeviceIndex(2, 1, 4))
	assert.Equal(t, 1, InitialDeviceIndex(7, 1, 4))
	assert.Equal(t, 0, InitialDeviceIndex(-1, -1, 4))
}
