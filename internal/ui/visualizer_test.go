package ui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"

	"github.com/cybre/yeelight-audio-sync/internal/beat"
	"github.com/cybre/yeelight-audio-sync/internal/controller"
	"github.com/cybre/yeelight-audio-sync/internal/patterns"
	"github.com/cybre/yeelight-audio-sync/internal/pipeline"
)

func TestFrameFromSnapshot(t *testing.T) {
	snap := pipeline.Snapshot{
		Beat:  beat.Event{Beat: true, Strength: 0.7},
		State: patterns.State{Mode: patterns.ModeAmbient, Intensity: 0.4, BeatDensity: 0.25, EnergyNorm: 0.6},
		Color: controller.Color{Hue: 200, Saturation: 70, Brightness: 40},
		LED: controller.Snapshot{
			Hue: 200.4, Saturation: 70.2, Brightness: 39.8, BeatPulse: 0.84,
			Bands: [3]float64{0.5, 0.3, 0.2}, Centroid: 0.35, Rolloff: 0.6,
		},
	}

	f := FrameFromSnapshot(snap)
	assert.Equal(t, "ambient", f.Mode)
	assert.Equal(t, [3]int{200, 70, 40}, f.Sent)
	assert.Equal(t, 200.4, f.Hue)
	assert.True(t, f.Beat)
	assert.Equal(t, 0.7, f.BeatStrength)
	assert.Equal(t, 0.84, f.BeatPulse)
	assert.Equal(t, 0.6, f.Energy)
	assert.Equal(t, [3]float64{0.5, 0.3, 0.2}, f.Bands)
}

func TestBarFill(t *testing.T) {
	assert.Equal(t, 0, barFill(0, 32))
	assert.Equal(t, 1, barFill(0.001, 32))
	assert.Equal(t, 16, barFill(0.5, 32))
	assert.Equal(t, 32, barFill(3, 32))
	assert.Equal(t, 0, barFill(-1, 32))
}

func TestHexColorFromHSV(t *testing.T) {
	assert.Equal(t, "#ff0000", hexColorFromHSV(0, 1, 1))
	assert.Equal(t, "#ff0000", hexColorFromHSV(360, 1, 1))
	assert.Equal(t, "#000000", hexColorFromHSV(120, 1, -2))
}

func TestVisualizerModelCountsFrames(t *testing.T) {
	m := &visualizerModel{}
	assert.Contains(t, m.View(), "Waiting")

	now := time.Now()
	m.Update(frameMsg{frame: Frame{Mode: "rhythmic"}, receivedAt: now})
	m.Update(frameMsg{frame: Frame{Mode: "rhythmic", Beat: true}, receivedAt: now})

	assert.Equal(t, 2, m.frames)
	assert.Equal(t, 1, m.beats)
	view := m.View()
	assert.Contains(t, view, "rhythmic")
	assert.Contains(t, view, "Bass")
	assert.Contains(t, view, "2 frames")
}

func TestVisualizerModelQuitRunsExitOnce(t *testing.T) {
	calls := 0
	m := &visualizerModel{onExit: func() { calls++ }}

	_, cmd := m.Update(keyEsc)
	assert.NotNil(t, cmd)
	m.Update(keyEsc)
	assert.Equal(t, 1, calls)
}

func TestObserveDoesNotWaitForRenderer(t *testing.T) {
	release := make(chan struct{})
	got := make(chan Frame, 16)
	v := newVisualizer(func(msg tea.Msg) {
		<-release
		got <- msg.(frameMsg).frame
	})

	returned := make(chan struct{})
	go func() {
		for hue := 1; hue <= 10; hue++ {
			v.Observe(pipeline.Snapshot{
				Beat:  beat.Event{Beat: true},
				Color: controller.Color{Hue: hue},
			})
		}
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Observe waited for a busy renderer")
	}

	close(release)
	deadline := time.After(time.Second)
	var last Frame
	for last.Sent[0] != 10 {
		select {
		case last = <-got:
		case <-deadline:
			t.Fatalf("newest frame never reached the renderer, last hue %d", last.Sent[0])
		}
	}

	v.Close()
}
