package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func options(labels ...string) []Option {
	opts := make([]Option, len(labels))
	for i, l := range labels {
		opts[i] = Option{Label: l}
	}
	return opts
}

func press(t *testing.T, m setupModel, keys ...tea.KeyMsg) setupModel {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		var ok bool
		m, ok = next.(setupModel)
		require.True(t, ok)
	}
	return m
}

var (
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyLeft  = tea.KeyMsg{Type: tea.KeyLeft}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func lightAndDevice() []Choice {
	return []Choice{
		{Name: "Light", Title: "Select a Yeelight", Options: options("desk", "shelf"), Required: true},
		{Name: "Device", Title: "Select an audio input device", Options: options("mic", "monitor", "line"), Initial: 1, Required: true},
	}
}

func TestSetupWalksEveryRequiredChoice(t *testing.T) {
	m := newSetupModel(lightAndDevice())
	assert.Equal(t, 0, m.cursor)

	m = press(t, m, keyDown, keyEnter)
	assert.Equal(t, 1, m.step)
	assert.Equal(t, 1, m.cursor, "cursor starts at the initial device")

	m = press(t, m, keyDown, keyEnter)
	assert.True(t, m.onSummary())
	assert.Contains(t, m.View(), "shelf")
	assert.Contains(t, m.View(), "line")

	m = press(t, m, keyEnter)
	assert.True(t, m.done)
	assert.NoError(t, m.err)
	assert.Equal(t, []int{1, 2}, m.selected)
}

func TestSetupBackKeepsSelection(t *testing.T) {
	m := newSetupModel(lightAndDevice())
	m = press(t, m, keyEnter, keyUp, keyEnter, keyLeft)

	assert.Equal(t, 1, m.step)
	assert.Equal(t, 0, m.cursor)

	m = press(t, m, keyLeft)
	assert.Equal(t, 0, m.step)
	assert.Equal(t, []int{0, 0}, m.selected)
}

func TestSetupCursorWraps(t *testing.T) {
	m := newSetupModel(lightAndDevice())
	m = press(t, m, keyUp)
	assert.Equal(t, 1, m.cursor)
}

func TestSetupAbort(t *testing.T) {
	m := press(t, newSetupModel(lightAndDevice()), keyEsc)
	assert.ErrorIs(t, m.err, ErrSelectionAborted)
}

func TestSetupSkipsChoicesThatAreNotRequired(t *testing.T) {
	choices := lightAndDevice()
	choices[0].Required = false
	choices[0].Initial = 5

	m := newSetupModel(choices)
	require.Len(t, m.steps, 1)
	assert.Equal(t, []int{1, 1}, m.selected, "initial index is clamped")

	m = press(t, m, keyEnter, keyEnter)
	assert.True(t, m.done)
}

func TestRunSetupWithoutRequiredChoicesReturnsDefaults(t *testing.T) {
	choices := lightAndDevice()
	for i := range choices {
		choices[i].Required = false
	}

	got, err := RunSetup(choices)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, got)
	assert.Equal(t, got, DefaultSelection(choices))
}

func TestWrapIndex(t *testing.T) {
	assert.Equal(t, 0, wrapIndex(3, 3))
	assert.Equal(t, 2, wrapIndex(-1, 3))
	assert.Equal(t, 0, wrapIndex(5, 0))
}
