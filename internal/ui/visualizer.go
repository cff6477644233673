package ui

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/crazy3lf/colorconv"

	"github.com/cybre/yeelight-audio-sync/internal/pipeline"
	"github.com/cybre/yeelight-audio-sync/internal/utils"
)

// Frame is the subset of a pipeline snapshot the visualizer renders.
type Frame struct {
	Mode         string
	Hue          float64
	Saturation   float64
	Brightness   float64
	Sent         [3]int
	Intensity    float64
	Energy       float64
	BeatDensity  float64
	Beat         bool
	BeatStrength float64
	BeatPulse    float64
	Bands        [3]float64
	Centroid     float64
	Rolloff      float64
}

// FrameFromSnapshot flattens a pipeline snapshot for display.
func FrameFromSnapshot(s pipeline.Snapshot) Frame {
	return Frame{
		Mode:         s.State.Mode.String(),
		Hue:          s.LED.Hue,
		Saturation:   s.LED.Saturation,
		Brightness:   s.LED.Brightness,
		Sent:         [3]int{s.Color.Hue, s.Color.Saturation, s.Color.Brightness},
		Intensity:    s.State.Intensity,
		Energy:       s.State.EnergyNorm,
		BeatDensity:  s.State.BeatDensity,
		Beat:         s.Beat.Beat,
		BeatStrength: s.Beat.Strength,
		BeatPulse:    s.LED.BeatPulse,
		Bands:        s.LED.Bands,
		Centroid:     s.LED.Centroid,
		Rolloff:      s.LED.Rolloff,
	}
}

// Visualizer renders frames in the alternate screen. Frames arriving faster
// than the render interval are dropped, except beats.
type Visualizer struct {
	program *tea.Program
	send    func(tea.Msg)
	// frames holds the newest frame not yet handed to the program.
	frames chan frameMsg

	mu       sync.Mutex
	lastSend time.Time
	interval time.Duration

	closeOnce sync.Once
	stop      chan struct{}
	forwarded chan struct{}
	done      chan struct{}
}

type frameMsg struct {
	frame      Frame
	receivedAt time.Time
}

type visualizerModel struct {
	frame       Frame
	lastUpdated time.Time
	ready       bool
	frames      int
	beats       int
	onExit      func()
	exitOnce    sync.Once
}

var (
	vizContainerStyle    = lipgloss.NewStyle().Padding(0, 2)
	vizTimestampStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	vizMetricLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	vizMetricValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	vizBeatActiveStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("197")).Bold(true)
	vizBeatInactiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	vizWaitingStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	vizHintStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
)

const (
	vizBarWidth    = 32
	swatchBlocks   = 18
	renderInterval = 45 * time.Millisecond
)

// NewVisualizer starts the render loop. onExit runs once when the user quits.
func NewVisualizer(onExit func()) *Visualizer {
	model := &visualizerModel{onExit: onExit}
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithoutSignalHandler())

	v := newVisualizer(program.Send)
	v.program = program
	v.done = make(chan struct{})

	go func() {
		defer close(v.done)
		_, _ = program.Run()
	}()

	return v
}

func newVisualizer(send func(tea.Msg)) *Visualizer {
	v := &Visualizer{
		send:      send,
		frames:    make(chan frameMsg, 1),
		interval:  renderInterval,
		stop:      make(chan struct{}),
		forwarded: make(chan struct{}),
	}
	go v.forward()
	return v
}

// forward feeds queued frames to the program. Program.Send blocks while a
// render is in flight, so it never runs on the caller of Observe.
func (v *Visualizer) forward() {
	defer close(v.forwarded)
	for {
		select {
		case <-v.stop:
			return
		case msg := <-v.frames:
			v.send(msg)
		}
	}
}

// Observe is a pipeline.Observer. It never blocks: when the renderer is busy
// the pending frame is replaced by the newest one.
func (v *Visualizer) Observe(s pipeline.Snapshot) {
	now := time.Now()

	v.mu.Lock()
	if !s.Beat.Beat && now.Sub(v.lastSend) < v.interval {
		v.mu.Unlock()
		return
	}
	v.lastSend = now
	v.mu.Unlock()

	msg := frameMsg{frame: FrameFromSnapshot(s), receivedAt: now}
	select {
	case v.frames <- msg:
		return
	default:
	}
	select {
	case <-v.frames:
	default:
	}
	select {
	case v.frames <- msg:
	default:
	}
}

// Close stops the render loop and restores the terminal.
func (v *Visualizer) Close() {
	v.closeOnce.Do(func() {
		close(v.stop)
		if v.program != nil {
			v.program.Quit()
			<-v.done
		}
		<-v.forwarded
	})
}

func (m *visualizerModel) Init() tea.Cmd {
	return nil
}

func (m *visualizerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.frame = msg.frame
		m.lastUpdated = msg.receivedAt
		m.ready = true
		m.frames++
		if msg.frame.Beat {
			m.beats++
		}
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.invokeExit()
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *visualizerModel) View() string {
	if !m.ready {
		header := titleStyle.Render("Yeelight Audio Sync")
		waiting := vizWaitingStyle.Render("Waiting for audio frames…")
		return vizContainerStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "", waiting))
	}

	body := lipgloss.JoinVertical(
		lipgloss.Left,
		renderHeader(m.frame, m.lastUpdated),
		renderMetrics(m.frame),
		"",
		renderColorSwatch(m.frame),
		"",
		renderBars(m.frame),
		"",
		vizHintStyle.Render(fmt.Sprintf("%d frames · %d beats · q / esc / ctrl+c to stop", m.frames, m.beats)),
	)
	return vizContainerStyle.Render(body)
}

func renderHeader(frame Frame, updatedAt time.Time) string {
	color := lipgloss.Color(hexColorFromHSV(frame.Hue, frame.Saturation/100, frame.Brightness/100))

	title := titleStyle.Foreground(color).Render("Yeelight Audio Sync")
	timestamp := vizTimestampStyle.Render(updatedAt.Format("15:04:05.000"))

	return lipgloss.JoinHorizontal(lipgloss.Left, title, "  ", timestamp)
}

func renderMetrics(frame Frame) string {
	mode := renderMetric("Mode", frame.Mode)
	intensity := renderMetric("Intensity", fmt.Sprintf("%4.2f", utils.Clamp(frame.Intensity, 0.0, 1.0)))
	density := renderMetric("Beats/2s", fmt.Sprintf("%4.2f", utils.Clamp(frame.BeatDensity, 0.0, 1.0)))

	sent := renderMetric("Light", fmt.Sprintf("%3d°/%3d%%/%3d%%", frame.Sent[0], frame.Sent[1], frame.Sent[2]))

	top := lipgloss.JoinHorizontal(lipgloss.Left, mode, "   ", intensity, "   ", density)
	bottom := lipgloss.JoinHorizontal(lipgloss.Left, sent, "   ", renderBeatMetric(frame))

	return lipgloss.JoinVertical(lipgloss.Left, top, bottom)
}

func renderMetric(label, value string) string {
	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		vizMetricLabelStyle.Render(label+":"),
		" ",
		vizMetricValueStyle.Render(value),
	)
}

func renderBeatMetric(frame Frame) string {
	marker := vizBeatInactiveStyle.Render("○")
	if frame.Beat {
		marker = vizBeatActiveStyle.Render("●")
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Left,
		vizMetricLabelStyle.Render("Beat:"),
		" ",
		marker,
		" ",
		vizMetricValueStyle.Render(fmt.Sprintf("%4.2f", utils.Clamp(frame.BeatStrength, 0.0, 1.0))),
	)
}

// renderColorSwatch draws a ramp from dark to the current color.
func renderColorSwatch(frame Frame) string {
	sat := frame.Saturation / 100
	bri := utils.Clamp(frame.Brightness/100, 0.0, 1.0)

	var b strings.Builder
	for i := range swatchBlocks {
		progress := float64(i) / float64(swatchBlocks-1)
		color := lipgloss.Color(hexColorFromHSV(frame.Hue, sat, 0.15+0.85*progress*bri))
		b.WriteString(lipgloss.NewStyle().Background(color).Render("  "))
	}

	return lipgloss.JoinHorizontal(lipgloss.Left, subtitleStyle.Render("Color"), "  ", b.String())
}

type barSpec struct {
	label string
	value func(Frame) float64
	theme barTheme
}

type barTheme struct {
	label    lipgloss.Style
	hueStart float64
	hueEnd   float64
}

func themed(color string, hueStart, hueEnd float64) barTheme {
	return barTheme{
		label:    lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true),
		hueStart: hueStart,
		hueEnd:   hueEnd,
	}
}

var bars = []barSpec{
	{"Energy", func(f Frame) float64 { return f.Energy }, themed("45", 190, 140)},
	{"Intensity", func(f Frame) float64 { return f.Intensity }, themed("81", 170, 130)},
	{"Beat Pulse", func(f Frame) float64 { return f.BeatPulse }, themed("204", 330, 360)},
	{"Bass", func(f Frame) float64 { return f.Bands[0] }, themed("208", 25, 45)},
	{"Mid", func(f Frame) float64 { return f.Bands[1] }, themed("226", 55, 75)},
	{"High", func(f Frame) float64 { return f.Bands[2] }, themed("123", 210, 240)},
	{"Centroid", func(f Frame) float64 { return f.Centroid }, themed("177", 285, 315)},
	{"Rolloff", func(f Frame) float64 { return f.Rolloff }, themed("117", 150, 200)},
}

var (
	barValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	barEmptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
)

func renderBars(frame Frame) string {
	lines := make([]string, len(bars))
	for i, spec := range bars {
		lines[i] = renderBar(spec.label, spec.value(frame), spec.theme)
	}
	return strings.Join(lines, "\n")
}

// barFill is how many of width cells value fills. Any positive value shows
// at least one cell.
func barFill(value float64, width int) int {
	clamped := utils.Clamp(value, 0.0, 1.0)
	filled := int(math.Round(clamped * float64(width)))
	if clamped > 0 && filled == 0 {
		filled = 1
	}
	return min(filled, width)
}

func renderBar(label string, value float64, theme barTheme) string {
	filled := barFill(value, vizBarWidth)

	var b strings.Builder
	b.Grow(128)
	b.WriteString(theme.label.Render(fmt.Sprintf("%-12s", label)))
	b.WriteString(" [")

	for i := range filled {
		progress := 0.0
		if filled > 1 {
			progress = float64(i) / float64(filled-1)
		}
		hue := theme.hueStart + (theme.hueEnd-theme.hueStart)*progress
		color := lipgloss.Color(hexColorFromHSV(hue, 0.85, 0.35+0.55*progress))
		b.WriteString(lipgloss.NewStyle().Foreground(color).Render("█"))
	}
	b.WriteString(barEmptyStyle.Render(strings.Repeat("░", vizBarWidth-filled)))

	b.WriteString("] ")
	b.WriteString(barValueStyle.Render(fmt.Sprintf("%3.0f%%", utils.Clamp(value, 0.0, 1.0)*100)))

	return b.String()
}

func hexColorFromHSV(h, s, v float64) string {
	r, g, b, err := colorconv.HSVToRGB(
		utils.WrapDegrees(h),
		utils.Clamp(s, 0.0, 1.0),
		utils.Clamp(v, 0.0, 1.0),
	)
	if err != nil {
		return "#FFFFFF"
	}
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func (m *visualizerModel) invokeExit() {
	m.exitOnce.Do(func() {
		if m.onExit != nil {
			m.onExit()
		}
	})
}
