// Package ui holds the terminal front ends: the interactive setup wizard that
// picks a light and an audio input, and the live visualizer.
package ui

import (
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rotisserie/eris"
	"golang.org/x/term"

	"github.com/cybre/yeelight-audio-sync/internal/utils"
)

var (
	ErrSelectionAborted = eris.New("selection aborted")
	ErrNoInteractiveTTY = eris.New("no interactive terminal available")
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("213")).
			Bold(true)
	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("246"))
	pointerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("213"))
	itemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
	selectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("219")).
				Bold(true)
	instructionKeyStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("213")).
				Bold(true)
	instructionTextStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))
	summaryValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Bold(true)
	emptyStateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

type Option struct {
	Label string
}

// Choice is one list the user picks from. Choices that are not Required
// keep their Initial index and are only shown in the summary.
type Choice struct {
	Name     string
	Title    string
	Options  []Option
	Initial  int
	Required bool
}

// RunSetup walks the user through every required choice and returns the
// selected index per choice, in order.
func RunSetup(choices []Choice) ([]int, error) {
	m := newSetupModel(choices)
	if len(m.steps) == 0 {
		return m.selected, nil
	}

	if !isInteractiveTerminal() {
		return nil, ErrNoInteractiveTTY
	}

	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, eris.Wrap(err, "run setup")
	}

	result := final.(setupModel)
	if result.err != nil {
		return nil, result.err
	}

	return result.selected, nil
}

// DefaultSelection returns every choice's initial index, for when no
// terminal is available.
func DefaultSelection(choices []Choice) []int {
	return newSetupModel(choices).selected
}

type setupModel struct {
	choices  []Choice
	steps    []int // indices of required choices with options
	step     int   // position in steps; len(steps) is the summary
	cursor   int
	selected []int
	done     bool
	err      error
}

func newSetupModel(choices []Choice) setupModel {
	m := setupModel{
		choices:  choices,
		selected: make([]int, len(choices)),
	}
	for i, c := range choices {
		m.selected[i] = utils.ClampIndex(c.Initial, len(c.Options))
		if c.Required && len(c.Options) > 0 {
			m.steps = append(m.steps, i)
		}
	}
	m.enter(0)
	return m
}

func (m *setupModel) enter(step int) {
	m.step = utils.Clamp(step, 0, len(m.steps))
	if m.onSummary() {
		m.cursor = 0
		return
	}
	m.cursor = m.selected[m.steps[m.step]]
}

func (m setupModel) onSummary() bool {
	return m.step >= len(m.steps)
}

func (m setupModel) Init() tea.Cmd {
	return nil
}

func (m setupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "esc", "q":
		m.err = ErrSelectionAborted
		return m, tea.Quit
	case "up", "k":
		if !m.onSummary() {
			m.cursor = wrapIndex(m.cursor-1, len(m.currentChoice().Options))
		}
	case "down", "j":
		if !m.onSummary() {
			m.cursor = wrapIndex(m.cursor+1, len(m.currentChoice().Options))
		}
	case "enter", "tab", "right", "l":
		if m.onSummary() {
			if key.String() == "enter" {
				m.done = true
				return m, tea.Quit
			}
			return m, nil
		}
		m.selected[m.steps[m.step]] = m.cursor
		m.enter(m.step + 1)
	case "shift+tab", "left", "h", "backspace", "b":
		if m.step == 0 {
			return m, nil
		}
		if !m.onSummary() {
			m.selected[m.steps[m.step]] = m.cursor
		}
		m.enter(m.step - 1)
	}

	return m, nil
}

func (m setupModel) currentChoice() Choice {
	return m.choices[m.steps[m.step]]
}

func (m setupModel) View() string {
	if m.done {
		return ""
	}

	var lines []string
	if m.onSummary() {
		lines = append(lines, "", titleStyle.Render("Ready to start"), "")
		for i, c := range m.choices {
			lines = append(lines, renderSummaryRow(c.Name, m.selectedLabel(i)))
		}
		lines = append(lines, "", renderInstructions([]string{"enter start", "←/h/b edit", "esc cancel"}), "")
		return strings.Join(lines, "\n")
	}

	c := m.currentChoice()
	lines = append(lines, "", titleStyle.Render(c.Title))
	for i := range m.steps[:m.step] {
		idx := m.steps[i]
		lines = append(lines, renderSummaryRow(m.choices[idx].Name, m.selectedLabel(idx)))
	}

	instructions := []string{"↑/k ↓/j move", "enter confirm"}
	if m.step > 0 {
		instructions = append(instructions, "←/h back")
	}
	instructions = append(instructions, "esc cancel")

	lines = append(lines, "", renderOptionList(c.Options, m.cursor), "", renderInstructions(instructions), "")
	return strings.Join(lines, "\n")
}

func (m setupModel) selectedLabel(choice int) string {
	opts := m.choices[choice].Options
	idx := m.selected[choice]
	if idx >= 0 && idx < len(opts) {
		return opts[idx].Label
	}
	return "not selected"
}

func renderOptionList(items []Option, cursor int) string {
	if len(items) == 0 {
		return emptyStateStyle.Render("No options detected")
	}

	rows := make([]string, len(items))
	for i, item := range items {
		pointer, label := " ", itemStyle.Render(item.Label)
		if i == cursor {
			pointer, label = pointerStyle.Render("›"), selectedItemStyle.Render(item.Label)
		}
		rows[i] = pointer + " " + label
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// renderInstructions renders "keys action" pairs; the last word of each
// part is the action.
func renderInstructions(parts []string) string {
	segments := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			segments = append(segments, subtitleStyle.Render(" · "))
		}
		keys, action, found := cutLast(part)
		if !found {
			segments = append(segments, instructionTextStyle.Render(part))
			continue
		}
		segments = append(segments, instructionKeyStyle.Render(keys), instructionTextStyle.Render(" "+action))
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, segments...)
}

func cutLast(s string) (before, after string, found bool) {
	i := strings.LastIndexByte(s, ' ')
	if i < 0 {
		return "", s, false
	}
	return s[:i], s[i+1:], true
}

func renderSummaryRow(label, value string) string {
	return subtitleStyle.Render(label+": ") + summaryValueStyle.Render(value)
}

func wrapIndex(idx, length int) int {
	if length <= 0 {
		return 0
	}
	idx = idx % length
	if idx < 0 {
		idx += length
	}
	return idx
}

func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
