package tui

import (
	"math"
	"time"

	"github.com/bibnote/bibnote/internal/prompt"
	"github.com/bibnote/bibnote/internal/tui/components"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
)

const (
	openSpringFrequency = 6.0
	openSpringDamping   = 0.8
	animationFPS        = 60
	settleThreshold     = 0.01
)

// focusInput marks the text field as focused; button focus uses the button index.
const focusInput = -1

// frameMsg advances the open animation by one frame.
type frameMsg struct{}

// dialogState is the model's view of one presented surface.
type dialogState struct {
	messages []string
	field    *prompt.TextField
	buttons  []*prompt.Button
	input    textinput.Model
	focus    int

	position  float64
	velocity  float64
	animating bool
}

// Model renders the top surface of a Host and routes key events to its widgets.
type Model struct {
	host    *Host
	keys    keyMap
	help    help.Model
	spring  harmonica.Spring
	width   int
	height  int
	dialogs map[*surface]*dialogState
	top     *surface
}

// NewModel returns a model bound to host.
func NewModel(host *Host) *Model {
	return &Model{
		host:    host,
		keys:    defaultKeyMap(),
		help:    help.New(),
		spring:  harmonica.NewSpring(harmonica.FPS(animationFPS), openSpringFrequency, openSpringDamping),
		dialogs: make(map[*surface]*dialogState),
	}
}

// Init satisfies tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.sync()
}

// Update satisfies tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	pending := m.sync()

	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
	case frameMsg:
		cmd = m.advanceAnimation()
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.host.dismissAll()
			return m, tea.Quit
		}
		cmd = m.handleKey(msg)
	}

	return m, tea.Batch(pending, cmd, m.sync())
}

// View satisfies tea.Model.
func (m *Model) View() string {
	if m.top == nil {
		return ""
	}
	state := m.dialogs[m.top]
	config := components.DialogConfig{
		Width:    m.width,
		Height:   m.height,
		Title:    m.top.title,
		Messages: state.messages,
		HasInput: state.field != nil,
		Help:     m.help.View(m.keys),
		Progress: state.position,
	}
	if state.field != nil {
		config.Input = state.input.View()
		config.InputFocused = state.focus == focusInput
	}
	for idx, button := range state.buttons {
		config.Buttons = append(config.Buttons, components.DialogButton{
			Label:    button.Label,
			Emphasis: button.Emphasis,
			Focused:  state.focus == idx,
		})
	}
	return components.RenderDialog(config)
}

// Top returns the title of the surface receiving input, or "".
func (m *Model) Top() string {
	if m.top == nil {
		return ""
	}
	return m.top.title
}

// FocusedButton returns the label of the focused button, or "" while the text
// field has focus.
func (m *Model) FocusedButton() string {
	if m.top == nil {
		return ""
	}
	state := m.dialogs[m.top]
	if state.focus < 0 || state.focus >= len(state.buttons) {
		return ""
	}
	return state.buttons[state.focus].Label
}

// sync reconciles dialog state with the host stack and starts the open
// animation when a new surface reaches the top.
func (m *Model) sync() tea.Cmd {
	stack := m.host.snapshot()
	live := make(map[*surface]struct{}, len(stack))
	for _, s := range stack {
		live[s] = struct{}{}
		if _, ok := m.dialogs[s]; !ok {
			m.dialogs[s] = newDialogState(s)
		}
	}
	for s := range m.dialogs {
		if _, ok := live[s]; !ok {
			delete(m.dialogs, s)
		}
	}

	m.top = nil
	if len(stack) == 0 {
		return nil
	}
	m.top = stack[len(stack)-1]
	state := m.dialogs[m.top]
	if state.animating || state.position >= 1 {
		return nil
	}
	state.animating = true
	return frameCmd()
}

func newDialogState(s *surface) *dialogState {
	state := &dialogState{focus: focusInput}
	emphasised := -1
	for _, widget := range s.widgets() {
		switch typed := widget.(type) {
		case *prompt.Message:
			state.messages = append(state.messages, typed.Body)
		case *prompt.TextField:
			if state.field == nil {
				state.field = typed
			}
		case *prompt.Button:
			if typed.Emphasis && emphasised < 0 {
				emphasised = len(state.buttons)
			}
			state.buttons = append(state.buttons, typed)
		}
	}

	if state.field != nil {
		state.input = textinput.New()
		state.input.Placeholder = state.field.Placeholder
		state.input.Prompt = ""
		state.input.Focus()
		return state
	}
	switch {
	case emphasised >= 0:
		state.focus = emphasised
	case len(state.buttons) > 0:
		state.focus = 0
	}
	return state
}

func frameCmd() tea.Cmd {
	return tea.Tick(time.Second/animationFPS, func(time.Time) tea.Msg {
		return frameMsg{}
	})
}

func (m *Model) advanceAnimation() tea.Cmd {
	if m.top == nil {
		return nil
	}
	state := m.dialogs[m.top]
	if !state.animating {
		return nil
	}
	state.position, state.velocity = m.spring.Update(state.position, state.velocity, 1)
	if math.Abs(state.position-1) < settleThreshold && math.Abs(state.velocity) < settleThreshold {
		state.position = 1
		state.velocity = 0
		state.animating = false
		return nil
	}
	return frameCmd()
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.top == nil {
		return nil
	}
	state := m.dialogs[m.top]

	switch {
	case key.Matches(msg, m.keys.Dismiss):
		if state.field != nil && state.field.OnKey != nil && state.focus == focusInput {
			state.field.OnKey(prompt.KeyEscape)
		}
		m.top.dismissByHost()
		return nil
	case key.Matches(msg, m.keys.Submit):
		if state.focus == focusInput {
			if state.field != nil && state.field.OnKey != nil {
				state.field.OnKey(prompt.KeyEnter)
			}
			return nil
		}
		if state.focus < len(state.buttons) {
			if onClick := state.buttons[state.focus].OnClick; onClick != nil {
				onClick()
			}
		}
		return nil
	case key.Matches(msg, m.keys.Next):
		return state.moveFocus(1)
	case key.Matches(msg, m.keys.Prev):
		return state.moveFocus(-1)
	}

	if state.focus != focusInput {
		switch {
		case key.Matches(msg, m.keys.Left):
			return state.moveButtonFocus(-1)
		case key.Matches(msg, m.keys.Right):
			return state.moveButtonFocus(1)
		}
		return nil
	}

	before := state.input.Value()
	var cmd tea.Cmd
	state.input, cmd = state.input.Update(msg)
	if after := state.input.Value(); after != before && state.field.OnChange != nil {
		state.field.OnChange(after)
	}
	return cmd
}

// moveFocus cycles through the text field (when present) and the buttons.
func (s *dialogState) moveFocus(delta int) tea.Cmd {
	stops := len(s.buttons)
	offset := 0
	if s.field != nil {
		stops++
		offset = 1
	}
	if stops == 0 {
		return nil
	}
	current := s.focus + offset
	next := ((current+delta)%stops + stops) % stops
	return s.setFocus(next - offset)
}

// moveButtonFocus moves between buttons without wrapping into the text field.
func (s *dialogState) moveButtonFocus(delta int) tea.Cmd {
	if len(s.buttons) == 0 {
		return nil
	}
	next := s.focus + delta
	if next < 0 {
		next = 0
	}
	if next >= len(s.buttons) {
		next = len(s.buttons) - 1
	}
	return s.setFocus(next)
}

func (s *dialogState) setFocus(focus int) tea.Cmd {
	s.focus = focus
	if s.field == nil {
		return nil
	}
	if focus == focusInput {
		return s.input.Focus()
	}
	s.input.Blur()
	return nil
}

// Value returns the text field content of the top surface.
func (m *Model) Value() string {
	if m.top == nil {
		return ""
	}
	state := m.dialogs[m.top]
	if state.field == nil {
		return ""
	}
	return state.input.Value()
}
