// Package tui implements the full-screen terminal dialog host.
package tui

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/bibnote/bibnote/internal/prompt"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// ErrHostClosed is returned by Present once the program has exited.
var ErrHostClosed = errors.New("terminal dialog host closed")

// refreshMsg asks the model to resynchronise with the surface stack.
type refreshMsg struct{}

// Host is a prompt.Host backed by a Bubble Tea program. Surfaces may be opened
// before Run starts; they are shown once the program is running.
type Host struct {
	mu      sync.Mutex
	stack   []*surface
	send    func(tea.Msg)
	program *tea.Program
	closed  bool
}

// NewHost returns an idle host.
func NewHost() *Host {
	return &Host{}
}

// Open satisfies prompt.Host.
func (h *Host) Open(title string, onDismiss func()) prompt.Surface {
	return &surface{host: h, title: strings.TrimSpace(title), onDismiss: onDismiss}
}

// Run starts the Bubble Tea program and blocks until Quit is called, ctx is
// done, or the user quits with ctrl+c. Surfaces still open when Run returns are
// dismissed through their host dismiss callback.
func (h *Host) Run(ctx context.Context, input io.Reader, output io.Writer) error {
	options := []tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}
	if input != nil {
		options = append(options, tea.WithInput(input))
	}
	if output != nil {
		options = append(options, tea.WithOutput(output))
		lipgloss.SetColorProfile(termenv.NewOutput(output).ColorProfile())
	}

	program := tea.NewProgram(NewModel(h), options...)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHostClosed
	}
	h.program = program
	h.send = program.Send
	h.mu.Unlock()

	_, err := program.Run()
	h.shutdown()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Quit stops the running program.
func (h *Host) Quit() {
	h.mu.Lock()
	program := h.program
	h.mu.Unlock()
	if program != nil {
		program.Quit()
	}
}

// Visible returns the titles of presented surfaces, bottom first.
func (h *Host) Visible() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	titles := make([]string, 0, len(h.stack))
	for _, s := range h.stack {
		titles = append(titles, s.title)
	}
	return titles
}

func (h *Host) snapshot() []*surface {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*surface, len(h.stack))
	copy(out, h.stack)
	return out
}

// notify wakes the program. Send blocks while Update runs, and widget callbacks
// run inside Update, so it never runs on the caller's goroutine.
func (h *Host) notify() {
	if send := h.send; send != nil {
		go send(refreshMsg{})
	}
}

func (h *Host) present(s *surface) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHostClosed
	}
	h.stack = append(h.stack, s)
	h.notify()
	return nil
}

func (h *Host) remove(s *surface) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for idx, candidate := range h.stack {
		if candidate == s {
			h.stack = append(h.stack[:idx], h.stack[idx+1:]...)
			break
		}
	}
	h.notify()
}

// dismissAll closes every surface top-down through its host dismiss callback.
func (h *Host) dismissAll() {
	open := h.snapshot()
	for idx := len(open) - 1; idx >= 0; idx-- {
		open[idx].dismissByHost()
	}
}

func (h *Host) shutdown() {
	h.mu.Lock()
	h.closed = true
	h.send = nil
	h.program = nil
	h.mu.Unlock()
	h.dismissAll()
}

type surface struct {
	host      *Host
	title     string
	onDismiss func()

	mu        sync.Mutex
	content   []prompt.Widget
	presented bool
	dismissed bool
}

func (s *surface) Attach(widget prompt.Widget) {
	if widget == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = append(s.content, widget)
}

func (s *surface) Present() error {
	s.mu.Lock()
	if s.presented || s.dismissed {
		s.mu.Unlock()
		return nil
	}
	s.presented = true
	s.mu.Unlock()
	return s.host.present(s)
}

func (s *surface) Dismiss() {
	s.mu.Lock()
	if s.dismissed {
		s.mu.Unlock()
		return
	}
	s.dismissed = true
	presented := s.presented
	s.mu.Unlock()
	if presented {
		s.host.remove(s)
	}
}

func (s *surface) dismissByHost() {
	s.mu.Lock()
	already := s.dismissed
	s.mu.Unlock()
	if already {
		return
	}
	s.Dismiss()
	if s.onDismiss != nil {
		s.onDismiss()
	}
}

func (s *surface) widgets() []prompt.Widget {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]prompt.Widget, len(s.content))
	copy(out, s.content)
	return out
}
