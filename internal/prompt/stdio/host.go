// Package stdio implements a line-oriented dialog host for terminals without
// full-screen support and for scripted input.
package stdio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/bibnote/bibnote/internal/prompt"
)

// ErrHostClosed is returned by Present once Run has returned.
var ErrHostClosed = errors.New("stdio dialog host closed")

// Host renders one surface at a time as numbered text and feeds input lines back
// as widget events. Widget callbacks run on the goroutine executing Run.
type Host struct {
	output io.Writer

	mu       sync.Mutex
	stack    []*surface
	rendered *surface
	closed   bool
	wake     chan struct{}
}

// New returns a host writing prompts to output.
func New(output io.Writer) *Host {
	if output == nil {
		output = io.Discard
	}
	return &Host{
		output: output,
		wake:   make(chan struct{}, 1),
	}
}

// Open satisfies prompt.Host.
func (h *Host) Open(title string, onDismiss func()) prompt.Surface {
	return &surface{host: h, title: strings.TrimSpace(title), onDismiss: onDismiss}
}

// Run reads input line by line and drives the top surface until ctx is done.
// Lines that arrive while no dialog is open are held for the next one, so input
// can be piped ahead of the prompts. End of input, once held lines are used up,
// dismisses every open surface, including ones presented later. Surfaces still
// open when Run returns are dismissed through their host dismiss callback.
func (h *Host) Run(ctx context.Context, input io.Reader) error {
	defer h.shutdown()
	if input == nil {
		return errors.New("stdio host input is nil")
	}
	lines := make(chan string)
	go readLines(ctx, bufio.NewReader(input), lines)

	eof := false
	var pending []string
	h.renderTop(false)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-h.wake:
			h.renderTop(false)
			pending = h.replay(pending)
			if eof && len(pending) == 0 {
				h.dismissTop()
			}
		case line, ok := <-lines:
			if !ok {
				lines = nil
				eof = true
				if len(pending) == 0 {
					h.dismissTop()
				}
				continue
			}
			pending = h.replay(append(pending, line))
		}
	}
}

// replay feeds held lines to the top surface until none is open.
func (h *Host) replay(pending []string) []string {
	for len(pending) > 0 && h.top() != nil {
		h.handleLine(pending[0])
		pending = pending[1:]
		h.renderTop(true)
	}
	return pending
}

func readLines(ctx context.Context, reader *bufio.Reader, lines chan<- string) {
	defer close(lines)
	for {
		line, err := reader.ReadString('\n')
		if line != "" || err == nil {
			select {
			case lines <- strings.TrimRight(line, "\r\n"):
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (h *Host) top() *surface {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.stack) == 0 {
		return nil
	}
	return h.stack[len(h.stack)-1]
}

func (h *Host) signal() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Host) present(s *surface) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHostClosed
	}
	h.stack = append(h.stack, s)
	h.signal()
	return nil
}

func (h *Host) remove(s *surface) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for idx, candidate := range h.stack {
		if candidate != s {
			continue
		}
		h.stack = append(h.stack[:idx], h.stack[idx+1:]...)
		break
	}
	if h.rendered == s {
		h.rendered = nil
	}
	h.signal()
}

// renderTop writes the top surface when it changed since the last render, or
// unconditionally when force is set.
func (h *Host) renderTop(force bool) {
	h.mu.Lock()
	var top *surface
	if len(h.stack) > 0 {
		top = h.stack[len(h.stack)-1]
	}
	if top == nil || (!force && top == h.rendered) {
		h.mu.Unlock()
		return
	}
	h.rendered = top
	h.mu.Unlock()

	top.render(h.output)
}

func (h *Host) dismissTop() {
	top := h.top()
	if top == nil {
		return
	}
	top.dismissByHost()
}

func (h *Host) shutdown() {
	h.mu.Lock()
	h.closed = true
	open := make([]*surface, len(h.stack))
	copy(open, h.stack)
	h.mu.Unlock()

	for idx := len(open) - 1; idx >= 0; idx-- {
		open[idx].dismissByHost()
	}
}

func (h *Host) handleLine(line string) {
	top := h.top()
	if top == nil {
		writeln(h.output, "no dialog is open")
		return
	}

	trimmed := strings.TrimSpace(line)
	field, buttons := top.widgets()
	// ":<button>" clicks a button. On a text prompt, "::" enters a literal
	// leading colon and a colon line that names no button is plain text.
	if choice, ok := strings.CutPrefix(trimmed, ":"); ok {
		switch {
		case field != nil && strings.HasPrefix(choice, ":"):
			line = strings.Replace(line, "::", ":", 1)
		case clickButton(buttons, choice):
			return
		case field == nil:
			writef(h.output, "unknown button %q\n", choice)
			return
		}
	}

	if field != nil {
		if field.OnChange != nil {
			field.OnChange(line)
		}
		if field.OnKey != nil {
			field.OnKey(prompt.KeyEnter)
		}
		return
	}

	if trimmed == "" {
		for _, button := range buttons {
			if button.Emphasis && button.OnClick != nil {
				button.OnClick()
				return
			}
		}
	}
	if !clickButton(buttons, trimmed) {
		writef(h.output, "unknown choice %q\n", trimmed)
	}
}

// clickButton activates a button by 1-based number or case-insensitive label.
func clickButton(buttons []*prompt.Button, choice string) bool {
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return false
	}
	if index, err := strconv.Atoi(choice); err == nil {
		if index < 1 || index > len(buttons) {
			return false
		}
		if onClick := buttons[index-1].OnClick; onClick != nil {
			onClick()
		}
		return true
	}
	for _, button := range buttons {
		if !strings.EqualFold(strings.TrimSpace(button.Label), choice) {
			continue
		}
		if button.OnClick != nil {
			button.OnClick()
		}
		return true
	}
	return false
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

func (s *surface) widgets() (*prompt.TextField, []*prompt.Button) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var field *prompt.TextField
	buttons := make([]*prompt.Button, 0, len(s.content))
	for _, widget := range s.content {
		switch typed := widget.(type) {
		case *prompt.TextField:
			if field == nil {
				field = typed
			}
		case *prompt.Button:
			buttons = append(buttons, typed)
		}
	}
	return field, buttons
}

func (s *surface) render(output io.Writer) {
	s.mu.Lock()
	content := make([]prompt.Widget, len(s.content))
	copy(content, s.content)
	s.mu.Unlock()

	writef(output, "\n%s\n", s.title)
	var field *prompt.TextField
	buttons := make([]*prompt.Button, 0)
	for _, widget := range content {
		switch typed := widget.(type) {
		case *prompt.Message:
			writeln(output, typed.Body)
		case *prompt.TextField:
			field = typed
		case *prompt.Button:
			buttons = append(buttons, typed)
		}
	}
	for idx, button := range buttons {
		if button.Emphasis {
			writef(output, "%d) %s (default)\n", idx+1, button.Label)
			continue
		}
		writef(output, "%d) %s\n", idx+1, button.Label)
	}
	if field != nil {
		if placeholder := strings.TrimSpace(field.Placeholder); placeholder != "" {
			writef(output, "Enter text (%s), or :<button> to choose a button (:: for a leading colon)\n", placeholder)
		} else {
			writeln(output, "Enter text, or :<button> to choose a button (:: for a leading colon)")
		}
	} else if len(buttons) > 0 {
		writeln(output, "Enter option number/name, or blank for the default")
	}
	write(output, "> ")
}

func write(output io.Writer, text string) {
	if _, err := io.WriteString(output, text); err != nil {
		return
	}
}

func writeln(output io.Writer, text string) {
	write(output, text+"\n")
}

func writef(output io.Writer, format string, values ...any) {
	if _, err := fmt.Fprintf(output, format, values...); err != nil {
		return
	}
}
