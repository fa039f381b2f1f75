// Package prompttest provides a scripted dialog host for driving prompt
// sessions from tests without a terminal.
//
// The calling goroutine plays the host's event loop: Type, PressEnter, Click and
// Dismiss invoke widget callbacks synchronously.
package prompttest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bibnote/bibnote/internal/prompt"
)

// Host records every surface opened through it.
type Host struct {
	mu         sync.Mutex
	surfaces   []*Surface
	presentErr error
}

// NewHost returns an empty scripted host.
func NewHost() *Host {
	return &Host{}
}

// FailPresent makes every later Present call return err.
func (h *Host) FailPresent(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.presentErr = err
}

// Open satisfies prompt.Host.
func (h *Host) Open(title string, onDismiss func()) prompt.Surface {
	surface := &Surface{host: h, title: title, onDismiss: onDismiss}
	h.mu.Lock()
	h.surfaces = append(h.surfaces, surface)
	h.mu.Unlock()
	return surface
}

// Surfaces returns every surface ever opened, oldest first.
func (h *Host) Surfaces() []*Surface {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Surface, len(h.surfaces))
	copy(out, h.surfaces)
	return out
}

// Visible returns presented surfaces that are not dismissed, oldest first.
func (h *Host) Visible() []*Surface {
	visible := make([]*Surface, 0)
	for _, surface := range h.Surfaces() {
		if surface.Visible() {
			visible = append(visible, surface)
		}
	}
	return visible
}

// Top returns the most recently presented visible surface, or nil.
func (h *Host) Top() *Surface {
	visible := h.Visible()
	if len(visible) == 0 {
		return nil
	}
	return visible[len(visible)-1]
}

// Surface is one scripted dialog.
type Surface struct {
	host      *Host
	title     string
	onDismiss func()

	mu        sync.Mutex
	widgets   []prompt.Widget
	presented bool
	dismissed bool
	value     string
}

// Attach satisfies prompt.Surface.
func (s *Surface) Attach(widget prompt.Widget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.widgets = append(s.widgets, widget)
}

// Present satisfies prompt.Surface.
func (s *Surface) Present() error {
	s.host.mu.Lock()
	err := s.host.presentErr
	s.host.mu.Unlock()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.presented = true
	return nil
}

// Dismiss satisfies prompt.Surface.
func (s *Surface) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dismissed = true
}

// Title returns the surface title.
func (s *Surface) Title() string {
	return s.title
}

// Visible reports whether the surface is presented and not dismissed.
func (s *Surface) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presented && !s.dismissed
}

// Dismissed reports whether Dismiss was called.
func (s *Surface) Dismissed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dismissed
}

// Value returns what the scripted user has typed into the text field.
func (s *Surface) Value() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Messages returns the bodies of attached Message widgets.
func (s *Surface) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0)
	for _, widget := range s.widgets {
		if message, ok := widget.(*prompt.Message); ok {
			out = append(out, message.Body)
		}
	}
	return out
}

// Buttons returns attached buttons in display order.
func (s *Surface) Buttons() []*prompt.Button {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*prompt.Button, 0)
	for _, widget := range s.widgets {
		if button, ok := widget.(*prompt.Button); ok {
			out = append(out, button)
		}
	}
	return out
}

// Type replaces the text field value, as a user editing the field would.
func (s *Surface) Type(value string) error {
	field, err := s.field()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
	if field.OnChange != nil {
		field.OnChange(value)
	}
	return nil
}

// PressEnter delivers an Enter key event to the text field.
func (s *Surface) PressEnter() error {
	field, err := s.field()
	if err != nil {
		return err
	}
	if field.OnKey != nil {
		field.OnKey(prompt.KeyEnter)
	}
	return nil
}

// Click activates the button labelled label (case insensitive).
func (s *Surface) Click(label string) error {
	if !s.Visible() {
		return fmt.Errorf("surface %q is not visible", s.title)
	}
	for _, button := range s.Buttons() {
		if !strings.EqualFold(strings.TrimSpace(button.Label), strings.TrimSpace(label)) {
			continue
		}
		if button.OnClick != nil {
			button.OnClick()
		}
		return nil
	}
	return fmt.Errorf("surface %q has no button %q", s.title, label)
}

// DismissByUser closes the surface through the host, as Escape would.
func (s *Surface) DismissByUser() {
	s.Dismiss()
	if s.onDismiss != nil {
		s.onDismiss()
	}
}

func (s *Surface) field() (*prompt.TextField, error) {
	if !s.Visible() {
		return nil, fmt.Errorf("surface %q is not visible", s.title)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, widget := range s.widgets {
		if field, ok := widget.(*prompt.TextField); ok {
			return field, nil
		}
	}
	return nil, fmt.Errorf("surface %q has no text field", s.title)
}
