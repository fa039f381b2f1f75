package prompt

import "strings"

// TextSession is a free-text prompt that keeps its dialog open across rejected
// submissions.
type TextSession struct {
	*session[string]

	buffer        string
	validator     func(string) bool
	feedback      func(*TextSession, string)
	invalidNotice string
}

// Text presents title with a text field, a cancel button and a submit button.
// It resolves to the first submitted value the validator accepts, or to
// ErrCancelled.
func Text(host Host, title string, options ...Option) *TextSession {
	cfg := newSettings(KindText, options)
	t := &TextSession{
		session:       newSession[string](host, KindText, title, cfg),
		validator:     cfg.validator,
		feedback:      cfg.feedback,
		invalidNotice: cfg.invalidNotice,
	}

	t.open(func(surface Surface) {
		if cfg.message != "" {
			surface.Attach(&Message{Body: cfg.message})
		}
		surface.Attach(&TextField{
			Placeholder: cfg.placeholder,
			OnChange:    t.setBuffer,
			OnKey: func(key Key) {
				if key == KeyEnter {
					_ = t.Submit()
				}
			},
		})
		surface.Attach(&Button{
			Label:   cfg.falseLabel,
			OnClick: func() { _ = t.Cancel() },
		})
		surface.Attach(&Button{
			Label:    cfg.trueLabel,
			Emphasis: true,
			OnClick:  func() { _ = t.Submit() },
		})
	}, func() { _ = t.Cancel() })
	return t
}

// SetValidator replaces the submission predicate. A nil validator accepts everything.
func (t *TextSession) SetValidator(validator func(string) bool) {
	if validator == nil {
		validator = func(string) bool { return true }
	}
	t.mu.Lock()
	t.validator = validator
	t.mu.Unlock()
}

// SetInvalidFeedback replaces the handler invoked with rejected text. A nil
// handler restores the default notice.
func (t *TextSession) SetInvalidFeedback(feedback func(*TextSession, string)) {
	t.mu.Lock()
	t.feedback = feedback
	t.mu.Unlock()
}

// SetInvalidNotice changes the message shown by the default feedback.
func (t *TextSession) SetInvalidNotice(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	t.mu.Lock()
	t.invalidNotice = message
	t.mu.Unlock()
}

// Input returns the current buffer.
func (t *TextSession) Input() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buffer
}

// Submit attempts to resolve the session with the current buffer. A rejected
// value runs the feedback handler and leaves the dialog open with the buffer
// intact; it is not reported as an error.
func (t *TextSession) Submit() error {
	t.mu.Lock()
	if t.state.Terminal() {
		t.mu.Unlock()
		return ErrAlreadyResolved
	}
	candidate := t.buffer
	validator := t.validator
	feedback := t.feedback
	notice := t.invalidNotice
	t.mu.Unlock()

	if validator(candidate) {
		return t.resolve(StateSubmitted, candidate, nil)
	}

	if err := t.reject(candidate); err != nil {
		return err
	}
	if feedback != nil {
		feedback(t, candidate)
		return nil
	}
	Notice(t.host, notice, t.cfg.inherited()...)
	return nil
}

// Cancel resolves the session with ErrCancelled without consulting the
// validator. It is safe to call from inside a feedback handler.
func (t *TextSession) Cancel() error {
	if t.State().Terminal() {
		return ErrAlreadyResolved
	}
	return t.resolve(StateCancelled, "", ErrCancelled)
}

func (t *TextSession) setBuffer(value string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.Terminal() {
		return
	}
	t.buffer = value
}
