package prompt

// ConfirmSession is a two-button boolean prompt. Both buttons are terminal.
type ConfirmSession struct {
	*session[bool]
}

// Confirm presents title with a negative and an affirmative button, labelled
// "No" and "Yes" unless WithLabels says otherwise. A host-level dismiss resolves
// false with ErrCancelled.
func Confirm(host Host, title string, options ...Option) *ConfirmSession {
	cfg := newSettings(KindConfirm, options)
	c := &ConfirmSession{session: newSession[bool](host, KindConfirm, title, cfg)}

	c.open(func(surface Surface) {
		if cfg.message != "" {
			surface.Attach(&Message{Body: cfg.message})
		}
		surface.Attach(&Button{
			Label:   cfg.falseLabel,
			OnClick: func() { _ = c.Choose(false) },
		})
		surface.Attach(&Button{
			Label:    cfg.trueLabel,
			Emphasis: true,
			OnClick:  func() { _ = c.Choose(true) },
		})
	}, func() { _ = c.Cancel() })
	return c
}

// Choose resolves the prompt with choice and closes the dialog.
func (c *ConfirmSession) Choose(choice bool) error {
	if c.State().Terminal() {
		return ErrAlreadyResolved
	}
	return c.resolve(StateSubmitted, choice, nil)
}

// Cancel resolves the prompt as cancelled.
func (c *ConfirmSession) Cancel() error {
	if c.State().Terminal() {
		return ErrAlreadyResolved
	}
	return c.resolve(StateCancelled, false, ErrCancelled)
}
