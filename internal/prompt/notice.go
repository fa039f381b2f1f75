package prompt

// NoticeSession is an acknowledgement-only prompt.
type NoticeSession struct {
	*session[struct{}]
}

// Notice presents message with a single dismiss button. Awaiting the result is
// optional; every way of closing the dialog counts as acknowledgement.
func Notice(host Host, message string, options ...Option) *NoticeSession {
	cfg := newSettings(KindNotice, options)
	n := &NoticeSession{session: newSession[struct{}](host, KindNotice, message, cfg)}

	n.open(func(surface Surface) {
		if cfg.message != "" {
			surface.Attach(&Message{Body: cfg.message})
		}
		surface.Attach(&Button{
			Label:    cfg.trueLabel,
			Emphasis: true,
			OnClick:  func() { _ = n.Acknowledge() },
		})
	}, func() { _ = n.Acknowledge() })
	return n
}

// Acknowledge closes the notice.
func (n *NoticeSession) Acknowledge() error {
	if n.State().Terminal() {
		return ErrAlreadyResolved
	}
	return n.resolve(StateSubmitted, struct{}{}, nil)
}
