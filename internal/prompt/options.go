package prompt

import (
	"strings"

	"github.com/bibnote/bibnote/internal/events"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTrueLabel     = "Yes"
	defaultFalseLabel    = "No"
	defaultSubmitLabel   = "Submit"
	defaultCancelLabel   = "Cancel"
	defaultNoticeLabel   = "Ok"
	defaultInvalidNotice = "Invalid input"
)

// Publisher receives session lifecycle events.
type Publisher interface {
	Publish(event events.Event)
}

// Option configures a prompt session.
type Option func(*settings)

type settings struct {
	trueLabel     string
	falseLabel    string
	placeholder   string
	message       string
	validator     func(string) bool
	feedback      func(*TextSession, string)
	invalidNotice string
	onResolve     any
	tracer        trace.Tracer
	bus           Publisher
	newID         func() string
}

// newSettings builds a fresh configuration for one session. Nothing here is
// shared between sessions, so a validator installed on one prompt never leaks
// into the next.
func newSettings(kind Kind, options []Option) *settings {
	cfg := &settings{
		trueLabel:     defaultTrueLabel,
		falseLabel:    defaultFalseLabel,
		validator:     func(string) bool { return true },
		invalidNotice: defaultInvalidNotice,
		tracer:        otel.Tracer("bibnote/prompt"),
		newID:         newSessionID,
	}
	switch kind {
	case KindText:
		cfg.trueLabel = defaultSubmitLabel
		cfg.falseLabel = defaultCancelLabel
	case KindNotice:
		cfg.trueLabel = defaultNoticeLabel
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(cfg)
	}
	return cfg
}

// WithLabels overrides the affirmative and negative button labels. Text prompts
// use them for the submit and cancel buttons. Blank labels keep the default.
func WithLabels(trueLabel, falseLabel string) Option {
	return func(cfg *settings) {
		if label := strings.TrimSpace(trueLabel); label != "" {
			cfg.trueLabel = label
		}
		if label := strings.TrimSpace(falseLabel); label != "" {
			cfg.falseLabel = label
		}
	}
}

// WithMessage adds body text under the dialog title.
func WithMessage(message string) Option {
	return func(cfg *settings) {
		cfg.message = strings.TrimSpace(message)
	}
}

// WithPlaceholder sets the text field placeholder.
func WithPlaceholder(placeholder string) Option {
	return func(cfg *settings) {
		cfg.placeholder = placeholder
	}
}

// WithValidator installs the submission predicate for a text prompt.
func WithValidator(validator func(string) bool) Option {
	return func(cfg *settings) {
		if validator != nil {
			cfg.validator = validator
		}
	}
}

// WithInvalidFeedback installs the handler invoked with rejected text.
func WithInvalidFeedback(feedback func(*TextSession, string)) Option {
	return func(cfg *settings) {
		cfg.feedback = feedback
	}
}

// WithInvalidNotice changes the message of the default invalid-input notice.
func WithInvalidNotice(message string) Option {
	return func(cfg *settings) {
		if message = strings.TrimSpace(message); message != "" {
			cfg.invalidNotice = message
		}
	}
}

// WithOnResolve runs fn with the session result once it resolves. fn runs on
// the goroutine that resolved the session, after the dialog is dismissed and
// before Await returns, so a host callback that resolves a nested prompt can act
// on the outer prompt before the host handles its next event. T must match the
// prompt: bool for Confirm, string for Text and struct{} for Notice. A hook of
// another type is ignored.
func WithOnResolve[T any](fn func(T, error)) Option {
	return func(cfg *settings) {
		if fn != nil {
			cfg.onResolve = fn
		}
	}
}

// WithTracer configures the tracer used for session spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(cfg *settings) {
		if tracer != nil {
			cfg.tracer = tracer
		}
	}
}

// WithPublisher publishes session lifecycle events to bus.
func WithPublisher(bus Publisher) Option {
	return func(cfg *settings) {
		cfg.bus = bus
	}
}

// WithIDGenerator replaces the session ID source.
func WithIDGenerator(newID func() string) Option {
	return func(cfg *settings) {
		if newID != nil {
			cfg.newID = newID
		}
	}
}

// inherited returns the options that carry observability wiring into nested
// prompts opened on behalf of a session.
func (cfg *settings) inherited() []Option {
	return []Option{
		WithTracer(cfg.tracer),
		WithPublisher(cfg.bus),
		WithIDGenerator(cfg.newID),
	}
}
