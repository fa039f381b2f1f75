package prompt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bibnote/bibnote/internal/events"
	"github.com/bibnote/bibnote/internal/telemetry/invariants"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Kind identifies which prompt a session backs.
type Kind string

const (
	// KindNotice is an acknowledgement-only prompt.
	KindNotice Kind = "notice"
	// KindConfirm is a two-button boolean prompt.
	KindConfirm Kind = "confirm"
	// KindText is a validated free-text prompt.
	KindText Kind = "text"
)

// Outcome is the payload published with session lifecycle events.
type Outcome struct {
	SessionID string
	Kind      Kind
	Title     string
	State     State
	Failures  int
	Rejected  string
}

// session is the shared core of every prompt: one presented surface and one
// result that is delivered exactly once.
type session[T any] struct {
	id      string
	kind    Kind
	title   string
	host    Host
	surface Surface
	cfg     *settings
	ctx     context.Context
	span    trace.Span
	opened  time.Time
	hook    func(T, error)

	mu       sync.Mutex
	state    State
	failures int
	value    T
	err      error
	done     chan struct{}
}

func newSession[T any](host Host, kind Kind, title string, cfg *settings) *session[T] {
	s := &session[T]{
		id:     cfg.newID(),
		kind:   kind,
		title:  strings.TrimSpace(title),
		host:   host,
		cfg:    cfg,
		state:  StateOpen,
		done:   make(chan struct{}),
		opened: time.Now(),
	}
	if hook, ok := cfg.onResolve.(func(T, error)); ok {
		s.hook = hook
	}
	s.ctx, s.span = cfg.tracer.Start(context.Background(), "prompt.session")
	s.span.SetAttributes(
		attribute.String("session_id", s.id),
		attribute.String("kind", string(kind)),
		attribute.String("title", s.title),
	)
	return s
}

// open creates the surface and hands it to build for widget attachment. A nil
// host or a failed Present resolves the session immediately with the error.
func (s *session[T]) open(build func(surface Surface), onDismiss func()) {
	if s.host == nil {
		var zero T
		_ = s.resolve(StateCancelled, zero, errors.New("dialog host is nil"))
		return
	}

	s.surface = s.host.Open(s.title, onDismiss)
	build(s.surface)
	s.publish(events.EventTypeSessionOpened, events.SeverityInfo, "")

	if err := s.surface.Present(); err != nil {
		var zero T
		_ = s.resolve(StateCancelled, zero, fmt.Errorf("present %s dialog: %w", s.kind, err))
	}
}

// ID returns the unique session identifier.
func (s *session[T]) ID() string {
	return s.id
}

// Kind returns the prompt kind backing this session.
func (s *session[T]) Kind() Kind {
	return s.kind
}

// Title returns the dialog title.
func (s *session[T]) Title() string {
	return s.title
}

// State returns the current lifecycle state.
func (s *session[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Failures returns how many submissions were rejected by the validator.
func (s *session[T]) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// Done is closed once the session resolves.
func (s *session[T]) Done() <-chan struct{} {
	return s.done
}

// Await blocks until the session resolves or ctx is done. A done context returns
// ctx.Err() and leaves the session open; cancellation of the dialog itself stays
// an explicit Cancel call.
func (s *session[T]) Await(ctx context.Context) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-s.done:
		return s.value, s.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// transitionLocked moves the session to next. Callers hold s.mu.
func (s *session[T]) transitionLocked(next State) error {
	legal := isAllowed(s.state, next)
	if !invariants.CheckStateTransitionLegal(
		s.ctx,
		"prompt.session.transition",
		"prompt_session",
		string(s.state),
		string(next),
		legal,
	) {
		err := &IllegalTransitionError{SessionID: s.id, FromState: s.state, ToState: next}
		s.span.RecordError(err)
		return err
	}
	s.state = next
	return nil
}

// reject records a failed submission. The validation_failed state is left
// immediately so the session is open again before feedback runs.
func (s *session[T]) reject(candidate string) error {
	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return ErrAlreadyResolved
	}
	if err := s.transitionLocked(StateValidationFailed); err != nil {
		s.mu.Unlock()
		return err
	}
	s.failures++
	if err := s.transitionLocked(StateOpen); err != nil {
		s.mu.Unlock()
		return err
	}
	failures := s.failures
	s.mu.Unlock()

	s.span.AddEvent("prompt.validation_failed", trace.WithAttributes(attribute.Int("failures", failures)))
	s.publish(events.EventTypeValidationFailed, events.SeverityWarn, candidate)
	return nil
}

// resolve delivers the terminal outcome. The surface is dismissed and the
// resolve hook has run before the waiting caller is released.
func (s *session[T]) resolve(outcome State, value T, err error) error {
	s.mu.Lock()
	if !invariants.CheckSingleResolution(s.ctx, "prompt.session.resolve", s.id, s.state.Terminal()) {
		s.mu.Unlock()
		return ErrAlreadyResolved
	}
	if transitionErr := s.transitionLocked(outcome); transitionErr != nil {
		s.mu.Unlock()
		return transitionErr
	}
	s.value = value
	s.err = err
	failures := s.failures
	s.mu.Unlock()

	if s.surface != nil {
		s.surface.Dismiss()
	}

	s.span.SetAttributes(
		attribute.String("outcome", string(outcome)),
		attribute.Int("failures", failures),
		attribute.Int64("duration_ms", time.Since(s.opened).Milliseconds()),
	)
	switch {
	case err != nil && !errors.Is(err, ErrCancelled):
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	default:
		s.span.SetStatus(codes.Ok, "prompt session resolved")
	}
	s.span.End()

	s.publish(events.EventTypeSessionResolved, events.SeverityInfo, "")
	if s.hook != nil {
		s.hook(value, err)
	}
	close(s.done)
	return nil
}

func (s *session[T]) publish(eventType string, severity string, rejected string) {
	if s.cfg.bus == nil {
		return
	}
	s.mu.Lock()
	payload := Outcome{
		SessionID: s.id,
		Kind:      s.kind,
		Title:     s.title,
		State:     s.state,
		Failures:  s.failures,
		Rejected:  rejected,
	}
	s.mu.Unlock()

	s.cfg.bus.Publish(events.Event{
		Type:       eventType,
		EntityType: "prompt_session",
		EntityID:   s.id,
		Payload:    payload,
		Severity:   severity,
	})
}

func newSessionID() string {
	return uuid.NewString()
}
