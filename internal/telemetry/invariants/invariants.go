// Package invariants reports broken runtime guarantees as span events named
// invariant.violation. A check returns whether the guarantee held, so callers
// can guard the offending operation in the same expression.
package invariants

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Guarantees checked across the module.
const (
	SingleResolution   = "single_resolution"
	LegalTransition    = "state_transition_legal"
	RecordTitleIsSafe  = "record_title_safe"
	unnamedGuarantee   = "unknown_invariant"
	violationEventName = "invariant.violation"
)

// Severity of a violation.
type Severity string

const (
	// Warn marks a violation the caller recovers from by refusing the operation.
	Warn Severity = "warn"
	// Error marks a programming error.
	Error Severity = "error"
)

var disabled atomic.Bool

// SetEnabled turns reporting on or off for the whole process. Checks still
// return their result while disabled.
func SetEnabled(enabled bool) {
	disabled.Store(!enabled)
}

// Enabled reports whether violations are recorded.
func Enabled() bool {
	return !disabled.Load()
}

// Violation describes one broken guarantee.
type Violation struct {
	Invariant string
	Severity  Severity
	What      string
	Where     string
	Why       string
	Stack     string
	Context   map[string]string
}

func (v Violation) attributes() []attribute.KeyValue {
	name := strings.TrimSpace(v.Invariant)
	if name == "" {
		name = unnamedGuarantee
	}
	severity := v.Severity
	if severity != Warn {
		severity = Error
	}

	attrs := []attribute.KeyValue{
		attribute.String("invariant_name", name),
		attribute.String("severity", string(severity)),
		attribute.String("what_invariant", strings.TrimSpace(v.What)),
		attribute.String("where_detected", strings.TrimSpace(v.Where)),
		attribute.String("why_violated", strings.TrimSpace(v.Why)),
	}
	if stack := strings.TrimSpace(v.Stack); stack != "" {
		attrs = append(attrs, attribute.String("stack_trace", stack))
	}

	keys := make([]string, 0, len(v.Context))
	for key := range v.Context {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if value := strings.TrimSpace(v.Context[key]); value != "" {
			attrs = append(attrs, attribute.String("context."+key, value))
		}
	}
	return attrs
}

// Report records v on the span in ctx. Without a recording span it opens a
// short span of its own so the violation is still exported.
func Report(ctx context.Context, v Violation) {
	if !Enabled() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	event := trace.WithAttributes(v.attributes()...)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		span.AddEvent(violationEventName, event)
		return
	}

	_, span := otel.Tracer("bibnote/invariants").Start(ctx, violationEventName)
	span.AddEvent(violationEventName, event)
	span.End()
}

// CheckSingleResolution fails when a terminal action reaches a session that
// has already resolved.
func CheckSingleResolution(ctx context.Context, where string, sessionID string, alreadyResolved bool) bool {
	if !alreadyResolved {
		return true
	}
	Report(ctx, Violation{
		Invariant: SingleResolution,
		Severity:  Error,
		What:      "prompt session resolves exactly once",
		Where:     where,
		Why:       "terminal action on a session that already resolved",
		Context:   map[string]string{"session_id": sessionID},
	})
	return false
}

// CheckRecordTitleSafe fails when a record title cannot be used as one file name
// inside the record folder.
func CheckRecordTitleSafe(ctx context.Context, where string, title string, safe bool) bool {
	if safe {
		return true
	}
	Report(ctx, Violation{
		Invariant: RecordTitleIsSafe,
		Severity:  Warn,
		What:      "record title is a single path element",
		Where:     where,
		Why:       fmt.Sprintf("title %q would escape the record folder", title),
		Context:   map[string]string{"title": title},
	})
	return false
}

// CheckStateTransitionLegal fails on a move the lifecycle table does not allow.
func CheckStateTransitionLegal(ctx context.Context, where, entityType, from, to string, legal bool) bool {
	if legal {
		return true
	}
	Report(ctx, Violation{
		Invariant: LegalTransition,
		Severity:  Error,
		What:      "state machine transition is legal",
		Where:     where,
		Why:       fmt.Sprintf("%s cannot move from %s to %s", entityType, from, to),
		Context: map[string]string{
			"entity_type": entityType,
			"from_state":  from,
			"to_state":    to,
		},
	})
	return false
}
