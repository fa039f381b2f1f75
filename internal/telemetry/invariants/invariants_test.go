package invariants

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestReportAddsEventToActiveSpan(t *testing.T) {
	enable(t, true)
	recorder := installRecorder(t)

	ctx, span := otel.Tracer("test/invariants").Start(context.Background(), "operation")
	Report(ctx, Violation{
		Invariant: SingleResolution,
		Severity:  Error,
		What:      "prompt session resolves exactly once",
		Where:     "prompt.TextSession.Submit",
		Why:       "second terminal action",
		Stack:     "trace",
		Context:   map[string]string{"session_id": "session-1", "empty": " "},
	})
	span.End()

	events := eventsOf(recorder, "operation")
	require.Len(t, events, 1)
	assert.Equal(t, "invariant.violation", events[0].Name)
	assert.Equal(t, SingleResolution, attr(events[0], "invariant_name"))
	assert.Equal(t, "error", attr(events[0], "severity"))
	assert.Equal(t, "prompt.TextSession.Submit", attr(events[0], "where_detected"))
	assert.Equal(t, "trace", attr(events[0], "stack_trace"))
	assert.Equal(t, "session-1", attr(events[0], "context.session_id"))
	assert.Empty(t, attr(events[0], "context.empty"))
}

func TestReportWithoutSpanOpensItsOwn(t *testing.T) {
	enable(t, true)
	recorder := installRecorder(t)

	Report(context.Background(), Violation{Severity: "bogus"})

	events := eventsOf(recorder, "invariant.violation")
	require.Len(t, events, 1)
	assert.Equal(t, "unknown_invariant", attr(events[0], "invariant_name"))
	assert.Equal(t, "error", attr(events[0], "severity"), "unknown severities are treated as errors")
}

func TestReportDisabledEmitsNothing(t *testing.T) {
	enable(t, false)
	recorder := installRecorder(t)

	ctx, span := otel.Tracer("test/invariants").Start(context.Background(), "operation")
	assert.False(t, CheckSingleResolution(ctx, "prompt.session.resolve", "session-1", true),
		"checks still report the failure while disabled")
	span.End()

	assert.Empty(t, eventsOf(recorder, "operation"))
}

func TestChecksEmitTheirInvariant(t *testing.T) {
	enable(t, true)

	tests := []struct {
		name         string
		wantName     string
		wantSeverity string
		run          func(ctx context.Context) bool
	}{
		{
			name:         "single resolution",
			wantName:     SingleResolution,
			wantSeverity: "error",
			run: func(ctx context.Context) bool {
				return CheckSingleResolution(ctx, "prompt.session.resolve", "session-7", true)
			},
		},
		{
			name:         "record title",
			wantName:     RecordTitleIsSafe,
			wantSeverity: "warn",
			run: func(ctx context.Context) bool {
				return CheckRecordTitleSafe(ctx, "records.Store.Save", "../escape", false)
			},
		},
		{
			name:         "state transition",
			wantName:     LegalTransition,
			wantSeverity: "error",
			run: func(ctx context.Context) bool {
				return CheckStateTransitionLegal(ctx, "prompt.session.transition", "prompt_session", "submitted", "open", false)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			recorder := installRecorder(t)

			ctx, span := otel.Tracer("test/invariants").Start(context.Background(), "operation")
			assert.False(t, tt.run(ctx))
			span.End()

			events := eventsOf(recorder, "operation")
			require.Len(t, events, 1)
			assert.Equal(t, tt.wantName, attr(events[0], "invariant_name"))
			assert.Equal(t, tt.wantSeverity, attr(events[0], "severity"))
		})
	}
}

func TestTransitionViolationCarriesStates(t *testing.T) {
	enable(t, true)
	recorder := installRecorder(t)

	ctx, span := otel.Tracer("test/invariants").Start(context.Background(), "operation")
	CheckStateTransitionLegal(ctx, "prompt.session.transition", "prompt_session", "cancelled", "submitted", false)
	span.End()

	events := eventsOf(recorder, "operation")
	require.Len(t, events, 1)
	assert.Equal(t, "cancelled", attr(events[0], "context.from_state"))
	assert.Equal(t, "submitted", attr(events[0], "context.to_state"))
	assert.Equal(t, "prompt_session cannot move from cancelled to submitted", attr(events[0], "why_violated"))
}

func TestPassingChecksEmitNothing(t *testing.T) {
	enable(t, true)
	recorder := installRecorder(t)

	ctx, span := otel.Tracer("test/invariants").Start(context.Background(), "operation")
	assert.True(t, CheckSingleResolution(ctx, "prompt.session.resolve", "session-1", false))
	assert.True(t, CheckRecordTitleSafe(ctx, "records.Store.Save", "Dune", true))
	assert.True(t, CheckStateTransitionLegal(ctx, "prompt.session.transition", "prompt_session", "open", "submitted", true))
	span.End()

	assert.Empty(t, eventsOf(recorder, "operation"))
}

func enable(t *testing.T, enabled bool) {
	t.Helper()
	previous := Enabled()
	SetEnabled(enabled)
	t.Cleanup(func() { SetEnabled(previous) })
}

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		otel.SetTracerProvider(previous)
	})
	return recorder
}

func eventsOf(recorder *tracetest.SpanRecorder, spanName string) []sdktrace.Event {
	for _, finished := range recorder.Ended() {
		if finished.Name() == spanName {
			return finished.Events()
		}
	}
	return nil
}

func attr(event sdktrace.Event, key string) string {
	for _, kv := range event.Attributes {
		if string(kv.Key) == key {
			return kv.Value.AsString()
		}
	}
	return ""
}
