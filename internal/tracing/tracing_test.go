package tracing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRunCapturesOutputAndSpan(t *testing.T) {
	recorder := recordSpans(t)
	dir := t.TempDir()

	result, err := Run(context.Background(), "sh", []string{"-c", "echo hello; echo oops >&2"}, dir)
	require.NoError(t, err)
	assert.Equal(t, Result{ExitCode: 0, Stdout: "hello", Stderr: "oops"}, result)

	span := onlySpan(t, recorder, "tool.exec")
	assert.Equal(t, codes.Ok, span.Status().Code)
	attrs := attrMap(span)
	assert.Equal(t, "sh", attrs["tool_name"])
	assert.Equal(t, dir, attrs["dir"])
	assert.Equal(t, "0", attrs["exit_code"])

	events := map[string]string{}
	for _, event := range span.Events() {
		for _, kv := range event.Attributes {
			events[event.Name] = kv.Value.AsString()
		}
	}
	assert.Equal(t, map[string]string{"tool.stdout": "hello", "tool.stderr": "oops"}, events)
}

func TestRunFailureKeepsExitCodeAndClipsEvents(t *testing.T) {
	recorder := recordSpans(t)

	result, err := Run(context.Background(), "sh", []string{"-c", "head -c 1600 /dev/zero | tr '\\000' 'a'; exit 3"}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run sh -c")
	assert.Equal(t, 3, result.ExitCode)
	assert.Len(t, result.Stdout, 1600)

	span := onlySpan(t, recorder, "tool.exec")
	assert.Equal(t, codes.Error, span.Status().Code)
	require.Len(t, span.Events(), 2, "exception event plus stdout")
	var stdout string
	for _, event := range span.Events() {
		if event.Name == "tool.stdout" {
			stdout = event.Attributes[0].Value.AsString()
		}
	}
	assert.Len(t, stdout, maxOutputEventBytes)
	assert.True(t, strings.HasSuffix(stdout, truncatedMarker))
}

func TestRunCancelledContextReportsMinusOne(t *testing.T) {
	recordSpans(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result, err := Run(ctx, "sh", []string{"-c", "sleep 1"}, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, -1, result.ExitCode)
}

func TestRunRejectsBlankName(t *testing.T) {
	_, err := Run(context.Background(), " ", nil, "")
	assert.EqualError(t, err, "tool name must not be empty")
}

func TestStartCommandEndsSpanWithStatus(t *testing.T) {
	recorder := recordSpans(t)

	_, finish := StartCommand(context.Background(), []string{"add", "--otel-endpoint", "http://x"})
	finish(nil)
	_, finish = StartCommand(context.Background(), []string{"show"})
	finish(errors.New("no such record"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "add", attrMap(spans[0])["command"])
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, "show", attrMap(spans[1])["command"])
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "no such record", spans[1].Status().Description)
}

func TestCommandName(t *testing.T) {
	assert.Equal(t, "add", CommandName([]string{"add"}))
	assert.Equal(t, "list", CommandName([]string{"--verbose", "", "list"}))
	assert.Equal(t, "root", CommandName([]string{"--help"}))
	assert.Equal(t, "root", CommandName(nil))
}

func TestRedactArgs(t *testing.T) {
	got := RedactArgs([]string{"add", "--token", "abc123", "--password=supersecret", "--safe=value", "token-like-value"})
	assert.Equal(t, []string{"add", "--token", "<redacted>", "--password=<redacted>", "--safe=value", "token-like-value"}, got)

	assert.True(t, IsSensitiveKey(" API_KEY "))
	assert.True(t, IsSensitiveKey("otel_headers"))
	assert.False(t, IsSensitiveKey("vault_dir"))
}

func TestClipAndFormatCommand(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "abc", clip("abcdef", 3))
	assert.Equal(t, "abcdef", clip("abcdef", 0))
	assert.Equal(t, "abcdef"+truncatedMarker, clip(strings.Repeat("abcdef", 10), 6+len(truncatedMarker)))

	assert.Equal(t, "git rev-parse HEAD", FormatCommand(" git ", []string{"rev-parse", " ", "HEAD"}))
}

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
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

func onlySpan(t *testing.T, recorder *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, name, spans[0].Name())
	return spans[0]
}

func attrMap(span sdktrace.ReadOnlySpan) map[string]string {
	attrs := map[string]string{}
	for _, kv := range span.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	return attrs
}
