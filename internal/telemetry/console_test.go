package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConsoleExporterPrintsSelectedAttributesAndEvents(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	_, span := provider.Tracer("console-test").Start(context.Background(), "prompt.session")
	span.SetAttributes(
		attribute.String("kind", "confirm"),
		attribute.String("title", "Save record?"),
		attribute.String("outcome", "submitted"),
	)
	span.AddEvent("prompt.validation_failed")
	span.End()

	var out bytes.Buffer
	exporter := &consoleExporter{out: &out}
	if err := exporter.ExportSpans(context.Background(), recorder.Ended()); err != nil {
		t.Fatalf("export spans: %v", err)
	}
	if err := exporter.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %q, want span and event", lines)
	}
	if !strings.HasPrefix(lines[0], "[SPAN] prompt.session ") {
		t.Fatalf("span line = %q", lines[0])
	}
	if !strings.HasSuffix(lines[0], "kind=confirm outcome=submitted") {
		t.Fatalf("span line %q should end with the selected attributes", lines[0])
	}
	if strings.Contains(lines[0], "Save record?") {
		t.Fatalf("span line %q should not print the title", lines[0])
	}
	if lines[1] != "  [EVENT] prompt.validation_failed" {
		t.Fatalf("event line = %q", lines[1])
	}
}
