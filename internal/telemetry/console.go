package telemetry

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// consoleAttributes are the span attributes worth a glance in the fallback
// output; everything else stays in the OTLP export.
var consoleAttributes = map[string]bool{
	"kind":      true,
	"outcome":   true,
	"failures":  true,
	"command":   true,
	"tool_name": true,
	"exit_code": true,
}

// consoleExporter prints one line per span plus its events.
type consoleExporter struct {
	mu  sync.Mutex
	out io.Writer
}

func (e *consoleExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, span := range spans {
		fields := make([]string, 0, 4)
		for _, kv := range span.Attributes() {
			if consoleAttributes[string(kv.Key)] {
				fields = append(fields, fmt.Sprintf("%s=%s", kv.Key, kv.Value.Emit()))
			}
		}
		line := fmt.Sprintf("[SPAN] %s %s %v", span.Name(), span.EndTime().Sub(span.StartTime()).Round(time.Millisecond), span.Status().Code)
		if len(fields) > 0 {
			line += " " + strings.Join(fields, " ")
		}
		if _, err := fmt.Fprintln(e.out, line); err != nil {
			return err
		}
		for _, event := range span.Events() {
			if _, err := fmt.Fprintf(e.out, "  [EVENT] %s\n", event.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *consoleExporter) Shutdown(context.Context) error {
	return nil
}
