// Package tracing wraps external tool runs and CLI invocations in spans.
package tracing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName          = "bibnote/tracing"
	maxOutputEventBytes = 1024
	truncatedMarker     = "...[truncated]"
)

// Result is the captured outcome of a tool run. Output is trimmed.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Run executes name with args in dir under a "tool.exec" span. A cancelled or
// expired ctx yields exit code -1.
func Run(ctx context.Context, name string, args []string, dir string) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if name = strings.TrimSpace(name); name == "" {
		return Result{}, errors.New("tool name must not be empty")
	}
	redacted := RedactArgs(args)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "tool.exec", trace.WithAttributes(
		attribute.String("tool_name", name),
		attribute.String("args_redacted", strings.Join(redacted, " ")),
		attribute.String("dir", dir),
	))
	started := time.Now()

	var stdout, stderr bytes.Buffer
	// #nosec G204 -- callers pass fixed tool names; arguments are not shell-expanded.
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	runErr := cmd.Run()

	result := Result{
		ExitCode: exitCode(ctx, runErr),
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
	}
	span.SetAttributes(attribute.Int("exit_code", result.ExitCode))
	for event, output := range map[string]string{"tool.stdout": result.Stdout, "tool.stderr": result.Stderr} {
		if output != "" {
			span.AddEvent(event, trace.WithAttributes(attribute.String("output", clip(output, maxOutputEventBytes))))
		}
	}

	if runErr != nil {
		runErr = fmt.Errorf("run %s: %w", FormatCommand(name, redacted), runErr)
	}
	endSpan(span, started, runErr, "tool command completed")
	return result, runErr
}

// endSpan stamps duration_ms and the status derived from err, then ends span.
func endSpan(span trace.Span, started time.Time, err error, okMessage string) {
	span.SetAttributes(attribute.Int64("duration_ms", time.Since(started).Milliseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, okMessage)
	}
	span.End()
}

func exitCode(ctx context.Context, err error) int {
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0
	case ctx.Err() != nil:
		return -1
	case errors.As(err, &exitErr):
		return exitErr.ExitCode()
	default:
		return -1
	}
}

// clip shortens value to limit bytes, ending with a truncation marker.
func clip(value string, limit int) string {
	switch {
	case limit <= 0 || len(value) <= limit:
		return value
	case limit <= len(truncatedMarker):
		return value[:limit]
	default:
		return value[:limit-len(truncatedMarker)] + truncatedMarker
	}
}

// FormatCommand joins a tool name and its non-blank arguments for logs and errors.
func FormatCommand(name string, args []string) string {
	fields := strings.Fields(name)
	for _, arg := range args {
		if arg = strings.TrimSpace(arg); arg != "" {
			fields = append(fields, arg)
		}
	}
	return strings.Join(fields, " ")
}
