package tracing

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StartCommand opens a "cli.command" span for one CLI invocation. The returned
// finish func ends the span; a nil error marks it Ok.
func StartCommand(ctx context.Context, args []string) (context.Context, func(error)) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "cli.command", trace.WithAttributes(
		attribute.String("command", CommandName(args)),
		attribute.String("args_redacted", strings.Join(RedactArgs(args), " ")),
	))
	started := time.Now()
	return ctx, func(err error) {
		endSpan(span, started, err, "command completed")
	}
}

// CommandName returns the first non-flag argument, or "root".
func CommandName(args []string) string {
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		if arg == "" || strings.HasPrefix(arg, "-") {
			continue
		}
		return arg
	}
	return "root"
}

// RedactArgs masks values of sensitive flags, both "--token x" and "--token=x".
func RedactArgs(args []string) []string {
	redacted := make([]string, 0, len(args))
	maskNext := false
	for _, arg := range args {
		if maskNext {
			redacted = append(redacted, "<redacted>")
			maskNext = false
			continue
		}

		trimmed := strings.TrimSpace(arg)
		if key, _, ok := strings.Cut(trimmed, "="); ok && isSensitive(strings.ToLower(key)) {
			redacted = append(redacted, key+"=<redacted>")
			continue
		}
		if strings.HasPrefix(trimmed, "-") && isSensitive(strings.ToLower(trimmed)) {
			maskNext = true
		}
		redacted = append(redacted, trimmed)
	}
	return redacted
}

// IsSensitiveKey reports whether a flag or config key names a secret.
func IsSensitiveKey(key string) bool {
	return isSensitive(strings.ToLower(strings.TrimSpace(key)))
}

func isSensitive(value string) bool {
	for _, candidate := range []string{"token", "password", "passwd", "secret", "api-key", "api_key", "apikey", "auth", "bearer", "header"} {
		if strings.Contains(value, candidate) {
			return true
		}
	}
	return false
}
