package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func readRecords(t *testing.T, path string) []map[string]any {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	records := make([]map[string]any, 0)
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		record := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &record), line)
		records = append(records, record)
	}
	return records
}

func TestNewWritesJSONRecordsToDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(context.Background(), WithDir(dir), WithRunID("run-42"), WithLevel("debug"))
	require.NoError(t, err)

	logger.Logger.Debug("session opened", "session_id", "s-1")
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	assert.Equal(t, dir, filepath.Dir(logger.Path()))
	assert.True(t, strings.HasPrefix(filepath.Base(logger.Path()), "bibnote-"))
	assert.True(t, strings.HasSuffix(logger.Path(), "-run-42.log"))

	records := readRecords(t, logger.Path())
	require.Len(t, records, 2)
	assert.Equal(t, "logger initialized", records[0]["msg"])
	assert.Equal(t, "session opened", records[1]["msg"])
	assert.Equal(t, "run-42", records[1]["run_id"])
	assert.Equal(t, "", records[1]["trace_id"])
	assert.Equal(t, "s-1", records[1]["session_id"])
}

func TestBindSpanStampsTraceAndSpanIDs(t *testing.T) {
	t.Parallel()

	provider := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	ctx, span := provider.Tracer("test/logging").Start(context.Background(), "cli.command")
	defer span.End()

	logger, err := New(ctx, WithDir(t.TempDir()))
	require.NoError(t, err)
	logger.Logger.Info("inside span")
	logger.BindSpan(context.Background()).Logger.Info("outside span")
	require.NoError(t, logger.Close())

	records := readRecords(t, logger.Path())
	require.Len(t, records, 3)
	assert.Equal(t, span.SpanContext().TraceID().String(), records[1]["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), records[1]["span_id"])
	assert.Equal(t, "", records[2]["trace_id"])
}

func TestWithLevelFiltersRecords(t *testing.T) {
	t.Parallel()

	logger, err := New(context.Background(), WithDir(t.TempDir()), WithLevel("warn"))
	require.NoError(t, err)
	logger.Logger.Info("dropped")
	logger.Logger.Warn("kept")
	require.NoError(t, logger.Close())

	content, err := os.ReadFile(logger.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(content), "dropped")
	assert.Contains(t, string(content), "kept")
}

func TestRetentionKeepsNewestLogs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, fmt.Sprintf("bibnote-old-%d.log", i))
		require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0o600))
		mod := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, os.Chtimes(path, mod, mod))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep me"), 0o600))

	logger, err := New(context.Background(), WithDir(dir), WithRetention(3))
	require.NoError(t, err)
	require.NoError(t, logger.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	assert.ElementsMatch(t, []string{
		"bibnote-old-3.log",
		"bibnote-old-4.log",
		filepath.Base(logger.Path()),
		"notes.txt",
	}, names)
}

func TestRetentionDisabled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("bibnote-old-%d.log", i)), nil, 0o600))
	}
	logger, err := New(context.Background(), WithDir(dir), WithRetention(0))
	require.NoError(t, err)
	require.NoError(t, logger.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestResolveOptionsIgnoresUnknownLevel(t *testing.T) {
	t.Parallel()

	resolved := resolveOptions([]Option{nil, WithLevel("loud")})
	assert.Equal(t, log.InfoLevel, resolved.level)
	assert.Equal(t, DefaultKeep, resolved.keep)
}

func TestNilAndDiscardLoggers(t *testing.T) {
	t.Parallel()

	var nilLogger *RuntimeLogger
	assert.Nil(t, nilLogger.WithRunID("x"))
	assert.Nil(t, nilLogger.BindSpan(context.Background()))
	assert.Equal(t, "", nilLogger.Path())
	assert.NoError(t, nilLogger.Close())

	discard := Discard()
	require.NotNil(t, discard.Logger)
	discard.Logger.Error("nothing to see")
	assert.Equal(t, "", discard.Path())
	assert.NoError(t, discard.Close())
}
