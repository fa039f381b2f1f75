// Package logging writes the JSON run log. Each process gets its own file so
// a bug report can pick the newest runs without parsing.
package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"go.opentelemetry.io/otel/trace"
)

// DefaultKeep is how many log files survive pruning, the new one included.
const DefaultKeep = 20

const filePrefix = "bibnote-"

// Option configures New.
type Option func(*settings)

type settings struct {
	dir   string
	level log.Level
	runID string
	keep  int
	now   func() time.Time
}

// WithDir writes the log file under dir instead of ~/.bibnote/logs.
func WithDir(dir string) Option {
	return func(s *settings) {
		s.dir = strings.TrimSpace(dir)
	}
}

// WithLevel sets the minimum level by name. Unknown names keep info.
func WithLevel(level string) Option {
	return func(s *settings) {
		if parsed, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(level))); err == nil {
			s.level = parsed
		}
	}
}

// WithRunID stamps every record with run_id and puts the ID in the file name.
func WithRunID(runID string) Option {
	return func(s *settings) {
		s.runID = strings.TrimSpace(runID)
	}
}

// WithRetention keeps the newest keep log files and removes older ones when the
// logger opens. Zero or less disables pruning.
func WithRetention(keep int) Option {
	return func(s *settings) {
		s.keep = keep
	}
}

// RuntimeLogger owns the log file. Logger is rebuilt whenever the correlation
// fields change, so hold on to the RuntimeLogger rather than a copy of Logger.
type RuntimeLogger struct {
	Logger *log.Logger

	base    *log.Logger
	file    *os.File
	path    string
	runID   string
	traceID string
	spanID  string
}

// New opens a fresh log file. The trace and span of ctx, when present, are
// attached to every record.
func New(ctx context.Context, options ...Option) (*RuntimeLogger, error) {
	cfg := resolveOptions(options)
	dir := cfg.dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dir = filepath.Join(home, ".bibnote", "logs")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	name := filePrefix + cfg.now().UTC().Format("20060102-150405")
	if cfg.runID != "" {
		name += "-" + cfg.runID
	}
	path := filepath.Join(dir, name+".log")
	// #nosec G304 -- path is built from the configured log directory.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	base := log.NewWithOptions(file, log.Options{
		Level:           cfg.level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	base.SetFormatter(log.JSONFormatter)

	r := &RuntimeLogger{base: base, file: file, path: path, runID: cfg.runID}
	r.BindSpan(ctx)
	r.Logger.Info("logger initialized", "log_file", path)

	if cfg.keep > 0 {
		removed, err := prune(dir, path, cfg.keep)
		if err != nil {
			r.Logger.Warn("could not prune old logs", "err", err)
		} else if removed > 0 {
			r.Logger.Debug("pruned old logs", "removed", removed)
		}
	}
	return r, nil
}

// Discard returns a logger that drops every record.
func Discard() *RuntimeLogger {
	r := &RuntimeLogger{base: log.NewWithOptions(discardWriter{}, log.Options{Level: log.FatalLevel + 1})}
	r.rebuild()
	return r
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

// BindSpan copies the trace and span IDs of ctx into later records. A context
// without a span clears them.
func (r *RuntimeLogger) BindSpan(ctx context.Context) *RuntimeLogger {
	if r == nil {
		return nil
	}
	r.traceID, r.spanID = "", ""
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			r.traceID = sc.TraceID().String()
			r.spanID = sc.SpanID().String()
		}
	}
	r.rebuild()
	return r
}

// WithRunID replaces the run_id of later records.
func (r *RuntimeLogger) WithRunID(runID string) *RuntimeLogger {
	if r == nil {
		return nil
	}
	r.runID = strings.TrimSpace(runID)
	r.rebuild()
	return r
}

// Close closes the log file. Closing twice is not an error.
func (r *RuntimeLogger) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	if err := r.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// Path returns the log file path, or "" for Discard.
func (r *RuntimeLogger) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

func (r *RuntimeLogger) rebuild() {
	if r.base == nil {
		return
	}
	r.Logger = r.base.With("run_id", r.runID, "trace_id", r.traceID, "span_id", r.spanID)
}

// prune removes all but the newest keep bibnote log files in dir. current is
// never removed.
func prune(dir, current string, keep int) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	type logFile struct {
		path string
		mod  time.Time
	}
	files := make([]logFile, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || filepath.Ext(name) != ".log" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{path: filepath.Join(dir, name), mod: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].mod.After(files[j].mod)
	})

	removed := 0
	var errs []error
	kept := 0
	for _, file := range files {
		if file.path == current || kept < keep-1 {
			if file.path != current {
				kept++
			}
			continue
		}
		if err := os.Remove(file.path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func resolveOptions(options []Option) settings {
	resolved := settings{level: log.InfoLevel, keep: DefaultKeep, now: time.Now}
	for _, option := range options {
		if option != nil {
			option(&resolved)
		}
	}
	return resolved
}
