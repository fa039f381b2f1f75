package events

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLogToWritesEventsAtSeverityLevel(t *testing.T) {
	t.Parallel()

	out := &lockedBuffer{}
	logger := log.NewWithOptions(out, log.Options{Level: log.InfoLevel})
	logger.SetFormatter(log.JSONFormatter)

	bus := New()
	LogTo(bus, logger)
	bus.Publish(Event{Type: EventTypeValidationFailed, EntityType: "prompt_session", EntityID: "session-1", Severity: "warn"})
	bus.Publish(Event{Type: EventTypeRecordSaved, EntityType: "record", EntityID: "Dune", Severity: SeverityInfo})
	bus.Close()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("log lines = %d, want 2\n%s", len(lines), out.String())
	}
	if !strings.Contains(lines[0], `"level":"warn"`) || !strings.Contains(lines[0], `"entity_id":"session-1"`) {
		t.Fatalf("unexpected warn line: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"level":"info"`) || !strings.Contains(lines[1], `"event_type":"RecordSaved"`) {
		t.Fatalf("unexpected info line: %s", lines[1])
	}
}

func TestLevelForSeverity(t *testing.T) {
	t.Parallel()

	tests := map[string]log.Level{
		SeverityError: log.ErrorLevel,
		" warn ":      log.WarnLevel,
		SeverityInfo:  log.InfoLevel,
		"":            log.InfoLevel,
	}
	for severity, want := range tests {
		if got := levelForSeverity(severity); got != want {
			t.Errorf("levelForSeverity(%q) = %v, want %v", severity, got, want)
		}
	}
}

func TestLogToIgnoresNilArguments(t *testing.T) {
	t.Parallel()

	LogTo(nil, log.Default())
	LogTo(New(), nil)
}
