package events

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubscribeFiltersByType(t *testing.T) {
	t.Parallel()

	bus := New(WithLogger(&captureLogger{}))

	var mu sync.Mutex
	got := make([]string, 0)
	bus.Subscribe(EventTypeRecordSaved, func(event Event) {
		mu.Lock()
		got = append(got, event.EntityID)
		mu.Unlock()
	})

	bus.Publish(Event{Type: EventTypeSessionOpened, EntityID: "session-1"})
	bus.Publish(Event{Type: " " + EventTypeRecordSaved + " ", EntityID: "Dune"})
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(got) != "[Dune]" {
		t.Fatalf("record subscriber saw %v, want only Dune", got)
	}
}

func TestSubscribeAllSeesEveryTypeInOrder(t *testing.T) {
	t.Parallel()

	bus := New(WithLogger(&captureLogger{}))

	var mu sync.Mutex
	types := make([]string, 0)
	bus.SubscribeAll(func(event Event) {
		mu.Lock()
		types = append(types, event.Type)
		mu.Unlock()
	})

	for _, eventType := range []string{EventTypeSessionOpened, EventTypeValidationFailed, EventTypeSessionResolved} {
		bus.Publish(Event{Type: eventType, EntityType: "prompt_session", EntityID: "session-1"})
	}
	bus.Close()

	mu.Lock()
	defer mu.Unlock()
	want := []string{EventTypeSessionOpened, EventTypeValidationFailed, EventTypeSessionResolved}
	if fmt.Sprint(types) != fmt.Sprint(want) {
		t.Fatalf("types = %v, want %v", types, want)
	}
}

func TestBlankAndNilSubscriptionsAreIgnored(t *testing.T) {
	t.Parallel()

	bus := New(WithLogger(&captureLogger{}))
	bus.Subscribe("  ", func(Event) { t.Error("blank type subscription must not receive events") })
	bus.Subscribe(EventTypeRecordSaved, nil)
	bus.SubscribeAll(nil)

	bus.Publish(Event{Type: EventTypeRecordSaved})
	bus.Close()
}

func TestPublishDropsOnFullQueueWithoutBlocking(t *testing.T) {
	t.Parallel()

	logger := &captureLogger{}
	bus := New(WithBufferSize(1), WithLogger(logger))

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	bus.Subscribe(EventTypeValidationFailed, func(Event) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})

	event := Event{Type: EventTypeValidationFailed, EntityType: "prompt_session", EntityID: "session-42"}
	bus.Publish(event)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the handler to block")
	}

	bus.Publish(event)
	begin := time.Now()
	bus.Publish(event)
	if elapsed := time.Since(begin); elapsed > 100*time.Millisecond {
		t.Fatalf("publish blocked for %s", elapsed)
	}

	close(release)
	bus.Close()

	if !logger.contains("dropping ValidationFailed") || !logger.contains("session-42") {
		t.Fatalf("expected a drop warning, got %v", logger.messages())
	}
}

func TestPublishStampsTimestampAndKeepsFields(t *testing.T) {
	t.Parallel()

	bus := New(WithLogger(&captureLogger{}))
	ch := make(chan Event, 1)
	bus.Subscribe(EventTypeRecordSaved, func(event Event) { ch <- event })

	bus.Publish(Event{
		Type:       EventTypeRecordSaved,
		EntityType: "record",
		EntityID:   "Dune",
		Payload:    map[string]any{"path": "Bibliographic/Dune.md"},
		Severity:   SeverityInfo,
	})
	bus.Close()

	got := <-ch
	if got.Timestamp.IsZero() {
		t.Fatal("timestamp should be filled in")
	}
	if got.EntityType != "record" || got.EntityID != "Dune" || got.Severity != SeverityInfo {
		t.Fatalf("event fields changed: %+v", got)
	}

	fixed := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	bus2 := New(WithLogger(&captureLogger{}))
	ch2 := make(chan Event, 1)
	bus2.SubscribeAll(func(event Event) { ch2 <- event })
	bus2.Publish(Event{Type: EventTypeHealthCheck, Timestamp: fixed})
	bus2.Close()
	if stamped := (<-ch2).Timestamp; !stamped.Equal(fixed) {
		t.Fatalf("timestamp = %s, want caller's %s", stamped, fixed)
	}
}

func TestCloseDrainsQueuedEventsAndIsIdempotent(t *testing.T) {
	t.Parallel()

	bus := New(WithBufferSize(10), WithLogger(&captureLogger{}))
	var handled atomic.Int64
	bus.SubscribeAll(func(Event) {
		time.Sleep(time.Millisecond)
		handled.Add(1)
	})

	for i := 0; i < 5; i++ {
		bus.Publish(Event{Type: EventTypeCommandInvoked})
	}
	bus.Close()
	if got := handled.Load(); got != 5 {
		t.Fatalf("handled = %d after Close, want 5", got)
	}

	bus.Publish(Event{Type: EventTypeCommandInvoked})
	bus.SubscribeAll(func(Event) { t.Error("subscription after Close must not run") })
	bus.Close()
	if got := handled.Load(); got != 5 {
		t.Fatalf("handled = %d after publishing on a closed bus, want 5", got)
	}
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	t.Parallel()

	bus := New(WithBufferSize(5000), WithLogger(&captureLogger{}))
	const publishers = 20
	const perPublisher = 100

	var received atomic.Int64
	bus.SubscribeAll(func(Event) { received.Add(1) })

	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func(publisher int) {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				bus.Publish(Event{
					Type:     EventTypeValidationFailed,
					EntityID: fmt.Sprintf("session-%d", publisher),
					Payload:  j,
				})
			}
		}(i)
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bus.Subscribe(EventTypeValidationFailed, func(Event) {})
		}()
	}

	wg.Wait()
	bus.Close()
	if got := received.Load(); got != publishers*perPublisher {
		t.Fatalf("received = %d, want %d", got, publishers*perPublisher)
	}
}

type captureLogger struct {
	mu   sync.Mutex
	logs []string
}

func (c *captureLogger) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, fmt.Sprintf(format, args...))
}

func (c *captureLogger) contains(fragment string) bool {
	for _, message := range c.messages() {
		if strings.Contains(message, fragment) {
			return true
		}
	}
	return false
}

func (c *captureLogger) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.logs))
	copy(out, c.logs)
	return out
}
