// Package events carries session, command and record notifications between the
// prompt adapter, the workflows and the CLI log.
package events

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultBufferSize is the queue length of each subscription.
const DefaultBufferSize = 100

// Event types.
const (
	EventTypeSessionOpened    = "SessionOpened"
	EventTypeValidationFailed = "ValidationFailed"
	EventTypeSessionResolved  = "SessionResolved"
	EventTypeCommandInvoked   = "CommandInvoked"
	EventTypeRecordSaved      = "RecordSaved"
	EventTypeHealthCheck      = "HealthCheck"
)

// Severities.
const (
	SeverityInfo  = "INFO"
	SeverityWarn  = "WARN"
	SeverityError = "ERROR"
)

// Event is one notification. EntityType and EntityID name what it is about,
// for example a prompt session ID or a record title.
type Event struct {
	Type       string
	Timestamp  time.Time
	EntityType string
	EntityID   string
	Payload    any
	Severity   string
}

// Handler consumes events on the subscription's own goroutine.
type Handler func(Event)

// Logger receives a line for every event dropped on a full queue.
type Logger interface {
	Printf(format string, args ...any)
}

// Bus is the publish side plus subscription.
type Bus interface {
	Subscribe(eventType string, handler Handler)
	SubscribeAll(handler Handler)
	Publish(event Event)
}

// Option configures New.
type Option func(*InMemoryBus)

// WithBufferSize sets the queue length of each subscription.
func WithBufferSize(size int) Option {
	return func(bus *InMemoryBus) {
		if size > 0 {
			bus.queueSize = size
		}
	}
}

// WithLogger sets where drop warnings go.
func WithLogger(logger Logger) Option {
	return func(bus *InMemoryBus) {
		if logger != nil {
			bus.logger = logger
		}
	}
}

// InMemoryBus fans events out to buffered per-subscription queues. Publish never
// blocks: an event that does not fit a queue is dropped for that subscriber.
type InMemoryBus struct {
	queueSize int
	logger    Logger

	mu     sync.RWMutex
	subs   []*subscription
	nextID uint64
	closed bool

	running sync.WaitGroup
}

type subscription struct {
	id     uint64
	only   string
	queue  chan Event
	handle Handler
}

func (s *subscription) wants(eventType string) bool {
	return s.only == "" || s.only == eventType
}

// New returns an open bus.
func New(options ...Option) *InMemoryBus {
	bus := &InMemoryBus{
		queueSize: DefaultBufferSize,
		logger:    log.Default(),
	}
	for _, option := range options {
		option(bus)
	}
	return bus
}

// Subscribe registers handler for one event type. Blank types are ignored.
func (b *InMemoryBus) Subscribe(eventType string, handler Handler) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return
	}
	b.add(eventType, handler)
}

// SubscribeAll registers handler for every event type.
func (b *InMemoryBus) SubscribeAll(handler Handler) {
	b.add("", handler)
}

func (b *InMemoryBus) add(only string, handler Handler) {
	if handler == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.nextID++
	sub := &subscription{
		id:     b.nextID,
		only:   only,
		queue:  make(chan Event, b.queueSize),
		handle: handler,
	}
	b.subs = append(b.subs, sub)

	b.running.Add(1)
	go func() {
		defer b.running.Done()
		for event := range sub.queue {
			sub.handle(event)
		}
	}()
}

// Publish stamps event if needed and queues it for every interested subscriber.
// Publishing on a closed bus does nothing.
func (b *InMemoryBus) Publish(event Event) {
	event.Type = strings.TrimSpace(event.Type)
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.queue <- event:
		default:
			b.logger.Printf("events: dropping %s for subscriber %d (%s %s)",
				event.Type, sub.id, event.EntityType, event.EntityID)
		}
	}
}

// Close stops accepting events and waits until every queued event has been
// handled. It is safe to call more than once.
func (b *InMemoryBus) Close() {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		for _, sub := range b.subs {
			close(sub.queue)
		}
	}
	b.mu.Unlock()

	b.running.Wait()
}
