// Package commands keeps the palette of named actions the CLI can invoke.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bibnote/bibnote/internal/events"
	"github.com/samber/lo"
)

var (
	// ErrDuplicate is returned when an ID is registered twice.
	ErrDuplicate = errors.New("command already registered")
	// ErrUnknown is returned for IDs that were never registered.
	ErrUnknown = errors.New("unknown command")
)

// Func is a zero-argument command callback.
type Func func(ctx context.Context) error

// Command is one palette entry.
type Command struct {
	ID   string
	Name string
	Run  Func
}

// Publisher receives CommandInvoked events.
type Publisher interface {
	Publish(event events.Event)
}

// Registry holds commands in registration order.
type Registry struct {
	mu       sync.RWMutex
	commands []Command
	bus      Publisher
}

// NewRegistry returns an empty registry. bus may be nil.
func NewRegistry(bus Publisher) *Registry {
	return &Registry{bus: bus}
}

// Register adds a command. IDs are kebab-case palette keys such as
// "add-bibliographic-entry".
func (r *Registry) Register(id, name string, run Func) error {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return errors.New("command id must not be empty")
	}
	if strings.ContainsAny(id, " \t\n") {
		return fmt.Errorf("command id %q must not contain whitespace", id)
	}
	if run == nil {
		return fmt.Errorf("command %q has no callback", id)
	}
	if name == "" {
		name = id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if lo.ContainsBy(r.commands, func(command Command) bool { return command.ID == id }) {
		return fmt.Errorf("%w: %s", ErrDuplicate, id)
	}
	r.commands = append(r.commands, Command{ID: id, Name: name, Run: run})
	return nil
}

// Lookup returns the command registered under id.
func (r *Registry) Lookup(id string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Find(r.commands, func(command Command) bool { return command.ID == strings.TrimSpace(id) })
}

// List returns every command in registration order.
func (r *Registry) List() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// IDs returns registered IDs in registration order.
func (r *Registry) IDs() []string {
	return lo.Map(r.List(), func(command Command, _ int) string { return command.ID })
}

// Invoke runs the command registered under id.
func (r *Registry) Invoke(ctx context.Context, id string) error {
	command, ok := r.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, id)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if r.bus != nil {
		r.bus.Publish(events.Event{
			Type:       events.EventTypeCommandInvoked,
			EntityType: "command",
			EntityID:   command.ID,
			Payload:    command.Name,
			Severity:   events.SeverityInfo,
		})
	}
	return command.Run(ctx)
}
