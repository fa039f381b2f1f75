package events

import (
	"strings"

	"github.com/charmbracelet/log"
)

// LogTo subscribes logger to every event on bus. Events are logged at the level
// matching their severity.
func LogTo(bus Bus, logger *log.Logger) {
	if bus == nil || logger == nil {
		return
	}
	bus.SubscribeAll(func(event Event) {
		keyvals := []any{
			"event_type", event.Type,
			"entity_type", event.EntityType,
			"entity_id", event.EntityID,
		}
		if event.Payload != nil {
			keyvals = append(keyvals, "payload", event.Payload)
		}
		logger.Log(levelForSeverity(event.Severity), "event", keyvals...)
	})
}

func levelForSeverity(severity string) log.Level {
	switch strings.ToUpper(strings.TrimSpace(severity)) {
	case SeverityError:
		return log.ErrorLevel
	case SeverityWarn:
		return log.WarnLevel
	default:
		return log.InfoLevel
	}
}
