// Package doctor inspects the vault, record folder and dialog host before a
// workflow needs them.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bibnote/bibnote/internal/config"
	"github.com/bibnote/bibnote/internal/events"
	"github.com/bibnote/bibnote/internal/records"
)

// Status is the outcome of one check.
type Status string

const (
	StatusOK   Status = "ok"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Check is one named health finding.
type Check struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail"`
}

// HealthReport is the result of one doctor run.
type HealthReport struct {
	Checks    []Check   `json:"checks"`
	CheckedAt time.Time `json:"checked_at"`
}

// Healthy reports whether no check failed.
func (r HealthReport) Healthy() bool {
	for _, check := range r.Checks {
		if check.Status == StatusFail {
			return false
		}
	}
	return true
}

// EventBus publishes the finished report.
type EventBus interface {
	Publish(event events.Event)
}

// Manager runs the health checks for one configuration.
type Manager struct {
	cfg         *config.Config
	interactive bool
	bus         EventBus
	now         func() time.Time
}

// NewManager builds a doctor for cfg. interactive reports whether stdin and
// stdout are a terminal. bus may be nil.
func NewManager(cfg *config.Config, interactive bool, bus EventBus) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	return &Manager{cfg: cfg, interactive: interactive, bus: bus, now: time.Now}, nil
}

// RunOnce executes every check in a fixed order.
func (m *Manager) RunOnce(ctx context.Context) (HealthReport, error) {
	if m == nil {
		return HealthReport{}, errors.New("doctor manager is nil")
	}
	if err := ctx.Err(); err != nil {
		return HealthReport{}, err
	}

	report := HealthReport{CheckedAt: m.now().UTC()}
	report.Checks = append(report.Checks,
		m.checkConfig(),
		m.checkVault(),
		m.checkRecordFolder(),
		m.checkNotes(),
		m.checkHost(),
	)

	if m.bus != nil {
		severity := events.SeverityInfo
		if !report.Healthy() {
			severity = events.SeverityWarn
		}
		m.bus.Publish(events.Event{
			Type:       events.EventTypeHealthCheck,
			Timestamp:  report.CheckedAt,
			EntityType: "health",
			EntityID:   "doctor",
			Payload:    report,
			Severity:   severity,
		})
	}
	return report, nil
}

func (m *Manager) checkConfig() Check {
	if err := m.cfg.Validate(); err != nil {
		return Check{Name: "config", Status: StatusFail, Detail: err.Error()}
	}
	return Check{Name: "config", Status: StatusOK, Detail: "configuration is valid"}
}

func (m *Manager) checkVault() Check {
	info, err := os.Stat(m.cfg.VaultDir)
	switch {
	case err != nil:
		return Check{Name: "vault", Status: StatusFail, Detail: fmt.Sprintf("vault %s: %v", m.cfg.VaultDir, err)}
	case !info.IsDir():
		return Check{Name: "vault", Status: StatusFail, Detail: fmt.Sprintf("vault %s is not a directory", m.cfg.VaultDir)}
	}
	return Check{Name: "vault", Status: StatusOK, Detail: m.cfg.VaultDir}
}

// checkRecordFolder probes writability with a temporary file. A missing folder
// is a warning because the first save creates it.
func (m *Manager) checkRecordFolder() Check {
	dir := m.cfg.RecordDir()
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return Check{Name: "record folder", Status: StatusWarn, Detail: fmt.Sprintf("%s does not exist yet; it is created on first save", dir)}
	}
	if err != nil {
		return Check{Name: "record folder", Status: StatusFail, Detail: err.Error()}
	}
	if !info.IsDir() {
		return Check{Name: "record folder", Status: StatusFail, Detail: fmt.Sprintf("%s is not a directory", dir)}
	}

	probe, err := os.CreateTemp(dir, ".bibnote-doctor-*")
	if err != nil {
		return Check{Name: "record folder", Status: StatusFail, Detail: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)
	return Check{Name: "record folder", Status: StatusOK, Detail: dir}
}

func (m *Manager) checkNotes() Check {
	entries, err := os.ReadDir(m.cfg.RecordDir())
	if errors.Is(err, os.ErrNotExist) {
		return Check{Name: "notes", Status: StatusOK, Detail: "no notes yet"}
	}
	if err != nil {
		return Check{Name: "notes", Status: StatusFail, Detail: err.Error()}
	}

	notes := 0
	broken := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".md") {
			continue
		}
		notes++
		// #nosec G304 -- path is inside the configured record folder.
		data, readErr := os.ReadFile(filepath.Join(m.cfg.RecordDir(), entry.Name()))
		if readErr == nil {
			_, readErr = records.Parse(data)
		}
		if readErr != nil {
			broken = append(broken, entry.Name())
		}
	}
	if len(broken) > 0 {
		return Check{
			Name:   "notes",
			Status: StatusWarn,
			Detail: fmt.Sprintf("%d of %d note(s) unreadable: %s", len(broken), notes, strings.Join(broken, ", ")),
		}
	}
	return Check{Name: "notes", Status: StatusOK, Detail: fmt.Sprintf("%d note(s)", notes)}
}

func (m *Manager) checkHost() Check {
	switch {
	case m.cfg.Host == config.HostTUI && !m.interactive:
		return Check{Name: "host", Status: StatusFail, Detail: "host tui needs an interactive terminal"}
	case m.cfg.Host == config.HostAuto && !m.interactive:
		return Check{Name: "host", Status: StatusOK, Detail: "auto: line prompts (no terminal)"}
	case m.cfg.Host == config.HostAuto:
		return Check{Name: "host", Status: StatusOK, Detail: "auto: full-screen dialogs"}
	}
	return Check{Name: "host", Status: StatusOK, Detail: m.cfg.Host}
}
