package views

import (
	"fmt"
	"strings"

	"github.com/bibnote/bibnote/internal/doctor"
	"github.com/bibnote/bibnote/internal/tui/components"
	"github.com/bibnote/bibnote/internal/tui/theme"
)

// RenderHealthReport renders one line per check followed by a verdict.
func RenderHealthReport(report doctor.HealthReport) string {
	width := 0
	for _, check := range report.Checks {
		width = max(width, len(check.Name))
	}

	lines := make([]string, 0, len(report.Checks)+2)
	for _, check := range report.Checks {
		badge := components.RenderStatusBadge(string(check.Status), components.WithBadgeBold(true))
		lines = append(lines, fmt.Sprintf("%s  %-*s  %s", badge, width, check.Name, theme.BodyStyle.Render(check.Detail)))
	}
	lines = append(lines, "")
	if report.Healthy() {
		lines = append(lines, theme.SuccessStyle.Render("Ready to record."))
	} else {
		lines = append(lines, theme.ErrorStyle.Render("Fix the failing checks above."))
	}
	return strings.Join(lines, "\n")
}
