package components

import (
	"strings"

	"github.com/bibnote/bibnote/internal/tui/theme"
	"github.com/charmbracelet/lipgloss"
)

// BadgeOpt tweaks RenderStatusBadge.
type BadgeOpt func(*lipgloss.Style)

// WithBadgeBold renders the badge in bold.
func WithBadgeBold(bold bool) BadgeOpt {
	return func(style *lipgloss.Style) {
		*style = style.Bold(bold)
	}
}

// RenderStatusBadge renders "<glyph> LABEL" for a doctor check status or a
// command outcome. Unrecognised statuses get a "?" glyph and their own label.
func RenderStatusBadge(status string, opts ...BadgeOpt) string {
	label := strings.ToUpper(strings.TrimSpace(status))
	glyph, color := "?", lipgloss.TerminalColor(theme.SlateColor)
	switch label {
	case "OK", "SAVED":
		glyph, color = "✓", theme.MossColor
	case "WARN":
		glyph, color = "▲", theme.SaffronColor
	case "CANCELLED":
		glyph = "▲"
	case "FAIL":
		glyph, color = "✗", theme.OxbloodColor
	case "":
		label = "UNKNOWN"
	}

	style := lipgloss.NewStyle().Foreground(color)
	for _, opt := range opts {
		if opt != nil {
			opt(&style)
		}
	}
	return style.Render(glyph + " " + label)
}
