package components

import (
	"strings"

	"github.com/bibnote/bibnote/internal/tui/theme"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

const (
	dialogDefaultWidth      = 120
	dialogDefaultHeight     = 30
	dialogStandardWidthPct  = 0.54
	dialogCompactWidthPct   = 0.80
	dialogCompactThreshold  = 120
	dialogMinimumModalWidth = 36
	dialogCollapsedWidth    = 20
)

// DialogButton is one rendered button.
type DialogButton struct {
	Label    string
	Emphasis bool
	Focused  bool
}

// DialogConfig is the render payload for one modal surface.
type DialogConfig struct {
	Width        int
	Height       int
	Title        string
	Messages     []string
	HasInput     bool
	Input        string
	InputFocused bool
	Buttons      []DialogButton
	Help         string
	// Progress is the open animation position, 0 collapsed and 1 fully open.
	Progress float64
}

// RenderDialog renders a centered modal over a dotted backdrop.
func RenderDialog(config DialogConfig) string {
	width := config.Width
	if width <= 0 {
		width = dialogDefaultWidth
	}
	height := config.Height
	if height <= 0 {
		height = dialogDefaultHeight
	}

	modalWidth := ModalWidth(width, config.Progress)
	innerWidth := maxInt(dialogCollapsedWidth-6, modalWidth-6)

	sections := make([]string, 0, 4+len(config.Messages))
	title := strings.TrimSpace(config.Title)
	if title != "" {
		sections = append(sections, theme.TitleStyle.Width(innerWidth).Align(lipgloss.Center).Render(title))
	}
	for _, message := range config.Messages {
		if message = strings.TrimSpace(message); message == "" {
			continue
		}
		sections = append(sections, theme.BodyStyle.Width(innerWidth).Align(lipgloss.Center).Render(message))
	}
	if config.HasInput {
		frame := theme.InputBorder
		if config.InputFocused {
			frame = theme.InputBorderFocused
		}
		sections = append(sections, frame.Width(maxInt(1, innerWidth-4)).Render(config.Input))
	}
	if len(config.Buttons) > 0 {
		sections = append(sections, renderDialogButtons(config))
	}
	if help := strings.TrimSpace(config.Help); help != "" {
		sections = append(sections, theme.HintStyle.Width(innerWidth).Align(lipgloss.Center).Render(help))
	}

	modal := theme.DialogBorder.
		Padding(1, 2).
		Width(modalWidth).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))

	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		modal,
		lipgloss.WithWhitespaceChars("┄"),
		lipgloss.WithWhitespaceForeground(theme.SlateColor),
	)
}

// ModalWidth returns the modal width for a terminal width at an animation
// progress between 0 and 1.
func ModalWidth(terminalWidth int, progress float64) int {
	full := int(float64(terminalWidth) * dialogStandardWidthPct)
	if terminalWidth < dialogCompactThreshold {
		full = int(float64(terminalWidth) * dialogCompactWidthPct)
	}
	if full < dialogMinimumModalWidth {
		full = dialogMinimumModalWidth
	}
	if full > terminalWidth {
		full = terminalWidth
	}

	switch {
	case progress <= 0:
		progress = 0
	case progress > 1:
		progress = 1
	}
	collapsed := minInt(dialogCollapsedWidth, full)
	return collapsed + int(float64(full-collapsed)*progress)
}

// renderDialogButtons uses the huh confirm row for a plain two-button dialog and
// styled buttons otherwise.
func renderDialogButtons(config DialogConfig) string {
	if !config.HasInput && len(config.Buttons) == 2 && config.Buttons[1].Emphasis && !config.Buttons[0].Emphasis {
		value := config.Buttons[1].Focused
		confirmField := huh.NewConfirm().
			Affirmative(config.Buttons[1].Label).
			Negative(config.Buttons[0].Label).
			Value(&value)
		_ = confirmField.Init()
		if view := strings.TrimSpace(confirmField.View()); view != "" {
			return view
		}
	}
	return renderFallbackButtons(config.Buttons)
}

func renderFallbackButtons(buttons []DialogButton) string {
	rendered := make([]string, 0, 2*len(buttons))
	for idx, button := range buttons {
		style := lipgloss.NewStyle().
			Foreground(theme.VellumColor).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.SlateColor).
			Padding(0, 1)
		switch {
		case button.Focused && button.Emphasis:
			style = lipgloss.NewStyle().Background(theme.SaffronColor).Foreground(theme.InkColor).Bold(true).Padding(0, 1)
		case button.Focused:
			style = lipgloss.NewStyle().Background(theme.DuskColor).Foreground(theme.ParchmentColor).Bold(true).Padding(0, 1)
		case button.Emphasis:
			style = style.Foreground(theme.SaffronColor).BorderForeground(theme.SaffronColor)
		}
		if idx > 0 {
			rendered = append(rendered, "  ")
		}
		rendered = append(rendered, style.Render(button.Label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, rendered...)
}

func maxInt(a int, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a int, b int) int {
	if a < b {
		return a
	}
	return b
}
