package theme

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

const (
	// Saffron is the call-to-action accent.
	Saffron = "#E8A33D"
	// Sepia is the dialog border tone.
	Sepia = "#A0785A"
	// Oxblood is the error and destructive accent.
	Oxblood = "#B0413E"
	// Moss is the success accent.
	Moss = "#6A994E"
	// Dusk marks the focused control.
	Dusk = "#7C6FB0"
	// Slate is the muted neutral for hints and backdrops.
	Slate = "#5C6470"
	// Parchment is the primary text color.
	Parchment = "#F3EAD3"
	// Vellum is the secondary text color.
	Vellum = "#CFC6B0"
	// Ink is the dark background used behind emphasised labels.
	Ink = "#1C1A17"
)

var (
	// SaffronColor is the profile-aware terminal color for Saffron.
	SaffronColor = paletteColor(Saffron, "179", "11")
	// SepiaColor is the profile-aware terminal color for Sepia.
	SepiaColor = paletteColor(Sepia, "137", "3")
	// OxbloodColor is the profile-aware terminal color for Oxblood.
	OxbloodColor = paletteColor(Oxblood, "131", "9")
	// MossColor is the profile-aware terminal color for Moss.
	MossColor = paletteColor(Moss, "71", "10")
	// DuskColor is the profile-aware terminal color for Dusk.
	DuskColor = paletteColor(Dusk, "97", "5")
	// SlateColor is the profile-aware terminal color for Slate.
	SlateColor = paletteColor(Slate, "59", "8")
	// ParchmentColor is the profile-aware terminal color for Parchment.
	ParchmentColor = paletteColor(Parchment, "230", "15")
	// VellumColor is the profile-aware terminal color for Vellum.
	VellumColor = paletteColor(Vellum, "251", "7")
	// InkColor is the profile-aware terminal color for Ink.
	InkColor = paletteColor(Ink, "234", "0")
)

var (
	// TitleStyle renders dialog titles.
	TitleStyle = lipgloss.NewStyle().Foreground(SaffronColor).Bold(true)
	// BodyStyle renders dialog messages.
	BodyStyle = lipgloss.NewStyle().Foreground(ParchmentColor)
	// HintStyle renders key hints and placeholders.
	HintStyle = lipgloss.NewStyle().Foreground(SlateColor).Faint(true)
	// ErrorStyle marks failures.
	ErrorStyle = lipgloss.NewStyle().Foreground(OxbloodColor).Bold(true)
	// SuccessStyle marks completed actions.
	SuccessStyle = lipgloss.NewStyle().Foreground(MossColor).Bold(true)
	// FocusStyle marks the focused control.
	FocusStyle = lipgloss.NewStyle().Foreground(DuskColor).Bold(true)
)

var (
	// DialogBorder is the modal border style.
	DialogBorder = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(SepiaColor)

	// InputBorder frames a text field.
	InputBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(SlateColor).
			Padding(0, 1)

	// InputBorderFocused frames the focused text field.
	InputBorderFocused = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(DuskColor).
				Padding(0, 1)
)

var colorProfileFn = lipgloss.ColorProfile

func paletteColor(hex string, ansi256 string, ansi string) lipgloss.TerminalColor {
	switch colorProfileFn() {
	case termenv.ANSI256, termenv.ANSI:
		complete := lipgloss.CompleteColor{TrueColor: hex, ANSI256: ansi256, ANSI: ansi}
		return lipgloss.CompleteAdaptiveColor{Light: complete, Dark: complete}
	default:
		return lipgloss.AdaptiveColor{Light: hex, Dark: hex}
	}
}
