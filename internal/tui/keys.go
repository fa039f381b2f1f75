package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Submit  key.Binding
	Dismiss key.Binding
	Next    key.Binding
	Prev    key.Binding
	Left    key.Binding
	Right   key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Submit:  newBinding([]string{"enter"}, "enter", "submit"),
		Dismiss: newBinding([]string{"esc"}, "esc", "dismiss"),
		Next:    newBinding([]string{"tab"}, "tab", "next"),
		Prev:    newBinding([]string{"shift+tab"}, "shift+tab", "previous"),
		Left:    newBinding([]string{"left", "h"}, "←", "left"),
		Right:   newBinding([]string{"right", "l"}, "→", "right"),
		Quit:    newBinding([]string{"ctrl+c"}, "ctrl+c", "quit"),
	}
}

// ShortHelp satisfies help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Next, k.Dismiss, k.Quit}
}

// FullHelp satisfies help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Dismiss},
		{k.Next, k.Prev, k.Left, k.Right},
		{k.Quit},
	}
}

func newBinding(keys []string, helpKey string, description string) key.Binding {
	return key.NewBinding(
		key.WithKeys(keys...),
		key.WithHelp(helpKey, description),
	)
}
