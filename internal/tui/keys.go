package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keyboard bindings of the play screen. Everything else
// goes to the answer field.
type KeyMap struct {
	Submit  key.Binding
	Skip    key.Binding
	CheckIn key.Binding
	Quit    key.Binding
	LogUp   key.Binding
	LogDown key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "answer"),
		),
		Skip: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "skip"),
		),
		CheckIn: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "daily check-in"),
		),
		Quit: key.NewBinding(
			key.WithKeys("esc", "ctrl+c"),
			key.WithHelp("esc", "save & quit"),
		),
		LogUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll log"),
		),
		LogDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll log"),
		),
	}
}

func (k KeyMap) help() []key.Binding {
	return []key.Binding{k.Submit, k.Skip, k.CheckIn, k.LogUp, k.Quit}
}
