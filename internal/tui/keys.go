package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the wallet screen bindings.
type KeyMap struct {
	Quit    key.Binding
	Connect key.Binding
	Refresh key.Binding
	Mint    key.Binding
	Deposit key.Binding
	Dismiss key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Connect: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "connect"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		Mint: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mint"),
		),
		Deposit: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "deposit"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "dismiss error"),
		),
	}
}

// actions are disabled while an operation is in flight.
func (k KeyMap) setBusy(busy bool) KeyMap {
	k.Mint.SetEnabled(!busy)
	k.Deposit.SetEnabled(!busy)
	k.Connect.SetEnabled(!busy)
	k.Refresh.SetEnabled(!busy)
	return k
}

func (k KeyMap) shortHelp() []key.Binding {
	return []key.Binding{k.Mint, k.Deposit, k.Refresh, k.Dismiss, k.Connect, k.Quit}
}
