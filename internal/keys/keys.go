package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down  key.Binding
	Up    key.Binding
	Left  key.Binding
	Right key.Binding

	// Selection
	Select key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Help toggle
	Help key.Binding

	// Command palette
	Command key.Binding

	// Manual refresh
	Refresh key.Binding

	// Surfaces
	Drawer   key.Binding
	DevPanel key.Binding
	Quiz     key.Binding

	// Chat shortcuts, one per agent card
	ChatSofia  key.Binding
	ChatMarcus key.Binding
	ChatLuna   key.Binding

	// Drawer actions
	NextTab     key.Binding
	Dismiss     key.Binding
	MarkAllRead key.Binding
	ClearAll    key.Binding

	// Connection
	Reconnect key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Left: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h/←", "previous card"),
		),
		Right: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("l/→", "next card"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open / take action"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Command: key.NewBinding(
			key.WithKeys(":"),
			key.WithHelp(":", "command palette"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh dashboard"),
		),
		Drawer: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "notifications"),
		),
		DevPanel: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "dev panel"),
		),
		Quiz: key.NewBinding(
			key.WithKeys("Q"),
			key.WithHelp("Q", "retake quiz"),
		),
		ChatSofia: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "chat with Sofia"),
		),
		ChatMarcus: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "chat with Marcus"),
		),
		ChatLuna: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "chat with Luna"),
		),
		NextTab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next tab"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "dismiss"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "mark all read"),
		),
		ClearAll: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "clear all"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "reconnect"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Drawer, k.ChatSofia, k.ChatMarcus, k.ChatLuna,
		k.Quit, k.Help,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.Select, k.Back, k.Quit},
		{k.Drawer, k.DevPanel, k.Quiz, k.Command, k.Help, k.Refresh, k.Reconnect},
		{k.ChatSofia, k.ChatMarcus, k.ChatLuna},
		{k.NextTab, k.Dismiss, k.MarkAllRead, k.ClearAll},
	}
}
