package keyboard

import "github.com/charmbracelet/bubbles/key"

type Map struct {
	NextFocus  key.Binding
	PrevFocus  key.Binding
	Up         key.Binding
	Down       key.Binding
	Activate   key.Binding
	Back       key.Binding
	Quit       key.Binding
	ToggleLogs key.Binding

	ToggleRegister key.Binding
	Guest          key.Binding

	NewRoom key.Binding
	Refresh key.Binding
	Logout  key.Binding

	ScrollUp   key.Binding
	ScrollDown key.Binding
}

func New() Map {
	return Map{
		NextFocus: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next"),
		),
		PrevFocus: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "prev"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Activate: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "submit"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		ToggleLogs: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "logs"),
		),
		ToggleRegister: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "login/register"),
		),
		Guest: key.NewBinding(
			key.WithKeys("ctrl+g"),
			key.WithHelp("ctrl+g", "guest"),
		),
		NewRoom: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new room"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "refresh"),
		),
		Logout: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "logout"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdown", "scroll down"),
		),
	}
}

// Help is the binding set shown for one screen.
type Help []key.Binding

func (h Help) ShortHelp() []key.Binding {
	return h
}

func (h Help) FullHelp() [][]key.Binding {
	return [][]key.Binding{h}
}

func (m Map) AuthHelp() Help {
	return Help{m.NextFocus, m.Activate, m.ToggleRegister, m.Guest, m.ToggleLogs, m.Quit}
}

func (m Map) RoomsHelp() Help {
	return Help{m.Up, m.Down, m.Activate, m.NewRoom, m.Refresh, m.Logout, m.ToggleLogs, m.Quit}
}

func (m Map) ChatHelp() Help {
	return Help{m.Activate, m.Back, m.ScrollUp, m.ScrollDown, m.ToggleLogs, m.Quit}
}
