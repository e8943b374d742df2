package theme

import "github.com/charmbracelet/lipgloss"

var (
	PanelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69"))
	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	HelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	LabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250")).Width(10)

	LabelFocusStyle = LabelStyle.Foreground(lipgloss.Color("10"))

	ButtonStyle        = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.NormalBorder())
	ButtonFocusedStyle = ButtonStyle.BorderForeground(lipgloss.Color("10")).Foreground(lipgloss.Color("10"))

	RoomRowStyle      = lipgloss.NewStyle().PaddingLeft(2)
	RoomSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("27")).PaddingLeft(1)
	RoomHoverStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("236")).PaddingLeft(2)
	RoomMetaStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	AuthorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	OwnAuthorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	TimeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	NoticeStyle    = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("214"))
)

var (
	StatusConnectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	StatusConnectingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	StatusErrorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	StatusIdleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)
