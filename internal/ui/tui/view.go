package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"zerostack-chat/internal/app"
	"zerostack-chat/internal/runstatus"
	"zerostack-chat/internal/ui/tui/keyboard"
	"zerostack-chat/internal/ui/tui/render"
	"zerostack-chat/internal/ui/tui/theme"
)

const (
	frameInset        = 4
	minContentWidth   = 20
	headerRows        = 2
	composerRows      = 2
	helpRows          = 2
	frameRows         = 2
	logPaneChromeRows = 3
	timeLayout        = "15:04"
)

func roomZoneID(index int) string {
	return fmt.Sprintf("room-%d", index)
}

func (m *model) contentWidth() int {
	if m.width <= 0 {
		return defaultWidth - frameInset
	}
	return max(m.width-frameInset, minContentWidth)
}

// resize fits the chat and log viewports into the window.
func (m *model) resize() {
	width := m.contentWidth()
	m.help.Width = width
	m.composer.Width = max(width-4, 1)
	m.roomInput.Width = max(width-4, 1)
	for i := range m.authInputs {
		m.authInputs[i].Width = max(width-12, 1)
	}

	logHeight := 0
	if m.showLogs {
		logHeight = logPaneHeight + logPaneChromeRows
	}
	m.logView.Width = max(width-2, 1)
	m.logView.Height = logPaneHeight

	chatHeight := defaultViewHeight
	if m.height > 0 {
		chatHeight = m.height - frameRows - headerRows - composerRows - helpRows - logHeight - 1
	}
	m.chatView.Width = width
	m.chatView.Height = max(chatHeight, 3)
	m.refreshChat()
}

func (m *model) View() string {
	if m.width == 0 {
		return "initializing..."
	}

	sections := []string{m.renderHeader()}
	switch m.screen {
	case screenAuth:
		sections = append(sections, m.renderAuth())
	case screenRooms:
		sections = append(sections, m.renderRooms())
	default:
		sections = append(sections, m.renderChat())
	}
	if m.errMsg != "" {
		sections = append(sections, theme.ErrorStyle.Render(m.errMsg))
	}
	if m.showLogs {
		sections = append(sections, m.renderLogPane())
	}
	sections = append(sections, theme.HelpStyle.Render(m.help.View(m.screenHelp())))

	return zone.Scan(render.Frame(strings.Join(sections, "\n\n"), m.width, theme.PanelStyle))
}

func (m *model) screenHelp() keyboard.Help {
	switch m.screen {
	case screenAuth:
		return m.keys.AuthHelp()
	case screenRooms:
		return m.keys.RoomsHelp()
	default:
		return m.keys.ChatHelp()
	}
}

func (m *model) renderHeader() string {
	title := theme.TitleStyle.Render("ZeroStack Chat (" + m.version + ")")
	parts := []string{title, "  ", renderStatus(m.status)}
	if m.screen != screenAuth {
		parts = append(parts, "  ", theme.HelpStyle.Render("as "+m.app.DisplayName()))
	}
	line := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	if m.screen == screenChat {
		line += "\n" + theme.TitleStyle.Render("# "+render.TruncateDisplayWidth(m.room.Name, m.contentWidth()-2))
	}
	return line
}

func renderStatus(status string) string {
	switch runstatus.Key(status) {
	case runstatus.KeyConnected:
		return theme.StatusConnectedStyle.Render("● " + status)
	case runstatus.KeyConnecting:
		return theme.StatusConnectingStyle.Render("● " + status)
	case runstatus.KeyConnectionError, runstatus.KeyDisconnected:
		return theme.StatusErrorStyle.Render("● " + status)
	default:
		return theme.StatusIdleStyle.Render("○ " + status)
	}
}

func (m *model) renderAuth() string {
	heading := "Sign in"
	action := "Login"
	if m.registering {
		heading = "Create an account"
		action = "Register"
	}
	labels := []string{"Email", "Password", "Confirm"}
	rows := []string{theme.TitleStyle.Render(heading)}
	for i := 0; i < m.authFieldCount(); i++ {
		label := theme.LabelStyle.Render(labels[i])
		if i == m.authFocus {
			label = theme.LabelFocusStyle.Render(labels[i])
		}
		rows = append(rows, label+m.authInputs[i].View())
	}
	button := theme.ButtonStyle.Render(action)
	if m.busy {
		button = theme.ButtonFocusedStyle.Render(action + "...")
	}
	rows = append(rows, button, theme.HelpStyle.Render("or press ctrl+g to continue as a guest"))
	return strings.Join(rows, "\n")
}

func (m *model) renderRooms() string {
	width := m.contentWidth()
	rows := []string{theme.TitleStyle.Render("Rooms")}
	if len(m.rooms) == 0 {
		rows = append(rows, theme.HelpStyle.Render("No rooms yet."))
	}
	for i, room := range m.rooms {
		meta := theme.RoomMetaStyle.Render("  by " + room.CreatedBy)
		name := render.TruncateDisplayWidth(room.Name, max(width-lipgloss.Width(meta)-3, 1))
		var row string
		switch {
		case i == m.selected:
			row = theme.RoomSelectedStyle.Render("› "+name) + meta
		case m.hoverZone == roomZoneID(i):
			row = theme.RoomHoverStyle.Render(name) + meta
		default:
			row = theme.RoomRowStyle.Render(name) + meta
		}
		rows = append(rows, zone.Mark(roomZoneID(i), row))
	}
	if m.creatingRoom {
		rows = append(rows, "", theme.TitleStyle.Render("New room"), m.roomInput.View())
	}
	return strings.Join(rows, "\n")
}

func (m *model) renderChat() string {
	body := render.WithScrollBar(m.chatView.View(), m.chatView.Width-2, m.chatView.Height, m.chatView.ScrollPercent())
	return body + "\n" + m.composer.View()
}

func (m *model) renderLogPane() string {
	title := theme.TitleStyle.Render("Logs")
	content := render.WithScrollBar(m.logView.View(), m.logView.Width-2, m.logView.Height, m.logView.ScrollPercent())
	return render.Frame(title+"\n"+content, m.contentWidth(), theme.PanelStyle)
}

// renderMessages lays the chat log out oldest first, one entry per block.
func renderMessages(messages []app.Message, width int) string {
	if len(messages) == 0 {
		return theme.HelpStyle.Render("No messages yet. Say hello!")
	}
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, render.Wrap(formatMessage(msg), max(width-2, 1)))
	}
	return strings.Join(lines, "\n")
}

func formatMessage(msg app.Message) string {
	if msg.Notice != "" {
		return theme.NoticeStyle.Render("! " + msg.Notice)
	}
	author := theme.AuthorStyle.Render(msg.Author)
	if msg.Own {
		author = theme.OwnAuthorStyle.Render(msg.Author)
	}
	return theme.TimeStyle.Render(msg.Time.Local().Format(timeLayout)) + " " + author + ": " + msg.Text
}
