package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"zerostack-chat/internal/app"
	"zerostack-chat/internal/client"
	"zerostack-chat/internal/logging"
)

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil
	case logMsg:
		m.appendLog(string(msg))
		return m, m.waitForLog()
	case statusMsg:
		m.status = string(msg)
		return m, m.waitForStatus()
	case chatChangedMsg:
		m.refreshChat()
		return m, m.waitForChat()
	case signedOutMsg:
		m.toAuth("Signed out from another window.")
		return m, m.waitForSignOut()
	case restoredMsg:
		if msg.err != nil {
			m.logger.Warn("session restore failed", logging.Field("error", msg.err))
		}
		if !msg.ok {
			return m, nil
		}
		m.screen = screenRooms
		return m, m.loadRoomsCmd()
	case authDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = errorText(msg.err)
			return m, nil
		}
		m.clearAuthInputs()
		m.screen = screenRooms
		return m, m.loadRoomsCmd()
	case roomsLoadedMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = "Failed to load rooms: " + errorText(msg.err)
			return m, nil
		}
		m.rooms = msg.rooms
		m.selected = min(m.selected, max(len(m.rooms)-1, 0))
		return m, nil
	case roomCreatedMsg:
		m.busy = false
		if msg.err != nil {
			m.errMsg = errorText(msg.err)
			return m, nil
		}
		m.creatingRoom = false
		m.roomInput.Reset()
		m.roomInput.Blur()
		return m, m.loadRoomsCmd()
	case joinedMsg:
		m.busy = false
		if msg.err != nil {
			m.logger.Warn("join room failed", logging.Field("room", msg.room.ID), logging.Field("error", msg.err))
		}
		m.refreshChat()
		return m, nil
	case sentMsg:
		m.busy = false
		if msg.err != nil {
			var validation *client.ValidationError
			if errors.As(msg.err, &validation) || errors.Is(msg.err, app.ErrNoRoom) {
				m.errMsg = errorText(msg.err)
			}
			return m, nil
		}
		m.composer.Reset()
		return m, nil
	case tea.MouseMsg:
		return m.handleMouse(msg)
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, m.updateFocusedInput(msg)
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.cleanup()
		return m, tea.Quit
	}
	if key.Matches(msg, m.keys.ToggleLogs) {
		m.showLogs = !m.showLogs
		m.resize()
		return m, nil
	}
	m.errMsg = ""

	switch m.screen {
	case screenAuth:
		return m.handleAuthKey(msg)
	case screenRooms:
		return m.handleRoomsKey(msg)
	default:
		return m.handleChatKey(msg)
	}
}

func (m *model) handleAuthKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.NextFocus):
		m.authFocus = (m.authFocus + 1) % m.authFieldCount()
		return m, m.applyAuthFocus()
	case key.Matches(msg, m.keys.PrevFocus):
		m.authFocus = (m.authFocus + m.authFieldCount() - 1) % m.authFieldCount()
		return m, m.applyAuthFocus()
	case key.Matches(msg, m.keys.ToggleRegister):
		m.registering = !m.registering
		m.authInputs[confirmInput].Reset()
		if m.authFocus >= m.authFieldCount() {
			m.authFocus = 0
		}
		return m, m.applyAuthFocus()
	case key.Matches(msg, m.keys.Guest):
		m.app.EnterAsGuest()
		m.clearAuthInputs()
		m.screen = screenRooms
		return m, m.loadRoomsCmd()
	case key.Matches(msg, m.keys.Activate):
		if m.busy {
			return m, nil
		}
		m.busy = true
		return m, m.authCmd()
	}
	return m, m.updateFocusedInput(msg)
}

func (m *model) handleRoomsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.creatingRoom {
		switch {
		case key.Matches(msg, m.keys.Back):
			m.creatingRoom = false
			m.roomInput.Reset()
			m.roomInput.Blur()
			return m, nil
		case key.Matches(msg, m.keys.Activate):
			if m.busy {
				return m, nil
			}
			m.busy = true
			return m, m.createRoomCmd(m.roomInput.Value())
		}
		return m, m.updateFocusedInput(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.rooms)-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.Activate):
		if m.selected < len(m.rooms) {
			return m, m.enterRoom(m.rooms[m.selected])
		}
	case key.Matches(msg, m.keys.NewRoom):
		if !m.app.Authenticated() {
			m.errMsg = errorText(app.ErrNotAuthenticated)
			return m, nil
		}
		m.creatingRoom = true
		return m, m.roomInput.Focus()
	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadRoomsCmd()
	case key.Matches(msg, m.keys.Logout):
		m.app.Logout()
		m.toAuth("")
	}
	return m, nil
}

func (m *model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.app.LeaveRoom()
		m.composer.Blur()
		m.screen = screenRooms
		return m, m.loadRoomsCmd()
	case key.Matches(msg, m.keys.ScrollUp), key.Matches(msg, m.keys.ScrollDown):
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd
	case key.Matches(msg, m.keys.Activate):
		if m.busy || strings.TrimSpace(m.composer.Value()) == "" {
			return m, nil
		}
		m.busy = true
		return m, m.sendCmd(m.composer.Value())
	}
	return m, m.updateFocusedInput(msg)
}

func (m *model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	if m.showLogs {
		var cmd tea.Cmd
		m.logView, cmd = m.logView.Update(msg)
		cmds = append(cmds, cmd)
	}
	switch m.screen {
	case screenRooms:
		m.hoverZone = ""
		for i, room := range m.rooms {
			if !zone.Get(roomZoneID(i)).InBounds(msg) {
				continue
			}
			m.hoverZone = roomZoneID(i)
			if msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft {
				m.selected = i
				cmds = append(cmds, m.enterRoom(room))
			}
			break
		}
	case screenChat:
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *model) updateFocusedInput(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch {
	case m.screen == screenAuth:
		m.authInputs[m.authFocus], cmd = m.authInputs[m.authFocus].Update(msg)
	case m.screen == screenRooms && m.creatingRoom:
		m.roomInput, cmd = m.roomInput.Update(msg)
	case m.screen == screenChat:
		m.composer, cmd = m.composer.Update(msg)
	}
	return cmd
}

func (m *model) authFieldCount() int {
	if m.registering {
		return authInputCount
	}
	return confirmInput
}

func (m *model) applyAuthFocus() tea.Cmd {
	var cmd tea.Cmd
	for i := range m.authInputs {
		if i == m.authFocus {
			cmd = m.authInputs[i].Focus()
		} else {
			m.authInputs[i].Blur()
		}
	}
	return cmd
}

func (m *model) clearAuthInputs() {
	for i := range m.authInputs {
		m.authInputs[i].Reset()
	}
	m.authFocus = 0
	m.busy = false
}

func (m *model) toAuth(notice string) {
	m.screen = screenAuth
	m.rooms = nil
	m.selected = 0
	m.creatingRoom = false
	m.room = app.Room{}
	m.composer.Blur()
	m.registering = false
	m.clearAuthInputs()
	m.applyAuthFocus()
	m.errMsg = notice
}

func (m *model) enterRoom(room app.Room) tea.Cmd {
	m.room = room
	m.screen = screenChat
	m.busy = true
	m.chatView.SetContent("")
	return tea.Batch(m.composer.Focus(), m.joinCmd(room))
}

func (m *model) appendLog(line string) {
	wasAtBottom := m.logView.AtBottom()
	m.logLines = appendLogLinesWithLimit(m.logLines, line, logLineLimit)
	m.logView.SetContent(strings.Join(m.logLines, "\n"))
	if wasAtBottom {
		m.logView.GotoBottom()
	}
}

func (m *model) refreshChat() {
	if m.screen != screenChat {
		return
	}
	wasAtBottom := m.chatView.AtBottom()
	m.chatView.SetContent(renderMessages(m.app.Messages(), m.chatView.Width))
	if wasAtBottom {
		m.chatView.GotoBottom()
	}
}

func (m *model) restoreCmd() tea.Cmd {
	return func() tea.Msg {
		ok, err := m.app.RestoreSession()
		return restoredMsg{ok: ok, err: err}
	}
}

func (m *model) authCmd() tea.Cmd {
	email := m.authInputs[emailInput].Value()
	password := m.authInputs[passwordInput].Value()
	confirm := m.authInputs[confirmInput].Value()
	registering := m.registering
	return func() tea.Msg {
		if registering {
			return authDoneMsg{err: m.app.Register(m.ctx, email, password, confirm)}
		}
		return authDoneMsg{err: m.app.Login(m.ctx, email, password)}
	}
}

func (m *model) loadRoomsCmd() tea.Cmd {
	return func() tea.Msg {
		rooms, err := m.app.Rooms(m.ctx)
		return roomsLoadedMsg{rooms: rooms, err: err}
	}
}

func (m *model) createRoomCmd(name string) tea.Cmd {
	return func() tea.Msg {
		room, err := m.app.CreateRoom(m.ctx, name)
		return roomCreatedMsg{room: room, err: err}
	}
}

func (m *model) joinCmd(room app.Room) tea.Cmd {
	return func() tea.Msg {
		return joinedMsg{room: room, err: m.app.JoinRoom(m.ctx, room)}
	}
}

func (m *model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return sentMsg{err: m.app.SendMessage(m.ctx, text)}
	}
}

// errorText turns SDK errors into one line for the status area.
func errorText(err error) string {
	if client.IsNetwork(err) {
		return "Cannot reach the server."
	}
	return err.Error()
}

func appendLogLinesWithLimit(current []string, next string, limit int) []string {
	if limit <= 0 {
		return nil
	}
	lines := append(current, splitLogLines(next)...)
	if len(lines) > limit {
		lines = append([]string(nil), lines[len(lines)-limit:]...)
	}
	return lines
}

func splitLogLines(input string) []string {
	normalized := strings.ReplaceAll(input, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	lines := strings.Split(normalized, "\n")
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
