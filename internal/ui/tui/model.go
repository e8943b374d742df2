package tui

import (
	"context"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"zerostack-chat/internal/app"
	"zerostack-chat/internal/logging"
	"zerostack-chat/internal/runctx"
	"zerostack-chat/internal/runstatus"
	"zerostack-chat/internal/ui/tui/keyboard"
)

const (
	logLineLimit          = 2_000
	defaultInputCharLimit = 512
	messageCharLimit      = 2_000
	defaultWidth          = 80
	defaultViewHeight     = 12
	logPaneHeight         = 8
)

// chatApp is what the UI needs from the chat client.
type chatApp interface {
	RestoreSession() (bool, error)
	Login(ctx context.Context, email string, password string) error
	Register(ctx context.Context, email string, password string, confirm string) error
	EnterAsGuest()
	Logout()
	Rooms(ctx context.Context) ([]app.Room, error)
	CreateRoom(ctx context.Context, name string) (app.Room, error)
	JoinRoom(ctx context.Context, room app.Room) error
	LeaveRoom()
	SendMessage(ctx context.Context, text string) error
	Messages() []app.Message
	DisplayName() string
	Authenticated() bool
	Status() string
}

type screen int

const (
	screenAuth screen = iota
	screenRooms
	screenChat
)

const (
	emailInput = iota
	passwordInput
	confirmInput
	authInputCount
)

type logMsg string
type statusMsg string
type chatChangedMsg struct{}
type signedOutMsg struct{}

type restoredMsg struct {
	ok  bool
	err error
}

type authDoneMsg struct {
	err error
}

type roomsLoadedMsg struct {
	rooms []app.Room
	err   error
}

type roomCreatedMsg struct {
	room app.Room
	err  error
}

type joinedMsg struct {
	room app.Room
	err  error
}

type sentMsg struct {
	err error
}

// pumps carries app callbacks, which fire on arbitrary goroutines, into the
// bubbletea loop. Each channel keeps only the newest values.
type pumps struct {
	logs      chan string
	status    chan string
	chat      chan struct{}
	signedOut chan struct{}
}

func newPumps() *pumps {
	return &pumps{
		logs:      make(chan string, 512),
		status:    make(chan string, 16),
		chat:      make(chan struct{}, 1),
		signedOut: make(chan struct{}, 1),
	}
}

func (p *pumps) callbacks() app.Callbacks {
	return app.Callbacks{
		OnStatusChange: func(status string) { runctx.SendLatest(p.status, status) },
		OnLogChange:    func() { runctx.SendLatest(p.chat, struct{}{}) },
		OnSignedOut:    func() { runctx.SendLatest(p.signedOut, struct{}{}) },
	}
}

func (p *pumps) logSink(event logging.Event) {
	runctx.SendLatest(p.logs, logging.FormatEventANSI(event))
}

type model struct {
	ctx     context.Context
	app     chatApp
	logger  *logging.Logger
	pumps   *pumps
	version string

	keys keyboard.Map
	help help.Model

	screen screen
	width  int
	height int
	status string
	busy   bool
	errMsg string

	authInputs  []textinput.Model
	authFocus   int
	registering bool

	rooms        []app.Room
	selected     int
	hoverZone    string
	creatingRoom bool
	roomInput    textinput.Model

	room     app.Room
	chatView viewport.Model
	composer textinput.Model

	showLogs bool
	logLines []string
	logView  viewport.Model

	cleanupOnce sync.Once
	onCleanup   func()
}

func newModel(ctx context.Context, chat chatApp, logger *logging.Logger, p *pumps, version string) *model {
	if logger == nil {
		panic("tui.newModel: logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	inputs := make([]textinput.Model, authInputCount)
	for i := range inputs {
		inputs[i] = textinput.New()
		inputs[i].CharLimit = defaultInputCharLimit
		inputs[i].Width = defaultWidth / 2
		inputs[i].Prompt = ""
	}
	inputs[emailInput].Placeholder = "you@example.com"
	inputs[passwordInput].Placeholder = "Password"
	inputs[passwordInput].EchoMode = textinput.EchoPassword
	inputs[passwordInput].EchoCharacter = '•'
	inputs[confirmInput].Placeholder = "Confirm password"
	inputs[confirmInput].EchoMode = textinput.EchoPassword
	inputs[confirmInput].EchoCharacter = '•'
	inputs[emailInput].Focus()

	roomInput := textinput.New()
	roomInput.CharLimit = defaultInputCharLimit
	roomInput.Placeholder = "Room name"
	roomInput.Prompt = "> "

	composer := textinput.New()
	composer.CharLimit = messageCharLimit
	composer.Placeholder = "Type a message..."
	composer.Prompt = "> "

	helpView := help.New()
	helpView.Styles.ShortKey = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true)
	helpView.Styles.ShortDesc = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpView.Styles.ShortSeparator = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	return &model{
		ctx:        ctx,
		app:        chat,
		logger:     logger.Component("tui"),
		pumps:      p,
		version:    version,
		keys:       keyboard.New(),
		help:       helpView,
		screen:     screenAuth,
		status:     runstatus.Offline,
		authInputs: inputs,
		roomInput:  roomInput,
		chatView:   viewport.New(defaultWidth, defaultViewHeight),
		composer:   composer,
		logView:    viewport.New(defaultWidth, logPaneHeight),
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForLog(),
		m.waitForStatus(),
		m.waitForChat(),
		m.waitForSignOut(),
		m.restoreCmd(),
		textinput.Blink,
	)
}

func (m *model) waitForLog() tea.Cmd {
	return func() tea.Msg {
		line, ok := runctx.RecvOrDone(m.ctx, "tui log pump", m.logger, m.pumps.logs)
		if !ok {
			return nil
		}
		return logMsg(line)
	}
}

func (m *model) waitForStatus() tea.Cmd {
	return func() tea.Msg {
		status, ok := runctx.RecvOrDone(m.ctx, "tui status pump", m.logger, m.pumps.status)
		if !ok {
			return nil
		}
		return statusMsg(status)
	}
}

func (m *model) waitForChat() tea.Cmd {
	return func() tea.Msg {
		if _, ok := runctx.RecvOrDone(m.ctx, "tui chat pump", m.logger, m.pumps.chat); !ok {
			return nil
		}
		return chatChangedMsg{}
	}
}

func (m *model) waitForSignOut() tea.Cmd {
	return func() tea.Msg {
		if _, ok := runctx.RecvOrDone(m.ctx, "tui sign-out pump", m.logger, m.pumps.signedOut); !ok {
			return nil
		}
		return signedOutMsg{}
	}
}

func (m *model) cleanup() {
	m.cleanupOnce.Do(func() {
		m.logger.Debug("tui cleanup started")
		if m.screen == screenChat {
			m.app.LeaveRoom()
		}
		if m.onCleanup != nil {
			m.onCleanup()
		}
		m.logger.Debug("tui cleanup complete")
	})
}
