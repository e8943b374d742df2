// Package app is the chat client: it composes the ZeroStack SDK pieces into
// sign-in, room browsing and live room chat.
package app

import (
	"strings"
	"sync"
	"time"

	"zerostack-chat/internal/chatlog"
	"zerostack-chat/internal/client"
	"zerostack-chat/internal/identity"
	"zerostack-chat/internal/logging"
	"zerostack-chat/internal/realtime"
	"zerostack-chat/internal/runstatus"
	"zerostack-chat/internal/sessionstore"
)

const (
	roomsNode       = "rooms"
	messagesNode    = "messages"
	roomListLimit   = 100
	historyPageSize = 50
)

// Callbacks run on whichever goroutine caused the change; live messages
// arrive on the realtime transport goroutine.
type Callbacks struct {
	OnStatusChange func(string)
	OnLogChange    func()
	// OnSignedOut fires when another instance cleared the saved login.
	OnSignedOut func()
}

type ChatApp struct {
	client  *client.ZeroStackClient
	channel *realtime.Channel
	store   *sessionstore.Store
	log     *chatlog.Log
	logger  *logging.Logger
	hooks   Callbacks
	status  runtimeStatusState
	now     func() time.Time

	mu           sync.RWMutex
	user         *client.User
	refreshToken string
	guestID      string
	room         *Room
	joinGen      uint64
	relayed      bool
}

func New(zs *client.ZeroStackClient, channel *realtime.Channel, store *sessionstore.Store, logger *logging.Logger, hooks Callbacks) *ChatApp {
	if zs == nil {
		panic("app.New: client must not be nil")
	}
	if channel == nil {
		panic("app.New: realtime channel must not be nil")
	}
	if store == nil {
		panic("app.New: session store must not be nil")
	}
	if logger == nil {
		panic("app.New: logger must not be nil")
	}
	a := &ChatApp{
		client:  zs,
		channel: channel,
		store:   store,
		log:     chatlog.New(),
		logger:  logger.Component("app"),
		hooks:   hooks,
		now:     time.Now,
	}
	a.status.current = runstatus.Offline
	return a
}

func (a *ChatApp) identity() *identity.Resolver {
	return a.client.Identity()
}

// User returns the signed-in user, or nil for a guest.
func (a *ChatApp) User() *client.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return nil
	}
	u := *a.user
	return &u
}

func (a *ChatApp) Authenticated() bool {
	return a.User() != nil
}

// DisplayName is the author label for outgoing messages: the user's email,
// or Guest_ plus the last four characters of the guest id.
func (a *ChatApp) DisplayName() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user != nil {
		return a.user.Email
	}
	if a.guestID == "" {
		return "Guest"
	}
	return identity.GuestDisplayName(a.guestID)
}

func (a *ChatApp) Status() string {
	return a.status.get()
}

type runtimeStatusState struct {
	mu      sync.Mutex
	current string
}

func (s *runtimeStatusState) update(status string) (string, string, bool) {
	trimmed := strings.TrimSpace(status)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == trimmed {
		return s.current, trimmed, false
	}
	previous := s.current
	s.current = trimmed
	return previous, trimmed, true
}

func (s *runtimeStatusState) get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (a *ChatApp) setRuntimeStatus(status string) {
	previous, next, changed := a.status.update(status)
	if !changed {
		return
	}
	a.logger.Debug("runtime status transition",
		logging.Field("from", previous),
		logging.Field("to", next),
	)
	if a.hooks.OnStatusChange != nil {
		a.hooks.OnStatusChange(next)
	}
}

func (a *ChatApp) notifyLog() {
	if a.hooks.OnLogChange != nil {
		a.hooks.OnLogChange()
	}
}
