package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"zerostack-chat/internal/chatlog"
	"zerostack-chat/internal/client"
	"zerostack-chat/internal/logging"
	"zerostack-chat/internal/realtime"
	"zerostack-chat/internal/runstatus"
)

type Room struct {
	ID        string
	Name      string
	CreatedBy string
}

type roomData struct {
	Name      string `json:"name"`
	CreatedBy string `json:"createdBy"`
}

type messageData struct {
	Text      string `json:"text"`
	Author    string `json:"author"`
	Room      string `json:"room"`
	Timestamp int64  `json:"timestamp"`
}

// Message is one rendered chat-log line.
type Message struct {
	ID     string
	Author string
	Text   string
	Time   time.Time
	Own    bool
	// Notice lines are local status text, not messages.
	Notice string
}

func roomFromItem(item client.Item) Room {
	var data roomData
	if err := item.Decode(&data); err != nil {
		data = roomData{}
	}
	room := Room{ID: item.ID, Name: strings.TrimSpace(data.Name), CreatedBy: strings.TrimSpace(data.CreatedBy)}
	if room.Name == "" {
		room.Name = "Unnamed"
	}
	if room.CreatedBy == "" {
		room.CreatedBy = "Unknown"
	}
	return room
}

func (a *ChatApp) Rooms(ctx context.Context) ([]Room, error) {
	result, err := a.client.List(ctx, roomsNode, client.ListOptions{Limit: roomListLimit})
	if err != nil {
		return nil, err
	}
	rooms := make([]Room, 0, len(result.Items))
	for _, item := range result.Items {
		rooms = append(rooms, roomFromItem(item))
	}
	a.logger.Debug("rooms loaded", logging.Field("count", len(rooms)))
	return rooms, nil
}

// CreateRoom is only open to signed-in users; the room records its creator's
// email.
func (a *ChatApp) CreateRoom(ctx context.Context, name string) (Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Room{}, validation("name", "Room name is required")
	}
	user := a.User()
	if user == nil {
		return Room{}, ErrNotAuthenticated
	}
	item, err := a.client.Create(ctx, roomsNode, roomData{Name: name, CreatedBy: user.Email}, client.CreateOptions{})
	if err != nil {
		return Room{}, err
	}
	a.logger.Info("room created", logging.Field("room", name), logging.Field("id", item.ID))
	return Room{ID: item.ID, Name: name, CreatedBy: user.Email}, nil
}

func (a *ChatApp) CurrentRoom() (Room, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.room == nil {
		return Room{}, false
	}
	return *a.room, true
}

// currentJoin returns the joined room and the stamp of that join. Every
// JoinRoom, LeaveRoom and sign-out moves the stamp on.
func (a *ChatApp) currentJoin() (Room, uint64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.room == nil {
		return Room{}, 0, false
	}
	return *a.room, a.joinGen, true
}

// whileJoined runs fn only if the join stamped gen is still current. Log
// resets take the write lock, so fn never lands in a newer room's log.
func (a *ChatApp) whileJoined(gen uint64, fn func()) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.room == nil || a.joinGen != gen {
		return false
	}
	fn()
	return true
}

// leaveLocked drops the room and its log. The caller holds a.mu and
// disconnects the channel, which also drops the lifecycle relays.
func (a *ChatApp) leaveLocked() {
	a.joinGen++
	a.room = nil
	a.relayed = false
	a.log.Reset()
}

// JoinRoom switches the chat log to room: it subscribes to live messages
// first and then loads the newest page of history, so nothing falls in
// between; the log drops whatever both deliver. Results that arrive after
// another join or a leave are discarded.
func (a *ChatApp) JoinRoom(ctx context.Context, room Room) error {
	a.mu.Lock()
	a.joinGen++
	gen := a.joinGen
	joined := room
	a.room = &joined
	a.log.Reset()
	if !a.relayed {
		a.relayLifecycle()
		a.relayed = true
	}
	a.mu.Unlock()
	a.notifyLog()
	a.setRuntimeStatus(runstatus.Connecting)

	if _, current, _ := a.currentJoin(); current != gen {
		return nil
	}
	if err := a.channel.Subscribe(messagesNode, func(item client.Item, kind realtime.EventKind) {
		a.handleLiveMessage(gen, room.ID, item, kind)
	}); err != nil {
		a.setRuntimeStatus(runstatus.ConnectionError)
		a.logger.Warn("realtime subscribe failed", logging.Field("error", err))
	} else if a.channel.State() == realtime.Connected {
		// Rejoining on a live connection gets no new connect event.
		a.whileJoined(gen, func() { a.setRuntimeStatus(runstatus.Connected) })
	}

	result, err := a.client.List(ctx, messagesNode, client.ListOptions{
		Limit:  historyPageSize,
		Filter: map[string]string{"room": room.ID},
	})
	if err != nil {
		if a.whileJoined(gen, func() { a.log.Notice(NoticeHistoryFailed) }) {
			a.notifyLog()
		}
		return fmt.Errorf("load messages for room %s: %w", room.ID, err)
	}
	appended := 0
	if !a.whileJoined(gen, func() { appended = a.log.LoadHistory(result.Items) }) {
		a.logger.Debug("dropping history for a room no longer joined", logging.Field("room", room.ID))
		return nil
	}
	a.logger.Debug("room history loaded",
		logging.Field("room", room.ID),
		logging.Field("count", len(result.Items)),
		logging.Field("appended", appended),
	)
	a.notifyLog()
	return nil
}

// relayLifecycle mirrors the connection's lifecycle into the app status
// while a room is joined. It is registered once per connection, with a.mu
// held; Channel.On only records the callbacks.
func (a *ChatApp) relayLifecycle() {
	relay := func(status string) func(json.RawMessage) {
		return func(json.RawMessage) {
			if _, _, ok := a.currentJoin(); ok {
				a.setRuntimeStatus(status)
			}
		}
	}
	for event, status := range map[string]string{
		realtime.EventConnect:      runstatus.Connected,
		realtime.EventDisconnect:   runstatus.Disconnected,
		realtime.EventConnectError: runstatus.ConnectionError,
	} {
		if err := a.channel.On(event, relay(status)); err != nil {
			a.logger.Warn("lifecycle listener not registered", logging.Field("event", event), logging.Field("error", err))
		}
	}
}

// handleLiveMessage keeps only created messages of the join stamped gen.
// The log is append-only, so updates and deletes are not rendered.
func (a *ChatApp) handleLiveMessage(gen uint64, roomID string, item client.Item, kind realtime.EventKind) {
	if kind != realtime.Created {
		return
	}
	var data messageData
	if err := item.Decode(&data); err != nil || data.Room != roomID {
		return
	}
	pushed := false
	a.whileJoined(gen, func() { pushed = a.log.Push(item) })
	if pushed {
		a.notifyLog()
	}
}

// LeaveRoom discards the room's log and closes the realtime connection.
func (a *ChatApp) LeaveRoom() {
	a.mu.Lock()
	a.leaveLocked()
	a.mu.Unlock()
	a.channel.Disconnect()
	a.setRuntimeStatus(runstatus.Offline)
	a.notifyLog()
}

// SendMessage posts text to the current room. A failed send leaves an inline
// notice in the log as well as returning the error. The created item is
// added to the log right away; its realtime echo is then a duplicate.
func (a *ChatApp) SendMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return validation("text", "Message is empty")
	}
	room, gen, ok := a.currentJoin()
	if !ok {
		return ErrNoRoom
	}

	item, err := a.client.Create(ctx, messagesNode, messageData{
		Text:      text,
		Author:    a.DisplayName(),
		Room:      room.ID,
		Timestamp: a.now().UnixMilli(),
	}, client.CreateOptions{})
	if err != nil {
		a.logger.Warn("send message failed", logging.Field("room", room.ID), logging.Field("error", err))
		if a.whileJoined(gen, func() { a.log.Notice(NoticeSendFailed) }) {
			a.notifyLog()
		}
		return err
	}
	pushed := false
	a.whileJoined(gen, func() { pushed = a.log.Push(item) })
	if pushed {
		a.notifyLog()
	}
	return nil
}

// Messages renders the current log, oldest first.
func (a *ChatApp) Messages() []Message {
	self := a.DisplayName()
	entries := a.log.Entries()
	out := make([]Message, 0, len(entries))
	for _, entry := range entries {
		out = append(out, a.messageFromEntry(entry, self))
	}
	return out
}

func (a *ChatApp) messageFromEntry(entry chatlog.Entry, self string) Message {
	if entry.IsNotice() {
		return Message{Notice: entry.Notice}
	}
	var data messageData
	_ = entry.Item.Decode(&data)
	msg := Message{
		ID:     entry.Item.ID,
		Author: data.Author,
		Text:   data.Text,
		Time:   entry.Item.CreatedAt,
		Own:    data.Author != "" && data.Author == self,
	}
	if msg.Author == "" {
		msg.Author = "Guest"
	}
	if msg.Time.IsZero() && data.Timestamp > 0 {
		msg.Time = time.UnixMilli(data.Timestamp)
	}
	if msg.Time.IsZero() {
		msg.Time = a.now()
	}
	return msg
}
