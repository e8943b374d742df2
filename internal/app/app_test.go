package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"zerostack-chat/internal/client"
	"zerostack-chat/internal/config"
	"zerostack-chat/internal/identity"
	"zerostack-chat/internal/logging"
	"zerostack-chat/internal/realtime"
	"zerostack-chat/internal/runstatus"
	"zerostack-chat/internal/sessionstore"
)

var fixedNow = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

type fakeBackend struct {
	mu          sync.Mutex
	requests    int
	failSend    bool
	failHistory bool
	history     []map[string]any
	roomHistory map[string][]map[string]any
	holds       map[string]chan struct{}
	held        chan string
	sent        []map[string]any
	rooms       []map[string]any
	listQuery   map[string]string
	loginBody   map[string]string
}

func writeEnvelope(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if status >= 400 {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "boom"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

func historyRoom(r *http.Request) string {
	var filter map[string]string
	_ = json.Unmarshal([]byte(r.URL.Query().Get("filter")), &filter)
	return filter["room"]
}

// waitIfHeld parks one history request for room until the test releases it.
func (b *fakeBackend) waitIfHeld(room string) {
	b.mu.Lock()
	release, ok := b.holds[room]
	delete(b.holds, room)
	held := b.held
	b.mu.Unlock()
	if !ok {
		return
	}
	held <- room
	<-release
}

func (b *fakeBackend) holdHistory(room string) chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.holds == nil {
		b.holds = make(map[string]chan struct{})
	}
	if b.held == nil {
		b.held = make(chan string, 1)
	}
	release := make(chan struct{})
	b.holds[room] = release
	return release
}

func (b *fakeBackend) setRoomHistory(room string, items []map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.roomHistory == nil {
		b.roomHistory = make(map[string][]map[string]any)
	}
	b.roomHistory[room] = items
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && r.URL.Path == "/api/data/messages" {
		b.waitIfHeld(historyRoom(r))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests++

	var body map[string]any
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	switch {
	case r.Method == http.MethodPost && (r.URL.Path == "/api/auth/login" || r.URL.Path == "/api/auth/register"):
		email, _ := body["email"].(string)
		password, _ := body["password"].(string)
		b.loginBody = map[string]string{"email": email, "password": password}
		writeEnvelope(w, http.StatusOK, map[string]any{
			"user":         map[string]any{"_id": "u1", "email": email},
			"accessToken":  "access-1",
			"refreshToken": "refresh-1",
		})
	case r.Method == http.MethodGet && r.URL.Path == "/api/data/rooms":
		b.listQuery = map[string]string{"limit": r.URL.Query().Get("limit")}
		writeEnvelope(w, http.StatusOK, []map[string]any{
			{"_id": "r1", "data": map[string]any{"name": "General", "createdBy": "ann@example.com"}},
			{"_id": "r2", "data": map[string]any{}},
		})
	case r.Method == http.MethodPost && r.URL.Path == "/api/data/rooms":
		b.rooms = append(b.rooms, body)
		writeEnvelope(w, http.StatusCreated, map[string]any{"_id": "r9", "data": body["data"]})
	case r.Method == http.MethodGet && r.URL.Path == "/api/data/messages":
		b.listQuery = map[string]string{
			"limit":  r.URL.Query().Get("limit"),
			"filter": r.URL.Query().Get("filter"),
		}
		if b.failHistory {
			writeEnvelope(w, http.StatusInternalServerError, nil)
			return
		}
		items := b.history
		if byRoom, ok := b.roomHistory[historyRoom(r)]; ok {
			items = byRoom
		}
		writeEnvelope(w, http.StatusOK, map[string]any{"items": items, "page": 1, "limit": 50, "total": len(items)})
	case r.Method == http.MethodPost && r.URL.Path == "/api/data/messages":
		if b.failSend {
			writeEnvelope(w, http.StatusInternalServerError, nil)
			return
		}
		b.sent = append(b.sent, body)
		writeEnvelope(w, http.StatusCreated, map[string]any{
			"_id":       "m-sent",
			"data":      body["data"],
			"createdAt": fixedNow.Format(time.RFC3339),
		})
	default:
		http.NotFound(w, r)
	}
}

func (b *fakeBackend) requestCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests
}

func (b *fakeBackend) lastQuery() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listQuery
}

func (b *fakeBackend) lastLogin() map[string]string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loginBody
}

func (b *fakeBackend) sentBodies() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.sent...)
}

func (b *fakeBackend) roomBodies() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any(nil), b.rooms...)
}

type fakeTransport struct {
	mu       sync.Mutex
	handlers map[string][]func(json.RawMessage)
	emits    []string
	closed   bool

	// connectOnSubscribe acknowledges the connection as soon as the first
	// subscribe goes out.
	connectOnSubscribe bool
}

func (f *fakeTransport) On(event string, fn func(json.RawMessage)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string][]func(json.RawMessage))
	}
	f.handlers[event] = append(f.handlers[event], fn)
}

func (f *fakeTransport) Emit(event string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.emits = append(f.emits, event+" "+string(encoded))
	first := len(f.emits) == 1
	f.mu.Unlock()
	if first && f.connectOnSubscribe {
		f.fire("connect", `{"sid":"fast"}`)
	}
	return nil
}

func (f *fakeTransport) handlerCount(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers[event])
}

func (f *fakeTransport) Connect() error { return nil }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) fire(event string, payload string) {
	f.mu.Lock()
	handlers := append([]func(json.RawMessage){}, f.handlers[event]...)
	f.mu.Unlock()
	for _, fn := range handlers {
		fn(json.RawMessage(payload))
	}
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type harness struct {
	app     *ChatApp
	store   *sessionstore.Store
	backend *fakeBackend

	mu          sync.Mutex
	transport   *fakeTransport
	dials       int
	fastConnect bool
	statuses    []string
}

func testLogger() *logging.Logger {
	logger := logging.New(false)
	logger.SetTerminalOutputEnabled(false)
	return logger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{backend: &fakeBackend{}}
	server := httptest.NewServer(h.backend)
	t.Cleanup(server.Close)

	endpoints, err := config.BuildEndpoints(server.URL, "")
	if err != nil {
		t.Fatalf("BuildEndpoints() error = %v", err)
	}
	logger := testLogger()
	store, err := sessionstore.New(filepath.Join(t.TempDir(), "session.json"), logger)
	if err != nil {
		t.Fatalf("sessionstore.New() error = %v", err)
	}
	h.store = store

	zs := client.New(server.Client(), "zs_key", endpoints, identity.NewResolver(identity.Session{}), logger)
	channel := realtime.New(func() (realtime.Transport, error) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.dials++
		h.transport = &fakeTransport{connectOnSubscribe: h.fastConnect}
		return h.transport, nil
	}, logger)
	h.app = New(zs, channel, store, logger, Callbacks{
		OnStatusChange: func(status string) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.statuses = append(h.statuses, status)
		},
	})
	h.app.now = func() time.Time { return fixedNow }
	return h
}

func (h *harness) currentTransport() *fakeTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.transport
}

func (h *harness) statusHistory() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.statuses...)
}

func messageItem(id string, room string, text string, author string) map[string]any {
	return map[string]any{
		"_id":       id,
		"data":      map[string]any{"text": text, "author": author, "room": room},
		"createdAt": fixedNow.Format(time.RFC3339),
	}
}

func liveEvent(t *testing.T, item map[string]any) string {
	t.Helper()
	encoded, err := json.Marshal(map[string]any{"node": "messages", "item": item})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return string(encoded)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"sub":   "u1",
		"email": "ann@example.com",
		"exp":   exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func messageIDs(messages []Message) []string {
	ids := make([]string, 0, len(messages))
	for _, m := range messages {
		if m.Notice != "" {
			ids = append(ids, "notice:"+m.Notice)
			continue
		}
		ids = append(ids, m.ID)
	}
	return ids
}

func TestRestoreSession(t *testing.T) {
	tests := []struct {
		name      string
		exp       time.Time
		wantOK    bool
		wantToken bool
	}{
		{name: "valid token", exp: fixedNow.Add(time.Hour), wantOK: true, wantToken: true},
		{name: "expired token", exp: fixedNow.Add(-time.Minute), wantOK: false, wantToken: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			token := signedToken(t, tt.exp)
			if err := h.store.Save(sessionstore.Record{
				GuestID: "guest_01abcd",
				User:    &client.User{ID: "u1", Email: "ann@example.com"},
				Token:   token,
			}); err != nil {
				t.Fatalf("Save() error = %v", err)
			}

			ok, err := h.app.RestoreSession()
			if err != nil {
				t.Fatalf("RestoreSession() error = %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("RestoreSession() = %v, want %v", ok, tt.wantOK)
			}
			gotToken := h.app.client.Identity().Session().Token
			if (gotToken == token) != tt.wantToken {
				t.Fatalf("resolver token = %q, want installed=%v", gotToken, tt.wantToken)
			}

			record, err := h.store.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if record.Authenticated() != tt.wantOK {
				t.Fatalf("saved record authenticated = %v, want %v", record.Authenticated(), tt.wantOK)
			}
			if record.GuestID != "guest_01abcd" {
				t.Fatalf("guest id = %q, want it kept", record.GuestID)
			}
			if tt.wantOK && h.app.DisplayName() != "ann@example.com" {
				t.Fatalf("DisplayName() = %q", h.app.DisplayName())
			}
		})
	}
}

func TestRegister_PasswordMismatchSkipsBackend(t *testing.T) {
	h := newHarness(t)
	err := h.app.Register(context.Background(), "ann@example.com", "secret", "secrets")
	var validation *client.ValidationError
	if !errors.As(err, &validation) || validation.Field != "confirm" {
		t.Fatalf("Register() error = %v, want confirm validation error", err)
	}
	if err := h.app.Login(context.Background(), "  ", "secret"); err == nil {
		t.Fatal("Login() with blank email succeeded")
	}
	if got := h.backend.requestCount(); got != 0 {
		t.Fatalf("backend saw %d requests, want 0", got)
	}
}

func TestLogin_ReplacesGuestAndSavesSession(t *testing.T) {
	h := newHarness(t)
	h.app.EnterAsGuest()
	guest := h.app.client.Identity().Session().GuestID
	if !identity.IsGuestID(guest) {
		t.Fatalf("guest id = %q", guest)
	}

	if err := h.app.Login(context.Background(), " ann@example.com ", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if login := h.backend.lastLogin(); login["email"] != "ann@example.com" || login["password"] != "secret" {
		t.Fatalf("login body = %#v", login)
	}
	session := h.app.client.Identity().Session()
	if session.Token != "access-1" || session.GuestID != "" {
		t.Fatalf("resolver session = %#v, want token only", session)
	}
	record, err := h.store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if record.Token != "access-1" || record.RefreshToken != "refresh-1" || record.User == nil || record.User.Email != "ann@example.com" {
		t.Fatalf("saved record = %#v", record)
	}
	if record.GuestID != guest {
		t.Fatalf("saved guest id = %q, want %q kept", record.GuestID, guest)
	}
}

func TestEnterAsGuest_ReusesPersistedID(t *testing.T) {
	h := newHarness(t)
	h.app.EnterAsGuest()
	first := h.app.client.Identity().Session().GuestID
	if h.app.DisplayName() != identity.GuestDisplayName(first) {
		t.Fatalf("DisplayName() = %q", h.app.DisplayName())
	}
	if !strings.HasPrefix(h.app.DisplayName(), "Guest_") {
		t.Fatalf("DisplayName() = %q, want Guest_ prefix", h.app.DisplayName())
	}

	h.app.EnterAsGuest()
	if again := h.app.client.Identity().Session().GuestID; again != first {
		t.Fatalf("second guest id = %q, want %q", again, first)
	}
}

func TestRoomsAndCreateRoom(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	rooms, err := h.app.Rooms(ctx)
	if err != nil {
		t.Fatalf("Rooms() error = %v", err)
	}
	if limit := h.backend.lastQuery()["limit"]; limit != "100" {
		t.Fatalf("rooms limit = %q, want 100", limit)
	}
	want := []Room{
		{ID: "r1", Name: "General", CreatedBy: "ann@example.com"},
		{ID: "r2", Name: "Unnamed", CreatedBy: "Unknown"},
	}
	if len(rooms) != len(want) || rooms[0] != want[0] || rooms[1] != want[1] {
		t.Fatalf("Rooms() = %#v, want %#v", rooms, want)
	}

	h.app.EnterAsGuest()
	if _, err := h.app.CreateRoom(ctx, "Lobby"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("guest CreateRoom() error = %v, want ErrNotAuthenticated", err)
	}

	if err := h.app.Login(ctx, "ann@example.com", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	var validation *client.ValidationError
	if _, err := h.app.CreateRoom(ctx, "   "); !errors.As(err, &validation) {
		t.Fatalf("blank CreateRoom() error = %v, want validation error", err)
	}
	room, err := h.app.CreateRoom(ctx, " Lobby ")
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if room != (Room{ID: "r9", Name: "Lobby", CreatedBy: "ann@example.com"}) {
		t.Fatalf("CreateRoom() = %#v", room)
	}
	created := h.backend.roomBodies()[0]
	data, _ := created["data"].(map[string]any)
	if data["name"] != "Lobby" || data["createdBy"] != "ann@example.com" {
		t.Fatalf("room body data = %#v", data)
	}
	if _, ok := created["guestId"]; ok {
		t.Fatal("authenticated create carried guestId")
	}
}

func TestJoinRoom_MergesHistoryAndLiveWithoutDuplicates(t *testing.T) {
	h := newHarness(t)
	h.app.EnterAsGuest()
	h.backend.mu.Lock()
	h.backend.history = []map[string]any{
		messageItem("m2", "r1", "second", "bob@example.com"),
		messageItem("m1", "r1", "first", "ann@example.com"),
	}
	h.backend.mu.Unlock()

	if err := h.app.JoinRoom(context.Background(), Room{ID: "r1", Name: "General"}); err != nil {
		t.Fatalf("JoinRoom() error = %v", err)
	}
	if query := h.backend.lastQuery(); query["filter"] != `{"room":"r1"}` || query["limit"] != "50" {
		t.Fatalf("history query = %#v", query)
	}
	transport := h.currentTransport()
	if transport == nil {
		t.Fatal("JoinRoom() did not open a realtime connection")
	}
	if len(transport.emits) != 1 || transport.emits[0] != `subscribe {"node":"messages"}` {
		t.Fatalf("emits = %#v", transport.emits)
	}

	transport.fire("data:created", liveEvent(t, messageItem("m2", "r1", "second", "bob@example.com")))
	transport.fire("data:created", liveEvent(t, messageItem("m3", "r1", "third", "bob@example.com")))
	transport.fire("data:created", liveEvent(t, messageItem("m4", "r2", "elsewhere", "bob@example.com")))
	transport.fire("data:updated", liveEvent(t, messageItem("m5", "r1", "edited", "bob@example.com")))

	got := messageIDs(h.app.Messages())
	want := []string{"m1", "m2", "m3"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Messages() ids = %v, want %v", got, want)
	}

	transport.fire(realtime.EventConnect, "null")
	if h.app.Status() != runstatus.Connected {
		t.Fatalf("Status() = %q after connect", h.app.Status())
	}
	transport.fire(realtime.EventDisconnect, `"transport close"`)
	if h.app.Status() != runstatus.Disconnected {
		t.Fatalf("Status() = %q after disconnect", h.app.Status())
	}
	transport.fire(realtime.EventConnectError, `{"message":"bad key"}`)
	if h.app.Status() != runstatus.ConnectionError {
		t.Fatalf("Status() = %q after connect_error", h.app.Status())
	}
	wantStatuses := []string{runstatus.Connecting, runstatus.Connected, runstatus.Disconnected, runstatus.ConnectionError}
	if got := h.statusHistory(); strings.Join(got, "|") != strings.Join(wantStatuses, "|") {
		t.Fatalf("status history = %v, want %v", got, wantStatuses)
	}
}

func TestJoinRoom_DiscardsHistoryOfAbandonedJoin(t *testing.T) {
	tests := []struct {
		name string
		next string
		want []string
	}{
		{name: "other room", next: "rB", want: []string{"b1"}},
		{name: "same room again", next: "rA", want: []string{"a1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			h.backend.setRoomHistory("rA", []map[string]any{messageItem("a1", "rA", "first visit", "bob@example.com")})
			h.backend.setRoomHistory("rB", []map[string]any{messageItem("b1", "rB", "hello B", "bob@example.com")})
			release := h.backend.holdHistory("rA")

			abandoned := make(chan error, 1)
			go func() { abandoned <- h.app.JoinRoom(ctx, Room{ID: "rA"}) }()
			select {
			case <-h.backend.held:
			case <-time.After(5 * time.Second):
				t.Fatal("history request for rA never arrived")
			}

			h.app.LeaveRoom()
			if err := h.app.JoinRoom(ctx, Room{ID: tt.next}); err != nil {
				t.Fatalf("JoinRoom(%s) error = %v", tt.next, err)
			}
			// Whatever the abandoned request returns now must not be shown.
			h.backend.setRoomHistory("rA", []map[string]any{messageItem("a2", "rA", "late", "bob@example.com")})
			close(release)
			if err := <-abandoned; err != nil {
				t.Fatalf("abandoned JoinRoom() error = %v", err)
			}

			got := messageIDs(h.app.Messages())
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Fatalf("Messages() ids = %v, want %v", got, tt.want)
			}
			if room, ok := h.app.CurrentRoom(); !ok || room.ID != tt.next {
				t.Fatalf("CurrentRoom() = %#v, %v", room, ok)
			}
		})
	}
}

func TestJoinRoom_StatusFollowsImmediateConnect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mu.Lock()
	h.fastConnect = true
	h.mu.Unlock()

	if err := h.app.JoinRoom(ctx, Room{ID: "r1"}); err != nil {
		t.Fatalf("JoinRoom() error = %v", err)
	}
	if h.app.Status() != runstatus.Connected {
		t.Fatalf("Status() = %q, want %q", h.app.Status(), runstatus.Connected)
	}

	// Switching rooms on the live connection keeps one set of relays.
	if err := h.app.JoinRoom(ctx, Room{ID: "r2"}); err != nil {
		t.Fatalf("JoinRoom(r2) error = %v", err)
	}
	if h.app.Status() != runstatus.Connected {
		t.Fatalf("Status() after switching rooms = %q", h.app.Status())
	}
	transport := h.currentTransport()
	if n := transport.handlerCount(realtime.EventConnect); n != 1 {
		t.Fatalf("transport connect handlers = %d, want 1", n)
	}
	h.mu.Lock()
	dials := h.dials
	h.mu.Unlock()
	if dials != 1 {
		t.Fatalf("dials = %d, want the connection reused", dials)
	}

	transport.fire(realtime.EventDisconnect, `"transport close"`)
	want := []string{runstatus.Connecting, runstatus.Connected, runstatus.Connecting, runstatus.Connected, runstatus.Disconnected}
	if got := h.statusHistory(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("status history = %v, want %v", got, want)
	}
}

func TestJoinRoom_HistoryFailureLeavesNotice(t *testing.T) {
	h := newHarness(t)
	h.backend.mu.Lock()
	h.backend.failHistory = true
	h.backend.mu.Unlock()
	err := h.app.JoinRoom(context.Background(), Room{ID: "r1"})
	var protocol *client.ProtocolError
	if !errors.As(err, &protocol) {
		t.Fatalf("JoinRoom() error = %v, want protocol error", err)
	}
	got := messageIDs(h.app.Messages())
	if len(got) != 1 || got[0] != "notice:"+NoticeHistoryFailed {
		t.Fatalf("Messages() = %v", got)
	}
}

func TestSendMessage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.app.EnterAsGuest()

	var validation *client.ValidationError
	if err := h.app.SendMessage(ctx, "  "); !errors.As(err, &validation) {
		t.Fatalf("blank SendMessage() error = %v", err)
	}
	if err := h.app.SendMessage(ctx, "hello"); !errors.Is(err, ErrNoRoom) {
		t.Fatalf("SendMessage() without room error = %v, want ErrNoRoom", err)
	}

	if err := h.app.JoinRoom(ctx, Room{ID: "r1"}); err != nil {
		t.Fatalf("JoinRoom() error = %v", err)
	}
	if err := h.app.SendMessage(ctx, " hello "); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	body := h.backend.sentBodies()[0]
	data, _ := body["data"].(map[string]any)
	if data["text"] != "hello" || data["room"] != "r1" || data["author"] != h.app.DisplayName() {
		t.Fatalf("message data = %#v", data)
	}
	if data["timestamp"] != float64(fixedNow.UnixMilli()) {
		t.Fatalf("timestamp = %v, want %d", data["timestamp"], fixedNow.UnixMilli())
	}
	if body["guestId"] != h.app.client.Identity().Session().GuestID {
		t.Fatalf("guestId = %v", body["guestId"])
	}

	// The realtime echo of our own message is a duplicate.
	h.currentTransport().fire("data:created", liveEvent(t, map[string]any{
		"_id":  "m-sent",
		"data": map[string]any{"text": "hello", "room": "r1", "author": h.app.DisplayName()},
	}))
	messages := h.app.Messages()
	if len(messages) != 1 || messages[0].ID != "m-sent" || !messages[0].Own || messages[0].Text != "hello" {
		t.Fatalf("Messages() = %#v", messages)
	}

	h.backend.mu.Lock()
	h.backend.failSend = true
	h.backend.mu.Unlock()
	if err := h.app.SendMessage(ctx, "again"); err == nil {
		t.Fatal("SendMessage() against failing backend succeeded")
	}
	got := messageIDs(h.app.Messages())
	if len(got) != 2 || got[1] != "notice:"+NoticeSendFailed {
		t.Fatalf("Messages() = %v, want send-failure notice last", got)
	}
}

func TestLogout_KeepsGuestAndDisconnects(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.app.EnterAsGuest()
	guest := h.app.client.Identity().Session().GuestID
	if err := h.app.Login(ctx, "ann@example.com", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := h.app.JoinRoom(ctx, Room{ID: "r1"}); err != nil {
		t.Fatalf("JoinRoom() error = %v", err)
	}
	transport := h.currentTransport()

	h.app.Logout()

	if !transport.isClosed() {
		t.Fatal("Logout() left the realtime transport open")
	}
	if h.app.Authenticated() {
		t.Fatal("Authenticated() = true after Logout()")
	}
	if _, ok := h.app.CurrentRoom(); ok {
		t.Fatal("CurrentRoom() still set after Logout()")
	}
	if h.app.client.Identity().Session().Token != "" {
		t.Fatal("resolver token survived Logout()")
	}
	if h.app.Status() != runstatus.Offline {
		t.Fatalf("Status() = %q, want %q", h.app.Status(), runstatus.Offline)
	}
	record, err := h.store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if record.Authenticated() || record.GuestID != guest {
		t.Fatalf("saved record = %#v, want guest %q only", record, guest)
	}
}

func TestWatchSession_SignsOutWhenAnotherInstanceLogsOut(t *testing.T) {
	h := newHarness(t)
	signedOut := make(chan struct{}, 1)
	h.app.hooks.OnSignedOut = func() {
		select {
		case signedOut <- struct{}{}:
		default:
		}
	}
	if err := h.app.Login(context.Background(), "ann@example.com", "secret"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	other, err := sessionstore.New(h.store.Path(), testLogger())
	if err != nil {
		t.Fatalf("sessionstore.New(other) error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchDone := make(chan error, 1)
	go func() { watchDone <- h.app.WatchSession(ctx) }()

	saved, err := h.store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if err := other.ClearAuth(); err != nil {
			t.Fatalf("ClearAuth() error = %v", err)
		}
		select {
		case <-signedOut:
			if h.app.Authenticated() {
				t.Fatal("still authenticated after external logout")
			}
			cancel()
			if err := <-watchDone; err != nil {
				t.Fatalf("WatchSession() error = %v", err)
			}
			return
		case <-deadline:
			t.Fatal("timed out waiting for sign-out")
		case <-ticker.C:
			// The watcher may not have been registered yet; restore the
			// login so the next ClearAuth is a change again.
			if err := other.Save(saved); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
		}
	}
}
