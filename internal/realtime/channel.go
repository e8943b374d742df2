// Package realtime multiplexes one live-update connection across named
// nodes. Each node has at most one handler; events for nodes without a
// handler are dropped.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"zerostack-chat/internal/client"
	"zerostack-chat/internal/logging"
)

// Lifecycle events a Transport reports alongside server events.
const (
	EventConnect      = "connect"
	EventDisconnect   = "disconnect"
	EventConnectError = "connect_error"
)

const subscribeEvent = "subscribe"

// Transport is one live connection. Callbacks registered with On may run on
// a transport-owned goroutine, but never from inside On or Connect. Connect
// starts the connection after the callbacks are wired.
type Transport interface {
	On(event string, fn func(json.RawMessage))
	Emit(event string, payload any) error
	Connect() error
	Close() error
}

// Dialer creates an unconnected transport, authenticated at handshake.
type Dialer func() (Transport, error)

type EventKind string

const (
	Created EventKind = "created"
	Updated EventKind = "updated"
	Deleted EventKind = "deleted"
)

var eventKinds = []EventKind{Created, Updated, Deleted}

func (k EventKind) eventName() string {
	return "data:" + string(k)
}

type Handler func(item client.Item, kind EventKind)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Errored
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Errored:
		return "errored"
	default:
		return "disconnected"
	}
}

var (
	ErrNodeRequired = errors.New("realtime: node name is required")
	ErrUnknownEvent = errors.New("realtime: unknown lifecycle event")
)

type eventPayload struct {
	Node string      `json:"node"`
	Item client.Item `json:"item"`
}

type Channel struct {
	dial   Dialer
	logger *logging.Logger

	mu         sync.Mutex
	transport  Transport
	generation uint64
	connects   int
	state      State
	handlers   map[string]Handler
	listeners  map[string][]func(json.RawMessage)
}

func New(dial Dialer, logger *logging.Logger) *Channel {
	if dial == nil {
		panic("realtime.New: dialer must not be nil")
	}
	if logger == nil {
		panic("realtime.New: logger must not be nil")
	}
	return &Channel{
		dial:     dial,
		logger:   logger.Component("realtime"),
		handlers:  make(map[string]Handler),
		listeners: make(map[string][]func(json.RawMessage)),
	}
}

// EnsureConnection returns the live transport, dialing one only when none
// exists.
func (ch *Channel) EnsureConnection() (Transport, error) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.ensureLocked()
}

func (ch *Channel) ensureLocked() (Transport, error) {
	if ch.transport != nil {
		return ch.transport, nil
	}

	t, err := ch.dial()
	if err != nil {
		ch.state = Errored
		ch.logger.Warn("realtime dial failed", logging.Field("error", err))
		return nil, err
	}
	ch.generation++
	gen := ch.generation
	for _, kind := range eventKinds {
		t.On(kind.eventName(), func(payload json.RawMessage) {
			ch.dispatch(gen, kind, payload)
		})
	}
	t.On(EventConnect, func(payload json.RawMessage) { ch.handleConnect(gen, payload) })
	t.On(EventDisconnect, func(reason json.RawMessage) { ch.setState(gen, EventDisconnect, Disconnected, reason) })
	t.On(EventConnectError, func(reason json.RawMessage) { ch.setState(gen, EventConnectError, Errored, reason) })

	ch.transport = t
	ch.connects = 0
	ch.state = Connecting
	if err := t.Connect(); err != nil {
		ch.transport = nil
		ch.generation++
		ch.state = Errored
		_ = t.Close()
		return nil, err
	}
	ch.logger.Debug("realtime connection opened")
	return t, nil
}

// Subscribe installs handler for node, replacing any previous one, and
// tells the server about the interest. No acknowledgement is awaited.
func (ch *Channel) Subscribe(node string, handler Handler) error {
	node = strings.TrimSpace(node)
	if node == "" {
		return ErrNodeRequired
	}
	if handler == nil {
		return errors.New("realtime: handler must not be nil")
	}

	ch.mu.Lock()
	t, err := ch.ensureLocked()
	if err != nil {
		ch.mu.Unlock()
		return err
	}
	_, replaced := ch.handlers[node]
	ch.handlers[node] = handler
	ch.mu.Unlock()

	ch.logger.Debug("subscribing", logging.Field("node", node), logging.Field("replaced", replaced))
	return t.Emit(subscribeEvent, map[string]string{"node": node})
}

// Unsubscribe forgets node's handler locally. The server is not told, so
// events for node may keep arriving; they are dropped.
func (ch *Channel) Unsubscribe(node string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	delete(ch.handlers, node)
}

// On registers a lifecycle callback (EventConnect, EventDisconnect,
// EventConnectError). It does not dial: callbacks registered before the
// first Subscribe see that connection's first connect. Disconnect drops
// every callback.
func (ch *Channel) On(event string, fn func(json.RawMessage)) error {
	switch event {
	case EventConnect, EventDisconnect, EventConnectError:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	if fn == nil {
		return errors.New("realtime: callback must not be nil")
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.listeners[event] = append(ch.listeners[event], fn)
	return nil
}

// Disconnect closes the connection and clears every subscription and
// lifecycle callback. The next Subscribe or EnsureConnection dials a fresh
// connection.
func (ch *Channel) Disconnect() {
	ch.mu.Lock()
	t := ch.transport
	ch.transport = nil
	ch.generation++
	ch.connects = 0
	ch.handlers = make(map[string]Handler)
	ch.listeners = make(map[string][]func(json.RawMessage))
	ch.state = Disconnected
	ch.mu.Unlock()

	if t == nil {
		return
	}
	if err := t.Close(); err != nil {
		ch.logger.Warn("closing realtime transport failed", logging.Field("error", err))
	}
	ch.logger.Debug("realtime connection closed")
}

func (ch *Channel) State() State {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state
}

// Nodes lists the nodes that currently have a handler, sorted.
func (ch *Channel) Nodes() []string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	nodes := make([]string, 0, len(ch.handlers))
	for node := range ch.handlers {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	return nodes
}

func (ch *Channel) dispatch(gen uint64, kind EventKind, payload json.RawMessage) {
	var event eventPayload
	if err := json.Unmarshal(payload, &event); err != nil {
		ch.logger.Warn("dropping undecodable realtime event",
			logging.Field("kind", string(kind)),
			logging.Field("error", err),
		)
		return
	}

	ch.mu.Lock()
	var handler Handler
	if gen == ch.generation {
		handler = ch.handlers[event.Node]
	}
	ch.mu.Unlock()

	if handler == nil {
		ch.logger.Debug("dropping event without handler",
			logging.Field("node", event.Node),
			logging.Field("kind", string(kind)),
		)
		return
	}
	handler(event.Item, kind)
}

// handleConnect marks the channel connected. On reconnects of the same
// transport the server has forgotten our subscriptions, so they are sent
// again; events missed while offline are not replayed.
func (ch *Channel) handleConnect(gen uint64, payload json.RawMessage) {
	ch.mu.Lock()
	if gen != ch.generation || ch.transport == nil {
		ch.mu.Unlock()
		return
	}
	ch.state = Connected
	ch.connects++
	t := ch.transport
	listeners := append(([]func(json.RawMessage))(nil), ch.listeners[EventConnect]...)
	var nodes []string
	if ch.connects > 1 {
		for node := range ch.handlers {
			nodes = append(nodes, node)
		}
		sort.Strings(nodes)
	}
	ch.mu.Unlock()

	for _, node := range nodes {
		if err := t.Emit(subscribeEvent, map[string]string{"node": node}); err != nil {
			ch.logger.Warn("resubscribe failed", logging.Field("node", node), logging.Field("error", err))
		}
	}
	if len(nodes) > 0 {
		ch.logger.Info("resubscribed after reconnect", logging.Field("nodes", nodes))
	}
	notify(listeners, payload)
}

func (ch *Channel) setState(gen uint64, event string, state State, reason json.RawMessage) {
	ch.mu.Lock()
	if gen != ch.generation || ch.transport == nil {
		ch.mu.Unlock()
		return
	}
	ch.state = state
	listeners := append(([]func(json.RawMessage))(nil), ch.listeners[event]...)
	ch.mu.Unlock()
	ch.logger.Debug("realtime state changed",
		logging.Field("state", state.String()),
		logging.Field("reason", string(reason)),
	)
	notify(listeners, reason)
}

// notify runs lifecycle callbacks outside the channel lock so they may call
// back into the channel.
func notify(listeners []func(json.RawMessage), payload json.RawMessage) {
	for _, fn := range listeners {
		fn(payload)
	}
}
