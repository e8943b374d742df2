package socketio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Engine.IO packet types (first byte of every websocket frame).
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
	engineNoop    = '6'
)

// Socket.IO packet types (first byte after the Engine.IO message type).
const (
	socketConnect      = '0'
	socketDisconnect   = '1'
	socketEvent        = '2'
	socketConnectError = '4'
)

type openPayload struct {
	SID          string `json:"sid"`
	PingInterval int64  `json:"pingInterval"`
	PingTimeout  int64  `json:"pingTimeout"`
	MaxPayload   int64  `json:"maxPayload"`
}

// liveness is how long the server may stay silent before the connection is
// considered dead: one ping interval plus the ping timeout.
func (p openPayload) liveness() time.Duration {
	total := time.Duration(p.PingInterval+p.PingTimeout) * time.Millisecond
	if total <= 0 {
		return 45 * time.Second
	}
	return total
}

type packet struct {
	engine byte
	socket byte
	data   []byte
}

var errEmptyFrame = errors.New("empty engine.io frame")

func parsePacket(frame []byte) (packet, error) {
	if len(frame) == 0 {
		return packet{}, errEmptyFrame
	}
	p := packet{engine: frame[0], data: frame[1:]}
	if p.engine != engineMessage {
		return p, nil
	}
	if len(p.data) == 0 {
		return packet{}, fmt.Errorf("socket.io packet without type")
	}
	p.socket = p.data[0]
	rest := p.data[1:]
	// Only the main namespace is used; a "/nsp," prefix is skipped.
	if len(rest) > 0 && rest[0] == '/' {
		comma := bytes.IndexByte(rest, ',')
		if comma < 0 {
			rest = nil
		} else {
			rest = rest[comma+1:]
		}
	}
	// Ack ids precede the JSON body.
	for len(rest) > 0 && rest[0] >= '0' && rest[0] <= '9' {
		rest = rest[1:]
	}
	p.data = rest
	return p, nil
}

func encodeConnect(auth map[string]any) ([]byte, error) {
	frame := []byte{engineMessage, socketConnect}
	if len(auth) == 0 {
		return frame, nil
	}
	encoded, err := json.Marshal(auth)
	if err != nil {
		return nil, fmt.Errorf("encode handshake auth: %w", err)
	}
	return append(frame, encoded...), nil
}

func encodeEvent(event string, payload any) ([]byte, error) {
	args := []any{event}
	if payload != nil {
		args = append(args, payload)
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event, err)
	}
	return append([]byte{engineMessage, socketEvent}, encoded...), nil
}

// decodeEvent splits an event body into its name and first argument.
func decodeEvent(data []byte) (string, json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(data, &args); err != nil {
		return "", nil, fmt.Errorf("decode event: %w", err)
	}
	if len(args) == 0 {
		return "", nil, errors.New("event without name")
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, fmt.Errorf("decode event name: %w", err)
	}
	if len(args) < 2 {
		return name, json.RawMessage("null"), nil
	}
	return name, args[1], nil
}

func errorPayload(message string) json.RawMessage {
	encoded, _ := json.Marshal(map[string]string{"message": message})
	return encoded
}

func reasonPayload(reason string) json.RawMessage {
	encoded, _ := json.Marshal(reason)
	return encoded
}
