package socketio

import "errors"

var ErrClosed = errors.New("socket.io client closed")

// ConnectError is the server's refusal of the namespace handshake, usually a
// rejected API key. It is terminal: the client does not reconnect after it.
type ConnectError struct {
	Message string
}

func (e *ConnectError) Error() string {
	if e == nil || e.Message == "" {
		return "socket.io connect refused"
	}
	return "socket.io connect refused: " + e.Message
}

// IsConnectError reports whether err is a namespace handshake refusal.
func IsConnectError(err error) bool {
	var connectErr *ConnectError
	return errors.As(err, &connectErr)
}
