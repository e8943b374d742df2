package runstatus

import "strings"

const (
	Offline         = "Offline"
	Connecting      = "Connecting"
	Connected       = "Connected"
	Disconnected    = "Disconnected"
	ConnectionError = "Connection error"
)

const (
	KeyOffline         = "offline"
	KeyConnecting      = "connecting"
	KeyConnected       = "connected"
	KeyDisconnected    = "disconnected"
	KeyConnectionError = "connection error"
)

func Key(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

// Live reports whether status means the realtime connection is up.
func Live(status string) bool {
	return Key(status) == KeyConnected
}
