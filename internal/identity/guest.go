package identity

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

const guestPrefix = "guest_"

// NewGuestID returns a fresh client-generated pseudo-identity.
func NewGuestID() string {
	return guestPrefix + strings.ToLower(ulid.Make().String())
}

func IsGuestID(value string) bool {
	return strings.HasPrefix(value, guestPrefix) && len(value) > len(guestPrefix)
}

// GuestDisplayName is the short label shown for anonymous authors.
func GuestDisplayName(guestID string) string {
	suffix := guestID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return "Guest_" + suffix
}
