// Package identity decides which credential accompanies each outgoing request.
//
// A bearer token always wins over a guest identifier. The guest identifier is
// only sent when no token is present, both as the x-guest-id header and, for
// mutations, as a guestId body field so anonymous writes can be attributed.
package identity

import (
	"net/http"
	"strings"
	"sync"
)

const (
	HeaderAuthorization = "Authorization"
	HeaderGuestID       = "x-guest-id"
)

// Session is the identity state the application loads and saves itself.
// Empty strings mean unset.
type Session struct {
	Token   string `json:"token,omitempty"`
	GuestID string `json:"guestId,omitempty"`
}

func (s Session) Authenticated() bool {
	return s.Token != ""
}

type Resolver struct {
	mu      sync.RWMutex
	session Session
}

func NewResolver(initial Session) *Resolver {
	r := &Resolver{}
	r.Restore(initial)
	return r
}

func (r *Resolver) SetToken(token string) {
	r.mu.Lock()
	r.session.Token = strings.TrimSpace(token)
	r.mu.Unlock()
}

func (r *Resolver) ClearToken() {
	r.SetToken("")
}

func (r *Resolver) SetGuestID(guestID string) {
	r.mu.Lock()
	r.session.GuestID = strings.TrimSpace(guestID)
	r.mu.Unlock()
}

func (r *Resolver) ClearGuestID() {
	r.SetGuestID("")
}

// Restore replaces the whole session, e.g. after loading it from disk.
func (r *Resolver) Restore(session Session) {
	r.mu.Lock()
	r.session = Session{
		Token:   strings.TrimSpace(session.Token),
		GuestID: strings.TrimSpace(session.GuestID),
	}
	r.mu.Unlock()
}

func (r *Resolver) Session() Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.session
}

// AuthHeaders returns at most one credential header.
func (r *Resolver) AuthHeaders() http.Header {
	h := http.Header{}
	r.ApplyAuth(h)
	return h
}

// ApplyAuth writes the credential header into h and removes the other one.
func (r *Resolver) ApplyAuth(h http.Header) {
	session := r.Session()
	h.Del(HeaderAuthorization)
	h.Del(HeaderGuestID)
	switch {
	case session.Token != "":
		h.Set(HeaderAuthorization, "Bearer "+session.Token)
	case session.GuestID != "":
		h.Set(HeaderGuestID, session.GuestID)
	}
}

// MutationIdentity reports the guest id to merge into create/update/delete
// bodies. ok is false whenever a token is set or no guest id exists.
func (r *Resolver) MutationIdentity() (guestID string, ok bool) {
	session := r.Session()
	if session.Token != "" || session.GuestID == "" {
		return "", false
	}
	return session.GuestID, true
}
