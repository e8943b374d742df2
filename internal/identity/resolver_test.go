package identity

import (
	"testing"
)

func TestAuthHeaders_Precedence(t *testing.T) {
	tests := []struct {
		name      string
		session   Session
		wantAuth  string
		wantGuest string
	}{
		{name: "empty", session: Session{}},
		{name: "guest only", session: Session{GuestID: "guest_abc"}, wantGuest: "guest_abc"},
		{name: "token only", session: Session{Token: "tok"}, wantAuth: "Bearer tok"},
		{name: "token wins over guest", session: Session{Token: "tok", GuestID: "guest_abc"}, wantAuth: "Bearer tok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewResolver(tt.session).AuthHeaders()
			if got := h.Get(HeaderAuthorization); got != tt.wantAuth {
				t.Fatalf("Authorization = %q, want %q", got, tt.wantAuth)
			}
			if got := h.Get(HeaderGuestID); got != tt.wantGuest {
				t.Fatalf("x-guest-id = %q, want %q", got, tt.wantGuest)
			}
			if len(h) > 1 {
				t.Fatalf("headers = %v, want at most one credential", h)
			}
		})
	}
}

func TestMutationIdentity(t *testing.T) {
	r := NewResolver(Session{})
	if _, ok := r.MutationIdentity(); ok {
		t.Fatalf("MutationIdentity() ok with empty session")
	}

	r.SetGuestID("guest_abc")
	if got, ok := r.MutationIdentity(); !ok || got != "guest_abc" {
		t.Fatalf("MutationIdentity() = %q, %v", got, ok)
	}

	r.SetToken("tok")
	if _, ok := r.MutationIdentity(); ok {
		t.Fatalf("MutationIdentity() ok while token set")
	}

	r.ClearToken()
	r.ClearGuestID()
	if s := r.Session(); s != (Session{}) {
		t.Fatalf("Session() = %#v after clears", s)
	}
}

func TestApplyAuth_ReplacesStaleCredential(t *testing.T) {
	r := NewResolver(Session{GuestID: "guest_abc"})
	h := r.AuthHeaders()
	r.SetToken("tok")
	r.ApplyAuth(h)
	if h.Get(HeaderGuestID) != "" || h.Get(HeaderAuthorization) != "Bearer tok" {
		t.Fatalf("headers = %v", h)
	}
}

func TestNewGuestID(t *testing.T) {
	a, b := NewGuestID(), NewGuestID()
	if !IsGuestID(a) || !IsGuestID(b) {
		t.Fatalf("NewGuestID() = %q, %q", a, b)
	}
	if a == b {
		t.Fatalf("NewGuestID() returned duplicate %q", a)
	}
	if got := GuestDisplayName("guest_01hzzzabcd"); got != "Guest_abcd" {
		t.Fatalf("GuestDisplayName() = %q", got)
	}
}
