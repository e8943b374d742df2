package sessionstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"zerostack-chat/internal/client"
	"zerostack-chat/internal/identity"
	"zerostack-chat/internal/logging"
)

func testLogger() *logging.Logger {
	logger := logging.New(false)
	logger.SetTerminalOutputEnabled(false)
	return logger
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "nested", "session.json"), testLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return store
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	store := newTestStore(t)
	record, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if record != (Record{}) {
		t.Fatalf("Load() = %#v, want empty", record)
	}
}

func TestSaveLoadAndClearAuth(t *testing.T) {
	store := newTestStore(t)
	saved := Record{
		GuestID:      "guest_abc",
		User:         &client.User{ID: "u1", Email: "a@b.com"},
		Token:        "access",
		RefreshToken: "refresh",
	}
	if err := store.Save(saved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatalf("stat session file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("session file mode = %v, want 0600", perm)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !loaded.Authenticated() || loaded.User.Email != "a@b.com" || loaded.Token != "access" || loaded.GuestID != "guest_abc" {
		t.Fatalf("Load() = %#v", loaded)
	}

	if err := store.ClearAuth(); err != nil {
		t.Fatalf("ClearAuth() error = %v", err)
	}
	loaded, err = store.Load()
	if err != nil {
		t.Fatalf("Load() after ClearAuth error = %v", err)
	}
	if loaded.Authenticated() || loaded.Token != "" || loaded.RefreshToken != "" || loaded.GuestID != "guest_abc" {
		t.Fatalf("after ClearAuth = %#v, want guest id only", loaded)
	}
}

func TestEnsureGuestID_IsStable(t *testing.T) {
	store := newTestStore(t)
	first, err := store.EnsureGuestID()
	if err != nil {
		t.Fatalf("EnsureGuestID() error = %v", err)
	}
	if !identity.IsGuestID(first) {
		t.Fatalf("EnsureGuestID() = %q, want guest_ prefix", first)
	}
	second, err := store.EnsureGuestID()
	if err != nil {
		t.Fatalf("EnsureGuestID() again error = %v", err)
	}
	if first != second {
		t.Fatalf("guest id changed: %q then %q", first, second)
	}
}

func TestCorruptFile(t *testing.T) {
	store := newTestStore(t)
	if err := os.WriteFile(store.Path(), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if _, err := store.Load(); err == nil {
		t.Fatalf("Load() expected decode error")
	}
	guestID, err := store.EnsureGuestID()
	if err != nil || !identity.IsGuestID(guestID) {
		t.Fatalf("EnsureGuestID() over corrupt file = %q, %v", guestID, err)
	}
	if _, err := store.Load(); err != nil {
		t.Fatalf("Load() after repair error = %v", err)
	}
}

func TestWatch_ReportsExternalChange(t *testing.T) {
	store := newTestStore(t)
	if err := store.Save(Record{GuestID: "guest_abc", User: &client.User{Email: "a@b.com"}, Token: "access"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	other, err := New(store.Path(), testLogger())
	if err != nil {
		t.Fatalf("New(other) error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan Record, 4)
	watchDone := make(chan error, 1)
	go func() {
		watchDone <- store.Watch(ctx, func(r Record) {
			select {
			case changes <- r:
			default:
			}
		})
	}()

	// Give the watcher time to register; retry the change until it is seen.
	deadline := time.After(5 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if err := other.ClearAuth(); err != nil {
			t.Fatalf("ClearAuth() error = %v", err)
		}
		select {
		case record := <-changes:
			if record.Authenticated() {
				continue
			}
			if record.GuestID != "guest_abc" {
				t.Fatalf("watched record = %#v", record)
			}
			cancel()
			if err := <-watchDone; err != nil {
				t.Fatalf("Watch() error = %v", err)
			}
			return
		case <-deadline:
			t.Fatalf("timed out waiting for session change")
		case <-ticker.C:
			// ClearAuth is idempotent; re-save the login so the next
			// iteration is a real change again.
			if err := other.Save(Record{GuestID: "guest_abc", User: &client.User{Email: "a@b.com"}, Token: "access"}); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
		}
	}
}
