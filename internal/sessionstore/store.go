// Package sessionstore persists the chat client's identity between runs:
// the guest id and, after a login, the user and its tokens.
package sessionstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"zerostack-chat/internal/client"
	"zerostack-chat/internal/identity"
	"zerostack-chat/internal/logging"
)

type Record struct {
	GuestID      string       `json:"guestId,omitempty"`
	User         *client.User `json:"user,omitempty"`
	Token        string       `json:"token,omitempty"`
	RefreshToken string       `json:"refreshToken,omitempty"`
}

// Authenticated reports whether the record holds a saved login.
func (r Record) Authenticated() bool {
	return r.Token != "" && r.User != nil
}

// Store serializes access within the process with mu and across processes
// with an flock on a sibling ".lock" file.
type Store struct {
	path   string
	mu     sync.Mutex
	lock   *flock.Flock
	logger *logging.Logger
}

func DefaultPath() (string, error) {
	root, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config directory: %w", err)
	}
	return filepath.Join(root, "zerostack", "session.json"), nil
}

// New opens the store at path, or at DefaultPath when path is empty.
func New(path string, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		panic("sessionstore.New: logger must not be nil")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger.Component("sessionstore"),
	}, nil
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the saved record; a missing file is an empty record. A
// corrupt file is reported so the caller can clear it.
func (s *Store) Load() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.RLock(); err != nil {
		return Record{}, fmt.Errorf("lock session file: %w", err)
	}
	defer s.unlock()
	return s.readLocked()
}

func (s *Store) Save(record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock session file: %w", err)
	}
	defer s.unlock()
	return s.writeLocked(record)
}

// Update applies fn to the saved record under the file lock and writes the
// result back. A corrupt file is treated as empty.
func (s *Store) Update(fn func(*Record)) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return Record{}, fmt.Errorf("lock session file: %w", err)
	}
	defer s.unlock()

	record, err := s.readLocked()
	if err != nil {
		s.logger.Warn("discarding unreadable session file", logging.Field("error", err))
		record = Record{}
	}
	fn(&record)
	if err := s.writeLocked(record); err != nil {
		return Record{}, err
	}
	return record, nil
}

// ClearAuth forgets the saved login but keeps the guest id, so a guest keeps
// the same identity across logouts.
func (s *Store) ClearAuth() error {
	_, err := s.Update(func(r *Record) {
		r.User = nil
		r.Token = ""
		r.RefreshToken = ""
	})
	return err
}

// EnsureGuestID returns the saved guest id, generating and saving one on
// first use.
func (s *Store) EnsureGuestID() (string, error) {
	record, err := s.Update(func(r *Record) {
		if !identity.IsGuestID(r.GuestID) {
			r.GuestID = identity.NewGuestID()
		}
	})
	if err != nil {
		return "", err
	}
	return record.GuestID, nil
}

func (s *Store) unlock() {
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("unlock session file failed", logging.Field("error", err))
	}
}

func (s *Store) readLocked() (Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return Record{}, nil
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("decode session file %s: %w", s.path, err)
	}
	return record, nil
}

// writeLocked replaces the file atomically so watchers never read a
// half-written record.
func (s *Store) writeLocked(record Record) error {
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".session-*.json")
	if err != nil {
		return fmt.Errorf("create session temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace session file: %w", err)
	}
	s.logger.Debug("session saved",
		logging.Field("path", s.path),
		logging.Field("authenticated", record.Authenticated()),
		logging.Field("token", logging.RedactToken(record.Token)),
	)
	return nil
}
