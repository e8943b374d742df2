// Package chatlog merges a historical page of items with live pushes into
// one ordered log with no duplicates, whichever of the two arrives first.
package chatlog

import (
	"slices"
	"sync"

	"zerostack-chat/internal/client"
)

type Entry struct {
	Item client.Item
	// Notice is set for local lines that are not backend items, such as a
	// failed send. Item is zero for them.
	Notice string
}

func (e Entry) IsNotice() bool {
	return e.Notice != ""
}

// Log is safe for concurrent use; live pushes arrive on the realtime
// transport goroutine.
type Log struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	entries []Entry
}

func New() *Log {
	return &Log{seen: make(map[string]struct{})}
}

// LoadHistory appends a newest-first page in oldest-first order, skipping
// ids already in the log. It returns how many items were appended.
func (l *Log) LoadHistory(newestFirst []client.Item) int {
	ordered := slices.Clone(newestFirst)
	slices.Reverse(ordered)

	l.mu.Lock()
	defer l.mu.Unlock()
	appended := 0
	for _, item := range ordered {
		if l.appendLocked(item) {
			appended++
		}
	}
	return appended
}

// Push appends a live item unless its id was already seen.
func (l *Log) Push(item client.Item) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(item)
}

func (l *Log) appendLocked(item client.Item) bool {
	if item.ID != "" {
		if _, ok := l.seen[item.ID]; ok {
			return false
		}
		l.seen[item.ID] = struct{}{}
	}
	l.entries = append(l.entries, Entry{Item: item})
	return true
}

func (l *Log) Notice(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Notice: text})
}

func (l *Log) Seen(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[id]
	return ok
}

// Entries returns a snapshot of the log.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Reset discards the seen set and every entry, for a context switch.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen = make(map[string]struct{})
	l.entries = nil
}
