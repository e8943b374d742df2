package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultLogFileMaxBytes = 5 * 1024 * 1024
	defaultLogFileKeep     = 20
	logFilePrefix          = "zerostack-"
	logFileSuffix          = ".jsonl"
)

type fileSink struct {
	mu         sync.Mutex
	dir        string
	sessionTag string
	maxBytes   int64
	keep       int
	part       int
	file       *os.File
	size       int64
	closed     bool
}

type jsonLogLine struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

func DefaultLogDirPath() (string, error) {
	root, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "zerostack", "logs"), nil
}

func newFileSink(maxBytes int64) (*fileSink, error) {
	if maxBytes <= 0 {
		maxBytes = defaultLogFileMaxBytes
	}
	dir, err := DefaultLogDirPath()
	if err != nil {
		return nil, err
	}
	sink := &fileSink{
		dir:        dir,
		sessionTag: time.Now().UTC().Format("20060102-150405"),
		maxBytes:   maxBytes,
		keep:       defaultLogFileKeep,
	}
	if err := sink.rotateLocked(); err != nil {
		return nil, err
	}
	return sink, nil
}

func (s *fileSink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	s.size = 0
	return err
}

func (s *fileSink) WriteEvent(event Event) error {
	if s == nil {
		return nil
	}
	entry := jsonLogLine{
		Time:    event.Time.UTC().Format(time.RFC3339Nano),
		Level:   strings.ToUpper(event.Level.String()),
		Message: event.Message,
	}
	if len(event.Fields) > 0 {
		entry.Fields = make(map[string]any, len(event.Fields))
		for key, value := range event.Fields {
			entry.Fields[key] = jsonFieldValue(value)
		}
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	line := append(payload, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return os.ErrClosed
	}
	if s.file == nil || (s.maxBytes > 0 && s.size > 0 && s.size+int64(len(line)) > s.maxBytes) {
		if err := s.rotateLocked(); err != nil {
			return err
		}
	}
	n, writeErr := s.file.Write(line)
	s.size += int64(n)
	return writeErr
}

func (s *fileSink) rotateLocked() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
		s.size = 0
	}
	s.part++
	path := filepath.Join(s.dir, fmt.Sprintf("%s%s-%03d%s", logFilePrefix, s.sessionTag, s.part, logFileSuffix))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	info, statErr := f.Stat()
	if statErr != nil {
		_ = f.Close()
		return statErr
	}
	s.file = f
	s.size = info.Size()
	s.pruneLocked()
	return nil
}

// pruneLocked removes the oldest log files beyond the retention count.
// Names embed a UTC timestamp and part number, so lexical order is age order.
func (s *fileSink) pruneLocked() {
	if s.keep <= 0 {
		return
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, logFileSuffix) {
			continue
		}
		names = append(names, name)
	}
	if len(names) <= s.keep {
		return
	}
	sort.Strings(names)
	for _, name := range names[:len(names)-s.keep] {
		_ = os.Remove(filepath.Join(s.dir, name))
	}
}

func jsonFieldValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case error:
		return v.Error()
	case slog.Level:
		return v.String()
	case json.RawMessage:
		return FormatHTTPPayload(v)
	case fmt.Stringer:
		return v.String()
	default:
		return value
	}
}
