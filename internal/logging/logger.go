package logging

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Logger is shared by every SDK component. Loggers derived with With share
// output, file persistence and subscribers with their parent.
type Logger struct {
	core *core
	base []slog.Attr
}

type core struct {
	debugEnabled atomic.Bool
	terminalOut  atomic.Bool
	pretty       bool
	mu           sync.RWMutex
	fileSink     *fileSink
	nextID       int
	subscribers  map[int]func(Event)
}

type Event struct {
	Time    time.Time
	Level   slog.Level
	Message string
	Fields  map[string]any
}

func New(debug bool) *Logger {
	c := &core{
		pretty:      shouldPrettyPrint(),
		subscribers: map[int]func(Event){},
	}
	c.debugEnabled.Store(debug)
	c.terminalOut.Store(true)
	return &Logger{core: c}
}

func Field(key string, value any) slog.Attr {
	return slog.Any(key, value)
}

// With returns a logger that adds fields to every event it records.
func (l *Logger) With(fields ...slog.Attr) *Logger {
	if l == nil {
		return nil
	}
	base := make([]slog.Attr, 0, len(l.base)+len(fields))
	base = append(base, l.base...)
	base = append(base, fields...)
	return &Logger{core: l.core, base: base}
}

// Component is shorthand for With(Field("component", name)).
func (l *Logger) Component(name string) *Logger {
	return l.With(Field("component", name))
}

func (l *Logger) Debugf(format string, args ...any) {
	l.Debug(fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(msg string, fields ...slog.Attr) {
	if l == nil {
		return
	}
	// Debug events always reach the file sink; terminal and subscribers only see them when enabled.
	l.log(slog.LevelDebug, msg, fields, l.core.debugEnabled.Load())
}

func (l *Logger) Info(msg string, fields ...slog.Attr) {
	if l == nil {
		return
	}
	l.log(slog.LevelInfo, msg, fields, true)
}

func (l *Logger) Warn(msg string, fields ...slog.Attr) {
	if l == nil {
		return
	}
	l.log(slog.LevelWarn, msg, fields, true)
}

func (l *Logger) Error(msg string, fields ...slog.Attr) {
	if l == nil {
		return
	}
	l.log(slog.LevelError, msg, fields, true)
}

func (l *Logger) SetDebugEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.core.debugEnabled.Store(enabled)
}

func (l *Logger) DebugEnabled() bool {
	return l != nil && l.core.debugEnabled.Load()
}

func (l *Logger) SetTerminalOutputEnabled(enabled bool) {
	if l == nil {
		return
	}
	l.core.terminalOut.Store(enabled)
}

func (l *Logger) EnableFilePersistence(maxBytes int64) error {
	if l == nil {
		return nil
	}
	sink, err := newFileSink(maxBytes)
	if err != nil {
		return err
	}
	l.core.mu.Lock()
	old := l.core.fileSink
	l.core.fileSink = sink
	l.core.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return nil
}

func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.core.mu.Lock()
	sink := l.core.fileSink
	l.core.fileSink = nil
	l.core.mu.Unlock()
	if sink == nil {
		return nil
	}
	return sink.Close()
}

// Subscribe registers fn for every published event and returns the matching unsubscribe func.
func (l *Logger) Subscribe(fn func(Event)) func() {
	if l == nil {
		panic("logging.Logger.Subscribe: logger must not be nil")
	}
	if fn == nil {
		panic("logging.Logger.Subscribe: callback must not be nil")
	}
	c := l.core
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subscribers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

func (l *Logger) log(level slog.Level, msg string, attrs []slog.Attr, publish bool) {
	all := attrs
	if len(l.base) > 0 {
		all = make([]slog.Attr, 0, len(l.base)+len(attrs))
		all = append(all, l.base...)
		all = append(all, attrs...)
	}
	event := Event{
		Time:    time.Now(),
		Level:   level,
		Message: msg,
		Fields:  attrsToMap(all),
	}

	c := l.core
	c.mu.RLock()
	sink := c.fileSink
	var callbacks []func(Event)
	if publish && len(c.subscribers) > 0 {
		callbacks = make([]func(Event), 0, len(c.subscribers))
		for _, cb := range c.subscribers {
			callbacks = append(callbacks, cb)
		}
	}
	c.mu.RUnlock()

	if sink != nil {
		_ = sink.WriteEvent(event)
	}
	if !publish {
		return
	}
	if c.terminalOut.Load() {
		if c.pretty {
			_, _ = os.Stderr.WriteString(FormatEventANSI(event))
		} else {
			_, _ = os.Stderr.WriteString(FormatEventLine(event))
		}
	}
	for _, cb := range callbacks {
		cb(event)
	}
}

func attrsToMap(attrs []slog.Attr) map[string]any {
	if len(attrs) == 0 {
		return nil
	}
	values := make(map[string]any, len(attrs))
	for _, attr := range attrs {
		if key, value := resolveAttr(attr); key != "" {
			values[key] = value
		}
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

func resolveAttr(attr slog.Attr) (string, any) {
	if attr.Key == "" {
		return "", nil
	}
	value := attr.Value.Resolve()
	if value.Kind() != slog.KindGroup {
		return attr.Key, value.Any()
	}
	inner := map[string]any{}
	for _, groupAttr := range value.Group() {
		if key, val := resolveAttr(groupAttr); key != "" {
			inner[key] = val
		}
	}
	return attr.Key, inner
}
