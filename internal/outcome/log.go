// Package outcome records the user-visible forwarding log: one line per
// delivery outcome or notable event, newest first, capped at a retention count.
package outcome

import (
	"sync"
	"time"
	"unicode/utf8"
)

const (
	// DefaultRetention is how many entries are kept before the oldest are evicted.
	DefaultRetention = 200

	// DefaultMaxLineLength caps a single line, in characters, before truncation.
	DefaultMaxLineLength = 2000

	// EmptyMessage is returned by Latest when nothing has been logged.
	EmptyMessage = "no log entries yet"

	timestampLayout = "2006-01-02 15:04:05"
	truncatedSuffix = "…(truncated)"
)

// Reporter receives human-readable outcome lines. Implementations must be
// safe for concurrent use.
type Reporter interface {
	Append(line string)
}

// TimedReporter is a Reporter that can stamp a line with the time it was
// reported rather than the time it is written.
type TimedReporter interface {
	Reporter
	AppendAt(at time.Time, line string)
}

// Backend stores formatted entries, newest first, evicting beyond its
// retention count.
type Backend interface {
	Insert(entry string) error
	List(limit int) ([]string, error)
	Clear() error
}

// Format stamps a line with its time and truncates overlong text.
func Format(t time.Time, line string, maxLen int) string {
	if maxLen > 0 && utf8.RuneCountInString(line) > maxLen {
		line = string([]rune(line)[:maxLen]) + truncatedSuffix
	}
	return "[" + t.Format(timestampLayout) + "] " + line
}

// Listener is called with each entry after it is stored.
type Listener func(entry string)

// Log is a Reporter that formats lines and writes them to a Backend.
type Log struct {
	backend Backend
	maxLen  int
	now     func() time.Time
	onError func(error)

	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
}

// LogOption configures a Log.
type LogOption func(*Log)

// WithClock overrides the time source used for entry timestamps.
func WithClock(now func() time.Time) LogOption {
	return func(l *Log) { l.now = now }
}

// WithErrorHandler is called when the backend rejects a write.
func WithErrorHandler(fn func(error)) LogOption {
	return func(l *Log) { l.onError = fn }
}

// NewLog creates a Log over backend. maxLen <= 0 selects DefaultMaxLineLength.
func NewLog(backend Backend, maxLen int, opts ...LogOption) *Log {
	if maxLen <= 0 {
		maxLen = DefaultMaxLineLength
	}
	l := &Log{
		backend:   backend,
		maxLen:    maxLen,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append implements Reporter.
func (l *Log) Append(line string) {
	l.AppendAt(l.now(), line)
}

// AppendAt stores line stamped with at.
func (l *Log) AppendAt(at time.Time, line string) {
	entry := Format(at, line, l.maxLen)
	if err := l.backend.Insert(entry); err != nil {
		if l.onError != nil {
			l.onError(err)
		}
		return
	}

	l.mu.RLock()
	listeners := make([]Listener, 0, len(l.listeners))
	for _, fn := range l.listeners {
		listeners = append(listeners, fn)
	}
	l.mu.RUnlock()

	for _, fn := range listeners {
		fn(entry)
	}
}

// Subscribe registers fn for every new entry. The returned func removes it.
func (l *Log) Subscribe(fn Listener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
}

// Entries returns up to limit entries, newest first. limit <= 0 returns all.
func (l *Log) Entries(limit int) ([]string, error) {
	return l.backend.List(limit)
}

// Latest returns the newest entry, or EmptyMessage.
func (l *Log) Latest() string {
	entries, err := l.backend.List(1)
	if err != nil || len(entries) == 0 {
		return EmptyMessage
	}
	return entries[0]
}

// Clear removes every entry.
func (l *Log) Clear() error {
	return l.backend.Clear()
}

// Memory is an in-process Backend.
type Memory struct {
	mu        sync.Mutex
	entries   []string
	retention int
}

// NewMemory creates a Memory backend. retention <= 0 selects DefaultRetention.
func NewMemory(retention int) *Memory {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Memory{retention: retention}
}

// Insert implements Backend.
func (m *Memory) Insert(entry string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append([]string{entry}, m.entries...)
	if len(m.entries) > m.retention {
		m.entries = m.entries[:m.retention]
	}
	return nil
}

// List implements Backend.
func (m *Memory) List(limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]string, n)
	copy(out, m.entries[:n])
	return out, nil
}

// Clear implements Backend.
func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	return nil
}
