// Package oplog keeps the timestamped operation log of one deduplication run
// and serialises it as a WARC resource record.
package oplog

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/thesavant42/warc-dedup/internal/warc"
)

// LogURI is the target URI of the log record
const LogURI = "urn:X-warc-dedup:log"

// Entry is one log line
type Entry struct {
	Time    time.Time
	Message string
}

// Log is an append-only, in-memory event log scoped to a single run.
// It is safe for concurrent use.
type Log struct {
	mu         sync.Mutex
	entries    []Entry
	warcinfoID string
	logger     *log.Logger
	now        func() time.Time
}

// New creates an empty log. Entries are mirrored to logger at debug level
// when logger is non-nil.
func New(logger *log.Logger) *Log {
	return &Log{
		logger: logger,
		now:    time.Now,
	}
}

// Log appends a message
func (l *Log) Log(message string) {
	l.mu.Lock()
	l.entries = append(l.entries, Entry{Time: l.now().UTC(), Message: message})
	l.mu.Unlock()

	if l.logger != nil {
		l.logger.Debug(message)
	}
}

// Logf appends a formatted message
func (l *Log) Logf(format string, args ...any) {
	l.Log(fmt.Sprintf(format, args...))
}

// Associate records the warcinfo record the log refers to
func (l *Log) Associate(warcinfoID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warcinfoID = warcinfoID
}

// WarcinfoID returns the associated warcinfo record id, or ""
func (l *Log) WarcinfoID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.warcinfoID
}

// Entries returns a copy of the entries in emission order
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Record renders all entries as a text/plain resource record. The record
// carries WARC-Warcinfo-ID only when a warcinfo record was associated.
func (l *Log) Record() *warc.Record {
	entries := l.Entries()

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Time.Format(time.RFC3339Nano))
		b.WriteByte(' ')
		b.WriteString(e.Message)
		b.WriteByte('\n')
	}

	rec := warc.NewRecord(warc.TypeResource)
	rec.Header.Set(warc.FieldTargetURI, LogURI)
	if id := l.WarcinfoID(); id != "" {
		rec.Header.Set(warc.FieldWarcinfoID, id)
	}
	rec.Header.Set(warc.FieldContentType, "text/plain; charset=utf-8")
	rec.Content = strings.NewReader(b.String())
	return rec
}
