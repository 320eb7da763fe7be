// Package logbook keeps a per-client append-only record of benchmark
// activity. Every benchmarked client owns a Book; entries are mirrored
// to the process logger and served back over the log endpoint.
package logbook

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
)

const DefaultLimit = 10000

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type Entry struct {
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
}

func (e Entry) String() string {
	return fmt.Sprintf("%s [%s] %s", e.Time.UTC().Format(time.RFC3339), strings.ToUpper(string(e.Level)), e.Message)
}

// Book is an append-only bounded log. Once limit entries are held the
// oldest are dropped.
type Book struct {
	mu      sync.RWMutex
	entries []Entry
	limit   int
}

func NewBook(limit int) *Book {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Book{limit: limit}
}

func (b *Book) Append(level Level, format string, args ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, Entry{
		Time:    time.Now(),
		Level:   level,
		Message: fmt.Sprintf(format, args...),
	})
	if len(b.entries) > b.limit {
		b.entries = b.entries[len(b.entries)-b.limit:]
	}
}

func (b *Book) Entries() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Render returns the book as line-oriented text, newest entry last.
func (b *Book) Render() string {
	entries := b.Entries()
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Recorder writes to a Book and mirrors each entry to the process
// logger with the owning client id attached.
type Recorder struct {
	book     *Book
	logger   ectologger.Logger
	clientID int64
}

func NewRecorder(book *Book, logger ectologger.Logger, clientID int64) *Recorder {
	return &Recorder{
		book:     book,
		logger:   logger,
		clientID: clientID,
	}
}

func (r *Recorder) Book() *Book {
	return r.book
}

func (r *Recorder) scoped() ectologger.Logger {
	return r.logger.WithField("benchmarkClientId", r.clientID)
}

func (r *Recorder) Debugf(format string, args ...any) {
	r.book.Append(LevelDebug, format, args...)
	r.scoped().Debugf(format, args...)
}

func (r *Recorder) Infof(format string, args ...any) {
	r.book.Append(LevelInfo, format, args...)
	r.scoped().Infof(format, args...)
}

func (r *Recorder) Warnf(format string, args ...any) {
	r.book.Append(LevelWarn, format, args...)
	r.scoped().Warnf(format, args...)
}

func (r *Recorder) Errorf(format string, args ...any) {
	r.book.Append(LevelError, format, args...)
	r.scoped().Errorf(format, args...)
}
