// Package audit records the raw wire traffic of chat connections for
// later inspection. Recording is best effort: a full queue drops entries
// rather than slowing down the connection.
package audit

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Direction of a recorded wire message.
const (
	DirInbound  = "in"
	DirOutbound = "out"
)

// Entry is one wire message on a connection.
type Entry struct {
	ConnID    string
	Direction string
	Payload   []byte
	At        time.Time
}

// Recorder accepts wire messages for persistence.
type Recorder interface {
	Record(connID, direction string, payload []byte)
	Close() error
}

// Noop returns a Recorder that discards everything.
func Noop() Recorder { return noopRecorder{} }

type noopRecorder struct{}

func (noopRecorder) Record(string, string, []byte) {}
func (noopRecorder) Close() error                  { return nil }

// Log is a SQLite-backed Recorder. Entries go through a buffered channel
// and are written by a single goroutine so Record never blocks the caller.
type Log struct {
	db     *sql.DB
	queue  chan Entry
	done   chan struct{}
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewLog opens (or creates) the audit database at dbPath.
func NewLog(dbPath string, queueSize int, logger *slog.Logger) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	// WAL mode keeps the writer from blocking concurrent readers.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping audit database: %w", err)
	}

	schema := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS wire_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conn_id TEXT NOT NULL,
		direction TEXT NOT NULL,
		payload BLOB NOT NULL,
		recorded_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_wire_messages_conn ON wire_messages(conn_id, recorded_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create audit schema: %w", err)
	}

	if queueSize <= 0 {
		queueSize = 1024
	}
	l := &Log{
		db:     db,
		queue:  make(chan Entry, queueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.drain()
	return l, nil
}

// Record queues one wire message. Messages are dropped when the queue is
// full or the log is closed.
func (l *Log) Record(connID, direction string, payload []byte) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	entry := Entry{
		ConnID:    connID,
		Direction: direction,
		Payload:   append([]byte(nil), payload...),
		At:        time.Now(),
	}
	select {
	case l.queue <- entry:
	default:
		l.logger.Warn("Audit queue full, dropping entry", "conn_id", connID, "direction", direction)
	}
}

func (l *Log) drain() {
	defer close(l.done)
	for entry := range l.queue {
		_, err := l.db.Exec(
			`INSERT INTO wire_messages (conn_id, direction, payload, recorded_at) VALUES (?, ?, ?, ?)`,
			entry.ConnID, entry.Direction, entry.Payload, entry.At.Unix(),
		)
		if err != nil {
			l.logger.Warn("Failed to record wire message", "conn_id", entry.ConnID, "error", err)
		}
	}
}

// Close stops accepting entries, flushes the queue, and closes the database.
func (l *Log) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.queue)
	<-l.done

	if err := l.db.Close(); err != nil {
		return fmt.Errorf("close audit database: %w", err)
	}
	return nil
}
