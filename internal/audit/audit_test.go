package audit

import (
	"database/sql"
	"log/slog"
	"path/filepath"
	"testing"
)

func TestLog_RecordAndClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	log, err := NewLog(dbPath, 16, slog.Default())
	if err != nil {
		t.Fatalf("Failed to create audit log: %v", err)
	}

	log.Record("conn-1", DirInbound, []byte(`{"type":"send_message","prompt":"hi"}`))
	log.Record("conn-1", DirOutbound, []byte(`{"type":"text","content":"hello"}`))
	log.Record("conn-2", DirOutbound, []byte(`{"type":"end"}`))

	// Close drains the queue before returning.
	if err := log.Close(); err != nil {
		t.Fatalf("Failed to close audit log: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db.Close()

	var total int
	if err := db.QueryRow(`SELECT COUNT(*) FROM wire_messages`).Scan(&total); err != nil {
		t.Fatalf("Failed to count rows: %v", err)
	}
	if total != 3 {
		t.Errorf("Expected 3 recorded messages, got %d", total)
	}

	var direction string
	var payload []byte
	row := db.QueryRow(`SELECT direction, payload FROM wire_messages WHERE conn_id = ? ORDER BY id LIMIT 1`, "conn-1")
	if err := row.Scan(&direction, &payload); err != nil {
		t.Fatalf("Failed to scan row: %v", err)
	}
	if direction != DirInbound {
		t.Errorf("Expected direction %q, got %q", DirInbound, direction)
	}
	if string(payload) != `{"type":"send_message","prompt":"hi"}` {
		t.Errorf("Unexpected payload: %s", payload)
	}
}

func TestLog_RecordAfterClose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	log, err := NewLog(dbPath, 16, slog.Default())
	if err != nil {
		t.Fatalf("Failed to create audit log: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	// Must not panic or block.
	log.Record("conn-1", DirInbound, []byte("late"))

	if err := log.Close(); err != nil {
		t.Errorf("Expected second close to be a no-op, got %v", err)
	}
}

func TestNoop(t *testing.T) {
	rec := Noop()
	rec.Record("conn-1", DirOutbound, []byte("dropped"))
	if err := rec.Close(); err != nil {
		t.Errorf("Expected nil from noop close, got %v", err)
	}
}
