package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/oselz/agent-relay/internal/domain"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}

func testSession(id, name string, updated time.Time) *domain.Session {
	return &domain.Session{
		ID:        id,
		Name:      name,
		CreatedAt: updated.Add(-time.Hour),
		UpdatedAt: updated,
		Messages: []json.RawMessage{
			json.RawMessage(`{"type":"user","content":"hi"}`),
			json.RawMessage(`{"type":"text","content":"hello"}`),
		},
		SDKSessionID: "sdk-" + id,
	}
}

func TestFileStore_PutGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if err := s.Put(ctx, "chat-1", testSession("chat-1", "First chat", now)); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}

	got, err := s.Get(ctx, "chat-1")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if got.Name != "First chat" || got.SDKSessionID != "sdk-chat-1" {
		t.Errorf("Unexpected record: %+v", got)
	}
	if len(got.Messages) != 2 {
		t.Errorf("Expected 2 messages, got %d", len(got.Messages))
	}
	if !got.UpdatedAt.Equal(now) {
		t.Errorf("Expected updatedAt %v, got %v", now, got.UpdatedAt)
	}
}

func TestFileStore_PutOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	if err := s.Put(ctx, "chat-1", testSession("chat-1", "old name", now)); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}
	updated := testSession("chat-1", "new name", now.Add(time.Minute))
	updated.Messages = append(updated.Messages, json.RawMessage(`{"type":"end"}`))
	if err := s.Put(ctx, "chat-1", updated); err != nil {
		t.Fatalf("Failed to overwrite: %v", err)
	}

	got, err := s.Get(ctx, "chat-1")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if got.Name != "new name" || len(got.Messages) != 3 {
		t.Errorf("Expected whole-record overwrite, got %+v", got)
	}
}

func TestFileStore_GetNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFileStore_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "chat-1", testSession("chat-1", "x", time.Now())); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}

	existed, err := s.Delete(ctx, "chat-1")
	if err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if !existed {
		t.Error("Expected delete to report the record existed")
	}

	existed, err = s.Delete(ctx, "chat-1")
	if err != nil {
		t.Fatalf("Failed on second delete: %v", err)
	}
	if existed {
		t.Error("Expected second delete to report missing record")
	}

	if _, err := s.Get(ctx, "chat-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestFileStore_ListSortedByUpdatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"oldest", "middle", "newest"} {
		if err := s.Put(ctx, id, testSession(id, id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Failed to put %s: %v", id, err)
		}
	}

	summaries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("Expected 3 summaries, got %d", len(summaries))
	}
	want := []string{"newest", "middle", "oldest"}
	for i := range want {
		if summaries[i].ID != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], summaries[i].ID)
		}
	}
	if summaries[0].MessageCount != 2 {
		t.Errorf("Expected message count 2, got %d", summaries[0].MessageCount)
	}
}

func TestFileStore_ListSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	ctx := context.Background()

	if err := s.Put(ctx, "good", testSession("good", "ok", time.Now())); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}

	summaries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != "good" {
		t.Errorf("Expected only the valid record, got %+v", summaries)
	}
}

func TestFileStore_SanitizesKeys(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	ctx := context.Background()

	id := "../../../etc/passwd"
	sess := testSession("", "trap", time.Now())
	if err := s.Put(ctx, id, sess); err != nil {
		t.Fatalf("Failed to put: %v", err)
	}

	// The record stays inside the store directory under a safe name.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 file in store dir, got %d", len(entries))
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get via original id: %v", err)
	}
	if got.Name != "trap" {
		t.Errorf("Unexpected record: %+v", got)
	}
}

func TestFileStore_RejectsEmptyAndMismatchedIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "  ", testSession("", "x", time.Now())); err == nil {
		t.Error("Expected error for blank id")
	}
	if _, err := s.Get(ctx, ""); err == nil {
		t.Error("Expected error for empty id on get")
	}

	mismatch := testSession("other-id", "x", time.Now())
	if err := s.Put(ctx, "chat-1", mismatch); err == nil {
		t.Error("Expected error for payload id mismatch")
	}
}

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"simple", "simple"},
		{"With Spaces", "With_Spaces"},
		{"a/b\\c", "a_b_c"},
		{"dots.are.ok", "dots.are.ok"},
		{"UUID-1234-abcd", "UUID-1234-abcd"},
	}
	for _, tt := range tests {
		got, err := sanitizeKey(tt.in)
		if err != nil {
			t.Errorf("sanitizeKey(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("sanitizeKey(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}

	if _, err := sanitizeKey("..."); err == nil {
		t.Error("Expected error for dot-only id")
	}

	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	got, err := sanitizeKey(string(long))
	if err != nil {
		t.Fatalf("sanitizeKey failed on long id: %v", err)
	}
	if len(got) != maxKeyLength {
		t.Errorf("Expected key capped at %d, got %d", maxKeyLength, len(got))
	}
}
