package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/oselz/agent-relay/internal/domain"
)

const maxKeyLength = 128

var (
	errEmptyID    = errors.New("store: empty session id")
	errIDMismatch = errors.New("store: payload id does not match key")

	unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// FileStore implements Repository with one JSON file per session under a
// directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// sanitizeKey reduces a session id to a filename-safe identifier before it
// touches the filesystem.
func sanitizeKey(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errEmptyID
	}
	key := unsafeKeyChars.ReplaceAllString(id, "_")
	key = strings.Trim(key, ".")
	if key == "" {
		return "", errEmptyID
	}
	if len(key) > maxKeyLength {
		key = key[:maxKeyLength]
	}
	return key, nil
}

func (s *FileStore) path(id string) (string, error) {
	key, err := sanitizeKey(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, key+".json"), nil
}

// List returns summaries of all stored sessions sorted by UpdatedAt
// descending. Unreadable files are skipped with a warning rather than
// failing the whole listing.
func (s *FileStore) List(ctx context.Context) ([]domain.Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read session directory: %w", err)
	}
	summaries := make([]domain.Summary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			slog.Warn("Skipping unreadable session file", "file", entry.Name(), "error", err)
			continue
		}
		var sess domain.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			slog.Warn("Skipping corrupt session file", "file", entry.Name(), "error", err)
			continue
		}
		summaries = append(summaries, sess.Summary())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})
	return summaries, nil
}

// Get retrieves a session record by id.
func (s *FileStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}
	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

// Put overwrites the record stored under id. The write goes through a temp
// file and rename so a crash never leaves a half-written record behind.
func (s *FileStore) Put(ctx context.Context, id string, sess *domain.Session) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if sess.ID != "" && sess.ID != id {
		return errIDMismatch
	}
	record := *sess
	record.ID = id

	data, err := json.MarshalIndent(&record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session %s: %w", id, err)
	}
	tmp, err := os.CreateTemp(s.dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write session %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("store session %s: %w", id, err)
	}
	return nil
}

// Delete removes a session record, reporting whether it existed.
func (s *FileStore) Delete(ctx context.Context, id string) (bool, error) {
	path, err := s.path(id)
	if err != nil {
		return false, err
	}
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete session %s: %w", id, err)
	}
	return true, nil
}
