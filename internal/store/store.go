// Package store provides session-record persistence interfaces and
// implementations.
package store

import (
	"context"
	"errors"

	"github.com/oselz/agent-relay/internal/domain"
)

// ErrNotFound reports a session id with no stored record.
var ErrNotFound = errors.New("store: session not found")

// Repository defines the interface for persisting session records. Writes
// are whole-record overwrites keyed by session id; concurrent writers to the
// same id are not coordinated (last write wins).
type Repository interface {
	// List returns summaries of all sessions, newest update first.
	List(ctx context.Context) ([]domain.Summary, error)

	// Get retrieves a session by id, or ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Put stores a session under id, overwriting any prior record. A payload
	// whose own id disagrees with the key is rejected.
	Put(ctx context.Context, id string, sess *domain.Session) error

	// Delete removes a session, reporting whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
}
