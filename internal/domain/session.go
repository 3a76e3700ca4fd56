// Package domain defines the persisted records shared across packages.
package domain

import (
	"encoding/json"
	"time"
)

// Session is one persisted conversation: the client-assigned id, a display
// name, the accumulated wire messages, and the agent-assigned session id
// used to resume the conversation later. Records are overwritten whole; the
// store never mutates them piecemeal.
type Session struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
	Messages     []json.RawMessage `json:"messages"`
	SDKSessionID string            `json:"sdkSessionId,omitempty"`
}

// Summary is the listing view of a session record.
type Summary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	MessageCount int       `json:"messageCount"`
}

// Summary derives the listing view from a full record.
func (s *Session) Summary() Summary {
	return Summary{
		ID:           s.ID,
		Name:         s.Name,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		MessageCount: len(s.Messages),
	}
}
