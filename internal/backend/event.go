// Package backend drives the external conversational agent and decodes its
// newline-delimited JSON event stream.
package backend

import (
	"bytes"
	"encoding/json"
	"errors"
)

var errMissingType = errors.New("backend: event has no type")

// Event is one decoded line of the agent's stream-json output. The agent is
// the sole producer; fields not present on a given event type stay zero.
type Event struct {
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Message   *Message        `json:"message,omitempty"`
	Result    string          `json:"result,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
	Errors    []string        `json:"errors,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
}

// Message holds the ordered content blocks of an assistant or user event.
type Message struct {
	Role    string         `json:"role,omitempty"`
	Content []ContentBlock `json:"content"`
}

// UnmarshalJSON accepts both forms the agent emits for message content:
// a plain string or a list of content blocks.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role

	content := bytes.TrimSpace(raw.Content)
	if len(content) == 0 || bytes.Equal(content, []byte("null")) {
		return nil
	}
	if content[0] == '"' {
		var s string
		if err := json.Unmarshal(content, &s); err != nil {
			return err
		}
		m.Content = []ContentBlock{{Type: "text", Text: s}}
		return nil
	}
	return json.Unmarshal(content, &m.Content)
}

// ContentBlock is one sub-unit of a backend message: a text span, a tool
// invocation, a tool result, or a reasoning fragment. Which fields are set
// depends on Type.
type ContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     map[string]any  `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	IsError   *bool           `json:"is_error,omitempty"`
}

// Decode parses one stream line into an Event.
func Decode(line []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return nil, err
	}
	if ev.Type == "" {
		return nil, errMissingType
	}
	return &ev, nil
}
