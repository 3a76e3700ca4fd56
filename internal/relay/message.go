// Package relay implements the session-oriented streaming core: it owns
// logical agent sessions, drives turns against the backend, transforms the
// backend's event stream into the client wire protocol, and dispatches
// inbound client commands per connection.
package relay

import "encoding/json"

// Message is one client-facing wire message, serialized as a single JSON
// object with a "type" discriminant. The variant set is closed so dispatch
// over it stays exhaustive.
type Message interface {
	messageType() string
}

// MessageType returns the wire discriminant of a message.
func MessageType(m Message) string { return m.messageType() }

// Encode serializes a message to its wire form.
func Encode(m Message) ([]byte, error) { return json.Marshal(m) }

// Text carries one assistant text span.
type Text struct {
	Content string `json:"content"`
}

// ToolUse announces a tool invocation by the agent.
type ToolUse struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResult carries the outcome of a prior tool invocation.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error"`
}

// Thinking carries one reasoning fragment.
type Thinking struct {
	Content string `json:"content"`
}

// Error reports a failure to the client. Inside a turn it is the turn's
// terminal message.
type Error struct {
	Err string `json:"error"`
}

// Start opens a turn. SessionID is the agent-assigned session id when
// already known.
type Start struct {
	SessionID string `json:"session_id,omitempty"`
}

// End closes a turn normally.
type End struct {
	StopReason string `json:"stop_reason,omitempty"`
}

// UserEcho is the echo of a submitted prompt. The server never emits it
// inside a turn; clients construct it for their local log and persistence.
type UserEcho struct {
	Content string `json:"content"`
}

// SessionCreated announces the agent session id of a freshly created
// session the moment it first becomes known.
type SessionCreated struct {
	SDKSessionID string `json:"sdkSessionId"`
}

// SessionResumed acknowledges a resumed session.
type SessionResumed struct {
	SDKSessionID string `json:"sdkSessionId"`
}

func (Text) messageType() string           { return "text" }
func (ToolUse) messageType() string        { return "tool_use" }
func (ToolResult) messageType() string     { return "tool_result" }
func (Thinking) messageType() string       { return "thinking" }
func (Error) messageType() string          { return "error" }
func (Start) messageType() string          { return "start" }
func (End) messageType() string            { return "end" }
func (UserEcho) messageType() string       { return "user" }
func (SessionCreated) messageType() string { return "session_created" }
func (SessionResumed) messageType() string { return "session_resumed" }

// Each variant marshals through a local alias so the discriminant is added
// without recursing into MarshalJSON.

func (m Text) MarshalJSON() ([]byte, error) {
	type alias Text
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{m.messageType(), alias(m)})
}

func (m ToolUse) MarshalJSON() ([]byte, error) {
	type alias ToolUse
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{m.messageType(), alias(m)})
}

func (m ToolResult) MarshalJSON() ([]byte, error) {
	type alias ToolResult
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{m.messageType(), alias(m)})
}

func (m Thinking) MarshalJSON() ([]byte, error) {
	type alias Thinking
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{m.messageType(), alias(m)})
}

func (m Error) MarshalJSON() ([]byte, error) {
	type alias Error
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{m.messageType(), alias(m)})
}

func (m Start) MarshalJSON() ([]byte, error) {
	type alias Start
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{m.messageType(), alias(m)})
}

func (m End) MarshalJSON() ([]byte, error) {
	type alias End
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{m.messageType(), alias(m)})
}

func (m UserEcho) MarshalJSON() ([]byte, error) {
	type alias UserEcho
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{m.messageType(), alias(m)})
}

func (m SessionCreated) MarshalJSON() ([]byte, error) {
	type alias SessionCreated
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{m.messageType(), alias(m)})
}

func (m SessionResumed) MarshalJSON() ([]byte, error) {
	type alias SessionResumed
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{m.messageType(), alias(m)})
}
