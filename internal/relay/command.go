package relay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound command types.
const (
	CmdCreateSession = "create_session"
	CmdResumeSession = "resume_session"
	CmdSendMessage   = "send_message"
	CmdStop          = "stop"
)

// Command is one decoded inbound client command.
type Command struct {
	Type         string          `json:"type"`
	Prompt       string          `json:"prompt"`
	SDKSessionID string          `json:"sdkSessionId"`
	Options      *CommandOptions `json:"options"`
}

// CommandOptions carries per-session overrides supplied by the client.
type CommandOptions struct {
	Model        string   `json:"model"`
	SystemPrompt string   `json:"systemPrompt"`
	AllowedTools []string `json:"allowedTools"`
}

// ParseCommand decodes and validates one inbound payload. A payload carrying
// a prompt but no type is the legacy send_message form.
func ParseCommand(raw []byte) (*Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if cmd.Type == "" {
		if cmd.Prompt == "" {
			return nil, errors.New("missing 'type' field")
		}
		cmd.Type = CmdSendMessage
	}
	switch cmd.Type {
	case CmdCreateSession, CmdStop:
	case CmdResumeSession:
		if cmd.SDKSessionID == "" {
			return nil, errors.New("missing required field 'sdkSessionId'")
		}
	case CmdSendMessage:
		if cmd.Prompt == "" {
			return nil, errors.New("missing required field 'prompt'")
		}
	default:
		return nil, fmt.Errorf("unknown command type: %s", cmd.Type)
	}
	return &cmd, nil
}
