package relay

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/oselz/agent-relay/internal/backend"
)

// Transform maps one backend event into zero or more client messages. It is
// pure and order-preserving: output follows the event's content block order,
// and the same event always produces the same output.
func Transform(ev *backend.Event) []Message {
	switch ev.Type {
	case "assistant":
		return transformAssistant(ev)
	case "user":
		return transformUser(ev)
	case "result":
		return transformResult(ev)
	case "system":
		// Session metadata, surfaced nowhere.
		return nil
	default:
		return transformUnknown(ev)
	}
}

func transformAssistant(ev *backend.Event) []Message {
	if ev.Message == nil {
		return nil
	}
	var out []Message
	for _, block := range ev.Message.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				out = append(out, Text{Content: block.Text})
			}
		case "tool_use":
			input := block.Input
			if input == nil {
				input = map[string]any{}
			}
			out = append(out, ToolUse{ID: block.ID, Name: block.Name, Input: input})
		case "thinking":
			if block.Thinking != "" {
				out = append(out, Thinking{Content: block.Thinking})
			}
		}
	}
	return out
}

func transformUser(ev *backend.Event) []Message {
	if ev.Message == nil {
		return nil
	}
	var out []Message
	for _, block := range ev.Message.Content {
		if block.Type != "tool_result" {
			continue
		}
		out = append(out, ToolResult{
			ToolUseID: block.ToolUseID,
			Content:   toolResultText(block.Content),
			IsError:   block.IsError != nil && *block.IsError,
		})
	}
	return out
}

// transformResult never re-emits the success payload: the final answer text
// was already delivered by the preceding assistant event, and repeating it
// would duplicate content in the UI. Failures surface as one error message
// per reported string.
func transformResult(ev *backend.Event) []Message {
	if !ev.IsError {
		return nil
	}
	var out []Message
	for _, e := range ev.Errors {
		if e != "" {
			out = append(out, Error{Err: e})
		}
	}
	if len(out) == 0 {
		msg := ev.Result
		if msg == "" {
			msg = ev.Subtype
		}
		if msg == "" {
			msg = "agent reported an error"
		}
		out = append(out, Error{Err: msg})
	}
	return out
}

// transformUnknown surfaces a generic content field as plain text when an
// event type is unrecognized; events without one produce nothing.
func transformUnknown(ev *backend.Event) []Message {
	content := bytes.TrimSpace(ev.Content)
	if len(content) == 0 || bytes.Equal(content, []byte("null")) {
		return nil
	}
	if content[0] == '"' {
		var s string
		if err := json.Unmarshal(content, &s); err == nil {
			return []Message{Text{Content: s}}
		}
	}
	return []Message{Text{Content: string(content)}}
}

// toolResultText flattens a tool_result payload to plain text: strings pass
// through verbatim, lists contribute their text sub-blocks joined by
// newline, anything else is kept in serialized form.
func toolResultText(raw json.RawMessage) string {
	content := bytes.TrimSpace(raw)
	if len(content) == 0 || bytes.Equal(content, []byte("null")) {
		return ""
	}
	if content[0] == '"' {
		var s string
		if err := json.Unmarshal(content, &s); err == nil {
			return s
		}
	}
	if content[0] == '[' {
		var blocks []backend.ContentBlock
		if err := json.Unmarshal(content, &blocks); err == nil {
			parts := make([]string, 0, len(blocks))
			for _, b := range blocks {
				if b.Type == "text" {
					parts = append(parts, b.Text)
				}
			}
			return strings.Join(parts, "\n")
		}
	}
	return string(content)
}
