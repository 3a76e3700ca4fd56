package backend

import (
	"testing"
)

func TestDecode_AssistantEvent(t *testing.T) {
	ev, err := Decode([]byte(`{
		"type": "assistant",
		"session_id": "sdk-1",
		"message": {"role": "assistant", "content": [
			{"type": "text", "text": "hello"},
			{"type": "tool_use", "id": "tu_1", "name": "Bash", "input": {"command": "ls"}}
		]}
	}`))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if ev.Type != "assistant" || ev.SessionID != "sdk-1" {
		t.Errorf("Unexpected event header: %+v", ev)
	}
	if ev.Message == nil || len(ev.Message.Content) != 2 {
		t.Fatalf("Expected 2 content blocks, got %+v", ev.Message)
	}
	if ev.Message.Content[0].Text != "hello" {
		t.Errorf("Expected text block hello, got %+v", ev.Message.Content[0])
	}
	tu := ev.Message.Content[1]
	if tu.Name != "Bash" || tu.Input["command"] != "ls" {
		t.Errorf("Unexpected tool_use block: %+v", tu)
	}
}

func TestDecode_StringContent(t *testing.T) {
	ev, err := Decode([]byte(`{"type": "user", "message": {"role": "user", "content": "plain prompt"}}`))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(ev.Message.Content) != 1 {
		t.Fatalf("Expected string content normalized to one block, got %+v", ev.Message.Content)
	}
	block := ev.Message.Content[0]
	if block.Type != "text" || block.Text != "plain prompt" {
		t.Errorf("Unexpected block: %+v", block)
	}
}

func TestDecode_ResultEvent(t *testing.T) {
	ev, err := Decode([]byte(`{"type": "result", "subtype": "error_max_turns", "is_error": true, "errors": ["too many turns"]}`))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if !ev.IsError || ev.Subtype != "error_max_turns" {
		t.Errorf("Unexpected result event: %+v", ev)
	}
	if len(ev.Errors) != 1 || ev.Errors[0] != "too many turns" {
		t.Errorf("Unexpected errors: %v", ev.Errors)
	}
}

func TestDecode_Rejections(t *testing.T) {
	if _, err := Decode([]byte(`{"message": {}}`)); err == nil {
		t.Error("Expected error for event without type")
	}
	if _, err := Decode([]byte(`{nope`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}

func TestDecode_NullContent(t *testing.T) {
	ev, err := Decode([]byte(`{"type": "user", "message": {"role": "user", "content": null}}`))
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(ev.Message.Content) != 0 {
		t.Errorf("Expected no content blocks, got %+v", ev.Message.Content)
	}
}
