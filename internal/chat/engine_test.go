package chat

import (
	"encoding/json"
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare_json", `{"intent":"ask_question"}`, `{"intent":"ask_question"}`},
		{"json_fence", "```json\n{\"intent\":\"edit_summary\"}\n```", `{"intent":"edit_summary"}`},
		{"plain_fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding_whitespace", "  \n```json\n{}\n```\n ", "{}"},
		{"no_fence_kept_as_is", "hello world", "hello world"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := stripCodeFence(tt.in); got != tt.want {
				t.Errorf("stripCodeFence(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIntentDecisionDecoding(t *testing.T) {
	raw := "```json\n{\"intent\":\"edit_summary\",\"entity\":\"topic\",\"confidence\":0.92,\"edit_instruction\":\"shorten it\"}\n```"

	var d intentDecision
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Intent != "edit_summary" || d.Entity != "topic" {
		t.Errorf("decoded %+v, want intent=edit_summary entity=topic", d)
	}
	if d.EditInstruction != "shorten it" {
		t.Errorf("EditInstruction = %q, want %q", d.EditInstruction, "shorten it")
	}
}

func TestUpdatePattern(t *testing.T) {
	t.Run("matches_update_reply", func(t *testing.T) {
		m := updatePattern.FindStringSubmatch("[UPDATE:topic] Noi dung moi\nnhieu dong")
		if m == nil {
			t.Fatal("expected match")
		}
		if m[1] != "topic" {
			t.Errorf("entity = %q, want %q", m[1], "topic")
		}
		if m[2] != "Noi dung moi\nnhieu dong" {
			t.Errorf("content = %q", m[2])
		}
	})

	t.Run("plain_reply_no_match", func(t *testing.T) {
		if m := updatePattern.FindStringSubmatch("Đây là câu trả lời thường."); m != nil {
			t.Errorf("expected no match, got %v", m)
		}
	})

	t.Run("update_must_lead", func(t *testing.T) {
		if m := updatePattern.FindStringSubmatch("intro [UPDATE:topic] x"); m != nil {
			t.Errorf("expected no match mid-string, got %v", m)
		}
	})
}
