package llm

import (
	"encoding/json"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"plain object", `{"action":"next_question"}`, `{"action":"next_question"}`, true},
		{"plain array", ` [1, 2, 3] `, `[1, 2, 3]`, true},
		{"fenced json", "Here you go:\n```json\n{\"a\": 1}\n```\nthanks", `{"a": 1}`, true},
		{"fenced no info string", "```\n[\"x\"]\n```", `["x"]`, true},
		{"prose around object", `Sure! The result is {"action": "repeat_question", "confidence": 0.9} hope it helps`, `{"action": "repeat_question", "confidence": 0.9}`, true},
		{"braces inside strings", `noise {"text": "a } b"} tail`, `{"text": "a } b"}`, true},
		{"first candidate broken", `oops { not json } then [1]`, `[1]`, true},
		{"garbage fence, json outside", "{\"ok\": true}\n```\nnot json\n```", `{"ok": true}`, true},
		{"no json", "I could not find any questions.", "", false},
		{"empty", "   ", "", false},
		{"truncated", `{"action": "next`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.raw)
			if ok != tt.ok {
				t.Fatalf("ExtractJSON() ok = %v, want %v (got %s)", ok, tt.ok, got)
			}
			if !ok {
				return
			}
			if string(got) != tt.want {
				t.Errorf("ExtractJSON() = %s, want %s", got, tt.want)
			}
			if !json.Valid(got) {
				t.Errorf("ExtractJSON() returned invalid JSON: %s", got)
			}
		})
	}
}
