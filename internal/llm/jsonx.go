package llm

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls the first JSON value out of a free-text model reply.
// It strips a fenced code block if present, tries the whole text, then scans
// for the first position where a complete array or object decodes.
// The returned bytes are always valid JSON when ok is true.
func ExtractJSON(raw string) (json.RawMessage, bool) {
	candidates := []string{stripFence(raw)}
	if candidates[0] != raw {
		candidates = append(candidates, raw)
	}
	for _, c := range candidates {
		if v, ok := salvage(strings.TrimSpace(c)); ok {
			return v, true
		}
	}
	return nil, false
}

func salvage(text string) (json.RawMessage, bool) {
	if text == "" {
		return nil, false
	}
	if json.Valid([]byte(text)) {
		return json.RawMessage(text), true
	}
	for i := 0; i < len(text); i++ {
		if text[i] != '[' && text[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		var v json.RawMessage
		if err := dec.Decode(&v); err == nil {
			return v, true
		}
	}
	return nil, false
}

func stripFence(s string) string {
	start := strings.Index(s, "```")
	if start < 0 {
		return s
	}
	rest := s[start+3:]
	// Drop the info string ("json", "JSON", ...) up to the end of the line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "[{") {
		rest = rest[nl+1:]
	} else {
		rest = strings.TrimPrefix(rest, "json")
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}
