package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/pavelanni/examreader/internal/llm"
	"github.com/pavelanni/examreader/internal/llm/prompts"
	"github.com/pavelanni/examreader/internal/model"
)

var stringOptionRegex = regexp.MustCompile(`^([A-Ea-e])[\)\.]?\s*(.*)`)

var errNoJSON = errors.New("no JSON found in model reply")

// remoteQuestion accepts the key spellings models commonly produce.
type remoteQuestion struct {
	QuestionNumber json.RawMessage   `json:"question_number"`
	Number         json.RawMessage   `json:"number"`
	QuestionText   string            `json:"question_text"`
	Question       string            `json:"question"`
	Text           string            `json:"text"`
	Options        []json.RawMessage `json:"options"`
}

type remoteOption struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

func (e *Extractor) remote(ctx context.Context, raw string) ([]model.Question, error) {
	system, user, err := prompts.BuildExtractPrompt(raw, e.maxChars)
	if err != nil {
		return nil, fmt.Errorf("build extract prompt: %w", err)
	}
	reply, err := e.llm.Complete(ctx, llm.Request{System: system, User: user, Temperature: 0.1})
	if err != nil {
		return nil, err
	}
	doc, ok := llm.ExtractJSON(reply)
	if !ok {
		slog.Debug("unparseable extraction reply", "reply", truncate(reply, 500))
		return nil, errNoJSON
	}
	return decodeQuestions(doc)
}

// decodeQuestions coerces a model reply into questions. Items that do not fit
// the expected shape are dropped individually.
func decodeQuestions(doc json.RawMessage) ([]model.Question, error) {
	doc = bytes.TrimSpace(doc)
	var items []json.RawMessage
	switch {
	case len(doc) > 0 && doc[0] == '[':
		if err := json.Unmarshal(doc, &items); err != nil {
			return nil, fmt.Errorf("decode question array: %w", err)
		}
	case len(doc) > 0 && doc[0] == '{':
		var wrapper struct {
			Questions []json.RawMessage `json:"questions"`
		}
		if err := json.Unmarshal(doc, &wrapper); err != nil {
			return nil, fmt.Errorf("decode question object: %w", err)
		}
		items = wrapper.Questions
		if items == nil {
			items = []json.RawMessage{doc}
		}
	default:
		return nil, errNoJSON
	}

	var questions []model.Question
	for idx, item := range items {
		q, ok := coerceQuestion(item, idx)
		if !ok {
			slog.Debug("dropping malformed question item", "index", idx)
			continue
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func coerceQuestion(item json.RawMessage, idx int) (model.Question, bool) {
	var rq remoteQuestion
	if err := json.Unmarshal(item, &rq); err != nil {
		return model.Question{}, false
	}
	text := firstNonEmpty(rq.QuestionText, rq.Question, rq.Text)
	if text == "" {
		return model.Question{}, false
	}

	number := numberString(rq.QuestionNumber)
	if number == "" {
		number = numberString(rq.Number)
	}
	if number == "" {
		number = strconv.Itoa(idx + 1)
	}

	q := model.Question{Number: number, Text: text, Options: []model.Option{}}
	for _, raw := range rq.Options {
		if opt, ok := coerceOption(raw); ok {
			q.Options = append(q.Options, opt)
		}
	}
	return q, true
}

func coerceOption(raw json.RawMessage) (model.Option, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		m := stringOptionRegex.FindStringSubmatch(strings.TrimSpace(s))
		if m == nil {
			return model.Option{}, false
		}
		return model.Option{Label: strings.ToUpper(m[1]) + ")", Text: strings.TrimSpace(m[2])}, true
	}

	var ro remoteOption
	if err := json.Unmarshal(raw, &ro); err != nil {
		return model.Option{}, false
	}
	text := strings.TrimSpace(ro.Text)
	if text == "" {
		return model.Option{}, false
	}
	return model.Option{Label: normalizeLabel(ro.Label), Text: text}, true
}

// normalizeLabel turns "a", "A." or "(A)" into "A)". Other labels are kept.
func normalizeLabel(label string) string {
	l := strings.Trim(strings.TrimSpace(label), "().")
	if len(l) == 1 {
		return strings.ToUpper(l) + ")"
	}
	return strings.TrimSpace(label)
}

// numberString accepts both JSON strings and numbers.
func numberString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
