package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pavelanni/examreader/internal/llm"
	"github.com/pavelanni/examreader/internal/llm/prompts"
	"github.com/pavelanni/examreader/internal/model"
)

var errNoJSON = errors.New("no JSON object in model reply")

// Remote interprets utterances with the remote model. A single attempt is
// made; the completer bounds it with its timeout.
type Remote struct {
	llm llm.Completer
}

// NewRemote creates a remote interpreter.
func NewRemote(c llm.Completer) *Remote {
	return &Remote{llm: c}
}

type commandReply struct {
	Action      string    `json:"action"`
	AnswerValue string    `json:"answer_value"`
	Confidence  flexFloat `json:"confidence"`
	Explanation string    `json:"explanation"`
}

// flexFloat accepts 0.9 as well as "0.9". Anything else, such as "high",
// reads as 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		v = 0
	}
	*f = flexFloat(v)
	return nil
}

// Interpret returns an error on any remote or parse failure.
func (r *Remote) Interpret(ctx context.Context, utterance string, cmdCtx model.CommandContext) (model.Action, error) {
	system, user, err := prompts.BuildCommandPrompt(utterance, cmdCtx)
	if err != nil {
		return model.Action{}, fmt.Errorf("build command prompt: %w", err)
	}
	reply, err := r.llm.Complete(ctx, llm.Request{System: system, User: user, JSONObject: true, Temperature: 0.1})
	if err != nil {
		return model.Action{}, err
	}
	doc, ok := llm.ExtractJSON(reply)
	if !ok {
		return model.Action{}, errNoJSON
	}
	var cr commandReply
	if err := json.Unmarshal(doc, &cr); err != nil {
		return model.Action{}, fmt.Errorf("decode command reply: %w", err)
	}
	return applyBounds(toAction(cr, utterance), cmdCtx), nil
}

func toAction(cr commandReply, utterance string) model.Action {
	a := model.Action{
		Source:      SourceRemote,
		Confidence:  float64(cr.Confidence),
		Explanation: cr.Explanation,
	}
	switch strings.ToLower(strings.TrimSpace(cr.Action)) {
	case "repeat_question", "repeat":
		a.Kind = model.ActionRepeat
	case "repeat_slower":
		a.Kind, a.Slower = model.ActionRepeat, true
	case "ready_to_answer":
		a.Kind = model.ActionReadyToAnswer
	case "next_question", "next":
		a.Kind = model.ActionNext
	case "previous_question", "previous":
		a.Kind = model.ActionPrevious
	case "record_answer":
		a.Kind = model.ActionRecordAnswer
		a.Value = model.NormalizeAnswer(cr.AnswerValue)
		if a.Value == "" {
			lower := strings.ToLower(utterance)
			a.Value = model.NormalizeAnswer(extractAnswer(lower, utterance))
		}
	case "end_of_exam":
		a.Kind = model.ActionEndOfExam
	case "start_exam", "start":
		a.Kind = model.ActionStart
	case "finish_exam", "finish":
		a.Kind = model.ActionFinish
	default:
		a.Kind = model.ActionUnknown
	}
	return a
}
