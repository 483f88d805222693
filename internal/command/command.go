// Package command interprets spoken exam commands.
package command

import (
	"context"
	"log/slog"

	"github.com/pavelanni/examreader/internal/model"
)

// Sources reported in Action.Source.
const (
	SourceRemote  = "remote"
	SourcePattern = "pattern"
)

// Interpreter maps an utterance to an Action given the exam position.
type Interpreter interface {
	Interpret(ctx context.Context, utterance string, cmdCtx model.CommandContext) (model.Action, error)
}

// Fallback tries Primary and falls back to Secondary when it fails.
// A nil Primary goes straight to Secondary.
type Fallback struct {
	Primary   Interpreter
	Secondary Interpreter
}

// Interpret never returns an error.
func (f Fallback) Interpret(ctx context.Context, utterance string, cmdCtx model.CommandContext) (model.Action, error) {
	if f.Primary != nil {
		a, err := f.Primary.Interpret(ctx, utterance, cmdCtx)
		if err == nil {
			return a, nil
		}
		slog.Warn("remote command interpretation failed, using patterns", "error", err)
	}
	if f.Secondary == nil {
		return model.Action{Kind: model.ActionUnknown}, nil
	}
	a, err := f.Secondary.Interpret(ctx, utterance, cmdCtx)
	if err != nil {
		slog.Error("command interpretation failed", "error", err)
		return model.Action{Kind: model.ActionUnknown}, nil
	}
	return a, nil
}

// applyBounds turns next on the last question into end-of-exam and marks
// previous on the first question.
func applyBounds(a model.Action, c model.CommandContext) model.Action {
	switch a.Kind {
	case model.ActionNext:
		if c.TotalQuestions > 0 && c.QuestionIndex >= c.TotalQuestions-1 {
			a.Kind = model.ActionEndOfExam
		}
	case model.ActionPrevious:
		if c.QuestionIndex <= 0 {
			a.AtBoundary = true
		}
	}
	return a
}
