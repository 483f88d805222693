// Package extract turns raw exam text into structured questions.
//
// Extraction degrades through three tiers: the remote model, a line-based
// pattern parser, and a loose whole-document heuristic. Callers always get a
// list back, possibly empty.
package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pavelanni/examreader/internal/llm"
	"github.com/pavelanni/examreader/internal/llm/prompts"
	"github.com/pavelanni/examreader/internal/model"
)

// Tier names reported in logs and by Result.
const (
	TierRemote   = "remote"
	TierFallback = "fallback"
	TierLoose    = "loose"
	TierNone     = "none"
)

// Extractor extracts questions from exam text.
type Extractor struct {
	llm      llm.Completer
	maxChars int
}

// Result is the outcome of one extraction.
type Result struct {
	Questions []model.Question
	Tier      string
}

// New creates an extractor. A nil completer disables the remote tier.
func New(c llm.Completer, maxChars int) *Extractor {
	if maxChars <= 0 {
		maxChars = prompts.DefaultMaxChars
	}
	return &Extractor{llm: c, maxChars: maxChars}
}

// Extract returns the questions found in raw. It never fails; an empty
// slice means no tier found anything.
func (e *Extractor) Extract(ctx context.Context, raw string) []model.Question {
	return e.ExtractWithTier(ctx, raw).Questions
}

// ExtractWithTier is Extract that also reports which tier produced the result.
func (e *Extractor) ExtractWithTier(ctx context.Context, raw string) Result {
	if strings.TrimSpace(raw) == "" {
		return Result{Tier: TierNone}
	}

	if e.llm != nil {
		qs, err := e.remote(ctx, raw)
		switch {
		case err != nil:
			slog.Warn("remote question extraction failed, using fallback parser", "error", err)
		case len(qs) == 0:
			slog.Info("remote model returned no questions, using fallback parser")
		default:
			slog.Info("questions extracted", "tier", TierRemote, "count", len(qs))
			return Result{Questions: qs, Tier: TierRemote}
		}
	}

	if qs := ParseFallback(raw); len(qs) > 0 {
		slog.Info("questions extracted", "tier", TierFallback, "count", len(qs))
		return Result{Questions: qs, Tier: TierFallback}
	}
	if qs := ParseLoose(raw); len(qs) > 0 {
		slog.Info("questions extracted", "tier", TierLoose, "count", len(qs))
		return Result{Questions: qs, Tier: TierLoose}
	}
	slog.Warn("no questions found in exam text", "chars", len(raw))
	return Result{Tier: TierNone}
}
