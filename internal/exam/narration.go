package exam

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/pavelanni/examreader/internal/i18n"
)

func instructionsText(ctx context.Context, total int) string {
	return i18n.Tp(ctx, "Instructions", total, nil)
}

// questionText narrates the current question and its options. Slower only
// changes the surrounding wording; audio pacing is up to the synthesizer.
func (s *Session) questionText(ctx context.Context, slower bool) string {
	if len(s.questions) == 0 {
		return ""
	}
	q := s.questions[s.cursor]
	pos := map[string]any{"Number": s.cursor + 1, "Total": len(s.questions)}

	var parts []string
	if slower {
		parts = append(parts, i18n.T(ctx, "ReadingSlowly"))
	}
	parts = append(parts, i18n.Td(ctx, "QuestionHeader", pos), q.Text)
	if len(q.Options) > 0 {
		parts = append(parts, i18n.T(ctx, "OptionsIntro"))
		for _, o := range q.Options {
			parts = append(parts, fmt.Sprintf("%s: %s.", strings.TrimRight(o.Label, ").:"), strings.TrimRight(o.Text, ".")))
		}
	}
	if slower {
		parts = append(parts, i18n.Td(ctx, "QuestionPromptSlow", pos))
	} else {
		parts = append(parts, i18n.Td(ctx, "QuestionPrompt", pos))
	}
	return join(parts...)
}

func join(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// percent returns part/total*100 rounded to one decimal, 0 for an empty total.
func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(part) / float64(total) * 100)
}

// minutes returns the span in minutes rounded to one decimal, 0 if either end is unset.
func minutes(from, to time.Time) float64 {
	if from.IsZero() || to.IsZero() {
		return 0
	}
	return round1(to.Sub(from).Minutes())
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
