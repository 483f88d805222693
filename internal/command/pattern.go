package command

import (
	"context"
	"regexp"
	"strings"

	"github.com/pavelanni/examreader/internal/model"
)

// phrases matches when the utterance contains any of its entries, so
// inflected forms like "repeating" or "backwards" still count.
type phrases []string

func (p phrases) in(text string) bool {
	for _, ph := range p {
		if strings.Contains(text, ph) {
			return true
		}
	}
	return false
}

func words(ws ...string) *regexp.Regexp {
	return regexp.MustCompile(`\b(?:` + strings.Join(ws, "|") + `)\b`)
}

var (
	slowWords     = phrases{"slow"}
	repeatWords   = phrases{"repeat", "again"}
	readyPhrases  = phrases{"ready to answer", "ready answer", "answer now", "want to answer"}
	nextWords     = phrases{"next", "continue", "move on", "proceed"}
	previousWords = phrases{"previous", "back"}
	answerPhrases = phrases{"answer is", "my answer"}
	finishWords   = phrases{"finish", "submit", "end exam", "end the exam", "i am done", "i'm done"}

	// Single letters and short start words need word boundaries; "already"
	// must not read as "ready".
	optionWord = words(`option [a-e]`)
	startWords = words("start", "begin")
	readyWord  = words("ready")

	bareLetterRegex = regexp.MustCompile(`^[a-d]$`)
)

// Ordered answer extractors; the first match wins.
var answerExtractors = []*regexp.Regexp{
	regexp.MustCompile(`\boption ([a-e])\b`),
	regexp.MustCompile(`\banswer is ([a-e])\b`),
	regexp.MustCompile(`\b([a-d])\b`),
}

// Pattern interprets utterances with keyword rules. It is deterministic and
// never fails.
type Pattern struct{}

// Interpret applies the rules in fixed priority order; the first match wins.
func (Pattern) Interpret(_ context.Context, utterance string, cmdCtx model.CommandContext) (model.Action, error) {
	return applyBounds(match(utterance, cmdCtx.Phase), cmdCtx), nil
}

func match(utterance string, phase model.Phase) model.Action {
	text := strings.ToLower(strings.TrimSpace(utterance))
	bare := strings.TrimRight(text, ".!?, ")
	a := model.Action{Source: SourcePattern, Confidence: 1}

	switch {
	case repeatWords.in(text) && slowWords.in(text):
		a.Kind, a.Slower = model.ActionRepeat, true
	case repeatWords.in(text):
		a.Kind = model.ActionRepeat
	case readyPhrases.in(text):
		a.Kind = model.ActionReadyToAnswer
	case nextWords.in(text):
		a.Kind = model.ActionNext
	case previousWords.in(text):
		a.Kind = model.ActionPrevious
	case optionWord.MatchString(text), answerPhrases.in(text):
		a.Kind, a.Value = model.ActionRecordAnswer, extractAnswer(text, utterance)
	case bareLetterRegex.MatchString(bare):
		a.Kind, a.Value = model.ActionRecordAnswer, strings.ToUpper(bare)
	case startWords.MatchString(text), phase == model.PhaseNotStarted && readyWord.MatchString(text):
		a.Kind = model.ActionStart
	case finishWords.in(text):
		a.Kind = model.ActionFinish
	default:
		a.Kind, a.Confidence = model.ActionUnknown, 0
	}
	return a
}

// extractAnswer pulls a letter out of an answer phrase, or returns the
// trimmed utterance when there is none.
func extractAnswer(lower, original string) string {
	for _, re := range answerExtractors {
		if m := re.FindStringSubmatch(lower); m != nil {
			return strings.ToUpper(m[1])
		}
	}
	return strings.TrimSpace(original)
}
