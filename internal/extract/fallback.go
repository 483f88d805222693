package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pavelanni/examreader/internal/model"
)

const minQuestionRunes = 10

// Question markers, tried in order. The first one producing a kept question wins.
var questionMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^[ \t]*Question[ \t]*(\d+)[ \t]*[.):]?[ \t]*`),
	regexp.MustCompile(`(?im)^[ \t]*Q\.?[ \t]*(\d+)[ \t]*[.):]?[ \t]*`),
	regexp.MustCompile(`(?m)^[ \t]*(\d+)[ \t]*[.)][ \t]+`),
}

// inlineOptionRegex finds " B) " style labels inside a line.
var inlineOptionRegex = regexp.MustCompile(`[ \t]+([A-E]\))[ \t]+`)

type optionVariant struct {
	re *regexp.Regexp
	// sequential requires labels to run A, B, C... with at least two options.
	sequential bool
}

var optionVariants = []optionVariant{
	{re: regexp.MustCompile(`^[ \t]*([A-E])[\).][ \t]*(.+)$`)},
	{re: regexp.MustCompile(`^[ \t]*\(([A-E])\)[ \t]*(.+)$`)},
	{re: regexp.MustCompile(`^[ \t]*([a-e])[\).][ \t]*(.+)$`)},
	{re: regexp.MustCompile(`^[ \t]*([A-E])[ \t]+(.+)$`), sequential: true},
}

// ParseFallback splits text on question-number markers and pulls lettered
// options out of each block.
func ParseFallback(text string) []model.Question {
	text = normalizeNewlines(text)
	for _, marker := range questionMarkers {
		matches := marker.FindAllStringSubmatchIndex(text, -1)
		if len(matches) == 0 {
			continue
		}
		var questions []model.Question
		for i, m := range matches {
			end := len(text)
			if i+1 < len(matches) {
				end = matches[i+1][0]
			}
			number := text[m[2]:m[3]]
			if q, ok := parseBlock(number, text[m[1]:end]); ok {
				questions = append(questions, q)
			}
		}
		if len(questions) > 0 {
			return questions
		}
	}
	return nil
}

func parseBlock(number, block string) (model.Question, bool) {
	lines := strings.Split(splitInlineOptions(block), "\n")

	body, options := lines, []model.Option{}
	for _, v := range optionVariants {
		b, opts := extractOptions(lines, v)
		if len(opts) == 0 {
			continue
		}
		if v.sequential && !sequentialFromA(opts) {
			continue
		}
		body, options = b, opts
		break
	}

	text := collapseSpace(strings.Join(body, " "))
	if utf8.RuneCountInString(text) < minQuestionRunes {
		return model.Question{}, false
	}
	return model.Question{Number: number, Text: text, Options: options}, true
}

// splitInlineOptions moves "Q? A) x B) y" options onto their own lines.
// A single inline label is left alone since it is more likely prose.
func splitInlineOptions(block string) string {
	lines := strings.Split(block, "\n")
	for i, line := range lines {
		if len(inlineOptionRegex.FindAllStringIndex(line, -1)) >= 2 {
			lines[i] = inlineOptionRegex.ReplaceAllString(line, "\n$1 ")
		}
	}
	return strings.Join(lines, "\n")
}

// extractOptions returns the body lines before the first option line and the
// options. Lines following an option continue it until a blank line.
func extractOptions(lines []string, v optionVariant) ([]string, []model.Option) {
	var body []string
	var options []model.Option
	continuing := false
	for _, line := range lines {
		if m := v.re.FindStringSubmatch(line); m != nil {
			options = append(options, model.Option{
				Label: strings.ToUpper(m[1]) + ")",
				Text:  collapseSpace(m[2]),
			})
			continuing = true
			continue
		}
		if len(options) == 0 {
			body = append(body, line)
			continue
		}
		if strings.TrimSpace(line) == "" {
			continuing = false
			continue
		}
		if continuing {
			last := &options[len(options)-1]
			last.Text = collapseSpace(last.Text + " " + line)
		}
	}
	return body, options
}

func sequentialFromA(opts []model.Option) bool {
	if len(opts) < 2 {
		return false
	}
	for i, o := range opts {
		if o.Label != string(rune('A'+i))+")" {
			return false
		}
	}
	return true
}

// Loose heuristic: a number, one line of question text, then a run of
// lettered option lines.
var (
	looseQuestionRegex = regexp.MustCompile(`(?m)^[ \t]*(\d+)[.):]?[ \t]*([^\n]+)\n((?:[ \t]*[A-E][\).]?[ \t]+[^\n]+(?:\n|$))+)`)
	looseOptionRegex   = regexp.MustCompile(`(?m)^[ \t]*([A-E])[\).]?[ \t]+([^\n]+)$`)
)

// ParseLoose scans the whole document with a single pattern. It is the last
// resort when ParseFallback finds nothing.
func ParseLoose(text string) []model.Question {
	text = normalizeNewlines(text)
	var questions []model.Question
	for _, m := range looseQuestionRegex.FindAllStringSubmatch(text, -1) {
		body := collapseSpace(m[2])
		if utf8.RuneCountInString(body) < minQuestionRunes {
			continue
		}
		q := model.Question{Number: m[1], Text: body, Options: []model.Option{}}
		for _, om := range looseOptionRegex.FindAllStringSubmatch(m[3], -1) {
			q.Options = append(q.Options, model.Option{Label: om[1] + ")", Text: collapseSpace(om[2])})
		}
		questions = append(questions, q)
	}
	return questions
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.ReplaceAll(s, "\f", "\n")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
