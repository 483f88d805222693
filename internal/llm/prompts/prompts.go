package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/examreader/internal/model"
)

// DefaultMaxChars is the exam text prefix sent for extraction.
const DefaultMaxChars = 4000

const maxUtteranceRunes = 500

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	utteranceTagRegex = regexp.MustCompile(`(?i)</?\s*utterance\b[^>]*>`)
	examTextTagRegex  = regexp.MustCompile(`(?i)</?\s*exam-text\b[^>]*>`)
)

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[string]*template.Template
)

// ExtractData holds template data for question extraction prompts.
type ExtractData struct {
	Text      string
	Truncated bool
}

// CommandData holds template data for command interpretation prompts.
type CommandData struct {
	Utterance string
	Phase     model.Phase
	Position  int
	Total     int
}

func load() error {
	loadOnce.Do(func() {
		templates = make(map[string]*template.Template)
		for _, name := range []string{"extract", "extract_system", "command", "command_system"} {
			file := "templates/" + name + ".tmpl"
			content, err := templateFS.ReadFile(file)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + file + ": " + err.Error())
				return
			}
			tmpl, err := template.New(name).Parse(string(content))
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + file + ": " + err.Error())
				return
			}
			templates[name] = tmpl
		}
	})
	return loadErr
}

func render(name string, data any) (string, error) {
	if err := load(); err != nil {
		return "", fmt.Errorf("templates load failed: %w", err)
	}
	tmpl, ok := templates[name]
	if !ok {
		return "", errors.New("unknown prompt template: " + name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// BuildExtractPrompt returns the system and user prompts for question extraction.
// Only the first maxChars runes of text are included.
func BuildExtractPrompt(text string, maxChars int) (system, user string, err error) {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	text = examTextTagRegex.ReplaceAllString(text, "")
	truncated := false
	if utf8.RuneCountInString(text) > maxChars {
		text = string([]rune(text)[:maxChars])
		truncated = true
	}

	system, err = render("extract_system", nil)
	if err != nil {
		return "", "", err
	}
	user, err = render("extract", ExtractData{Text: text, Truncated: truncated})
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}

// BuildCommandPrompt returns the system and user prompts for command interpretation.
func BuildCommandPrompt(utterance string, cmdCtx model.CommandContext) (system, user string, err error) {
	system, err = render("command_system", nil)
	if err != nil {
		return "", "", err
	}
	user, err = render("command", CommandData{
		Utterance: sanitizeUtterance(utterance),
		Phase:     cmdCtx.Phase,
		Position:  cmdCtx.QuestionIndex + 1,
		Total:     cmdCtx.TotalQuestions,
	})
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}

func sanitizeUtterance(s string) string {
	s = utteranceTagRegex.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if s == "" {
		return "[silence]"
	}
	if utf8.RuneCountInString(s) > maxUtteranceRunes {
		s = string([]rune(s)[:maxUtteranceRunes])
	}
	return s
}
