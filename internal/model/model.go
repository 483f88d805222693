package model

import (
	"regexp"
	"strings"
	"time"
)

// Option is one lettered choice of a multiple-choice question.
type Option struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Question is a single exam question as extracted from the source text.
// Number is the display label taken from the document; it is not guaranteed
// to be unique or sequential.
type Question struct {
	Number  string   `json:"number"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Phase is the stage of an exam session.
type Phase string

const (
	PhaseNotStarted      Phase = "not_started"
	PhaseInstructions    Phase = "instructions"
	PhaseReadingQuestion Phase = "reading_question"
	PhaseAwaitingAnswer  Phase = "awaiting_answer"
	PhaseComplete        Phase = "complete"
)

// Started reports whether the phase is past the pre-exam stages.
func (p Phase) Started() bool {
	return p == PhaseReadingQuestion || p == PhaseAwaitingAnswer || p == PhaseComplete
}

// ActionKind identifies the user intent derived from an utterance.
type ActionKind string

const (
	ActionRepeat        ActionKind = "repeat"
	ActionReadyToAnswer ActionKind = "ready_to_answer"
	ActionNext          ActionKind = "next"
	ActionPrevious      ActionKind = "previous"
	ActionRecordAnswer  ActionKind = "record_answer"
	ActionEndOfExam     ActionKind = "end_of_exam"
	ActionStart         ActionKind = "start"
	ActionFinish        ActionKind = "finish"
	ActionInstructions  ActionKind = "instructions"
	ActionUnknown       ActionKind = "unknown"
)

// Action is the normalized, typed form of a spoken command.
type Action struct {
	Kind ActionKind `json:"kind"`
	// Slower is set for repeat requests asking for slower reading.
	Slower bool `json:"slower,omitempty"`
	// Value holds the normalized answer for record_answer.
	Value string `json:"value,omitempty"`
	// AtBoundary marks a previous request made on the first question.
	AtBoundary  bool    `json:"at_boundary,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
	Source      string  `json:"source,omitempty"`
	Explanation string  `json:"explanation,omitempty"`
}

// CommandContext is the exam position an utterance is interpreted against.
type CommandContext struct {
	QuestionIndex  int
	TotalQuestions int
	Phase          Phase
}

// AnswerRecord is a recorded answer for one question index.
type AnswerRecord struct {
	Value                string    `json:"value"`
	RecordedAt           time.Time `json:"recorded_at"`
	QuestionTextSnapshot string    `json:"question_text"`
}

// Status summarizes the progress of a live session.
type Status struct {
	SessionID            string  `json:"session_id"`
	ExamTitle            string  `json:"exam_title"`
	Phase                Phase   `json:"phase"`
	CurrentQuestion      int     `json:"current_question"`
	TotalQuestions       int     `json:"total_questions"`
	AnswersProvided      int     `json:"answers_provided"`
	ProgressPercentage   float64 `json:"progress_percentage"`
	CompletionPercentage float64 `json:"completion_percentage"`
	ElapsedMinutes       float64 `json:"elapsed_minutes"`
	Finished             bool    `json:"finished"`
}

var answerLetterRegex = regexp.MustCompile(`(?i)^(?:option\s+|answer\s+)?\(?([a-e])\)?[).]?$`)

// NormalizeAnswer uppercases single-letter answers ("b", "option B", "B.")
// and returns any other answer trimmed.
func NormalizeAnswer(v string) string {
	v = strings.TrimSpace(v)
	trimmed := strings.TrimRight(v, "!?,; ")
	if m := answerLetterRegex.FindStringSubmatch(trimmed); m != nil {
		return strings.ToUpper(m[1])
	}
	return v
}
