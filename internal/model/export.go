package model

import "time"

// Unanswered marks a sheet entry for a question with no recorded answer.
const Unanswered = "unanswered"

// Answered marks a sheet entry with a recorded answer.
const Answered = "answered"

// AnswerSheet is the final per-question report of an exam session.
type AnswerSheet struct {
	SessionID            string       `json:"session_id"`
	ExamTitle            string       `json:"exam_title"`
	StartedAt            *time.Time   `json:"started_at,omitempty"`
	CompletedAt          *time.Time   `json:"completed_at,omitempty"`
	DurationMinutes      float64      `json:"duration_minutes"`
	TotalQuestions       int          `json:"total_questions"`
	AnsweredCount        int          `json:"answered_count"`
	CompletionPercentage float64      `json:"completion_percentage"`
	Answers              []SheetEntry `json:"answers"`
}

// SheetEntry pairs one question with its recorded answer.
type SheetEntry struct {
	QuestionNumber int        `json:"question_number"`
	Label          string     `json:"label"`
	QuestionText   string     `json:"question_text"`
	Options        []Option   `json:"options"`
	Answer         string     `json:"answer"`
	Status         string     `json:"status"`
	AnsweredAt     *time.Time `json:"answered_at,omitempty"`
}

// SheetSummary is a listing row for a stored answer sheet.
type SheetSummary struct {
	SessionID            string     `json:"session_id"`
	ExamTitle            string     `json:"exam_title"`
	TotalQuestions       int        `json:"total_questions"`
	AnsweredCount        int        `json:"answered_count"`
	CompletionPercentage float64    `json:"completion_percentage"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	WrittenAt            time.Time  `json:"written_at"`
}

// SheetExport is the top-level JSON structure for answer sheet export.
type SheetExport struct {
	ExportedAt time.Time     `json:"exported_at"`
	Count      int           `json:"count"`
	Sheets     []AnswerSheet `json:"sheets"`
}
