package exam

import (
	"time"

	"github.com/pavelanni/examreader/internal/model"
)

// Snapshot is the session state an answer sheet is built from.
type Snapshot struct {
	SessionID   string
	ExamTitle   string
	Questions   []model.Question
	Answers     map[int]model.AnswerRecord
	StartedAt   time.Time
	CompletedAt time.Time
}

// BuildAnswerSheet pairs every question with its latest answer. It does not
// modify the snapshot and returns the same sheet for the same input.
func BuildAnswerSheet(snap Snapshot) model.AnswerSheet {
	sheet := model.AnswerSheet{
		SessionID:      snap.SessionID,
		ExamTitle:      snap.ExamTitle,
		StartedAt:      timePtr(snap.StartedAt),
		CompletedAt:    timePtr(snap.CompletedAt),
		TotalQuestions: len(snap.Questions),
		Answers:        make([]model.SheetEntry, 0, len(snap.Questions)),
	}

	for i, q := range snap.Questions {
		entry := model.SheetEntry{
			QuestionNumber: i + 1,
			Label:          q.Number,
			QuestionText:   q.Text,
			Options:        q.Options,
			Answer:         model.Unanswered,
			Status:         model.Unanswered,
		}
		if rec, ok := snap.Answers[i]; ok {
			entry.Answer = rec.Value
			entry.Status = model.Answered
			entry.AnsweredAt = timePtr(rec.RecordedAt)
			sheet.AnsweredCount++
		}
		sheet.Answers = append(sheet.Answers, entry)
	}

	sheet.CompletionPercentage = percent(sheet.AnsweredCount, sheet.TotalQuestions)
	sheet.DurationMinutes = minutes(snap.StartedAt, snap.CompletedAt)
	return sheet
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
