// Package exam holds the exam session state machine, the answer sheet
// builder and the in-memory session store.
package exam

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/examreader/internal/i18n"
	"github.com/pavelanni/examreader/internal/model"
)

var (
	ErrNotStarted      = errors.New("exam not started")
	ErrFinished        = errors.New("exam already finished")
	ErrEmptyAnswer     = errors.New("empty answer")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionExists   = errors.New("session already exists")
)

// Effect is the result of applying an action: what to say and where the
// session ended up.
type Effect struct {
	Action    model.ActionKind    `json:"action"`
	Phase     model.Phase         `json:"phase"`
	Cursor    int                 `json:"cursor"`
	Narration string              `json:"narration"`
	Slower    bool                `json:"slower,omitempty"`
	Boundary  bool                `json:"boundary,omitempty"`
	Rejected  bool                `json:"rejected,omitempty"`
	Recorded  *model.AnswerRecord `json:"recorded,omitempty"`
	Sheet     *model.AnswerSheet  `json:"answer_sheet,omitempty"`
}

// Session is one exam attempt. All methods are safe for concurrent use;
// Apply calls on the same session are serialized.
type Session struct {
	mu        sync.Mutex
	id        string
	title     string
	questions []model.Question
	now       func() time.Time

	cursor      int
	answers     map[int]model.AnswerRecord
	phase       model.Phase
	startedAt   time.Time
	completedAt time.Time
	sheet       *model.AnswerSheet
}

// NewSession creates a session over a fixed question list. An empty id gets
// a fresh UUID; a nil clock uses time.Now.
func NewSession(id, title string, questions []model.Question, now func() time.Time) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	if now == nil {
		now = time.Now
	}
	qs := make([]model.Question, len(questions))
	copy(qs, questions)
	return &Session{
		id:        id,
		title:     title,
		questions: qs,
		now:       now,
		answers:   make(map[int]model.AnswerRecord),
		phase:     model.PhaseNotStarted,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Title returns the exam title.
func (s *Session) Title() string { return s.title }

// Questions returns a copy of the question list.
func (s *Session) Questions() []model.Question {
	qs := make([]model.Question, len(s.questions))
	copy(qs, s.questions)
	return qs
}

// CommandContext returns the position an utterance should be interpreted against.
func (s *Session) CommandContext() model.CommandContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CommandContext{QuestionIndex: s.cursor, TotalQuestions: len(s.questions), Phase: s.phase}
}

// Finished reports whether finish has produced the answer sheet.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sheet != nil
}

// Welcome returns the greeting spoken right after the exam is loaded.
func (s *Session) Welcome(ctx context.Context) string {
	return i18n.Tp(ctx, "ExamLoaded", len(s.questions), map[string]any{"Title": s.title})
}

// Instructions narrates how the exam works. Before the start it moves the
// session to the instructions phase; afterwards it only narrates.
func (s *Session) Instructions(ctx context.Context) Effect {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == model.PhaseNotStarted {
		s.phase = model.PhaseInstructions
	}
	text := instructionsText(ctx, len(s.questions))
	if !s.phase.Started() {
		text = join(text, i18n.T(ctx, "SayStartExam"))
	}
	return s.effect(model.ActionInstructions, text)
}

// Apply runs one action through the state machine. On an illegal transition
// it returns ErrNotStarted or ErrFinished together with an Effect carrying a
// spoken clarification; the session state is left unchanged.
func (s *Session) Apply(ctx context.Context, a model.Action) (Effect, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.Kind == model.ActionUnknown || a.Kind == "" {
		return s.effect(model.ActionUnknown, i18n.T(ctx, "Help")), nil
	}

	if s.sheet != nil {
		if a.Kind == model.ActionFinish {
			e := s.effect(a.Kind, i18n.T(ctx, "AlreadyFinished"))
			e.Sheet = s.sheet
			return e, nil
		}
		return s.reject(a.Kind, i18n.T(ctx, "AlreadyFinished")), ErrFinished
	}

	if len(s.questions) == 0 {
		return s.reject(a.Kind, i18n.T(ctx, "Help")), ErrNotStarted
	}

	if !s.phase.Started() {
		if a.Kind != model.ActionStart {
			return s.reject(a.Kind, i18n.T(ctx, "SayStartExam")), ErrNotStarted
		}
		return s.start(ctx), nil
	}

	switch a.Kind {
	case model.ActionStart:
		return s.effect(a.Kind, join(i18n.T(ctx, "AlreadyStarted"), s.questionText(ctx, false))), nil
	case model.ActionRepeat:
		e := s.effect(a.Kind, s.questionText(ctx, a.Slower))
		e.Slower = a.Slower
		return e, nil
	case model.ActionReadyToAnswer:
		s.phase = model.PhaseAwaitingAnswer
		return s.effect(a.Kind, i18n.T(ctx, "AnswerPrompt")), nil
	case model.ActionNext:
		if s.cursor >= len(s.questions)-1 {
			return s.endOfExam(ctx, a.Kind), nil
		}
		s.cursor++
		s.phase = model.PhaseReadingQuestion
		return s.effect(a.Kind, s.questionText(ctx, false)), nil
	case model.ActionPrevious:
		if s.cursor == 0 {
			e := s.effect(a.Kind, i18n.T(ctx, "FirstQuestion"))
			e.Boundary = true
			return e, nil
		}
		s.cursor--
		s.phase = model.PhaseReadingQuestion
		return s.effect(a.Kind, s.questionText(ctx, false)), nil
	case model.ActionRecordAnswer:
		return s.record(ctx, a)
	case model.ActionEndOfExam:
		return s.endOfExam(ctx, a.Kind), nil
	case model.ActionFinish:
		return s.finish(ctx), nil
	}
	return s.effect(model.ActionUnknown, i18n.T(ctx, "Help")), nil
}

func (s *Session) start(ctx context.Context) Effect {
	s.startedAt = s.now()
	s.cursor = 0
	s.phase = model.PhaseReadingQuestion
	return s.effect(model.ActionStart, join(instructionsText(ctx, len(s.questions)), s.questionText(ctx, false)))
}

func (s *Session) record(ctx context.Context, a model.Action) (Effect, error) {
	value := model.NormalizeAnswer(a.Value)
	if value == "" {
		return s.reject(a.Kind, i18n.T(ctx, "AnswerPrompt")), ErrEmptyAnswer
	}
	rec := model.AnswerRecord{
		Value:                value,
		RecordedAt:           s.now(),
		QuestionTextSnapshot: s.questions[s.cursor].Text,
	}
	s.answers[s.cursor] = rec

	next := i18n.T(ctx, "SayNextQuestion")
	s.phase = model.PhaseReadingQuestion
	if s.cursor == len(s.questions)-1 {
		next = i18n.T(ctx, "SayFinishExam")
		s.phase = model.PhaseComplete
	}
	e := s.effect(a.Kind, join(i18n.Td(ctx, "AnswerRecorded", map[string]any{"Answer": value}), next))
	e.Recorded = &rec
	return e, nil
}

func (s *Session) endOfExam(ctx context.Context, kind model.ActionKind) Effect {
	s.phase = model.PhaseComplete
	return s.effect(kind, i18n.Tp(ctx, "EndOfExam", len(s.questions), map[string]any{"Answered": len(s.answers)}))
}

func (s *Session) finish(ctx context.Context) Effect {
	s.completedAt = s.now()
	s.phase = model.PhaseComplete
	sheet := BuildAnswerSheet(s.snapshot())
	s.sheet = &sheet
	e := s.effect(model.ActionFinish, i18n.Tp(ctx, "ExamFinished", len(s.questions), map[string]any{"Answered": len(s.answers)}))
	e.Sheet = s.sheet
	return e
}

// AnswerSheet returns the finished sheet, or a preview of the current
// answers while the exam is still running.
func (s *Session) AnswerSheet() model.AnswerSheet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sheet != nil {
		return *s.sheet
	}
	return BuildAnswerSheet(s.snapshot())
}

// Status summarizes the session progress.
func (s *Session) Status() model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := len(s.questions)
	st := model.Status{
		SessionID:       s.id,
		ExamTitle:       s.title,
		Phase:           s.phase,
		TotalQuestions:  total,
		AnswersProvided: len(s.answers),
		Finished:        s.sheet != nil,
	}
	if s.phase.Started() {
		st.CurrentQuestion = s.cursor + 1
		st.ProgressPercentage = percent(s.cursor+1, total)
	}
	st.CompletionPercentage = percent(len(s.answers), total)
	if !s.startedAt.IsZero() {
		end := s.completedAt
		if end.IsZero() {
			end = s.now()
		}
		st.ElapsedMinutes = minutes(s.startedAt, end)
	}
	return st
}

func (s *Session) snapshot() Snapshot {
	answers := make(map[int]model.AnswerRecord, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	return Snapshot{
		SessionID:   s.id,
		ExamTitle:   s.title,
		Questions:   s.questions,
		Answers:     answers,
		StartedAt:   s.startedAt,
		CompletedAt: s.completedAt,
	}
}

func (s *Session) effect(kind model.ActionKind, narration string) Effect {
	return Effect{Action: kind, Phase: s.phase, Cursor: s.cursor, Narration: narration}
}

func (s *Session) reject(kind model.ActionKind, narration string) Effect {
	e := s.effect(kind, narration)
	e.Rejected = true
	return e
}
