// Package assistant runs the exam workflow: loading an exam, turning
// utterances into session transitions, rendering narration to audio and
// persisting the answer sheet.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/pavelanni/examreader/internal/command"
	"github.com/pavelanni/examreader/internal/exam"
	"github.com/pavelanni/examreader/internal/extract"
	"github.com/pavelanni/examreader/internal/i18n"
	"github.com/pavelanni/examreader/internal/model"
	"github.com/pavelanni/examreader/internal/speech"
	"github.com/pavelanni/examreader/internal/store"
)

var (
	ErrNoQuestions   = errors.New("no questions found in exam")
	ErrNoTranscriber = errors.New("speech transcription is not configured")
	ErrNoSynthesizer = errors.New("speech synthesis is not configured")
	ErrNoText        = errors.New("no text to synthesize")
)

// DefaultAudioURLPrefix is where generated audio is served.
const DefaultAudioURLPrefix = "/api/audio/"

// SheetStore persists answer sheets and extracted questions.
type SheetStore interface {
	SaveAnswerSheet(sheet model.AnswerSheet) error
	GetAnswerSheet(sessionID string) (*model.AnswerSheet, error)
	GetCachedQuestions(hash string) ([]model.Question, string, bool, error)
	PutCachedQuestions(hash, tier string, questions []model.Question) error
}

// TextExtractor pulls text out of an uploaded PDF.
type TextExtractor interface {
	ExtractFile(ctx context.Context, path string) (string, error)
}

// Deps are the collaborators of an Assistant. Store, Synthesizer,
// Transcriber and PDF may be nil.
type Deps struct {
	Extractor      *extract.Extractor
	Interpreter    command.Interpreter
	Sessions       *exam.Store
	Store          SheetStore
	Synthesizer    speech.Synthesizer
	Transcriber    speech.Transcriber
	PDF            TextExtractor
	AudioURLPrefix string
	Now            func() time.Time
}

// Assistant coordinates one exam turn at a time per session.
type Assistant struct {
	extractor   *extract.Extractor
	interpreter command.Interpreter
	sessions    *exam.Store
	store       SheetStore
	synth       speech.Synthesizer
	stt         speech.Transcriber
	pdf         TextExtractor
	audioPrefix string
	now         func() time.Time
}

// New creates an assistant.
func New(d Deps) *Assistant {
	a := &Assistant{
		extractor:   d.Extractor,
		interpreter: d.Interpreter,
		sessions:    d.Sessions,
		store:       d.Store,
		synth:       d.Synthesizer,
		stt:         d.Transcriber,
		pdf:         d.PDF,
		audioPrefix: d.AudioURLPrefix,
		now:         d.Now,
	}
	if a.extractor == nil {
		a.extractor = extract.New(nil, 0)
	}
	if a.interpreter == nil {
		a.interpreter = command.Pattern{}
	}
	if a.sessions == nil {
		a.sessions = exam.NewStore(0, nil)
	}
	if a.audioPrefix == "" {
		a.audioPrefix = DefaultAudioURLPrefix
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// LoadResult describes a freshly loaded exam.
type LoadResult struct {
	SessionID      string           `json:"session_id"`
	ExamTitle      string           `json:"exam_title"`
	TotalQuestions int              `json:"total_questions"`
	Tier           string           `json:"extraction_tier"`
	Cached         bool             `json:"cached"`
	Questions      []model.Question `json:"questions"`
	Narration      string           `json:"narration"`
	AudioURL       string           `json:"audio_url,omitempty"`
}

// Reply is the outcome of one exam turn.
type Reply struct {
	SessionID  string        `json:"session_id"`
	Utterance  string        `json:"utterance,omitempty"`
	Confidence float64       `json:"transcription_confidence,omitempty"`
	Action     *model.Action `json:"interpreted,omitempty"`
	Effect     exam.Effect   `json:"effect"`
	// Rejected explains why the session refused the action; the narration
	// then holds the spoken clarification.
	Rejected string       `json:"rejected,omitempty"`
	AudioURL string       `json:"audio_url,omitempty"`
	Status   model.Status `json:"status"`
}

// LoadPDF extracts the text of a PDF and loads it as an exam.
func (a *Assistant) LoadPDF(ctx context.Context, title, path string) (LoadResult, error) {
	if a.pdf == nil {
		return LoadResult{}, errors.New("PDF extraction is not configured")
	}
	text, err := a.pdf.ExtractFile(ctx, path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("extract PDF text: %w", err)
	}
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return a.LoadText(ctx, title, text)
}

// LoadText extracts questions from exam text and opens a new session.
func (a *Assistant) LoadText(ctx context.Context, title, text string) (LoadResult, error) {
	if strings.TrimSpace(title) == "" {
		title = "Exam"
	}
	questions, tier, cached := a.questionsFor(ctx, text)
	if len(questions) == 0 {
		return LoadResult{}, ErrNoQuestions
	}

	sess := exam.NewSession("", title, questions, a.now)
	if err := a.sessions.Create(sess); err != nil {
		return LoadResult{}, fmt.Errorf("create session: %w", err)
	}
	slog.Info("exam loaded", "session", sess.ID(), "title", title, "questions", len(questions), "tier", tier, "cached", cached)

	res := LoadResult{
		SessionID:      sess.ID(),
		ExamTitle:      title,
		TotalQuestions: len(questions),
		Tier:           tier,
		Cached:         cached,
		Questions:      questions,
		Narration:      sess.Welcome(ctx),
	}
	res.AudioURL = a.render(ctx, res.Narration, false)
	return res, nil
}

func (a *Assistant) questionsFor(ctx context.Context, text string) ([]model.Question, string, bool) {
	if a.store == nil {
		r := a.extractor.ExtractWithTier(ctx, text)
		return r.Questions, r.Tier, false
	}
	hash := store.TextHash(text)
	qs, tier, ok, err := a.store.GetCachedQuestions(hash)
	if err != nil {
		slog.Warn("extraction cache lookup failed", "error", err)
	}
	if ok && len(qs) > 0 {
		return qs, tier, true
	}
	r := a.extractor.ExtractWithTier(ctx, text)
	if len(r.Questions) > 0 {
		if err := a.store.PutCachedQuestions(hash, r.Tier, r.Questions); err != nil {
			slog.Warn("extraction cache write failed", "error", err)
		}
	}
	return r.Questions, r.Tier, false
}

// Instructions narrates how the exam works.
func (a *Assistant) Instructions(ctx context.Context, sessionID string) (Reply, error) {
	sess, err := a.sessions.Get(sessionID)
	if err != nil {
		return Reply{}, err
	}
	return a.reply(ctx, sess, sess.Instructions(ctx), nil), nil
}

// Start begins the exam.
func (a *Assistant) Start(ctx context.Context, sessionID string) (Reply, error) {
	return a.applyTo(ctx, sessionID, model.Action{Kind: model.ActionStart})
}

// Finish completes the exam and stores the answer sheet.
func (a *Assistant) Finish(ctx context.Context, sessionID string) (Reply, error) {
	return a.applyTo(ctx, sessionID, model.Action{Kind: model.ActionFinish})
}

// Command interprets a typed or transcribed utterance and applies it.
func (a *Assistant) Command(ctx context.Context, sessionID, utterance string) (Reply, error) {
	sess, err := a.sessions.Get(sessionID)
	if err != nil {
		return Reply{}, err
	}
	act, err := a.interpreter.Interpret(ctx, utterance, sess.CommandContext())
	if err != nil {
		slog.Warn("command interpretation failed", "session", sessionID, "error", err)
		act = model.Action{Kind: model.ActionUnknown}
	}
	slog.Debug("command interpreted", "session", sessionID, "utterance", utterance, "action", act.Kind, "source", act.Source)
	r, err := a.apply(ctx, sess, act)
	r.Utterance = utterance
	return r, err
}

// CommandAudio transcribes a spoken command and applies it. A failed or empty
// transcription asks the student to repeat.
func (a *Assistant) CommandAudio(ctx context.Context, sessionID string, audio io.Reader, filename string) (Reply, error) {
	if a.stt == nil {
		return Reply{}, ErrNoTranscriber
	}
	sess, err := a.sessions.Get(sessionID)
	if err != nil {
		return Reply{}, err
	}
	tr, err := a.stt.Transcribe(ctx, audio, filename)
	if err != nil || tr.Text == "" {
		if err != nil {
			slog.Warn("transcription failed", "session", sessionID, "error", err)
		}
		cc := sess.CommandContext()
		eff := exam.Effect{
			Action:    model.ActionUnknown,
			Phase:     cc.Phase,
			Cursor:    cc.QuestionIndex,
			Narration: i18n.T(ctx, "PleaseRepeat"),
			Rejected:  true,
		}
		r := a.reply(ctx, sess, eff, nil)
		r.Rejected = "transcription failed"
		return r, nil
	}
	r, err := a.Command(ctx, sessionID, tr.Text)
	r.Confidence = tr.Confidence
	return r, err
}

// Status returns the progress of a live session.
func (a *Assistant) Status(sessionID string) (model.Status, error) {
	sess, err := a.sessions.Get(sessionID)
	if err != nil {
		return model.Status{}, err
	}
	return sess.Status(), nil
}

// AnswerSheet returns the sheet of a live session, or the stored sheet once
// the session is gone.
func (a *Assistant) AnswerSheet(sessionID string) (model.AnswerSheet, error) {
	sess, err := a.sessions.Get(sessionID)
	if err == nil {
		return sess.AnswerSheet(), nil
	}
	if a.store != nil {
		stored, serr := a.store.GetAnswerSheet(sessionID)
		if serr != nil {
			return model.AnswerSheet{}, fmt.Errorf("load answer sheet: %w", serr)
		}
		if stored != nil {
			return *stored, nil
		}
	}
	return model.AnswerSheet{}, err
}

// Sessions lists live sessions.
func (a *Assistant) Sessions() []model.Status {
	return a.sessions.List()
}

func (a *Assistant) applyTo(ctx context.Context, sessionID string, act model.Action) (Reply, error) {
	sess, err := a.sessions.Get(sessionID)
	if err != nil {
		return Reply{}, err
	}
	return a.apply(ctx, sess, act)
}

func (a *Assistant) apply(ctx context.Context, sess *exam.Session, act model.Action) (Reply, error) {
	eff, err := sess.Apply(ctx, act)
	var rejected string
	if err != nil {
		// Illegal transitions are answered with a spoken clarification.
		rejected = err.Error()
		slog.Info("action rejected", "session", sess.ID(), "action", act.Kind, "reason", rejected)
	}
	if eff.Sheet != nil && a.store != nil {
		if err := a.store.SaveAnswerSheet(*eff.Sheet); err != nil {
			return Reply{}, fmt.Errorf("save answer sheet: %w", err)
		}
		slog.Info("answer sheet saved", "session", sess.ID(), "answered", eff.Sheet.AnsweredCount, "total", eff.Sheet.TotalQuestions)
	}
	r := a.reply(ctx, sess, eff, &act)
	r.Rejected = rejected
	return r, nil
}

func (a *Assistant) reply(ctx context.Context, sess *exam.Session, eff exam.Effect, act *model.Action) Reply {
	return Reply{
		SessionID: sess.ID(),
		Action:    act,
		Effect:    eff,
		AudioURL:  a.render(ctx, eff.Narration, eff.Slower),
		Status:    sess.Status(),
	}
}

// render synthesizes narration and returns its URL. Failures are logged and
// leave the URL empty; the narration text is still returned to the caller.
func (a *Assistant) render(ctx context.Context, narration string, slower bool) string {
	if a.synth == nil || narration == "" {
		return ""
	}
	url, err := a.synthesize(ctx, a.synth, narration, slower)
	if err != nil {
		slog.Warn("speech synthesis failed", "error", err)
		return ""
	}
	return url
}

func (a *Assistant) synthesize(ctx context.Context, synth speech.Synthesizer, text string, slower bool) (string, error) {
	name, err := synth.Synthesize(ctx, text, slower)
	if err != nil {
		return "", err
	}
	return a.audioPrefix + name, nil
}

// Speak renders arbitrary text and returns the audio URL. An empty voice,
// or a synthesizer without voice selection, keeps the configured voice.
func (a *Assistant) Speak(ctx context.Context, text string, slower bool, voice string) (string, error) {
	if a.synth == nil {
		return "", ErrNoSynthesizer
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	synth := a.synth
	if vs, ok := synth.(speech.VoiceSelector); ok && voice != "" {
		synth = vs.WithVoice(voice)
	}
	url, err := a.synthesize(ctx, synth, text, slower)
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}
	return url, nil
}

// Voices lists the voices Speak accepts. It is empty when the synthesizer
// cannot enumerate them.
func (a *Assistant) Voices() ([]speech.Voice, error) {
	if a.synth == nil {
		return nil, ErrNoSynthesizer
	}
	if vl, ok := a.synth.(speech.VoiceLister); ok {
		return vl.Voices(), nil
	}
	return []speech.Voice{}, nil
}
