package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examreader/internal/assistant"
	"github.com/pavelanni/examreader/internal/exam"
	"github.com/pavelanni/examreader/internal/handler/views"
	"github.com/pavelanni/examreader/internal/pdftext"
	"github.com/pavelanni/examreader/internal/speech"
	"github.com/pavelanni/examreader/internal/store"
)

// DefaultMaxUploadBytes bounds an uploaded exam or spoken command.
const DefaultMaxUploadBytes = 32 << 20

// Config holds the dependencies of a Handler. Store and Audio may be nil.
type Config struct {
	Assistant      *assistant.Assistant
	Store          *store.Store
	Audio          *speech.Dir
	MaxUploadBytes int64
	// Backends is reported by the health endpoint, e.g. {"llm": "openai"}.
	Backends map[string]string
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	assistant *assistant.Assistant
	store     *store.Store
	audio     *speech.Dir
	maxUpload int64
	backends  map[string]string
}

// New creates a new Handler.
func New(cfg Config) *Handler {
	h := &Handler{
		assistant: cfg.Assistant,
		store:     cfg.Store,
		audio:     cfg.Audio,
		maxUpload: cfg.MaxUploadBytes,
		backends:  cfg.Backends,
	}
	if h.maxUpload <= 0 {
		h.maxUpload = DefaultMaxUploadBytes
	}
	return h
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/api/health", h.handleHealth)
	r.Post("/api/exam/upload", h.handleUpload)
	r.Route("/api/exam/{sessionID}", func(r chi.Router) {
		r.Post("/instructions", h.handleInstructions)
		r.Post("/start", h.handleStart)
		r.Post("/command", h.handleCommand)
		r.Post("/finish", h.handleFinish)
		r.Get("/status", h.handleStatus)
		r.Get("/answer-sheet", h.handleAnswerSheet)
	})
	r.Get("/exam/{sessionID}/answer-sheet", h.handleAnswerSheetPage)
	r.Post("/api/audio/generate", h.handleGenerateAudio)
	r.Get("/api/audio/voices", h.handleVoices)
	r.Get("/api/audio/{name}", h.handleAudio)

	if h.store != nil {
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Get("/sessions", h.handleAdminSessions)
			r.Get("/answer-sheets", h.handleAdminAnswerSheets)
			r.Get("/export", h.handleAdminExport)
		})
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeSessionError maps session lookup failures to status codes.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, exam.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, exam.ErrSessionExpired):
		writeError(w, http.StatusGone, err.Error())
	default:
		slog.Error("exam request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"live_sessions": len(h.assistant.Sessions()),
		"backends":      h.backends,
	})
}

type uploadRequest struct {
	Text      string `json:"text"`
	ExamTitle string `json:"exam_title"`
}

// handleUpload accepts a multipart PDF ("file"), multipart text ("text") or a
// JSON body {"text", "exam_title"}.
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	var (
		res assistant.LoadResult
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req uploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			writeError(w, http.StatusBadRequest, "text is required")
			return
		}
		res, err = h.assistant.LoadText(r.Context(), req.ExamTitle, req.Text)
	} else {
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
			return
		}
		title := r.FormValue("exam_title")
		file, header, ferr := r.FormFile("file")
		switch {
		case ferr == nil:
			defer file.Close()
			if title == "" {
				title = strings.TrimSuffix(filepath.Base(header.Filename), filepath.Ext(header.Filename))
			}
			res, err = h.loadUploadedPDF(r, title, file)
		case strings.TrimSpace(r.FormValue("text")) != "":
			res, err = h.assistant.LoadText(r.Context(), title, r.FormValue("text"))
		default:
			writeError(w, http.StatusBadRequest, "a PDF file or exam text is required")
			return
		}
	}

	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, res)
	case errors.Is(err, assistant.ErrNoQuestions), errors.Is(err, pdftext.ErrNoText):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.Error("load exam failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) loadUploadedPDF(r *http.Request, title string, file io.Reader) (assistant.LoadResult, error) {
	tmp, err := os.CreateTemp("", "examreader-*.pdf")
	if err != nil {
		return assistant.LoadResult{}, err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		return assistant.LoadResult{}, err
	}
	if err := tmp.Close(); err != nil {
		return assistant.LoadResult{}, err
	}
	return h.assistant.LoadPDF(r.Context(), title, tmp.Name())
}

func (h *Handler) handleInstructions(w http.ResponseWriter, r *http.Request) {
	reply, err := h.assistant.Instructions(r.Context(), chi.URLParam(r, "sessionID"))
	h.writeReply(w, reply, err)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	reply, err := h.assistant.Start(r.Context(), chi.URLParam(r, "sessionID"))
	h.writeReply(w, reply, err)
}

func (h *Handler) handleFinish(w http.ResponseWriter, r *http.Request) {
	reply, err := h.assistant.Finish(r.Context(), chi.URLParam(r, "sessionID"))
	h.writeReply(w, reply, err)
}

type commandRequest struct {
	Command string `json:"command"`
}

// handleCommand takes a typed command as JSON or a spoken one as multipart "audio".
func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid upload: "+err.Error())
			return
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			writeError(w, http.StatusBadRequest, "audio file is required")
			return
		}
		defer file.Close()
		reply, err := h.assistant.CommandAudio(r.Context(), sessionID, file, header.Filename)
		if errors.Is(err, assistant.ErrNoTranscriber) {
			writeError(w, http.StatusNotImplemented, err.Error())
			return
		}
		h.writeReply(w, reply, err)
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}
	reply, err := h.assistant.Command(r.Context(), sessionID, req.Command)
	h.writeReply(w, reply, err)
}

// writeReply answers illegal transitions with 200; the reply carries the
// rejection reason and the spoken clarification.
func (h *Handler) writeReply(w http.ResponseWriter, reply assistant.Reply, err error) {
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.assistant.Status(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) handleAnswerSheet(w http.ResponseWriter, r *http.Request) {
	sheet, err := h.assistant.AnswerSheet(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sheet)
}

func (h *Handler) handleAnswerSheetPage(w http.ResponseWriter, r *http.Request) {
	sheet, err := h.assistant.AnswerSheet(chi.URLParam(r, "sessionID"))
	switch {
	case errors.Is(err, exam.ErrSessionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, exam.ErrSessionExpired):
		http.Error(w, err.Error(), http.StatusGone)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.AnswerSheetPage(sheet).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleAudio(w http.ResponseWriter, r *http.Request) {
	if h.audio == nil {
		http.NotFound(w, r)
		return
	}
	name := chi.URLParam(r, "name")
	f, err := h.audio.Open(name)
	if err != nil {
		if !errors.Is(err, speech.ErrInvalidName) && !errors.Is(err, os.ErrNotExist) {
			slog.Error("open audio", "name", name, "error", err)
		}
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", speech.ContentType(name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

type generateAudioRequest struct {
	Text string `json:"text"`
	// Speed below 1 selects the slower rendering.
	Speed   float64 `json:"speed"`
	VoiceID string  `json:"voice_id"`
}

func (h *Handler) handleGenerateAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	req := generateAudioRequest{Speed: 1}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	url, err := h.assistant.Speak(r.Context(), req.Text, req.Speed < 1, req.VoiceID)
	switch {
	case errors.Is(err, assistant.ErrNoSynthesizer):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, assistant.ErrNoText):
		writeError(w, http.StatusBadRequest, "text is required")
	case err != nil:
		slog.Error("generate audio", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"audio_url": url})
	}
}

func (h *Handler) handleVoices(w http.ResponseWriter, r *http.Request) {
	voices, err := h.assistant.Voices()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voices": voices})
}
