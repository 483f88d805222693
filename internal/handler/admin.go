package handler

import (
	"net/http"
)

func (h *Handler) handleAdminSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.assistant.Sessions())
}

func (h *Handler) handleAdminAnswerSheets(w http.ResponseWriter, r *http.Request) {
	sheets, err := h.store.ListAnswerSheets()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sheets)
}

func (h *Handler) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	export, err := h.store.ExportAllSheets()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="answer-sheets.json"`)
	writeJSON(w, http.StatusOK, export)
}
