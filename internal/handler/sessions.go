package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tablestakes/tracker/internal/domain"
	"github.com/tablestakes/tracker/internal/service"
)

// 5 MB is far beyond any real ledger export.
const maxLedgerBytes = 5 << 20

// SessionHandler handles ledger uploads and the session collection.
type SessionHandler struct {
	tracker *service.Tracker
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(tracker *service.Tracker) *SessionHandler {
	return &SessionHandler{tracker: tracker}
}

// ImportSession handles POST /sessions/import. The ledger CSV arrives either
// as a multipart "file" field or as the raw request body with the filename in
// the X-Filename header or ?filename= query parameter.
func (h *SessionHandler) ImportSession(w http.ResponseWriter, r *http.Request) {
	filename, raw, err := readLedgerUpload(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	result, err := h.tracker.ImportLedger(r.Context(), filename, raw)
	if err != nil {
		RespondError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Status == service.ImportDuplicate {
		status = http.StatusOK
	}
	RespondJSON(w, status, result)
}

func readLedgerUpload(r *http.Request) (filename, raw string, err error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxLedgerBytes)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", "", domain.ErrValidation("multipart upload requires a file field")
		}
		defer file.Close()
		body, err := io.ReadAll(file)
		if err != nil {
			return "", "", domain.ErrValidation("could not read uploaded file")
		}
		return header.Filename, string(body), nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", "", domain.ErrValidation("could not read request body")
	}
	filename = r.Header.Get("X-Filename")
	if filename == "" {
		filename = r.URL.Query().Get("filename")
	}
	return filename, string(body), nil
}

// ListSessions handles GET /sessions.
func (h *SessionHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.tracker.Sessions(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, sessions)
}

// DeleteSession handles DELETE /sessions/{id}.
func (h *SessionHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.tracker.DeleteSession(r.Context(), id); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// ClearSessions handles DELETE /sessions. Removes every session and
// settlement status.
func (h *SessionHandler) ClearSessions(w http.ResponseWriter, r *http.Request) {
	if err := h.tracker.ClearAll(r.Context()); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// MergePlayers handles POST /players/merge.
func (h *SessionHandler) MergePlayers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Source string `json:"source"`
		Target string `json:"target"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid merge request body"))
		return
	}

	changed, err := h.tracker.MergePlayers(r.Context(), req.Source, req.Target)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]int{"sessions_rewritten": changed})
}
