package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tablestakes/tracker/internal/domain"
	"github.com/tablestakes/tracker/internal/service"
)

// ExportHandler serves report and backup downloads and backup restore.
type ExportHandler struct {
	tracker *service.Tracker
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(tracker *service.Tracker) *ExportHandler {
	return &ExportHandler{tracker: tracker}
}

// ReportCSV handles GET /export/report.csv.
func (h *ExportHandler) ReportCSV(w http.ResponseWriter, r *http.Request) {
	report, err := h.tracker.ExportReportCSV(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}

	name := fmt.Sprintf("poker-report-%s.csv", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(report)
}

// Backup handles GET /export/backup.
func (h *ExportHandler) Backup(w http.ResponseWriter, r *http.Request) {
	backup, err := h.tracker.ExportBackup(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}

	name := fmt.Sprintf("poker-backup-%s.json", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	RespondJSON(w, http.StatusOK, backup)
}

// Restore handles POST /import/backup. Replaces the full session collection.
func (h *ExportHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var backup service.Backup
	if err := DecodeJSON(r, &backup); err != nil {
		RespondError(w, domain.ErrValidation("invalid backup file format"))
		return
	}

	restored, err := h.tracker.ImportBackup(r.Context(), &backup)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]int{"restored": restored})
}
