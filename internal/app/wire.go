package app

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tablestakes/tracker/internal/handler"
	"github.com/tablestakes/tracker/internal/service"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Pool       *pgxpool.Pool
	Tracker    *service.Tracker
	Logger     *slog.Logger
	CORSOrigin string
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	sessionHandler := handler.NewSessionHandler(deps.Tracker)
	statsHandler := handler.NewStatsHandler(deps.Tracker)
	exportHandler := handler.NewExportHandler(deps.Tracker)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(deps.Logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(deps.Logger))
	r.Use(handler.CORS(deps.CORSOrigin))
	r.Use(handler.JSONContentType)

	r.Get("/health", handler.HealthHandler(deps.Pool))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/import", sessionHandler.ImportSession)
		r.Get("/", sessionHandler.ListSessions)
		r.Delete("/", sessionHandler.ClearSessions)
		r.Delete("/{id}", sessionHandler.DeleteSession)
	})

	r.Get("/stats/players", statsHandler.PlayerStats)

	r.Route("/settlements", func(r chi.Router) {
		r.Get("/", statsHandler.Settlements)
		r.Put("/status", statsHandler.SetSettlementStatus)
	})

	r.Post("/sync/mirror", statsHandler.SyncMirror)

	r.Post("/players/merge", sessionHandler.MergePlayers)

	r.Route("/export", func(r chi.Router) {
		r.Get("/report.csv", exportHandler.ReportCSV)
		r.Get("/backup", exportHandler.Backup)
	})
	r.Post("/import/backup", exportHandler.Restore)

	return r
}
