package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/store"
)

// DashboardHandler serves the headline counts.
type DashboardHandler struct {
	DB      *sql.DB
	Service *circulation.Service
}

// Get handles GET /api/dashboard.
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := store.GetDashboardStats(r.Context(), h.DB, h.Service.Today())
	if err != nil {
		slog.Error("failed to load dashboard", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}
	jsonResponse(w, http.StatusOK, stats)
}
