package web

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// Dashboard handles GET /.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	today := s.Service.Today()

	stats, err := store.GetDashboardStats(r.Context(), s.DB, today)
	if err != nil {
		slog.Error("failed to load dashboard stats", "error", err)
		stats = &model.DashboardStats{}
	}
	loans, err := store.ListLoans(r.Context(), s.DB, store.LoanFilter{OpenOnly: true})
	if err != nil {
		slog.Error("failed to list loans for dashboard", "error", err)
	}
	overdue, err := store.ListOverdue(r.Context(), s.DB, today)
	if err != nil {
		slog.Error("failed to list overdue loans", "error", err)
	}

	// Limit recent loans to 10.
	if len(loans) > 10 {
		loans = loans[:10]
	}

	s.Templates.Render(w, "dashboard.html", &struct {
		PageData
		Stats       *model.DashboardStats
		RecentLoans []model.Loan
		Overdue     []model.LoanDetail
	}{
		PageData:    s.page(r, "Nadzorna plošča"),
		Stats:       stats,
		RecentLoans: loans,
		Overdue:     overdue,
	})
}
