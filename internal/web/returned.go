package web

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/knjiznica/internal/model"
)

// ReturnedPage handles GET /returned.
func (s *Server) ReturnedPage(w http.ResponseWriter, r *http.Request) {
	s.renderReturned(w, r, "")
}

func (s *Server) renderReturned(w http.ResponseWriter, r *http.Request, errMsg string) {
	batches, err := s.Service.ListGroupedReturns(r.Context())
	if err != nil {
		slog.Error("failed to list returns", "error", err)
		errMsg = errorMessage(err)
	}

	data := s.page(r, "Vrnjene knjige")
	data.Error = errMsg
	s.Templates.Render(w, "returned.html", &struct {
		PageData
		Batches []model.ReturnBatch
	}{
		PageData: data,
		Batches:  batches,
	})
}

// ReturnDetailDeleteSubmit handles POST /returned/{id}/delete.
func (s *Server) ReturnDetailDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	detailID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	returnID, _ := strconv.ParseInt(r.FormValue("return_id"), 10, 64)
	bookID, _ := strconv.ParseInt(r.FormValue("book_id"), 10, 64)

	headerDeleted, err := s.Service.DeleteReturnDetail(r.Context(), returnID, detailID, bookID)
	if err != nil {
		slog.Warn("return detail delete rejected", "admin", claims.Username, "error", err)
		s.renderReturned(w, r, errorMessage(err))
		return
	}

	slog.Info("return detail deleted", "admin", claims.Username, "return", returnID,
		"detail", detailID, "header_deleted", headerDeleted)
	http.Redirect(w, r, "/returned", http.StatusSeeOther)
}
