package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// BorrowHandler handles loan endpoints.
type BorrowHandler struct {
	DB      *sql.DB
	Service *circulation.Service
}

type issueRequest struct {
	MemberID    int64            `json:"member_id"`
	ProcessedBy *int64           `json:"processed_by"`
	Items       []model.LoanItem `json:"items"`
}

type renewRequest struct {
	BookID  int64      `json:"book_id"`
	DueDate model.Date `json:"due_date"`
}

// List handles GET /api/borrow. Filters: ?member_id=, ?book_id=, ?open=1.
func (h *BorrowHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter store.LoanFilter
	if v := q.Get("member_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid member_id")
			return
		}
		filter.MemberID = id
	}
	if v := q.Get("book_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid book_id")
			return
		}
		filter.BookID = id
	}
	filter.OpenOnly = q.Get("open") == "1"

	loans, err := store.ListLoans(r.Context(), h.DB, filter)
	if err != nil {
		slog.Error("failed to list loans", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list loans")
		return
	}
	if loans == nil {
		loans = []model.Loan{}
	}
	jsonResponse(w, http.StatusOK, loans)
}

// Create handles POST /api/borrow. The authenticated admin records the loan.
func (h *BorrowHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req issueRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loan, err := h.Service.Issue(r.Context(), circulation.IssueRequest{
		MemberID:    req.MemberID,
		AdminID:     claims.AdminID,
		ProcessedBy: req.ProcessedBy,
		Items:       req.Items,
	})
	if err != nil {
		engineError(w, r, err, "issue loan")
		return
	}

	slog.Info("loan issued", "loan", loan.ID, "member", loan.MemberID, "books", loan.Amount, "admin", claims.Username)
	jsonResponse(w, http.StatusCreated, loan)
}

// Get handles GET /api/borrow/{id}.
func (h *BorrowHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid loan ID")
		return
	}

	loan, err := h.Service.Loan(r.Context(), id)
	if err != nil {
		engineError(w, r, err, "get loan")
		return
	}
	jsonResponse(w, http.StatusOK, loan)
}

// Delete handles DELETE /api/borrow/{id}. Copies still out become available.
func (h *BorrowHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid loan ID")
		return
	}

	if err := h.Service.DeleteLoan(r.Context(), id); err != nil {
		engineError(w, r, err, "delete loan")
		return
	}

	slog.Info("loan deleted", "loan", id, "admin", GetClaims(r.Context()).Username)
	w.WriteHeader(http.StatusNoContent)
}

// Renew handles POST /api/borrow/{id}/renew.
func (h *BorrowHandler) Renew(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid loan ID")
		return
	}

	var req renewRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	loan, err := h.Service.Renew(r.Context(), id, req.BookID, req.DueDate)
	if err != nil {
		engineError(w, r, err, "renew loan")
		return
	}

	slog.Info("loan renewed", "loan", id, "book", req.BookID, "due", req.DueDate.String())
	jsonResponse(w, http.StatusOK, loan)
}

// Overdue handles GET /api/borrow/overdue.
func (h *BorrowHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	details, err := store.ListOverdue(r.Context(), h.DB, h.Service.Today())
	if err != nil {
		slog.Error("failed to list overdue loans", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list overdue loans")
		return
	}
	if details == nil {
		details = []model.LoanDetail{}
	}
	jsonResponse(w, http.StatusOK, details)
}
