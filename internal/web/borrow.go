package web

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// BorrowPage handles GET /borrow: open loans, the issue form and the per-copy
// return buttons.
func (s *Server) BorrowPage(w http.ResponseWriter, r *http.Request) {
	s.renderBorrow(w, r, "", "")
}

func (s *Server) renderBorrow(w http.ResponseWriter, r *http.Request, errMsg, success string) {
	loans, err := store.ListLoans(r.Context(), s.DB, store.LoanFilter{OpenOnly: true})
	if err != nil {
		slog.Error("failed to list loans", "error", err)
	}
	members, err := store.ListMembers(r.Context(), s.DB, model.MemberActive)
	if err != nil {
		slog.Error("failed to list members", "error", err)
	}
	books, err := store.ListBooks(r.Context(), s.DB, model.BookAvailable)
	if err != nil {
		slog.Error("failed to list books", "error", err)
	}

	today := s.Service.Today()
	data := s.page(r, "Izposoja in vračilo")
	data.Error = errMsg
	data.Success = success
	s.Templates.Render(w, "borrow.html", &struct {
		PageData
		Loans      []model.Loan
		Members    []model.Member
		Books      []model.Book
		Today      model.Date
		DefaultDue model.Date
	}{
		PageData:   data,
		Loans:      loans,
		Members:    members,
		Books:      books,
		Today:      today,
		DefaultDue: today.AddDays(14),
	})
}

// BorrowSubmit handles POST /borrow. Every checked book is lent until the
// same due date.
func (s *Server) BorrowSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	if err := r.ParseForm(); err != nil {
		s.renderBorrow(w, r, "Neveljaven obrazec.", "")
		return
	}

	memberID, _ := strconv.ParseInt(r.FormValue("member_id"), 10, 64)
	due, err := model.ParseDate(r.FormValue("due_date"))
	if err != nil {
		s.renderBorrow(w, r, "Neveljaven datum vračila.", "")
		return
	}

	var items []model.LoanItem
	for _, v := range r.Form["book_id"] {
		bookID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		items = append(items, model.LoanItem{BookID: bookID, DueDate: due})
	}

	loan, err := s.Service.Issue(r.Context(), circulation.IssueRequest{
		MemberID: memberID,
		AdminID:  claims.AdminID,
		Items:    items,
	})
	if err != nil {
		slog.Warn("issue rejected", "admin", claims.Username, "error", err)
		s.renderBorrow(w, r, errorMessage(err), "")
		return
	}

	slog.Info("loan issued", "admin", claims.Username, "loan", loan.ID, "member", loan.MemberID, "books", loan.Amount)
	http.Redirect(w, r, "/borrow", http.StatusSeeOther)
}

// ReturnSubmit handles POST /borrow/{id}/return for one copy of the loan.
func (s *Server) ReturnSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	loanID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	bookID, _ := strconv.ParseInt(r.FormValue("book_id"), 10, 64)

	processedBy := claims.AdminID
	ret, err := s.Service.Return(r.Context(), circulation.ReturnRequest{
		ProcessedBy: &processedBy,
		Items:       []circulation.ReturnItem{{LoanID: loanID, BookID: bookID}},
	})
	if err != nil {
		slog.Warn("return rejected", "admin", claims.Username, "error", err)
		s.renderBorrow(w, r, errorMessage(err), "")
		return
	}

	slog.Info("book returned", "admin", claims.Username, "loan", loanID, "book", bookID,
		"return", ret.ID, "fine", ret.TotalFine.String())

	success := "Knjiga vrnjena pravočasno."
	if len(ret.Details) > 0 && ret.Details[0].Status == model.ReturnLate {
		d := ret.Details[0]
		success = "Knjiga vrnjena z zamudo " + strconv.Itoa(d.LateDays) + " dni, zamudnina " + d.Fine.StringFixed(2) + " €."
	}
	s.renderBorrow(w, r, "", success)
}

// RenewSubmit handles POST /borrow/{id}/renew.
func (s *Server) RenewSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	loanID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	bookID, _ := strconv.ParseInt(r.FormValue("book_id"), 10, 64)
	due, err := model.ParseDate(r.FormValue("due_date"))
	if err != nil {
		s.renderBorrow(w, r, "Neveljaven datum vračila.", "")
		return
	}

	if _, err := s.Service.Renew(r.Context(), loanID, bookID, due); err != nil {
		slog.Warn("renew rejected", "admin", claims.Username, "error", err)
		s.renderBorrow(w, r, errorMessage(err), "")
		return
	}

	slog.Info("loan renewed", "admin", claims.Username, "loan", loanID, "book", bookID, "due", due.String())
	http.Redirect(w, r, "/borrow", http.StatusSeeOther)
}

// LoanDeleteSubmit handles POST /borrow/{id}/delete.
func (s *Server) LoanDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	loanID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	if err := s.Service.DeleteLoan(r.Context(), loanID); err != nil {
		slog.Warn("loan delete rejected", "admin", claims.Username, "error", err)
		s.renderBorrow(w, r, errorMessage(err), "")
		return
	}

	slog.Info("loan deleted", "admin", claims.Username, "loan", loanID)
	http.Redirect(w, r, "/borrow", http.StatusSeeOther)
}
