package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// MembersPage handles GET /members.
func (s *Server) MembersPage(w http.ResponseWriter, r *http.Request) {
	s.renderMembers(w, r, "")
}

func (s *Server) renderMembers(w http.ResponseWriter, r *http.Request, errMsg string) {
	members, err := store.ListMembers(r.Context(), s.DB, "")
	if err != nil {
		slog.Error("failed to list members", "error", err)
	}

	data := s.page(r, "Člani")
	data.Error = errMsg
	s.Templates.Render(w, "members.html", &struct {
		PageData
		Members []model.Member
	}{
		PageData: data,
		Members:  members,
	})
}

// memberFromForm reads the member form into m. It returns a flash message
// when the form is invalid.
func memberFromForm(r *http.Request, m *model.Member) string {
	m.FirstName = strings.TrimSpace(r.FormValue("first_name"))
	m.LastName = strings.TrimSpace(r.FormValue("last_name"))
	m.Name = strings.TrimSpace(r.FormValue("name"))
	m.Email = r.FormValue("email")
	m.Phone = r.FormValue("phone")
	if m.Name == "" {
		m.Name = strings.TrimSpace(m.FirstName + " " + m.LastName)
	}
	if m.Name == "" {
		return "Vnesite ime člana."
	}

	if v := r.FormValue("borrow_limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return "Neveljavna omejitev izposoje."
		}
		m.BorrowLimit = limit
	}
	if v := model.MemberStatus(r.FormValue("status")); v != "" {
		if !v.Valid() {
			return "Neveljavno stanje člana."
		}
		m.Status = v
	}
	return ""
}

// MemberCreateSubmit handles POST /members.
func (s *Server) MemberCreateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	member := model.Member{BorrowLimit: model.DefaultBorrowLimit}
	if msg := memberFromForm(r, &member); msg != "" {
		s.renderMembers(w, r, msg)
		return
	}

	created, err := store.CreateMember(r.Context(), s.DB, &member)
	if err != nil {
		slog.Error("failed to create member", "error", err)
		s.renderMembers(w, r, "Napaka pri dodajanju člana.")
		return
	}

	slog.Info("member created", "admin", claims.Username, "member", created.Name, "id", created.ID)
	http.Redirect(w, r, "/members", http.StatusSeeOther)
}

// MemberDetailPage handles GET /members/{id}.
func (s *Server) MemberDetailPage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	s.renderMember(w, r, id, "")
}

func (s *Server) renderMember(w http.ResponseWriter, r *http.Request, id int64, errMsg string) {
	member, err := store.GetMember(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to get member", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if member == nil || member.DeletedAt != nil {
		http.Error(w, "member not found", http.StatusNotFound)
		return
	}

	loans, err := store.ListLoans(r.Context(), s.DB, store.LoanFilter{MemberID: id})
	if err != nil {
		slog.Error("failed to list member loans", "error", err)
	}

	data := s.page(r, member.Name)
	data.Error = errMsg
	s.Templates.Render(w, "member_detail.html", &struct {
		PageData
		Member *model.Member
		Loans  []model.Loan
	}{
		PageData: data,
		Member:   member,
		Loans:    loans,
	})
}

// MemberUpdateSubmit handles POST /members/{id}.
func (s *Server) MemberUpdateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	member, err := store.GetMember(r.Context(), s.DB, id)
	if err != nil || member == nil || member.DeletedAt != nil {
		http.Error(w, "member not found", http.StatusNotFound)
		return
	}

	if msg := memberFromForm(r, member); msg != "" {
		s.renderMember(w, r, id, msg)
		return
	}
	if err := store.UpdateMember(r.Context(), s.DB, member); err != nil {
		slog.Error("failed to update member", "error", err)
		http.Error(w, "failed to update", http.StatusInternalServerError)
		return
	}

	slog.Info("member updated", "admin", claims.Username, "member", member.Name)
	http.Redirect(w, r, fmt.Sprintf("/members/%d", id), http.StatusSeeOther)
}
