package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// MembersHandler handles borrower endpoints.
type MembersHandler struct {
	DB *sql.DB
}

type memberRequest struct {
	Name         *string             `json:"name"`
	FirstName    *string             `json:"first_name"`
	LastName     *string             `json:"last_name"`
	Email        *string             `json:"email"`
	Phone        *string             `json:"phone"`
	BorrowLimit  *int                `json:"borrow_limit"`
	RegisteredOn *model.Date         `json:"registered_on"`
	Status       *model.MemberStatus `json:"status"`
}

func (req *memberRequest) apply(m *model.Member) {
	if req.Name != nil {
		m.Name = strings.TrimSpace(*req.Name)
	}
	if req.FirstName != nil {
		m.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		m.LastName = *req.LastName
	}
	if req.Email != nil {
		m.Email = *req.Email
	}
	if req.Phone != nil {
		m.Phone = *req.Phone
	}
	if req.BorrowLimit != nil {
		m.BorrowLimit = *req.BorrowLimit
	}
	if req.RegisteredOn != nil {
		m.RegisteredOn = *req.RegisteredOn
	}
	if req.Status != nil {
		m.Status = *req.Status
	}
}

func validateMember(m *model.Member) string {
	if m.Name == "" {
		if full := strings.TrimSpace(m.FirstName + " " + m.LastName); full != "" {
			m.Name = full
		} else {
			return "name required"
		}
	}
	if m.BorrowLimit < 0 {
		return "borrow limit cannot be negative"
	}
	if m.Status != "" && !m.Status.Valid() {
		return "invalid status"
	}
	return ""
}

// List handles GET /api/members with an optional ?status= filter.
func (h *MembersHandler) List(w http.ResponseWriter, r *http.Request) {
	status := model.MemberStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	members, err := store.ListMembers(r.Context(), h.DB, status)
	if err != nil {
		slog.Error("failed to list members", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	jsonResponse(w, http.StatusOK, members)
}

// Create handles POST /api/members.
func (h *MembersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	member := model.Member{BorrowLimit: model.DefaultBorrowLimit}
	req.apply(&member)
	if msg := validateMember(&member); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	created, err := store.CreateMember(r.Context(), h.DB, &member)
	if err != nil {
		slog.Error("failed to create member", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create member")
		return
	}

	slog.Info("member created", "member", created.Name, "id", created.ID)
	jsonResponse(w, http.StatusCreated, created)
}

// Get handles GET /api/members/{id}.
func (h *MembersHandler) Get(w http.ResponseWriter, r *http.Request) {
	member, ok := h.load(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, member)
}

// Update handles PUT /api/members/{id}.
func (h *MembersHandler) Update(w http.ResponseWriter, r *http.Request) {
	member, ok := h.load(w, r)
	if !ok {
		return
	}

	var req memberRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.apply(member)
	if msg := validateMember(member); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	if err := store.UpdateMember(r.Context(), h.DB, member); err != nil {
		slog.Error("failed to update member", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update member")
		return
	}

	jsonResponse(w, http.StatusOK, member)
}

// Delete handles DELETE /api/members/{id}. Members with copies out cannot be
// deleted.
func (h *MembersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	member, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := store.DeleteMember(r.Context(), h.DB, member.ID); err != nil {
		storeError(w, err, "delete member", "member still has borrowed books")
		return
	}

	slog.Info("member deleted", "member", member.Name, "id", member.ID)
	w.WriteHeader(http.StatusNoContent)
}

// Loans handles GET /api/members/{id}/loans.
func (h *MembersHandler) Loans(w http.ResponseWriter, r *http.Request) {
	member, ok := h.load(w, r)
	if !ok {
		return
	}

	loans, err := store.ListLoans(r.Context(), h.DB, store.LoanFilter{
		MemberID: member.ID,
		OpenOnly: r.URL.Query().Get("open") == "1",
	})
	if err != nil {
		slog.Error("failed to list member loans", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list loans")
		return
	}
	if loans == nil {
		loans = []model.Loan{}
	}
	jsonResponse(w, http.StatusOK, loans)
}

func (h *MembersHandler) load(w http.ResponseWriter, r *http.Request) (*model.Member, bool) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid member ID")
		return nil, false
	}

	member, err := store.GetMember(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get member", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get member")
		return nil, false
	}
	if member == nil || member.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "member not found")
		return nil, false
	}
	return member, true
}
