package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// AdminsHandler handles staff account management (admin role only).
type AdminsHandler struct {
	DB *sql.DB
}

type createAdminRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Name      string `json:"name"`
	Role      string `json:"role"`
}

type updateAdminRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Name      *string `json:"name"`
	Role      *string `json:"role"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// List handles GET /api/admins.
func (h *AdminsHandler) List(w http.ResponseWriter, r *http.Request) {
	admins, err := store.ListAdmins(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list admins", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list admins")
		return
	}
	if admins == nil {
		admins = []model.Admin{}
	}
	jsonResponse(w, http.StatusOK, admins)
}

// Create handles POST /api/admins.
func (h *AdminsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "username and password required")
		return
	}
	if req.Role == "" {
		req.Role = model.RoleLibrarian
	}
	if !model.ValidRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := store.GetAdminByUsername(r.Context(), h.DB, req.Username)
	if err != nil {
		slog.Error("failed to check username", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create admin")
		return
	}
	if existing != nil {
		jsonError(w, http.StatusConflict, "username already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	admin, err := store.CreateAdmin(r.Context(), h.DB, &model.Admin{
		Username:     req.Username,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Name:         req.Name,
		Role:         req.Role,
	})
	if err != nil {
		slog.Error("failed to create admin", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create admin")
		return
	}

	slog.Info("admin created", "admin", admin.Username, "role", admin.Role, "by", GetClaims(r.Context()).Username)
	jsonResponse(w, http.StatusCreated, admin)
}

// Get handles GET /api/admins/{id}.
func (h *AdminsHandler) Get(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.load(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, admin)
}

// Update handles PUT /api/admins/{id}.
func (h *AdminsHandler) Update(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.load(w, r)
	if !ok {
		return
	}

	var req updateAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.FirstName != nil {
		admin.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		admin.LastName = *req.LastName
	}
	if req.Name != nil {
		admin.Name = *req.Name
	}
	if req.Role != nil {
		if !model.ValidRole(*req.Role) {
			jsonError(w, http.StatusBadRequest, "invalid role")
			return
		}
		claims := GetClaims(r.Context())
		if admin.ID == claims.AdminID && *req.Role != admin.Role {
			jsonError(w, http.StatusBadRequest, "cannot change your own role")
			return
		}
		admin.Role = *req.Role
	}

	if err := store.UpdateAdmin(r.Context(), h.DB, admin); err != nil {
		slog.Error("failed to update admin", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update admin")
		return
	}

	slog.Info("admin updated", "admin", admin.Username, "by", GetClaims(r.Context()).Username)
	jsonResponse(w, http.StatusOK, admin)
}

// ResetPassword handles PUT /api/admins/{id}/password.
func (h *AdminsHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.load(w, r)
	if !ok {
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	if err := store.UpdateAdminPassword(r.Context(), h.DB, admin.ID, string(hash)); err != nil {
		slog.Error("failed to reset password", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}

	slog.Info("admin password reset", "admin", admin.Username, "by", GetClaims(r.Context()).Username)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Delete handles DELETE /api/admins/{id}.
func (h *AdminsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	admin, ok := h.load(w, r)
	if !ok {
		return
	}

	claims := GetClaims(r.Context())
	if admin.ID == claims.AdminID {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	if err := store.DeleteAdmin(r.Context(), h.DB, admin.ID); err != nil {
		slog.Error("failed to delete admin", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete admin")
		return
	}

	slog.Info("admin deleted", "admin", admin.Username, "by", claims.Username)
	w.WriteHeader(http.StatusNoContent)
}

// load fetches the live admin named by the {id} path value, writing the
// error response itself when it cannot.
func (h *AdminsHandler) load(w http.ResponseWriter, r *http.Request) (*model.Admin, bool) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid admin ID")
		return nil, false
	}

	admin, err := store.GetAdmin(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get admin", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get admin")
		return nil, false
	}
	if admin == nil || admin.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "admin not found")
		return nil, false
	}
	return admin, true
}
