package web

import (
	"log/slog"
	"net/http"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// AdminsPage handles GET /admins (admin only).
func (s *Server) AdminsPage(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	if !model.RoleAtLeast(claims.Role, model.RoleAdmin) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	s.renderAdmins(w, r, "")
}

func (s *Server) renderAdmins(w http.ResponseWriter, r *http.Request, errMsg string) {
	admins, err := store.ListAdmins(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list admins", "error", err)
	}

	data := s.page(r, "Osebje")
	data.Error = errMsg
	s.Templates.Render(w, "admins.html", &struct {
		PageData
		Admins []model.Admin
	}{
		PageData: data,
		Admins:   admins,
	})
}

// AdminCreateSubmit handles POST /admins (admin only).
func (s *Server) AdminCreateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	if !model.RoleAtLeast(claims.Role, model.RoleAdmin) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	username := r.FormValue("username")
	password := r.FormValue("password")
	role := r.FormValue("role")

	if username == "" || password == "" || !model.ValidRole(role) {
		s.renderAdmins(w, r, "Vnesite uporabniško ime, geslo in vlogo.")
		return
	}
	if err := model.ValidatePassword(password); err != nil {
		s.renderAdmins(w, r, "Geslo mora imeti vsaj "+strconv.Itoa(model.MinPasswordLength)+" znakov.")
		return
	}
	if existing, err := store.GetAdminByUsername(r.Context(), s.DB, username); err == nil && existing != nil {
		s.renderAdmins(w, r, "Uporabniško ime je že zasedeno.")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}

	if _, err := store.CreateAdmin(r.Context(), s.DB, &model.Admin{
		Username:     username,
		PasswordHash: string(hash),
		FirstName:    r.FormValue("first_name"),
		LastName:     r.FormValue("last_name"),
		Role:         role,
	}); err != nil {
		slog.Error("failed to create admin", "error", err)
		s.renderAdmins(w, r, "Napaka pri dodajanju uporabnika.")
		return
	}

	slog.Info("admin created", "by", claims.Username, "admin", username, "role", role)
	http.Redirect(w, r, "/admins", http.StatusSeeOther)
}

// AdminResetPasswordSubmit handles POST /admins/{id}/password (admin only).
func (s *Server) AdminResetPasswordSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	if !model.RoleAtLeast(claims.Role, model.RoleAdmin) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Redirect(w, r, "/admins", http.StatusSeeOther)
		return
	}

	newPassword := r.FormValue("new_password")
	if err := model.ValidatePassword(newPassword); err != nil {
		s.renderAdmins(w, r, "Geslo mora imeti vsaj "+strconv.Itoa(model.MinPasswordLength)+" znakov.")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "failed to hash password", http.StatusInternalServerError)
		return
	}

	if err := store.UpdateAdminPassword(r.Context(), s.DB, id, string(hash)); err != nil {
		slog.Error("failed to reset password", "error", err)
	} else {
		slog.Info("admin password reset", "by", claims.Username, "admin", id)
	}
	http.Redirect(w, r, "/admins", http.StatusSeeOther)
}

// AdminDeleteSubmit handles POST /admins/{id}/delete (admin only). Loans and
// returns keep referring to the deleted account.
func (s *Server) AdminDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	if !model.RoleAtLeast(claims.Role, model.RoleAdmin) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Redirect(w, r, "/admins", http.StatusSeeOther)
		return
	}
	if id == claims.AdminID {
		s.renderAdmins(w, r, "Svojega računa ne morete izbrisati.")
		return
	}

	if err := store.DeleteAdmin(r.Context(), s.DB, id); err != nil {
		slog.Error("failed to delete admin", "error", err)
	} else {
		slog.Info("admin deleted", "by", claims.Username, "admin", id)
	}
	http.Redirect(w, r, "/admins", http.StatusSeeOther)
}

// SettingsPage handles GET /settings.
func (s *Server) SettingsPage(w http.ResponseWriter, r *http.Request) {
	data := s.page(r, "Nastavitve")
	s.Templates.Render(w, "settings.html", &data)
}

// SettingsSubmit handles POST /settings (change own password).
func (s *Server) SettingsSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	data := s.page(r, "Nastavitve")

	currentPassword := r.FormValue("current_password")
	newPassword := r.FormValue("new_password")

	if currentPassword == "" || newPassword == "" {
		data.Error = "Vnesite trenutno in novo geslo."
		s.Templates.Render(w, "settings.html", &data)
		return
	}
	if err := model.ValidatePassword(newPassword); err != nil {
		data.Error = "Geslo mora imeti vsaj " + strconv.Itoa(model.MinPasswordLength) + " znakov."
		s.Templates.Render(w, "settings.html", &data)
		return
	}

	admin, err := store.GetAdmin(r.Context(), s.DB, claims.AdminID)
	if err != nil || admin == nil {
		data.Error = "Napaka pri pridobivanju uporabnika."
		s.Templates.Render(w, "settings.html", &data)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(currentPassword)); err != nil {
		data.Error = "Trenutno geslo ni pravilno."
		s.Templates.Render(w, "settings.html", &data)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		data.Error = "Napaka pri shranjevanju gesla."
		s.Templates.Render(w, "settings.html", &data)
		return
	}

	if err := store.UpdateAdminPassword(r.Context(), s.DB, claims.AdminID, string(hash)); err != nil {
		data.Error = "Napaka pri posodabljanju gesla."
		s.Templates.Render(w, "settings.html", &data)
		return
	}

	slog.Info("admin changed own password", "admin", claims.Username, "via", "web")
	data.Success = "Geslo uspešno spremenjeno."
	s.Templates.Render(w, "settings.html", &data)
}
