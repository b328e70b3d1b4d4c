package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, svc *circulation.Service) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	adminsHandler := &AdminsHandler{DB: db}
	categoriesHandler := &CategoriesHandler{DB: db}
	booksHandler := &BooksHandler{DB: db}
	membersHandler := &MembersHandler{DB: db}
	borrowHandler := &BorrowHandler{DB: db, Service: svc}
	returnsHandler := &ReturnsHandler{Service: svc}
	dashboardHandler := &DashboardHandler{DB: db, Service: svc}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)
	staff := func(h http.HandlerFunc) http.Handler {
		return authMW(RequireRole(model.RoleLibrarian)(h))
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return authMW(requireAdmin(h))
	}

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", staff(authHandler.ChangePassword))
	mux.Handle("POST /api/auth/logout", staff(authHandler.Logout))

	// Admins (admin role only).
	mux.Handle("GET /api/admins", admin(adminsHandler.List))
	mux.Handle("POST /api/admins", admin(adminsHandler.Create))
	mux.Handle("GET /api/admins/{id}", admin(adminsHandler.Get))
	mux.Handle("PUT /api/admins/{id}", admin(adminsHandler.Update))
	mux.Handle("PUT /api/admins/{id}/password", admin(adminsHandler.ResetPassword))
	mux.Handle("DELETE /api/admins/{id}", admin(adminsHandler.Delete))

	// Catalogue.
	mux.Handle("GET /api/categories", staff(categoriesHandler.List))
	mux.Handle("POST /api/categories", staff(categoriesHandler.Create))
	mux.Handle("GET /api/categories/{id}", staff(categoriesHandler.Get))
	mux.Handle("PUT /api/categories/{id}", staff(categoriesHandler.Update))
	mux.Handle("DELETE /api/categories/{id}", staff(categoriesHandler.Delete))

	mux.Handle("GET /api/books", staff(booksHandler.List))
	mux.Handle("POST /api/books", staff(booksHandler.Create))
	mux.Handle("GET /api/books/{id}", staff(booksHandler.Get))
	mux.Handle("PUT /api/books/{id}", staff(booksHandler.Update))
	mux.Handle("DELETE /api/books/{id}", staff(booksHandler.Delete))
	mux.Handle("PUT /api/books/{id}/cover", staff(booksHandler.UploadCover))
	mux.Handle("GET /api/books/{id}/cover", staff(booksHandler.GetCover))
	mux.Handle("GET /api/books/{id}/history", staff(booksHandler.GetHistory))

	// Members.
	mux.Handle("GET /api/members", staff(membersHandler.List))
	mux.Handle("POST /api/members", staff(membersHandler.Create))
	mux.Handle("GET /api/members/{id}", staff(membersHandler.Get))
	mux.Handle("PUT /api/members/{id}", staff(membersHandler.Update))
	mux.Handle("DELETE /api/members/{id}", staff(membersHandler.Delete))
	mux.Handle("GET /api/members/{id}/loans", staff(membersHandler.Loans))

	// Circulation.
	mux.Handle("GET /api/borrow", staff(borrowHandler.List))
	mux.Handle("POST /api/borrow", staff(borrowHandler.Create))
	mux.Handle("GET /api/borrow/overdue", staff(borrowHandler.Overdue))
	mux.Handle("GET /api/borrow/{id}", staff(borrowHandler.Get))
	mux.Handle("DELETE /api/borrow/{id}", staff(borrowHandler.Delete))
	mux.Handle("POST /api/borrow/{id}/renew", staff(borrowHandler.Renew))

	mux.Handle("POST /api/returns", staff(returnsHandler.Create))
	mux.Handle("GET /api/returns", staff(returnsHandler.List))
	mux.Handle("DELETE /api/return-details/{id}", staff(returnsHandler.DeleteDetail))

	mux.Handle("GET /api/dashboard", staff(dashboardHandler.Get))

	return mux
}
