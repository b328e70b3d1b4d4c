package web

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/knjiznica/internal/circulation"
	webembed "github.com/erazemk/knjiznica/web"
)

// NewRouter creates the web page router with all page routes registered.
func NewRouter(db *sql.DB, jwtSecret string, svc *circulation.Service) (http.Handler, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		DB:        db,
		Templates: templates,
		JWTSecret: jwtSecret,
		Service:   svc,
	}

	mux := http.NewServeMux()
	cookieAuth := CookieAuthMiddleware(jwtSecret, db)
	page := func(h http.HandlerFunc) http.Handler { return cookieAuth(h) }

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	// Public routes.
	mux.HandleFunc("GET /login", s.LoginPage)
	mux.HandleFunc("POST /login", s.LoginSubmit)
	mux.HandleFunc("POST /logout", s.Logout)

	// Authenticated routes.
	mux.Handle("GET /{$}", page(s.Dashboard))

	mux.Handle("GET /books", page(s.BooksPage))
	mux.Handle("POST /books", page(s.BookCreateSubmit))
	mux.Handle("GET /books/{id}", page(s.BookDetailPage))
	mux.Handle("POST /books/{id}", page(s.BookUpdateSubmit))
	mux.Handle("POST /books/{id}/cover", page(s.BookCoverSubmit))
	mux.Handle("GET /books/{id}/cover", page(s.BookCoverGet))

	mux.Handle("GET /members", page(s.MembersPage))
	mux.Handle("POST /members", page(s.MemberCreateSubmit))
	mux.Handle("GET /members/{id}", page(s.MemberDetailPage))
	mux.Handle("POST /members/{id}", page(s.MemberUpdateSubmit))

	mux.Handle("GET /borrow", page(s.BorrowPage))
	mux.Handle("POST /borrow", page(s.BorrowSubmit))
	mux.Handle("POST /borrow/{id}/return", page(s.ReturnSubmit))
	mux.Handle("POST /borrow/{id}/renew", page(s.RenewSubmit))
	mux.Handle("POST /borrow/{id}/delete", page(s.LoanDeleteSubmit))

	mux.Handle("GET /returned", page(s.ReturnedPage))
	mux.Handle("POST /returned/{id}/delete", page(s.ReturnDetailDeleteSubmit))

	mux.Handle("GET /admins", page(s.AdminsPage))
	mux.Handle("POST /admins", page(s.AdminCreateSubmit))
	mux.Handle("POST /admins/{id}/password", page(s.AdminResetPasswordSubmit))
	mux.Handle("POST /admins/{id}/delete", page(s.AdminDeleteSubmit))

	mux.Handle("GET /settings", page(s.SettingsPage))
	mux.Handle("POST /settings", page(s.SettingsSubmit))

	return mux, nil
}
