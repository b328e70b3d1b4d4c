package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/erazemk/knjiznica/internal/imaging"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// BooksPage handles GET /books.
func (s *Server) BooksPage(w http.ResponseWriter, r *http.Request) {
	s.renderBooks(w, r, "")
}

func (s *Server) renderBooks(w http.ResponseWriter, r *http.Request, errMsg string) {
	status := model.BookStatus(r.URL.Query().Get("status"))
	if !status.Valid() {
		status = ""
	}

	books, err := store.ListBooks(r.Context(), s.DB, status)
	if err != nil {
		slog.Error("failed to list books", "error", err)
	}
	categories, err := store.ListCategories(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list categories", "error", err)
	}

	data := s.page(r, "Knjige")
	data.Error = errMsg
	s.Templates.Render(w, "books.html", &struct {
		PageData
		Books      []model.Book
		Categories []model.Category
		Status     model.BookStatus
	}{
		PageData:   data,
		Books:      books,
		Categories: categories,
		Status:     status,
	})
}

// bookFromForm reads the catalogue fields of the book form into b.
func bookFromForm(r *http.Request, b *model.Book) {
	b.Name = strings.TrimSpace(r.FormValue("name"))
	b.ISBN = strings.TrimSpace(r.FormValue("isbn"))
	b.Author = r.FormValue("author")
	b.Publisher = r.FormValue("publisher")
	b.Shelf = r.FormValue("shelf")
	b.PublishYear, _ = strconv.Atoi(r.FormValue("publish_year"))
	b.CategoryID = nil
	if id, err := strconv.ParseInt(r.FormValue("category_id"), 10, 64); err == nil && id > 0 {
		b.CategoryID = &id
	}
}

// BookCreateSubmit handles POST /books.
func (s *Server) BookCreateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	var book model.Book
	bookFromForm(r, &book)
	if book.Name == "" {
		s.renderBooks(w, r, "Vnesite naslov knjige.")
		return
	}

	created, err := store.CreateBook(r.Context(), s.DB, &book)
	if err != nil {
		slog.Error("failed to create book", "error", err)
		s.renderBooks(w, r, "Napaka pri dodajanju knjige.")
		return
	}

	slog.Info("book created", "admin", claims.Username, "book", created.Name, "id", created.ID)
	http.Redirect(w, r, "/books", http.StatusSeeOther)
}

// BookDetailPage handles GET /books/{id}.
func (s *Server) BookDetailPage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	s.renderBook(w, r, id, "")
}

func (s *Server) renderBook(w http.ResponseWriter, r *http.Request, id int64, errMsg string) {
	book, err := store.GetBook(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to get book", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if book == nil || book.DeletedAt != nil {
		http.Error(w, "book not found", http.StatusNotFound)
		return
	}

	history, err := store.GetBookHistory(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to get book history", "error", err)
	}
	categories, err := store.ListCategories(r.Context(), s.DB)
	if err != nil {
		slog.Error("failed to list categories", "error", err)
	}

	data := s.page(r, book.Name)
	data.Error = errMsg
	s.Templates.Render(w, "book_detail.html", &struct {
		PageData
		Book       *model.Book
		History    []model.Loan
		Categories []model.Category
	}{
		PageData:   data,
		Book:       book,
		History:    history,
		Categories: categories,
	})
}

// BookUpdateSubmit handles POST /books/{id}.
func (s *Server) BookUpdateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	book, err := store.GetBook(r.Context(), s.DB, id)
	if err != nil || book == nil || book.DeletedAt != nil {
		http.Error(w, "book not found", http.StatusNotFound)
		return
	}

	bookFromForm(r, book)
	if book.Name == "" {
		s.renderBook(w, r, id, "Vnesite naslov knjige.")
		return
	}
	if err := store.UpdateBook(r.Context(), s.DB, book); err != nil {
		slog.Error("failed to update book", "error", err)
		http.Error(w, "failed to update", http.StatusInternalServerError)
		return
	}

	status := model.BookStatus(r.FormValue("status"))
	if status != "" && status != book.Status {
		if err := store.UpdateBookStatus(r.Context(), s.DB, id, status); err != nil {
			slog.Warn("failed to change book status", "error", err)
			s.renderBook(w, r, id, "Stanja izposojene knjige ni mogoče spremeniti ročno.")
			return
		}
	}

	slog.Info("book updated", "admin", claims.Username, "book", book.Name, "status", status)
	http.Redirect(w, r, fmt.Sprintf("/books/%d", id), http.StatusSeeOther)
}

// BookCoverSubmit handles POST /books/{id}/cover.
func (s *Server) BookCoverSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		s.renderBook(w, r, id, "Slika je prevelika.")
		return
	}

	file, _, err := r.FormFile("cover")
	if err != nil {
		s.renderBook(w, r, id, "Izberite sliko naslovnice.")
		return
	}
	defer file.Close()

	cover, err := imaging.ProcessCover(file)
	if err != nil {
		s.renderBook(w, r, id, err.Error())
		return
	}

	if err := store.SetBookCover(r.Context(), s.DB, id, cover.Data, cover.MIME); err != nil {
		slog.Error("failed to save cover", "error", err)
		http.Error(w, "failed to save cover", http.StatusInternalServerError)
		return
	}

	slog.Info("book cover uploaded", "admin", claims.Username, "book", id)
	http.Redirect(w, r, fmt.Sprintf("/books/%d", id), http.StatusSeeOther)
}

// BookCoverGet handles GET /books/{id}/cover (web route, cookie-authenticated).
func (s *Server) BookCoverGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	data, mime, err := store.GetBookCover(r.Context(), s.DB, id)
	if err != nil {
		slog.Error("failed to get cover", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if data == nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := w.Write(data); err != nil {
		slog.Error("failed to write cover response", "error", err)
	}
}
