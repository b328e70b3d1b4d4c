package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/knjiznica/internal/imaging"
	"github.com/erazemk/knjiznica/internal/model"
	"github.com/erazemk/knjiznica/internal/store"
)

// BooksHandler handles catalogue endpoints.
type BooksHandler struct {
	DB *sql.DB
}

type bookRequest struct {
	ISBN        *string           `json:"isbn"`
	Name        *string           `json:"name"`
	Author      *string           `json:"author"`
	Publisher   *string           `json:"publisher"`
	PublishYear *int              `json:"publish_year"`
	Shelf       *string           `json:"shelf"`
	CategoryID  *int64            `json:"category_id"`
	Status      *model.BookStatus `json:"status"`
}

// apply copies the fields present in the request onto b.
func (req *bookRequest) apply(b *model.Book) {
	if req.ISBN != nil {
		b.ISBN = strings.TrimSpace(*req.ISBN)
	}
	if req.Name != nil {
		b.Name = strings.TrimSpace(*req.Name)
	}
	if req.Author != nil {
		b.Author = *req.Author
	}
	if req.Publisher != nil {
		b.Publisher = *req.Publisher
	}
	if req.PublishYear != nil {
		b.PublishYear = *req.PublishYear
	}
	if req.Shelf != nil {
		b.Shelf = *req.Shelf
	}
	if req.CategoryID != nil {
		if *req.CategoryID == 0 {
			b.CategoryID = nil
		} else {
			id := *req.CategoryID
			b.CategoryID = &id
		}
	}
}

// List handles GET /api/books with an optional ?status= filter.
func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	status := model.BookStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	books, err := store.ListBooks(r.Context(), h.DB, status)
	if err != nil {
		slog.Error("failed to list books", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list books")
		return
	}
	if books == nil {
		books = []model.Book{}
	}
	jsonResponse(w, http.StatusOK, books)
}

// Create handles POST /api/books. New copies are always available.
func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var book model.Book
	req.apply(&book)
	if book.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}
	if !h.checkCategory(w, r, book.CategoryID) {
		return
	}

	created, err := store.CreateBook(r.Context(), h.DB, &book)
	if err != nil {
		slog.Error("failed to create book", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create book")
		return
	}

	slog.Info("book created", "book", created.Name, "id", created.ID)
	jsonResponse(w, http.StatusCreated, created)
}

// Get handles GET /api/books/{id}.
func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	book, ok := h.load(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, book)
}

// Update handles PUT /api/books/{id}. A status in the body moves the copy
// between available and lost.
func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	book, ok := h.load(w, r)
	if !ok {
		return
	}

	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.apply(book)
	if book.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}
	if !h.checkCategory(w, r, book.CategoryID) {
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	if err := store.UpdateBook(r.Context(), h.DB, book); err != nil {
		slog.Error("failed to update book", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update book")
		return
	}

	if req.Status != nil && *req.Status != book.Status {
		if err := store.UpdateBookStatus(r.Context(), h.DB, book.ID, *req.Status); err != nil {
			storeError(w, err, "update book status", "status of a borrowed book changes only through loans and returns")
			return
		}
	}

	updated, err := store.GetBook(r.Context(), h.DB, book.ID)
	if err != nil || updated == nil {
		jsonError(w, http.StatusInternalServerError, "failed to get book")
		return
	}
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/books/{id}.
func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	book, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := store.DeleteBook(r.Context(), h.DB, book.ID); err != nil {
		storeError(w, err, "delete book", "cannot delete a borrowed book")
		return
	}

	slog.Info("book deleted", "book", book.Name, "id", book.ID)
	w.WriteHeader(http.StatusNoContent)
}

// UploadCover handles PUT /api/books/{id}/cover. The upload is scaled to fit
// the cover box and stored as JPEG.
func (h *BooksHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	book, ok := h.load(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		jsonError(w, http.StatusBadRequest, "file too large or invalid multipart form")
		return
	}

	file, _, err := r.FormFile("cover")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "cover file required")
		return
	}
	defer file.Close()

	cover, err := imaging.ProcessCover(file)
	if errors.Is(err, imaging.ErrTooLarge) {
		jsonError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SetBookCover(r.Context(), h.DB, book.ID, cover.Data, cover.MIME); err != nil {
		slog.Error("failed to save cover", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to save cover")
		return
	}

	slog.Info("book cover uploaded", "book", book.ID, "width", cover.Width, "height", cover.Height)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "cover uploaded"})
}

// GetCover handles GET /api/books/{id}/cover.
func (h *BooksHandler) GetCover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid book ID")
		return
	}

	data, mime, err := store.GetBookCover(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get cover", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get cover")
		return
	}
	if data == nil {
		jsonError(w, http.StatusNotFound, "no cover")
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(data)
}

// GetHistory handles GET /api/books/{id}/history.
func (h *BooksHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid book ID")
		return
	}

	history, err := store.GetBookHistory(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get book history", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get book history")
		return
	}
	if history == nil {
		history = []model.Loan{}
	}
	jsonResponse(w, http.StatusOK, history)
}

func (h *BooksHandler) load(w http.ResponseWriter, r *http.Request) (*model.Book, bool) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid book ID")
		return nil, false
	}

	book, err := store.GetBook(r.Context(), h.DB, id)
	if err != nil {
		slog.Error("failed to get book", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get book")
		return nil, false
	}
	if book == nil || book.DeletedAt != nil {
		jsonError(w, http.StatusNotFound, "book not found")
		return nil, false
	}
	return book, true
}

func (h *BooksHandler) checkCategory(w http.ResponseWriter, r *http.Request, id *int64) bool {
	if id == nil {
		return true
	}
	category, err := store.GetCategory(r.Context(), h.DB, *id)
	if err != nil {
		slog.Error("failed to get category", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get category")
		return false
	}
	if category == nil {
		jsonError(w, http.StatusBadRequest, "category does not exist")
		return false
	}
	return true
}
