package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

const bookColumns = `b.id, b.isbn, b.name, b.author, b.publisher, b.publish_year, b.shelf,
	b.category_id, COALESCE(c.name, ''), b.status, b.cover_mime, b.created_at, b.updated_at, b.deleted_at`

func scanBook(row interface{ Scan(...any) error }, b *model.Book) error {
	var coverMime sql.NullString
	err := row.Scan(&b.ID, &b.ISBN, &b.Name, &b.Author, &b.Publisher, &b.PublishYear, &b.Shelf,
		&b.CategoryID, &b.CategoryName, &b.Status, &coverMime, &b.CreatedAt, &b.UpdatedAt, &b.DeletedAt)
	b.CoverMime = coverMime.String
	return err
}

// CreateBook adds a new copy to the catalogue. New copies are always available.
func CreateBook(ctx context.Context, db *sql.DB, b *model.Book) (*model.Book, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO books (isbn, name, author, publisher, publish_year, shelf, category_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ISBN, b.Name, b.Author, b.Publisher, b.PublishYear, b.Shelf, b.CategoryID,
	)
	if err != nil {
		return nil, fmt.Errorf("creating book: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting book id: %w", err)
	}

	return GetBook(ctx, db, id)
}

// GetBook returns a book by ID, including soft-deleted ones.
func GetBook(ctx context.Context, db *sql.DB, id int64) (*model.Book, error) {
	b := &model.Book{}
	err := scanBook(db.QueryRowContext(ctx,
		`SELECT `+bookColumns+`
		 FROM books b LEFT JOIN categories c ON c.id = b.category_id
		 WHERE b.id = ?`, id,
	), b)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting book: %w", err)
	}
	return b, nil
}

// ListBooks returns all non-deleted books, optionally filtered by status.
func ListBooks(ctx context.Context, db *sql.DB, status model.BookStatus) ([]model.Book, error) {
	query := `SELECT ` + bookColumns + `
	          FROM books b LEFT JOIN categories c ON c.id = b.category_id
	          WHERE b.deleted_at IS NULL`
	var args []any
	if status != "" {
		query += ` AND b.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY b.id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing books: %w", err)
	}
	defer rows.Close()

	var books []model.Book
	for rows.Next() {
		var b model.Book
		if err := scanBook(rows, &b); err != nil {
			return nil, fmt.Errorf("scanning book: %w", err)
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// UpdateBook updates a book's catalogue metadata. Status is not touched.
func UpdateBook(ctx context.Context, db *sql.DB, b *model.Book) error {
	_, err := db.ExecContext(ctx,
		`UPDATE books SET isbn = ?, name = ?, author = ?, publisher = ?, publish_year = ?,
		        shelf = ?, category_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		b.ISBN, b.Name, b.Author, b.Publisher, b.PublishYear, b.Shelf, b.CategoryID, b.ID,
	)
	if err != nil {
		return fmt.Errorf("updating book: %w", err)
	}
	return nil
}

// UpdateBookStatus moves a copy between available and lost. Borrowed copies
// only change state through loans and returns, so both setting and leaving
// the borrowed state are rejected with ErrConflict.
func UpdateBookStatus(ctx context.Context, db *sql.DB, id int64, status model.BookStatus) error {
	if status != model.BookAvailable && status != model.BookLost {
		return fmt.Errorf("book status %q cannot be set directly: %w", status, ErrConflict)
	}

	result, err := db.ExecContext(ctx,
		`UPDATE books SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL AND status != 'borrowed'`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("updating book status: %w", err)
	}
	n, err := affected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		b, err := GetBook(ctx, db, id)
		if err != nil {
			return err
		}
		if b == nil || b.DeletedAt != nil {
			return ErrNotFound
		}
		return fmt.Errorf("book %d is borrowed: %w", id, ErrConflict)
	}
	return nil
}

// DeleteBook soft-deletes a book. Fails with ErrConflict while it is borrowed.
func DeleteBook(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE books SET deleted_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL AND status != 'borrowed'`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting book: %w", err)
	}
	n, err := affected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		b, err := GetBook(ctx, db, id)
		if err != nil {
			return err
		}
		if b != nil && b.DeletedAt == nil {
			return fmt.Errorf("cannot delete book %d while it is borrowed: %w", id, ErrConflict)
		}
	}
	return nil
}

// SetBookCover stores a book's cover image.
func SetBookCover(ctx context.Context, db *sql.DB, id int64, image []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE books SET cover = ?, cover_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting book cover: %w", err)
	}
	return nil
}

// GetBookCover returns a book's cover image and MIME type.
func GetBookCover(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT cover, cover_mime FROM books WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting book cover: %w", err)
	}
	return image, mime.String, nil
}
