package model

import "time"

// BookStatus is the circulation state of a single loanable copy.
type BookStatus string

// Book statuses.
const (
	BookAvailable BookStatus = "available"
	BookBorrowed  BookStatus = "borrowed"
	BookLost      BookStatus = "lost"
)

// Valid reports whether s is a known book status.
func (s BookStatus) Valid() bool {
	switch s {
	case BookAvailable, BookBorrowed, BookLost:
		return true
	}
	return false
}

// Book is one loanable copy together with its catalogue metadata.
type Book struct {
	ID           int64      `json:"id"`
	ISBN         string     `json:"isbn,omitempty"`
	Name         string     `json:"name"`
	Author       string     `json:"author,omitempty"`
	Publisher    string     `json:"publisher,omitempty"`
	PublishYear  int        `json:"publish_year,omitempty"`
	Shelf        string     `json:"shelf,omitempty"`
	CategoryID   *int64     `json:"category_id,omitempty"`
	Status       BookStatus `json:"status"`
	CoverMime    string     `json:"cover_mime,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`

	// Joined fields (not always populated).
	CategoryName string `json:"category_name,omitempty"`
}

// Category groups books on the shelves.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
