package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/erazemk/knjiznica/internal/model"
)

func seedAdmin(t *testing.T, database *sql.DB, username string) *model.Admin {
	t.Helper()
	a, err := CreateAdmin(context.Background(), database, &model.Admin{
		Username:     username,
		PasswordHash: "x",
		Name:         "Admin " + username,
		Role:         model.RoleLibrarian,
	})
	if err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	return a
}

func seedMember(t *testing.T, database *sql.DB, name string) *model.Member {
	t.Helper()
	m, err := CreateMember(context.Background(), database, &model.Member{
		Name:        name,
		BorrowLimit: model.DefaultBorrowLimit,
	})
	if err != nil {
		t.Fatalf("CreateMember: %v", err)
	}
	return m
}

func seedBook(t *testing.T, database *sql.DB, name string) *model.Book {
	t.Helper()
	b, err := CreateBook(context.Background(), database, &model.Book{Name: name})
	if err != nil {
		t.Fatalf("CreateBook: %v", err)
	}
	return b
}

func bookStatus(t *testing.T, database *sql.DB, id int64) model.BookStatus {
	t.Helper()
	b, err := GetBook(context.Background(), database, id)
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if b == nil {
		t.Fatalf("book %d not found", id)
	}
	return b.Status
}
