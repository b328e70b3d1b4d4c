package store

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/knjiznica/internal/db"
	"github.com/erazemk/knjiznica/internal/model"
)

// issueOne lends a fresh copy named name and returns the loan.
func issueOne(t *testing.T, database *sql.DB, adminID, memberID int64, name string, due model.Date) *model.Loan {
	t.Helper()
	book := seedBook(t, database, name)
	loan, err := CreateLoan(context.Background(), database, &model.Loan{
		MemberID: memberID, BorrowedAt: time.Now(), RecordedBy: adminID,
		Books: []model.LoanDetail{{BookID: book.ID, DueDate: due}},
	})
	if err != nil {
		t.Fatalf("CreateLoan: %v", err)
	}
	return loan
}

func returnDetailFor(loan *model.Loan, fine int64, status model.ReturnStatus) model.ReturnDetail {
	return model.ReturnDetail{
		LoanDetailID: loan.Books[0].ID,
		BookID:       loan.Books[0].BookID,
		Fine:         decimal.NewFromInt(fine),
		Status:       status,
	}
}

func TestCreateReturn(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := seedAdmin(t, database, "desk")
	member := seedMember(t, database, "Ana")
	due := model.NewDate(2024, time.January, 10)
	l1 := issueOne(t, database, admin.ID, member.ID, "One", due)
	l2 := issueOne(t, database, admin.ID, member.ID, "Two", due)
	l3 := issueOne(t, database, admin.ID, member.ID, "Three", due)

	at := time.Date(2024, time.January, 12, 9, 30, 0, 0, time.UTC)
	ret, err := CreateReturn(ctx, database, &model.Return{
		ReturnedAt:  at,
		ProcessedBy: admin.ID,
		Details: []model.ReturnDetail{
			returnDetailFor(l1, 0, model.ReturnOnTime),
			returnDetailFor(l2, 5, model.ReturnLate),
			returnDetailFor(l3, 10, model.ReturnLate),
		},
	})
	if err != nil {
		t.Fatalf("CreateReturn: %v", err)
	}
	if !ret.TotalFine.Equal(decimal.NewFromInt(15)) {
		t.Errorf("expected total 15, got %s", ret.TotalFine)
	}
	if len(ret.Details) != 3 {
		t.Fatalf("expected 3 details, got %d", len(ret.Details))
	}
	if !ret.ReturnedAt.Equal(at) {
		t.Errorf("expected return time %v, got %v", at, ret.ReturnedAt)
	}
	if ret.ProcessedByName != "Admin desk" {
		t.Errorf("unexpected processor name %q", ret.ProcessedByName)
	}
	if ret.Details[1].LoanID != l2.ID || ret.Details[1].DueDate != due {
		t.Errorf("unexpected detail: %+v", ret.Details[1])
	}

	for _, l := range []*model.Loan{l1, l2, l3} {
		if got := bookStatus(t, database, l.Books[0].BookID); got != model.BookAvailable {
			t.Errorf("expected book available after return, got %s", got)
		}
	}
	got, _ := GetLoan(ctx, database, l2.ID)
	if got.Books[0].Status != model.LoanLate {
		t.Errorf("expected loan detail Late, got %s", got.Books[0].Status)
	}
}

func TestCreateReturnRejectsDoubleReturn(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := seedAdmin(t, database, "desk")
	member := seedMember(t, database, "Ana")
	loan := issueOne(t, database, admin.ID, member.ID, "One", model.NewDate(2030, time.January, 1))

	r := &model.Return{
		ReturnedAt:  time.Now(),
		ProcessedBy: admin.ID,
		Details:     []model.ReturnDetail{returnDetailFor(loan, 0, model.ReturnOnTime)},
	}
	if _, err := CreateReturn(ctx, database, r); err != nil {
		t.Fatalf("first CreateReturn: %v", err)
	}
	if _, err := CreateReturn(ctx, database, r); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on second return, got %v", err)
	}

	rows, err := ListReturnDetailsJoined(ctx, database)
	if err != nil {
		t.Fatalf("ListReturnDetailsJoined: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("expected exactly one return detail, got %d", len(rows))
	}
}

func TestAppendReturnDetails(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := seedAdmin(t, database, "desk")
	member := seedMember(t, database, "Ana")
	due := model.NewDate(2024, time.January, 10)
	l1 := issueOne(t, database, admin.ID, member.ID, "One", due)
	l2 := issueOne(t, database, admin.ID, member.ID, "Two", due)

	ret, err := CreateReturn(ctx, database, &model.Return{
		ReturnedAt:  time.Now(),
		ProcessedBy: admin.ID,
		Details:     []model.ReturnDetail{returnDetailFor(l1, 5, model.ReturnLate)},
	})
	if err != nil {
		t.Fatalf("CreateReturn: %v", err)
	}

	updated, err := AppendReturnDetails(ctx, database, ret.ID,
		[]model.ReturnDetail{returnDetailFor(l2, 10, model.ReturnLate)})
	if err != nil {
		t.Fatalf("AppendReturnDetails: %v", err)
	}
	if len(updated.Details) != 2 {
		t.Fatalf("expected 2 details, got %d", len(updated.Details))
	}
	if !updated.TotalFine.Equal(decimal.NewFromInt(15)) {
		t.Errorf("expected total 15, got %s", updated.TotalFine)
	}

	_, err = AppendReturnDetails(ctx, database, 9999, []model.ReturnDetail{returnDetailFor(l2, 0, model.ReturnOnTime)})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing return, got %v", err)
	}
}

func TestDeleteReturnDetail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := seedAdmin(t, database, "desk")
	member := seedMember(t, database, "Ana")
	due := model.NewDate(2024, time.January, 10)
	l1 := issueOne(t, database, admin.ID, member.ID, "One", due)
	l2 := issueOne(t, database, admin.ID, member.ID, "Two", due)

	ret, err := CreateReturn(ctx, database, &model.Return{
		ReturnedAt:  time.Now(),
		ProcessedBy: admin.ID,
		Details: []model.ReturnDetail{
			returnDetailFor(l1, 5, model.ReturnLate),
			returnDetailFor(l2, 10, model.ReturnLate),
		},
	})
	if err != nil {
		t.Fatalf("CreateReturn: %v", err)
	}
	first, second := ret.Details[0], ret.Details[1]

	// Wrong book for the detail.
	if _, err := DeleteReturnDetail(ctx, database, ret.ID, first.ID, second.BookID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for mismatched book, got %v", err)
	}

	deleted, err := DeleteReturnDetail(ctx, database, ret.ID, first.ID, first.BookID)
	if err != nil {
		t.Fatalf("DeleteReturnDetail: %v", err)
	}
	if deleted {
		t.Error("expected return to survive with one detail left")
	}
	remaining, _ := GetReturn(ctx, database, ret.ID)
	if !remaining.TotalFine.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected total 10, got %s", remaining.TotalFine)
	}

	deleted, err = DeleteReturnDetail(ctx, database, ret.ID, second.ID, second.BookID)
	if err != nil {
		t.Fatalf("DeleteReturnDetail: %v", err)
	}
	if !deleted {
		t.Error("expected return to be deleted with its last detail")
	}
	if gone, _ := GetReturn(ctx, database, ret.ID); gone != nil {
		t.Error("expected return to be gone")
	}

	// The loan detail stays closed.
	got, _ := GetLoan(ctx, database, l1.ID)
	if got.Books[0].Status != model.LoanLate {
		t.Errorf("expected loan detail to stay Late, got %s", got.Books[0].Status)
	}
}

func TestListReturnDetailsJoined(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := seedAdmin(t, database, "desk")
	member := seedMember(t, database, "Ana")
	due := model.NewDate(2024, time.January, 10)
	l1 := issueOne(t, database, admin.ID, member.ID, "One", due)
	l2 := issueOne(t, database, admin.ID, member.ID, "Two", due)
	l3 := issueOne(t, database, admin.ID, member.ID, "Three", due)

	older, err := CreateReturn(ctx, database, &model.Return{
		ReturnedAt: time.Now(), ProcessedBy: admin.ID,
		Details: []model.ReturnDetail{returnDetailFor(l1, 0, model.ReturnOnTime), returnDetailFor(l2, 5, model.ReturnLate)},
	})
	if err != nil {
		t.Fatalf("CreateReturn: %v", err)
	}
	newer, err := CreateReturn(ctx, database, &model.Return{
		ReturnedAt: time.Now(), ProcessedBy: admin.ID,
		Details: []model.ReturnDetail{returnDetailFor(l3, 0, model.ReturnOnTime)},
	})
	if err != nil {
		t.Fatalf("CreateReturn: %v", err)
	}

	rows, err := ListReturnDetailsJoined(ctx, database)
	if err != nil {
		t.Fatalf("ListReturnDetailsJoined: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	wantOrder := []int64{newer.ID, older.ID, older.ID}
	for i, row := range rows {
		if row.ReturnID != wantOrder[i] {
			t.Errorf("row %d: expected return %d, got %d", i, wantOrder[i], row.ReturnID)
		}
	}
	r := rows[1]
	if r.BookName != "One" || r.MemberName != "Ana" || r.DueDate != "2024-01-10" {
		t.Errorf("unexpected joined row: %+v", r)
	}
	if r.LoanID == nil || *r.LoanID != l1.ID {
		t.Errorf("expected loan id %d, got %v", l1.ID, r.LoanID)
	}
	if r.ProcessedByName != "Admin desk" || r.ProcessedBy == nil || *r.ProcessedBy != admin.ID {
		t.Errorf("unexpected processor: %v %q", r.ProcessedBy, r.ProcessedByName)
	}
	if r.TotalFine != "5" || r.Fine != "0" {
		t.Errorf("unexpected amounts: total %q fine %q", r.TotalFine, r.Fine)
	}
}

func TestWritesReturnCommittedState(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	admin := seedAdmin(t, database, "desk")
	member := seedMember(t, database, "Ana")
	loan := issueOne(t, database, admin.ID, member.ID, "One", model.NewDate(2024, time.January, 10))
	other := issueOne(t, database, admin.ID, member.ID, "Two", model.NewDate(2024, time.January, 10))

	stored, err := GetLoan(ctx, database, loan.ID)
	if err != nil {
		t.Fatalf("GetLoan: %v", err)
	}
	if !reflect.DeepEqual(loan, stored) {
		t.Errorf("CreateLoan result differs from stored loan:\n got %+v\nwant %+v", loan, stored)
	}

	ret, err := CreateReturn(ctx, database, &model.Return{
		ReturnedAt:  time.Date(2024, time.January, 12, 9, 0, 0, 0, time.UTC),
		ProcessedBy: admin.ID,
		Details:     []model.ReturnDetail{returnDetailFor(loan, 10, model.ReturnLate)},
	})
	if err != nil {
		t.Fatalf("CreateReturn: %v", err)
	}
	storedRet, err := GetReturn(ctx, database, ret.ID)
	if err != nil {
		t.Fatalf("GetReturn: %v", err)
	}
	if !reflect.DeepEqual(ret, storedRet) {
		t.Errorf("CreateReturn result differs from stored return:\n got %+v\nwant %+v", ret, storedRet)
	}

	appended, err := AppendReturnDetails(ctx, database, ret.ID,
		[]model.ReturnDetail{returnDetailFor(other, 10, model.ReturnLate)})
	if err != nil {
		t.Fatalf("AppendReturnDetails: %v", err)
	}
	if storedRet, err = GetReturn(ctx, database, ret.ID); err != nil {
		t.Fatalf("GetReturn: %v", err)
	}
	if !reflect.DeepEqual(appended, storedRet) {
		t.Errorf("AppendReturnDetails result differs from stored return:\n got %+v\nwant %+v", appended, storedRet)
	}
}
