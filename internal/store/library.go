package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/erazemk/knjiznica/internal/circulation"
	"github.com/erazemk/knjiznica/internal/model"
)

// Library adapts the package functions to circulation.Store. Soft-deleted
// members, books and admins are reported as missing.
type Library struct {
	DB *sql.DB
}

var _ circulation.Store = (*Library)(nil)

// NewLibrary returns a Library over db.
func NewLibrary(db *sql.DB) *Library {
	return &Library{DB: db}
}

// portError maps package sentinels to the ones circulation expects.
func portError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return errors.Join(circulation.ErrNotFound, err)
	case errors.Is(err, ErrConflict):
		return errors.Join(circulation.ErrConflict, err)
	case errors.Is(err, ErrBorrowRefused):
		return errors.Join(circulation.ErrBorrowRefused, err)
	}
	return err
}

func (l *Library) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	m, err := GetMember(ctx, l.DB, id)
	if err != nil || m == nil || m.DeletedAt != nil {
		return nil, err
	}
	return m, nil
}

func (l *Library) GetBook(ctx context.Context, id int64) (*model.Book, error) {
	b, err := GetBook(ctx, l.DB, id)
	if err != nil || b == nil || b.DeletedAt != nil {
		return nil, err
	}
	return b, nil
}

func (l *Library) GetAdmin(ctx context.Context, id int64) (*model.Admin, error) {
	a, err := GetAdmin(ctx, l.DB, id)
	if err != nil || a == nil || a.DeletedAt != nil {
		return nil, err
	}
	return a, nil
}

func (l *Library) GetLoan(ctx context.Context, id int64) (*model.Loan, error) {
	return GetLoan(ctx, l.DB, id)
}

func (l *Library) CountActiveLoans(ctx context.Context, memberID int64) (int, error) {
	return CountActiveLoans(ctx, l.DB, memberID)
}

func (l *Library) CreateLoan(ctx context.Context, loan *model.Loan) (*model.Loan, error) {
	created, err := CreateLoan(ctx, l.DB, loan)
	return created, portError(err)
}

func (l *Library) DeleteLoan(ctx context.Context, id int64) error {
	return portError(DeleteLoan(ctx, l.DB, id))
}

func (l *Library) RenewLoanDetail(ctx context.Context, loanID, bookID int64, due model.Date) error {
	return portError(RenewLoanDetail(ctx, l.DB, loanID, bookID, due))
}

func (l *Library) CreateReturn(ctx context.Context, r *model.Return) (*model.Return, error) {
	created, err := CreateReturn(ctx, l.DB, r)
	return created, portError(err)
}

func (l *Library) AppendReturnDetails(ctx context.Context, returnID int64, details []model.ReturnDetail) (*model.Return, error) {
	updated, err := AppendReturnDetails(ctx, l.DB, returnID, details)
	return updated, portError(err)
}

func (l *Library) DeleteReturnDetail(ctx context.Context, returnID, detailID, bookID int64) (bool, error) {
	deleted, err := DeleteReturnDetail(ctx, l.DB, returnID, detailID, bookID)
	return deleted, portError(err)
}

func (l *Library) ListReturnDetailsJoined(ctx context.Context) ([]model.ReturnDetailRow, error) {
	return ListReturnDetailsJoined(ctx, l.DB)
}
