package circulation

import (
	"context"
	"errors"

	"github.com/erazemk/knjiznica/internal/model"
)

// Sentinels a Store returns from writes.
var (
	// ErrNotFound means the row a write targets does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict means a guarded status transition lost: the row was no
	// longer in the state the write expected.
	ErrConflict = errors.New("status changed concurrently")

	// ErrBorrowRefused means the member became inactive or reached the
	// borrow limit before the loan was written.
	ErrBorrowRefused = errors.New("member cannot borrow")
)

// Store is the persistence the engine runs on. Getters return nil, nil for
// missing or soft-deleted records. Every write is atomic.
type Store interface {
	GetMember(ctx context.Context, id int64) (*model.Member, error)
	GetBook(ctx context.Context, id int64) (*model.Book, error)
	GetAdmin(ctx context.Context, id int64) (*model.Admin, error)
	GetLoan(ctx context.Context, id int64) (*model.Loan, error)
	CountActiveLoans(ctx context.Context, memberID int64) (int, error)

	// CreateLoan re-checks the member's status and borrow limit, inserts
	// the header and its details and moves every copy from available to
	// borrowed. It returns ErrNotFound, ErrBorrowRefused or ErrConflict
	// having written nothing.
	CreateLoan(ctx context.Context, loan *model.Loan) (*model.Loan, error)

	// DeleteLoan removes a loan with its details and puts copies that are
	// still out back to available.
	DeleteLoan(ctx context.Context, id int64) error

	// RenewLoanDetail sets a new due date on a borrowed detail, or returns
	// ErrConflict if it is no longer borrowed.
	RenewLoanDetail(ctx context.Context, loanID, bookID int64, due model.Date) error

	// CreateReturn and AppendReturnDetails move each loan detail from
	// borrowed to its return status, insert the return details and make
	// the copies available. A detail that is no longer borrowed fails the
	// whole call with ErrConflict.
	CreateReturn(ctx context.Context, r *model.Return) (*model.Return, error)
	AppendReturnDetails(ctx context.Context, returnID int64, details []model.ReturnDetail) (*model.Return, error)

	// DeleteReturnDetail reports whether the batch was removed with its
	// last detail.
	DeleteReturnDetail(ctx context.Context, returnID, detailID, bookID int64) (bool, error)

	ListReturnDetailsJoined(ctx context.Context) ([]model.ReturnDetailRow, error)
}
