// Package circulation implements lending and returning of book copies: the
// loan ledger, the return processor with its fine rule, and the grouping of
// returned copies back into return batches.
package circulation

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erazemk/knjiznica/internal/model"
)

// Service runs circulation operations against a Store. It holds no mutable
// state and is safe for concurrent use.
type Service struct {
	Store      Store
	FinePerDay decimal.Decimal

	// Location is where due dates end. Defaults to time.Local.
	Location *time.Location

	// Now is the service clock. Defaults to time.Now.
	Now func() time.Time
}

// NewService returns a Service with the default clock and location.
func NewService(store Store, finePerDay decimal.Decimal) *Service {
	return &Service{Store: store, FinePerDay: finePerDay}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().In(s.location())
	}
	return time.Now().In(s.location())
}

func (s *Service) location() *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return time.Local
}

// Today is the current date in the service location.
func (s *Service) Today() model.Date {
	return model.DateOf(s.now())
}

// IssueRequest asks for copies to be lent to a member.
type IssueRequest struct {
	MemberID    int64            `json:"member_id"`
	AdminID     int64            `json:"admin_id"`
	ProcessedBy *int64           `json:"processed_by,omitempty"`
	Items       []model.LoanItem `json:"items"`
}

// Issue lends every requested copy to the member under one new loan. Either
// the loan and all its details are created or nothing is.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (*model.Loan, error) {
	if len(req.Items) == 0 {
		return nil, validationError("loan", "at least one book is required")
	}
	if req.MemberID <= 0 {
		return nil, validationError("loan", "member is required")
	}
	if req.AdminID <= 0 {
		return nil, validationError("loan", "recording admin is required")
	}

	now := s.now()
	today := model.DateOf(now)

	seen := make(map[int64]bool, len(req.Items))
	for _, item := range req.Items {
		if item.BookID <= 0 {
			return nil, validationError("loan", "book is required")
		}
		if seen[item.BookID] {
			return nil, validationError("book", "book %d requested twice", item.BookID)
		}
		seen[item.BookID] = true
		if item.DueDate.IsZero() {
			return nil, validationError("book", "due date for book %d is required", item.BookID)
		}
		if item.DueDate.Before(today) {
			return nil, validationError("book", "due date %s for book %d is before the borrow date %s",
				item.DueDate, item.BookID, today)
		}
	}

	member, err := s.Store.GetMember(ctx, req.MemberID)
	if err != nil {
		return nil, unavailable(err, "member", req.MemberID, "get member")
	}
	if member == nil {
		return nil, notFound("member", req.MemberID)
	}
	if member.Status != model.MemberActive {
		return nil, invalidState("member", member.ID, "member is not active")
	}

	if err := s.requireAdmin(ctx, req.AdminID); err != nil {
		return nil, err
	}
	if req.ProcessedBy != nil {
		if err := s.requireAdmin(ctx, *req.ProcessedBy); err != nil {
			return nil, err
		}
	}

	if member.BorrowLimit > 0 {
		active, err := s.Store.CountActiveLoans(ctx, member.ID)
		if err != nil {
			return nil, unavailable(err, "member", member.ID, "count active loans")
		}
		if active+len(req.Items) > member.BorrowLimit {
			return nil, invalidState("member", member.ID,
				"borrow limit %d exceeded (%d already borrowed)", member.BorrowLimit, active)
		}
	}

	loan := &model.Loan{
		MemberID:    member.ID,
		BorrowedAt:  now,
		Amount:      len(req.Items),
		RecordedBy:  req.AdminID,
		ProcessedBy: req.ProcessedBy,
	}
	for _, item := range req.Items {
		book, err := s.Store.GetBook(ctx, item.BookID)
		if err != nil {
			return nil, unavailable(err, "book", item.BookID, "get book")
		}
		if book == nil {
			return nil, notFound("book", item.BookID)
		}
		if book.Status != model.BookAvailable {
			return nil, invalidState("book", book.ID, "book is %s", book.Status)
		}
		loan.Books = append(loan.Books, model.LoanDetail{
			BookID:   book.ID,
			DueDate:  item.DueDate,
			Status:   model.LoanBorrowed,
			BookName: book.Name,
		})
	}

	created, err := s.Store.CreateLoan(ctx, loan)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, notFound("member", member.ID)
	case errors.Is(err, ErrBorrowRefused):
		return nil, &Error{Kind: KindInvalidState, Entity: "member", ID: member.ID,
			Msg: "member is inactive or at the borrow limit", Err: err}
	case errors.Is(err, ErrConflict):
		return nil, &Error{Kind: KindInvalidState, Entity: "book", Msg: "book is no longer available", Err: err}
	}
	if err != nil {
		return nil, unavailable(err, "loan", 0, "create loan")
	}
	if created.MemberName == "" {
		created.MemberName = member.Name
	}
	return created, nil
}

func (s *Service) requireAdmin(ctx context.Context, id int64) error {
	admin, err := s.Store.GetAdmin(ctx, id)
	if err != nil {
		return unavailable(err, "admin", id, "get admin")
	}
	if admin == nil {
		return notFound("admin", id)
	}
	return nil
}

// Loan returns a loan with its details.
func (s *Service) Loan(ctx context.Context, id int64) (*model.Loan, error) {
	loan, err := s.Store.GetLoan(ctx, id)
	if err != nil {
		return nil, unavailable(err, "loan", id, "get loan")
	}
	if loan == nil {
		return nil, notFound("loan", id)
	}
	return loan, nil
}

// DeleteLoan removes a loan and its details. Copies still out on the loan
// become available again.
func (s *Service) DeleteLoan(ctx context.Context, id int64) error {
	err := s.Store.DeleteLoan(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return notFound("loan", id)
	}
	if err != nil {
		return unavailable(err, "loan", id, "delete loan")
	}
	return nil
}

// Renew moves the due date of a borrowed copy to due.
func (s *Service) Renew(ctx context.Context, loanID, bookID int64, due model.Date) (*model.Loan, error) {
	if due.IsZero() {
		return nil, validationError("loan", "new due date is required")
	}
	if today := model.DateOf(s.now()); due.Before(today) {
		return nil, validationError("loan", "new due date %s is in the past", due)
	}

	loan, err := s.Loan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	detail := loan.Detail(bookID)
	if detail == nil {
		return nil, notFound("loan book", bookID)
	}
	if detail.Status != model.LoanBorrowed {
		return nil, invalidState("loan book", bookID, "book was already returned")
	}
	if due.Before(detail.DueDate) {
		return nil, validationError("loan", "new due date %s is before the current due date %s", due, detail.DueDate)
	}

	err = s.Store.RenewLoanDetail(ctx, loanID, bookID, due)
	if errors.Is(err, ErrConflict) {
		return nil, &Error{Kind: KindInvalidState, Entity: "loan book", ID: bookID, Msg: "book was already returned", Err: err}
	}
	if err != nil {
		return nil, unavailable(err, "loan", loanID, "renew loan")
	}
	return s.Loan(ctx, loanID)
}
