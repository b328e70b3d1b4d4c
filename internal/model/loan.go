package model

import "time"

// LoanStatus is the state of one copy within a loan.
type LoanStatus string

// Loan detail statuses. Late and OnTime are only set when the copy is returned.
const (
	LoanBorrowed LoanStatus = "borrowed"
	LoanLate     LoanStatus = "Late"
	LoanOnTime   LoanStatus = "OnTime"
)

// Valid reports whether s is a known loan detail status.
func (s LoanStatus) Valid() bool {
	switch s {
	case LoanBorrowed, LoanLate, LoanOnTime:
		return true
	}
	return false
}

// Returned reports whether the copy has been brought back.
func (s LoanStatus) Returned() bool {
	return s == LoanLate || s == LoanOnTime
}

// Loan is one checkout event (a borrow record) covering one or more copies.
type Loan struct {
	ID          int64     `json:"borrow_id"`
	MemberID    int64     `json:"member_id"`
	BorrowedAt  time.Time `json:"borrow_date"`
	Amount      int       `json:"amount"`
	RecordedBy  int64     `json:"recorded_by"`
	ProcessedBy *int64    `json:"processed_by,omitempty"`

	// Joined fields (not always populated).
	MemberName     string       `json:"member_name,omitempty"`
	RecordedByName string       `json:"recorded_by_name,omitempty"`
	Books          []LoanDetail `json:"books"`
}

// Open reports whether any copy of the loan is still out.
func (l *Loan) Open() bool {
	for _, d := range l.Books {
		if d.Status == LoanBorrowed {
			return true
		}
	}
	return false
}

// Detail returns the loan's line for bookID, or nil.
func (l *Loan) Detail(bookID int64) *LoanDetail {
	for i := range l.Books {
		if l.Books[i].BookID == bookID {
			return &l.Books[i]
		}
	}
	return nil
}

// LoanDetail is one borrowed copy within a loan.
type LoanDetail struct {
	ID         int64      `json:"detail_borrow_id"`
	LoanID     int64      `json:"borrow_id"`
	BookID     int64      `json:"book_id"`
	DueDate    Date       `json:"due_date"`
	RenewCount int        `json:"renew_count"`
	Status     LoanStatus `json:"status"`

	// Joined fields (not always populated).
	BookName string `json:"book_name,omitempty"`
}

// LoanItem asks for one copy to be lent until DueDate.
type LoanItem struct {
	BookID  int64 `json:"book_id"`
	DueDate Date  `json:"due_date"`
}
