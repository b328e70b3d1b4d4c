package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReturnStatus records whether a copy came back after its due date.
type ReturnStatus string

// Return statuses.
const (
	ReturnLate   ReturnStatus = "Late"
	ReturnOnTime ReturnStatus = "OnTime"
)

// Valid reports whether s is a known return status.
func (s ReturnStatus) Valid() bool {
	return s == ReturnLate || s == ReturnOnTime
}

// LoanStatus is the loan detail status a return with status s leaves behind.
func (s ReturnStatus) LoanStatus() LoanStatus {
	if s == ReturnLate {
		return LoanLate
	}
	return LoanOnTime
}

// Return is a return batch header: copies closed together by one admin.
type Return struct {
	ID          int64           `json:"return_id"`
	ReturnedAt  time.Time       `json:"return_date"`
	TotalFine   decimal.Decimal `json:"totalfine"`
	ProcessedBy int64           `json:"processed_by"`

	// Joined fields (not always populated).
	ProcessedByName string         `json:"processed_by_name,omitempty"`
	Details         []ReturnDetail `json:"items"`
}

// ReturnDetail is one returned copy inside a return batch.
type ReturnDetail struct {
	ID           int64           `json:"detail_returned_id"`
	ReturnID     int64           `json:"return_id"`
	LoanDetailID int64           `json:"detail_borrow_id"`
	LoanID       int64           `json:"borrow_id"`
	BookID       int64           `json:"book_id"`
	ReturnedAt   time.Time       `json:"return_date"`
	DueDate      Date            `json:"due_date"`
	LateDays     int             `json:"late_days"`
	Fine         decimal.Decimal `json:"fine"`
	Status       ReturnStatus    `json:"status"`

	// Joined fields (not always populated).
	BookName string `json:"book_name,omitempty"`
}

// ReturnDetailRow is a return detail pre-joined with its loan, book, member
// and return header, exactly as storage delivers it. Date and money columns
// are left raw; readers must tolerate any of them being empty or malformed.
type ReturnDetailRow struct {
	ReturnID         int64
	DetailID         int64
	LoanID           *int64
	BookID           int64
	BookName         string
	MemberName       string
	DueDate          string
	DetailReturnedAt string
	ReturnedAt       string
	TotalFine        string
	Fine             string
	Status           string
	ProcessedBy      *int64
	ProcessedByName  string
}

// Assessment is the lateness and fine derived for one returned copy.
type Assessment struct {
	LateDays int             `json:"late_days"`
	Fine     decimal.Decimal `json:"fine"`
	Status   ReturnStatus    `json:"status"`
}

// ReturnBatch is a return header with its detail lines, rebuilt for display.
type ReturnBatch struct {
	ReturnID        int64           `json:"return_id"`
	ReturnDate      time.Time       `json:"return_date"`
	TotalFine       decimal.Decimal `json:"totalfine"`
	ProcessedBy     *int64          `json:"processed_by,omitempty"`
	ProcessedByName string          `json:"processed_by_name"`
	Details         []ReturnLine    `json:"details"`
}

// MemberName is the borrower shown for the batch (taken from its first line).
func (b *ReturnBatch) MemberName() string {
	if len(b.Details) == 0 {
		return ""
	}
	return b.Details[0].MemberName
}

// ReturnLine is one copy inside a ReturnBatch. Fine and Status are the values
// recorded when the copy was returned and are the financial record; Assessed
// is recomputed from the dates at read time for display only.
type ReturnLine struct {
	DetailID   int64           `json:"detail_returned_id"`
	LoanID     *int64          `json:"borrow_id,omitempty"`
	BookID     int64           `json:"book_id"`
	BookName   string          `json:"book_name"`
	MemberName string          `json:"member_name"`
	DueDate    Date            `json:"due_date"`
	ReturnDate time.Time       `json:"return_date"`
	Fine       decimal.Decimal `json:"fine"`
	Status     ReturnStatus    `json:"status"`
	Assessed   Assessment      `json:"assessed"`
}

// DashboardStats are the headline counts for the admin dashboard.
type DashboardStats struct {
	TotalBooks    int `json:"total_books"`
	TotalMembers  int `json:"total_members"`
	BorrowedBooks int `json:"borrowed_books"`
	OverdueBooks  int `json:"overdue_books"`
}
