package model

import "time"

// MemberStatus is the standing of a library member.
type MemberStatus string

// Member statuses.
const (
	MemberActive   MemberStatus = "active"
	MemberInactive MemberStatus = "inactive"
)

// Valid reports whether s is a known member status.
func (s MemberStatus) Valid() bool {
	return s == MemberActive || s == MemberInactive
}

// DefaultBorrowLimit is the borrow limit given to new members.
const DefaultBorrowLimit = 5

// Member is a borrower.
type Member struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	FirstName    string       `json:"first_name,omitempty"`
	LastName     string       `json:"last_name,omitempty"`
	Email        string       `json:"email,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	BorrowLimit  int          `json:"borrow_limit"`
	RegisteredOn Date         `json:"registered_on"`
	Status       MemberStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	DeletedAt    *time.Time   `json:"deleted_at,omitempty"`
}
