package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned by writes whose target row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a guarded status transition finds the row
	// in a different state than expected, e.g. a copy that is no longer
	// available or a loan detail that was already returned.
	ErrConflict = errors.New("status conflict")

	// ErrBorrowRefused is returned by CreateLoan when the member is not
	// active or the loan would take them over their borrow limit.
	ErrBorrowRefused = errors.New("member cannot borrow")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// formatTime renders a timestamp for TEXT columns.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime reads a timestamp written by formatTime.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// sumFines adds up fines stored as decimal text.
func sumFines(fines []string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, f := range fines {
		d, err := decimal.NewFromString(f)
		if err != nil {
			return decimal.Zero, fmt.Errorf("parsing fine %q: %w", f, err)
		}
		total = total.Add(d)
	}
	return total, nil
}

// affected returns the number of rows changed by result.
func affected(result sql.Result) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}
	return n, nil
}
