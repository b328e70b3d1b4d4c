package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

// GetDashboardStats counts catalogue and circulation totals. A borrowed copy
// is overdue once today is past its due date.
func GetDashboardStats(ctx context.Context, db *sql.DB, today model.Date) (*model.DashboardStats, error) {
	s := &model.DashboardStats{}
	err := db.QueryRowContext(ctx,
		`SELECT
		     (SELECT COUNT(*) FROM books WHERE deleted_at IS NULL),
		     (SELECT COUNT(*) FROM members WHERE deleted_at IS NULL),
		     (SELECT COUNT(*) FROM borrow_details WHERE status = 'borrowed'),
		     (SELECT COUNT(*) FROM borrow_details WHERE status = 'borrowed' AND due_date < ?)`,
		today.String(),
	).Scan(&s.TotalBooks, &s.TotalMembers, &s.BorrowedBooks, &s.OverdueBooks)
	if err != nil {
		return nil, fmt.Errorf("getting dashboard stats: %w", err)
	}
	return s, nil
}

// ListOverdue returns the borrowed loan details whose due date is before
// today, oldest due date first.
func ListOverdue(ctx context.Context, db *sql.DB, today model.Date) ([]model.LoanDetail, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+loanDetailColumns+`
		 FROM borrow_details bd
		 LEFT JOIN books b ON b.id = bd.book_id
		 WHERE bd.status = 'borrowed' AND bd.due_date < ?
		 ORDER BY bd.due_date, bd.id`,
		today.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("listing overdue loans: %w", err)
	}
	defer rows.Close()

	var out []model.LoanDetail
	for rows.Next() {
		var d model.LoanDetail
		if err := scanLoanDetail(rows, &d); err != nil {
			return nil, fmt.Errorf("scanning overdue loan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
