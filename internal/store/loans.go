package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/knjiznica/internal/model"
)

// CreateLoan records a loan header and its detail rows in a single
// transaction. The member is re-checked inside the transaction: a missing
// member is ErrNotFound, an inactive one or one whose borrow limit the loan
// would exceed is ErrBorrowRefused. Every referenced copy is moved from
// available to borrowed; if any copy is no longer available the whole loan is
// rolled back and ErrConflict is returned.
func CreateLoan(ctx context.Context, db *sql.DB, loan *model.Loan) (*model.Loan, error) {
	if len(loan.Books) == 0 {
		return nil, fmt.Errorf("loan has no books")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkBorrower(ctx, tx, loan.MemberID, len(loan.Books)); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO borrow_records (member_id, borrowed_at, amount, recorded_by, processed_by)
		 VALUES (?, ?, ?, ?, ?)`,
		loan.MemberID, formatTime(loan.BorrowedAt), len(loan.Books), loan.RecordedBy, loan.ProcessedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("recording loan: %w", err)
	}
	loanID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting loan id: %w", err)
	}

	for _, d := range loan.Books {
		result, err := tx.ExecContext(ctx,
			`UPDATE books SET status = 'borrowed', updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND status = 'available' AND deleted_at IS NULL`,
			d.BookID,
		)
		if err != nil {
			return nil, fmt.Errorf("marking book %d borrowed: %w", d.BookID, err)
		}
		n, err := affected(result)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("book %d is not available: %w", d.BookID, ErrConflict)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO borrow_details (borrow_id, book_id, due_date, renew_count, status)
			 VALUES (?, ?, ?, 0, 'borrowed')`,
			loanID, d.BookID, d.DueDate.String(),
		); err != nil {
			return nil, fmt.Errorf("recording loan detail for book %d: %w", d.BookID, err)
		}
	}

	created, err := getLoan(ctx, tx, loanID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing loan: %w", err)
	}
	return created, nil
}

// checkBorrower fails unless the member exists, is active and stays within
// the borrow limit after adding more copies. A limit of zero means unlimited.
func checkBorrower(ctx context.Context, q querier, memberID int64, adding int) error {
	var status model.MemberStatus
	var limit int
	err := q.QueryRowContext(ctx,
		`SELECT status, borrow_limit FROM members WHERE id = ? AND deleted_at IS NULL`, memberID,
	).Scan(&status, &limit)
	if err == sql.ErrNoRows {
		return fmt.Errorf("member %d: %w", memberID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("getting member %d: %w", memberID, err)
	}
	if status != model.MemberActive {
		return fmt.Errorf("member %d is %s: %w", memberID, status, ErrBorrowRefused)
	}
	if limit <= 0 {
		return nil
	}

	active, err := countActiveLoans(ctx, q, memberID)
	if err != nil {
		return err
	}
	if active+adding > limit {
		return fmt.Errorf("member %d has %d of %d books out: %w", memberID, active, limit, ErrBorrowRefused)
	}
	return nil
}

const loanHeaderColumns = `br.id, br.member_id, br.borrowed_at, br.amount, br.recorded_by, br.processed_by,
	COALESCE(m.name, ''), COALESCE(a.username, '')`

const loanHeaderFrom = `FROM borrow_records br
	LEFT JOIN members m ON m.id = br.member_id
	LEFT JOIN admins a ON a.id = br.recorded_by`

func scanLoanHeader(row interface{ Scan(...any) error }, l *model.Loan) error {
	var borrowedAt string
	if err := row.Scan(&l.ID, &l.MemberID, &borrowedAt, &l.Amount, &l.RecordedBy, &l.ProcessedBy,
		&l.MemberName, &l.RecordedByName); err != nil {
		return err
	}
	t, err := parseTime(borrowedAt)
	if err != nil {
		return err
	}
	l.BorrowedAt = t
	return nil
}

const loanDetailColumns = `bd.id, bd.borrow_id, bd.book_id, bd.due_date, bd.renew_count, bd.status,
	COALESCE(b.name, '')`

func scanLoanDetail(row interface{ Scan(...any) error }, d *model.LoanDetail) error {
	var due string
	if err := row.Scan(&d.ID, &d.LoanID, &d.BookID, &due, &d.RenewCount, &d.Status, &d.BookName); err != nil {
		return err
	}
	date, err := model.ParseDate(due)
	if err != nil {
		return err
	}
	d.DueDate = date
	return nil
}

// GetLoan returns a loan with its detail rows, or nil if it does not exist.
func GetLoan(ctx context.Context, db *sql.DB, id int64) (*model.Loan, error) {
	return getLoan(ctx, db, id)
}

func getLoan(ctx context.Context, q querier, id int64) (*model.Loan, error) {
	l := &model.Loan{}
	err := scanLoanHeader(q.QueryRowContext(ctx,
		`SELECT `+loanHeaderColumns+` `+loanHeaderFrom+` WHERE br.id = ?`, id,
	), l)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting loan: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+loanDetailColumns+`
		 FROM borrow_details bd
		 LEFT JOIN books b ON b.id = bd.book_id
		 WHERE bd.borrow_id = ?
		 ORDER BY bd.id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting loan details: %w", err)
	}
	defer rows.Close()

	l.Books = []model.LoanDetail{}
	for rows.Next() {
		var d model.LoanDetail
		if err := scanLoanDetail(rows, &d); err != nil {
			return nil, fmt.Errorf("scanning loan detail: %w", err)
		}
		l.Books = append(l.Books, d)
	}
	return l, rows.Err()
}

// LoanFilter narrows ListLoans. Zero fields are ignored.
type LoanFilter struct {
	MemberID int64
	BookID   int64
	OpenOnly bool
}

// ListLoans returns loans with their detail rows, newest first.
func ListLoans(ctx context.Context, db *sql.DB, f LoanFilter) ([]model.Loan, error) {
	where := []string{"1=1"}
	var args []any
	if f.MemberID > 0 {
		where = append(where, "br.member_id = ?")
		args = append(args, f.MemberID)
	}
	if f.BookID > 0 {
		where = append(where, "EXISTS (SELECT 1 FROM borrow_details x WHERE x.borrow_id = br.id AND x.book_id = ?)")
		args = append(args, f.BookID)
	}
	if f.OpenOnly {
		where = append(where, "EXISTS (SELECT 1 FROM borrow_details x WHERE x.borrow_id = br.id AND x.status = 'borrowed')")
	}
	cond := strings.Join(where, " AND ")

	rows, err := db.QueryContext(ctx,
		`SELECT `+loanHeaderColumns+` `+loanHeaderFrom+` WHERE `+cond+` ORDER BY br.id DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing loans: %w", err)
	}

	var loans []model.Loan
	index := make(map[int64]int)
	for rows.Next() {
		var l model.Loan
		if err := scanLoanHeader(rows, &l); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning loan: %w", err)
		}
		l.Books = []model.LoanDetail{}
		index[l.ID] = len(loans)
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("listing loans: %w", err)
	}
	rows.Close()

	if len(loans) == 0 {
		return loans, nil
	}

	// Details are read after the header cursor is closed; the pool may hold a
	// single connection.
	detailRows, err := db.QueryContext(ctx,
		`SELECT `+loanDetailColumns+`
		 FROM borrow_details bd
		 JOIN borrow_records br ON br.id = bd.borrow_id
		 LEFT JOIN books b ON b.id = bd.book_id
		 WHERE `+cond+`
		 ORDER BY bd.borrow_id, bd.id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing loan details: %w", err)
	}
	defer detailRows.Close()

	for detailRows.Next() {
		var d model.LoanDetail
		if err := scanLoanDetail(detailRows, &d); err != nil {
			return nil, fmt.Errorf("scanning loan detail: %w", err)
		}
		if i, ok := index[d.LoanID]; ok {
			loans[i].Books = append(loans[i].Books, d)
		}
	}
	return loans, detailRows.Err()
}

// DeleteLoan deletes a loan and its detail rows. Copies that are still out
// on the loan are put back to available in the same transaction, and return
// batches that lose rows through the cascade are reconciled.
func DeleteLoan(ctx context.Context, db *sql.DB, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM borrow_records WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking loan: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	returnIDs, err := queryIDs(ctx, tx,
		`SELECT DISTINCT rd.return_id
		 FROM return_details rd
		 JOIN borrow_details bd ON bd.id = rd.borrow_detail_id
		 WHERE bd.borrow_id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("finding affected returns: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE books SET status = 'available', updated_at = CURRENT_TIMESTAMP
		 WHERE status = 'borrowed' AND id IN (
		     SELECT book_id FROM borrow_details WHERE borrow_id = ? AND status = 'borrowed')`,
		id,
	); err != nil {
		return fmt.Errorf("restoring borrowed books: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM borrow_records WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting loan: %w", err)
	}

	for _, returnID := range returnIDs {
		if _, err := reconcileReturn(ctx, tx, returnID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing loan deletion: %w", err)
	}
	return nil
}

// RenewLoanDetail moves the due date of a borrowed copy and bumps its renewal
// count. Returns ErrConflict if the copy is not currently borrowed on the loan.
func RenewLoanDetail(ctx context.Context, db *sql.DB, loanID, bookID int64, due model.Date) error {
	result, err := db.ExecContext(ctx,
		`UPDATE borrow_details SET due_date = ?, renew_count = renew_count + 1
		 WHERE borrow_id = ? AND book_id = ? AND status = 'borrowed'`,
		due.String(), loanID, bookID,
	)
	if err != nil {
		return fmt.Errorf("renewing loan detail: %w", err)
	}
	n, err := affected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("book %d is not borrowed on loan %d: %w", bookID, loanID, ErrConflict)
	}
	return nil
}

// GetBookHistory returns the loans a book has been part of, newest first.
// Only the book's own detail row is included in each loan.
func GetBookHistory(ctx context.Context, db *sql.DB, bookID int64) ([]model.Loan, error) {
	loans, err := ListLoans(ctx, db, LoanFilter{BookID: bookID})
	if err != nil {
		return nil, fmt.Errorf("getting book history: %w", err)
	}
	for i := range loans {
		var own []model.LoanDetail
		for _, d := range loans[i].Books {
			if d.BookID == bookID {
				own = append(own, d)
			}
		}
		loans[i].Books = own
	}
	return loans, nil
}

func queryIDs(ctx context.Context, q querier, query string, args ...any) ([]int64, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
