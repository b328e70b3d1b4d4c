package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/knjiznica/internal/model"
	"github.com/shopspring/decimal"
)

// CreateReturn records a return batch. For every detail the loan detail is
// moved from borrowed to its return status, the return detail is inserted and
// the copy is put back to available. If any loan detail is no longer borrowed
// nothing is written and ErrConflict is returned.
func CreateReturn(ctx context.Context, db *sql.DB, r *model.Return) (*model.Return, error) {
	if len(r.Details) == 0 {
		return nil, fmt.Errorf("return has no details")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	total := decimal.Zero
	for _, d := range r.Details {
		total = total.Add(d.Fine)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO returns (returned_at, total_fine, processed_by) VALUES (?, ?, ?)`,
		formatTime(r.ReturnedAt), total.String(), r.ProcessedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("recording return: %w", err)
	}
	returnID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting return id: %w", err)
	}

	if err := closeLoanDetails(ctx, tx, returnID, r.ReturnedAt, r.Details); err != nil {
		return nil, err
	}

	created, err := getReturn(ctx, tx, returnID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing return: %w", err)
	}
	return created, nil
}

// AppendReturnDetails adds details to an existing return batch and brings the
// batch total up to date. Returns ErrNotFound if the batch does not exist.
func AppendReturnDetails(ctx context.Context, db *sql.DB, returnID int64, details []model.ReturnDetail) (*model.Return, error) {
	if len(details) == 0 {
		return nil, fmt.Errorf("return has no details")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var returnedAt string
	err = tx.QueryRowContext(ctx,
		`SELECT returned_at FROM returns WHERE id = ?`, returnID,
	).Scan(&returnedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting return: %w", err)
	}
	headerTime, err := parseTime(returnedAt)
	if err != nil {
		return nil, err
	}

	if err := closeLoanDetails(ctx, tx, returnID, headerTime, details); err != nil {
		return nil, err
	}
	if _, err := reconcileReturn(ctx, tx, returnID); err != nil {
		return nil, err
	}

	created, err := getReturn(ctx, tx, returnID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing return: %w", err)
	}
	return created, nil
}

// closeLoanDetails writes the per-copy side of a return inside tx.
func closeLoanDetails(ctx context.Context, tx *sql.Tx, returnID int64, fallback time.Time, details []model.ReturnDetail) error {
	for _, d := range details {
		status := d.Status
		if !status.Valid() {
			return fmt.Errorf("invalid return status %q", status)
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE borrow_details SET status = ? WHERE id = ? AND status = 'borrowed'`,
			string(status.LoanStatus()), d.LoanDetailID,
		)
		if err != nil {
			return fmt.Errorf("closing loan detail %d: %w", d.LoanDetailID, err)
		}
		n, err := affected(result)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("loan detail %d is not borrowed: %w", d.LoanDetailID, ErrConflict)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE books SET status = 'available', updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND status = 'borrowed'`,
			d.BookID,
		); err != nil {
			return fmt.Errorf("marking book %d available: %w", d.BookID, err)
		}

		at := d.ReturnedAt
		if at.IsZero() {
			at = fallback
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO return_details (return_id, borrow_detail_id, book_id, returned_at, fine, status)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			returnID, d.LoanDetailID, d.BookID, formatTime(at), d.Fine.String(), string(status),
		); err != nil {
			return fmt.Errorf("recording return detail for book %d: %w", d.BookID, err)
		}
	}
	return nil
}

// GetReturn returns a return batch with its details, or nil if it does not
// exist.
func GetReturn(ctx context.Context, db *sql.DB, id int64) (*model.Return, error) {
	return getReturn(ctx, db, id)
}

func getReturn(ctx context.Context, q querier, id int64) (*model.Return, error) {
	r := &model.Return{}
	var returnedAt, total string
	err := q.QueryRowContext(ctx,
		`SELECT r.id, r.returned_at, r.total_fine, r.processed_by, `+adminDisplayName+`
		 FROM returns r
		 LEFT JOIN admins a ON a.id = r.processed_by
		 WHERE r.id = ?`, id,
	).Scan(&r.ID, &returnedAt, &total, &r.ProcessedBy, &r.ProcessedByName)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting return: %w", err)
	}
	if r.ReturnedAt, err = parseTime(returnedAt); err != nil {
		return nil, err
	}
	if r.TotalFine, err = sumFines([]string{total}); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT rd.id, rd.return_id, rd.borrow_detail_id, COALESCE(bd.borrow_id, 0), rd.book_id,
		        rd.returned_at, COALESCE(bd.due_date, ''), rd.fine, rd.status, COALESCE(b.name, '')
		 FROM return_details rd
		 LEFT JOIN borrow_details bd ON bd.id = rd.borrow_detail_id
		 LEFT JOIN books b ON b.id = rd.book_id
		 WHERE rd.return_id = ?
		 ORDER BY rd.id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting return details: %w", err)
	}
	defer rows.Close()

	r.Details = []model.ReturnDetail{}
	for rows.Next() {
		var d model.ReturnDetail
		var at, due, fine string
		if err := rows.Scan(&d.ID, &d.ReturnID, &d.LoanDetailID, &d.LoanID, &d.BookID,
			&at, &due, &fine, &d.Status, &d.BookName); err != nil {
			return nil, fmt.Errorf("scanning return detail: %w", err)
		}
		if d.ReturnedAt, err = parseTime(at); err != nil {
			return nil, err
		}
		if due != "" {
			if d.DueDate, err = model.ParseDate(due); err != nil {
				return nil, err
			}
		}
		if d.Fine, err = sumFines([]string{fine}); err != nil {
			return nil, err
		}
		r.Details = append(r.Details, d)
	}
	return r, rows.Err()
}

// DeleteReturnDetail removes one return detail that belongs to returnID and
// references bookID. When it was the last detail of its batch the batch is
// removed too and deleted is true; otherwise the batch total is recomputed.
// The loan detail it closed is left as returned.
func DeleteReturnDetail(ctx context.Context, db *sql.DB, returnID, detailID, bookID int64) (deleted bool, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM return_details WHERE id = ? AND return_id = ? AND book_id = ?`,
		detailID, returnID, bookID,
	)
	if err != nil {
		return false, fmt.Errorf("deleting return detail: %w", err)
	}
	n, err := affected(result)
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, ErrNotFound
	}

	deleted, err = reconcileReturn(ctx, tx, returnID)
	if err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing return detail deletion: %w", err)
	}
	return deleted, nil
}

// reconcileReturn recomputes a batch total from its remaining details, or
// deletes the batch when none are left.
func reconcileReturn(ctx context.Context, tx *sql.Tx, returnID int64) (deleted bool, err error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT fine FROM return_details WHERE return_id = ?`, returnID,
	)
	if err != nil {
		return false, fmt.Errorf("reading return fines: %w", err)
	}
	var fines []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			rows.Close()
			return false, fmt.Errorf("scanning return fine: %w", err)
		}
		fines = append(fines, f)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return false, fmt.Errorf("reading return fines: %w", err)
	}
	rows.Close()

	if len(fines) == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM returns WHERE id = ?`, returnID); err != nil {
			return false, fmt.Errorf("deleting empty return: %w", err)
		}
		return true, nil
	}

	total, err := sumFines(fines)
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE returns SET total_fine = ? WHERE id = ?`, total.String(), returnID,
	); err != nil {
		return false, fmt.Errorf("updating return total: %w", err)
	}
	return false, nil
}

// adminDisplayName resolves the admin joined as "a" to the name shown in
// listings. Empty when the admin row is missing.
const adminDisplayName = `COALESCE(NULLIF(a.name, ''), NULLIF(TRIM(a.first_name || ' ' || a.last_name), ''), a.username, '')`

// ListReturnDetailsJoined returns every return detail joined with its batch,
// loan, book and member, newest batch first and details in insertion order.
// Columns from rows that have since been removed come back empty.
func ListReturnDetailsJoined(ctx context.Context, db *sql.DB) ([]model.ReturnDetailRow, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT r.id, rd.id, bd.borrow_id, rd.book_id, COALESCE(b.name, ''), COALESCE(m.name, ''),
		        COALESCE(bd.due_date, ''), COALESCE(rd.returned_at, ''), COALESCE(r.returned_at, ''),
		        COALESCE(r.total_fine, ''), COALESCE(rd.fine, ''), COALESCE(rd.status, ''),
		        COALESCE(r.processed_by, br.processed_by, br.recorded_by), `+adminDisplayName+`
		 FROM return_details rd
		 JOIN returns r ON r.id = rd.return_id
		 LEFT JOIN borrow_details bd ON bd.id = rd.borrow_detail_id
		 LEFT JOIN borrow_records br ON br.id = bd.borrow_id
		 LEFT JOIN books b ON b.id = rd.book_id
		 LEFT JOIN members m ON m.id = br.member_id
		 LEFT JOIN admins a ON a.id = r.processed_by
		 ORDER BY r.id DESC, rd.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing return details: %w", err)
	}
	defer rows.Close()

	var out []model.ReturnDetailRow
	for rows.Next() {
		var row model.ReturnDetailRow
		if err := rows.Scan(&row.ReturnID, &row.DetailID, &row.LoanID, &row.BookID, &row.BookName,
			&row.MemberName, &row.DueDate, &row.DetailReturnedAt, &row.ReturnedAt, &row.TotalFine,
			&row.Fine, &row.Status, &row.ProcessedBy, &row.ProcessedByName); err != nil {
			return nil, fmt.Errorf("scanning return detail: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
