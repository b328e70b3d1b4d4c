package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

const memberColumns = `id, name, first_name, last_name, email, phone, borrow_limit, registered_on,
	status, created_at, deleted_at`

func scanMember(row interface{ Scan(...any) error }, m *model.Member) error {
	var registered string
	if err := row.Scan(&m.ID, &m.Name, &m.FirstName, &m.LastName, &m.Email, &m.Phone,
		&m.BorrowLimit, &registered, &m.Status, &m.CreatedAt, &m.DeletedAt); err != nil {
		return err
	}
	if registered != "" {
		d, err := model.ParseDate(registered)
		if err != nil {
			return err
		}
		m.RegisteredOn = d
	}
	return nil
}

// CreateMember registers a new member. A zero RegisteredOn defaults to today.
func CreateMember(ctx context.Context, db *sql.DB, m *model.Member) (*model.Member, error) {
	status := m.Status
	if status == "" {
		status = model.MemberActive
	}

	var registered any
	if !m.RegisteredOn.IsZero() {
		registered = m.RegisteredOn.String()
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO members (name, first_name, last_name, email, phone, borrow_limit, registered_on, status)
		 VALUES (?, ?, ?, ?, ?, ?, COALESCE(?, date('now')), ?)`,
		m.Name, m.FirstName, m.LastName, m.Email, m.Phone, m.BorrowLimit, registered, status,
	)
	if err != nil {
		return nil, fmt.Errorf("creating member: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting member id: %w", err)
	}

	return GetMember(ctx, db, id)
}

// GetMember returns a member by ID, including soft-deleted ones.
func GetMember(ctx context.Context, db *sql.DB, id int64) (*model.Member, error) {
	m := &model.Member{}
	err := scanMember(db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = ?`, id,
	), m)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting member: %w", err)
	}
	return m, nil
}

// ListMembers returns all non-deleted members, optionally filtered by status.
func ListMembers(ctx context.Context, db *sql.DB, status model.MemberStatus) ([]model.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE deleted_at IS NULL`
	var args []any
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		var m model.Member
		if err := scanMember(rows, &m); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// UpdateMember updates a member's details and standing.
func UpdateMember(ctx context.Context, db *sql.DB, m *model.Member) error {
	_, err := db.ExecContext(ctx,
		`UPDATE members SET name = ?, first_name = ?, last_name = ?, email = ?, phone = ?,
		        borrow_limit = ?, status = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		m.Name, m.FirstName, m.LastName, m.Email, m.Phone, m.BorrowLimit, m.Status, m.ID,
	)
	if err != nil {
		return fmt.Errorf("updating member: %w", err)
	}
	return nil
}

// DeleteMember soft-deletes a member. Fails if the member still has copies out.
func DeleteMember(ctx context.Context, db *sql.DB, id int64) error {
	count, err := CountActiveLoans(ctx, db, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("cannot delete member: still has %d borrowed books: %w", count, ErrConflict)
	}

	_, err = db.ExecContext(ctx,
		`UPDATE members SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting member: %w", err)
	}
	return nil
}

// CountActiveLoans returns how many copies a member currently has out. The
// borrow limit is counted in copies, not loan headers.
func CountActiveLoans(ctx context.Context, db *sql.DB, memberID int64) (int, error) {
	return countActiveLoans(ctx, db, memberID)
}

func countActiveLoans(ctx context.Context, q querier, memberID int64) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*)
		 FROM borrow_details bd
		 JOIN borrow_records br ON br.id = bd.borrow_id
		 WHERE br.member_id = ? AND bd.status = 'borrowed'`, memberID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting active loans: %w", err)
	}
	return count, nil
}
