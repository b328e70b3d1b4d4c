package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/knjiznica/internal/model"
)

const adminColumns = `id, username, password_hash, first_name, last_name, name, role, created_at, deleted_at`

func scanAdmin(row interface{ Scan(...any) error }, a *model.Admin) error {
	return row.Scan(&a.ID, &a.Username, &a.PasswordHash, &a.FirstName, &a.LastName, &a.Name,
		&a.Role, &a.CreatedAt, &a.DeletedAt)
}

// CreateAdmin creates a new admin account.
func CreateAdmin(ctx context.Context, db *sql.DB, a *model.Admin) (*model.Admin, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO admins (username, password_hash, first_name, last_name, name, role)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.Username, a.PasswordHash, a.FirstName, a.LastName, a.Name, a.Role,
	)
	if err != nil {
		return nil, fmt.Errorf("creating admin: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting admin id: %w", err)
	}

	return GetAdmin(ctx, db, id)
}

// GetAdmin returns an admin by ID, including soft-deleted ones.
func GetAdmin(ctx context.Context, db *sql.DB, id int64) (*model.Admin, error) {
	a := &model.Admin{}
	err := scanAdmin(db.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = ?`, id,
	), a)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting admin: %w", err)
	}
	return a, nil
}

// GetAdminByUsername returns the active admin with the given username.
func GetAdminByUsername(ctx context.Context, db *sql.DB, username string) (*model.Admin, error) {
	a := &model.Admin{}
	err := scanAdmin(db.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE username = ? AND deleted_at IS NULL`, username,
	), a)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting admin by username: %w", err)
	}
	return a, nil
}

// ListAdmins returns all non-deleted admins.
func ListAdmins(ctx context.Context, db *sql.DB) ([]model.Admin, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE deleted_at IS NULL ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing admins: %w", err)
	}
	defer rows.Close()

	var admins []model.Admin
	for rows.Next() {
		var a model.Admin
		if err := scanAdmin(rows, &a); err != nil {
			return nil, fmt.Errorf("scanning admin: %w", err)
		}
		admins = append(admins, a)
	}
	return admins, rows.Err()
}

// UpdateAdmin updates an admin's names and role.
func UpdateAdmin(ctx context.Context, db *sql.DB, a *model.Admin) error {
	_, err := db.ExecContext(ctx,
		`UPDATE admins SET first_name = ?, last_name = ?, name = ?, role = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		a.FirstName, a.LastName, a.Name, a.Role, a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating admin: %w", err)
	}
	return nil
}

// UpdateAdminPassword updates an admin's password hash.
func UpdateAdminPassword(ctx context.Context, db *sql.DB, id int64, passwordHash string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE admins SET password_hash = ? WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating admin password: %w", err)
	}
	return nil
}

// DeleteAdmin soft-deletes an admin. Loans and returns keep referring to it.
func DeleteAdmin(ctx context.Context, db *sql.DB, id int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE admins SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("deleting admin: %w", err)
	}
	return nil
}
