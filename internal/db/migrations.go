package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: lookups used by the circulation desk.
	`CREATE INDEX IF NOT EXISTS idx_borrow_details_book_status
	     ON borrow_details(book_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_borrow_records_member
	     ON borrow_records(member_id)`,
	`CREATE INDEX IF NOT EXISTS idx_return_details_return
	     ON return_details(return_id)`,
}

// Migrate ensures the schema and runs the database migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
