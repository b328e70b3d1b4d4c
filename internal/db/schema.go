package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS admins (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    first_name    TEXT NOT NULL DEFAULT '',
    last_name     TEXT NOT NULL DEFAULT '',
    name          TEXT NOT NULL DEFAULT '',
    role          TEXT NOT NULL DEFAULT 'librarian' CHECK (role IN ('admin', 'librarian')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_admins_username_active
    ON admins(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS categories (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS books (
    id           INTEGER PRIMARY KEY,
    isbn         TEXT NOT NULL DEFAULT '',
    name         TEXT NOT NULL,
    author       TEXT NOT NULL DEFAULT '',
    publisher    TEXT NOT NULL DEFAULT '',
    publish_year INTEGER NOT NULL DEFAULT 0,
    shelf        TEXT NOT NULL DEFAULT '',
    category_id  INTEGER REFERENCES categories(id) ON DELETE SET NULL,
    status       TEXT NOT NULL DEFAULT 'available' CHECK (status IN ('available', 'borrowed', 'lost')),
    cover        BLOB,
    cover_mime   TEXT,
    created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at   DATETIME
);

CREATE TABLE IF NOT EXISTS members (
    id            INTEGER PRIMARY KEY,
    name          TEXT NOT NULL,
    first_name    TEXT NOT NULL DEFAULT '',
    last_name     TEXT NOT NULL DEFAULT '',
    email         TEXT NOT NULL DEFAULT '',
    phone         TEXT NOT NULL DEFAULT '',
    borrow_limit  INTEGER NOT NULL DEFAULT 5 CHECK (borrow_limit >= 0),
    registered_on TEXT NOT NULL DEFAULT (date('now')),
    status        TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'inactive')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE TABLE IF NOT EXISTS borrow_records (
    id           INTEGER PRIMARY KEY,
    member_id    INTEGER NOT NULL REFERENCES members(id),
    borrowed_at  TEXT NOT NULL,
    amount       INTEGER NOT NULL CHECK (amount > 0),
    recorded_by  INTEGER NOT NULL REFERENCES admins(id),
    processed_by INTEGER REFERENCES admins(id)
);

CREATE TABLE IF NOT EXISTS borrow_details (
    id          INTEGER PRIMARY KEY,
    borrow_id   INTEGER NOT NULL REFERENCES borrow_records(id) ON DELETE CASCADE,
    book_id     INTEGER NOT NULL REFERENCES books(id),
    due_date    TEXT NOT NULL,
    renew_count INTEGER NOT NULL DEFAULT 0,
    status      TEXT NOT NULL DEFAULT 'borrowed' CHECK (status IN ('borrowed', 'Late', 'OnTime')),
    UNIQUE (borrow_id, book_id)
);

CREATE TABLE IF NOT EXISTS returns (
    id           INTEGER PRIMARY KEY,
    returned_at  TEXT NOT NULL,
    total_fine   TEXT NOT NULL DEFAULT '0',
    processed_by INTEGER NOT NULL REFERENCES admins(id)
);

CREATE TABLE IF NOT EXISTS return_details (
    id               INTEGER PRIMARY KEY,
    return_id        INTEGER NOT NULL REFERENCES returns(id) ON DELETE CASCADE,
    borrow_detail_id INTEGER NOT NULL REFERENCES borrow_details(id) ON DELETE CASCADE,
    book_id          INTEGER NOT NULL REFERENCES books(id),
    returned_at      TEXT NOT NULL,
    fine             TEXT NOT NULL DEFAULT '0',
    status           TEXT NOT NULL CHECK (status IN ('Late', 'OnTime')),
    UNIQUE (borrow_detail_id)
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
