package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// schema is the full database schema. Money is stored as decimal text.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    name          TEXT NOT NULL,
    email         TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL CHECK (role IN ('admin', 'partner')),
    active        INTEGER NOT NULL DEFAULT 1,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS partners (
    id         INTEGER PRIMARY KEY,
    user_id    INTEGER NOT NULL UNIQUE REFERENCES users(id),
    phone      TEXT NOT NULL DEFAULT '',
    percentage TEXT NOT NULL,
    active     INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS brands (
    id     INTEGER PRIMARY KEY,
    name   TEXT NOT NULL UNIQUE,
    active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS sizes (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE,
    sort_order INTEGER NOT NULL DEFAULT 0,
    active     INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS items (
    id         INTEGER PRIMARY KEY,
    tag_code   TEXT NOT NULL UNIQUE,
    cost_value TEXT NOT NULL,
    list_value TEXT NOT NULL,
    partner_id INTEGER NOT NULL REFERENCES partners(id),
    brand_id   INTEGER NOT NULL REFERENCES brands(id),
    size_id    INTEGER NOT NULL REFERENCES sizes(id),
    status     TEXT NOT NULL DEFAULT 'available' CHECK (status IN ('available', 'sold')),
    notes      TEXT NOT NULL DEFAULT '',
    entered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Ids of these tables leave the database (photo URIs, sale and payment ids
// in retried requests), so they use AUTOINCREMENT and are never reused after
// a delete. Each DDL takes the table name as its only argument.
const (
	itemPhotosTable = `CREATE TABLE IF NOT EXISTS %s (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    mime    TEXT NOT NULL,
    data    BLOB NOT NULL
)`

	salesTable = `CREATE TABLE IF NOT EXISTS %s (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id        INTEGER NOT NULL REFERENCES items(id),
    sold_for_value TEXT NOT NULL,
    sold_at        DATETIME NOT NULL
)`

	paymentsTable = `CREATE TABLE IF NOT EXISTS %s (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    sale_id             INTEGER NOT NULL UNIQUE REFERENCES sales(id),
    partner_id          INTEGER NOT NULL REFERENCES partners(id),
    percentage_snapshot TEXT NOT NULL,
    payout_amount       TEXT NOT NULL,
    paid                INTEGER NOT NULL DEFAULT 0,
    paid_at             DATETIME,
    notes               TEXT NOT NULL DEFAULT '',
    created_at          DATETIME NOT NULL
)`
)

type sequencedTable struct {
	name string
	ddl  string
}

var sequencedTables = []sequencedTable{
	{"item_photos", itemPhotosTable},
	{"sales", salesTable},
	{"payments", paymentsTable},
}

const indexes = `
CREATE INDEX IF NOT EXISTS idx_items_partner ON items(partner_id);

-- At most one live sale per item; reversal deletes the row.
CREATE UNIQUE INDEX IF NOT EXISTS idx_sales_item ON sales(item_id);

CREATE INDEX IF NOT EXISTS idx_payments_partner_paid ON payments(partner_id, paid);
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: emails are unique among active accounts only, so a
	// deactivated partner's address can be reused.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_active
	     ON users(email) WHERE active = 1`,
}

// EnsureSchema creates all tables and indexes and applies migrations.
func EnsureSchema(db *sqlx.DB) error {
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	for _, t := range sequencedTables {
		if _, err := db.ExecContext(ctx, fmt.Sprintf(t.ddl, t.name)); err != nil {
			return fmt.Errorf("creating table %s: %w", t.name, err)
		}
	}

	// Databases created before the sequenced tables used AUTOINCREMENT are
	// rebuilt in place.
	for _, t := range sequencedTables {
		if err := rebuildWithSequence(ctx, db, t); err != nil {
			return fmt.Errorf("upgrading table %s: %w", t.name, err)
		}
	}

	if _, err := db.ExecContext(ctx, indexes); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}
	return nil
}

// rebuildWithSequence copies t into a fresh AUTOINCREMENT table when its
// stored definition lacks one. Foreign keys are disabled on the pinned
// connection for the swap, as SQLite requires for table rebuilds.
func rebuildWithSequence(ctx context.Context, db *sqlx.DB, t sequencedTable) error {
	var ddl string
	if err := db.GetContext(ctx, &ddl,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, t.name,
	); err != nil {
		return fmt.Errorf("reading definition: %w", err)
	}
	if strings.Contains(strings.ToUpper(ddl), "AUTOINCREMENT") {
		return nil
	}

	conn, err := db.Connx(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `PRAGMA foreign_keys = OFF`); err != nil {
		return fmt.Errorf("disabling foreign keys: %w", err)
	}
	defer conn.ExecContext(context.Background(), `PRAGMA foreign_keys = ON`)

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning rebuild: %w", err)
	}
	defer tx.Rollback()

	tmp := t.name + "_rebuild"
	for _, stmt := range []string{
		fmt.Sprintf(t.ddl, tmp),
		fmt.Sprintf(`INSERT INTO %s SELECT * FROM %s`, tmp, t.name),
		fmt.Sprintf(`DROP TABLE %s`, t.name),
		fmt.Sprintf(`ALTER TABLE %s RENAME TO %s`, tmp, t.name),
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("rebuilding: %w", err)
		}
	}

	var violations int
	if err := tx.GetContext(ctx, &violations, `SELECT COUNT(*) FROM pragma_foreign_key_check`); err != nil {
		return fmt.Errorf("checking foreign keys: %w", err)
	}
	if violations > 0 {
		return fmt.Errorf("rebuild left %d foreign key violations", violations)
	}
	return tx.Commit()
}
