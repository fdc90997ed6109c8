package db

import (
	"database/sql"
	"fmt"

	"github.com/AUTO-HOST/auto-host-backend/internal/model"
)

// schema is the full product store schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    name          TEXT NOT NULL DEFAULT '',
    user_type     TEXT NOT NULL DEFAULT 'Comprador' CHECK (user_type IN ('Comprador', 'Vendedor')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email);

CREATE TABLE IF NOT EXISTS products (
    id                  INTEGER PRIMARY KEY,
    owner_id            TEXT NOT NULL,
    seller_email        TEXT NOT NULL DEFAULT '',
    name                TEXT NOT NULL,
    name_search         TEXT NOT NULL DEFAULT '',
    description         TEXT NOT NULL DEFAULT '',
    price               REAL NOT NULL DEFAULT 0,
    stock               INTEGER NOT NULL DEFAULT 1,
    is_available        INTEGER NOT NULL DEFAULT 1,
    category            TEXT NOT NULL,
    condition           TEXT NOT NULL,
    brand               TEXT NOT NULL DEFAULT '',
    side                TEXT NOT NULL DEFAULT '',
    part_number         TEXT NOT NULL DEFAULT '',
    is_on_offer         INTEGER NOT NULL DEFAULT 0,
    original_price      REAL,
    discount_percentage REAL,
    image_url           TEXT NOT NULL DEFAULT '',
    image_key           TEXT NOT NULL DEFAULT '',
    created_at          DATETIME NOT NULL,
    updated_at          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_products_owner ON products(owner_id);
CREATE INDEX IF NOT EXISTS idx_products_created ON products(created_at);

CREATE TABLE IF NOT EXISTS stock_applications (
    order_id   TEXT PRIMARY KEY,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
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

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: listing queries filter on category and sort on price.
	`CREATE INDEX IF NOT EXISTS idx_products_category ON products(category)`,
	`CREATE INDEX IF NOT EXISTS idx_products_price ON products(price)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist,
// then applies migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	// Migration 2: products written before name_search existed.
	if err := addColumn(db, "products", "name_search", `TEXT NOT NULL DEFAULT ''`); err != nil {
		return err
	}
	if err := backfillNameSearch(db); err != nil {
		return err
	}
	return nil
}

// addColumn adds a column unless the table already has it.
func addColumn(db *sql.DB, table, column, decl string) error {
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return fmt.Errorf("reading %s columns: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("reading %s columns: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading %s columns: %w", table, err)
	}
	rows.Close()

	if _, err := db.Exec(`ALTER TABLE ` + table + ` ADD COLUMN ` + column + ` ` + decl); err != nil {
		return fmt.Errorf("adding %s.%s: %w", table, column, err)
	}
	return nil
}

func backfillNameSearch(db *sql.DB) error {
	rows, err := db.Query(`SELECT id, name FROM products WHERE name_search = '' AND name != ''`)
	if err != nil {
		return fmt.Errorf("reading product names: %w", err)
	}
	names := map[int64]string{}
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return fmt.Errorf("reading product names: %w", err)
		}
		names[id] = name
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading product names: %w", err)
	}

	for id, name := range names {
		if _, err := db.Exec(`UPDATE products SET name_search = ? WHERE id = ?`, model.SearchKey(name), id); err != nil {
			return fmt.Errorf("backfilling product %d: %w", id, err)
		}
	}
	return nil
}
