package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

// GetSigningKey retrieves the token signing key from the settings table.
// If no key exists, it generates one, stores it, and returns it.
// Uses INSERT OR IGNORE + re-SELECT to avoid a TOCTOU race on concurrent startup.
func GetSigningKey(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating signing key: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES ('signing_key', ?)`,
		candidate,
	)
	if err != nil {
		return "", fmt.Errorf("storing signing_key: %w", err)
	}

	// Always read back (either our insert or the existing value).
	var key string
	err = db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = 'signing_key'`,
	).Scan(&key)
	if err != nil {
		return "", fmt.Errorf("querying signing_key: %w", err)
	}

	return key, nil
}
