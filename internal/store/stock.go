package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StockDelta is a quantity to take out of a product's stock.
type StockDelta struct {
	ProductID int64
	Quantity  int
}

// ApplyOrderStock decrements stock for every delta of an order in a single
// transaction and records the order as applied. Applying the same order twice
// is a no-op. Products that no longer exist are skipped and returned.
//
// Each decrement is an in-place `stock = stock - ?` so concurrent orders for
// the same product cannot overwrite each other. Stock is not floored at zero;
// a product whose stock reaches zero or below is marked unavailable.
func ApplyOrderStock(ctx context.Context, db *sql.DB, orderID string, deltas []StockDelta) (missing []int64, err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO stock_applications (order_id, applied_at) VALUES (?, ?)`,
		orderID, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("recording stock application: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	for _, d := range deltas {
		res, err := tx.ExecContext(ctx,
			`UPDATE products
			 SET stock = stock - ?,
			     is_available = CASE WHEN stock - ? <= 0 THEN 0 ELSE is_available END,
			     updated_at = ?
			 WHERE id = ?`,
			d.Quantity, d.Quantity, now, d.ProductID,
		)
		if err != nil {
			return nil, fmt.Errorf("decrementing stock of product %d: %w", d.ProductID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			missing = append(missing, d.ProductID)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing stock application: %w", err)
	}
	return missing, nil
}

// StockApplied reports whether an order's stock deltas have been applied.
func StockApplied(ctx context.Context, db *sql.DB, orderID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stock_applications WHERE order_id = ?`, orderID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking stock application: %w", err)
	}
	return count > 0, nil
}
