package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/AUTO-HOST/auto-host-backend/internal/model"
)

const productColumns = `id, owner_id, seller_email, name, description, price, stock, is_available,
	category, condition, brand, side, part_number, is_on_offer, original_price,
	discount_percentage, image_url, image_key, created_at, updated_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(s rowScanner, p *model.Product) error {
	return s.Scan(&p.ID, &p.OwnerID, &p.SellerEmail, &p.Name, &p.Description, &p.Price, &p.Stock, &p.IsAvailable,
		&p.Category, &p.Condition, &p.Brand, &p.Side, &p.PartNumber, &p.IsOnOffer, &p.OriginalPrice,
		&p.DiscountPercentage, &p.ImageURL, &p.ImageKey, &p.CreatedAt, &p.UpdatedAt)
}

// CreateProduct inserts a product and returns it as stored.
func CreateProduct(ctx context.Context, db *sql.DB, p *model.Product) (*model.Product, error) {
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx,
		`INSERT INTO products (owner_id, seller_email, name, name_search, description, price, stock, is_available,
		        category, condition, brand, side, part_number, is_on_offer, original_price,
		        discount_percentage, image_url, image_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.OwnerID, p.SellerEmail, p.Name, model.SearchKey(p.Name), p.Description, p.Price, p.Stock, p.IsAvailable,
		p.Category, p.Condition, p.Brand, p.Side, p.PartNumber, p.IsOnOffer, p.OriginalPrice,
		p.DiscountPercentage, p.ImageURL, p.ImageKey, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting product id: %w", err)
	}

	return GetProduct(ctx, db, id)
}

// GetProduct returns a product by ID.
func GetProduct(ctx context.Context, db *sql.DB, id int64) (*model.Product, error) {
	p := &model.Product{}
	err := scanProduct(db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ?`, id,
	), p)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting product: %w", err)
	}
	return p, nil
}

// ListProducts returns one page of products matching the filter together with
// the total number of matches.
func ListProducts(ctx context.Context, db *sql.DB, f model.ProductFilter, page, limit int, sort string) ([]model.Product, int, error) {
	where := ` WHERE 1=1`
	var args []any

	if f.Name != "" {
		where += ` AND name_search LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(model.SearchKey(f.Name))+"%")
	}
	if f.Category != "" {
		where += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.Condition != "" {
		where += ` AND condition = ?`
		args = append(args, f.Condition)
	}
	if f.Brand != "" {
		where += ` AND brand = ?`
		args = append(args, f.Brand)
	}
	if f.SellerID != "" {
		where += ` AND owner_id = ?`
		args = append(args, f.SellerID)
	}
	if f.MinPrice != nil {
		where += ` AND price >= ?`
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		where += ` AND price <= ?`
		args = append(args, *f.MaxPrice)
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}

	var order string
	switch sort {
	case model.SortPriceAsc:
		order = ` ORDER BY price ASC, id ASC`
	case model.SortPriceDesc:
		order = ` ORDER BY price DESC, id DESC`
	default:
		order = ` ORDER BY created_at DESC, id DESC`
	}

	query := `SELECT ` + productColumns + ` FROM products` + where + order + ` LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		var p model.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, 0, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

// ProductImage identifies a stored product image.
type ProductImage struct {
	URL string
	Key string
}

// UpdateProduct writes the non-nil fields (and the image, if given) of a
// product. Columns not named are left untouched so concurrent stock changes
// are not overwritten.
func UpdateProduct(ctx context.Context, db *sql.DB, id int64, f model.ProductFields, image *ProductImage) error {
	var sets []string
	var args []any
	set := func(col string, v any) {
		sets = append(sets, col+` = ?`)
		args = append(args, v)
	}

	if f.Name != nil {
		set("name", *f.Name)
		set("name_search", model.SearchKey(*f.Name))
	}
	if f.Description != nil {
		set("description", *f.Description)
	}
	if f.Price != nil {
		set("price", *f.Price)
	}
	if f.Stock != nil {
		set("stock", *f.Stock)
	}
	// A product without stock is never available.
	switch {
	case f.IsAvailable != nil && f.Stock != nil:
		set("is_available", *f.IsAvailable && *f.Stock > 0)
	case f.IsAvailable != nil:
		sets = append(sets, `is_available = (? AND stock > 0)`)
		args = append(args, *f.IsAvailable)
	}
	if f.Category != nil {
		set("category", *f.Category)
	}
	if f.Condition != nil {
		set("condition", *f.Condition)
	}
	if f.Brand != nil {
		set("brand", *f.Brand)
	}
	if f.Side != nil {
		set("side", *f.Side)
	}
	if f.PartNumber != nil {
		set("part_number", *f.PartNumber)
	}
	if f.IsOnOffer != nil {
		set("is_on_offer", *f.IsOnOffer)
	}
	if f.OriginalPrice != nil {
		set("original_price", *f.OriginalPrice)
	}
	if f.DiscountPercentage != nil {
		set("discount_percentage", *f.DiscountPercentage)
	}
	if image != nil {
		set("image_url", image.URL)
		set("image_key", image.Key)
	}
	set("updated_at", time.Now().UTC())
	args = append(args, id)

	_, err := db.ExecContext(ctx,
		`UPDATE products SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
	)
	if err != nil {
		return fmt.Errorf("updating product: %w", err)
	}
	return nil
}

// DeleteProduct removes a product. It reports whether a row was deleted.
func DeleteProduct(ctx context.Context, db *sql.DB, id int64) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting product: %w", err)
	}
	return n > 0, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
