package market

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/AUTO-HOST/auto-host-backend/internal/auth"
	"github.com/AUTO-HOST/auto-host-backend/internal/bucket"
	"github.com/AUTO-HOST/auto-host-backend/internal/imaging"
	"github.com/AUTO-HOST/auto-host-backend/internal/metrics"
	"github.com/AUTO-HOST/auto-host-backend/internal/model"
	"github.com/AUTO-HOST/auto-host-backend/internal/store"
)

// Upload is a product photo sent by a client.
type Upload struct {
	Filename string
	Body     io.Reader
}

// ListQuery selects a page of the catalog.
type ListQuery struct {
	Filter model.ProductFilter
	Page   int
	Limit  int
	Sort   string
}

// Catalog manages product listings and their photos.
type Catalog struct {
	db      *sql.DB
	images  *bucket.Bucket
	metrics *metrics.Metrics
}

// NewCatalog returns a Catalog backed by db that stores photos in images.
func NewCatalog(db *sql.DB, images *bucket.Bucket, m *metrics.Metrics) *Catalog {
	return &Catalog{db: db, images: images, metrics: m}
}

// Create validates the fields, stores the photo and inserts the product.
// If the insert fails the uploaded photo is removed again.
func (c *Catalog) Create(ctx context.Context, owner auth.Identity, f model.ProductFields, photo *Upload) (*model.Product, error) {
	if err := validateFields(f, true); err != nil {
		return nil, err
	}
	if photo == nil {
		return nil, validationf("image required")
	}

	p := &model.Product{
		OwnerID:     strings.TrimSpace(owner.UserID),
		SellerEmail: owner.Email,
		Name:        strings.TrimSpace(*f.Name),
		Description: strings.TrimSpace(*f.Description),
		Price:       *f.Price,
		Stock:       1,
		Category:    strings.TrimSpace(*f.Category),
		Condition:   strings.TrimSpace(*f.Condition),
	}
	if f.Stock != nil {
		p.Stock = *f.Stock
	}
	p.IsAvailable = p.Stock > 0
	if f.IsAvailable != nil {
		p.IsAvailable = *f.IsAvailable && p.Stock > 0
	}
	if f.Brand != nil {
		p.Brand = strings.TrimSpace(*f.Brand)
	}
	if f.Side != nil {
		p.Side = strings.TrimSpace(*f.Side)
	}
	if f.PartNumber != nil {
		p.PartNumber = strings.TrimSpace(*f.PartNumber)
	}
	if f.IsOnOffer != nil {
		p.IsOnOffer = *f.IsOnOffer
	}
	p.OriginalPrice = f.OriginalPrice
	p.DiscountPercentage = f.DiscountPercentage

	key, err := c.storePhoto(ctx, photo)
	if err != nil {
		return nil, err
	}
	p.ImageKey = key
	p.ImageURL = c.images.URL(key)

	created, err := store.CreateProduct(ctx, c.db, p)
	if err != nil {
		c.removePhoto(ctx, key)
		return nil, err
	}

	slog.Info("product created", "product", created.ID, "owner", created.OwnerID)
	return created, nil
}

// List returns one page of the catalog. Out of range paging values fall
// back to the defaults.
func (c *Catalog) List(ctx context.Context, q ListQuery) (*model.ProductPage, error) {
	f := q.Filter
	f.Category = anyToEmpty(f.Category)
	f.Condition = anyToEmpty(f.Condition)
	f.Brand = anyToEmpty(f.Brand)

	page := q.Page
	if page < 1 {
		page = 1
	}
	limit := q.Limit
	if limit < 1 {
		limit = model.DefaultPageSize
	}
	if limit > model.MaxPageSize {
		limit = model.MaxPageSize
	}
	if maxPage := math.MaxInt / limit; page > maxPage {
		page = maxPage
	}

	products, total, err := store.ListProducts(ctx, c.db, f, page, limit, q.Sort)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []model.Product{}
	}

	return &model.ProductPage{
		Products:        products,
		TotalProducts:   total,
		CurrentPage:     page,
		ProductsPerPage: limit,
		TotalPages:      int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

// Get returns a product or model.ErrNotFound.
func (c *Catalog) Get(ctx context.Context, id int64) (*model.Product, error) {
	p, err := store.GetProduct(ctx, c.db, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("product %d: %w", id, model.ErrNotFound)
	}
	return p, nil
}

// Update applies the given fields to a product owned by caller. A new photo
// replaces the old one, which is removed on a best-effort basis.
func (c *Catalog) Update(ctx context.Context, id int64, caller auth.Identity, f model.ProductFields, photo *Upload) (*model.Product, error) {
	p, err := c.owned(ctx, id, caller)
	if err != nil {
		return nil, err
	}
	if err := validateFields(f, false); err != nil {
		return nil, err
	}
	trimFields(&f)
	if f.Stock != nil && f.IsAvailable == nil {
		available := *f.Stock > 0
		f.IsAvailable = &available
	}

	var image *store.ProductImage
	if photo != nil {
		key, err := c.storePhoto(ctx, photo)
		if err != nil {
			return nil, err
		}
		image = &store.ProductImage{URL: c.images.URL(key), Key: key}
	}

	if err := store.UpdateProduct(ctx, c.db, id, f, image); err != nil {
		if image != nil {
			c.removePhoto(ctx, image.Key)
		}
		return nil, err
	}
	if old := c.photoKey(p); image != nil && old != image.Key {
		c.removePhoto(ctx, old)
	}

	slog.Info("product updated", "product", id, "owner", p.OwnerID)
	return c.Get(ctx, id)
}

// Delete removes a product owned by caller together with its photo.
func (c *Catalog) Delete(ctx context.Context, id int64, caller auth.Identity) (*model.Product, error) {
	p, err := c.owned(ctx, id, caller)
	if err != nil {
		return nil, err
	}

	c.removePhoto(ctx, c.photoKey(p))

	deleted, err := store.DeleteProduct(ctx, c.db, id)
	if err != nil {
		return nil, err
	}
	if !deleted {
		return nil, fmt.Errorf("product %d: %w", id, model.ErrNotFound)
	}

	slog.Info("product deleted", "product", id, "owner", p.OwnerID)
	return p, nil
}

func (c *Catalog) owned(ctx context.Context, id int64, caller auth.Identity) (*model.Product, error) {
	p, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.OwnedBy(caller.UserID) {
		return nil, fmt.Errorf("product %d: %w", id, model.ErrForbidden)
	}
	return p, nil
}

func (c *Catalog) storePhoto(ctx context.Context, u *Upload) (string, error) {
	photo, err := imaging.Normalize(u.Body)
	if err != nil {
		return "", err
	}

	key := bucket.ProductKey(u.Filename, time.Now())
	if err := c.images.Put(ctx, key, photo.Data, imaging.ContentType); err != nil {
		c.metrics.ImageUploaded(false)
		return "", fmt.Errorf("%w: uploading image: %v", model.ErrStorage, err)
	}
	c.metrics.ImageUploaded(true)
	return key, nil
}

// photoKey returns the bucket key of a product's photo, falling back to
// deriving it from the URL for rows written without a key.
func (c *Catalog) photoKey(p *model.Product) string {
	if p.ImageKey != "" {
		return p.ImageKey
	}
	key, _ := c.images.KeyFromURL(p.ImageURL)
	return key
}

func (c *Catalog) removePhoto(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := c.images.Delete(context.WithoutCancel(ctx), key); err != nil {
		slog.Warn("removing product image", "key", key, "error", err)
	}
}

func validateFields(f model.ProductFields, creating bool) error {
	required := []struct {
		name  string
		value *string
	}{
		{"name", f.Name},
		{"description", f.Description},
		{"category", f.Category},
		{"condition", f.Condition},
	}
	for _, r := range required {
		if r.value == nil {
			if creating {
				return validationf("%s required", r.name)
			}
			continue
		}
		if strings.TrimSpace(*r.value) == "" {
			return validationf("%s must not be empty", r.name)
		}
	}

	if f.Price == nil && creating {
		return validationf("price required")
	}
	if f.Price != nil && (*f.Price < 0 || math.IsNaN(*f.Price) || math.IsInf(*f.Price, 0)) {
		return validationf("price must be a non-negative number")
	}
	if f.Stock != nil && *f.Stock < 0 {
		return validationf("stock must not be negative")
	}
	if f.OriginalPrice != nil && *f.OriginalPrice < 0 {
		return validationf("originalPrice must not be negative")
	}
	if f.DiscountPercentage != nil && (*f.DiscountPercentage < 0 || *f.DiscountPercentage > 100) {
		return validationf("discountPercentage must be between 0 and 100")
	}
	return nil
}

func trimFields(f *model.ProductFields) {
	for _, s := range []*string{f.Name, f.Description, f.Category, f.Condition, f.Brand, f.Side, f.PartNumber} {
		if s != nil {
			*s = strings.TrimSpace(*s)
		}
	}
}

func anyToEmpty(v string) string {
	v = strings.TrimSpace(v)
	if v == model.AnyValue {
		return ""
	}
	return v
}
