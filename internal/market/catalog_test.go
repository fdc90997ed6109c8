package market

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/AUTO-HOST/auto-host-backend/internal/model"
)

func TestCatalogCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p := env.createProduct(t, seller, "Bomba de agua", 350, 4)

	if p.OwnerID != seller.UserID || p.SellerEmail != seller.Email {
		t.Errorf("expected owner to be the caller, got %q/%q", p.OwnerID, p.SellerEmail)
	}
	if !p.IsAvailable {
		t.Error("expected product with stock to be available")
	}
	if !strings.HasPrefix(p.ImageURL, "/api/images/products/") || !strings.HasSuffix(p.ImageURL, "_foto_pieza.jpg") {
		t.Errorf("unexpected image URL %q", p.ImageURL)
	}

	r, err := env.images.NewReader(ctx, p.ImageKey)
	if err != nil {
		t.Fatalf("expected uploaded photo in bucket: %v", err)
	}
	r.Close()
}

func TestCatalogCreateDefaultsStock(t *testing.T) {
	env := newTestEnv(t)

	f := productFields("Tapón", 20, 0)
	f.Stock = nil
	p, err := env.catalog.Create(context.Background(), seller, f, testPhoto(t))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Stock != 1 || !p.IsAvailable {
		t.Errorf("expected default stock 1 and available, got %d/%v", p.Stock, p.IsAvailable)
	}
}

func TestCatalogCreateValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		fields func() model.ProductFields
		photo  bool
	}{
		{"missing image", func() model.ProductFields { return productFields("Faro", 10, 1) }, false},
		{"missing name", func() model.ProductFields {
			f := productFields("Faro", 10, 1)
			f.Name = nil
			return f
		}, true},
		{"blank category", func() model.ProductFields {
			f := productFields("Faro", 10, 1)
			f.Category = ptr("  ")
			return f
		}, true},
		{"negative price", func() model.ProductFields { return productFields("Faro", -1, 1) }, true},
		{"negative stock", func() model.ProductFields { return productFields("Faro", 10, -3) }, true},
		{"discount over 100", func() model.ProductFields {
			f := productFields("Faro", 10, 1)
			f.DiscountPercentage = ptr(120.0)
			return f
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var photo *Upload
			if tt.photo {
				photo = testPhoto(t)
			}
			_, err := env.catalog.Create(context.Background(), seller, tt.fields(), photo)
			if !errors.Is(err, model.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestCatalogCreateRejectsBadPhoto(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.catalog.Create(ctx, seller, productFields("Faro", 10, 1),
		&Upload{Filename: "faro.jpg", Body: strings.NewReader("not a photo")})
	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	page, err := env.catalog.List(ctx, ListQuery{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.TotalProducts != 0 {
		t.Errorf("expected no product rows, got %d", page.TotalProducts)
	}
}

func TestCatalogList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		env.createProduct(t, seller, "Pieza", float64(10+i), 1)
	}

	page, err := env.catalog.List(ctx, ListQuery{Filter: model.ProductFilter{Category: model.AnyValue, Brand: model.AnyValue}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.TotalProducts != 12 || len(page.Products) != model.DefaultPageSize {
		t.Errorf("expected 12 total and a default page of %d, got %d/%d", model.DefaultPageSize, page.TotalProducts, len(page.Products))
	}
	if page.CurrentPage != 1 || page.TotalPages != 2 {
		t.Errorf("expected page 1 of 2, got %d of %d", page.CurrentPage, page.TotalPages)
	}

	page, err = env.catalog.List(ctx, ListQuery{Page: 2, Limit: 5, Sort: model.SortPriceAsc})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page.Products) != 5 || page.Products[0].Price != 15 {
		t.Errorf("expected items 6-10 by price, got %d starting at %v", len(page.Products), page.Products[0].Price)
	}

	page, err = env.catalog.List(ctx, ListQuery{Limit: 1000})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.ProductsPerPage != model.MaxPageSize {
		t.Errorf("expected limit capped at %d, got %d", model.MaxPageSize, page.ProductsPerPage)
	}

	page, err = env.catalog.List(ctx, ListQuery{Filter: model.ProductFilter{Category: "Frenos"}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Products == nil || len(page.Products) != 0 || page.TotalPages != 0 {
		t.Errorf("expected empty page, got %+v", page)
	}

	page, err = env.catalog.List(ctx, ListQuery{Page: math.MaxInt, Limit: 5})
	if err != nil {
		t.Fatalf("List with huge page: %v", err)
	}
	if len(page.Products) != 0 || page.TotalProducts != 12 {
		t.Errorf("expected an empty page past the end, got %d products of %d", len(page.Products), page.TotalProducts)
	}
	if page.CurrentPage <= 0 || page.CurrentPage > math.MaxInt/5 {
		t.Errorf("expected current page to stay in range, got %d", page.CurrentPage)
	}
}

func TestCatalogGetNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.catalog.Get(context.Background(), 42)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCatalogUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p := env.createProduct(t, seller, "Espejo", 80, 2)

	_, err := env.catalog.Update(ctx, p.ID, other, model.ProductFields{Price: ptr(1.0)}, nil)
	if !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner, got %v", err)
	}

	updated, err := env.catalog.Update(ctx, p.ID, seller, model.ProductFields{Stock: ptr(0), Name: ptr(" Espejo izquierdo ")}, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Stock != 0 || updated.IsAvailable {
		t.Errorf("expected out of stock product to be unavailable, got %d/%v", updated.Stock, updated.IsAvailable)
	}
	if updated.Name != "Espejo izquierdo" || updated.Price != 80 {
		t.Errorf("unexpected product after partial update %+v", updated)
	}

	updated, err = env.catalog.Update(ctx, p.ID, seller, model.ProductFields{IsAvailable: ptr(true)}, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.IsAvailable {
		t.Error("expected product without stock to stay unavailable")
	}

	updated, err = env.catalog.Update(ctx, p.ID, seller, model.ProductFields{Stock: ptr(0), IsAvailable: ptr(true)}, nil)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.IsAvailable {
		t.Error("expected zero stock to override requested availability")
	}

	oldKey := updated.ImageKey
	updated, err = env.catalog.Update(ctx, p.ID, seller, model.ProductFields{}, testPhoto(t))
	if err != nil {
		t.Fatalf("Update with photo: %v", err)
	}
	r, err := env.images.NewReader(ctx, updated.ImageKey)
	if err != nil {
		t.Fatalf("expected new photo in bucket: %v", err)
	}
	r.Close()
	if updated.ImageKey != oldKey {
		if _, err := env.images.NewReader(ctx, oldKey); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("expected old photo to be removed, got %v", err)
		}
	}
}

func TestCatalogDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	p := env.createProduct(t, seller, "Volante", 500, 1)

	if _, err := env.catalog.Delete(ctx, p.ID, buyer); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	deleted, err := env.catalog.Delete(ctx, p.ID, seller)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted.ID != p.ID {
		t.Errorf("expected deleted product %d, got %d", p.ID, deleted.ID)
	}
	if _, err := env.catalog.Get(ctx, p.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected product to be gone, got %v", err)
	}
	if _, err := env.images.NewReader(ctx, p.ImageKey); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected photo to be gone, got %v", err)
	}
}

func TestParseProductID(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12", 12, true},
		{" 7 ", 7, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseProductID(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseProductID(%q) = %d, %v", tt.in, got, err)
		}
		if err != nil && !errors.Is(err, model.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	}
}
