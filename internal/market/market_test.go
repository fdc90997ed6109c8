package market

import (
	"bytes"
	"context"
	"database/sql"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/AUTO-HOST/auto-host-backend/internal/auth"
	"github.com/AUTO-HOST/auto-host-backend/internal/bucket"
	"github.com/AUTO-HOST/auto-host-backend/internal/db"
	"github.com/AUTO-HOST/auto-host-backend/internal/docstore"
	"github.com/AUTO-HOST/auto-host-backend/internal/model"
)

var (
	seller = auth.Identity{UserID: "seller-1", Email: "vende@example.com"}
	buyer  = auth.Identity{UserID: "buyer-1", Email: "compra@example.com"}
	other  = auth.Identity{UserID: "other-1", Email: "otro@example.com"}
)

type testEnv struct {
	db      *sql.DB
	docs    *docstore.Memory
	images  *bucket.Bucket
	catalog *Catalog
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	images, err := bucket.Open(context.Background(), "mem://", "")
	if err != nil {
		t.Fatalf("opening bucket: %v", err)
	}
	t.Cleanup(func() { _ = images.Close() })

	env := &testEnv{
		db:     db.NewTestDB(t),
		docs:   docstore.NewMemory(),
		images: images,
	}
	env.catalog = NewCatalog(env.db, images, nil)
	return env
}

func testPhoto(t *testing.T) *Upload {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{10, 120, 200, 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encoding photo: %v", err)
	}
	return &Upload{Filename: "foto pieza.jpg", Body: &buf}
}

func ptr[T any](v T) *T { return &v }

func productFields(name string, price float64, stock int) model.ProductFields {
	return model.ProductFields{
		Name:        ptr(name),
		Description: ptr("Pieza original"),
		Price:       ptr(price),
		Stock:       ptr(stock),
		Category:    ptr("Motor"),
		Condition:   ptr("Nuevo"),
	}
}

func (env *testEnv) createProduct(t *testing.T, owner auth.Identity, name string, price float64, stock int) *model.Product {
	t.Helper()
	p, err := env.catalog.Create(context.Background(), owner, productFields(name, price, stock), testPhoto(t))
	if err != nil {
		t.Fatalf("creating product: %v", err)
	}
	return p
}
