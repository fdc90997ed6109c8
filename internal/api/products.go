package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/AUTO-HOST/auto-host-backend/internal/bucket"
	"github.com/AUTO-HOST/auto-host-backend/internal/imaging"
	"github.com/AUTO-HOST/auto-host-backend/internal/market"
	"github.com/AUTO-HOST/auto-host-backend/internal/model"
)

// ProductsHandler handles catalog endpoints.
type ProductsHandler struct {
	Catalog *market.Catalog
}

// productJSON is the JSON form of a product update.
type productJSON struct {
	Name               *string  `json:"name"`
	Description        *string  `json:"description"`
	Price              *float64 `json:"price"`
	Stock              *int     `json:"stock"`
	IsAvailable        *bool    `json:"isAvailable"`
	Category           *string  `json:"category"`
	Condition          *string  `json:"condition"`
	Brand              *string  `json:"brand"`
	Side               *string  `json:"side"`
	PartNumber         *string  `json:"partNumber"`
	IsOnOffer          *bool    `json:"isOnOffer"`
	OriginalPrice      *float64 `json:"originalPrice"`
	DiscountPercentage *float64 `json:"discountPercentage"`
}

func (p productJSON) fields() model.ProductFields {
	return model.ProductFields(p)
}

// Create handles POST /api/products (multipart form with an "image" file).
func (h *ProductsHandler) Create(w http.ResponseWriter, r *http.Request) {
	fields, photo, cleanup, err := parseProductForm(w, r)
	if err != nil {
		writeError(w, r, err, "failed to read product form")
		return
	}
	defer cleanup()

	product, err := h.Catalog.Create(r.Context(), identity(r), fields, photo)
	if err != nil {
		writeError(w, r, err, "failed to create product")
		return
	}

	jsonResponse(w, http.StatusCreated, map[string]any{
		"message": "Producto creado con éxito",
		"product": product,
	})
}

// List handles GET /api/products.
func (h *ProductsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := model.ProductFilter{
		Name:      strings.TrimSpace(q.Get("name")),
		Category:  q.Get("category"),
		Condition: q.Get("condition"),
		Brand:     q.Get("brand"),
		SellerID:  strings.TrimSpace(q.Get("sellerId")),
	}
	var err error
	if filter.MinPrice, err = optionalFloat(q.Get("minPrice")); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid minPrice")
		return
	}
	if filter.MaxPrice, err = optionalFloat(q.Get("maxPrice")); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid maxPrice")
		return
	}

	// Unparseable paging falls back to the defaults.
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	result, err := h.Catalog.List(r.Context(), market.ListQuery{
		Filter: filter,
		Page:   page,
		Limit:  limit,
		Sort:   q.Get("sort"),
	})
	if err != nil {
		writeError(w, r, err, "failed to list products")
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

// Get handles GET /api/products/{id}.
func (h *ProductsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := market.ParseProductID(r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.Catalog.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "failed to get product")
		return
	}
	jsonResponse(w, http.StatusOK, product)
}

// Update handles PUT /api/products/{id}, either as a multipart form with an
// optional new "image" or as a JSON body.
func (h *ProductsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := market.ParseProductID(r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var fields model.ProductFields
	var photo *market.Upload
	if isJSON(r) {
		var req productJSON
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		fields = req.fields()
	} else {
		var cleanup func()
		fields, photo, cleanup, err = parseProductForm(w, r)
		if err != nil {
			writeError(w, r, err, "failed to read product form")
			return
		}
		defer cleanup()
	}

	product, err := h.Catalog.Update(r.Context(), id, identity(r), fields, photo)
	if err != nil {
		writeError(w, r, err, "failed to update product")
		return
	}
	jsonResponse(w, http.StatusOK, product)
}

// Delete handles DELETE /api/products/{id}.
func (h *ProductsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := market.ParseProductID(r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.Catalog.Delete(r.Context(), id, identity(r))
	if err != nil {
		writeError(w, r, err, "failed to delete product")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{
		"message":        "Producto eliminado con éxito",
		"deletedProduct": product,
	})
}

// ImagesHandler serves product photos from the bucket.
type ImagesHandler struct {
	Images *bucket.Bucket
}

// Get handles GET /api/images/{key...}.
func (h *ImagesHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if err := bucket.ValidKey(key); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid image key")
		return
	}

	reader, err := h.Images.NewReader(r.Context(), key)
	if errors.Is(err, model.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "image not found")
		return
	}
	if err != nil {
		writeError(w, r, err, "failed to read image")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", reader.ContentType())
	w.Header().Set("Content-Length", strconv.FormatInt(reader.Size(), 10))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := io.Copy(w, reader); err != nil {
		slog.Warn("streaming image", "key", key, "error", err)
	}
}

// formAliases maps form keys onto product fields. The snake case Spanish
// names are what older clients send.
var formAliases = map[string][]string{
	"brand":      {"brand", "marca_refaccion"},
	"side":       {"side", "lado"},
	"partNumber": {"partNumber", "numero_parte"},
}

// parseProductForm reads a multipart product form. The returned cleanup
// removes any temporary files of the form.
func parseProductForm(w http.ResponseWriter, r *http.Request) (model.ProductFields, *market.Upload, func(), error) {
	var f model.ProductFields
	noop := func() {}

	r.Body = http.MaxBytesReader(w, r.Body, imaging.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(imaging.MaxUploadBytes); err != nil {
		return f, nil, noop, fmt.Errorf("%w: file too large or invalid multipart form", model.ErrValidation)
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	value := func(keys ...string) *string {
		for _, k := range keys {
			if v, ok := r.PostForm[k]; ok && len(v) > 0 {
				return &v[0]
			}
		}
		return nil
	}

	var err error
	f.Name = value("name")
	f.Description = value("description")
	f.Category = value("category")
	f.Condition = value("condition")
	f.Brand = value(formAliases["brand"]...)
	f.Side = value(formAliases["side"]...)
	f.PartNumber = value(formAliases["partNumber"]...)

	if f.Price, err = formFloat(value("price"), "price"); err != nil {
		return f, nil, cleanup, err
	}
	if f.OriginalPrice, err = formFloat(value("originalPrice"), "originalPrice"); err != nil {
		return f, nil, cleanup, err
	}
	if f.DiscountPercentage, err = formFloat(value("discountPercentage"), "discountPercentage"); err != nil {
		return f, nil, cleanup, err
	}
	if s := value("stock"); s != nil {
		n, err := strconv.Atoi(strings.TrimSpace(*s))
		if err != nil {
			return f, nil, cleanup, fmt.Errorf("%w: invalid stock", model.ErrValidation)
		}
		f.Stock = &n
	}
	if f.IsAvailable, err = formBool(value("isAvailable"), "isAvailable"); err != nil {
		return f, nil, cleanup, err
	}
	if f.IsOnOffer, err = formBool(value("isOnOffer"), "isOnOffer"); err != nil {
		return f, nil, cleanup, err
	}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return f, nil, cleanup, nil
	}
	if err != nil {
		return f, nil, cleanup, fmt.Errorf("%w: invalid image upload", model.ErrValidation)
	}
	closeFile := func() {
		file.Close()
		cleanup()
	}
	return f, &market.Upload{Filename: header.Filename, Body: file}, closeFile, nil
}

func formFloat(s *string, name string) (*float64, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s", model.ErrValidation, name)
	}
	return &v, nil
}

func formBool(s *string, name string) (*bool, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(*s))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s", model.ErrValidation, name)
	}
	return &v, nil
}

func optionalFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func isJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}
