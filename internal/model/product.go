package model

import (
	"strings"
	"time"
)

// Product is a listing owned by a seller.
type Product struct {
	ID                 int64     `json:"id"`
	OwnerID            string    `json:"ownerId"`
	SellerEmail        string    `json:"sellerEmail"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	Price              float64   `json:"price"`
	Stock              int       `json:"stock"`
	IsAvailable        bool      `json:"isAvailable"`
	Category           string    `json:"category"`
	Condition          string    `json:"condition"`
	Brand              string    `json:"brand,omitempty"`
	Side               string    `json:"side,omitempty"`
	PartNumber         string    `json:"partNumber,omitempty"`
	IsOnOffer          bool      `json:"isOnOffer"`
	OriginalPrice      *float64  `json:"originalPrice,omitempty"`
	DiscountPercentage *float64  `json:"discountPercentage,omitempty"`
	ImageURL           string    `json:"imageUrl"`
	ImageKey           string    `json:"-"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// OwnedBy is the single authorization predicate for product mutations.
func (p *Product) OwnedBy(userID string) bool {
	return p != nil && SameID(p.OwnerID, userID)
}

// ProductFields carries the editable fields of a product. Nil pointers are
// left unchanged by an update.
type ProductFields struct {
	Name               *string
	Description        *string
	Price              *float64
	Stock              *int
	IsAvailable        *bool
	Category           *string
	Condition          *string
	Brand              *string
	Side               *string
	PartNumber         *string
	IsOnOffer          *bool
	OriginalPrice      *float64
	DiscountPercentage *float64
}

// SearchKey folds a product name for substring search. SQLite only folds
// ASCII, so names are folded here and stored alongside.
func SearchKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Product sort orders.
const (
	SortPriceAsc  = "priceAsc"
	SortPriceDesc = "priceDesc"
	SortRecent    = "recent"
)

// AnyValue is the catalog filter value meaning "no filter".
const AnyValue = "Todas"

// Listing defaults.
const (
	DefaultPageSize = 9
	MaxPageSize     = 100
)

// ProductFilter selects products for a listing. Zero values match everything.
type ProductFilter struct {
	Name      string
	Category  string
	Condition string
	Brand     string
	SellerID  string
	MinPrice  *float64
	MaxPrice  *float64
}

// ProductPage is one page of a listing.
type ProductPage struct {
	Products        []Product `json:"products"`
	TotalProducts   int       `json:"totalProducts"`
	CurrentPage     int       `json:"currentPage"`
	ProductsPerPage int       `json:"productsPerPage"`
	TotalPages      int       `json:"totalPages"`
}
