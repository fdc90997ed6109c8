package model

import "time"

// OrderStatusPending is the business status every order starts in.
const OrderStatusPending = "Pending"

// Order processing states. An order is written as reserving, then committed
// once its stock deltas are applied, or aborted if they could not be.
const (
	OrderStateReserving = "reserving"
	OrderStateCommitted = "committed"
	OrderStateAborted   = "aborted"
)

// OrderItem is a line item with the seller and price captured at order time.
type OrderItem struct {
	ProductID  int64   `json:"productId" bson:"productId"`
	Name       string  `json:"name,omitempty" bson:"name,omitempty"`
	SellerID   string  `json:"sellerId,omitempty" bson:"sellerId,omitempty"`
	Quantity   int     `json:"quantity" bson:"quantity"`
	UnitPrice  float64 `json:"unitPrice" bson:"unitPrice"`
	TotalPrice float64 `json:"totalPrice" bson:"totalPrice"`
}

// Order is an immutable purchase record.
type Order struct {
	ID         string      `json:"id" bson:"_id"`
	BuyerID    string      `json:"buyerId" bson:"buyerId"`
	BuyerEmail string      `json:"buyerEmail" bson:"buyerEmail"`
	Items      []OrderItem `json:"items" bson:"items"`
	SellerIDs  []string    `json:"sellerIds" bson:"sellerIds"`
	Total      float64     `json:"orderTotal" bson:"orderTotal"`
	Status     string      `json:"status" bson:"status"`
	State      string      `json:"state" bson:"state"`
	CreatedAt  time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// HasSeller reports whether sellerID sold any line item of the order.
func (o *Order) HasSeller(sellerID string) bool {
	for _, item := range o.Items {
		if SameID(item.SellerID, sellerID) {
			return true
		}
	}
	return false
}

// VisibleTo reports whether userID may read the order: its buyer or any seller
// with a line item in it.
func (o *Order) VisibleTo(userID string) bool {
	return SameID(o.BuyerID, userID) || o.HasSeller(userID)
}

// Sale is an order projected onto a single seller's line items.
type Sale struct {
	OrderID    string      `json:"orderId"`
	CreatedAt  string      `json:"createdAt"`
	BuyerEmail string      `json:"buyerEmail"`
	Items      []OrderItem `json:"items"`
	SaleTotal  float64     `json:"saleTotal"`
}

// CartItem is one entry in a buyer's cart.
type CartItem struct {
	ID        string    `json:"id" bson:"_id"`
	UserID    string    `json:"userId" bson:"userId"`
	ProductID int64     `json:"productId" bson:"productId"`
	Quantity  int       `json:"quantity" bson:"quantity"`
	AddedAt   time.Time `json:"addedAt" bson:"addedAt"`
}
