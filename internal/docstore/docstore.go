// Package docstore holds conversations, messages, orders and carts.
//
// Lookups follow the product store convention: a missing document is
// reported as (nil, nil), not an error.
package docstore

import (
	"context"
	"time"

	"github.com/AUTO-HOST/auto-host-backend/internal/model"
)

// Store is the document store used by the marketplace services.
type Store interface {
	// UpsertConversation finds the conversation for c's product and pair
	// key, bumping its last message, or inserts c if there is none. It is
	// atomic: racing calls for the same pair yield one conversation.
	UpsertConversation(ctx context.Context, c *model.Conversation) (*model.Conversation, error)
	TouchConversation(ctx context.Context, id, lastMessage string, at time.Time) error
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	// ListConversations returns userID's conversations, most recent activity first.
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)
	AddMessage(ctx context.Context, m *model.Message) error
	// ListMessages returns a conversation's messages, oldest first.
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)

	InsertOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	SetOrderState(ctx context.Context, id, state string) error
	// ListOrdersByBuyer returns a buyer's orders, newest first.
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]model.Order, error)
	// ListOrdersBySeller returns orders with a line item sold by sellerID,
	// newest first. Aborted orders are left out.
	ListOrdersBySeller(ctx context.Context, sellerID string) ([]model.Order, error)
	// ListReservingOrders returns orders still reserving that were created
	// before the cutoff.
	ListReservingOrders(ctx context.Context, before time.Time) ([]model.Order, error)

	AddCartItem(ctx context.Context, item *model.CartItem) error
	ListCartItems(ctx context.Context, userID string) ([]model.CartItem, error)
	// ClearCart removes every cart item of userID and returns how many there were.
	ClearCart(ctx context.Context, userID string) (int64, error)

	Close(ctx context.Context) error
}
