package docstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/AUTO-HOST/auto-host-backend/internal/model"
)

// Memory is an in-process Store for tests and local development.
type Memory struct {
	mu            sync.Mutex
	conversations map[string]*model.Conversation
	messages      []model.Message
	orders        map[string]*model.Order
	carts         []model.CartItem
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string]*model.Conversation),
		orders:        make(map[string]*model.Order),
	}
}

func (m *Memory) Close(context.Context) error { return nil }

func (m *Memory) UpsertConversation(_ context.Context, c *model.Conversation) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.conversations {
		if existing.ProductID == c.ProductID && existing.PairKey == c.PairKey {
			existing.LastMessage = c.LastMessage
			existing.LastMessageAt = c.LastMessageAt
			return cloneConversation(existing), nil
		}
	}

	stored := cloneConversation(c)
	m.conversations[stored.ID] = stored
	return cloneConversation(stored), nil
}

func (m *Memory) TouchConversation(_ context.Context, id, lastMessage string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.conversations[id]; ok {
		c.LastMessage = lastMessage
		c.LastMessageAt = at
	}
	return nil
}

func (m *Memory) GetConversation(_ context.Context, id string) (*model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, nil
	}
	return cloneConversation(c), nil
}

func (m *Memory) ListConversations(_ context.Context, userID string) ([]model.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.Conversation{}
	for _, c := range m.conversations {
		for _, p := range c.Participants {
			if p == userID {
				out = append(out, *cloneConversation(c))
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out, nil
}

func (m *Memory) AddMessage(_ context.Context, msg *model.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.messages = append(m.messages, *msg)
	return nil
}

func (m *Memory) ListMessages(_ context.Context, conversationID string) ([]model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.Message{}
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (m *Memory) InsertOrder(_ context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[o.ID]; ok {
		return fmt.Errorf("inserting order: %w", model.ErrConflict)
	}
	m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (m *Memory) GetOrder(_ context.Context, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return cloneOrder(o), nil
}

func (m *Memory) SetOrderState(_ context.Context, id, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("updating order state: %w", model.ErrNotFound)
	}
	o.State = state
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *Memory) ListOrdersByBuyer(_ context.Context, buyerID string) ([]model.Order, error) {
	return m.filterOrders(func(o *model.Order) bool {
		return o.BuyerID == buyerID
	}, true), nil
}

func (m *Memory) ListOrdersBySeller(_ context.Context, sellerID string) ([]model.Order, error) {
	return m.filterOrders(func(o *model.Order) bool {
		if o.State == model.OrderStateAborted {
			return false
		}
		for _, s := range o.SellerIDs {
			if s == sellerID {
				return true
			}
		}
		return false
	}, true), nil
}

func (m *Memory) ListReservingOrders(_ context.Context, before time.Time) ([]model.Order, error) {
	return m.filterOrders(func(o *model.Order) bool {
		return o.State == model.OrderStateReserving && o.CreatedAt.Before(before)
	}, false), nil
}

func (m *Memory) filterOrders(keep func(*model.Order) bool, newestFirst bool) []model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.Order{}
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (m *Memory) AddCartItem(_ context.Context, item *model.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.carts = append(m.carts, *item)
	return nil
}

func (m *Memory) ListCartItems(_ context.Context, userID string) ([]model.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []model.CartItem{}
	for _, item := range m.carts {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *Memory) ClearCart(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.carts[:0]
	var removed int64
	for _, item := range m.carts {
		if item.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	m.carts = kept
	return removed, nil
}

func cloneConversation(c *model.Conversation) *model.Conversation {
	out := *c
	out.Participants = append([]string(nil), c.Participants...)
	out.ParticipantEmails = make(map[string]string, len(c.ParticipantEmails))
	for k, v := range c.ParticipantEmails {
		out.ParticipantEmails[k] = v
	}
	return &out
}

func cloneOrder(o *model.Order) *model.Order {
	out := *o
	out.Items = append([]model.OrderItem(nil), o.Items...)
	out.SellerIDs = append([]string(nil), o.SellerIDs...)
	return &out
}

var _ Store = (*Memory)(nil)
