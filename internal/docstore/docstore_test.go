package docstore

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/AUTO-HOST/auto-host-backend/internal/model"
)

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store { return NewMemory() })
}

// TestMongoStore runs the same checks against a live server when
// MONGO_TEST_URI is set.
func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	runStoreTests(t, func(t *testing.T) Store {
		ctx := context.Background()
		name := "auto_host_test_" + uuid.NewString()[:8]
		s, err := OpenMongo(ctx, uri, name)
		if err != nil {
			t.Fatalf("OpenMongo: %v", err)
		}
		t.Cleanup(func() {
			_ = s.client.Database(name).Drop(ctx)
			_ = s.Close(ctx)
		})
		return s
	})
}

func runStoreTests(t *testing.T, newStore func(*testing.T) Store) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"conversation upsert", testConversationUpsert},
		{"concurrent conversation upsert", testConcurrentConversationUpsert},
		{"conversation listing", testConversationListing},
		{"messages", testMessages},
		{"orders", testOrders},
		{"reserving orders", testReservingOrders},
		{"cart", testCart},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func newConversation(productID int64, a, b string, at time.Time) *model.Conversation {
	return &model.Conversation{
		ID:                uuid.NewString(),
		ProductID:         productID,
		ProductName:       "Faro",
		Participants:      []string{a, b},
		ParticipantEmails: map[string]string{a: a + "@example.com", b: b + "@example.com"},
		PairKey:           model.PairKey(a, b),
		LastMessage:       "hola",
		LastMessageAt:     at,
		CreatedAt:         at,
	}
}

func testConversationUpsert(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	first, err := s.UpsertConversation(ctx, newConversation(1, "buyer", "seller", now))
	if err != nil {
		t.Fatalf("UpsertConversation: %v", err)
	}

	later := now.Add(time.Minute)
	again := newConversation(1, "seller", "buyer", later)
	again.LastMessage = "sigue disponible?"
	second, err := s.UpsertConversation(ctx, again)
	if err != nil {
		t.Fatalf("UpsertConversation: %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("expected same conversation for the same pair, got %q and %q", first.ID, second.ID)
	}
	if second.LastMessage != "sigue disponible?" || !second.LastMessageAt.Equal(later) {
		t.Errorf("expected last message to be bumped, got %q at %v", second.LastMessage, second.LastMessageAt)
	}
	if !second.CreatedAt.Equal(now) {
		t.Errorf("expected createdAt to be kept, got %v", second.CreatedAt)
	}

	other, err := s.UpsertConversation(ctx, newConversation(2, "buyer", "seller", now))
	if err != nil {
		t.Fatalf("UpsertConversation: %v", err)
	}
	if other.ID == first.ID {
		t.Error("expected a different conversation for a different product")
	}
}

func testConcurrentConversationUpsert(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Now().UTC()

	const senders = 10
	ids := make(chan string, senders)
	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := s.UpsertConversation(ctx, newConversation(7, "a", "b", now))
			if err != nil {
				t.Errorf("UpsertConversation: %v", err)
				return
			}
			ids <- c.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected one conversation, got %d", len(seen))
	}
}

func testConversationListing(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	older, _ := s.UpsertConversation(ctx, newConversation(1, "u1", "u2", now))
	newer, _ := s.UpsertConversation(ctx, newConversation(2, "u1", "u3", now.Add(time.Second)))
	if _, err := s.UpsertConversation(ctx, newConversation(3, "u2", "u3", now)); err != nil {
		t.Fatalf("UpsertConversation: %v", err)
	}

	list, err := s.ListConversations(ctx, "u1")
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(list))
	}
	if list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Errorf("expected most recent activity first, got %q then %q", list[0].ID, list[1].ID)
	}

	if err := s.TouchConversation(ctx, older.ID, "nuevo", now.Add(time.Hour)); err != nil {
		t.Fatalf("TouchConversation: %v", err)
	}
	list, _ = s.ListConversations(ctx, "u1")
	if list[0].ID != older.ID || list[0].LastMessage != "nuevo" {
		t.Errorf("expected touched conversation first, got %+v", list[0])
	}

	got, err := s.GetConversation(ctx, "missing")
	if err != nil || got != nil {
		t.Errorf("expected (nil, nil) for missing conversation, got (%v, %v)", got, err)
	}
}

func testMessages(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	for i, offset := range []time.Duration{2 * time.Second, 0, time.Second} {
		err := s.AddMessage(ctx, &model.Message{
			ID:             uuid.NewString(),
			ConversationID: "c1",
			SenderID:       "u1",
			Content:        fmt.Sprintf("m%d", i),
			Timestamp:      now.Add(offset),
		})
		if err != nil {
			t.Fatalf("AddMessage: %v", err)
		}
	}
	_ = s.AddMessage(ctx, &model.Message{ID: uuid.NewString(), ConversationID: "c2", Content: "other", Timestamp: now})

	msgs, err := s.ListMessages(ctx, "c1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "m1" || msgs[1].Content != "m2" || msgs[2].Content != "m0" {
		t.Errorf("expected oldest first, got %q %q %q", msgs[0].Content, msgs[1].Content, msgs[2].Content)
	}

	empty, err := s.ListMessages(ctx, "none")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil list, got %v", empty)
	}
}

func newOrder(buyer string, sellers []string, state string, at time.Time) *model.Order {
	o := &model.Order{
		ID:         uuid.NewString(),
		BuyerID:    buyer,
		BuyerEmail: buyer + "@example.com",
		SellerIDs:  sellers,
		Status:     model.OrderStatusPending,
		State:      state,
		CreatedAt:  at,
		UpdatedAt:  at,
	}
	for _, s := range sellers {
		o.Items = append(o.Items, model.OrderItem{ProductID: 1, SellerID: s, Quantity: 1, UnitPrice: 10, TotalPrice: 10})
	}
	return o
}

func testOrders(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	first := newOrder("b1", []string{"s1"}, model.OrderStateCommitted, now)
	second := newOrder("b1", []string{"s1", "s2"}, model.OrderStateCommitted, now.Add(time.Second))
	aborted := newOrder("b2", []string{"s1"}, model.OrderStateAborted, now.Add(2*time.Second))
	for _, o := range []*model.Order{first, second, aborted} {
		if err := s.InsertOrder(ctx, o); err != nil {
			t.Fatalf("InsertOrder: %v", err)
		}
	}

	got, err := s.GetOrder(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if got.BuyerID != "b1" || len(got.Items) != 2 {
		t.Errorf("unexpected order %+v", got)
	}

	byBuyer, _ := s.ListOrdersByBuyer(ctx, "b1")
	if len(byBuyer) != 2 || byBuyer[0].ID != second.ID {
		t.Errorf("expected buyer orders newest first, got %d orders", len(byBuyer))
	}

	bySeller, _ := s.ListOrdersBySeller(ctx, "s1")
	if len(bySeller) != 2 {
		t.Errorf("expected aborted order to be excluded, got %d orders", len(bySeller))
	}

	if err := s.SetOrderState(ctx, first.ID, model.OrderStateAborted); err != nil {
		t.Fatalf("SetOrderState: %v", err)
	}
	got, _ = s.GetOrder(ctx, first.ID)
	if got.State != model.OrderStateAborted {
		t.Errorf("expected state %q, got %q", model.OrderStateAborted, got.State)
	}

	missing, err := s.GetOrder(ctx, "missing")
	if err != nil || missing != nil {
		t.Errorf("expected (nil, nil) for missing order, got (%v, %v)", missing, err)
	}
}

func testReservingOrders(t *testing.T, s Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	stale := newOrder("b1", []string{"s1"}, model.OrderStateReserving, now.Add(-time.Minute))
	fresh := newOrder("b1", []string{"s1"}, model.OrderStateReserving, now)
	done := newOrder("b1", []string{"s1"}, model.OrderStateCommitted, now.Add(-time.Minute))
	for _, o := range []*model.Order{stale, fresh, done} {
		if err := s.InsertOrder(ctx, o); err != nil {
			t.Fatalf("InsertOrder: %v", err)
		}
	}

	orders, err := s.ListReservingOrders(ctx, now.Add(-30*time.Second))
	if err != nil {
		t.Fatalf("ListReservingOrders: %v", err)
	}
	if len(orders) != 1 || orders[0].ID != stale.ID {
		t.Errorf("expected only the stale reserving order, got %d orders", len(orders))
	}
}

func testCart(t *testing.T, s Store) {
	ctx := context.Background()

	for _, userID := range []string{"b1", "b1", "b2"} {
		err := s.AddCartItem(ctx, &model.CartItem{ID: uuid.NewString(), UserID: userID, ProductID: 1, Quantity: 1, AddedAt: time.Now().UTC()})
		if err != nil {
			t.Fatalf("AddCartItem: %v", err)
		}
	}

	removed, err := s.ClearCart(ctx, "b1")
	if err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 items removed, got %d", removed)
	}

	left, _ := s.ListCartItems(ctx, "b1")
	if len(left) != 0 {
		t.Errorf("expected empty cart, got %d items", len(left))
	}
	other, _ := s.ListCartItems(ctx, "b2")
	if len(other) != 1 {
		t.Errorf("expected other cart untouched, got %d items", len(other))
	}
}
