package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/AUTO-HOST/auto-host-backend/internal/model"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
	ordersCollection        = "orders"
	cartsCollection         = "carts"

	connectTimeout = 10 * time.Second
)

// Mongo is a Store backed by MongoDB.
type Mongo struct {
	client        *mongo.Client
	conversations *mongo.Collection
	messages      *mongo.Collection
	orders        *mongo.Collection
	carts         *mongo.Collection
}

// OpenMongo connects to uri, pings the primary and ensures the indexes the
// store relies on exist.
func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	db := client.Database(database)
	m := &Mongo{
		client:        client,
		conversations: db.Collection(conversationsCollection),
		messages:      db.Collection(messagesCollection),
		orders:        db.Collection(ordersCollection),
		carts:         db.Collection(cartsCollection),
	}
	if err := m.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	indexes := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{m.conversations, []mongo.IndexModel{
			{Keys: bson.D{{Key: "productId", Value: 1}, {Key: "pairKey", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "lastMessageAt", Value: -1}}},
		}},
		{m.messages, []mongo.IndexModel{
			{Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "timestamp", Value: 1}}},
		}},
		{m.orders, []mongo.IndexModel{
			{Keys: bson.D{{Key: "buyerId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "sellerIds", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "state", Value: 1}, {Key: "createdAt", Value: 1}}},
		}},
		{m.carts, []mongo.IndexModel{
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		}},
	}
	for _, idx := range indexes {
		if _, err := idx.coll.Indexes().CreateMany(ctx, idx.models); err != nil {
			return fmt.Errorf("creating %s indexes: %w", idx.coll.Name(), err)
		}
	}
	return nil
}

// Close disconnects the client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) UpsertConversation(ctx context.Context, c *model.Conversation) (*model.Conversation, error) {
	filter := bson.M{"productId": c.ProductID, "pairKey": c.PairKey}
	update := bson.M{
		"$set": bson.M{
			"lastMessage":   c.LastMessage,
			"lastMessageAt": c.LastMessageAt,
		},
		"$setOnInsert": bson.M{
			"_id":               c.ID,
			"productName":       c.ProductName,
			"participants":      c.Participants,
			"participantEmails": c.ParticipantEmails,
			"createdAt":         c.CreatedAt,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out model.Conversation
	err := m.conversations.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	if mongo.IsDuplicateKeyError(err) {
		// Lost an insert race on the unique index; the winner's document now
		// matches the filter.
		err = m.conversations.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	}
	if err != nil {
		return nil, fmt.Errorf("upserting conversation: %w", err)
	}
	return &out, nil
}

func (m *Mongo) TouchConversation(ctx context.Context, id, lastMessage string, at time.Time) error {
	_, err := m.conversations.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"lastMessage": lastMessage, "lastMessageAt": at},
	})
	if err != nil {
		return fmt.Errorf("updating conversation: %w", err)
	}
	return nil
}

func (m *Mongo) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	var c model.Conversation
	err := m.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	return &c, nil
}

func (m *Mongo) ListConversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastMessageAt", Value: -1}})
	cursor, err := m.conversations.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer cursor.Close(ctx)

	conversations := []model.Conversation{}
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("decoding conversations: %w", err)
	}
	return conversations, nil
}

func (m *Mongo) AddMessage(ctx context.Context, msg *model.Message) error {
	if _, err := m.messages.InsertOne(ctx, msg); err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

func (m *Mongo) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := m.messages.Find(ctx, bson.M{"conversationId": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer cursor.Close(ctx)

	messages := []model.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}
	return messages, nil
}

func (m *Mongo) InsertOrder(ctx context.Context, o *model.Order) error {
	if _, err := m.orders.InsertOne(ctx, o); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

func (m *Mongo) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	err := m.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting order: %w", err)
	}
	return &o, nil
}

func (m *Mongo) SetOrderState(ctx context.Context, id, state string) error {
	res, err := m.orders.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"state": state, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return fmt.Errorf("updating order state: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("updating order state: %w", model.ErrNotFound)
	}
	return nil
}

func (m *Mongo) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]model.Order, error) {
	return m.findOrders(ctx, bson.M{"buyerId": buyerID}, -1)
}

func (m *Mongo) ListOrdersBySeller(ctx context.Context, sellerID string) ([]model.Order, error) {
	return m.findOrders(ctx, bson.M{
		"sellerIds": sellerID,
		"state":     bson.M{"$ne": model.OrderStateAborted},
	}, -1)
}

func (m *Mongo) ListReservingOrders(ctx context.Context, before time.Time) ([]model.Order, error) {
	return m.findOrders(ctx, bson.M{
		"state":     model.OrderStateReserving,
		"createdAt": bson.M{"$lt": before},
	}, 1)
}

func (m *Mongo) findOrders(ctx context.Context, filter bson.M, direction int) ([]model.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: direction}})
	cursor, err := m.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []model.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decoding orders: %w", err)
	}
	return orders, nil
}

func (m *Mongo) AddCartItem(ctx context.Context, item *model.CartItem) error {
	if _, err := m.carts.InsertOne(ctx, item); err != nil {
		return fmt.Errorf("inserting cart item: %w", err)
	}
	return nil
}

func (m *Mongo) ListCartItems(ctx context.Context, userID string) ([]model.CartItem, error) {
	cursor, err := m.carts.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	defer cursor.Close(ctx)

	items := []model.CartItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decoding cart items: %w", err)
	}
	return items, nil
}

func (m *Mongo) ClearCart(ctx context.Context, userID string) (int64, error) {
	res, err := m.carts.DeleteMany(ctx, bson.M{"userId": userID})
	if err != nil {
		return 0, fmt.Errorf("clearing cart: %w", err)
	}
	return res.DeletedCount, nil
}

var _ Store = (*Mongo)(nil)
