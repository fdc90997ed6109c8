package market

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AUTO-HOST/auto-host-backend/internal/auth"
	"github.com/AUTO-HOST/auto-host-backend/internal/docstore"
	"github.com/AUTO-HOST/auto-host-backend/internal/model"
	"github.com/AUTO-HOST/auto-host-backend/internal/store"
)

// SendRequest addresses a message either to an existing conversation or to
// the conversation about a product.
type SendRequest struct {
	ConversationID string
	ProductID      int64
	ReceiverID     string
	Content        string
}

// SendResult identifies the conversation and the stored message.
type SendResult struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

// Conversations manages buyer/seller message threads.
type Conversations struct {
	db                *sql.DB
	docs              docstore.Store
	requireMembership bool
}

// NewConversations creates the service. With requireMembership set, only
// participants may reply to or read a conversation.
func NewConversations(db *sql.DB, docs docstore.Store, requireMembership bool) *Conversations {
	return &Conversations{db: db, docs: docs, requireMembership: requireMembership}
}

// Send stores a message from sender. Addressed by product, the counterpart is
// the product's owner, or ReceiverID when the owner is the sender.
func (c *Conversations) Send(ctx context.Context, sender auth.Identity, req SendRequest) (*SendResult, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, validationf("content required")
	}

	var conv *model.Conversation
	var err error
	now := time.Now().UTC()

	switch {
	case req.ConversationID != "":
		conv, err = c.member(ctx, req.ConversationID, sender.UserID)
		if err != nil {
			return nil, err
		}
		if err := c.docs.TouchConversation(ctx, conv.ID, model.Snippet(content), now); err != nil {
			return nil, err
		}
	case req.ProductID != 0:
		conv, err = c.productConversation(ctx, sender, req, content, now)
		if err != nil {
			return nil, err
		}
	default:
		return nil, validationf("productId or conversationId required")
	}

	msg := &model.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       strings.TrimSpace(sender.UserID),
		SenderEmail:    sender.Email,
		Content:        content,
		Timestamp:      now,
	}
	if err := c.docs.AddMessage(ctx, msg); err != nil {
		return nil, err
	}

	slog.Info("message sent", "conversation", conv.ID, "sender", msg.SenderID)
	return &SendResult{ConversationID: conv.ID, MessageID: msg.ID}, nil
}

func (c *Conversations) productConversation(ctx context.Context, sender auth.Identity, req SendRequest, content string, now time.Time) (*model.Conversation, error) {
	product, err := store.GetProduct(ctx, c.db, req.ProductID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, fmt.Errorf("product %d: %w", req.ProductID, model.ErrNotFound)
	}

	senderID := strings.TrimSpace(sender.UserID)
	counterpart := strings.TrimSpace(product.OwnerID)
	counterpartEmail := product.SellerEmail
	if product.OwnedBy(senderID) {
		counterpart = strings.TrimSpace(req.ReceiverID)
		if counterpart == "" {
			return nil, validationf("receiverId required when messaging about your own product")
		}
		counterpartEmail = ""
		u, err := store.GetUser(ctx, c.db, counterpart)
		if err != nil {
			return nil, err
		}
		if u != nil {
			counterpartEmail = u.Email
		}
	}
	if model.SameID(counterpart, senderID) {
		return nil, validationf("cannot message yourself")
	}

	return c.docs.UpsertConversation(ctx, &model.Conversation{
		ID:           uuid.NewString(),
		ProductID:    product.ID,
		ProductName:  product.Name,
		Participants: []string{senderID, counterpart},
		ParticipantEmails: map[string]string{
			senderID:    sender.Email,
			counterpart: counterpartEmail,
		},
		PairKey:       model.PairKey(senderID, counterpart),
		LastMessage:   model.Snippet(content),
		LastMessageAt: now,
		CreatedAt:     now,
	})
}

// ListForUser returns userID's conversations, most recent activity first.
func (c *Conversations) ListForUser(ctx context.Context, userID string) ([]model.ConversationView, error) {
	userID = strings.TrimSpace(userID)
	convs, err := c.docs.ListConversations(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]model.ConversationView, 0, len(convs))
	for _, conv := range convs {
		other := conv.Counterpart(userID)
		views = append(views, model.ConversationView{
			ID:             conv.ID,
			ProductID:      conv.ProductID,
			ProductName:    conv.ProductName,
			OtherUserID:    other,
			OtherUserEmail: conv.ParticipantEmails[other],
			LastMessage:    conv.LastMessage,
			LastMessageAt:  formatTime(conv.LastMessageAt),
		})
	}
	return views, nil
}

// ListMessages returns a conversation's messages, oldest first.
func (c *Conversations) ListMessages(ctx context.Context, caller auth.Identity, conversationID string) ([]model.MessageView, error) {
	conv, err := c.member(ctx, conversationID, caller.UserID)
	if err != nil {
		return nil, err
	}

	msgs, err := c.docs.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	views := make([]model.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, model.MessageView{
			ID:          m.ID,
			SenderID:    m.SenderID,
			SenderEmail: m.SenderEmail,
			Content:     m.Content,
			Timestamp:   formatTime(m.Timestamp),
		})
	}
	return views, nil
}

// member loads a conversation and checks that userID takes part in it. Non
// members are only turned away when membership is required.
func (c *Conversations) member(ctx context.Context, conversationID, userID string) (*model.Conversation, error) {
	conv, err := c.docs.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, model.ErrNotFound)
	}
	if !conv.HasParticipant(userID) {
		slog.Warn("conversation accessed by non-participant", "conversation", conv.ID, "user", userID)
		if c.requireMembership {
			return nil, fmt.Errorf("conversation %s: %w", conv.ID, model.ErrForbidden)
		}
	}
	return conv, nil
}
