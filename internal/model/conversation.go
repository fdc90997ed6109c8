package model

import (
	"sort"
	"time"
)

// Conversation is a thread between two users about one product.
type Conversation struct {
	ID                string            `json:"id" bson:"_id"`
	ProductID         int64             `json:"productId" bson:"productId"`
	ProductName       string            `json:"productName" bson:"productName"`
	Participants      []string          `json:"participants" bson:"participants"`
	ParticipantEmails map[string]string `json:"participantEmails" bson:"participantEmails"`
	PairKey           string            `json:"-" bson:"pairKey"`
	LastMessage       string            `json:"lastMessage" bson:"lastMessage"`
	LastMessageAt     time.Time         `json:"lastMessageAt" bson:"lastMessageAt"`
	CreatedAt         time.Time         `json:"createdAt" bson:"createdAt"`
}

// HasParticipant reports whether userID takes part in the conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if SameID(p, userID) {
			return true
		}
	}
	return false
}

// Counterpart returns the other participant's id.
func (c *Conversation) Counterpart(userID string) string {
	for _, p := range c.Participants {
		if !SameID(p, userID) {
			return p
		}
	}
	return ""
}

// PairKey identifies an unordered pair of users.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + "|" + ids[1]
}

// Message is one entry in a conversation.
type Message struct {
	ID             string    `json:"id" bson:"_id"`
	ConversationID string    `json:"conversationId" bson:"conversationId"`
	SenderID       string    `json:"senderId" bson:"senderId"`
	SenderEmail    string    `json:"senderEmail" bson:"senderEmail"`
	Content        string    `json:"content" bson:"content"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp"`
}

// ConversationView is a conversation as listed for one of its participants.
type ConversationView struct {
	ID             string `json:"id"`
	ProductID      int64  `json:"productId"`
	ProductName    string `json:"productName"`
	OtherUserID    string `json:"otherUserId"`
	OtherUserEmail string `json:"otherUserEmail"`
	LastMessage    string `json:"lastMessage"`
	LastMessageAt  string `json:"lastMessageAt"`
}

// MessageView is a message with its timestamp formatted for clients.
type MessageView struct {
	ID          string `json:"id"`
	SenderID    string `json:"senderId"`
	SenderEmail string `json:"senderEmail"`
	Content     string `json:"content"`
	Timestamp   string `json:"timestamp"`
}

// SnippetLength bounds the lastMessage preview stored on a conversation.
const SnippetLength = 120

// Snippet shortens content for the conversation preview.
func Snippet(content string) string {
	r := []rune(content)
	if len(r) <= SnippetLength {
		return content
	}
	return string(r[:SnippetLength]) + "…"
}
