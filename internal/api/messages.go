package api

import (
	"encoding/json"
	"net/http"

	"github.com/AUTO-HOST/auto-host-backend/internal/market"
)

// MessagesHandler handles conversation endpoints.
type MessagesHandler struct {
	Conversations *market.Conversations
}

// sendRequest accepts productId as a JSON number or a numeric string.
type sendRequest struct {
	ConversationID string      `json:"conversationId"`
	ProductID      json.Number `json:"productId"`
	ReceiverID     string      `json:"receiverId"`
	Content        string      `json:"content"`
}

// Send handles POST /api/messages/send.
func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	send := market.SendRequest{
		ConversationID: req.ConversationID,
		ReceiverID:     req.ReceiverID,
		Content:        req.Content,
	}
	if send.ConversationID == "" {
		if req.ProductID == "" {
			jsonError(w, http.StatusBadRequest, "conversationId or productId required")
			return
		}
		id, err := market.ParseProductID(req.ProductID.String())
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid productId")
			return
		}
		send.ProductID = id
	}

	result, err := h.Conversations.Send(r.Context(), identity(r), send)
	if err != nil {
		writeError(w, r, err, "failed to send message")
		return
	}

	jsonResponse(w, http.StatusCreated, map[string]string{
		"message":        "Mensaje enviado con éxito",
		"conversationId": result.ConversationID,
		"messageId":      result.MessageID,
	})
}

// ListConversations handles GET /api/messages/conversations.
func (h *MessagesHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	views, err := h.Conversations.ListForUser(r.Context(), identity(r).UserID)
	if err != nil {
		writeError(w, r, err, "failed to list conversations")
		return
	}
	jsonResponse(w, http.StatusOK, views)
}

// Messages handles GET /api/messages/{conversationId}/messages.
func (h *MessagesHandler) Messages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.Conversations.ListMessages(r.Context(), identity(r), r.PathValue("conversationId"))
	if err != nil {
		writeError(w, r, err, "failed to list messages")
		return
	}
	jsonResponse(w, http.StatusOK, messages)
}
