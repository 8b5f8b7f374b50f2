package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/unilost/lostfound/internal/store"
)

// MessagesHandler handles conversations between users about items.
type MessagesHandler struct {
	DB *sql.DB
}

type sendMessageRequest struct {
	ReceiverID int64  `json:"receiver_id"`
	ItemID     int64  `json:"item_id"`
	Content    string `json:"content"`
	ParentID   *int64 `json:"parent_id"`
}

// Send handles POST /api/messages. Without a receiver_id the message goes to
// whoever the sender last exchanged messages with about the item, or to the
// item's owner.
func (h *MessagesHandler) Send(w http.ResponseWriter, r *http.Request) {
	sender := GetUser(r.Context())

	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Content = strings.TrimSpace(req.Content)
	if req.ItemID <= 0 || req.Content == "" {
		jsonError(w, http.StatusBadRequest, "item_id and content required")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, req.ItemID)
	if err != nil {
		serverError(w, r, "failed to send message", err)
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	receiverID := req.ReceiverID
	if receiverID == 0 {
		receiverID, err = store.ResolveReplyReceiver(r.Context(), h.DB, item.ID, sender.ID, item.UserID)
		if err != nil {
			serverError(w, r, "failed to send message", err)
			return
		}
	} else {
		receiver, err := store.GetUser(r.Context(), h.DB, receiverID)
		if err != nil {
			serverError(w, r, "failed to send message", err)
			return
		}
		if receiver == nil {
			jsonError(w, http.StatusNotFound, "receiver not found")
			return
		}
	}

	if receiverID == sender.ID {
		jsonError(w, http.StatusBadRequest, "cannot send a message to yourself")
		return
	}

	if req.ParentID != nil {
		parent, err := store.GetMessage(r.Context(), h.DB, *req.ParentID)
		if err != nil {
			serverError(w, r, "failed to send message", err)
			return
		}
		if parent == nil || parent.ItemID != item.ID {
			jsonError(w, http.StatusBadRequest, "invalid parent message")
			return
		}
	}

	msg, err := store.SendMessage(r.Context(), h.DB, sender.ID, receiverID, item.ID, req.ParentID, req.Content)
	if err != nil {
		serverError(w, r, "failed to send message", err)
		return
	}

	slog.Info("message sent", "message_id", msg.ID, "item_id", item.ID, "sender_id", sender.ID, "receiver_id", receiverID)
	jsonResponse(w, http.StatusCreated, map[string]any{"success": true, "message": msg})
}

// Conversations handles GET /api/messages/conversations.
func (h *MessagesHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	convs, err := store.ListConversations(r.Context(), h.DB, GetUser(r.Context()).ID)
	if err != nil {
		serverError(w, r, "failed to fetch conversations", err)
		return
	}
	jsonResponse(w, http.StatusOK, convs)
}

// Conversation handles GET /api/messages/conversation/{itemId}.
func (h *MessagesHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(r, "itemId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, itemID)
	if err != nil {
		serverError(w, r, "failed to fetch conversation", err)
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}

	msgs, err := store.GetConversation(r.Context(), h.DB, GetUser(r.Context()).ID, itemID)
	if err != nil {
		serverError(w, r, "failed to fetch conversation", err)
		return
	}
	jsonResponse(w, http.StatusOK, emptyIfNil(msgs))
}

// MarkRead handles POST /api/messages/mark-read/{itemId}.
func (h *MessagesHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(r, "itemId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	n, err := store.MarkConversationRead(r.Context(), h.DB, GetUser(r.Context()).ID, itemID)
	if err != nil {
		serverError(w, r, "failed to mark messages read", err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"success": true, "updated": n})
}

// UnreadCount handles GET /api/messages/unread-count.
func (h *MessagesHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := store.UnreadCount(r.Context(), h.DB, GetUser(r.Context()).ID)
	if err != nil {
		serverError(w, r, "failed to count messages", err)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"count": count})
}

// ItemDetails handles GET /api/messages/item-details/{itemId}. Unlike the
// public detail endpoint it answers for items in any status.
func (h *MessagesHandler) ItemDetails(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(r, "itemId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetItem(r.Context(), h.DB, itemID)
	if err != nil {
		serverError(w, r, "failed to fetch item", err)
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	item.OwnerEmail = ""
	item.ImageKey = ""
	jsonResponse(w, http.StatusOK, item)
}
