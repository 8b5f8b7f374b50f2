package model

import "time"

// Message is a note exchanged between two users about an item.
type Message struct {
	ID         int64     `json:"id"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
	ItemID     int64     `json:"item_id"`
	ParentID   *int64    `json:"parent_id,omitempty"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"timestamp"`
	IsRead     bool      `json:"is_read"`

	// Joined fields (not always populated).
	SenderName   string `json:"sender_name,omitempty"`
	ReceiverName string `json:"receiver_name,omitempty"`
}

// Conversation summarises the messages a user has exchanged about one item.
type Conversation struct {
	ItemID               int64     `json:"item_id"`
	ItemName             string    `json:"item_name"`
	ItemType             ItemType  `json:"item_type"`
	ItemOwnerID          int64     `json:"item_owner_id"`
	ItemOwnerName        string    `json:"item_owner_name"`
	MessageCount         int       `json:"message_count"`
	LastMessageTime      time.Time `json:"last_message_time"`
	UnreadCount          int       `json:"unread_count"`
	OtherParticipantID   int64     `json:"other_participant_id,omitempty"`
	OtherParticipantName string    `json:"other_participant_name,omitempty"`
}
