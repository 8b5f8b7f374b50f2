package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/unilost/lostfound/internal/model"
)

const messageSelect = `
	SELECT m.id, m.sender_id, m.receiver_id, m.item_id, m.parent_id, m.content, m.sent_at, m.is_read,
	       s.name, r.name
	FROM messages m
	JOIN users s ON s.id = m.sender_id
	JOIN users r ON r.id = m.receiver_id`

func scanMessage(row interface{ Scan(...any) error }) (*model.Message, error) {
	m := &model.Message{}
	var parent sql.NullInt64
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.ItemID, &parent, &m.Content, &m.SentAt, &m.IsRead,
		&m.SenderName, &m.ReceiverName)
	if err != nil {
		return nil, err
	}
	if parent.Valid {
		m.ParentID = &parent.Int64
	}
	return m, nil
}

func scanMessages(rows *sql.Rows) ([]model.Message, error) {
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// SendMessage stores a new unread message. Content is trimmed.
func SendMessage(ctx context.Context, db Querier, senderID, receiverID, itemID int64, parentID *int64, content string) (*model.Message, error) {
	var parent sql.NullInt64
	if parentID != nil {
		parent = sql.NullInt64{Int64: *parentID, Valid: true}
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO messages (sender_id, receiver_id, item_id, parent_id, content, sent_at, is_read)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		senderID, receiverID, itemID, parent, strings.TrimSpace(content), now(),
	)
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting message id: %w", err)
	}

	m, err := scanMessage(db.QueryRowContext(ctx, messageSelect+` WHERE m.id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}
	return m, nil
}

// GetMessage returns a message by ID.
func GetMessage(ctx context.Context, db Querier, id int64) (*model.Message, error) {
	m, err := scanMessage(db.QueryRowContext(ctx, messageSelect+` WHERE m.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting message: %w", err)
	}
	return m, nil
}

// GetConversation returns the messages on itemID that userID sent or
// received, oldest first.
func GetConversation(ctx context.Context, db Querier, userID, itemID int64) ([]model.Message, error) {
	rows, err := db.QueryContext(ctx,
		messageSelect+` WHERE m.item_id = ? AND (m.sender_id = ? OR m.receiver_id = ?)
		ORDER BY m.sent_at ASC, m.id ASC`,
		itemID, userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversation: %w", err)
	}
	return scanMessages(rows)
}

// ListConversations groups every message userID sent or received by item.
// The other participant of a conversation is the counterpart of its latest
// message. Conversations are ordered by last activity, most recent first.
func ListConversations(ctx context.Context, db Querier, userID int64) ([]model.Conversation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT m.id, m.item_id, i.name, i.type, i.user_id, o.name,
		       m.sender_id, s.name, m.receiver_id, r.name, m.sent_at, m.is_read
		FROM messages m
		JOIN items i ON i.id = m.item_id
		JOIN users o ON o.id = i.user_id
		JOIN users s ON s.id = m.sender_id
		JOIN users r ON r.id = m.receiver_id
		WHERE m.sender_id = ? OR m.receiver_id = ?
		ORDER BY m.sent_at ASC, m.id ASC`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var (
		byItem = make(map[int64]*model.Conversation)
		lastID = make(map[int64]int64)
	)
	for rows.Next() {
		var (
			msgID                int64
			c                    model.Conversation
			senderID, receiverID int64
			senderName, recvName string
			sentAt               time.Time
			isRead               bool
		)
		err := rows.Scan(&msgID, &c.ItemID, &c.ItemName, &c.ItemType, &c.ItemOwnerID, &c.ItemOwnerName,
			&senderID, &senderName, &receiverID, &recvName, &sentAt, &isRead)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation message: %w", err)
		}

		conv, ok := byItem[c.ItemID]
		if !ok {
			conv = &c
			byItem[c.ItemID] = conv
		}
		conv.MessageCount++
		conv.LastMessageTime = sentAt
		lastID[c.ItemID] = msgID
		if receiverID == userID && !isRead {
			conv.UnreadCount++
		}
		if senderID != userID {
			conv.OtherParticipantID, conv.OtherParticipantName = senderID, senderName
		} else {
			conv.OtherParticipantID, conv.OtherParticipantName = receiverID, recvName
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	convs := make([]model.Conversation, 0, len(byItem))
	for _, c := range byItem {
		convs = append(convs, *c)
	}
	sort.Slice(convs, func(i, j int) bool {
		if !convs[i].LastMessageTime.Equal(convs[j].LastMessageTime) {
			return convs[i].LastMessageTime.After(convs[j].LastMessageTime)
		}
		return lastID[convs[i].ItemID] > lastID[convs[j].ItemID]
	})
	return convs, nil
}

// MarkConversationRead marks every message userID received on itemID as
// read and returns how many changed.
func MarkConversationRead(ctx context.Context, db Querier, userID, itemID int64) (int64, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE messages SET is_read = 1 WHERE receiver_id = ? AND item_id = ? AND is_read = 0`,
		userID, itemID,
	)
	if err != nil {
		return 0, fmt.Errorf("marking conversation read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking updated rows: %w", err)
	}
	return n, nil
}

// UnreadCount returns how many unread messages userID has received.
func UnreadCount(ctx context.Context, db Querier, userID int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = ? AND is_read = 0`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting unread messages: %w", err)
	}
	return count, nil
}

// ResolveReplyReceiver picks who a reply on itemID from replierID goes to:
// the most recent other participant in the replier's thread, or the item
// owner when nobody else has taken part yet. In threads with three or more
// people this follows whoever spoke last.
func ResolveReplyReceiver(ctx context.Context, db Querier, itemID, replierID, ownerID int64) (int64, error) {
	var senderID, receiverID int64
	err := db.QueryRowContext(ctx,
		`SELECT sender_id, receiver_id FROM messages
		 WHERE item_id = ? AND (sender_id = ? OR receiver_id = ?)
		 ORDER BY sent_at DESC, id DESC
		 LIMIT 1`,
		itemID, replierID, replierID,
	).Scan(&senderID, &receiverID)
	if err == sql.ErrNoRows {
		return ownerID, nil
	}
	if err != nil {
		return 0, fmt.Errorf("resolving reply receiver: %w", err)
	}

	if senderID != replierID {
		return senderID, nil
	}
	return receiverID, nil
}
