package model

import (
	"errors"
	"strings"
	"time"
)

// Item represents a reported lost or found object.
type Item struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	Type          ItemType   `json:"type"`
	Location      string     `json:"location"`
	DateLostFound string     `json:"date_lost_found"`
	ContactInfo   string     `json:"contact_info,omitempty"`
	ImageURL      string     `json:"image_url,omitempty"`
	ImageKey      string     `json:"image_public_id,omitempty"`
	Status        ItemStatus `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Joined fields (not always populated).
	OwnerName  string `json:"user_name,omitempty"`
	OwnerEmail string `json:"user_email,omitempty"`
}

// ItemType says whether an item was lost or found.
type ItemType string

// Item types.
const (
	ItemTypeLost  ItemType = "lost"
	ItemTypeFound ItemType = "found"
)

// ItemStatus is the moderation state of an item.
type ItemStatus string

// Item statuses.
const (
	ItemStatusPending  ItemStatus = "pending"
	ItemStatusApproved ItemStatus = "approved"
	ItemStatusReturned ItemStatus = "returned"
)

// ItemAction is a moderation action.
type ItemAction string

// Moderation actions.
const (
	ActionApprove      ItemAction = "approve"
	ActionReject       ItemAction = "reject"
	ActionMarkReturned ItemAction = "mark_returned"
)

// ErrInvalidTransition is returned when an action does not apply to the
// item's current status.
var ErrInvalidTransition = errors.New("action not allowed for current item status")

// ErrUnknownAction is returned for actions outside the closed set.
var ErrUnknownAction = errors.New("invalid action")

// Transition applies action to status. When deleted is true the item leaves
// the state machine and its row must be removed.
func Transition(status ItemStatus, action ItemAction) (next ItemStatus, deleted bool, err error) {
	switch action {
	case ActionApprove:
		if status != ItemStatusPending {
			return status, false, ErrInvalidTransition
		}
		return ItemStatusApproved, false, nil
	case ActionReject:
		if status != ItemStatusPending {
			return status, false, ErrInvalidTransition
		}
		return status, true, nil
	case ActionMarkReturned:
		if status != ItemStatusApproved {
			return status, false, ErrInvalidTransition
		}
		return ItemStatusReturned, false, nil
	}
	return status, false, ErrUnknownAction
}

// DateLayout is the format of DateLostFound.
const DateLayout = "2006-01-02"

// ItemInput holds the owner-editable fields of an item.
type ItemInput struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Category      string   `json:"category"`
	Type          ItemType `json:"type"`
	Location      string   `json:"location"`
	DateLostFound string   `json:"date_lost_found"`
	ContactInfo   string   `json:"contact_info"`
}

// Normalize trims surrounding whitespace from every field.
func (in *ItemInput) Normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Type = ItemType(strings.TrimSpace(string(in.Type)))
	in.Location = strings.TrimSpace(in.Location)
	in.DateLostFound = strings.TrimSpace(in.DateLostFound)
	// Browsers may send a full ISO timestamp; only the date is kept.
	if strings.IndexByte(in.DateLostFound, 'T') == len(DateLayout) {
		in.DateLostFound = in.DateLostFound[:len(DateLayout)]
	}
	in.ContactInfo = strings.TrimSpace(in.ContactInfo)
}

// Validate checks that required fields are present and well formed.
func (in *ItemInput) Validate() error {
	if in.Name == "" || in.Description == "" || in.Category == "" || in.Type == "" || in.Location == "" || in.DateLostFound == "" {
		return errors.New("missing required fields")
	}
	if in.Type != ItemTypeLost && in.Type != ItemTypeFound {
		return errors.New("type must be lost or found")
	}
	if _, err := time.Parse(DateLayout, in.DateLostFound); err != nil {
		return errors.New("date_lost_found must be YYYY-MM-DD")
	}
	return nil
}

// ItemFilter narrows a public search. Empty fields are ignored.
type ItemFilter struct {
	Search   string
	Category string
	Type     ItemType
	Location string
}
