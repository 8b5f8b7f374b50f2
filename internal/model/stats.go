package model

// PublicStats counts items visible in the public catalogue.
type PublicStats struct {
	TotalItems    int `json:"total_items"`
	LostItems     int `json:"lost_items"`
	FoundItems    int `json:"found_items"`
	ReturnedItems int `json:"returned_items"`
}

// UserStats counts one owner's items.
type UserStats struct {
	TotalItems    int `json:"total_items"`
	LostItems     int `json:"lost_items"`
	FoundItems    int `json:"found_items"`
	PendingItems  int `json:"pending_items"`
	ApprovedItems int `json:"approved_items"`
	ReturnedItems int `json:"returned_items"`
}

// ModerationStats counts every item by status.
type ModerationStats struct {
	TotalItems    int `json:"total_items"`
	PendingItems  int `json:"pending_items"`
	ApprovedItems int `json:"approved_items"`
	ReturnedItems int `json:"returned_items"`
}
