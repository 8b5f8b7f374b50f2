package store

import (
	"context"
	"fmt"

	"github.com/unilost/lostfound/internal/model"
)

// GetPublicStats counts the publicly visible items, approved or returned.
func GetPublicStats(ctx context.Context, db Querier) (*model.PublicStats, error) {
	s := &model.PublicStats{}
	err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN type = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM items WHERE status IN (?, ?)`,
		model.ItemTypeLost, model.ItemTypeFound, model.ItemStatusReturned,
		model.ItemStatusApproved, model.ItemStatusReturned,
	).Scan(&s.TotalItems, &s.LostItems, &s.FoundItems, &s.ReturnedItems)
	if err != nil {
		return nil, fmt.Errorf("counting public stats: %w", err)
	}
	return s, nil
}

// GetUserStats counts the items owned by userID.
func GetUserStats(ctx context.Context, db Querier, userID int64) (*model.UserStats, error) {
	s := &model.UserStats{}
	err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN type = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM items WHERE user_id = ?`,
		model.ItemTypeLost, model.ItemTypeFound,
		model.ItemStatusPending, model.ItemStatusApproved, model.ItemStatusReturned,
		userID,
	).Scan(&s.TotalItems, &s.LostItems, &s.FoundItems, &s.PendingItems, &s.ApprovedItems, &s.ReturnedItems)
	if err != nil {
		return nil, fmt.Errorf("counting user stats: %w", err)
	}
	return s, nil
}

// GetModerationStats counts every item by status.
func GetModerationStats(ctx context.Context, db Querier) (*model.ModerationStats, error) {
	s := &model.ModerationStats{}
	err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM items`,
		model.ItemStatusPending, model.ItemStatusApproved, model.ItemStatusReturned,
	).Scan(&s.TotalItems, &s.PendingItems, &s.ApprovedItems, &s.ReturnedItems)
	if err != nil {
		return nil, fmt.Errorf("counting moderation stats: %w", err)
	}
	return s, nil
}
