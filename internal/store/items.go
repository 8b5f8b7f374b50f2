package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/unilost/lostfound/internal/model"
)

const itemSelect = `
	SELECT i.id, i.user_id, i.name, i.description, i.category, i.type, i.location,
	       i.date_lost_found, i.contact_info, i.image_url, i.image_key, i.status,
	       i.created_at, i.updated_at, u.name, u.email
	FROM items i
	JOIN users u ON u.id = i.user_id`

func scanItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	item := &model.Item{}
	var contact, imageURL, imageKey sql.NullString
	err := row.Scan(&item.ID, &item.UserID, &item.Name, &item.Description, &item.Category, &item.Type,
		&item.Location, &item.DateLostFound, &contact, &imageURL, &imageKey, &item.Status,
		&item.CreatedAt, &item.UpdatedAt, &item.OwnerName, &item.OwnerEmail)
	if err != nil {
		return nil, err
	}
	item.ContactInfo = contact.String
	item.ImageURL = imageURL.String
	item.ImageKey = imageKey.String
	return item, nil
}

// scanItems reads a list of items. Owner emails and image keys are dropped
// from lists.
func scanItems(rows *sql.Rows) ([]model.Item, error) {
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		item.OwnerEmail = ""
		item.ImageKey = ""
		items = append(items, *item)
	}
	return items, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// ItemImage references an image held by the image store.
type ItemImage struct {
	URL string
	Key string
}

// CreateItem creates a new item owned by userID. New items are always pending.
func CreateItem(ctx context.Context, db Querier, userID int64, in model.ItemInput, img ItemImage) (*model.Item, error) {
	ts := now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO items (user_id, name, description, category, type, location, date_lost_found,
		                    contact_info, image_url, image_key, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, in.Name, in.Description, in.Category, in.Type, in.Location, in.DateLostFound,
		nullString(in.ContactInfo), nullString(img.URL), nullString(img.Key), model.ItemStatusPending, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID regardless of status.
func GetItem(ctx context.Context, db Querier, id int64) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx, itemSelect+` WHERE i.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// GetApprovedItem returns an item only if it is publicly visible.
func GetApprovedItem(ctx context.Context, db Querier, id int64) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		itemSelect+` WHERE i.id = ? AND i.status = ?`, id, model.ItemStatusApproved,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting approved item: %w", err)
	}
	return item, nil
}

// GetOwnedItem returns an item only if userID owns it.
func GetOwnedItem(ctx context.Context, db Querier, id, userID int64) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		itemSelect+` WHERE i.id = ? AND i.user_id = ?`, id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting owned item: %w", err)
	}
	return item, nil
}

// SearchItems returns approved items matching filter, newest first.
// Search matches name or description by substring; Location matches by
// substring; Category and Type match exactly.
func SearchItems(ctx context.Context, db Querier, f model.ItemFilter) ([]model.Item, error) {
	var (
		where = []string{"i.status = ?"}
		args  = []any{model.ItemStatusApproved}
	)

	if f.Search != "" {
		where = append(where, "(i.name LIKE ? ESCAPE '!' OR i.description LIKE ? ESCAPE '!')")
		args = append(args, likePattern(f.Search), likePattern(f.Search))
	}
	if f.Category != "" {
		where = append(where, "i.category = ?")
		args = append(args, f.Category)
	}
	if f.Type != "" {
		where = append(where, "i.type = ?")
		args = append(args, f.Type)
	}
	if f.Location != "" {
		where = append(where, "i.location LIKE ? ESCAPE '!'")
		args = append(args, likePattern(f.Location))
	}

	rows, err := db.QueryContext(ctx,
		itemSelect+` WHERE `+strings.Join(where, " AND ")+` ORDER BY i.created_at DESC, i.id DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("searching items: %w", err)
	}
	return scanItems(rows)
}

// likePattern wraps s for a substring LIKE match with '!' as the escape
// character, so wildcards typed by the user are matched literally.
func likePattern(s string) string {
	r := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return "%" + r.Replace(s) + "%"
}

// RecentItems returns the newest approved items.
func RecentItems(ctx context.Context, db Querier, limit int) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		itemSelect+` WHERE i.status = ? ORDER BY i.created_at DESC, i.id DESC LIMIT ?`,
		model.ItemStatusApproved, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing recent items: %w", err)
	}
	return scanItems(rows)
}

// ListItemsByStatus returns all items in status, newest first.
func ListItemsByStatus(ctx context.Context, db Querier, status model.ItemStatus) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		itemSelect+` WHERE i.status = ? ORDER BY i.created_at DESC, i.id DESC`, status,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items by status: %w", err)
	}
	return scanItems(rows)
}

// ListUserItems returns every item owned by userID, newest first.
func ListUserItems(ctx context.Context, db Querier, userID int64) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		itemSelect+` WHERE i.user_id = ? ORDER BY i.created_at DESC, i.id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing user items: %w", err)
	}
	return scanItems(rows)
}

// ItemCategories returns the distinct categories of approved items.
func ItemCategories(ctx context.Context, db Querier) ([]string, error) {
	return distinctApproved(ctx, db, "category")
}

// ItemLocations returns the distinct locations of approved items.
func ItemLocations(ctx context.Context, db Querier) ([]string, error) {
	return distinctApproved(ctx, db, "location")
}

// distinctApproved lists distinct values of column; column is never user input.
func distinctApproved(ctx context.Context, db Querier, column string) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT DISTINCT `+column+` FROM items WHERE status = ? AND `+column+` <> '' ORDER BY `+column,
		model.ItemStatusApproved,
	)
	if err != nil {
		return nil, fmt.Errorf("listing item %ss: %w", column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scanning item %s: %w", column, err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// UpdateOwnedItem overwrites the editable fields of an item owned by userID
// and sends it back to moderation. Returns false if no such item exists.
func UpdateOwnedItem(ctx context.Context, db Querier, id, userID int64, in model.ItemInput, img ItemImage) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, category = ?, type = ?, location = ?,
		                  date_lost_found = ?, contact_info = ?, image_url = ?, image_key = ?,
		                  status = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		in.Name, in.Description, in.Category, in.Type, in.Location, in.DateLostFound,
		nullString(in.ContactInfo), nullString(img.URL), nullString(img.Key),
		model.ItemStatusPending, now(), id, userID,
	)
	if err != nil {
		return false, fmt.Errorf("updating item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking updated rows: %w", err)
	}
	return n > 0, nil
}

// ApplyItemAction runs a moderation action against the item's current
// status inside one transaction. Rejected items are removed together with
// their messages. It returns the item as it was before the action, or nil if
// the item does not exist; model.ErrInvalidTransition is returned unchanged.
func ApplyItemAction(ctx context.Context, db *sql.DB, id int64, action model.ItemAction) (*model.Item, error) {
	var before *model.Item
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		item, err := GetItem(ctx, tx, id)
		if err != nil || item == nil {
			return err
		}
		before = item

		next, deleted, err := model.Transition(item.Status, action)
		if err != nil {
			return err
		}
		if deleted {
			return deleteItemRows(ctx, tx, id)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE items SET status = ?, updated_at = ? WHERE id = ?`, next, now(), id,
		)
		if err != nil {
			return fmt.Errorf("updating item status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return before, nil
}

// DeleteOwnedItem removes an item owned by userID and every message about it
// in one transaction. It returns the deleted item so the caller can clean up
// its image, or nil if no such item exists.
func DeleteOwnedItem(ctx context.Context, db *sql.DB, id, userID int64) (*model.Item, error) {
	var deleted *model.Item
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		item, err := GetOwnedItem(ctx, tx, id, userID)
		if err != nil || item == nil {
			return err
		}
		if err := deleteItemRows(ctx, tx, id); err != nil {
			return err
		}
		deleted = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// deleteItemRows deletes an item's messages, then the item.
func deleteItemRows(ctx context.Context, tx *sql.Tx, id int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE item_id = ?`, id); err != nil {
		return fmt.Errorf("deleting item messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}
