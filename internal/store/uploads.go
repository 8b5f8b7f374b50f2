package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Upload records which user stored an image, so only they can attach it.
type Upload struct {
	Key    string
	URL    string
	UserID int64
}

// RecordUpload notes that userID uploaded the image under key.
func RecordUpload(ctx context.Context, db Querier, key, url string, userID int64) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO uploads (image_key, image_url, user_id, created_at) VALUES (?, ?, ?, ?)`,
		key, url, userID, now(),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("recording upload: %w", err)
	}
	return nil
}

// GetUpload returns the upload record for key.
func GetUpload(ctx context.Context, db Querier, key string) (*Upload, error) {
	u := &Upload{}
	err := db.QueryRowContext(ctx,
		`SELECT image_key, image_url, user_id FROM uploads WHERE image_key = ?`, key,
	).Scan(&u.Key, &u.URL, &u.UserID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting upload: %w", err)
	}
	return u, nil
}

// ForgetUpload removes the upload record for key.
func ForgetUpload(ctx context.Context, db Querier, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM uploads WHERE image_key = ?`, key); err != nil {
		return fmt.Errorf("forgetting upload: %w", err)
	}
	return nil
}

// ImageInUse reports whether any item still references the image under key.
func ImageInUse(ctx context.Context, db Querier, key string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE image_key = ?`, key,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking image use: %w", err)
	}
	return n > 0, nil
}
