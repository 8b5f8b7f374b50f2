package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SaveImage stores image bytes under key.
func SaveImage(ctx context.Context, db Querier, key string, data []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO images (image_key, data, mime, created_at) VALUES (?, ?, ?, ?)`,
		key, data, mime, now(),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("saving image: %w", err)
	}
	return nil
}

// GetImage returns an image's data and MIME type. Data is nil if no image
// is stored under key.
func GetImage(ctx context.Context, db Querier, key string) ([]byte, string, error) {
	var data []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT data, mime FROM images WHERE image_key = ?`, key,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting image: %w", err)
	}
	return data, mime, nil
}

// DeleteImage removes an image. Deleting a missing key is not an error.
func DeleteImage(ctx context.Context, db Querier, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM images WHERE image_key = ?`, key); err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return nil
}
