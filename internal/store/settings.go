package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

const settingJWTSecret = "jwt_secret"

// GetSetting returns a stored setting, or "" if it is not set.
func GetSetting(ctx context.Context, db Querier, name string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE name = ?`, name,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying setting %s: %w", name, err)
	}
	return value, nil
}

// GetJWTSecret retrieves the JWT secret from the database.
// If no secret exists, it generates one and stores it. When two processes
// race on first start, the loser's insert fails and it reads the winner's value.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	secret, err := GetSetting(ctx, db, settingJWTSecret)
	if err != nil || secret != "" {
		return secret, err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	candidate := hex.EncodeToString(buf)

	_, err = db.ExecContext(ctx,
		`INSERT INTO settings (name, value) VALUES (?, ?)`, settingJWTSecret, candidate,
	)
	if err == nil {
		return candidate, nil
	}
	if !isUniqueViolation(err) {
		return "", fmt.Errorf("storing jwt secret: %w", err)
	}

	return GetSetting(ctx, db, settingJWTSecret)
}
