package imagestore

import (
	"context"
	"database/sql"

	"github.com/unilost/lostfound/internal/store"
)

// ServePath is where the API serves images kept in the database.
const ServePath = "/api/images/"

// Database keeps image bytes in the images table.
type Database struct {
	DB *sql.DB
}

func (d *Database) Put(ctx context.Context, data []byte, mime string) (Ref, error) {
	key := newKey()
	if err := store.SaveImage(ctx, d.DB, key, data, mime); err != nil {
		return Ref{}, err
	}
	return Ref{URL: ServePath + key, Key: key}, nil
}

func (d *Database) Delete(ctx context.Context, key string) error {
	return store.DeleteImage(ctx, d.DB, key)
}
