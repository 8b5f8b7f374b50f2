// Package imagestore keeps item photos in the database, on Cloudinary or in
// an S3 bucket, behind one small interface.
package imagestore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/unilost/lostfound/internal/config"
)

// Ref locates a stored image. Key is what Delete takes.
type Ref struct {
	URL string `json:"url"`
	Key string `json:"public_id"`
}

// Store saves and removes normalised images.
type Store interface {
	Put(ctx context.Context, data []byte, mime string) (Ref, error)
	Delete(ctx context.Context, key string) error
}

// keyPrefix marks images uploaded by the portal.
const keyPrefix = "lost_found_"

func newKey() string {
	return keyPrefix + uuid.NewString()
}

// New builds the backend selected in cfg.
func New(ctx context.Context, cfg config.ImagesConfig, db *sql.DB) (Store, error) {
	switch cfg.Backend {
	case "", "database":
		return &Database{DB: db}, nil
	case "cloudinary":
		return &Cloudinary{
			CloudName: cfg.CloudinaryCloudName,
			APIKey:    cfg.CloudinaryAPIKey,
			APISecret: cfg.CloudinaryAPISecret,
			Folder:    cfg.CloudinaryFolder,
		}, nil
	case "s3":
		return NewS3(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Prefix:    cfg.S3Prefix,
			Endpoint:  cfg.S3Endpoint,
			PublicURL: cfg.S3PublicURL,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown image backend %q", cfg.Backend)
	}
}
