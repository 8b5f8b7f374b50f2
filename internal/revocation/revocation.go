// Package revocation records logged-out tokens so they are refused until
// they would have expired anyway.
package revocation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unilost/lostfound/internal/store"
)

// Revoker tracks revoked token IDs.
type Revoker interface {
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// SQL keeps revocations in the revoked_tokens table.
type SQL struct {
	DB *sql.DB
}

func (s *SQL) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	return store.RevokeToken(ctx, s.DB, jti, expiresAt)
}

func (s *SQL) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return store.IsTokenRevoked(ctx, s.DB, jti)
}

// Redis keeps revocations as keys that expire with the token.
type Redis struct {
	rdb *redis.Client
}

// NewRedis wraps a connected client.
func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func redisKey(jti string) string {
	return "lostfound:revoked:" + jti
}

func (r *Redis) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := r.rdb.Set(ctx, redisKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

func (r *Redis) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.rdb.Exists(ctx, redisKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return n > 0, nil
}

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// New returns a Redis revoker when opts.Addr is set and the server answers
// a ping, and a SQL revoker otherwise. The returned close func releases the
// Redis connection, if any.
func New(ctx context.Context, db *sql.DB, opts RedisOptions) (Revoker, func() error, error) {
	if opts.Addr == "" {
		return &SQL{DB: db}, func() error { return nil }, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("connecting to redis at %s: %w", opts.Addr, err)
	}
	return NewRedis(rdb), rdb.Close, nil
}
