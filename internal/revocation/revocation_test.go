package revocation

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/unilost/lostfound/internal/db"
)

func testRevoker(t *testing.T, r Revoker) {
	t.Helper()
	ctx := context.Background()
	jti := uuid.NewString()

	revoked, err := r.IsRevoked(ctx, jti)
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if revoked {
		t.Fatal("expected fresh token not to be revoked")
	}

	if err := r.Revoke(ctx, jti, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := r.Revoke(ctx, jti, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}

	revoked, err = r.IsRevoked(ctx, jti)
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Error("expected token to be revoked")
	}
}

func TestSQLRevoker(t *testing.T) {
	r, closeFn, err := New(context.Background(), db.NewTestDB(t), RedisOptions{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closeFn()

	if _, ok := r.(*SQL); !ok {
		t.Fatalf("expected SQL revoker without redis address, got %T", r)
	}
	testRevoker(t, r)
}

func TestRedisRevoker(t *testing.T) {
	addr := os.Getenv("LOSTFOUND_TEST_REDIS")
	if addr == "" {
		t.Skip("LOSTFOUND_TEST_REDIS not set")
	}

	r, closeFn, err := New(context.Background(), nil, RedisOptions{Addr: addr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer closeFn()

	if _, ok := r.(*Redis); !ok {
		t.Fatalf("expected Redis revoker, got %T", r)
	}
	testRevoker(t, r)
}

func TestRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, _, err := New(ctx, nil, RedisOptions{Addr: "127.0.0.1:1"}); err == nil {
		t.Error("expected error for unreachable redis")
	}
}
