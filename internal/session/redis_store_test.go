package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/store"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client, err := Connect("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	rs := NewRedisStore(client)
	t.Cleanup(func() { _ = rs.Close() })
	return rs, s
}

func testTrainer(id int64) store.Trainer {
	return store.Trainer{ID: id, FirstName: "Sam", LastName: "Lee", Role: "trainer"}
}

func TestConnect(t *testing.T) {
	rs, _ := setupTestRedis(t)
	if err := rs.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
	if _, err := Connect("://nope"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestTakeRefreshSessionIsSingleUse(t *testing.T) {
	rs, s := setupTestRedis(t)
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "hash-1", testTrainer(123), time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	if !s.Exists(refreshPrefix + "hash-1") {
		t.Fatal("refresh session not stored under its prefix")
	}

	data, err := rs.TakeRefreshSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("TakeRefreshSession failed: %v", err)
	}
	if data.TrainerID != 123 || data.DisplayName != "Sam Lee" || data.Role != "trainer" {
		t.Errorf("unexpected token data: %+v", data)
	}
	if _, err := rs.TakeRefreshSession(ctx, "hash-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second take error = %v, want ErrSessionNotFound", err)
	}
}

func TestConcurrentTakeHasOneWinner(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ctx := context.Background()
	if err := rs.SaveRefreshSession(ctx, "contended", testTrainer(5), time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := rs.TakeRefreshSession(ctx, "contended"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("refresh token exchanged %d times", wins)
	}
}

func TestExpiredRefreshSession(t *testing.T) {
	rs, s := setupTestRedis(t)
	ctx := context.Background()

	if err := rs.SaveRefreshSession(ctx, "expired-token", testTrainer(456), time.Now().Add(50*time.Millisecond)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	s.FastForward(time.Second)

	if _, err := rs.TakeRefreshSession(ctx, "expired-token"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound for expired token, got %v", err)
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	rs, _ := setupTestRedis(t)
	ctx := context.Background()
	expiresAt := time.Now().Add(24 * time.Hour)

	for _, hash := range []string{"token-1", "token-2"} {
		if err := rs.SaveRefreshSession(ctx, hash, testTrainer(1), expiresAt); err != nil {
			t.Fatalf("SaveRefreshSession %s failed: %v", hash, err)
		}
	}
	if err := rs.RevokeRefreshSession(ctx, "token-1"); err != nil {
		t.Fatalf("RevokeRefreshSession failed: %v", err)
	}
	if err := rs.RevokeRefreshSession(ctx, "never-issued"); err != nil {
		t.Errorf("revoking an unknown token failed: %v", err)
	}
	if _, err := rs.TakeRefreshSession(ctx, "token-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("revoked token still usable: %v", err)
	}
	if _, err := rs.TakeRefreshSession(ctx, "token-2"); err != nil {
		t.Errorf("unrelated token lost: %v", err)
	}
}

func TestRevokedAccessTokens(t *testing.T) {
	rs, s := setupTestRedis(t)
	ctx := context.Background()

	if err := rs.RevokeAccessToken(ctx, "jti-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("RevokeAccessToken failed: %v", err)
	}
	revoked, err := rs.IsAccessTokenRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("IsAccessTokenRevoked() = %v, %v", revoked, err)
	}
	if err := rs.RevokeAccessToken(ctx, "jti-old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("RevokeAccessToken(expired) failed: %v", err)
	}
	if s.Exists(revokedPrefix + "jti-old") {
		t.Fatal("expired tokens need no denylist entry")
	}

	s.FastForward(2 * time.Minute)
	if revoked, _ := rs.IsAccessTokenRevoked(ctx, "jti-1"); revoked {
		t.Fatal("denylist entry should expire with the token")
	}
}
