// Package session keeps short-lived server state in Redis: refresh tokens,
// the access token denylist, intake drafts and the summary job queue.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/store"
)

var ErrSessionNotFound = errors.New("refresh session not found or expired")

const (
	refreshPrefix = "smartgains:refresh:"
	revokedPrefix = "smartgains:revoked:"
	// refresh sessions without a usable expiry still go away eventually
	fallbackRefreshTTL = 30 * 24 * time.Hour
)

// TokenData is what a refresh token resolves to.
type TokenData struct {
	TrainerID   int64     `json:"trainer_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

type RedisStore struct {
	client *redis.Client
}

// Connect parses a redis:// URL and pings the server.
func Connect(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", opts.Addr, err)
	}
	return client, nil
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) SaveRefreshSession(ctx context.Context, tokenHash string, trainer store.Trainer, expiresAt time.Time) error {
	payload, err := json.Marshal(TokenData{
		TrainerID:   trainer.ID,
		DisplayName: trainer.DisplayName(),
		Role:        trainer.Role,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal refresh session: %w", err)
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = fallbackRefreshTTL
	}
	if err := s.client.Set(ctx, refreshPrefix+tokenHash, payload, ttl).Err(); err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

// TakeRefreshSession returns and deletes the session in one GETDEL, so a
// refresh token can be exchanged at most once even under concurrent requests.
func (s *RedisStore) TakeRefreshSession(ctx context.Context, tokenHash string) (TokenData, error) {
	raw, err := s.client.GetDel(ctx, refreshPrefix+tokenHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return TokenData{}, ErrSessionNotFound
	}
	if err != nil {
		return TokenData{}, fmt.Errorf("take refresh session: %w", err)
	}
	var data TokenData
	if err := json.Unmarshal(raw, &data); err != nil {
		return TokenData{}, fmt.Errorf("decode refresh session: %w", err)
	}
	if data.Role == "" {
		data.Role = "assistant"
	}
	return data, nil
}

func (s *RedisStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, refreshPrefix+tokenHash).Err(); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// RevokeAccessToken denylists a token id until the token would have expired anyway.
func (s *RedisStore) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *RedisStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
