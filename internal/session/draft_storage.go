package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DraftStorage keeps intake drafts in Redis under one namespace per trainer,
// so a trainer's drafts follow them between devices.
type DraftStorage struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewDraftStorage scopes keys to "draft:{namespace}:". A zero ttl keeps keys forever.
func NewDraftStorage(client *redis.Client, namespace string, ttl time.Duration) *DraftStorage {
	return &DraftStorage{client: client, prefix: "draft:" + namespace + ":", ttl: ttl}
}

func (s *DraftStorage) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get draft key %s: %w", key, err)
	}
	return value, true, nil
}

func (s *DraftStorage) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("set draft key %s: %w", key, err)
	}
	return nil
}

func (s *DraftStorage) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("remove draft key %s: %w", key, err)
	}
	return nil
}
