package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nmakarov/repricer/internal/core/domain"
)

const sessionKeyPrefix = "session:"

// RedisSessionStore reads merchant sessions written by the login
// automation. One JSON blob per shop under "session:{shopID}".
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

func (r *RedisSessionStore) Load(ctx context.Context, shopID string) (domain.Session, error) {
	raw, err := r.client.Get(ctx, sessionKeyPrefix+shopID).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, fmt.Errorf("shop %s: no session: %w", shopID, domain.ErrSessionExpired)
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session for shop %s: %w", shopID, err)
	}

	var sess domain.Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return domain.Session{}, fmt.Errorf("decode session for shop %s: %w", shopID, domain.ErrSessionExpired)
	}
	if !sess.Valid {
		return domain.Session{}, fmt.Errorf("shop %s: %w", shopID, domain.ErrSessionExpired)
	}
	return sess, nil
}

// Save stores a session under the configured TTL. The engine never calls
// this; it exists for the login automation side and for tests.
func (r *RedisSessionStore) Save(ctx context.Context, shopID string, sess domain.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session for shop %s: %w", shopID, err)
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+shopID, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("save session for shop %s: %w", shopID, err)
	}
	return nil
}
