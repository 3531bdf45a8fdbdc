package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nmakarov/repricer/internal/core/domain"
)

func getRedis(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestSessionRoundTrip(t *testing.T) {
	client := getRedis(t)
	defer client.Close()
	ctx := context.Background()

	store := NewRedisSessionStore(client, time.Minute)
	shopID := fmt.Sprintf("test-shop-%d", time.Now().UnixNano())
	defer client.Del(ctx, sessionKeyPrefix+shopID)

	want := domain.Session{
		Valid:      true,
		MerchantID: "m-42",
		Cookies:    map[string]string{"sid": "abc", "csrf": "def"},
	}
	if err := store.Save(ctx, shopID, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Load(ctx, shopID)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.MerchantID != want.MerchantID {
		t.Errorf("expected merchant %q, got %q", want.MerchantID, got.MerchantID)
	}
	if got.Cookies["sid"] != "abc" {
		t.Errorf("cookies lost in round trip: %v", got.Cookies)
	}
}

func TestLoad_MissingSessionIsExpired(t *testing.T) {
	client := getRedis(t)
	defer client.Close()

	store := NewRedisSessionStore(client, time.Minute)
	_, err := store.Load(context.Background(), "test-shop-without-session")
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}

func TestLoad_InvalidatedSessionIsExpired(t *testing.T) {
	client := getRedis(t)
	defer client.Close()
	ctx := context.Background()

	store := NewRedisSessionStore(client, time.Minute)
	shopID := fmt.Sprintf("test-shop-%d", time.Now().UnixNano())
	defer client.Del(ctx, sessionKeyPrefix+shopID)

	// The login automation marks a session invalid when re-auth fails.
	sess := domain.Session{Valid: false, MerchantID: "m-42"}
	if err := store.Save(ctx, shopID, sess); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, err := store.Load(ctx, shopID)
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}

func TestLoad_GarbageSessionIsExpired(t *testing.T) {
	client := getRedis(t)
	defer client.Close()
	ctx := context.Background()

	shopID := fmt.Sprintf("test-shop-%d", time.Now().UnixNano())
	key := sessionKeyPrefix + shopID
	if err := client.Set(ctx, key, "not json", time.Minute).Err(); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	defer client.Del(ctx, key)

	store := NewRedisSessionStore(client, time.Minute)
	_, err := store.Load(ctx, shopID)
	if !errors.Is(err, domain.ErrSessionExpired) {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}
}
