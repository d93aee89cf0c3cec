package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when the token has no session entry
var ErrSessionNotFound = errors.New("session not found")

type Config struct {
	Addr            string
	Password        string
	SessionsHashKey string
}

// ValkeyClient resolves session tokens issued by the authentication service
type ValkeyClient struct {
	client          *redis.Client
	sessionsHashKey string
}

func NewValkeyClient(cfg Config) (*ValkeyClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return NewValkeyClientFromRedis(rdb, cfg.SessionsHashKey), nil
}

// NewValkeyClientFromRedis wraps an existing client
func NewValkeyClientFromRedis(rdb *redis.Client, sessionsHashKey string) *ValkeyClient {
	if sessionsHashKey == "" {
		sessionsHashKey = "sessions"
	}
	return &ValkeyClient{
		client:          rdb,
		sessionsHashKey: sessionsHashKey,
	}
}

// GetUserIDBySession returns the user id stored for the session token
func (v *ValkeyClient) GetUserIDBySession(ctx context.Context, token string) (string, error) {
	userID, err := v.client.HGet(ctx, v.sessionsHashKey, token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrSessionNotFound
		}
		return "", fmt.Errorf("cache lookup error: %w", err)
	}
	if userID == "" {
		return "", ErrSessionNotFound
	}
	return userID, nil
}

// Ping reports whether the cache is reachable
func (v *ValkeyClient) Ping(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
