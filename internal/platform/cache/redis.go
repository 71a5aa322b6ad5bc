package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates a new Redis client.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// Versioned stores JSON payloads under keys that embed a namespace version.
// Bumping the version orphans every previous key, which then expires by TTL.
type Versioned struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewVersioned constructs a versioned cache for namespace.
func NewVersioned(client *redis.Client, namespace string, ttl time.Duration) *Versioned {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Versioned{client: client, namespace: namespace, ttl: ttl}
}

func (v *Versioned) versionKey() string {
	return v.namespace + ":version"
}

// Version returns the current namespace version, zero when unset.
func (v *Versioned) Version(ctx context.Context) (int64, error) {
	raw, err := v.client.Get(ctx, v.versionKey()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// Bump increments the version.
func (v *Versioned) Bump(ctx context.Context) (int64, error) {
	return v.client.Incr(ctx, v.versionKey()).Result()
}

// Key builds the storage key for suffix under the current version.
func (v *Versioned) Key(ctx context.Context, suffix string) (string, error) {
	version, err := v.Version(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d:%s", v.namespace, version, suffix), nil
}

// Get decodes the cached value into dest. It reports false on a miss.
func (v *Versioned) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := v.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value under key with the configured TTL.
func (v *Versioned) Set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return v.client.Set(ctx, key, payload, v.ttl).Err()
}
