// Package cache keeps raw JSON responses of the upstream API between tool runs.
package cache

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/alexgavs/eyeson-go/internal/config"
)

var ErrNotFound = errors.New("cache: key not found")

// Store is a key-value store of JSON documents.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Keys(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, key string) error
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

func validateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("cache: invalid key %q", key)
	}
	return nil
}

// New selects the backend named by CACHE_BACKEND.
func New(cfg *config.Config) (Store, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendFile, "":
		return NewFileStore(cfg.CacheDir), nil
	case config.CacheBackendMemory:
		return NewMemoryStore(), nil
	case config.CacheBackendRedis:
		return NewRedisStore(RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "eyeson:cache:",
			TTL:      time.Duration(cfg.CacheTTLSec) * time.Second,
		})
	}
	return nil, fmt.Errorf("cache: unknown backend %q", cfg.CacheBackend)
}
