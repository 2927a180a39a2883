package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisOps is the part of *redis.Client the store uses.
type redisOps interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Address  string // redis://host:port or host:port
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration // zero keeps entries forever
}

type RedisStore struct {
	ops    redisOps
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects and pings the server before returning.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	var rdb *redis.Client

	opt, err := redis.ParseURL(cfg.Address)
	if err != nil {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	} else {
		if cfg.Password != "" {
			opt.Password = cfg.Password
		}
		if cfg.DB != 0 {
			opt.DB = cfg.DB
		}
		rdb = redis.NewClient(opt)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return newRedisStore(rdb, cfg.Prefix, cfg.TTL), nil
}

func newRedisStore(ops redisOps, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{ops: ops, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Close() error {
	return s.ops.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := s.ops.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}
	return data, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, data []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.ops.Set(ctx, s.prefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	log.Printf("[Cache] Stored %s%s (ttl=%s)", s.prefix, key, s.ttl)
	return nil
}

func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var cursor uint64
	// SCAN may return a key more than once
	seen := make(map[string]struct{})
	for {
		page, next, err := s.ops.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan cache keys: %w", err)
		}
		for _, k := range page {
			seen[strings.TrimPrefix(k, s.prefix)] = struct{}{}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.ops.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}
