package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iwvelando/goal-probability/internal/analyzer"
	"github.com/iwvelando/goal-probability/pkg/constants"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the persistent tier.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// RedisStore keeps result JSON in Redis under "<prefix>:result:<key>".
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return NewRedisStoreFromClient(rdb, cfg.Prefix), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = constants.DefaultRedisPrefix
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (s *RedisStore) fullKey(key string) string {
	return fmt.Sprintf("%s:result:%s", s.prefix, key)
}

// Load fetches a result. A missing key is not an error.
func (s *RedisStore) Load(ctx context.Context, key string) (*analyzer.Result, bool, error) {
	data, err := s.rdb.Get(ctx, s.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var res analyzer.Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, false, fmt.Errorf("cache unmarshal failed: %w", err)
	}
	return &res, true, nil
}

// Save stores a result with ttl.
func (s *RedisStore) Save(ctx context.Context, key string, res *analyzer.Result, ttl time.Duration) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}
	return s.rdb.Set(ctx, s.fullKey(key), data, ttl).Err()
}

// Delete removes keys.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.fullKey(k)
	}
	return s.rdb.Del(ctx, full...).Err()
}

// DeletePrefix removes every key starting with prefix. Glob characters in
// prefix match only themselves.
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	return s.deleteMatching(ctx, globEscaper.Replace(s.fullKey(prefix))+"*")
}

// Flush removes every result under this store's prefix.
func (s *RedisStore) Flush(ctx context.Context) error {
	_, err := s.deleteMatching(ctx, globEscaper.Replace(s.fullKey(""))+"*")
	return err
}

// globEscaper quotes the characters SCAN MATCH treats as pattern syntax.
var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func (s *RedisStore) deleteMatching(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return removed, fmt.Errorf("redis scan: %w", err)
		}
		if len(keys) > 0 {
			n, err := s.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("redis del: %w", err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
