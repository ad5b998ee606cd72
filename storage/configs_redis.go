package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"playground/logx"
)

// RedisConfigStore keeps model configs in Redis, for sharing them between
// machines. Layout under prefix:
//
//	<prefix>:configs            set of config names
//	<prefix>:config-seq         hash name -> latest version
//	<prefix>:config:<name>      hash version -> JSON
type RedisConfigStore struct {
	rdb    redis.Cmdable
	prefix string
	closer func() error
}

// NewRedisConfigStore wraps an existing client.
func NewRedisConfigStore(rdb redis.Cmdable, prefix string) *RedisConfigStore {
	if prefix == "" {
		prefix = "playground"
	}
	return &RedisConfigStore{rdb: rdb, prefix: prefix, closer: func() error { return nil }}
}

// OpenRedisConfigStore connects to url ("redis://host:6379/0") and checks
// the connection.
func OpenRedisConfigStore(ctx context.Context, url string) (*RedisConfigStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.DialTimeout = 5 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	s := NewRedisConfigStore(client, "")
	s.closer = client.Close
	return s, nil
}

func (s *RedisConfigStore) namesKey() string { return s.prefix + ":configs" }
func (s *RedisConfigStore) seqKey() string   { return s.prefix + ":config-seq" }
func (s *RedisConfigStore) configKey(name string) string {
	return fmt.Sprintf("%s:config:%s", s.prefix, name)
}

func (s *RedisConfigStore) Save(ctx context.Context, c ModelConfig) (ModelConfig, error) {
	if err := c.Validate(); err != nil {
		return ModelConfig{}, err
	}

	v, err := s.rdb.HIncrBy(ctx, s.seqKey(), c.Name, 1).Result()
	if err != nil {
		return ModelConfig{}, fmt.Errorf("failed to allocate version: %w", err)
	}
	c.Version = int(v)
	c.CreatedAt = time.Now().UTC()

	b, err := json.Marshal(c)
	if err != nil {
		return ModelConfig{}, fmt.Errorf("failed to marshal config: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.configKey(c.Name), strconv.Itoa(c.Version), b)
		p.SAdd(ctx, s.namesKey(), c.Name)
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("config", c.Name).Msg("failed to write config to redis")
		return ModelConfig{}, fmt.Errorf("failed to save config: %w", err)
	}
	return c, nil
}

func (s *RedisConfigStore) Get(ctx context.Context, name string, version int) (ModelConfig, error) {
	if version <= 0 {
		latest, err := s.rdb.HGet(ctx, s.seqKey(), name).Int()
		if errors.Is(err, redis.Nil) {
			return ModelConfig{}, fmt.Errorf("%w: %s", ErrConfigNotFound, name)
		}
		if err != nil {
			return ModelConfig{}, fmt.Errorf("failed to read latest version: %w", err)
		}
		version = latest
	}

	raw, err := s.rdb.HGet(ctx, s.configKey(name), strconv.Itoa(version)).Result()
	if errors.Is(err, redis.Nil) {
		return ModelConfig{}, fmt.Errorf("%w: %s", ErrConfigNotFound, versionLabel(name, version))
	}
	if err != nil {
		return ModelConfig{}, fmt.Errorf("failed to load config: %w", err)
	}

	var c ModelConfig
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return ModelConfig{}, fmt.Errorf("config %s: %w", versionLabel(name, version), err)
	}
	return c, nil
}

func (s *RedisConfigStore) Versions(ctx context.Context, name string) ([]ModelConfig, error) {
	all, err := s.rdb.HGetAll(ctx, s.configKey(name)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query versions: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, name)
	}

	out := make([]ModelConfig, 0, len(all))
	for field, raw := range all {
		var c ModelConfig
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("config %s v%s: %w", name, field, err)
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b ModelConfig) int { return a.Version - b.Version })
	return out, nil
}

func (s *RedisConfigStore) List(ctx context.Context) ([]ModelConfig, error) {
	names, err := s.rdb.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list configs: %w", err)
	}
	slices.Sort(names)

	out := make([]ModelConfig, 0, len(names))
	for _, name := range names {
		c, err := s.Get(ctx, name, 0)
		if errors.Is(err, ErrConfigNotFound) {
			logx.Warn().Str("config", name).Msg("config listed but missing, skipping")
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *RedisConfigStore) Delete(ctx context.Context, name string) error {
	var del *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		del = p.Del(ctx, s.configKey(name))
		p.HDel(ctx, s.seqKey(), name)
		p.SRem(ctx, s.namesKey(), name)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete config: %w", err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s", ErrConfigNotFound, name)
	}
	return nil
}

func (s *RedisConfigStore) Close() error {
	return s.closer()
}
