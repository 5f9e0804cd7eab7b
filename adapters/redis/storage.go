package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/samir777-eng/ebad-academy-sub001/core"
	"github.com/samir777-eng/ebad-academy-sub001/engine"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" yaml:"addr" env:"PROGRESSION_REDIS_ADDR"`
	Password     string        `json:"password" yaml:"password" env:"PROGRESSION_REDIS_PASSWORD"`
	DB           int           `json:"db" yaml:"db" env:"PROGRESSION_REDIS_DB"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size" env:"PROGRESSION_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" yaml:"min_idle_conns" env:"PROGRESSION_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout" env:"PROGRESSION_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" env:"PROGRESSION_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" env:"PROGRESSION_REDIS_WRITE_TIMEOUT"`
	TTL          time.Duration `json:"ttl" yaml:"ttl" env:"PROGRESSION_CACHE_TTL"`
	KeyPrefix    string        `json:"key_prefix" yaml:"key_prefix" env:"PROGRESSION_CACHE_KEY_PREFIX"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		TTL:          10 * time.Minute,
		KeyPrefix:    "progression:",
	}
}

// NewClient connects to Redis and verifies the connection.
func NewClient(config Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Cache decorates a Storage with a read-through Redis cache for curriculum
// reads. Progress reads and all writes go straight to the inner store.
// Key layout:
// - {prefix}lesson:{id} -> JSON lesson with questions
// - {prefix}level:{id}:lessons -> JSON lesson list
// - {prefix}level:{id} -> JSON level
// - {prefix}badge:{id} -> JSON badge
// - {prefix}badges:auto -> JSON badge list
//
// Redis failures degrade to the inner store and are logged, never returned.
type Cache struct {
	engine.Storage
	client *redis.Client
	ttl    time.Duration
	prefix string
	group  singleflight.Group
	logger *slog.Logger
}

// NewCache wraps inner. A zero TTL falls back to the default.
func NewCache(inner engine.Storage, client *redis.Client, config Config, logger *slog.Logger) *Cache {
	def := DefaultConfig()
	if config.TTL <= 0 {
		config.TTL = def.TTL
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = def.KeyPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{Storage: inner, client: client, ttl: config.TTL, prefix: config.KeyPrefix, logger: logger}
}

// Close closes the Redis connection
func (c *Cache) Close() error { return c.client.Close() }

// Ping reports whether Redis is reachable.
func (c *Cache) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

func (c *Cache) key(parts ...any) string {
	k := c.prefix
	for i, p := range parts {
		if i > 0 {
			k += ":"
		}
		k += fmt.Sprint(p)
	}
	return k
}

// cached loads key into out, calling load on a miss. Concurrent misses for the
// same key share one load.
func cached[T any](ctx context.Context, c *Cache, key string, load func() (T, error)) (T, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var out T
		if err := json.Unmarshal(raw, &out); err == nil {
			return out, nil
		}
		c.logger.Warn("discarding undecodable cache entry", "key", key)
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("cache read failed", "key", key, "error", err)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		val, err := load()
		if err != nil {
			return val, err
		}
		data, mErr := json.Marshal(val)
		if mErr == nil {
			if sErr := c.client.Set(ctx, key, data, c.ttl).Err(); sErr != nil {
				c.logger.Warn("cache write failed", "key", key, "error", sErr)
			}
		}
		return val, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (c *Cache) GetLesson(ctx context.Context, id core.LessonID) (core.Lesson, error) {
	return cached(ctx, c, c.key("lesson", id), func() (core.Lesson, error) {
		return c.Storage.GetLesson(ctx, id)
	})
}

func (c *Cache) ListLessonsByLevel(ctx context.Context, level core.LevelID) ([]core.Lesson, error) {
	return cached(ctx, c, c.key("level", level, "lessons"), func() ([]core.Lesson, error) {
		return c.Storage.ListLessonsByLevel(ctx, level)
	})
}

func (c *Cache) GetLevel(ctx context.Context, id core.LevelID) (core.Level, error) {
	return cached(ctx, c, c.key("level", id), func() (core.Level, error) {
		return c.Storage.GetLevel(ctx, id)
	})
}

func (c *Cache) GetBadge(ctx context.Context, id core.BadgeID) (core.Badge, error) {
	return cached(ctx, c, c.key("badge", id), func() (core.Badge, error) {
		return c.Storage.GetBadge(ctx, id)
	})
}

func (c *Cache) ListAutoBadges(ctx context.Context) ([]core.Badge, error) {
	return cached(ctx, c, c.key("badges", "auto"), func() ([]core.Badge, error) {
		return c.Storage.ListAutoBadges(ctx)
	})
}

func (c *Cache) invalidate(ctx context.Context, keys ...string) {
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("cache invalidation failed", "keys", keys, "error", err)
	}
}

func (c *Cache) writer() (engine.CurriculumWriter, error) {
	w, ok := c.Storage.(engine.CurriculumWriter)
	if !ok {
		return nil, errors.New("inner store does not accept curriculum writes")
	}
	return w, nil
}

// PutLevel writes through and drops cached copies of the level.
func (c *Cache) PutLevel(ctx context.Context, level core.Level) error {
	w, err := c.writer()
	if err != nil {
		return err
	}
	if err := w.PutLevel(ctx, level); err != nil {
		return err
	}
	c.invalidate(ctx, c.key("level", level.ID))
	return nil
}

// PutLesson writes through and drops the lesson and the lesson list of its level.
// A lesson moved between levels leaves the old level's list to expire by TTL.
func (c *Cache) PutLesson(ctx context.Context, lesson core.Lesson) error {
	w, err := c.writer()
	if err != nil {
		return err
	}
	if err := w.PutLesson(ctx, lesson); err != nil {
		return err
	}
	c.invalidate(ctx, c.key("lesson", lesson.ID), c.key("level", lesson.LevelID, "lessons"))
	return nil
}

// PutBadge writes through and drops the badge and the automatic badge list.
func (c *Cache) PutBadge(ctx context.Context, badge core.Badge) error {
	w, err := c.writer()
	if err != nil {
		return err
	}
	if err := w.PutBadge(ctx, badge); err != nil {
		return err
	}
	c.invalidate(ctx, c.key("badge", badge.ID), c.key("badges", "auto"))
	return nil
}

var (
	_ engine.Storage          = (*Cache)(nil)
	_ engine.CurriculumWriter = (*Cache)(nil)
)
