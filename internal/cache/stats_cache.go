// Package cache - кэши статистики (Redis) и ссылок на скачивание (LRU).
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/models"
)

const (
	fileStatsKey = "evidence:stats:files:%s"
	caseStatsKey = "evidence:stats:cases"
	globalScope  = "all"
)

// StatsCache хранит рассчитанную статистику в Redis как JSON.
// С nil-клиентом все методы ничего не делают, что означает выключенный кэш.
type StatsCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

func NewStatsCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *StatsCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StatsCache{redis: client, ttl: ttl, logger: logger}
}

// GetFileStats. Пустой caseID - глобальная статистика.
func (c *StatsCache) GetFileStats(ctx context.Context, caseID string) (*models.FileStats, bool) {
	var stats models.FileStats
	if !c.get(ctx, fileKey(caseID), &stats) {
		return nil, false
	}
	return &stats, true
}

func (c *StatsCache) SetFileStats(ctx context.Context, caseID string, stats *models.FileStats) {
	c.set(ctx, fileKey(caseID), stats)
}

func (c *StatsCache) GetCaseStats(ctx context.Context) (*models.CaseStats, bool) {
	var stats models.CaseStats
	if !c.get(ctx, caseStatsKey, &stats) {
		return nil, false
	}
	return &stats, true
}

func (c *StatsCache) SetCaseStats(ctx context.Context, stats *models.CaseStats) {
	c.set(ctx, caseStatsKey, stats)
}

// Invalidate сбрасывает статистику кейса и зависящие от нее глобальные значения.
func (c *StatsCache) Invalidate(ctx context.Context, caseID string) {
	if c.redis == nil {
		return
	}

	keys := []string{fileKey(globalScope), caseStatsKey}
	if caseID != "" {
		keys = append(keys, fileKey(caseID))
	}

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Str("case_id", caseID).Msg("Failed to invalidate stats cache")
	}
}

func (c *StatsCache) get(ctx context.Context, key string, dest interface{}) bool {
	if c.redis == nil {
		return false
	}

	cached, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("key", key).Msg("Stats cache read failed")
		}
		return false
	}

	if err := json.Unmarshal([]byte(cached), dest); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Stats cache entry is corrupted")
		return false
	}
	return true
}

func (c *StatsCache) set(ctx context.Context, key string, value interface{}) {
	if c.redis == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Stats cache write failed")
	}
}

func fileKey(caseID string) string {
	if caseID == "" {
		caseID = globalScope
	}
	return fmt.Sprintf(fileStatsKey, caseID)
}

// NewRedisClient подключается к Redis и проверяет соединение.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
