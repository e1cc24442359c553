package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bedtime-server/internal/model"
)

// StoryCache - кэш готовых историй (cache-aside поверх PostgreSQL).
type StoryCache interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Story, error)
	Set(ctx context.Context, story *model.Story) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// ErrCacheMiss возвращается, когда истории нет в кэше.
var ErrCacheMiss = errors.New("story not found in cache")

type redisStoryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStoryCache создает кэш историй поверх Redis.
func NewRedisStoryCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) StoryCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &redisStoryCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("StoryCache"),
	}
}

func storyKey(id uuid.UUID) string {
	return fmt.Sprintf("story:%s", id)
}

func (c *redisStoryCache) Get(ctx context.Context, id uuid.UUID) (*model.Story, error) {
	data, err := c.client.Get(ctx, storyKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		c.logger.Warn("Ошибка чтения истории из Redis",
			zap.String("story_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get story %s from cache: %w", id, err)
	}

	var story model.Story
	if err := json.Unmarshal(data, &story); err != nil {
		// Поврежденная запись: удаляем и считаем промахом
		c.logger.Warn("Поврежденная запись в кэше историй, удаляем",
			zap.String("story_id", id.String()), zap.Error(err))
		_ = c.client.Del(ctx, storyKey(id)).Err()
		return nil, ErrCacheMiss
	}
	return &story, nil
}

func (c *redisStoryCache) Set(ctx context.Context, story *model.Story) error {
	// Кэшируем только готовые истории: промежуточные статусы быстро меняются
	if story.Status != model.StoryStatusReady {
		return nil
	}
	data, err := json.Marshal(story)
	if err != nil {
		return fmt.Errorf("failed to marshal story %s for cache: %w", story.ID, err)
	}
	if err := c.client.Set(ctx, storyKey(story.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Ошибка записи истории в Redis",
			zap.String("story_id", story.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to set story %s in cache: %w", story.ID, err)
	}
	return nil
}

func (c *redisStoryCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Del(ctx, storyKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate story %s in cache: %w", id, err)
	}
	return nil
}
