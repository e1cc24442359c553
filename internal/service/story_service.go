package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bedtime-server/internal/messaging"
	"bedtime-server/internal/model"
	"bedtime-server/internal/repository"
)

// Максимальная длина краткого содержания родительской истории в промте продолжения.
const parentSummaryMaxWords = 120

// CreateStoryRequest - входные данные запроса на генерацию истории.
type CreateStoryRequest struct {
	StoryType       model.StoryType `json:"story_type"`
	Language        string          `json:"language"`
	Moral           string          `json:"moral"`
	DurationMinutes int             `json:"duration_minutes"`
	ThemeHint       string          `json:"theme_hint,omitempty"`
	ChildProfileID  *uuid.UUID      `json:"child_profile_id,omitempty"`
	HeroProfileID   *uuid.UUID      `json:"hero_profile_id,omitempty"`
	ParentStoryID   *uuid.UUID      `json:"parent_story_id,omitempty"`
}

// StoryService - прикладной сервис историй: постановка задач генерации,
// чтение готовых историй, списки.
type StoryService struct {
	stories   repository.StoryRepository
	profiles  repository.ProfileRepository
	cache     repository.StoryCache
	publisher messaging.TaskPublisher
	gate      SubscriptionGate
	logger    *zap.Logger
}

// NewStoryService создает сервис историй. Gate может быть nil, тогда проверка
// подписки пропускается.
func NewStoryService(
	stories repository.StoryRepository,
	profiles repository.ProfileRepository,
	cache repository.StoryCache,
	publisher messaging.TaskPublisher,
	gate SubscriptionGate,
	logger *zap.Logger,
) *StoryService {
	return &StoryService{
		stories:   stories,
		profiles:  profiles,
		cache:     cache,
		publisher: publisher,
		gate:      gate,
		logger:    logger.Named("StoryService"),
	}
}

// CreateStory проверяет запрос, создает запись истории в статусе queued и
// ставит задачу генерации в очередь воркера.
func (s *StoryService) CreateStory(ctx context.Context, userID uuid.UUID, req CreateStoryRequest) (*model.Story, error) {
	if s.gate != nil {
		if err := s.gate.CanGenerate(ctx, userID.String()); err != nil {
			return nil, err
		}
	}

	active, err := s.stories.HasActiveGeneration(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, model.ErrUserHasActiveGeneration
	}

	params, err := s.buildParameters(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal story parameters: %w", err)
	}

	story := &model.Story{
		ID:            uuid.New(),
		UserID:        userID,
		Status:        model.StoryStatusQueued,
		StoryType:     params.StoryType,
		Language:      params.Language,
		Moral:         params.Moral,
		ParentStoryID: params.ParentStoryID,
		Params:        paramsJSON,
	}
	if err := s.stories.Create(ctx, story); err != nil {
		return nil, err
	}

	payload := messaging.GenerationTaskPayload{
		TaskID: story.ID.String(),
		UserID: userID.String(),
		Params: params,
	}
	if err := s.publisher.PublishTask(ctx, payload); err != nil {
		// Задачу не удалось поставить: помечаем историю ошибочной, чтобы не
		// блокировать пользователя висящим queued
		if updErr := s.stories.UpdateStatus(ctx, story.ID, model.StoryStatusError); updErr != nil {
			s.logger.Error("Не удалось пометить историю ошибочной после сбоя публикации",
				zap.String("story_id", story.ID.String()), zap.Error(updErr))
		}
		return nil, fmt.Errorf("failed to enqueue generation task: %w", err)
	}

	s.logger.Info("Задача генерации поставлена в очередь",
		zap.String("story_id", story.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("story_type", string(params.StoryType)))

	return story, nil
}

// GetStory возвращает историю пользователя, используя кэш для готовых.
func (s *StoryService) GetStory(ctx context.Context, userID, storyID uuid.UUID) (*model.Story, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, storyID); err == nil {
			if cached.UserID != userID {
				return nil, model.ErrForbidden
			}
			return cached, nil
		} else if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn("Ошибка кэша историй, читаем из БД",
				zap.String("story_id", storyID.String()), zap.Error(err))
		}
	}

	story, err := s.stories.GetByID(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.UserID != userID {
		return nil, model.ErrForbidden
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, story); err != nil {
			s.logger.Warn("Не удалось записать историю в кэш",
				zap.String("story_id", storyID.String()), zap.Error(err))
		}
	}
	return story, nil
}

// ListStories возвращает страницу историй пользователя.
func (s *StoryService) ListStories(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Story, error) {
	return s.stories.ListByUserID(ctx, userID, limit, offset)
}

// buildParameters собирает StoryParameters из запроса, подгружая профили и
// родительскую историю.
func (s *StoryService) buildParameters(ctx context.Context, userID uuid.UUID, req CreateStoryRequest) (model.StoryParameters, error) {
	params := model.StoryParameters{
		StoryType:       req.StoryType,
		Language:        strings.ToLower(strings.TrimSpace(req.Language)),
		Moral:           strings.TrimSpace(req.Moral),
		DurationMinutes: req.DurationMinutes,
		ThemeHint:       strings.TrimSpace(req.ThemeHint),
	}

	if req.ChildProfileID != nil {
		child, err := s.profiles.GetChildProfile(ctx, *req.ChildProfileID)
		if err != nil {
			return params, err
		}
		if child.UserID != userID {
			return params, model.ErrForbidden
		}
		params.Child = child
	}

	if req.HeroProfileID != nil {
		hero, err := s.profiles.GetHeroProfile(ctx, *req.HeroProfileID)
		if err != nil {
			return params, err
		}
		if hero.UserID != userID {
			return params, model.ErrForbidden
		}
		params.Hero = hero
	}

	if req.ParentStoryID != nil {
		parent, err := s.stories.GetByID(ctx, *req.ParentStoryID)
		if err != nil {
			return params, err
		}
		if parent.UserID != userID {
			return params, model.ErrForbidden
		}
		if parent.Status != model.StoryStatusReady {
			return params, model.ErrStoryNotReadyYet
		}
		params.ParentStoryID = req.ParentStoryID
		params.ParentSummary = summarize(parent.Content, parentSummaryMaxWords)
	}

	return params, nil
}

// summarize обрезает текст до maxWords слов для промта продолжения.
func summarize(content string, maxWords int) string {
	words := strings.Fields(content)
	if len(words) <= maxWords {
		return content
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
