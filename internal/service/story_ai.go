package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"bedtime-server/internal/generation"
	"bedtime-server/internal/schemas"
)

// StoryAI адаптирует AIClient к интерфейсам ядра генерации: один клиент
// обслуживает и генерацию историй, и вызовы судьи (валидация, оценка).
type StoryAI struct {
	client AIClient
	logger *zap.Logger
}

// NewStoryAI создает адаптер поверх AI клиента.
func NewStoryAI(client AIClient, logger *zap.Logger) *StoryAI {
	return &StoryAI{
		client: client,
		logger: logger.Named("StoryAI"),
	}
}

// GenerateStory выполняет одну попытку генерации истории и разбирает ответ
// модели в пару заголовок/текст.
func (s *StoryAI) GenerateStory(ctx context.Context, req generation.GenerationRequest) (generation.GenerationOutput, error) {
	temp := req.Temperature
	maxTokens := req.MaxTokens
	raw, usage, err := s.client.GenerateText(ctx, req.ModelID, req.SystemPrompt, req.UserPrompt, GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return generation.GenerationOutput{}, err
	}

	env, err := schemas.ParseStoryEnvelope(raw)
	if err != nil {
		return generation.GenerationOutput{}, fmt.Errorf("не удалось разобрать ответ модели: %w", err)
	}

	s.logger.Debug("История сгенерирована",
		zap.String("model", req.ModelID),
		zap.Int("content_chars", len(env.Content)),
		zap.Int("total_tokens", usage.TotalTokens))

	return generation.GenerationOutput{
		Content:    env.Content,
		Title:      env.Title,
		TokensUsed: usage.TotalTokens,
		ModelUsed:  req.ModelID,
	}, nil
}

// Judge выполняет один вызов модели-судьи. Низкая температура делает вердикты
// воспроизводимыми.
func (s *StoryAI) Judge(ctx context.Context, instructions string, input string, modelID string) (string, error) {
	temp := 0.1
	raw, _, err := s.client.GenerateText(ctx, modelID, instructions, input, GenerationParams{
		Temperature: &temp,
	})
	return raw, err
}
