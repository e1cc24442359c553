package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bedtime-server/internal/generation"
	"bedtime-server/internal/messaging"
	"bedtime-server/internal/model"
	"bedtime-server/internal/repository"
	"bedtime-server/internal/service"
)

const (
	saveMaxAttempts = 3
	saveBaseDelay   = 500 * time.Millisecond
)

// TaskHandler обрабатывает одну задачу генерации из очереди: прогоняет запрос
// через конвейер контроля качества, сохраняет итог и шлет уведомление.
type TaskHandler struct {
	workflow *generation.Workflow
	stories  repository.StoryRepository
	cache    repository.StoryCache
	notifier service.Notifier
	logger   *zap.Logger
}

// NewTaskHandler создает обработчик задач генерации.
func NewTaskHandler(
	workflow *generation.Workflow,
	stories repository.StoryRepository,
	cache repository.StoryCache,
	notifier service.Notifier,
	logger *zap.Logger,
) *TaskHandler {
	return &TaskHandler{
		workflow: workflow,
		stories:  stories,
		cache:    cache,
		notifier: notifier,
		logger:   logger.Named("TaskHandler"),
	}
}

// Handle обрабатывает тело одного сообщения очереди. Возвращенная ошибка
// означает, что сообщение нужно отправить в DLQ (nack без requeue); nil
// означает ack.
func (h *TaskHandler) Handle(ctx context.Context, body []byte) error {
	start := time.Now()
	metricsIncrementTasksReceived()

	var task messaging.GenerationTaskPayload
	if err := json.Unmarshal(body, &task); err != nil {
		h.logger.Error("Не удалось разобрать тело задачи", zap.Error(err),
			zap.ByteString("body", body))
		metricsIncrementTaskFailed("unmarshal")
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	log := h.logger.With(zap.String("task_id", task.TaskID), zap.String("user_id", task.UserID))
	log.Info("Получена задача генерации истории",
		zap.String("story_type", string(task.Params.StoryType)),
		zap.String("language", task.Params.Language))

	storyID, err := uuid.Parse(task.TaskID)
	if err != nil {
		log.Error("Некорректный taskId в задаче", zap.Error(err))
		metricsIncrementTaskFailed("bad_task_id")
		return fmt.Errorf("invalid task id %q: %w", task.TaskID, err)
	}

	// Помечаем историю как взятую в работу. Если запись уже удалена,
	// задачу просто подтверждаем.
	if err := h.stories.UpdateStatus(ctx, storyID, model.StoryStatusGenerating); err != nil {
		if errors.Is(err, model.ErrStoryNotFound) {
			log.Warn("История для задачи не найдена, задача пропущена")
			metricsIncrementTaskFailed("story_not_found")
			return nil
		}
		log.Error("Не удалось пометить историю как generating", zap.Error(err))
		metricsIncrementTaskFailed("db_update_status")
		return fmt.Errorf("failed to mark story as generating: %w", err)
	}

	// Конвейер сам не возвращает ошибок: любой исход закодирован в статусе.
	state := h.workflow.Execute(ctx, task.TaskID, task.UserID, task.Params)
	result := state.Result()

	log.Info("Конвейер генерации завершен",
		zap.String("workflow_status", string(result.Status)),
		zap.Bool("success", result.Success),
		zap.Int("attempts", result.AttemptCount),
		zap.Int("quality_score", result.QualityScore))

	story := h.buildStoryResult(storyID, result, time.Since(start))

	if err := h.saveResultWithRetry(ctx, story); err != nil {
		log.Error("Не удалось сохранить результат генерации", zap.Error(err))
		metricsIncrementTaskFailed("db_save_result")
		return err
	}

	h.refreshCache(ctx, story, log)
	h.notify(ctx, task, story, result, log)

	h.recordMetrics(result, time.Since(start))
	if err := PushMetricsNow(); err != nil {
		log.Warn("Не удалось отправить метрики", zap.Error(err))
	}

	return nil
}

// buildStoryResult проецирует итог конвейера на запись истории в БД.
func (h *TaskHandler) buildStoryResult(storyID uuid.UUID, result generation.Result, elapsed time.Duration) *model.Story {
	story := &model.Story{
		ID:               storyID,
		Title:            result.Title,
		Content:          result.Content,
		QualityScore:     result.QualityScore,
		AttemptsMade:     result.AttemptCount,
		SelectionNote:    result.SelectionReason,
		ErrorDetails:     result.ErrorMessage,
		TokensUsed:       result.TokensUsed,
		ProcessingTimeMs: elapsed.Milliseconds(),
	}

	switch result.Status {
	case generation.StatusSuccess:
		story.Status = model.StoryStatusReady
	case generation.StatusRejected:
		story.Status = model.StoryStatusRejected
	default:
		story.Status = model.StoryStatusError
	}
	return story
}

// saveResultWithRetry сохраняет результат с экспоненциальным backoff.
// БД может быть временно недоступна, а терять готовую историю жалко.
func (h *TaskHandler) saveResultWithRetry(ctx context.Context, story *model.Story) error {
	var lastErr error
	for attempt := 1; attempt <= saveMaxAttempts; attempt++ {
		lastErr = h.stories.SaveResult(ctx, story)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, model.ErrStoryNotFound) {
			return lastErr
		}
		if attempt < saveMaxAttempts {
			delay := saveBaseDelay * time.Duration(1<<(attempt-1))
			jitter := time.Duration(rand.Int63n(int64(delay)/5)) - delay/10
			h.logger.Warn("Повтор сохранения результата",
				zap.String("story_id", story.ID.String()),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay+jitter),
				zap.Error(lastErr))
			select {
			case <-time.After(delay + jitter):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("failed to save story result after %d attempts: %w", saveMaxAttempts, lastErr)
}

// refreshCache инвалидирует кэш истории и кладет готовую версию.
// Ошибки кэша не влияют на исход задачи.
func (h *TaskHandler) refreshCache(ctx context.Context, story *model.Story, log *zap.Logger) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx, story.ID); err != nil {
		log.Warn("Не удалось инвалидировать кэш истории", zap.Error(err))
	}
	if story.Status == model.StoryStatusReady {
		if err := h.cache.Set(ctx, story); err != nil {
			log.Warn("Не удалось закэшировать готовую историю", zap.Error(err))
		}
	}
}

// notify публикует уведомление о завершении задачи. Ошибка публикации
// логируется, но не откатывает уже сохраненный результат.
func (h *TaskHandler) notify(ctx context.Context, task messaging.GenerationTaskPayload, story *model.Story, result generation.Result, log *zap.Logger) {
	if h.notifier == nil {
		return
	}

	payload := messaging.NotificationPayload{
		TaskID:  task.TaskID,
		UserID:  task.UserID,
		StoryID: story.ID,
	}
	switch story.Status {
	case model.StoryStatusReady:
		payload.Status = messaging.NotificationStatusSuccess
		payload.Title = story.Title
		payload.QualityScore = story.QualityScore
	case model.StoryStatusRejected:
		payload.Status = messaging.NotificationStatusRejected
		payload.ErrorDetails = result.ErrorMessage
	default:
		payload.Status = messaging.NotificationStatusError
		payload.ErrorDetails = result.ErrorMessage
	}

	if err := h.notifier.Notify(ctx, payload); err != nil {
		log.Error("Не удалось отправить уведомление о завершении задачи", zap.Error(err))
	}
}

func (h *TaskHandler) recordMetrics(result generation.Result, elapsed time.Duration) {
	metricsRecordTaskDuration(elapsed)
	metricsRecordStoryOutcome(string(result.Status))
	metricsAddTokensUsed(float64(result.TokensUsed))

	switch result.Status {
	case generation.StatusSuccess:
		metricsIncrementTaskSucceeded()
		metricsRecordStoryQuality(result.QualityScore, result.AttemptCount)
	case generation.StatusRejected:
		metricsIncrementTaskFailed("validation_rejected")
	default:
		metricsIncrementTaskFailed("generation_failed")
	}
}
