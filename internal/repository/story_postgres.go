package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"bedtime-server/internal/model"
)

const storyFields = `id, user_id, title, content, status, story_type, language, moral,
	parent_story_id, params, quality_score, attempts_made, selection_note,
	error_details, audio_url, tokens_used, processing_time_ms, created_at, updated_at`

// StoryRepository - хранилище историй.
type StoryRepository interface {
	Create(ctx context.Context, story *model.Story) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Story, error)
	ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Story, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.StoryStatus) error
	SaveResult(ctx context.Context, story *model.Story) error
	HasActiveGeneration(ctx context.Context, userID uuid.UUID) (bool, error)
}

type pgStoryRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPgStoryRepository создает репозиторий историй поверх пула PostgreSQL.
func NewPgStoryRepository(db *pgxpool.Pool, logger *zap.Logger) StoryRepository {
	return &pgStoryRepository{
		db:     db,
		logger: logger.Named("StoryRepo"),
	}
}

// Create вставляет новую запись истории со статусом queued.
func (r *pgStoryRepository) Create(ctx context.Context, story *model.Story) error {
	query := `
        INSERT INTO stories
        (id, user_id, title, status, story_type, language, moral, parent_story_id, params)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		story.ID,
		story.UserID,
		story.Title,
		story.Status,
		story.StoryType,
		story.Language,
		story.Moral,
		story.ParentStoryID,
		story.Params,
	).Scan(&story.CreatedAt, &story.UpdatedAt)
	if err != nil {
		r.logger.Error("Ошибка создания записи истории",
			zap.String("story_id", story.ID.String()), zap.Error(err))
		return fmt.Errorf("ошибка создания истории '%s': %w", story.ID, err)
	}
	return nil
}

// GetByID возвращает историю по идентификатору.
func (r *pgStoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Story, error) {
	query := fmt.Sprintf(`SELECT %s FROM stories WHERE id = $1`, storyFields)

	var story model.Story
	err := pgxscan.Get(ctx, r.db, &story, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrStoryNotFound
		}
		r.logger.Error("Ошибка получения истории", zap.String("story_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения истории '%s': %w", id, err)
	}
	return &story, nil
}

// ListByUserID возвращает истории пользователя, новые первыми.
func (r *pgStoryRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Story, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM stories WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, storyFields)

	stories := make([]*model.Story, 0)
	err := pgxscan.Select(ctx, r.db, &stories, query, userID, limit, offset)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stories, nil
		}
		r.logger.Error("Ошибка получения списка историй",
			zap.String("user_id", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("ошибка получения списка историй пользователя '%s': %w", userID, err)
	}
	return stories, nil
}

// UpdateStatus обновляет только статус истории.
func (r *pgStoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.StoryStatus) error {
	query := `UPDATE stories SET status = $1, updated_at = NOW() WHERE id = $2`
	commandTag, err := r.db.Exec(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Ошибка обновления статуса истории",
			zap.String("story_id", id.String()), zap.String("status", string(status)), zap.Error(err))
		return fmt.Errorf("ошибка обновления статуса истории '%s': %w", id, err)
	}
	if commandTag.RowsAffected() == 0 {
		return model.ErrStoryNotFound
	}
	return nil
}

// SaveResult сохраняет итог генерации: текст, статус и метаданные контроля
// качества одной командой.
func (r *pgStoryRepository) SaveResult(ctx context.Context, story *model.Story) error {
	query := `
        UPDATE stories SET
            title = $1,
            content = $2,
            status = $3,
            quality_score = $4,
            attempts_made = $5,
            selection_note = $6,
            error_details = $7,
            tokens_used = $8,
            processing_time_ms = $9,
            updated_at = NOW()
        WHERE id = $10
    `
	commandTag, err := r.db.Exec(ctx, query,
		story.Title,
		story.Content,
		story.Status,
		story.QualityScore,
		story.AttemptsMade,
		story.SelectionNote,
		story.ErrorDetails,
		story.TokensUsed,
		story.ProcessingTimeMs,
		story.ID,
	)
	if err != nil {
		r.logger.Error("Ошибка сохранения результата генерации",
			zap.String("story_id", story.ID.String()), zap.Error(err))
		return fmt.Errorf("ошибка сохранения результата истории '%s': %w", story.ID, err)
	}
	if commandTag.RowsAffected() == 0 {
		return model.ErrStoryNotFound
	}
	r.logger.Debug("Результат генерации сохранен",
		zap.String("story_id", story.ID.String()), zap.String("status", string(story.Status)))
	return nil
}

// HasActiveGeneration проверяет, есть ли у пользователя незавершенная задача.
func (r *pgStoryRepository) HasActiveGeneration(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM stories WHERE user_id = $1 AND status IN ($2, $3))`
	var exists bool
	err := r.db.QueryRow(ctx, query, userID, model.StoryStatusQueued, model.StoryStatusGenerating).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки активной генерации пользователя '%s': %w", userID, err)
	}
	return exists, nil
}
