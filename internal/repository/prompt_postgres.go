package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"bedtime-server/internal/model"
)

const promptFields = `id, key, language, content, created_at, updated_at`

// PgPromptRepository - хранилище шаблонов промтов.
type PgPromptRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPgPromptRepository создает репозиторий промтов поверх пула PostgreSQL.
func NewPgPromptRepository(db *pgxpool.Pool, logger *zap.Logger) *PgPromptRepository {
	return &PgPromptRepository{
		db:     db,
		logger: logger.Named("PromptRepo"),
	}
}

// GetAll возвращает все шаблоны промтов для начальной загрузки кэша.
func (r *PgPromptRepository) GetAll(ctx context.Context) ([]model.PromptTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM prompts ORDER BY key, language`, promptFields)

	prompts := make([]model.PromptTemplate, 0)
	err := pgxscan.Select(ctx, r.db, &prompts, query)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return prompts, nil
		}
		r.logger.Error("Ошибка загрузки шаблонов промтов", zap.Error(err))
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	return prompts, nil
}

// GetByKeyAndLanguage возвращает один шаблон.
func (r *PgPromptRepository) GetByKeyAndLanguage(ctx context.Context, key, language string) (*model.PromptTemplate, error) {
	query := fmt.Sprintf(`SELECT %s FROM prompts WHERE key = $1 AND language = $2`, promptFields)

	var prompt model.PromptTemplate
	err := pgxscan.Get(ctx, r.db, &prompt, query, key, language)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrPromptNotFound
		}
		return nil, fmt.Errorf("failed to get prompt by key and language: %w", err)
	}
	return &prompt, nil
}

// Upsert создает или обновляет шаблон по паре (key, language).
func (r *PgPromptRepository) Upsert(ctx context.Context, prompt *model.PromptTemplate) error {
	query := `
        INSERT INTO prompts (key, language, content, created_at, updated_at)
        VALUES ($1, $2, $3, NOW(), NOW())
        ON CONFLICT (key, language) DO UPDATE SET
            content = EXCLUDED.content,
            updated_at = NOW()
        RETURNING id, created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query, prompt.Key, prompt.Language, prompt.Content).Scan(
		&prompt.ID, &prompt.CreatedAt, &prompt.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Ошибка upsert шаблона промта",
			zap.String("key", prompt.Key), zap.String("language", prompt.Language), zap.Error(err))
		return fmt.Errorf("failed to upsert prompt: %w", err)
	}
	return nil
}
