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

// ProfileRepository - хранилище профилей детей и героев.
type ProfileRepository interface {
	CreateChildProfile(ctx context.Context, profile *model.ChildProfile) error
	GetChildProfile(ctx context.Context, id uuid.UUID) (*model.ChildProfile, error)
	ListChildProfiles(ctx context.Context, userID uuid.UUID) ([]*model.ChildProfile, error)
	CreateHeroProfile(ctx context.Context, profile *model.HeroProfile) error
	GetHeroProfile(ctx context.Context, id uuid.UUID) (*model.HeroProfile, error)
	ListHeroProfiles(ctx context.Context, userID uuid.UUID) ([]*model.HeroProfile, error)
}

type pgProfileRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewPgProfileRepository создает репозиторий профилей поверх пула PostgreSQL.
func NewPgProfileRepository(db *pgxpool.Pool, logger *zap.Logger) ProfileRepository {
	return &pgProfileRepository{
		db:     db,
		logger: logger.Named("ProfileRepo"),
	}
}

func (r *pgProfileRepository) CreateChildProfile(ctx context.Context, profile *model.ChildProfile) error {
	query := `
        INSERT INTO child_profiles (id, user_id, name, age, gender, interests)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		profile.ID, profile.UserID, profile.Name, profile.Age, profile.Gender, profile.Interests,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		r.logger.Error("Ошибка создания профиля ребенка",
			zap.String("user_id", profile.UserID.String()), zap.Error(err))
		return fmt.Errorf("ошибка создания профиля ребенка: %w", err)
	}
	return nil
}

func (r *pgProfileRepository) GetChildProfile(ctx context.Context, id uuid.UUID) (*model.ChildProfile, error) {
	query := `SELECT id, user_id, name, age, gender, interests, created_at, updated_at
	          FROM child_profiles WHERE id = $1`

	var profile model.ChildProfile
	err := pgxscan.Get(ctx, r.db, &profile, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrProfileNotFound
		}
		return nil, fmt.Errorf("ошибка получения профиля ребенка '%s': %w", id, err)
	}
	return &profile, nil
}

func (r *pgProfileRepository) ListChildProfiles(ctx context.Context, userID uuid.UUID) ([]*model.ChildProfile, error) {
	query := `SELECT id, user_id, name, age, gender, interests, created_at, updated_at
	          FROM child_profiles WHERE user_id = $1 ORDER BY created_at`

	profiles := make([]*model.ChildProfile, 0)
	err := pgxscan.Select(ctx, r.db, &profiles, query, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ошибка получения профилей детей пользователя '%s': %w", userID, err)
	}
	return profiles, nil
}

func (r *pgProfileRepository) CreateHeroProfile(ctx context.Context, profile *model.HeroProfile) error {
	query := `
        INSERT INTO hero_profiles (id, user_id, name, description, traits)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at, updated_at
    `
	err := r.db.QueryRow(ctx, query,
		profile.ID, profile.UserID, profile.Name, profile.Description, profile.Traits,
	).Scan(&profile.CreatedAt, &profile.UpdatedAt)
	if err != nil {
		r.logger.Error("Ошибка создания профиля героя",
			zap.String("user_id", profile.UserID.String()), zap.Error(err))
		return fmt.Errorf("ошибка создания профиля героя: %w", err)
	}
	return nil
}

func (r *pgProfileRepository) GetHeroProfile(ctx context.Context, id uuid.UUID) (*model.HeroProfile, error) {
	query := `SELECT id, user_id, name, description, traits, created_at, updated_at
	          FROM hero_profiles WHERE id = $1`

	var profile model.HeroProfile
	err := pgxscan.Get(ctx, r.db, &profile, query, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrProfileNotFound
		}
		return nil, fmt.Errorf("ошибка получения профиля героя '%s': %w", id, err)
	}
	return &profile, nil
}

func (r *pgProfileRepository) ListHeroProfiles(ctx context.Context, userID uuid.UUID) ([]*model.HeroProfile, error) {
	query := `SELECT id, user_id, name, description, traits, created_at, updated_at
	          FROM hero_profiles WHERE user_id = $1 ORDER BY created_at`

	profiles := make([]*model.HeroProfile, 0)
	err := pgxscan.Select(ctx, r.db, &profiles, query, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("ошибка получения профилей героев пользователя '%s': %w", userID, err)
	}
	return profiles, nil
}
