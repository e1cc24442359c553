package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bedtime-server/internal/model"
	"bedtime-server/internal/repository"
)

const (
	maxProfileNameLen = 100
	minChildAge       = 1
	maxChildAge       = 14
)

// ProfileService - прикладной сервис профилей детей и героев.
type ProfileService struct {
	profiles repository.ProfileRepository
	logger   *zap.Logger
}

// NewProfileService создает сервис профилей.
func NewProfileService(profiles repository.ProfileRepository, logger *zap.Logger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		logger:   logger.Named("ProfileService"),
	}
}

// CreateChildProfile проверяет и сохраняет профиль ребенка.
func (s *ProfileService) CreateChildProfile(ctx context.Context, userID uuid.UUID, name string, age int, gender string, interests []string) (*model.ChildProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxProfileNameLen {
		return nil, fmt.Errorf("%w: имя должно быть от 1 до %d символов", model.ErrInvalidInput, maxProfileNameLen)
	}
	if age < minChildAge || age > maxChildAge {
		return nil, fmt.Errorf("%w: возраст должен быть от %d до %d", model.ErrInvalidInput, minChildAge, maxChildAge)
	}

	profile := &model.ChildProfile{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Age:       age,
		Gender:    strings.TrimSpace(gender),
		Interests: interests,
	}
	if err := s.profiles.CreateChildProfile(ctx, profile); err != nil {
		return nil, err
	}
	s.logger.Info("Профиль ребенка создан",
		zap.String("profile_id", profile.ID.String()), zap.String("user_id", userID.String()))
	return profile, nil
}

// ListChildProfiles возвращает профили детей пользователя.
func (s *ProfileService) ListChildProfiles(ctx context.Context, userID uuid.UUID) ([]*model.ChildProfile, error) {
	return s.profiles.ListChildProfiles(ctx, userID)
}

// CreateHeroProfile проверяет и сохраняет профиль героя.
func (s *ProfileService) CreateHeroProfile(ctx context.Context, userID uuid.UUID, name, description string, traits []string) (*model.HeroProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxProfileNameLen {
		return nil, fmt.Errorf("%w: имя должно быть от 1 до %d символов", model.ErrInvalidInput, maxProfileNameLen)
	}

	profile := &model.HeroProfile{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(description),
		Traits:      traits,
	}
	if err := s.profiles.CreateHeroProfile(ctx, profile); err != nil {
		return nil, err
	}
	s.logger.Info("Профиль героя создан",
		zap.String("profile_id", profile.ID.String()), zap.String("user_id", userID.String()))
	return profile, nil
}

// ListHeroProfiles возвращает профили героев пользователя.
func (s *ProfileService) ListHeroProfiles(ctx context.Context, userID uuid.UUID) ([]*model.HeroProfile, error) {
	return s.profiles.ListHeroProfiles(ctx, userID)
}
