package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"bedtime-server/internal/model"
	"bedtime-server/internal/repository"
)

// MockProfileRepository is a mock type for the ProfileRepository type
type MockProfileRepository struct {
	mock.Mock
}

// CreateChildProfile provides a mock function with given fields: ctx, profile
func (_m *MockProfileRepository) CreateChildProfile(ctx context.Context, profile *model.ChildProfile) error {
	ret := _m.Called(ctx, profile)
	return ret.Error(0)
}

// GetChildProfile provides a mock function with given fields: ctx, id
func (_m *MockProfileRepository) GetChildProfile(ctx context.Context, id uuid.UUID) (*model.ChildProfile, error) {
	ret := _m.Called(ctx, id)

	var r0 *model.ChildProfile
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.ChildProfile)
	}
	return r0, ret.Error(1)
}

// ListChildProfiles provides a mock function with given fields: ctx, userID
func (_m *MockProfileRepository) ListChildProfiles(ctx context.Context, userID uuid.UUID) ([]*model.ChildProfile, error) {
	ret := _m.Called(ctx, userID)

	var r0 []*model.ChildProfile
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*model.ChildProfile)
	}
	return r0, ret.Error(1)
}

// CreateHeroProfile provides a mock function with given fields: ctx, profile
func (_m *MockProfileRepository) CreateHeroProfile(ctx context.Context, profile *model.HeroProfile) error {
	ret := _m.Called(ctx, profile)
	return ret.Error(0)
}

// GetHeroProfile provides a mock function with given fields: ctx, id
func (_m *MockProfileRepository) GetHeroProfile(ctx context.Context, id uuid.UUID) (*model.HeroProfile, error) {
	ret := _m.Called(ctx, id)

	var r0 *model.HeroProfile
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.HeroProfile)
	}
	return r0, ret.Error(1)
}

// ListHeroProfiles provides a mock function with given fields: ctx, userID
func (_m *MockProfileRepository) ListHeroProfiles(ctx context.Context, userID uuid.UUID) ([]*model.HeroProfile, error) {
	ret := _m.Called(ctx, userID)

	var r0 []*model.HeroProfile
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*model.HeroProfile)
	}
	return r0, ret.Error(1)
}

// NewMockProfileRepository creates a new instance of MockProfileRepository. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockProfileRepository(t interface {
	mock.TestingT
	Helper()
}) *MockProfileRepository {
	m := &MockProfileRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.ProfileRepository = (*MockProfileRepository)(nil)
