package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"bedtime-server/internal/model"
	"bedtime-server/internal/repository"
)

// MockStoryRepository is a mock type for the StoryRepository type
type MockStoryRepository struct {
	mock.Mock
}

// Create provides a mock function with given fields: ctx, story
func (_m *MockStoryRepository) Create(ctx context.Context, story *model.Story) error {
	ret := _m.Called(ctx, story)
	return ret.Error(0)
}

// GetByID provides a mock function with given fields: ctx, id
func (_m *MockStoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Story, error) {
	ret := _m.Called(ctx, id)

	var r0 *model.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Story)
	}
	return r0, ret.Error(1)
}

// ListByUserID provides a mock function with given fields: ctx, userID, limit, offset
func (_m *MockStoryRepository) ListByUserID(ctx context.Context, userID uuid.UUID, limit int, offset int) ([]*model.Story, error) {
	ret := _m.Called(ctx, userID, limit, offset)

	var r0 []*model.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*model.Story)
	}
	return r0, ret.Error(1)
}

// UpdateStatus provides a mock function with given fields: ctx, id, status
func (_m *MockStoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.StoryStatus) error {
	ret := _m.Called(ctx, id, status)
	return ret.Error(0)
}

// SaveResult provides a mock function with given fields: ctx, story
func (_m *MockStoryRepository) SaveResult(ctx context.Context, story *model.Story) error {
	ret := _m.Called(ctx, story)
	return ret.Error(0)
}

// HasActiveGeneration provides a mock function with given fields: ctx, userID
func (_m *MockStoryRepository) HasActiveGeneration(ctx context.Context, userID uuid.UUID) (bool, error) {
	ret := _m.Called(ctx, userID)
	return ret.Bool(0), ret.Error(1)
}

// NewMockStoryRepository creates a new instance of MockStoryRepository. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockStoryRepository(t interface {
	mock.TestingT
	Helper()
}) *MockStoryRepository {
	m := &MockStoryRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.StoryRepository = (*MockStoryRepository)(nil)
