package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"bedtime-server/internal/model"
	"bedtime-server/internal/repository"
)

// MockStoryCache is a mock type for the StoryCache type
type MockStoryCache struct {
	mock.Mock
}

// Get provides a mock function with given fields: ctx, id
func (_m *MockStoryCache) Get(ctx context.Context, id uuid.UUID) (*model.Story, error) {
	ret := _m.Called(ctx, id)

	var r0 *model.Story
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Story)
	}
	return r0, ret.Error(1)
}

// Set provides a mock function with given fields: ctx, story
func (_m *MockStoryCache) Set(ctx context.Context, story *model.Story) error {
	ret := _m.Called(ctx, story)
	return ret.Error(0)
}

// Invalidate provides a mock function with given fields: ctx, id
func (_m *MockStoryCache) Invalidate(ctx context.Context, id uuid.UUID) error {
	ret := _m.Called(ctx, id)
	return ret.Error(0)
}

// NewMockStoryCache creates a new instance of MockStoryCache. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockStoryCache(t interface {
	mock.TestingT
	Helper()
}) *MockStoryCache {
	m := &MockStoryCache{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.StoryCache = (*MockStoryCache)(nil)
