package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bedtime-server/internal/messaging"
	"bedtime-server/internal/mocks"
	"bedtime-server/internal/model"
	"bedtime-server/internal/repository"
	"bedtime-server/internal/service"
)

type storyServiceMocks struct {
	stories   *mocks.MockStoryRepository
	profiles  *mocks.MockProfileRepository
	cache     *mocks.MockStoryCache
	publisher *mocks.MockTaskPublisher
}

func newStoryService(t *testing.T) (*service.StoryService, storyServiceMocks) {
	t.Helper()
	m := storyServiceMocks{
		stories:   mocks.NewMockStoryRepository(t),
		profiles:  mocks.NewMockProfileRepository(t),
		cache:     mocks.NewMockStoryCache(t),
		publisher: mocks.NewMockTaskPublisher(t),
	}
	svc := service.NewStoryService(m.stories, m.profiles, m.cache, m.publisher, nil, zap.NewNop())
	return svc, m
}

func childProfileFor(userID uuid.UUID) *model.ChildProfile {
	return &model.ChildProfile{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      "Mia",
		Age:       6,
		Interests: []string{"space", "animals"},
	}
}

func TestStoryService_CreateStory_EnqueuesTask(t *testing.T) {
	svc, m := newStoryService(t)
	userID := uuid.New()
	child := childProfileFor(userID)

	m.stories.On("HasActiveGeneration", mock.Anything, userID).Return(false, nil).Once()
	m.profiles.On("GetChildProfile", mock.Anything, child.ID).Return(child, nil).Once()
	m.stories.On("Create", mock.Anything, mock.AnythingOfType("*model.Story")).Return(nil).Once().Run(func(args mock.Arguments) {
		story := args.Get(1).(*model.Story)
		require.Equal(t, model.StoryStatusQueued, story.Status)
		require.Equal(t, userID, story.UserID)
		require.Equal(t, model.StoryTypeChild, story.StoryType)
		require.NotEmpty(t, story.Params)
	})
	m.publisher.On("PublishTask", mock.Anything, mock.AnythingOfType("messaging.GenerationTaskPayload")).Return(nil).Once().Run(func(args mock.Arguments) {
		payload := args.Get(1).(messaging.GenerationTaskPayload)
		require.Equal(t, userID.String(), payload.UserID)
		require.Equal(t, model.StoryTypeChild, payload.Params.StoryType)
		require.NotNil(t, payload.Params.Child)
		require.Equal(t, "Mia", payload.Params.Child.Name)
	})

	story, err := svc.CreateStory(context.Background(), userID, service.CreateStoryRequest{
		StoryType:       model.StoryTypeChild,
		Language:        "EN",
		Moral:           "kindness",
		DurationMinutes: 5,
		ChildProfileID:  &child.ID,
	})
	require.NoError(t, err)
	require.Equal(t, model.StoryStatusQueued, story.Status)
	require.Equal(t, "en", story.Language)

	m.stories.AssertExpectations(t)
	m.publisher.AssertExpectations(t)
}

func TestStoryService_CreateStory_RejectsSecondActiveGeneration(t *testing.T) {
	svc, m := newStoryService(t)
	userID := uuid.New()

	m.stories.On("HasActiveGeneration", mock.Anything, userID).Return(true, nil).Once()

	_, err := svc.CreateStory(context.Background(), userID, service.CreateStoryRequest{
		StoryType:       model.StoryTypeChild,
		Language:        "en",
		DurationMinutes: 5,
	})
	require.ErrorIs(t, err, model.ErrUserHasActiveGeneration)
}

func TestStoryService_CreateStory_ForeignProfileForbidden(t *testing.T) {
	svc, m := newStoryService(t)
	userID := uuid.New()
	child := childProfileFor(uuid.New()) // чужой профиль

	m.stories.On("HasActiveGeneration", mock.Anything, userID).Return(false, nil).Once()
	m.profiles.On("GetChildProfile", mock.Anything, child.ID).Return(child, nil).Once()

	_, err := svc.CreateStory(context.Background(), userID, service.CreateStoryRequest{
		StoryType:       model.StoryTypeChild,
		Language:        "en",
		DurationMinutes: 5,
		ChildProfileID:  &child.ID,
	})
	require.ErrorIs(t, err, model.ErrForbidden)
}

func TestStoryService_CreateStory_PublishFailureMarksStoryError(t *testing.T) {
	svc, m := newStoryService(t)
	userID := uuid.New()
	child := childProfileFor(userID)

	m.stories.On("HasActiveGeneration", mock.Anything, userID).Return(false, nil).Once()
	m.profiles.On("GetChildProfile", mock.Anything, child.ID).Return(child, nil).Once()
	m.stories.On("Create", mock.Anything, mock.AnythingOfType("*model.Story")).Return(nil).Once()
	m.publisher.On("PublishTask", mock.Anything, mock.AnythingOfType("messaging.GenerationTaskPayload")).Return(errors.New("broker down")).Once()
	m.stories.On("UpdateStatus", mock.Anything, mock.AnythingOfType("uuid.UUID"), model.StoryStatusError).Return(nil).Once()

	_, err := svc.CreateStory(context.Background(), userID, service.CreateStoryRequest{
		StoryType:       model.StoryTypeChild,
		Language:        "en",
		Moral:           "honesty",
		DurationMinutes: 5,
		ChildProfileID:  &child.ID,
	})
	require.Error(t, err)

	m.stories.AssertExpectations(t)
}

func TestStoryService_CreateStory_ContinuationRequiresReadyParent(t *testing.T) {
	svc, m := newStoryService(t)
	userID := uuid.New()
	child := childProfileFor(userID)
	parentID := uuid.New()

	m.stories.On("HasActiveGeneration", mock.Anything, userID).Return(false, nil).Once()
	m.profiles.On("GetChildProfile", mock.Anything, child.ID).Return(child, nil).Once()
	m.stories.On("GetByID", mock.Anything, parentID).Return(&model.Story{
		ID:     parentID,
		UserID: userID,
		Status: model.StoryStatusGenerating,
	}, nil).Once()

	_, err := svc.CreateStory(context.Background(), userID, service.CreateStoryRequest{
		StoryType:       model.StoryTypeChild,
		Language:        "en",
		DurationMinutes: 5,
		ChildProfileID:  &child.ID,
		ParentStoryID:   &parentID,
	})
	require.ErrorIs(t, err, model.ErrStoryNotReadyYet)
}

func TestStoryService_GetStory_CacheHit(t *testing.T) {
	svc, m := newStoryService(t)
	userID := uuid.New()
	storyID := uuid.New()
	cached := &model.Story{ID: storyID, UserID: userID, Status: model.StoryStatusReady, Content: "story text"}

	m.cache.On("Get", mock.Anything, storyID).Return(cached, nil).Once()

	story, err := svc.GetStory(context.Background(), userID, storyID)
	require.NoError(t, err)
	require.Equal(t, cached, story)

	// Репозиторий не должен был вызываться
	m.stories.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestStoryService_GetStory_CacheMissFallsBackToDB(t *testing.T) {
	svc, m := newStoryService(t)
	userID := uuid.New()
	storyID := uuid.New()
	stored := &model.Story{ID: storyID, UserID: userID, Status: model.StoryStatusReady, Content: "story text"}

	m.cache.On("Get", mock.Anything, storyID).Return(nil, repository.ErrCacheMiss).Once()
	m.stories.On("GetByID", mock.Anything, storyID).Return(stored, nil).Once()
	m.cache.On("Set", mock.Anything, stored).Return(nil).Once()

	story, err := svc.GetStory(context.Background(), userID, storyID)
	require.NoError(t, err)
	require.Equal(t, stored, story)

	m.cache.AssertExpectations(t)
}

func TestStoryService_GetStory_ForeignStoryForbidden(t *testing.T) {
	svc, m := newStoryService(t)
	userID := uuid.New()
	storyID := uuid.New()

	m.cache.On("Get", mock.Anything, storyID).Return(nil, repository.ErrCacheMiss).Once()
	m.stories.On("GetByID", mock.Anything, storyID).Return(&model.Story{
		ID:     storyID,
		UserID: uuid.New(),
	}, nil).Once()

	_, err := svc.GetStory(context.Background(), userID, storyID)
	require.ErrorIs(t, err, model.ErrForbidden)
}
