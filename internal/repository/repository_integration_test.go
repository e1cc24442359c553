package repository_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/docker/docker/client"

	"bedtime-server/internal/database"
	"bedtime-server/internal/model"
	"bedtime-server/internal/repository"
	"bedtime-server/migrations"
)

// RepositoryIntegrationSuite поднимает PostgreSQL и Redis в контейнерах и
// гоняет репозитории против настоящих хранилищ.
type RepositoryIntegrationSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	rdContainer *tcredis.RedisContainer
	pgPool      *pgxpool.Pool
	redisClient *redis.Client
	logger      *zap.Logger

	stories  repository.StoryRepository
	profiles repository.ProfileRepository
	prompts  *repository.PgPromptRepository
	cache    repository.StoryCache
}

func (s *RepositoryIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error

	s.logger, err = zap.NewDevelopment()
	require.NoError(s.T(), err, "Failed to create logger for tests")

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start postgres container")

	pgConnStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get postgres connection string")

	s.pgPool, err = pgxpool.New(s.ctx, pgConnStr)
	require.NoError(s.T(), err, "Failed to connect to test postgres")

	migrator := database.NewMigrator(database.MigrationConfig{
		MigrationsPath: ".",
		MigrationsFS:   migrations.FS,
	}, s.pgPool)
	require.NoError(s.T(), migrator.Up(s.ctx), "Failed to run migrations")

	s.rdContainer, err = tcredis.Run(s.ctx,
		"docker.io/redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("* Ready to accept connections").
				WithOccurrence(1).
				WithStartupTimeout(1*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to start redis container")

	redisHost, err := s.rdContainer.Host(s.ctx)
	require.NoError(s.T(), err)
	redisPort, err := s.rdContainer.MappedPort(s.ctx, "6379/tcp")
	require.NoError(s.T(), err)

	s.redisClient = redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	_, err = s.redisClient.Ping(s.ctx).Result()
	require.NoError(s.T(), err, "Failed to connect to test redis")

	s.stories = repository.NewPgStoryRepository(s.pgPool, s.logger)
	s.profiles = repository.NewPgProfileRepository(s.pgPool, s.logger)
	s.prompts = repository.NewPgPromptRepository(s.pgPool, s.logger)
	s.cache = repository.NewRedisStoryCache(s.redisClient, time.Minute, s.logger)
}

func (s *RepositoryIntegrationSuite) TearDownSuite() {
	if s.pgPool != nil {
		s.pgPool.Close()
	}
	if s.redisClient != nil {
		s.redisClient.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Error("Failed to terminate postgres container", zap.Error(err))
		}
	}
	if s.rdContainer != nil {
		if err := s.rdContainer.Terminate(s.ctx); err != nil {
			s.logger.Error("Failed to terminate redis container", zap.Error(err))
		}
	}
}

func (s *RepositoryIntegrationSuite) SetupTest() {
	require.NoError(s.T(), s.redisClient.FlushDB(s.ctx).Err(), "Failed to flush Redis DB")
	// Промты не трогаем, их сеет миграция
	_, err := s.pgPool.Exec(s.ctx, "TRUNCATE TABLE stories, child_profiles, hero_profiles RESTART IDENTITY CASCADE")
	require.NoError(s.T(), err, "Failed to truncate tables")
}

func TestRepositoryIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv)
	if err != nil {
		t.Fatalf("Docker client init error: %v. Ensure Docker is running and accessible.", err)
	}
	if _, err := cli.Ping(context.Background()); err != nil {
		t.Fatalf("Docker daemon is not running or accessible: %v", err)
	}
	cli.Close()

	suite.Run(t, new(RepositoryIntegrationSuite))
}

func (s *RepositoryIntegrationSuite) newStory(userID uuid.UUID) *model.Story {
	params, _ := json.Marshal(model.StoryParameters{
		StoryType:       model.StoryTypeChild,
		Language:        "en",
		Moral:           "kindness",
		DurationMinutes: 5,
	})
	return &model.Story{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    model.StoryStatusQueued,
		StoryType: model.StoryTypeChild,
		Language:  "en",
		Moral:     "kindness",
		Params:    params,
	}
}

func (s *RepositoryIntegrationSuite) TestStoryLifecycle() {
	t := s.T()
	userID := uuid.New()
	story := s.newStory(userID)

	require.NoError(t, s.stories.Create(s.ctx, story))
	require.False(t, story.CreatedAt.IsZero())

	loaded, err := s.stories.GetByID(s.ctx, story.ID)
	require.NoError(t, err)
	require.Equal(t, story.ID, loaded.ID)
	require.Equal(t, model.StoryStatusQueued, loaded.Status)

	active, err := s.stories.HasActiveGeneration(s.ctx, userID)
	require.NoError(t, err)
	require.True(t, active)

	require.NoError(t, s.stories.UpdateStatus(s.ctx, story.ID, model.StoryStatusGenerating))

	story.Title = "The Brave Star"
	story.Content = "Once upon a time..."
	story.Status = model.StoryStatusReady
	story.QualityScore = 8
	story.AttemptsMade = 2
	story.SelectionNote = "threshold met on attempt 2"
	story.TokensUsed = 512
	story.ProcessingTimeMs = 42000
	require.NoError(t, s.stories.SaveResult(s.ctx, story))

	final, err := s.stories.GetByID(s.ctx, story.ID)
	require.NoError(t, err)
	require.Equal(t, model.StoryStatusReady, final.Status)
	require.Equal(t, "The Brave Star", final.Title)
	require.Equal(t, 8, final.QualityScore)
	require.Equal(t, 2, final.AttemptsMade)

	active, err = s.stories.HasActiveGeneration(s.ctx, userID)
	require.NoError(t, err)
	require.False(t, active)
}

func (s *RepositoryIntegrationSuite) TestStoryNotFound() {
	t := s.T()

	_, err := s.stories.GetByID(s.ctx, uuid.New())
	require.ErrorIs(t, err, model.ErrStoryNotFound)

	err = s.stories.UpdateStatus(s.ctx, uuid.New(), model.StoryStatusReady)
	require.ErrorIs(t, err, model.ErrStoryNotFound)
}

func (s *RepositoryIntegrationSuite) TestListByUserIDOrdering() {
	t := s.T()
	userID := uuid.New()

	first := s.newStory(userID)
	require.NoError(t, s.stories.Create(s.ctx, first))
	second := s.newStory(userID)
	require.NoError(t, s.stories.Create(s.ctx, second))

	// Чужая история не должна попасть в список
	require.NoError(t, s.stories.Create(s.ctx, s.newStory(uuid.New())))

	stories, err := s.stories.ListByUserID(s.ctx, userID, 10, 0)
	require.NoError(t, err)
	require.Len(t, stories, 2)
}

func (s *RepositoryIntegrationSuite) TestProfileRoundTrip() {
	t := s.T()
	userID := uuid.New()

	child := &model.ChildProfile{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      "Mia",
		Age:       6,
		Gender:    "female",
		Interests: []string{"space", "animals"},
	}
	require.NoError(t, s.profiles.CreateChildProfile(s.ctx, child))

	loaded, err := s.profiles.GetChildProfile(s.ctx, child.ID)
	require.NoError(t, err)
	require.Equal(t, "Mia", loaded.Name)
	require.Equal(t, []string{"space", "animals"}, loaded.Interests)

	hero := &model.HeroProfile{
		ID:          uuid.New(),
		UserID:      userID,
		Name:        "Sparky",
		Description: "a small dragon who cannot breathe fire yet",
		Traits:      []string{"brave", "curious"},
	}
	require.NoError(t, s.profiles.CreateHeroProfile(s.ctx, hero))

	heroes, err := s.profiles.ListHeroProfiles(s.ctx, userID)
	require.NoError(t, err)
	require.Len(t, heroes, 1)
	require.Equal(t, "Sparky", heroes[0].Name)

	_, err = s.profiles.GetChildProfile(s.ctx, uuid.New())
	require.ErrorIs(t, err, model.ErrProfileNotFound)
}

func (s *RepositoryIntegrationSuite) TestSeededPromptsPresent() {
	t := s.T()

	prompts, err := s.prompts.GetAll(s.ctx)
	require.NoError(t, err)
	require.NotEmpty(t, prompts)

	system, err := s.prompts.GetByKeyAndLanguage(s.ctx, model.PromptKeyStorySystem, "en")
	require.NoError(t, err)
	require.Contains(t, system.Content, "{{LANGUAGE}}")
}

func (s *RepositoryIntegrationSuite) TestStoryCacheOnlyKeepsReadyStories() {
	t := s.T()
	userID := uuid.New()

	queued := s.newStory(userID)
	require.NoError(t, s.cache.Set(s.ctx, queued))
	_, err := s.cache.Get(s.ctx, queued.ID)
	require.ErrorIs(t, err, repository.ErrCacheMiss)

	ready := s.newStory(userID)
	ready.Status = model.StoryStatusReady
	ready.Title = "The Brave Star"
	ready.Content = "Once upon a time..."
	require.NoError(t, s.cache.Set(s.ctx, ready))

	cached, err := s.cache.Get(s.ctx, ready.ID)
	require.NoError(t, err)
	require.Equal(t, ready.ID, cached.ID)
	require.Equal(t, "The Brave Star", cached.Title)

	require.NoError(t, s.cache.Invalidate(s.ctx, ready.ID))
	_, err = s.cache.Get(s.ctx, ready.ID)
	require.ErrorIs(t, err, repository.ErrCacheMiss)
}
