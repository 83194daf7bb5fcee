package repository_test // Используем _test пакет для изоляции

import (
	"context"
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

	"tale-server/internal/database"
	"tale-server/internal/models"
	"tale-server/internal/repository"
)

// RepositoryTestSuite гоняет репозитории против настоящих PostgreSQL и Redis
// в контейнерах.
type RepositoryTestSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	rdContainer *tcredis.RedisContainer
	pgPool      *pgxpool.Pool
	redisClient *redis.Client
	userRepo    repository.UserRepository
	storyRepo   repository.StoryRepository
	tokenRepo   repository.TokenRepository
	logger      *zap.Logger
}

func (s *RepositoryTestSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error

	s.logger, err = zap.NewDevelopment()
	require.NoError(s.T(), err, "Failed to create logger for tests")

	// Запускаем контейнер PostgreSQL
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

	// Миграции встроены в бинарь, отдельный путь к файлам не нужен
	require.NoError(s.T(), database.RunMigrations(pgConnStr), "Failed to run migrations")

	// Запускаем контейнер Redis
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

	s.redisClient = redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port())})
	_, err = s.redisClient.Ping(s.ctx).Result()
	require.NoError(s.T(), err, "Failed to connect to test redis")

	s.userRepo = repository.NewPgUserRepository(s.pgPool, s.logger)
	s.storyRepo = repository.NewPgStoryRepository(s.pgPool, s.logger)
	s.tokenRepo = repository.NewRedisTokenRepository(s.redisClient, s.logger)
}

func (s *RepositoryTestSuite) TearDownSuite() {
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

// Перед каждым тестом очищаем Redis и таблицы БД
func (s *RepositoryTestSuite) SetupTest() {
	require.NoError(s.T(), s.redisClient.FlushDB(s.ctx).Err(), "Failed to flush Redis DB")
	_, err := s.pgPool.Exec(s.ctx, "TRUNCATE TABLE users RESTART IDENTITY CASCADE")
	require.NoError(s.T(), err, "Failed to truncate users table")
}

func TestRepositoryTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(RepositoryTestSuite))
}

// --- Хелперы ---

func (s *RepositoryTestSuite) createUser(username string) *models.User {
	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$2a$10$fakefakefakefakefakefakefakefakefakefakefakefakefake",
	}
	require.NoError(s.T(), s.userRepo.CreateUser(s.ctx, user))
	return user
}

func (s *RepositoryTestSuite) createStory(userID uuid.UUID) (*models.Story, *models.StorySegment) {
	story := &models.Story{
		UserID:        userID,
		Title:         "Dragon City",
		InitialPrompt: "a story about dragons",
		Preview:       "The dragons circled...",
	}
	segment := &models.StorySegment{
		Content: "The dragons circled above the spires.",
		Prompt:  "a story about dragons",
		Choices: []string{"Enter", "Wait", "Flee"},
	}
	require.NoError(s.T(), s.storyRepo.CreateStoryWithSegment(s.ctx, story, segment))
	return story, segment
}

// --- Тесты ---

func (s *RepositoryTestSuite) TestCreateStoryWithSegment() {
	t := s.T()
	user := s.createUser("creator")

	story, segment := s.createStory(user.ID)

	require.NotEqual(t, uuid.Nil, story.ID)
	require.Equal(t, 1, story.SegmentCount)
	require.Equal(t, 1, segment.Sequence)
	require.Nil(t, segment.ParentSegmentID)
	require.Nil(t, segment.ChoiceMade)

	fetched, err := s.storyRepo.GetStory(s.ctx, story.ID)
	require.NoError(t, err)
	require.Equal(t, story.Title, fetched.Title)
	require.False(t, fetched.IsPublic)
	require.Nil(t, fetched.ShareID)
}

func (s *RepositoryTestSuite) TestAppendSegment() {
	t := s.T()
	user := s.createUser("appender")
	story, first := s.createStory(user.ID)

	choice := "Enter"
	next := &models.StorySegment{
		Content:         "You slip inside.",
		Prompt:          choice,
		Choices:         []string{"Up", "Down"},
		ParentSegmentID: &first.ID,
		ChoiceMade:      &choice,
	}
	require.NoError(t, s.storyRepo.AppendSegment(s.ctx, story.ID, first.Sequence, next))
	require.Equal(t, 2, next.Sequence)

	fetched, err := s.storyRepo.GetStory(s.ctx, story.ID)
	require.NoError(t, err)
	require.Equal(t, 2, fetched.SegmentCount)

	latest, err := s.storyRepo.GetLatestSegment(s.ctx, story.ID)
	require.NoError(t, err)
	require.Equal(t, next.ID, latest.ID)
	require.Equal(t, []string{"Up", "Down"}, latest.Choices)
	require.NotNil(t, latest.ChoiceMade)
	require.Equal(t, choice, *latest.ChoiceMade)
}

func (s *RepositoryTestSuite) TestAppendSegment_SequenceConflict() {
	t := s.T()
	user := s.createUser("racer")
	story, first := s.createStory(user.ID)

	choice := "Enter"
	winner := &models.StorySegment{Content: "first continue", Prompt: choice, ChoiceMade: &choice, ParentSegmentID: &first.ID}
	require.NoError(t, s.storyRepo.AppendSegment(s.ctx, story.ID, first.Sequence, winner))

	// Второй continue того же сегмента опоздал - последовательность уже ушла вперед
	loser := &models.StorySegment{Content: "second continue", Prompt: choice, ChoiceMade: &choice, ParentSegmentID: &first.ID}
	err := s.storyRepo.AppendSegment(s.ctx, story.ID, first.Sequence, loser)
	require.ErrorIs(t, err, models.ErrSequenceConflict)

	// Проигравший ничего не записал
	fetched, err := s.storyRepo.GetStory(s.ctx, story.ID)
	require.NoError(t, err)
	require.Equal(t, 2, fetched.SegmentCount)
}

func (s *RepositoryTestSuite) TestAppendSegment_StoryNotFound() {
	err := s.storyRepo.AppendSegment(s.ctx, uuid.New(), 1, &models.StorySegment{Content: "x", Prompt: "y"})
	require.ErrorIs(s.T(), err, models.ErrStoryNotFound)
}

func (s *RepositoryTestSuite) TestReplaceSegments() {
	t := s.T()
	user := s.createUser("rewriter")
	story, first := s.createStory(user.ID)

	choice := "Enter"
	require.NoError(t, s.storyRepo.AppendSegment(s.ctx, story.ID, first.Sequence, &models.StorySegment{
		Content: "old second", Prompt: choice, ChoiceMade: &choice, ParentSegmentID: &first.ID,
	}))

	replacements := []*models.StorySegment{
		{Content: "new one", Prompt: "start", Choices: []string{"a"}},
		{Content: "new two", Prompt: "a", Choices: []string{}},
		{Content: "new three", Prompt: "b", Choices: []string{"x", "y"}},
	}
	replaced, err := s.storyRepo.ReplaceSegments(s.ctx, story.ID, replacements)
	require.NoError(t, err)
	require.Len(t, replaced, 3)

	segments, err := s.storyRepo.ListSegments(s.ctx, story.ID)
	require.NoError(t, err)
	require.Len(t, segments, 3)
	for i, segment := range segments {
		require.Equal(t, i+1, segment.Sequence)
	}
	require.Equal(t, "new one", segments[0].Content)
	require.Equal(t, "new three", segments[2].Content)

	fetched, err := s.storyRepo.GetStory(s.ctx, story.ID)
	require.NoError(t, err)
	require.Equal(t, 3, fetched.SegmentCount)
}

func (s *RepositoryTestSuite) TestShareFlow() {
	t := s.T()
	user := s.createUser("sharer")
	story, _ := s.createStory(user.ID)

	// До выдачи токена история через share-эндпоинт не видна
	_, err := s.storyRepo.GetStoryByShareID(s.ctx, "aaaaaaaaaaaaaaaaaaaa")
	require.ErrorIs(t, err, models.ErrStoryNotFound)

	require.NoError(t, s.storyRepo.SetShareID(s.ctx, story.ID, "aaaaaaaaaaaaaaaaaaaa"))

	shared, err := s.storyRepo.GetStoryByShareID(s.ctx, "aaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	require.Equal(t, story.ID, shared.ID)
	require.True(t, shared.IsPublic)

	// Повторная выдача не перетирает существующий токен
	require.NoError(t, s.storyRepo.SetShareID(s.ctx, story.ID, "bbbbbbbbbbbbbbbbbbbb"))
	fetched, err := s.storyRepo.GetStory(s.ctx, story.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.ShareID)
	require.Equal(t, "aaaaaaaaaaaaaaaaaaaa", *fetched.ShareID)
}

func (s *RepositoryTestSuite) TestListStoriesByUser() {
	t := s.T()
	user := s.createUser("lister")
	other := s.createUser("other")

	s.createStory(user.ID)
	s.createStory(user.ID)
	s.createStory(other.ID)

	stories, err := s.storyRepo.ListStoriesByUser(s.ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, stories, 2)

	count, err := s.storyRepo.CountStoriesByUser(s.ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func (s *RepositoryTestSuite) TestDeleteStoryCascadesSegments() {
	t := s.T()
	user := s.createUser("deleter")
	story, _ := s.createStory(user.ID)

	require.NoError(t, s.storyRepo.DeleteStory(s.ctx, story.ID))

	_, err := s.storyRepo.GetStory(s.ctx, story.ID)
	require.ErrorIs(t, err, models.ErrStoryNotFound)

	var segmentCount int
	require.NoError(t, s.pgPool.QueryRow(s.ctx,
		"SELECT COUNT(*) FROM story_segments WHERE story_id = $1", story.ID).Scan(&segmentCount))
	require.Zero(t, segmentCount)
}

func (s *RepositoryTestSuite) TestDeleteUserCascadesStories() {
	t := s.T()
	user := s.createUser("doomed")
	story, _ := s.createStory(user.ID)

	require.NoError(t, s.userRepo.DeleteUser(s.ctx, user.ID))

	_, err := s.storyRepo.GetStory(s.ctx, story.ID)
	require.ErrorIs(t, err, models.ErrStoryNotFound)
}

func (s *RepositoryTestSuite) TestCreateUser_Duplicates() {
	t := s.T()
	s.createUser("dupe")

	err := s.userRepo.CreateUser(s.ctx, &models.User{
		Username: "dupe", Email: "fresh@example.com", PasswordHash: "hash",
	})
	require.ErrorIs(t, err, models.ErrUserAlreadyExists)

	err = s.userRepo.CreateUser(s.ctx, &models.User{
		Username: "fresh", Email: "dupe@example.com", PasswordHash: "hash",
	})
	require.ErrorIs(t, err, models.ErrEmailAlreadyExists)
}

func (s *RepositoryTestSuite) TestTokenRepository() {
	t := s.T()
	userID := uuid.New()
	td := &models.TokenDetails{
		AccessToken:  "at",
		RefreshToken: "rt",
		AccessUUID:   uuid.NewString(),
		RefreshUUID:  uuid.NewString(),
		AtExpires:    time.Now().Add(time.Hour).Unix(),
		RtExpires:    time.Now().Add(24 * time.Hour).Unix(),
	}
	require.NoError(t, s.tokenRepo.SetToken(s.ctx, userID, td))

	got, err := s.tokenRepo.GetUserIDByAccessUUID(s.ctx, td.AccessUUID)
	require.NoError(t, err)
	require.Equal(t, userID, got)

	got, err = s.tokenRepo.GetUserIDByRefreshUUID(s.ctx, td.RefreshUUID)
	require.NoError(t, err)
	require.Equal(t, userID, got)

	// Отзыв refresh-токена не трогает access
	require.NoError(t, s.tokenRepo.DeleteRefreshUUID(s.ctx, userID, td.RefreshUUID))
	_, err = s.tokenRepo.GetUserIDByRefreshUUID(s.ctx, td.RefreshUUID)
	require.ErrorIs(t, err, models.ErrTokenNotFound)
	_, err = s.tokenRepo.GetUserIDByAccessUUID(s.ctx, td.AccessUUID)
	require.NoError(t, err)

	// Полный отзыв всех токенов пользователя
	deleted, err := s.tokenRepo.DeleteTokensByUserID(s.ctx, userID)
	require.NoError(t, err)
	require.Positive(t, deleted)
	_, err = s.tokenRepo.GetUserIDByAccessUUID(s.ctx, td.AccessUUID)
	require.ErrorIs(t, err, models.ErrTokenNotFound)
}
