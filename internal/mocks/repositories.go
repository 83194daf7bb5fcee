package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"tale-server/internal/models"
)

// Mock UserRepository
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}
func (m *UserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}
func (m *UserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}
func (m *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}
func (m *UserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}
func (m *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}
func (m *UserRepository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Mock StoryRepository
type StoryRepository struct {
	mock.Mock
}

func (m *StoryRepository) CreateStoryWithSegment(ctx context.Context, story *models.Story, segment *models.StorySegment) error {
	args := m.Called(ctx, story, segment)
	return args.Error(0)
}
func (m *StoryRepository) AppendSegment(ctx context.Context, storyID uuid.UUID, expectedLatestSequence int, segment *models.StorySegment) error {
	args := m.Called(ctx, storyID, expectedLatestSequence, segment)
	return args.Error(0)
}
func (m *StoryRepository) ReplaceSegments(ctx context.Context, storyID uuid.UUID, segments []*models.StorySegment) ([]*models.StorySegment, error) {
	args := m.Called(ctx, storyID, segments)
	replaced, _ := args.Get(0).([]*models.StorySegment)
	return replaced, args.Error(1)
}
func (m *StoryRepository) ListSegments(ctx context.Context, storyID uuid.UUID) ([]*models.StorySegment, error) {
	args := m.Called(ctx, storyID)
	segments, _ := args.Get(0).([]*models.StorySegment)
	return segments, args.Error(1)
}
func (m *StoryRepository) GetLatestSegment(ctx context.Context, storyID uuid.UUID) (*models.StorySegment, error) {
	args := m.Called(ctx, storyID)
	segment, _ := args.Get(0).(*models.StorySegment)
	return segment, args.Error(1)
}
func (m *StoryRepository) GetStory(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	args := m.Called(ctx, id)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}
func (m *StoryRepository) GetStoryByShareID(ctx context.Context, shareID string) (*models.Story, error) {
	args := m.Called(ctx, shareID)
	story, _ := args.Get(0).(*models.Story)
	return story, args.Error(1)
}
func (m *StoryRepository) ListStoriesByUser(ctx context.Context, userID uuid.UUID) ([]*models.Story, error) {
	args := m.Called(ctx, userID)
	stories, _ := args.Get(0).([]*models.Story)
	return stories, args.Error(1)
}
func (m *StoryRepository) UpdateStoryMeta(ctx context.Context, storyID uuid.UUID, title, preview string) error {
	args := m.Called(ctx, storyID, title, preview)
	return args.Error(0)
}
func (m *StoryRepository) SetShareID(ctx context.Context, storyID uuid.UUID, shareID string) error {
	args := m.Called(ctx, storyID, shareID)
	return args.Error(0)
}
func (m *StoryRepository) DeleteStory(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
func (m *StoryRepository) CountStoriesByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// Mock TokenRepository
type TokenRepository struct {
	mock.Mock
}

func (m *TokenRepository) SetToken(ctx context.Context, userID uuid.UUID, td *models.TokenDetails) error {
	args := m.Called(ctx, userID, td)
	return args.Error(0)
}
func (m *TokenRepository) GetUserIDByAccessUUID(ctx context.Context, accessUUID string) (uuid.UUID, error) {
	args := m.Called(ctx, accessUUID)
	id, _ := args.Get(0).(uuid.UUID)
	return id, args.Error(1)
}
func (m *TokenRepository) GetUserIDByRefreshUUID(ctx context.Context, refreshUUID string) (uuid.UUID, error) {
	args := m.Called(ctx, refreshUUID)
	id, _ := args.Get(0).(uuid.UUID)
	return id, args.Error(1)
}
func (m *TokenRepository) DeleteRefreshUUID(ctx context.Context, userID uuid.UUID, refreshUUID string) error {
	args := m.Called(ctx, userID, refreshUUID)
	return args.Error(0)
}
func (m *TokenRepository) DeleteTokensByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}
