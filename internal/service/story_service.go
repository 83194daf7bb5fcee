package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tale-server/internal/ai"
	"tale-server/internal/models"
	"tale-server/internal/repository"
)

// Narrator - тот кусок Storyteller, который нужен сервису историй.
// Выделен в интерфейс, чтобы в тестах подставлять фальшивого провайдера.
type Narrator interface {
	StartStory(ctx context.Context, prompt string) (*ai.StoryStart, error)
	ContinueStory(ctx context.Context, previousContent, choice string) (*ai.Continuation, error)
}

// SegmentInput - один сегмент в запросе bulk-сохранения истории.
type SegmentInput struct {
	Content string   `json:"content"`
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices"`
}

// StoryService определяет операции над историями и их сегментами.
// Проверки владения выполняются здесь, а не в репозитории.
type StoryService interface {
	// GenerateStory starts a brand new story from a user prompt.
	GenerateStory(ctx context.Context, userID uuid.UUID, prompt string) (*models.Story, *models.StorySegment, error)

	// ContinueStory extends a story with one more segment based on a choice.
	// Продолжается всегда последний сегмент; одновременный continue того же
	// сегмента завершится models.ErrSequenceConflict.
	ContinueStory(ctx context.Context, userID, storyID uuid.UUID, choice string) (*models.StorySegment, error)

	// ListStories returns the user's stories, most recently updated first.
	ListStories(ctx context.Context, userID uuid.UUID) ([]*models.Story, error)

	// CountStories returns how many stories a user owns.
	CountStories(ctx context.Context, userID uuid.UUID) (int64, error)

	// GetStory returns a story with its ordered segments. Читать может
	// владелец, а также кто угодно, если история публичная.
	GetStory(ctx context.Context, userID, storyID uuid.UUID) (*models.Story, []*models.StorySegment, error)

	// SaveStory overwrites story metadata and, if segments are supplied,
	// replaces the whole segment list (delete-all-then-recreate).
	SaveStory(ctx context.Context, userID, storyID uuid.UUID, title, preview string, segments []SegmentInput) (*models.Story, []*models.StorySegment, error)

	// ShareStory issues a permanent share link for a story.
	ShareStory(ctx context.Context, userID, storyID uuid.UUID) (string, error)

	// GetSharedStory resolves a public story by its share token.
	GetSharedStory(ctx context.Context, shareID string) (*models.Story, []*models.StorySegment, error)

	// DeleteStory removes a story and all its segments.
	DeleteStory(ctx context.Context, userID, storyID uuid.UUID) error
}

// Compile-time check to ensure storyServiceImpl implements StoryService
var _ StoryService = (*storyServiceImpl)(nil)

type storyServiceImpl struct {
	storyRepo repository.StoryRepository
	narrator  Narrator
	baseURL   string
	logger    *zap.Logger
}

// NewStoryService creates a new StoryService.
// baseURL - внешний адрес сервиса, из него строятся share-ссылки.
func NewStoryService(storyRepo repository.StoryRepository, narrator Narrator, baseURL string, logger *zap.Logger) StoryService {
	return &storyServiceImpl{
		storyRepo: storyRepo,
		narrator:  narrator,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger.Named("StoryService"),
	}
}

// GenerateStory starts a brand new story from a user prompt.
func (s *storyServiceImpl) GenerateStory(ctx context.Context, userID uuid.UUID, prompt string) (*models.Story, *models.StorySegment, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, nil, fmt.Errorf("prompt is required: %w", models.ErrInvalidInput)
	}

	start, err := s.narrator.StartStory(ctx, prompt)
	if err != nil {
		return nil, nil, err
	}

	story := &models.Story{
		UserID:        userID,
		Title:         start.Title,
		InitialPrompt: prompt,
		Preview:       models.MakePreview(start.Content),
	}
	segment := &models.StorySegment{
		Content: start.Content,
		Prompt:  prompt,
		Choices: start.Choices,
	}

	if err := s.storyRepo.CreateStoryWithSegment(ctx, story, segment); err != nil {
		return nil, nil, err
	}

	s.logger.Info("Story generated",
		zap.String("storyID", story.ID.String()),
		zap.String("userID", userID.String()),
		zap.String("title", story.Title),
	)
	return story, segment, nil
}

// ContinueStory extends a story with one more segment based on a choice.
func (s *storyServiceImpl) ContinueStory(ctx context.Context, userID, storyID uuid.UUID, choice string) (*models.StorySegment, error) {
	choice = strings.TrimSpace(choice)
	if choice == "" {
		return nil, fmt.Errorf("choice is required: %w", models.ErrInvalidInput)
	}

	story, err := s.storyRepo.GetStory(ctx, storyID)
	if err != nil {
		return nil, err
	}
	// Продолжать историю может только владелец, даже публичную
	if story.UserID != userID {
		return nil, models.ErrForbidden
	}

	latest, err := s.storyRepo.GetLatestSegment(ctx, storyID)
	if err != nil {
		return nil, err
	}

	continuation, err := s.narrator.ContinueStory(ctx, latest.Content, choice)
	if err != nil {
		return nil, err
	}

	segment := &models.StorySegment{
		Content:         continuation.Content,
		Prompt:          choice,
		Choices:         continuation.Choices,
		ParentSegmentID: &latest.ID,
		ChoiceMade:      &choice,
	}

	if err := s.storyRepo.AppendSegment(ctx, storyID, latest.Sequence, segment); err != nil {
		return nil, err
	}

	s.logger.Info("Story continued",
		zap.String("storyID", storyID.String()),
		zap.Int("sequence", segment.Sequence),
		zap.Int("choices", len(segment.Choices)),
	)
	return segment, nil
}

// ListStories returns the user's stories.
func (s *storyServiceImpl) ListStories(ctx context.Context, userID uuid.UUID) ([]*models.Story, error) {
	return s.storyRepo.ListStoriesByUser(ctx, userID)
}

// CountStories returns how many stories a user owns.
func (s *storyServiceImpl) CountStories(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.storyRepo.CountStoriesByUser(ctx, userID)
}

// GetStory returns a story with its ordered segments.
func (s *storyServiceImpl) GetStory(ctx context.Context, userID, storyID uuid.UUID) (*models.Story, []*models.StorySegment, error) {
	story, err := s.storyRepo.GetStory(ctx, storyID)
	if err != nil {
		return nil, nil, err
	}
	// Чужую непубличную историю не отдаем
	if story.UserID != userID && !story.IsPublic {
		return nil, nil, models.ErrForbidden
	}

	segments, err := s.storyRepo.ListSegments(ctx, storyID)
	if err != nil {
		return nil, nil, err
	}
	return story, segments, nil
}

// SaveStory overwrites story metadata and optionally the whole segment list.
func (s *storyServiceImpl) SaveStory(ctx context.Context, userID, storyID uuid.UUID, title, preview string, segments []SegmentInput) (*models.Story, []*models.StorySegment, error) {
	story, err := s.storyRepo.GetStory(ctx, storyID)
	if err != nil {
		return nil, nil, err
	}
	if story.UserID != userID {
		return nil, nil, models.ErrForbidden
	}

	if strings.TrimSpace(title) == "" {
		title = story.Title
	}
	if strings.TrimSpace(preview) == "" {
		preview = story.Preview
	}
	if err := s.storyRepo.UpdateStoryMeta(ctx, storyID, title, preview); err != nil {
		return nil, nil, err
	}

	if segments != nil {
		// Полная перезапись: клиент присылает желаемый список целиком
		replacements := make([]*models.StorySegment, 0, len(segments))
		for _, input := range segments {
			choices := input.Choices
			if choices == nil {
				choices = []string{}
			}
			replacements = append(replacements, &models.StorySegment{
				Content: input.Content,
				Prompt:  input.Prompt,
				Choices: choices,
			})
		}
		if _, err := s.storyRepo.ReplaceSegments(ctx, storyID, replacements); err != nil {
			return nil, nil, err
		}
	}

	updated, err := s.storyRepo.GetStory(ctx, storyID)
	if err != nil {
		return nil, nil, err
	}
	updatedSegments, err := s.storyRepo.ListSegments(ctx, storyID)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("Story saved",
		zap.String("storyID", storyID.String()),
		zap.Int("segmentCount", updated.SegmentCount),
	)
	return updated, updatedSegments, nil
}

// ShareStory issues a permanent share link for a story.
func (s *storyServiceImpl) ShareStory(ctx context.Context, userID, storyID uuid.UUID) (string, error) {
	story, err := s.storyRepo.GetStory(ctx, storyID)
	if err != nil {
		return "", err
	}
	if story.UserID != userID {
		return "", models.ErrForbidden
	}

	// Токен постоянный: выдан однажды - живет вечно
	if story.ShareID == nil {
		shareID, err := generateShareID()
		if err != nil {
			return "", fmt.Errorf("failed to generate share token: %w", err)
		}
		if err := s.storyRepo.SetShareID(ctx, storyID, shareID); err != nil {
			return "", err
		}
		// Перечитываем: при гонке двух share-запросов останется первый токен
		story, err = s.storyRepo.GetStory(ctx, storyID)
		if err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("%s/story/shared/%s", s.baseURL, *story.ShareID), nil
}

// GetSharedStory resolves a public story by its share token.
func (s *storyServiceImpl) GetSharedStory(ctx context.Context, shareID string) (*models.Story, []*models.StorySegment, error) {
	story, err := s.storyRepo.GetStoryByShareID(ctx, shareID)
	if err != nil {
		return nil, nil, err
	}

	segments, err := s.storyRepo.ListSegments(ctx, story.ID)
	if err != nil {
		return nil, nil, err
	}
	return story, segments, nil
}

// DeleteStory removes a story and all its segments.
func (s *storyServiceImpl) DeleteStory(ctx context.Context, userID, storyID uuid.UUID) error {
	story, err := s.storyRepo.GetStory(ctx, storyID)
	if err != nil {
		return err
	}
	if story.UserID != userID {
		return models.ErrForbidden
	}

	return s.storyRepo.DeleteStory(ctx, storyID)
}

// generateShareID возвращает 20-символьный hex-токен для share-ссылки.
func generateShareID() (string, error) {
	bytes := make([]byte, 10)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
