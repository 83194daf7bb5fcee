package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"tale-server/internal/models"
)

// Compile-time check to ensure pgStoryRepository implements StoryRepository
var _ StoryRepository = (*pgStoryRepository)(nil)

type pgStoryRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgStoryRepository creates a new PostgreSQL-backed StoryRepository.
func NewPgStoryRepository(db DBTX, logger *zap.Logger) StoryRepository {
	return &pgStoryRepository{
		db:     db,
		logger: logger.Named("PgStoryRepo"),
	}
}

const insertSegmentQuery = `
	INSERT INTO story_segments (story_id, content, prompt, choices, parent_segment_id, choice_made, sequence)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id, created_at`

// CreateStoryWithSegment atomically creates a story and its first segment.
func (r *pgStoryRepository) CreateStoryWithSegment(ctx context.Context, story *models.Story, segment *models.StorySegment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback после commit безопасен

	storyQuery := `
		INSERT INTO stories (user_id, title, initial_prompt, preview, segment_count)
		VALUES ($1, $2, $3, $4, 1)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, storyQuery, story.UserID, story.Title, story.InitialPrompt, story.Preview).
		Scan(&story.ID, &story.CreatedAt, &story.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert story", zap.Error(err), zap.String("userID", story.UserID.String()))
		return fmt.Errorf("failed to insert story: %w", err)
	}
	story.SegmentCount = 1

	// Первый сегмент: sequence 1, без родителя и выбора
	segment.StoryID = story.ID
	segment.Sequence = 1
	segment.ParentSegmentID = nil
	segment.ChoiceMade = nil
	err = tx.QueryRow(ctx, insertSegmentQuery,
		segment.StoryID, segment.Content, segment.Prompt, segment.Choices,
		segment.ParentSegmentID, segment.ChoiceMade, segment.Sequence).
		Scan(&segment.ID, &segment.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert first segment", zap.Error(err), zap.String("storyID", story.ID.String()))
		return fmt.Errorf("failed to insert first segment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit story creation: %w", err)
	}

	r.logger.Info("Story created with first segment",
		zap.String("storyID", story.ID.String()),
		zap.String("userID", story.UserID.String()),
	)
	return nil
}

// AppendSegment inserts the next segment, guarding against concurrent continues.
func (r *pgStoryRepository) AppendSegment(ctx context.Context, storyID uuid.UUID, expectedLatestSequence int, segment *models.StorySegment) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Блокируем строку истории, чтобы конкурирующие continue выстраивались в очередь
	var locked bool
	err = tx.QueryRow(ctx, `SELECT TRUE FROM stories WHERE id = $1 FOR UPDATE`, storyID).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrStoryNotFound
		}
		r.logger.Error("Failed to lock story for append", zap.Error(err), zap.String("storyID", storyID.String()))
		return fmt.Errorf("failed to lock story for append: %w", err)
	}

	var currentMax int
	err = tx.QueryRow(ctx, `SELECT COALESCE(MAX(sequence), 0) FROM story_segments WHERE story_id = $1`, storyID).Scan(&currentMax)
	if err != nil {
		r.logger.Error("Failed to read latest sequence", zap.Error(err), zap.String("storyID", storyID.String()))
		return fmt.Errorf("failed to read latest sequence: %w", err)
	}

	// Проверка оптимистичной конкуренции: продолжать можно только последний сегмент
	if currentMax != expectedLatestSequence {
		r.logger.Warn("Sequence conflict on append",
			zap.String("storyID", storyID.String()),
			zap.Int("expected", expectedLatestSequence),
			zap.Int("actual", currentMax),
		)
		return models.ErrSequenceConflict
	}

	segment.StoryID = storyID
	segment.Sequence = currentMax + 1
	err = tx.QueryRow(ctx, insertSegmentQuery,
		segment.StoryID, segment.Content, segment.Prompt, segment.Choices,
		segment.ParentSegmentID, segment.ChoiceMade, segment.Sequence).
		Scan(&segment.ID, &segment.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // подстраховка уникальным индексом (story_id, sequence)
			return models.ErrSequenceConflict
		}
		r.logger.Error("Failed to insert segment", zap.Error(err), zap.String("storyID", storyID.String()))
		return fmt.Errorf("failed to insert segment: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE stories SET segment_count = segment_count + 1, updated_at = now() WHERE id = $1`, storyID)
	if err != nil {
		r.logger.Error("Failed to bump segment count", zap.Error(err), zap.String("storyID", storyID.String()))
		return fmt.Errorf("failed to bump segment count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit segment append: %w", err)
	}

	r.logger.Info("Segment appended",
		zap.String("storyID", storyID.String()),
		zap.Int("sequence", segment.Sequence),
	)
	return nil
}

// ReplaceSegments discards all story segments and recreates them from the list.
func (r *pgStoryRepository) ReplaceSegments(ctx context.Context, storyID uuid.UUID, segments []*models.StorySegment) ([]*models.StorySegment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var exists bool
	err = tx.QueryRow(ctx, `SELECT TRUE FROM stories WHERE id = $1 FOR UPDATE`, storyID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrStoryNotFound
		}
		return nil, fmt.Errorf("failed to lock story for replace: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM story_segments WHERE story_id = $1`, storyID); err != nil {
		r.logger.Error("Failed to delete old segments", zap.Error(err), zap.String("storyID", storyID.String()))
		return nil, fmt.Errorf("failed to delete old segments: %w", err)
	}

	// Пересоздаем сегменты, нумеруя по позиции в списке; прежняя линия
	// наследования (parent/choice_made) при такой перезаписи теряется.
	for i, segment := range segments {
		segment.StoryID = storyID
		segment.Sequence = i + 1
		segment.ParentSegmentID = nil
		segment.ChoiceMade = nil
		if segment.Choices == nil {
			segment.Choices = []string{}
		}
		err = tx.QueryRow(ctx, insertSegmentQuery,
			segment.StoryID, segment.Content, segment.Prompt, segment.Choices,
			segment.ParentSegmentID, segment.ChoiceMade, segment.Sequence).
			Scan(&segment.ID, &segment.CreatedAt)
		if err != nil {
			r.logger.Error("Failed to insert replacement segment", zap.Error(err),
				zap.String("storyID", storyID.String()), zap.Int("sequence", segment.Sequence))
			return nil, fmt.Errorf("failed to insert replacement segment: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `UPDATE stories SET segment_count = $2, updated_at = now() WHERE id = $1`, storyID, len(segments))
	if err != nil {
		return nil, fmt.Errorf("failed to update segment count: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit segment replace: %w", err)
	}

	r.logger.Info("Segments replaced",
		zap.String("storyID", storyID.String()),
		zap.Int("count", len(segments)),
	)
	return segments, nil
}

// ListSegments returns all story segments ordered ascending by sequence.
func (r *pgStoryRepository) ListSegments(ctx context.Context, storyID uuid.UUID) ([]*models.StorySegment, error) {
	query := `
		SELECT id, story_id, content, prompt, choices, parent_segment_id, choice_made, sequence, created_at
		FROM story_segments
		WHERE story_id = $1
		ORDER BY sequence ASC`

	var segments []*models.StorySegment
	if err := pgxscan.Select(ctx, r.db, &segments, query, storyID); err != nil {
		r.logger.Error("Failed to list segments", zap.Error(err), zap.String("storyID", storyID.String()))
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	return segments, nil
}

// GetLatestSegment returns the segment with the maximum sequence for a story.
func (r *pgStoryRepository) GetLatestSegment(ctx context.Context, storyID uuid.UUID) (*models.StorySegment, error) {
	query := `
		SELECT id, story_id, content, prompt, choices, parent_segment_id, choice_made, sequence, created_at
		FROM story_segments
		WHERE story_id = $1
		ORDER BY sequence DESC
		LIMIT 1`

	segment := &models.StorySegment{}
	if err := pgxscan.Get(ctx, r.db, segment, query, storyID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSegmentNotFound
		}
		r.logger.Error("Failed to get latest segment", zap.Error(err), zap.String("storyID", storyID.String()))
		return nil, fmt.Errorf("failed to get latest segment: %w", err)
	}
	return segment, nil
}

const selectStoryColumns = `id, user_id, title, initial_prompt, preview, segment_count, is_public, share_id, created_at, updated_at`

// GetStory retrieves a story by its ID.
func (r *pgStoryRepository) GetStory(ctx context.Context, id uuid.UUID) (*models.Story, error) {
	query := `SELECT ` + selectStoryColumns + ` FROM stories WHERE id = $1`

	story := &models.Story{}
	if err := pgxscan.Get(ctx, r.db, story, query, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Story not found", zap.String("storyID", id.String()))
			return nil, models.ErrStoryNotFound
		}
		r.logger.Error("Failed to get story", zap.Error(err), zap.String("storyID", id.String()))
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return story, nil
}

// GetStoryByShareID retrieves a public story by its share token.
func (r *pgStoryRepository) GetStoryByShareID(ctx context.Context, shareID string) (*models.Story, error) {
	// is_public проверяется в запросе: приватная история не видна по токену
	query := `SELECT ` + selectStoryColumns + ` FROM stories WHERE share_id = $1 AND is_public = TRUE`

	story := &models.Story{}
	if err := pgxscan.Get(ctx, r.db, story, query, shareID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrStoryNotFound
		}
		r.logger.Error("Failed to get story by share id", zap.Error(err))
		return nil, fmt.Errorf("failed to get story by share id: %w", err)
	}
	return story, nil
}

// ListStoriesByUser returns the user's stories, most recently updated first.
func (r *pgStoryRepository) ListStoriesByUser(ctx context.Context, userID uuid.UUID) ([]*models.Story, error) {
	query := `SELECT ` + selectStoryColumns + ` FROM stories WHERE user_id = $1 ORDER BY updated_at DESC`

	var stories []*models.Story
	if err := pgxscan.Select(ctx, r.db, &stories, query, userID); err != nil {
		r.logger.Error("Failed to list stories", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	return stories, nil
}

// UpdateStoryMeta updates title and preview of a story.
func (r *pgStoryRepository) UpdateStoryMeta(ctx context.Context, storyID uuid.UUID, title, preview string) error {
	query := `UPDATE stories SET title = $2, preview = $3, updated_at = now() WHERE id = $1`
	tag, err := r.db.Exec(ctx, query, storyID, title, preview)
	if err != nil {
		r.logger.Error("Failed to update story meta", zap.Error(err), zap.String("storyID", storyID.String()))
		return fmt.Errorf("failed to update story meta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStoryNotFound
	}
	return nil
}

// SetShareID marks a story public and stores its share token.
func (r *pgStoryRepository) SetShareID(ctx context.Context, storyID uuid.UUID, shareID string) error {
	// Токен выставляется один раз; повторная установка не затирает существующий
	query := `UPDATE stories SET share_id = $2, is_public = TRUE, updated_at = now() WHERE id = $1 AND share_id IS NULL`
	tag, err := r.db.Exec(ctx, query, storyID, shareID)
	if err != nil {
		r.logger.Error("Failed to set share id", zap.Error(err), zap.String("storyID", storyID.String()))
		return fmt.Errorf("failed to set share id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Либо история не существует (это отсекает вызывающий код),
		// либо токен уже был выдан - существующий не перезаписываем
		r.logger.Debug("Share id already set, keeping existing token", zap.String("storyID", storyID.String()))
		return nil
	}
	r.logger.Info("Story published via share link", zap.String("storyID", storyID.String()))
	return nil
}

// DeleteStory removes a story; its segments cascade in the database.
func (r *pgStoryRepository) DeleteStory(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM stories WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete story", zap.Error(err), zap.String("storyID", id.String()))
		return fmt.Errorf("failed to delete story: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStoryNotFound
	}
	r.logger.Info("Story deleted", zap.String("storyID", id.String()))
	return nil
}

// CountStoriesByUser returns how many stories a user owns.
func (r *pgStoryRepository) CountStoriesByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM stories WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count stories", zap.Error(err), zap.String("userID", userID.String()))
		return 0, fmt.Errorf("failed to count stories: %w", err)
	}
	return count, nil
}
