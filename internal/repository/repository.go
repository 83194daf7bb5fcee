package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tale-server/internal/models"
)

// DBTX абстрагирует пул подключений pgx, чтобы репозитории можно было
// собирать и над *pgxpool.Pool, и над транзакцией.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UserRepository defines the interface for user data persistence.
type UserRepository interface {
	// CreateUser inserts a new user into the database.
	// It should handle potential errors like duplicate usernames.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByUsername retrieves a user by their username.
	// Returns models.ErrUserNotFound if the user does not exist.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetUserByID retrieves a user by their ID.
	// Returns models.ErrUserNotFound if the user does not exist.
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)

	// GetUserByEmail retrieves a user by their email address.
	// Returns models.ErrUserNotFound if the user does not exist.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// UpdateUser updates the username/email of an existing user.
	UpdateUser(ctx context.Context, user *models.User) error

	// UpdatePassword replaces the stored password hash of a user.
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error

	// DeleteUser removes a user; stories and segments cascade in the database.
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// StoryRepository defines the persistence contract for stories and their
// segment chains. Все инварианты порядка (sequence, segment_count)
// поддерживаются здесь, внутри транзакций.
type StoryRepository interface {
	// CreateStoryWithSegment atomically creates a story together with its
	// first segment (sequence 1, no parent, no choice made).
	CreateStoryWithSegment(ctx context.Context, story *models.Story, segment *models.StorySegment) error

	// AppendSegment inserts the next segment of a story. The caller passes
	// the sequence number it believes to be the latest; if the story has
	// moved on since, models.ErrSequenceConflict is returned and nothing
	// is written. On success segment_count and updated_at are bumped in
	// the same transaction.
	AppendSegment(ctx context.Context, storyID uuid.UUID, expectedLatestSequence int, segment *models.StorySegment) error

	// ReplaceSegments discards every segment of a story and recreates them
	// from the supplied ordered list, renumbering sequence as 1..N.
	// Lineage (parent/choice made) of the old segments is not preserved.
	ReplaceSegments(ctx context.Context, storyID uuid.UUID, segments []*models.StorySegment) ([]*models.StorySegment, error)

	// ListSegments returns all story segments ordered ascending by sequence.
	ListSegments(ctx context.Context, storyID uuid.UUID) ([]*models.StorySegment, error)

	// GetLatestSegment returns the segment with the maximum sequence.
	GetLatestSegment(ctx context.Context, storyID uuid.UUID) (*models.StorySegment, error)

	// GetStory retrieves a story by ID. Returns models.ErrStoryNotFound.
	GetStory(ctx context.Context, id uuid.UUID) (*models.Story, error)

	// GetStoryByShareID retrieves a public story by its share token.
	// Непубличные истории через share-токен не видны ни при каких условиях.
	GetStoryByShareID(ctx context.Context, shareID string) (*models.Story, error)

	// ListStoriesByUser returns the user's stories, most recently updated first.
	ListStoriesByUser(ctx context.Context, userID uuid.UUID) ([]*models.Story, error)

	// UpdateStoryMeta updates title and preview of a story.
	UpdateStoryMeta(ctx context.Context, storyID uuid.UUID, title, preview string) error

	// SetShareID marks a story public and stores its share token.
	SetShareID(ctx context.Context, storyID uuid.UUID, shareID string) error

	// DeleteStory removes a story; segments cascade in the database.
	DeleteStory(ctx context.Context, id uuid.UUID) error

	// CountStoriesByUser returns how many stories a user owns.
	CountStoriesByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

// TokenRepository defines the interface for token persistence (e.g., Redis).
type TokenRepository interface {
	// SetToken stores the token details (Access & Refresh UUIDs mapped to
	// UserID) with appropriate TTLs.
	SetToken(ctx context.Context, userID uuid.UUID, td *models.TokenDetails) error

	// GetUserIDByAccessUUID checks if the Access UUID exists in the store
	// and returns the associated UserID.
	// Returns models.ErrTokenNotFound if the token is not found (or expired).
	GetUserIDByAccessUUID(ctx context.Context, accessUUID string) (uuid.UUID, error)

	// GetUserIDByRefreshUUID checks if the Refresh UUID exists in the store
	// and returns the associated UserID.
	// Returns models.ErrTokenNotFound if the token is not found (or expired).
	GetUserIDByRefreshUUID(ctx context.Context, refreshUUID string) (uuid.UUID, error)

	// DeleteRefreshUUID removes only the refresh token UUID from the store.
	DeleteRefreshUUID(ctx context.Context, userID uuid.UUID, refreshUUID string) error

	// DeleteTokensByUserID removes all tokens associated with a user ID.
	// Returns the number of tokens deleted.
	DeleteTokensByUserID(ctx context.Context, userID uuid.UUID) (int64, error)
}
