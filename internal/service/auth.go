package service

import (
	"context"

	"github.com/google/uuid"

	"tale-server/internal/models"
)

// AuthService определяет контракт сервиса аутентификации.
type AuthService interface {
	// Register creates a new user account.
	Register(ctx context.Context, username, email, password string) (*models.User, error)

	// Login authenticates a user and returns a token pair.
	Login(ctx context.Context, username, password string) (*models.TokenDetails, error)

	// Refresh rotates a refresh token into a new token pair.
	Refresh(ctx context.Context, refreshToken string) (*models.TokenDetails, error)

	// Logout revokes the token pair associated with a refresh token.
	Logout(ctx context.Context, refreshToken string) error

	// GetUser returns the user's profile.
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// UpdateUser changes username and/or email of a user.
	UpdateUser(ctx context.Context, userID uuid.UUID, username, email *string) (*models.User, error)

	// UpdatePassword verifies the current password, stores a new hash and
	// revokes all outstanding tokens of the user.
	UpdatePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) (*models.TokenDetails, error)

	// DeleteAccount removes the user, their stories and revokes all tokens.
	DeleteAccount(ctx context.Context, userID uuid.UUID) error
}
