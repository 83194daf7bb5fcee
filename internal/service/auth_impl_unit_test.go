package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tale-server/internal/mocks"
	"tale-server/internal/models"
)

// Тесты для hashPassword и checkPasswordHash

func TestHashAndCheckPassword(t *testing.T) {
	password := "mysecretpassword1"
	pepper := "test-pepper-for-unit-tests"

	hashedPassword, err := hashPassword(password, pepper)
	require.NoError(t, err, "hashPassword should not return an error")
	require.NotEmpty(t, hashedPassword, "hashPassword should return a non-empty string")
	assert.NotEqual(t, password, hashedPassword, "Hashed password should not be equal to the original password")

	// Корректный пароль и перец
	assert.True(t, checkPasswordHash(password, pepper, hashedPassword))

	// Неверный пароль
	assert.False(t, checkPasswordHash("wrongpassword1", pepper, hashedPassword))

	// Неверный перец: подмешивается до bcrypt-сравнения, проверка не пройдет
	assert.False(t, checkPasswordHash(password, "another-pepper", hashedPassword))

	// Невалидный хеш
	assert.False(t, checkPasswordHash(password, pepper, "not-a-bcrypt-hash"))
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:       "unit-test-secret",
		PasswordPepper:  "unit-test-pepper",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("Successful registration", func(t *testing.T) {
		mockUserRepo := new(mocks.UserRepository)
		mockTokenRepo := new(mocks.TokenRepository)
		svc := NewAuthService(mockUserRepo, mockTokenRepo, testAuthConfig(), zap.NewNop())

		mockUserRepo.On("GetUserByUsername", ctx, "alice").Return(nil, models.ErrUserNotFound).Once()
		mockUserRepo.On("GetUserByEmail", ctx, "alice@example.com").Return(nil, models.ErrUserNotFound).Once()
		mockUserRepo.On("CreateUser", ctx, mock.MatchedBy(func(user *models.User) bool {
			assert.Equal(t, "alice", user.Username)
			assert.Equal(t, "alice@example.com", user.Email)
			// В базу уходит хеш, не пароль
			assert.NotEqual(t, "password1", user.PasswordHash)
			assert.NotEmpty(t, user.PasswordHash)
			return true
		})).Return(nil).Once()

		user, err := svc.Register(ctx, "alice", "Alice@Example.COM", "password1")

		require.NoError(t, err)
		assert.Equal(t, "alice@example.com", user.Email, "email must be lowercased")
		mockUserRepo.AssertExpectations(t)
	})

	t.Run("Existing username", func(t *testing.T) {
		mockUserRepo := new(mocks.UserRepository)
		svc := NewAuthService(mockUserRepo, new(mocks.TokenRepository), testAuthConfig(), zap.NewNop())

		existing := &models.User{ID: uuid.New(), Username: "alice"}
		mockUserRepo.On("GetUserByUsername", ctx, "alice").Return(existing, nil).Once()

		_, err := svc.Register(ctx, "alice", "alice@example.com", "password1")
		assert.ErrorIs(t, err, models.ErrUserAlreadyExists)
	})

	t.Run("Existing email", func(t *testing.T) {
		mockUserRepo := new(mocks.UserRepository)
		svc := NewAuthService(mockUserRepo, new(mocks.TokenRepository), testAuthConfig(), zap.NewNop())

		existing := &models.User{ID: uuid.New(), Email: "alice@example.com"}
		mockUserRepo.On("GetUserByUsername", ctx, "alice").Return(nil, models.ErrUserNotFound).Once()
		mockUserRepo.On("GetUserByEmail", ctx, "alice@example.com").Return(existing, nil).Once()

		_, err := svc.Register(ctx, "alice", "alice@example.com", "password1")
		assert.ErrorIs(t, err, models.ErrEmailAlreadyExists)
	})

	t.Run("Invalid email format", func(t *testing.T) {
		mockUserRepo := new(mocks.UserRepository)
		svc := NewAuthService(mockUserRepo, new(mocks.TokenRepository), testAuthConfig(), zap.NewNop())

		_, err := svc.Register(ctx, "alice", "not-an-email", "password1")
		assert.ErrorIs(t, err, models.ErrInvalidInput)
		mockUserRepo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	cfg := testAuthConfig()

	storedUser := func(t *testing.T) *models.User {
		hash, err := hashPassword("password1", cfg.PasswordPepper)
		require.NoError(t, err)
		return &models.User{ID: uuid.New(), Username: "alice", PasswordHash: hash}
	}

	t.Run("Successful login issues a token pair", func(t *testing.T) {
		mockUserRepo := new(mocks.UserRepository)
		mockTokenRepo := new(mocks.TokenRepository)
		svc := NewAuthService(mockUserRepo, mockTokenRepo, cfg, zap.NewNop())

		user := storedUser(t)
		mockUserRepo.On("GetUserByUsername", ctx, "alice").Return(user, nil).Once()
		mockTokenRepo.On("SetToken", ctx, user.ID, mock.MatchedBy(func(td *models.TokenDetails) bool {
			assert.NotEmpty(t, td.AccessToken)
			assert.NotEmpty(t, td.RefreshToken)
			assert.NotEqual(t, td.AccessUUID, td.RefreshUUID)
			return true
		})).Return(nil).Once()

		td, err := svc.Login(ctx, "alice", "password1")

		require.NoError(t, err)
		assert.NotEmpty(t, td.AccessToken)
		mockTokenRepo.AssertExpectations(t)
	})

	t.Run("Wrong password", func(t *testing.T) {
		mockUserRepo := new(mocks.UserRepository)
		mockTokenRepo := new(mocks.TokenRepository)
		svc := NewAuthService(mockUserRepo, mockTokenRepo, cfg, zap.NewNop())

		mockUserRepo.On("GetUserByUsername", ctx, "alice").Return(storedUser(t), nil).Once()

		_, err := svc.Login(ctx, "alice", "wrongpassword1")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
		mockTokenRepo.AssertNotCalled(t, "SetToken", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Unknown user maps to invalid credentials", func(t *testing.T) {
		mockUserRepo := new(mocks.UserRepository)
		svc := NewAuthService(mockUserRepo, new(mocks.TokenRepository), cfg, zap.NewNop())

		mockUserRepo.On("GetUserByUsername", ctx, "ghost").Return(nil, models.ErrUserNotFound).Once()

		_, err := svc.Login(ctx, "ghost", "password1")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()
	cfg := testAuthConfig()
	userID := uuid.New()

	// Выпускаем настоящую пару токенов, чтобы прогнать ее через Refresh
	issueTokens := func(t *testing.T, svc AuthService, tokenRepo *mocks.TokenRepository) *models.TokenDetails {
		impl, ok := svc.(*authServiceImpl)
		require.True(t, ok)
		tokenRepo.On("SetToken", ctx, userID, mock.Anything).Return(nil)
		td, err := impl.createTokens(ctx, userID)
		require.NoError(t, err)
		return td
	}

	t.Run("Refresh rotates the token pair", func(t *testing.T) {
		mockTokenRepo := new(mocks.TokenRepository)
		svc := NewAuthService(new(mocks.UserRepository), mockTokenRepo, cfg, zap.NewNop())
		td := issueTokens(t, svc, mockTokenRepo)

		mockTokenRepo.On("GetUserIDByRefreshUUID", ctx, td.RefreshUUID).Return(userID, nil).Once()
		mockTokenRepo.On("DeleteRefreshUUID", ctx, userID, td.RefreshUUID).Return(nil).Once()

		rotated, err := svc.Refresh(ctx, td.RefreshToken)

		require.NoError(t, err)
		assert.NotEqual(t, td.RefreshToken, rotated.RefreshToken)
		assert.NotEqual(t, td.RefreshUUID, rotated.RefreshUUID)
		mockTokenRepo.AssertExpectations(t)
	})

	t.Run("Revoked refresh token is rejected", func(t *testing.T) {
		mockTokenRepo := new(mocks.TokenRepository)
		svc := NewAuthService(new(mocks.UserRepository), mockTokenRepo, cfg, zap.NewNop())
		td := issueTokens(t, svc, mockTokenRepo)

		mockTokenRepo.On("GetUserIDByRefreshUUID", ctx, td.RefreshUUID).
			Return(uuid.Nil, models.ErrTokenNotFound).Once()

		_, err := svc.Refresh(ctx, td.RefreshToken)
		assert.ErrorIs(t, err, models.ErrTokenNotFound)
	})

	t.Run("Garbage token is malformed", func(t *testing.T) {
		svc := NewAuthService(new(mocks.UserRepository), new(mocks.TokenRepository), cfg, zap.NewNop())

		_, err := svc.Refresh(ctx, "not-a-jwt")
		assert.ErrorIs(t, err, models.ErrTokenMalformed)
	})
}
