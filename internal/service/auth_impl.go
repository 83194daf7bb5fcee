package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tale-server/internal/models"
	"tale-server/internal/repository"
)

// Compile-time check to ensure authServiceImpl implements AuthService
var _ AuthService = (*authServiceImpl)(nil)

// AuthConfig содержит настройки, нужные сервису аутентификации.
type AuthConfig struct {
	JWTSecret       string
	PasswordPepper  string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// authServiceImpl implements the AuthService interface.
type authServiceImpl struct {
	userRepo  repository.UserRepository
	tokenRepo repository.TokenRepository
	cfg       AuthConfig
	logger    *zap.Logger
}

// NewAuthService creates a new instance of authServiceImpl.
func NewAuthService(userRepo repository.UserRepository, tokenRepo repository.TokenRepository, cfg AuthConfig, logger *zap.Logger) AuthService {
	return &authServiceImpl{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		cfg:       cfg,
		logger:    logger.Named("AuthService"),
	}
}

// Register creates a new user.
func (s *authServiceImpl) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	// Приводим email к нижнему регистру и убираем пробелы
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)

	logFields := []zap.Field{zap.String("username", username), zap.String("email", email)}
	s.logger.Info("Registering new user", logFields...)

	// Валидация формата email (простая)
	if _, err := mail.ParseAddress(email); err != nil {
		s.logger.Warn("Registration attempt with invalid email format", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("invalid email format: %w", models.ErrInvalidInput)
	}

	if username == "" || password == "" {
		s.logger.Warn("Registration attempt with empty username or password", logFields...)
		return nil, models.ErrInvalidInput
	}

	// Проверка существования пользователя по username
	existingUser, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil && !errors.Is(err, models.ErrUserNotFound) {
		s.logger.Error("Error checking existing username during registration", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("error checking existing username: %w", err)
	}
	if existingUser != nil {
		s.logger.Warn("Registration attempt for existing username", logFields...)
		return nil, models.ErrUserAlreadyExists
	}

	// Проверка существования пользователя по email
	existingUser, err = s.userRepo.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrUserNotFound) {
		s.logger.Error("Error checking existing email during registration", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("error checking existing email: %w", err)
	}
	if existingUser != nil {
		s.logger.Warn("Registration attempt for existing email", logFields...)
		return nil, models.ErrEmailAlreadyExists
	}

	// Используем перец перед хешированием
	hashedPassword, err := hashPassword(password, s.cfg.PasswordPepper)
	if err != nil {
		s.logger.Error("Failed to hash password during registration", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
	}

	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		// Ошибки уникальности репозиторий уже преобразовал в сентинелы
		if !errors.Is(err, models.ErrUserAlreadyExists) && !errors.Is(err, models.ErrEmailAlreadyExists) {
			s.logger.Error("Failed to create user via repository", append(logFields, zap.Error(err))...)
		}
		return nil, err
	}

	s.logger.Info("User registered successfully", zap.String("userID", user.ID.String()), zap.String("username", user.Username))
	return user, nil
}

// Login authenticates a user and returns token details.
func (s *authServiceImpl) Login(ctx context.Context, username, password string) (*models.TokenDetails, error) {
	s.logger.Info("Login attempt", zap.String("username", username))
	user, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			s.logger.Warn("Login failed: user not found", zap.String("username", username))
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("Login failed: error getting user from repository", zap.Error(err), zap.String("username", username))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// Используем перец при проверке
	if !checkPasswordHash(password, s.cfg.PasswordPepper, user.PasswordHash) {
		s.logger.Warn("Login failed: invalid password", zap.String("username", username), zap.String("userID", user.ID.String()))
		return nil, models.ErrInvalidCredentials
	}

	tokens, err := s.createTokens(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in", zap.String("userID", user.ID.String()))
	return tokens, nil
}

// Refresh rotates a refresh token into a new token pair.
func (s *authServiceImpl) Refresh(ctx context.Context, refreshToken string) (*models.TokenDetails, error) {
	claims, err := s.parseToken(refreshToken)
	if err != nil {
		return nil, err
	}

	// Refresh-токен одноразовый: проверяем, что он еще не отозван
	userID, err := s.tokenRepo.GetUserIDByRefreshUUID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, models.ErrTokenNotFound) {
			s.logger.Warn("Refresh attempt with revoked or expired token", zap.String("refreshUUID", claims.ID))
			return nil, models.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to verify refresh token: %w", err)
	}

	if userID.String() != claims.UserID {
		s.logger.Warn("Refresh token user mismatch", zap.String("claimed", claims.UserID), zap.String("stored", userID.String()))
		return nil, models.ErrTokenInvalid
	}

	if err := s.tokenRepo.DeleteRefreshUUID(ctx, userID, claims.ID); err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	tokens, err := s.createTokens(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Tokens refreshed", zap.String("userID", userID.String()))
	return tokens, nil
}

// Logout revokes the refresh token (access token expires on its own).
func (s *authServiceImpl) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.parseToken(refreshToken)
	if err != nil {
		return err
	}

	userID, err := s.tokenRepo.GetUserIDByRefreshUUID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, models.ErrTokenNotFound) {
			return models.ErrTokenNotFound
		}
		return fmt.Errorf("failed to look up refresh token: %w", err)
	}

	if err := s.tokenRepo.DeleteRefreshUUID(ctx, userID, claims.ID); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	s.logger.Info("User logged out", zap.String("userID", userID.String()))
	return nil
}

// GetUser returns the user's profile.
func (s *authServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.userRepo.GetUserByID(ctx, userID)
}

// UpdateUser changes username and/or email of a user.
func (s *authServiceImpl) UpdateUser(ctx context.Context, userID uuid.UUID, username, email *string) (*models.User, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if username != nil && strings.TrimSpace(*username) != "" {
		user.Username = strings.TrimSpace(*username)
	}
	if email != nil && strings.TrimSpace(*email) != "" {
		cleaned := strings.ToLower(strings.TrimSpace(*email))
		if _, err := mail.ParseAddress(cleaned); err != nil {
			return nil, fmt.Errorf("invalid email format: %w", models.ErrInvalidInput)
		}
		user.Email = cleaned
	}

	if err := s.userRepo.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User profile updated", zap.String("userID", userID.String()))
	return user, nil
}

// UpdatePassword verifies the current password and replaces the hash.
// Все выданные токены отзываются, взамен выдается новая пара.
func (s *authServiceImpl) UpdatePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) (*models.TokenDetails, error) {
	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !checkPasswordHash(currentPassword, s.cfg.PasswordPepper, user.PasswordHash) {
		s.logger.Warn("Password update failed: wrong current password", zap.String("userID", userID.String()))
		return nil, models.ErrInvalidCredentials
	}

	hashedPassword, err := hashPassword(newPassword, s.cfg.PasswordPepper)
	if err != nil {
		return nil, fmt.Errorf("failed to hash new password: %w", err)
	}

	if err := s.userRepo.UpdatePassword(ctx, userID, hashedPassword); err != nil {
		return nil, err
	}

	if _, err := s.tokenRepo.DeleteTokensByUserID(ctx, userID); err != nil {
		s.logger.Error("Failed to revoke tokens after password change", zap.Error(err), zap.String("userID", userID.String()))
		return nil, fmt.Errorf("failed to revoke tokens: %w", err)
	}

	tokens, err := s.createTokens(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Password updated", zap.String("userID", userID.String()))
	return tokens, nil
}

// DeleteAccount removes the user and revokes all their tokens.
func (s *authServiceImpl) DeleteAccount(ctx context.Context, userID uuid.UUID) error {
	// Истории и сегменты удаляются каскадом в БД
	if err := s.userRepo.DeleteUser(ctx, userID); err != nil {
		return err
	}
	if _, err := s.tokenRepo.DeleteTokensByUserID(ctx, userID); err != nil {
		s.logger.Error("Failed to revoke tokens after account deletion", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("failed to revoke tokens: %w", err)
	}
	s.logger.Info("Account deleted", zap.String("userID", userID.String()))
	return nil
}

// createTokens issues a new access/refresh pair and stores it in the token repo.
func (s *authServiceImpl) createTokens(ctx context.Context, userID uuid.UUID) (*models.TokenDetails, error) {
	now := time.Now()
	td := &models.TokenDetails{
		AccessUUID:  uuid.NewString(),
		RefreshUUID: uuid.NewString(),
		AtExpires:   now.Add(s.cfg.AccessTokenTTL).Unix(),
		RtExpires:   now.Add(s.cfg.RefreshTokenTTL).Unix(),
	}

	accessToken, err := s.signToken(userID, td.AccessUUID, now, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refreshToken, err := s.signToken(userID, td.RefreshUUID, now, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	td.AccessToken = accessToken
	td.RefreshToken = refreshToken

	if err := s.tokenRepo.SetToken(ctx, userID, td); err != nil {
		return nil, fmt.Errorf("failed to store token details: %w", err)
	}
	return td, nil
}

func (s *authServiceImpl) signToken(userID uuid.UUID, jti string, now time.Time, ttl time.Duration) (string, error) {
	claims := &models.Claims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// parseToken validates a JWT and maps validation failures to sentinel errors.
func (s *authServiceImpl) parseToken(tokenString string) (*models.Claims, error) {
	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Проверяем метод подписи
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, models.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, models.ErrTokenMalformed
		default:
			return nil, models.ErrTokenInvalid
		}
	}
	if !token.Valid || claims.ID == "" || claims.UserID == "" {
		return nil, models.ErrTokenInvalid
	}
	return claims, nil
}
