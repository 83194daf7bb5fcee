package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tale-server/internal/models"
	"tale-server/internal/repository"
)

const userIDContextKey = "user_id"

// AuthMiddleware проверяет Bearer access токен: подпись, срок действия
// и наличие jti в хранилище токенов (отзыв при logout/смене пароля).
// ID пользователя кладется в контекст Gin под userIDContextKey.
func AuthMiddleware(jwtSecret string, tokenRepo repository.TokenRepository, logger *zap.Logger) gin.HandlerFunc {
	log := logger.Named("AuthMiddleware")

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Authorization header missing"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid Authorization header format"})
			return
		}

		claims := &models.Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			// Проверяем метод подписи
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})

		if err != nil {
			log.Debug("JWT parsing/validation error", zap.Error(err))
			switch {
			case errors.Is(err, jwt.ErrTokenExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Token has expired"})
			case errors.Is(err, jwt.ErrTokenMalformed):
				c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Token is malformed"})
			default:
				c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Token validation failed"})
			}
			return
		}

		if !token.Valid || claims.ID == "" || claims.UserID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Token is invalid"})
			return
		}

		// Проверяем, что access токен не отозван
		userID, err := tokenRepo.GetUserIDByAccessUUID(c.Request.Context(), claims.ID)
		if err != nil {
			if errors.Is(err, models.ErrTokenNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Token has been revoked"})
				return
			}
			log.Error("Failed to verify access token in store", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to verify token"})
			return
		}

		if userID.String() != claims.UserID {
			log.Warn("Access token user mismatch", zap.String("claimed", claims.UserID), zap.String("stored", userID.String()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Token is invalid"})
			return
		}

		c.Set(userIDContextKey, userID)
		c.Next()
	}
}

// getUserIDFromContext извлекает ID пользователя, положенный AuthMiddleware.
// Отсутствие ID означает, что маршрут подключен без middleware - это ошибка сервера.
func getUserIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(userIDContextKey)
	if !exists {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	if !ok {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Internal server error"})
		return uuid.Nil, false
	}
	return userID, true
}
