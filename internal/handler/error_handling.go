package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tale-server/internal/models"
)

func handleServiceError(c *gin.Context, err error) {
	var statusCode int
	var message string

	switch {
	case errors.Is(err, models.ErrInvalidCredentials):
		statusCode = http.StatusUnauthorized
		message = "Invalid username or password"
	case errors.Is(err, models.ErrUserAlreadyExists):
		statusCode = http.StatusConflict
		message = "Username already exists"
	case errors.Is(err, models.ErrEmailAlreadyExists):
		statusCode = http.StatusConflict
		message = "Email already exists"
	case errors.Is(err, models.ErrUserNotFound):
		statusCode = http.StatusNotFound
		message = "User not found"
	case errors.Is(err, models.ErrStoryNotFound):
		statusCode = http.StatusNotFound
		message = "Story not found"
	case errors.Is(err, models.ErrSegmentNotFound):
		statusCode = http.StatusNotFound
		message = "Story segment not found"
	case errors.Is(err, models.ErrTokenInvalid), errors.Is(err, models.ErrTokenMalformed):
		statusCode = http.StatusUnauthorized
		message = "Token is invalid or malformed"
	case errors.Is(err, models.ErrTokenExpired):
		statusCode = http.StatusUnauthorized
		message = "Token has expired"
	case errors.Is(err, models.ErrTokenNotFound):
		statusCode = http.StatusUnauthorized
		message = "Provided token is invalid (possibly revoked or expired)"
	case errors.Is(err, models.ErrForbidden):
		statusCode = http.StatusForbidden
		message = "Not authorized to access this resource"
	case errors.Is(err, models.ErrSequenceConflict):
		statusCode = http.StatusConflict
		message = "Story was continued concurrently, reload and try again"
	case errors.Is(err, models.ErrGenerationUnavailable):
		// Сбой провайдера генерации: ошибка временная, можно повторить
		statusCode = http.StatusBadGateway
		message = "Failed to generate story. Please try again."
	case errors.Is(err, models.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		message = err.Error()
	default:
		zap.L().Error("Unhandled internal error in handleServiceError", zap.Error(err))
		statusCode = http.StatusInternalServerError
		message = "An unexpected internal error occurred"
	}

	c.AbortWithStatusJSON(statusCode, models.ErrorResponse{Error: message})
}
