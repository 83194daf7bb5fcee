package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tale-server/internal/models"
)

func (h *Handler) getMe(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	storyCount, err := h.storyService.CountStories(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, meResponse{
		ID:         user.ID.String(),
		Username:   user.Username,
		Email:      user.Email,
		StoryCount: storyCount,
		CreatedAt:  user.CreatedAt,
	})
}

func (h *Handler) updateMe(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.Username == nil && req.Email == nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Nothing to update"})
		return
	}
	if req.Username != nil {
		username, valid := validateUsername(*req.Username)
		if !valid {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Username must be 3-30 characters and contain only letters, digits, '_' or '-'"})
			return
		}
		req.Username = &username
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		req.Email = &email
	}

	user, err := h.authService.UpdateUser(c.Request.Context(), userID, req.Username, req.Email)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, meResponse{
		ID:        user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

func (h *Handler) updatePassword(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}
	if !validatePassword(req.NewPassword) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Password must be 8-100 characters and contain at least one letter and one digit"})
		return
	}

	td, err := h.authService.UpdatePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	h.logger.Info("password updated", zap.String("userID", userID.String()))

	// Смена пароля отзывает все старые токены, поэтому сразу выдаем новую пару
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  td.AccessToken,
		RefreshToken: td.RefreshToken,
	})
}

func (h *Handler) deleteMe(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return
	}

	if err := h.authService.DeleteAccount(c.Request.Context(), userID); err != nil {
		handleServiceError(c, err)
		return
	}
	h.logger.Info("account deleted", zap.String("userID", userID.String()))

	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
