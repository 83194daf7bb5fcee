package handler

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tale-server/internal/models"
)

// validateUsername проверяет имя пользователя на длину и допустимые символы.
func validateUsername(username string) (string, bool) {
	username = strings.TrimSpace(username)
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return "", false
	}
	if !usernameRegex.MatchString(username) {
		return "", false
	}
	return username, true
}

// validatePassword проверяет, что пароль достаточно сложен:
// минимум одна буква и одна цифра.
func validatePassword(password string) bool {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return false
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	username, ok := validateUsername(req.Username)
	if !ok {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Username must be 3-30 characters and contain only letters, digits, '_' or '-'"})
		return
	}
	if !validatePassword(req.Password) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Password must be 8-100 characters and contain at least one letter and one digit"})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), username, req.Email, req.Password)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	registrationsTotal.Inc()
	h.logger.Info("user registered", zap.String("username", user.Username))

	c.JSON(http.StatusCreated, meResponse{
		ID:        user.ID.String(),
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	td, err := h.authService.Login(c.Request.Context(), strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  td.AccessToken,
		RefreshToken: td.RefreshToken,
	})
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	td, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	refreshesTotal.Inc()

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  td.AccessToken,
		RefreshToken: td.RefreshToken,
	})
}

func (h *Handler) logout(c *gin.Context) {
	var req logoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
