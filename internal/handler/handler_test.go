package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"tale-server/internal/models"
)

func TestValidateUsername(t *testing.T) {
	cases := []struct {
		input string
		valid bool
	}{
		{"alice", true},
		{"  alice  ", true}, // пробелы по краям срезаются
		{"al", false},
		{"user_name-42", true},
		{"bad name", false},
		{"почта", false},
		{"", false},
	}
	for _, tc := range cases {
		_, ok := validateUsername(tc.input)
		assert.Equal(t, tc.valid, ok, "input: %q", tc.input)
	}

	long := ""
	for i := 0; i < 31; i++ {
		long += "a"
	}
	_, ok := validateUsername(long)
	assert.False(t, ok, "31 characters must be rejected")
}

func TestValidatePassword(t *testing.T) {
	assert.True(t, validatePassword("password1"))
	assert.False(t, validatePassword("password"), "needs a digit")
	assert.False(t, validatePassword("12345678"), "needs a letter")
	assert.False(t, validatePassword("pass1"), "too short")
}

func TestHandleServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err    error
		status int
	}{
		{models.ErrInvalidCredentials, http.StatusUnauthorized},
		{models.ErrUserAlreadyExists, http.StatusConflict},
		{models.ErrEmailAlreadyExists, http.StatusConflict},
		{models.ErrStoryNotFound, http.StatusNotFound},
		{models.ErrForbidden, http.StatusForbidden},
		{models.ErrSequenceConflict, http.StatusConflict},
		{models.ErrGenerationUnavailable, http.StatusBadGateway},
		{models.ErrTokenExpired, http.StatusUnauthorized},
		{fmt.Errorf("prompt is required: %w", models.ErrInvalidInput), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		recorder := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(recorder)

		handleServiceError(c, tc.err)

		assert.Equal(t, tc.status, recorder.Code, "error: %v", tc.err)
	}
}

func TestHandleServiceErrorWrappedSentinel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)

	// Обернутый сентинел распознается через errors.Is
	handleServiceError(c, fmt.Errorf("append failed: %w", models.ErrSequenceConflict))

	assert.Equal(t, http.StatusConflict, recorder.Code)
}
