package handler

import (
	"regexp"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tale-server/internal/models"
	"tale-server/internal/repository"
	"tale-server/internal/service"
)

// --- Константы для валидации ---
const (
	minUsernameLength = 3
	maxUsernameLength = 30
	minPasswordLength = 8
	maxPasswordLength = 100
	maxPromptLength   = 2000
)

// Регулярное выражение для проверки допустимых символов в имени пользователя
var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Handler обрабатывает HTTP запросы Tale Server.
type Handler struct {
	authService  service.AuthService
	storyService service.StoryService
	tokenRepo    repository.TokenRepository
	jwtSecret    string
	logger       *zap.Logger
}

// New создает новый Handler.
func New(authService service.AuthService, storyService service.StoryService, tokenRepo repository.TokenRepository, jwtSecret string, logger *zap.Logger) *Handler {
	return &Handler{
		authService:  authService,
		storyService: storyService,
		tokenRepo:    tokenRepo,
		jwtSecret:    jwtSecret,
		logger:       logger.Named("Handler"),
	}
}

// RegisterRoutes регистрирует маршруты сервиса.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	authMiddleware := AuthMiddleware(h.jwtSecret, h.tokenRepo, h.logger)

	// Rate limit на эндпоинты аутентификации: защита от перебора паролей
	authLimiter := ratelimit.RateLimiter(
		ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
			Rate:  time.Minute,
			Limit: 20,
		}),
		&ratelimit.Options{
			ErrorHandler: func(c *gin.Context, info ratelimit.Info) {
				c.AbortWithStatusJSON(429, models.ErrorResponse{Error: "Too many requests, try again later"})
			},
			KeyFunc: func(c *gin.Context) string {
				return c.ClientIP()
			},
		},
	)

	api := router.Group("/api")

	authGroup := api.Group("/auth", authLimiter)
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.POST("/refresh", h.refresh)
		authGroup.POST("/logout", h.logout)
	}

	usersGroup := api.Group("/users", authMiddleware)
	{
		usersGroup.GET("/me", h.getMe)
		usersGroup.PUT("/me", h.updateMe)
		usersGroup.PUT("/me/password", h.updatePassword)
		usersGroup.DELETE("/me", h.deleteMe)
	}

	storiesGroup := api.Group("/stories")
	{
		// Публичный маршрут share-ссылок регистрируем до middleware
		storiesGroup.GET("/shared/:shareId", h.getSharedStory)

		protected := storiesGroup.Group("", authMiddleware)
		{
			protected.POST("/generate", h.generateStory)
			protected.POST("/:id/continue", h.continueStory)
			protected.GET("", h.listStories)
			protected.GET("/:id", h.getStory)
			protected.PUT("/:id", h.saveStory)
			protected.POST("/:id/share", h.shareStory)
			protected.DELETE("/:id", h.deleteStory)
		}
	}
}
