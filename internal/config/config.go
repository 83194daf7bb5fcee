package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config содержит конфигурацию Tale Server
type Config struct {
	// Настройки сервера
	Port     string `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Базовый адрес, на котором сервис доступен снаружи (для построения share-ссылок)
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`

	// Настройки PostgreSQL
	DBHost        string        `envconfig:"DB_HOST" default:"localhost"`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"postgres"`
	DBPassword    string        `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName        string        `envconfig:"DB_NAME" default:"tale"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_TIME" default:"5m"`

	// Настройки Redis (хранилище выданных токенов)
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Настройки JWT
	JWTSecret       string        `envconfig:"JWT_SECRET" required:"true"`
	PasswordPepper  string        `envconfig:"PASSWORD_PEPPER" default:""`
	AccessTokenTTL  time.Duration `envconfig:"JWT_ACCESS_TOKEN_TTL" default:"1h"`
	RefreshTokenTTL time.Duration `envconfig:"JWT_REFRESH_TOKEN_TTL" default:"168h"`

	// Настройки AI API
	AIAPIKey      string        `envconfig:"AI_API_KEY" required:"true"`
	AIModel       string        `envconfig:"AI_MODEL" default:"gpt-3.5-turbo"`
	AIBaseURL     string        `envconfig:"AI_BASE_URL" default:""`
	AITimeout     time.Duration `envconfig:"AI_TIMEOUT" default:"60s"`
	AIMaxTokens   int           `envconfig:"AI_MAX_TOKENS" default:"800"`
	AITemperature float64       `envconfig:"AI_TEMPERATURE" default:"0.7"`

	// Настройки CORS
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// GetDSN возвращает строку подключения (DSN) для PostgreSQL
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig загружает конфигурацию из переменных окружения (и .env, если есть)
func LoadConfig() (*Config, error) {
	// .env опционален, в production переменные приходят из окружения
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации tale-server: %w", err)
	}

	log.Printf("Конфигурация Tale Server загружена:")
	log.Printf("  Port: %s", cfg.Port)
	log.Printf("  LogLevel: %s", cfg.LogLevel)
	log.Printf("  DB DSN: postgres://%s:***@%s:%s/%s?sslmode=%s", cfg.DBUser, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
	log.Printf("  Redis Addr: %s", cfg.RedisAddr)
	log.Printf("  AI Model: %s", cfg.AIModel)
	log.Println("  JWT Secret: [ЗАГРУЖЕН]")

	return &cfg, nil
}
