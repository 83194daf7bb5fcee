package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tale-server/internal/models"
)

// Compile-time check to ensure redisTokenRepository implements TokenRepository
var _ TokenRepository = (*redisTokenRepository)(nil)

type redisTokenRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisTokenRepository creates a new Redis-backed TokenRepository.
func NewRedisTokenRepository(client *redis.Client, logger *zap.Logger) TokenRepository {
	return &redisTokenRepository{
		client: client,
		logger: logger.Named("RedisTokenRepo"),
	}
}

// SetToken stores token details in Redis.
// Для каждой пары токенов храним два ключа:
// 1. access_uuid:{AccessUUID} -> UserID (с TTL access токена)
// 2. refresh_uuid:{RefreshUUID} -> UserID (с TTL refresh токена)
// и добавляем идентификаторы в набор пользователя user_tokens:{UserID},
// чтобы уметь отозвать все токены разом.
func (r *redisTokenRepository) SetToken(ctx context.Context, userID uuid.UUID, td *models.TokenDetails) error {
	at := time.Unix(td.AtExpires, 0)
	rt := time.Unix(td.RtExpires, 0)
	now := time.Now()

	accessKey := fmt.Sprintf("access_uuid:%s", td.AccessUUID)
	refreshKey := fmt.Sprintf("refresh_uuid:%s", td.RefreshUUID)
	userIDStr := userID.String()
	userSetKey := fmt.Sprintf("user_tokens:%s", userIDStr)

	// Use pipeline for atomic operations
	pipe := r.client.Pipeline()
	pipe.Set(ctx, accessKey, userIDStr, at.Sub(now))
	pipe.Set(ctx, refreshKey, userIDStr, rt.Sub(now))
	pipe.SAdd(ctx, userSetKey, fmt.Sprintf("access:%s", td.AccessUUID), fmt.Sprintf("refresh:%s", td.RefreshUUID))

	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to set token details in redis", zap.Error(err), zap.String("userID", userIDStr))
		return fmt.Errorf("failed to set token details in redis: %w", err)
	}

	r.logger.Debug("Tokens stored in redis",
		zap.String("userID", userIDStr),
		zap.String("accessUUID", td.AccessUUID),
		zap.String("refreshUUID", td.RefreshUUID),
	)
	return nil
}

// GetUserIDByAccessUUID returns the user that owns the given access token UUID.
func (r *redisTokenRepository) GetUserIDByAccessUUID(ctx context.Context, accessUUID string) (uuid.UUID, error) {
	return r.getUserID(ctx, fmt.Sprintf("access_uuid:%s", accessUUID))
}

// GetUserIDByRefreshUUID returns the user that owns the given refresh token UUID.
func (r *redisTokenRepository) GetUserIDByRefreshUUID(ctx context.Context, refreshUUID string) (uuid.UUID, error) {
	return r.getUserID(ctx, fmt.Sprintf("refresh_uuid:%s", refreshUUID))
}

func (r *redisTokenRepository) getUserID(ctx context.Context, key string) (uuid.UUID, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, models.ErrTokenNotFound
		}
		r.logger.Error("Failed to get token from redis", zap.Error(err), zap.String("key", key))
		return uuid.Nil, fmt.Errorf("failed to get token from redis: %w", err)
	}

	userID, err := uuid.Parse(value)
	if err != nil {
		r.logger.Error("Invalid user id stored for token", zap.Error(err), zap.String("key", key))
		return uuid.Nil, fmt.Errorf("invalid user id stored for token: %w", err)
	}
	return userID, nil
}

// DeleteRefreshUUID removes a single refresh token UUID from the store.
func (r *redisTokenRepository) DeleteRefreshUUID(ctx context.Context, userID uuid.UUID, refreshUUID string) error {
	userSetKey := fmt.Sprintf("user_tokens:%s", userID.String())

	pipe := r.client.Pipeline()
	pipe.Del(ctx, fmt.Sprintf("refresh_uuid:%s", refreshUUID))
	pipe.SRem(ctx, userSetKey, fmt.Sprintf("refresh:%s", refreshUUID))
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("Failed to delete refresh token from redis", zap.Error(err), zap.String("userID", userID.String()))
		return fmt.Errorf("failed to delete refresh token from redis: %w", err)
	}
	return nil
}

// DeleteTokensByUserID removes all tokens associated with a user.
func (r *redisTokenRepository) DeleteTokensByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	userSetKey := fmt.Sprintf("user_tokens:%s", userID.String())

	identifiers, err := r.client.SMembers(ctx, userSetKey).Result()
	if err != nil {
		r.logger.Error("Failed to read user token set", zap.Error(err), zap.String("userID", userID.String()))
		return 0, fmt.Errorf("failed to read user token set: %w", err)
	}

	keys := make([]string, 0, len(identifiers)+1)
	for _, identifier := range identifiers {
		// Идентификаторы хранятся как "access:{uuid}" / "refresh:{uuid}"
		if uuidPart, ok := strings.CutPrefix(identifier, "access:"); ok {
			keys = append(keys, fmt.Sprintf("access_uuid:%s", uuidPart))
		} else if uuidPart, ok := strings.CutPrefix(identifier, "refresh:"); ok {
			keys = append(keys, fmt.Sprintf("refresh_uuid:%s", uuidPart))
		}
	}
	keys = append(keys, userSetKey)

	deleted, err := r.client.Del(ctx, keys...).Result()
	if err != nil {
		r.logger.Error("Failed to delete user tokens from redis", zap.Error(err), zap.String("userID", userID.String()))
		return 0, fmt.Errorf("failed to delete user tokens from redis: %w", err)
	}

	r.logger.Info("All user tokens revoked", zap.String("userID", userID.String()), zap.Int64("deleted", deleted))
	return deleted, nil
}
