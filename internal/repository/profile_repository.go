package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-console/internal/models"
	appErrors "github.com/noah-isme/sma-console/pkg/errors"
)

const profileKeyPrefix = "console:profile:"

// ProfileRepository stores resolved console user profiles in Redis.
type ProfileRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewProfileRepository constructs a profile repository. A nil client turns
// every read into a miss and every write into a no-op.
func NewProfileRepository(client *redis.Client, logger *zap.Logger) *ProfileRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileRepository{client: client, logger: logger}
}

// ProfileKey is the Redis key holding a user's profile.
func ProfileKey(userID string) string {
	return profileKeyPrefix + userID
}

// Get loads the profile of userID.
func (r *ProfileRepository) Get(ctx context.Context, userID string) (*models.CurrentUser, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}

	key := ProfileKey(userID)
	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	var user models.CurrentUser
	if err := json.Unmarshal(raw, &user); err != nil {
		r.logger.Warn("dropping unreadable profile", zap.String("key", key), zap.Error(err))
		_ = r.client.Del(ctx, key).Err()
		return nil, appErrors.ErrCacheMiss
	}
	return &user, nil
}

// Save stores the profile with the given TTL.
func (r *ProfileRepository) Save(ctx context.Context, user *models.CurrentUser, ttl time.Duration) error {
	if r.client == nil || user == nil {
		return nil
	}

	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal profile %s: %w", user.UserID, err)
	}

	key := ProfileKey(user.UserID)
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete forgets the profile of userID.
func (r *ProfileRepository) Delete(ctx context.Context, userID string) error {
	if r.client == nil {
		return nil
	}
	key := ProfileKey(userID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (r *ProfileRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection if present.
func (r *ProfileRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
