package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-console/internal/models"
	appErrors "github.com/noah-isme/sma-console/pkg/errors"
)

// ProfileStore caches resolved profiles.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*models.CurrentUser, error)
	Save(ctx context.Context, user *models.CurrentUser, ttl time.Duration) error
}

// ProfileSource asks the backend who the current token belongs to.
type ProfileSource interface {
	CurrentUser(ctx context.Context) (*models.CurrentUser, error)
}

// ProfileService validates bearer tokens and resolves the console user.
type ProfileService struct {
	secret  []byte
	store   ProfileStore
	ttl     time.Duration
	metrics *MetricsService
	logger  *zap.Logger
}

// NewProfileService constructs a ProfileService.
func NewProfileService(secret string, store ProfileStore, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *ProfileService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{secret: []byte(secret), store: store, ttl: ttl, metrics: metrics, logger: logger}
}

// ValidateToken parses an HS256 access token issued by the school backend.
func (s *ProfileService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token has no subject")
	}
	return claims, nil
}

// Resolve returns the profile of the token holder: the cached copy when
// present, otherwise the backend's answer, which is then cached. A backend
// without a profile endpoint falls back to the token claims.
func (s *ProfileService) Resolve(ctx context.Context, claims *models.JWTClaims, source ProfileSource) (*models.CurrentUser, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}

	if s.store != nil {
		user, err := s.store.Get(ctx, claims.UserID)
		switch {
		case err == nil:
			s.metrics.RecordProfileLookup("cache")
			return mergeClaims(user, claims), nil
		case !errors.Is(err, appErrors.ErrCacheMiss):
			s.logger.Warn("profile cache read failed", zap.String("user_id", claims.UserID), zap.Error(err))
		}
	}

	user, err := source.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, appErrors.ErrNotFound) {
			s.metrics.RecordProfileLookup("claims")
			return mergeClaims(&models.CurrentUser{}, claims), nil
		}
		s.metrics.RecordProfileLookup("error")
		return nil, err
	}
	s.metrics.RecordProfileLookup("upstream")
	user = mergeClaims(user, claims)

	if s.store != nil {
		if err := s.store.Save(ctx, user, s.ttl); err != nil {
			s.logger.Warn("profile cache write failed", zap.String("user_id", user.UserID), zap.Error(err))
		}
	}
	return user, nil
}

// mergeClaims fills gaps in a profile from the token claims.
func mergeClaims(user *models.CurrentUser, claims *models.JWTClaims) *models.CurrentUser {
	out := *user
	if out.UserID == "" {
		out.UserID = claims.UserID
	}
	if out.Role == "" {
		out.Role = claims.Role
	}
	if out.Email == "" {
		out.Email = claims.Email
	}
	if out.FullName == "" {
		out.FullName = claims.FullName
	}
	return &out
}
