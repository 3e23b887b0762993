package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-console/internal/models"
	appErrors "github.com/noah-isme/sma-console/pkg/errors"
)

func TestProfileKey(t *testing.T) {
	assert.Equal(t, "console:profile:u-17", ProfileKey("u-17"))
}

func TestProfileRepositoryWithoutClient(t *testing.T) {
	repo := NewProfileRepository(nil, nil)
	ctx := context.Background()

	_, err := repo.Get(ctx, "u1")
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Save(ctx, &models.CurrentUser{UserID: "u1"}, time.Minute))
	assert.NoError(t, repo.Delete(ctx, "u1"))
	assert.NoError(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
}
