package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-console/internal/models"
	"github.com/noah-isme/sma-console/internal/service"
	appErrors "github.com/noah-isme/sma-console/pkg/errors"
	"github.com/noah-isme/sma-console/pkg/logger"
)

type stubValidator struct {
	token string
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != s.token {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}, nil
}

type stubOpener struct {
	gotID    string
	gotToken string
}

func (s *stubOpener) Open(_ context.Context, sessionID, token string, claims *models.JWTClaims) (*service.Session, error) {
	s.gotID = sessionID
	s.gotToken = token
	return &service.Session{ID: "sess-1", User: &models.CurrentUser{UserID: claims.UserID}}, nil
}

func newRouter(opener *stubOpener) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWT(stubValidator{token: "good"}), Session(opener))
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, CurrentSession(c).User.UserID)
	})
	return r
}

func TestJWTRejectsMissingHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(&stubOpener{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTRejectsBadToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	newRouter(&stubOpener{}).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionAttachedAndEchoed(t *testing.T) {
	opener := &stubOpener{}
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set(logger.SessionHeader, "previous")
	rec := httptest.NewRecorder()
	newRouter(opener).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())
	assert.Equal(t, "sess-1", rec.Header().Get(logger.SessionHeader))
	assert.Equal(t, "previous", opener.gotID)
	assert.Equal(t, "good", opener.gotToken)
}
