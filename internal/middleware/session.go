package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-console/internal/models"
	"github.com/noah-isme/sma-console/internal/service"
	appErrors "github.com/noah-isme/sma-console/pkg/errors"
	"github.com/noah-isme/sma-console/pkg/logger"
	"github.com/noah-isme/sma-console/pkg/response"
)

// ContextSessionKey is the gin context key storing the console session.
const ContextSessionKey = "consoleSession"

// SessionOpener resumes or starts console sessions.
type SessionOpener interface {
	Open(ctx context.Context, sessionID, token string, claims *models.JWTClaims) (*service.Session, error)
}

// Session attaches the caller's console session. The id travels in the
// X-Console-Session header and is echoed back, so a client that lost it
// simply receives a fresh one. Must run after JWT.
func Session(sessions SessionOpener) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		token := c.GetString(ContextTokenKey)

		sess, err := sessions.Open(c.Request.Context(), c.GetHeader(logger.SessionHeader), token, claims)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Writer.Header().Set(logger.SessionHeader, sess.ID)
		c.Set(ContextSessionKey, sess)
		c.Next()
	}
}

// CurrentSession returns the session stored by Session.
func CurrentSession(c *gin.Context) *service.Session {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil
	}
	sess, _ := value.(*service.Session)
	return sess
}
