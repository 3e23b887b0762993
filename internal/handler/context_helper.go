package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-console/internal/listing"
	"github.com/noah-isme/sma-console/internal/middleware"
	"github.com/noah-isme/sma-console/internal/service"
	appErrors "github.com/noah-isme/sma-console/pkg/errors"
	"github.com/noah-isme/sma-console/pkg/response"
)

// sessionFromContext returns the console session or writes 401.
func sessionFromContext(c *gin.Context) (*service.Session, bool) {
	sess := middleware.CurrentSession(c)
	if sess == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return sess, true
}

// controllerFromContext returns the listing controller named by :entity.
func controllerFromContext(c *gin.Context) (*service.Session, *listing.Controller, bool) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return nil, nil, false
	}
	ctrl, err := sess.Controller(c.Param("entity"))
	if err != nil {
		response.Error(c, err)
		return nil, nil, false
	}
	return sess, ctrl, true
}
