package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-console/internal/models"
	"github.com/noah-isme/sma-console/pkg/response"
)

type sessionCloser interface {
	Close(id string)
}

type auditTrail interface {
	Recent(ctx context.Context, userID string, limit int) ([]models.AuditEntry, error)
}

// SessionView describes the caller's console session.
type SessionView struct {
	SessionID string              `json:"session_id"`
	User      *models.CurrentUser `json:"user"`
}

// SessionHandler exposes the caller's own session.
type SessionHandler struct {
	sessions sessionCloser
	audit    auditTrail
}

// NewSessionHandler builds a session handler.
func NewSessionHandler(sessions sessionCloser, audit auditTrail) *SessionHandler {
	return &SessionHandler{sessions: sessions, audit: audit}
}

// Me godoc
// @Summary Current console session and user
// @Tags Session
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /session [get]
func (h *SessionHandler) Me(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, SessionView{SessionID: sess.ID, User: sess.User}, nil)
}

// End godoc
// @Summary End the console session
// @Tags Session
// @Success 204
// @Router /session [delete]
func (h *SessionHandler) End(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	h.sessions.Close(sess.ID)
	response.NoContent(c)
}

// Deletions godoc
// @Summary Recent deletions issued by the current user
// @Tags Session
// @Produce json
// @Param limit query int false "Maximum entries (default 20)"
// @Success 200 {object} response.Envelope
// @Router /session/deletions [get]
func (h *SessionHandler) Deletions(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	entries, err := h.audit.Recent(c.Request.Context(), sess.User.UserID, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
