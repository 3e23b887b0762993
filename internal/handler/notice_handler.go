package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-console/internal/models"
	appErrors "github.com/noah-isme/sma-console/pkg/errors"
	"github.com/noah-isme/sma-console/pkg/response"
)

// NoticeHandler exposes the banner and the navigation mailbox.
type NoticeHandler struct {
	validate *validator.Validate
}

// NewNoticeHandler builds a notice handler.
func NewNoticeHandler(validate *validator.Validate) *NoticeHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &NoticeHandler{validate: validate}
}

// Navigate godoc
// @Summary Leave a message for the next page
// @Description The message is shown by the next list screen rendered in this session.
// @Tags Notices
// @Accept json
// @Produce json
// @Param payload body models.NavigationMessage true "Navigation message"
// @Success 202 {object} response.Envelope
// @Router /navigation [post]
func (h *NoticeHandler) Navigate(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var msg models.NavigationMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid navigation payload"))
		return
	}
	if err := h.validate.Struct(msg); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid navigation payload"))
		return
	}
	sess.Flash().Push(msg)
	response.JSON(c, http.StatusAccepted, msg, nil)
}

// Current godoc
// @Summary Current notice banner
// @Tags Notices
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /notice [get]
func (h *NoticeHandler) Current(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	n, shown := sess.Notices().Current()
	if !shown {
		response.JSON(c, http.StatusOK, gin.H{"notice": nil}, nil)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"notice": n}, nil)
}

// Dismiss godoc
// @Summary Dismiss the notice banner
// @Tags Notices
// @Success 204
// @Router /notice [delete]
func (h *NoticeHandler) Dismiss(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	sess.Notices().Clear()
	response.NoContent(c)
}
