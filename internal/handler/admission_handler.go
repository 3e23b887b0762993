package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-console/internal/admission"
	appErrors "github.com/noah-isme/sma-console/pkg/errors"
	"github.com/noah-isme/sma-console/pkg/response"
)

// AdmissionHandler exposes the admission wizard.
type AdmissionHandler struct {
	logger *zap.Logger
}

// NewAdmissionHandler builds an admission handler.
func NewAdmissionHandler(logger *zap.Logger) *AdmissionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdmissionHandler{logger: logger}
}

func parseStepParam(c *gin.Context) (admission.Step, bool) {
	step, ok := admission.ParseStep(c.Param("step"))
	if !ok {
		response.Error(c, appErrors.WithFields(appErrors.ErrValidation, map[string]string{"step": "unknown step"}))
		return 0, false
	}
	return step, true
}

// Show godoc
// @Summary Wizard state including the fee breakdown
// @Tags Admissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admissions/wizard [get]
func (h *AdmissionHandler) Show(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	response.JSON(c, http.StatusOK, sess.Wizard().Snapshot(), nil)
}

// SaveStep godoc
// @Summary Save a step form and advance
// @Tags Admissions
// @Accept json
// @Produce json
// @Param step path string true "Step number or name"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions/wizard/steps/{step} [put]
func (h *AdmissionHandler) SaveStep(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	step, ok := parseStepParam(c)
	if !ok {
		return
	}
	form := admission.NewForm(step)
	if form != nil {
		if err := c.ShouldBindJSON(form); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+step.String()+" payload"))
			return
		}
	}
	wizard := sess.Wizard()
	if err := wizard.SaveStep(step, form); err != nil {
		response.ErrorWithData(c, err, wizard.Snapshot())
		return
	}
	response.JSON(c, http.StatusOK, wizard.Snapshot(), nil)
}

// Back godoc
// @Summary Go back one step
// @Tags Admissions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admissions/wizard/back [post]
func (h *AdmissionHandler) Back(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	sess.Wizard().Back()
	response.JSON(c, http.StatusOK, sess.Wizard().Snapshot(), nil)
}

// GoTo godoc
// @Summary Jump to a reached step
// @Tags Admissions
// @Produce json
// @Param step path string true "Step number or name"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admissions/wizard/goto/{step} [post]
func (h *AdmissionHandler) GoTo(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	step, ok := parseStepParam(c)
	if !ok {
		return
	}
	if err := sess.Wizard().GoTo(step); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sess.Wizard().Snapshot(), nil)
}

// Preview godoc
// @Summary Download the application preview
// @Tags Admissions
// @Produce application/pdf
// @Success 200 {file} file
// @Router /admissions/wizard/preview.pdf [get]
func (h *AdmissionHandler) Preview(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	data, err := admission.RenderPreview(sess.Wizard().Snapshot())
	if err != nil {
		h.logger.Error("render admission preview failed", zap.String("session_id", sess.ID), zap.Error(err))
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render preview"))
		return
	}
	response.Attachment(c, "admission-preview.pdf", "application/pdf", data)
}

// Submit godoc
// @Summary Submit the application
// @Description A rejected application returns the wizard positioned on the earliest step with errors.
// @Tags Admissions
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /admissions/wizard/submit [post]
func (h *AdmissionHandler) Submit(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	row, err := sess.SubmitAdmission(c.Request.Context())
	if err != nil {
		if errors.Is(err, appErrors.ErrServerValidation) {
			response.ErrorWithData(c, err, sess.Wizard().Snapshot())
			return
		}
		response.Error(c, err)
		return
	}
	response.Created(c, row)
}

// Parents godoc
// @Summary Search parents by name
// @Description Debounced per session; a superseded search returns an empty list.
// @Tags Admissions
// @Produce json
// @Param search query string false "Name fragment"
// @Success 200 {object} response.Envelope
// @Router /admissions/parents [get]
func (h *AdmissionHandler) Parents(c *gin.Context) {
	sess, ok := sessionFromContext(c)
	if !ok {
		return
	}
	rows, err := sess.LookupParents(c.Request.Context(), c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
