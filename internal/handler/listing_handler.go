package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-console/internal/listing"
	"github.com/noah-isme/sma-console/internal/models"
	appErrors "github.com/noah-isme/sma-console/pkg/errors"
	"github.com/noah-isme/sma-console/pkg/export"
	"github.com/noah-isme/sma-console/pkg/response"
)

// SearchRequest carries the search box text.
type SearchRequest struct {
	Search string `json:"search"`
}

// FilterRequest sets one draft filter value. An empty value clears the key.
type FilterRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

// ListingHandler exposes the list screens of the console.
type ListingHandler struct {
	csv    *export.CSVExporter
	logger *zap.Logger
	now    func() time.Time
}

// NewListingHandler builds a listing handler.
func NewListingHandler(logger *zap.Logger) *ListingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingHandler{csv: export.NewCSVExporter(), logger: logger, now: time.Now}
}

func respondSnapshot(c *gin.Context, snap listing.Snapshot) {
	pagination := snap.Pagination
	response.JSON(c, http.StatusOK, snap, &pagination)
}

// Show godoc
// @Summary Show a list screen
// @Description Loads the first page on first visit and shows any pending navigation message.
// @Tags Listings
// @Produce json
// @Param entity path string true "Entity name"
// @Success 200 {object} response.Envelope
// @Router /lists/{entity} [get]
func (h *ListingHandler) Show(c *gin.Context) {
	sess, ctrl, ok := controllerFromContext(c)
	if !ok {
		return
	}
	ctrl.Load(c.Request.Context())
	sess.Notices().ShowNavigation(sess.Flash())
	respondSnapshot(c, ctrl.Snapshot())
}

// SetSearch godoc
// @Summary Update the search box without fetching
// @Tags Listings
// @Accept json
// @Produce json
// @Param entity path string true "Entity name"
// @Param payload body SearchRequest true "Search text"
// @Success 200 {object} response.Envelope
// @Router /lists/{entity}/search [put]
func (h *ListingHandler) SetSearch(c *gin.Context) {
	_, ctrl, ok := controllerFromContext(c)
	if !ok {
		return
	}
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid search payload"))
		return
	}
	ctrl.SetSearchInput(req.Search)
	respondSnapshot(c, ctrl.Snapshot())
}

// CommitSearch godoc
// @Summary Commit the search box and fetch page 1
// @Tags Listings
// @Produce json
// @Param entity path string true "Entity name"
// @Success 200 {object} response.Envelope
// @Router /lists/{entity}/search/commit [post]
func (h *ListingHandler) CommitSearch(c *gin.Context) {
	_, ctrl, ok := controllerFromContext(c)
	if !ok {
		return
	}
	ctrl.CommitSearch(c.Request.Context())
	respondSnapshot(c, ctrl.Snapshot())
}

// OpenFilters godoc
// @Summary Open the filter drawer
// @Tags Listings
// @Produce json
// @Param entity path string true "Entity name"
// @Success 200 {object} response.Envelope
// @Router /lists/{entity}/filters/open [post]
func (h *ListingHandler) OpenFilters(c *gin.Context) {
	_, ctrl, ok := controllerFromContext(c)
	if !ok {
		return
	}
	ctrl.OpenFilters()
	respondSnapshot(c, ctrl.Snapshot())
}

// SetFilter godoc
// @Summary Edit one draft filter
// @Tags Listings
// @Accept json
// @Produce json
// @Param entity path string true "Entity name"
// @Param payload body FilterRequest true "Filter key and value"
// @Success 200 {object} response.Envelope
// @Router /lists/{entity}/filters/draft [put]
func (h *ListingHandler) SetFilter(c *gin.Context) {
	_, ctrl, ok := controllerFromContext(c)
	if !ok {
		return
	}
	var req FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid filter payload"))
		return
	}
	if err := ctrl.SetFilter(req.Key, req.Value); err != nil {
		response.Error(c, err)
		return
	}
	respondSnapshot(c, ctrl.Snapshot())
}

// ApplyFilters godoc
// @Summary Apply the draft filters and fetch page 1
// @Tags Listings
// @Produce json
// @Param entity path string true "Entity name"
// @Success 200 {object} response.Envelope
// @Router /lists/{entity}/filters/apply [post]
func (h *ListingHandler) ApplyFilters(c *gin.Context) {
	_, ctrl, ok := controllerFromContext(c)
	if !ok {
		return
	}
	ctrl.ApplyFilters(c.Request.Context())
	respondSnapshot(c, ctrl.Snapshot())
}

// CloseFilters godoc
// @Summary Close the filter drawer discarding the draft
// @Tags Listings
// @Produce json
// @Param entity path string true "Entity name"
// @Success 200 {object} response.Envelope
// @Router /lists/{entity}/filters/close [post]
func (h *ListingHandler) CloseFilters(c *gin.Context) {
	_, ctrl, ok := controllerFromContext(c)
	if !ok {
		return
	}
	ctrl.CloseFilters()
	respondSnapshot(c, ctrl.Snapshot())
}

// ResetFilters godoc
// @Summary Reset filters to their defaults and fetch page 1
// @Tags Listings
// @Produce json
// @Param entity path string true "Entity name"
// @Success 200 {object} response.Envelope
// @Router /lists/{entity}/filters/reset [post]
func (h *ListingHandler) ResetFilters(c *gin.Context) {
	_, ctrl, ok := controllerFromContext(c)
	if !ok {
		return
	}
	ctrl.ResetFilters(c.Request.Context())
	respondSnapshot(c, ctrl.Snapshot())
}

// GoToPage godoc
// @Summary Navigate to a page
// @Description Out-of-range pages leave the screen unchanged.
// @Tags Listings
// @Produce json
// @Param entity path string true "Entity name"
// @Param page path int true "Page number"
// @Success 200 {object} response.Envelope
// @Router /lists/{entity}/pages/{page} [post]
func (h *ListingHandler) GoToPage(c *gin.Context) {
	_, ctrl, ok := controllerFromContext(c)
	if !ok {
		return
	}
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		response.Error(c, appErrors.WithFields(appErrors.ErrValidation, map[string]string{"page": "page must be a number"}))
		return
	}
	ctrl.GoToPage(c.Request.Context(), page)
	respondSnapshot(c, ctrl.Snapshot())
}

// Refresh godoc
// @Summary Refetch the current page
// @Tags Listings
// @Produce json
// @Param entity path string true "Entity name"
// @Success 200 {object} response.Envelope
// @Router /lists/{entity}/refresh [post]
func (h *ListingHandler) Refresh(c *gin.Context) {
	_, ctrl, ok := controllerFromContext(c)
	if !ok {
		return
	}
	ctrl.Refresh(c.Request.Context())
	respondSnapshot(c, ctrl.Snapshot())
}

// RequestDelete godoc
// @Summary Open the delete confirmation for a row
// @Tags Listings
// @Produce json
// @Param entity path string true "Entity name"
// @Param id path string true "Row id"
// @Success 200 {object} response.Envelope
// @Router /lists/{entity}/rows/{id}/delete [post]
func (h *ListingHandler) RequestDelete(c *gin.Context) {
	_, ctrl, ok := controllerFromContext(c)
	if !ok {
		return
	}
	if err := ctrl.RequestDelete(c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	respondSnapshot(c, ctrl.Snapshot())
}

// CancelDelete godoc
// @Summary Dismiss the delete confirmation
// @Tags Listings
// @Produce json
// @Param entity path string true "Entity name"
// @Success 200 {object} response.Envelope
// @Router /lists/{entity}/delete/cancel [post]
func (h *ListingHandler) CancelDelete(c *gin.Context) {
	_, ctrl, ok := controllerFromContext(c)
	if !ok {
		return
	}
	ctrl.CancelDelete()
	respondSnapshot(c, ctrl.Snapshot())
}

// ConfirmDelete godoc
// @Summary Delete the row awaiting confirmation
// @Description A failed upstream delete still returns the screen so the failure banner can be shown.
// @Tags Listings
// @Produce json
// @Param entity path string true "Entity name"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /lists/{entity}/delete/confirm [post]
func (h *ListingHandler) ConfirmDelete(c *gin.Context) {
	_, ctrl, ok := controllerFromContext(c)
	if !ok {
		return
	}
	err := ctrl.ConfirmDelete(c.Request.Context())
	switch {
	case err == nil:
		respondSnapshot(c, ctrl.Snapshot())
	case errors.Is(err, appErrors.ErrNoPendingDeletion), errors.Is(err, appErrors.ErrBusy):
		response.Error(c, err)
	default:
		response.ErrorWithData(c, err, ctrl.Snapshot())
	}
}

// Export godoc
// @Summary Export the filtered listing as CSV
// @Tags Listings
// @Produce text/csv
// @Param entity path string true "Entity name"
// @Success 200 {file} file
// @Router /lists/{entity}/export.csv [get]
func (h *ListingHandler) Export(c *gin.Context) {
	_, ctrl, ok := controllerFromContext(c)
	if !ok {
		return
	}
	def := ctrl.Definition()
	rows, err := ctrl.Rows(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	data, err := h.csv.Render(exportDataset(def, rows))
	if err != nil {
		h.logger.Error("csv export failed", zap.String("entity", def.Name), zap.Error(err))
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export"))
		return
	}
	filename := fmt.Sprintf("%s-%s.csv", def.Name, h.now().Format("20060102"))
	response.Attachment(c, filename, "text/csv; charset=utf-8", data)
}

func exportDataset(def models.EntityDefinition, rows []models.Row) export.Dataset {
	headers := def.ExportColumns
	if len(headers) == 0 {
		headers = []string{def.RowKey, def.DisplayField}
	}
	out := export.Dataset{Headers: headers, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		record := make(map[string]string, len(headers))
		for _, col := range headers {
			record[col] = strings.TrimSpace(row.Value(col))
		}
		out.Rows = append(out.Rows, record)
	}
	return out
}
