package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-console/internal/listing"
	"github.com/noah-isme/sma-console/internal/models"
	appErrors "github.com/noah-isme/sma-console/pkg/errors"
	"github.com/noah-isme/sma-console/pkg/response"
)

// ResolvedID is a decoded edit-route token.
type ResolvedID struct {
	Entity string `json:"entity"`
	Token  string `json:"token"`
	ID     string `json:"id"`
}

// ResolveHandler decodes the ids carried by edit routes.
type ResolveHandler struct {
	registry *models.EntityRegistry
}

// NewResolveHandler builds a resolve handler.
func NewResolveHandler(registry *models.EntityRegistry) *ResolveHandler {
	return &ResolveHandler{registry: registry}
}

// Resolve godoc
// @Summary Decode an edit-route id
// @Description Undecodable tokens are reported as not found without asking the backend.
// @Tags Listings
// @Produce json
// @Param entity path string true "Entity name"
// @Param token path string true "Route token"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /resolve/{entity}/{token} [get]
func (h *ResolveHandler) Resolve(c *gin.Context) {
	def, ok := h.registry.Lookup(c.Param("entity"))
	if !ok {
		response.Error(c, appErrors.ErrUnknownEntity)
		return
	}
	token := c.Param("token")
	id, ok := listing.ResolveToken(def, token)
	if !ok {
		response.Error(c, appErrors.ErrNotFoundOnDecode)
		return
	}
	response.JSON(c, http.StatusOK, ResolvedID{Entity: def.Name, Token: token, ID: id}, nil)
}
