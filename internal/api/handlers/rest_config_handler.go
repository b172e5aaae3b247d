package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/config"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/models"
)

// RestConfigHandler handles requests for the /config REST endpoint.
type RestConfigHandler struct {
	cfg *config.Config
}

// NewRestConfigHandler creates a new RestConfigHandler.
func NewRestConfigHandler(cfg *config.Config) *RestConfigHandler {
	return &RestConfigHandler{cfg: cfg}
}

// GetPublicConfig returns the enum values and defaults a client needs to
// render listing forms and search filters. Handles GET /v1/config
func (h *RestConfigHandler) GetPublicConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"categories":       models.Categories,
		"conditions":       models.Conditions,
		"default_currency": h.cfg.DefaultCurrency,
		"sort_options":     []string{"newest", "price_asc", "price_desc", "popularity"},
	})
}
