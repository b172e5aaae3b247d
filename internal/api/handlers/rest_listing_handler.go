package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/models"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/services"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

// RestListingHandler handles REST requests for listings.
type RestListingHandler struct {
	listingService services.IListingService
}

// NewRestListingHandler creates a new RestListingHandler.
func NewRestListingHandler(listingService services.IListingService) *RestListingHandler {
	return &RestListingHandler{listingService: listingService}
}

// SearchListings handles GET /v1/listing/search
func (h *RestListingHandler) SearchListings(c *gin.Context) {
	params := services.SearchParams{
		Query:     c.Query("q"),
		Category:  models.Category(c.Query("category")),
		Brand:     c.Query("brand"),
		Condition: models.Condition(c.Query("condition")),
		SortBy:    c.DefaultQuery("sort", "newest"),
		Cursor:    c.Query("cursor"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err == nil && limit > 0 && limit <= 100 {
			params.Limit = limit
		}
	}
	if minStr := c.Query("price_min"); minStr != "" {
		if min, err := strconv.ParseFloat(minStr, 64); err == nil {
			params.PriceMin = &min
		}
	}
	if maxStr := c.Query("price_max"); maxStr != "" {
		if max, err := strconv.ParseFloat(maxStr, 64); err == nil {
			params.PriceMax = &max
		}
	}
	params.NegotiableOnly = c.Query("negotiable") == "true"

	listings, nextCursor, err := h.listingService.SearchListings(c.Request.Context(), params)
	if err != nil {
		writeRestError(c, err, "Failed to search listings")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":        listings,
		"next_cursor": nextCursor,
	})
}

// GetListingByID handles GET /v1/listing/:id
func (h *RestListingHandler) GetListingByID(c *gin.Context) {
	listingID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		writeRestError(c, err, "Failed to retrieve listing")
		return
	}

	c.JSON(http.StatusOK, listing)
}

// GetUserListings handles GET /v1/user/:id/listing
func (h *RestListingHandler) GetUserListings(c *gin.Context) {
	sellerID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}

	listings, err := h.listingService.FindListingsBySellerID(c.Request.Context(), sellerID)
	if err != nil {
		writeRestError(c, err, "Failed to fetch listings")
		return
	}
	c.JSON(http.StatusOK, listings)
}
