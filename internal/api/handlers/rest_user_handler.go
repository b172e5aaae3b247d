package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/services"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

// RestUserHandler handles REST requests related to users.
type RestUserHandler struct {
	userService   services.IUserService
	reviewService services.IReviewService
}

// NewRestUserHandler creates a new RestUserHandler.
func NewRestUserHandler(userService services.IUserService, reviewService services.IReviewService) *RestUserHandler {
	return &RestUserHandler{
		userService:   userService,
		reviewService: reviewService,
	}
}

// GetUserByID handles GET /v1/user/:id
func (h *RestUserHandler) GetUserByID(c *gin.Context) {
	userID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}

	profile, err := h.userService.PublicProfile(c.Request.Context(), userID)
	if err != nil {
		writeRestError(c, err, "Failed to retrieve user")
		return
	}

	c.JSON(http.StatusOK, profile)
}

// GetUserReviews handles GET /v1/user/:id/reviews
func (h *RestUserHandler) GetUserReviews(c *gin.Context) {
	userID, err := utils.ParseSixID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}

	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, parseErr := strconv.Atoi(limitStr); parseErr == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	reviews, err := h.reviewService.ListForUser(c.Request.Context(), userID, limit)
	if err != nil {
		writeRestError(c, err, "Failed to retrieve reviews")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": reviews})
}
