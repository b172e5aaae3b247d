package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SleshGG/sipkoviste.cz-sub000/internal/api/middleware"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/realtime"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/services"
	"github.com/SleshGG/sipkoviste.cz-sub000/internal/utils"
)

// RestInboxHandler serves the authenticated read endpoints: conversations,
// messages, favorites and the realtime event stream.
type RestInboxHandler struct {
	negotiationService services.INegotiationService
	favoriteService    services.IFavoriteService
	publisher          *realtime.Publisher
}

// NewRestInboxHandler creates a new RestInboxHandler.
func NewRestInboxHandler(negotiationService services.INegotiationService, favoriteService services.IFavoriteService, publisher *realtime.Publisher) *RestInboxHandler {
	return &RestInboxHandler{
		negotiationService: negotiationService,
		favoriteService:    favoriteService,
		publisher:          publisher,
	}
}

// callerID reads the user ID stored by the auth middleware.
func callerID(c *gin.Context) (utils.SixID, bool) {
	raw := c.GetString(middleware.ContextKeyUserID)
	userID, err := utils.ParseSixID(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return utils.SixID{}, false
	}
	return userID, true
}

// ListConversations handles GET /v1/conversations
func (h *RestInboxHandler) ListConversations(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	conversations, err := h.negotiationService.ListConversations(c.Request.Context(), userID)
	if err != nil {
		writeRestError(c, err, "Failed to list conversations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": conversations})
}

// ListMessages handles GET /v1/conversations/:userID/:listingID
func (h *RestInboxHandler) ListMessages(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	counterpartID, err := utils.ParseSixID(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID format"})
		return
	}
	listingID, err := utils.ParseSixID(c.Param("listingID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID format"})
		return
	}

	messages, err := h.negotiationService.ListMessages(c.Request.Context(), userID, counterpartID, listingID)
	if err != nil {
		writeRestError(c, err, "Failed to list messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": messages})
}

// ListFavorites handles GET /v1/favorites
func (h *RestInboxHandler) ListFavorites(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	favorites, err := h.favoriteService.ListFavorites(c.Request.Context(), userID)
	if err != nil {
		writeRestError(c, err, "Failed to list favorites")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": favorites})
}

// StreamEvents handles GET /v1/events as a Server-Sent Events stream. It
// subscribes to the caller's Redis channel and forwards every published
// event until the client disconnects.
func (h *RestInboxHandler) StreamEvents(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	if h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Event stream is not available"})
		return
	}

	sub := h.publisher.Subscribe(c.Request.Context(), userID)
	defer sub.Close()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	ch := sub.Channel()
	c.Stream(func(w io.Writer) bool {
		select {
		case msg, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent("message", msg.Payload)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
