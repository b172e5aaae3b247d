package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// writeRestError maps a service error onto a REST response. Unclassified
// errors are recorded on the Gin context and hidden behind the fallback
// message.
func writeRestError(c *gin.Context, err error, fallback string) {
	apiErr := mapServiceError(err)
	if apiErr.Status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
		return
	}
	c.JSON(apiErr.Status, gin.H{"error": apiErr.Message})
}
