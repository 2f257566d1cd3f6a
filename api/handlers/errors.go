package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	custom_errors "github.com/flowmail/flowmail/internal/errors"
)

// respondError maps the service error taxonomy onto HTTP statuses. Upstream
// provider failures surface as 502 with the upstream status in the body
// (0 when it could not be determined).
func respondError(c *gin.Context, err error) {
	switch {
	case custom_errors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case custom_errors.IsUnauthorized(err):
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized"})
	case custom_errors.IsBadRequest(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case custom_errors.IsUnavailable(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		if upstream, ok := custom_errors.AsUpstream(err); ok {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":          "mail provider error",
				"upstreamStatus": upstream.StatusCode,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
