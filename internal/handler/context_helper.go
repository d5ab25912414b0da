package handler

import "github.com/gin-gonic/gin"

// uploaderFromContext returns the acting user id. Authentication happens at
// the fronting proxy, which forwards the identity in this header.
func uploaderFromContext(c *gin.Context) string {
	return c.GetHeader("X-User-ID")
}
