package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable/internal/middleware"
)

// requester names the caller for logs, or "anonymous" on open routes.
func requester(c *gin.Context) string {
	claims := middleware.ClaimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		return "anonymous"
	}
	return claims.UserID
}

func responseMeta(c *gin.Context, extra map[string]interface{}) map[string]interface{} {
	return middleware.ResponseMeta(c, extra)
}
