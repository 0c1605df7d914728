// Package api is the JSON HTTP front end of the recovery planner.
package api

import (
	"net/http"

	"ai-health-navigator/internal/app"
	"ai-health-navigator/internal/notify"

	"github.com/gin-gonic/gin"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(application *app.App, inbox *notify.Inbox, jwtSecret []byte) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(RequestID(), Logging(), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	v1 := r.Group("/v1", Auth(jwtSecret))
	NewHandler(application.Registry(), application.Triage(), inbox).RegisterRoutes(v1)
	return r
}
