package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the simulation endpoints.
//
//	GET  /          health message
//	POST /simulate  run a simulation
//	GET  /runs      list archived runs (archive only)
//	GET  /runs/:id  fetch an archived run (archive only)
func RegisterRoutes(r gin.IRouter, h *Handlers) {
	r.GET("/", h.HandleHealth)
	r.POST("/simulate", h.HandleSimulate)

	if h.archive != nil {
		r.GET("/runs", h.HandleListRuns)
		r.GET("/runs/:id", h.HandleGetRun)
	}
}

// NewRouter builds a gin engine with recovery, CORS for the given origins and
// every route registered.
func NewRouter(h *Handlers, origins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(origins))
	RegisterRoutes(router, h)
	return router
}

// DefaultOrigins are the local frontend dev servers allowed by CORS.
var DefaultOrigins = []string{"http://localhost:3000"}

// corsMiddleware adds CORS headers for allowed frontend origins and answers
// preflight requests.
func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
			c.Header("Access-Control-Expose-Headers", "X-Request-ID, X-Seed, X-Run-ID")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
