package http

import (
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/AgentOS/termsync/internal/api/middleware"
)

// RouteConfig controls optional route middleware
type RouteConfig struct {
	RateLimitEnabled bool
	RateLimit        middleware.RateLimitConfig
}

// Routes registers the HTTP API on router. stream serves the terminal
// WebSocket and may be nil.
func Routes(router gin.IRouter, h *Handlers, stream gin.HandlerFunc, cfg RouteConfig) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	router.GET("/services", h.ListServices)
	router.POST("/services/execute", h.ExecuteService)

	// text and commands share one budget per session id
	var limit gin.HandlerFunc
	if cfg.RateLimitEnabled {
		limit = middleware.RateLimit(cfg.RateLimit, middleware.ByParam("id"))
	}
	submit := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		if limit == nil {
			return []gin.HandlerFunc{handler}
		}
		return []gin.HandlerFunc{limit, handler}
	}

	terminals := router.Group("/terminals")
	{
		terminals.POST("", h.CreateTerminal)
		terminals.GET("", h.ListTerminals)
		terminals.GET("/:id", h.GetTerminal)
		terminals.DELETE("/:id", h.Kill)
		terminals.POST("/:id/text", submit(h.SendText)...)
		terminals.POST("/:id/commands", submit(h.SendCommand)...)
		terminals.POST("/:id/show", h.Show)
		terminals.POST("/:id/resize", h.Resize)
		terminals.GET("/:id/output", h.Output)
		if stream != nil {
			terminals.GET("/:id/stream", stream)
		}
	}
}
