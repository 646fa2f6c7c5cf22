package http

import "github.com/gin-gonic/gin"

// Register mounts every REST route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/stats", h.Stats)

	// Service management
	r.GET("/services", h.ListServices)
	r.POST("/services/discover", h.DiscoverServices)
	r.POST("/services/execute", h.ExecuteService)

	api := r.Group("/api")

	// Session endpoints
	api.POST("/sessions", h.CreateSession)
	api.GET("/sessions", h.ListSessions)
	api.GET("/sessions/:id", h.GetSession)
	api.DELETE("/sessions/:id", h.KillSession)
	api.POST("/sessions/:id/exec", h.ExecCommand)
	api.POST("/sessions/:id/cancel", h.CancelExecution)
	api.POST("/sessions/:id/resize", h.ResizeSession)
	api.GET("/sessions/:id/scrollback", h.Scrollback)

	api.GET("/url", h.DetectedURL)
	api.DELETE("/url", h.ClearDetectedURL)
	api.GET("/proxy", h.Proxy)
}
