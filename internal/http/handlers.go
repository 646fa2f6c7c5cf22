package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/GriffinCanCode/shellbridge/internal/api/middleware"
	"github.com/GriffinCanCode/shellbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/shellbridge/internal/providers/proxy"
	"github.com/GriffinCanCode/shellbridge/internal/providers/terminal"
	"github.com/GriffinCanCode/shellbridge/internal/service"
	"github.com/GriffinCanCode/shellbridge/internal/shared/types"
	"github.com/GriffinCanCode/shellbridge/internal/shared/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const version = "0.3.0"

// ProxyRunner serves /api/proxy
type ProxyRunner interface {
	Run(ctx context.Context, cmd proxy.Command) (*proxy.Response, int)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	sessions    *terminal.Manager
	coordinator *terminal.Coordinator
	registry    *service.Registry
	runner      ProxyRunner
	metrics     *monitoring.Metrics
	logger      *zap.Logger
	startedAt   time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(
	sessions *terminal.Manager,
	coordinator *terminal.Coordinator,
	registry *service.Registry,
	runner ProxyRunner,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		sessions:    sessions,
		coordinator: coordinator,
		registry:    registry,
		runner:      runner,
		metrics:     metrics,
		logger:      logger,
		startedAt:   time.Now(),
	}
}

// Root handles the liveness probe
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "shellbridge",
		"version": version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"sessions":         len(h.sessions.ListSessions()),
		"service_registry": h.registry.Stats(),
		"uptime_seconds":   time.Since(h.startedAt).Seconds(),
	})
}

// Stats returns the JSON metrics snapshot
func (h *Handlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

// ListServices lists all available services
func (h *Handlers) ListServices(c *gin.Context) {
	categoryStr := c.Query("category")
	if err := utils.ValidateCategory(categoryStr, false); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var category *types.Category
	if categoryStr != "" {
		cat := types.Category(categoryStr)
		category = &cat
	}

	c.JSON(http.StatusOK, gin.H{
		"services": h.registry.List(category),
		"stats":    h.registry.Stats(),
	})
}

type discoverRequest struct {
	Message string `json:"message" binding:"required"`
	Limit   int    `json:"limit"`
}

// DiscoverServices finds services relevant to an intent
func (h *Handlers) DiscoverServices(c *gin.Context) {
	var req discoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateMessage(req.Message); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Limit <= 0 {
		req.Limit = 5
	}

	c.JSON(http.StatusOK, gin.H{
		"query":    req.Message,
		"services": h.registry.Discover(req.Message, req.Limit),
	})
}

// ExecuteService executes a service tool
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req types.ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := utils.ValidateToolID(req.ToolID, "tool_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateJSONSize(req.Params, utils.MaxJSONSize); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Params == nil {
		req.Params = map[string]interface{}{}
	}

	appCtx := &types.Context{}
	if req.SessionID != nil {
		if err := utils.ValidateID(*req.SessionID, "session_id", false); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		appCtx.SessionID = req.SessionID
		if _, ok := req.Params["session_id"]; !ok {
			req.Params["session_id"] = *req.SessionID
		}
	}
	if rid := middleware.GetRequestID(c); rid != "" {
		appCtx.RequestID = &rid
	}

	result, err := h.registry.Execute(c.Request.Context(), req.ToolID, req.Params, appCtx)
	if err != nil {
		h.logger.Warn("Tool execution failed", zap.String("tool_id", req.ToolID), zap.Error(err))
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrServiceNotFound):
			status = http.StatusNotFound
		case errors.Is(err, service.ErrInvalidToolID):
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}
