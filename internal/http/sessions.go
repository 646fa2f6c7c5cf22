package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/GriffinCanCode/shellbridge/internal/providers/terminal"
	"github.com/GriffinCanCode/shellbridge/internal/shared/types"
	"github.com/GriffinCanCode/shellbridge/internal/shared/utils"
	"github.com/GriffinCanCode/shellbridge/internal/shell/marker"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// errorStatus maps session and execution errors onto HTTP statuses
func errorStatus(err error) int {
	switch {
	case errors.Is(err, terminal.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, terminal.ErrSessionClosed), errors.Is(err, terminal.ErrNotReady),
		errors.Is(err, terminal.ErrExecutionCanceled):
		return http.StatusConflict
	case errors.Is(err, marker.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) sessionID(c *gin.Context) (string, bool) {
	sessionID := c.Param("id")
	if err := utils.ValidateID(sessionID, "session_id", true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	return sessionID, true
}

// CreateSession starts a shell and answers once it is interactive
func (h *Handlers) CreateSession(c *gin.Context) {
	var req types.CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := utils.ValidateTerminalSize(req.Cols, req.Rows, false); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidatePath(req.Shell, "shell"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidatePath(req.WorkingDir, "working_dir"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.sessions.CreateSession(c.Request.Context(), terminal.CreateOptions{
		Shell:      req.Shell,
		Args:       req.Args,
		WorkingDir: req.WorkingDir,
		Size:       terminal.Size{Cols: req.Cols, Rows: req.Rows},
		Env:        req.Env,
	})
	if err != nil {
		h.logger.Error("Failed to create session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, session.Info())
}

// ListSessions lists live sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.sessions.ListSessions()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// GetSession describes one session and its active execution
func (h *Handlers) GetSession(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	info, err := h.sessions.GetSession(sessionID)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"session": info}
	if exec, active := h.coordinator.Active(sessionID); active {
		resp["execution"] = exec
	}
	c.JSON(http.StatusOK, resp)
}

// ExecCommand runs one command through the coordinator. A superseded or
// timed-out execution still returns its partial result.
func (h *Handlers) ExecCommand(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req types.ExecRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateCommand(req.Command); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.coordinator.Execute(c.Request.Context(), sessionID, req.Command, nil)
	if err != nil {
		resp := gin.H{"error": err.Error()}
		if result != nil {
			resp["result"] = result
		}
		c.JSON(errorStatus(err), resp)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CancelExecution interrupts the active execution of a session
func (h *Handlers) CancelExecution(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"canceled":   h.coordinator.Cancel(sessionID),
	})
}

// ResizeSession changes the terminal size
func (h *Handlers) ResizeSession(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req types.ResizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateTerminalSize(req.Cols, req.Rows, true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.sessions.Resize(sessionID, terminal.Size{Cols: req.Cols, Rows: req.Rows}); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"cols":       req.Cols,
		"rows":       req.Rows,
	})
}

// Scrollback returns recent raw terminal output
func (h *Handlers) Scrollback(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	session, err := h.sessions.Get(sessionID)
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/octet-stream", session.Scrollback())
}

// KillSession terminates a session
func (h *Handlers) KillSession(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	h.coordinator.Cancel(sessionID)
	if err := h.sessions.Kill(sessionID); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"session_id": sessionID,
	})
}

// DetectedURL returns the most recently detected development URL
func (h *Handlers) DetectedURL(c *gin.Context) {
	snap := h.sessions.DetectedURL().Snapshot()
	resp := gin.H{
		"url":     nil,
		"updates": snap.Updates,
	}
	if snap.URL != "" {
		resp["url"] = snap.URL
		resp["session_id"] = snap.SessionID
		resp["updated_at"] = snap.UpdatedAt
	}
	c.JSON(http.StatusOK, resp)
}

// ClearDetectedURL empties the URL slot
func (h *Handlers) ClearDetectedURL(c *gin.Context) {
	h.sessions.DetectedURL().Clear()
	c.Status(http.StatusNoContent)
}
