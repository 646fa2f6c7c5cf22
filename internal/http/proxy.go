package http

import (
	"net/http"
	"strconv"

	"github.com/GriffinCanCode/shellbridge/internal/providers/proxy"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
)

// Proxy serves GET /api/proxy?command=<json {command,args}>. The body is
// always a proxy.Response so clients decode one shape.
func (h *Handlers) Proxy(c *gin.Context) {
	raw := c.Query("command")
	if raw == "" {
		c.JSON(http.StatusBadRequest, &proxy.Response{Error: "command is required"})
		return
	}

	var cmd proxy.Command
	if err := sonic.UnmarshalString(raw, &cmd); err != nil {
		c.JSON(http.StatusBadRequest, &proxy.Response{Error: "invalid command: " + err.Error()})
		return
	}
	if cmd.Command == "" {
		c.JSON(http.StatusBadRequest, &proxy.Response{Error: "command is required"})
		return
	}

	resp, status := h.runner.Run(c.Request.Context(), cmd)
	label := strconv.Itoa(status)
	if status == http.StatusOK && resp.Status != 0 {
		label = strconv.Itoa(resp.Status)
	}
	h.metrics.RecordProxyCall(cmd.Command, label)

	c.JSON(status, resp)
}
