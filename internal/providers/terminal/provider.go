package terminal

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/GriffinCanCode/shellbridge/internal/shared/types"
)

// Provider exposes sessions and coordinated execution as service tools
type Provider struct {
	manager     *Manager
	coordinator *Coordinator
}

// NewProvider creates a new terminal provider
func NewProvider(manager *Manager, coordinator *Coordinator) *Provider {
	return &Provider{
		manager:     manager,
		coordinator: coordinator,
	}
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "terminal",
		Name:        "Terminal Service",
		Description: "Interactive shell sessions with marker-synchronized command execution",
		Category:    types.CategorySystem,
		Capabilities: []string{
			"pty",
			"shell",
			"execute",
			"resize",
			"sessions",
			"url_detection",
		},
		Tools: p.getTools(),
	}
}

// Execute routes to appropriate operation
func (p *Provider) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "terminal.create_session":
		return p.createSession(ctx, params)
	case "terminal.execute":
		return p.execute(ctx, params)
	case "terminal.cancel":
		return p.cancel(params)
	case "terminal.write":
		return p.write(params)
	case "terminal.scrollback":
		return p.scrollback(params)
	case "terminal.resize":
		return p.resize(params)
	case "terminal.list_sessions":
		return p.listSessions()
	case "terminal.get_session":
		return p.getSession(params)
	case "terminal.kill":
		return p.kill(params)
	case "terminal.detected_url":
		return p.detectedURL()
	default:
		return nil, fmt.Errorf("unknown tool: %s", toolID)
	}
}

func sessionParam() types.Parameter {
	return types.Parameter{Name: "session_id", Type: "string", Description: "Terminal session ID", Required: true}
}

func (p *Provider) getTools() []types.Tool {
	return []types.Tool{
		{
			ID:          "terminal.create_session",
			Name:        "Create Terminal Session",
			Description: "Start a shell and wait until it is interactive",
			Parameters: []types.Parameter{
				{Name: "shell", Type: "string", Description: "Shell binary. Defaults to the configured shell", Required: false},
				{Name: "working_dir", Type: "string", Description: "Initial working directory", Required: false},
				{Name: "cols", Type: "number", Description: "Terminal width in columns. Defaults to 80", Required: false},
				{Name: "rows", Type: "number", Description: "Terminal height in rows. Defaults to 24", Required: false},
				{Name: "env", Type: "object", Description: "Environment variables to set", Required: false},
			},
			Returns: "session_info",
		},
		{
			ID:          "terminal.execute",
			Name:        "Execute Command",
			Description: "Run one command and return its sanitized output and exit code. curl and fetch run through the proxy",
			Parameters: []types.Parameter{
				sessionParam(),
				{Name: "command", Type: "string", Description: "Command line", Required: true},
			},
			Returns: "object",
		},
		{
			ID:          "terminal.cancel",
			Name:        "Cancel Execution",
			Description: "Cancel the command currently executing in a session",
			Parameters:  []types.Parameter{sessionParam()},
			Returns:     "boolean",
		},
		{
			ID:          "terminal.write",
			Name:        "Write to Terminal",
			Description: "Send raw input to a terminal session",
			Parameters: []types.Parameter{
				sessionParam(),
				{Name: "input", Type: "string", Description: "Input to send", Required: true},
			},
			Returns: "boolean",
		},
		{
			ID:          "terminal.scrollback",
			Name:        "Read Scrollback",
			Description: "Return the most recent rendered output of a session",
			Parameters:  []types.Parameter{sessionParam()},
			Returns:     "object",
		},
		{
			ID:          "terminal.resize",
			Name:        "Resize Terminal",
			Description: "Change terminal dimensions",
			Parameters: []types.Parameter{
				sessionParam(),
				{Name: "cols", Type: "number", Description: "Columns", Required: true},
				{Name: "rows", Type: "number", Description: "Rows", Required: true},
			},
			Returns: "boolean",
		},
		{
			ID:          "terminal.list_sessions",
			Name:        "List Sessions",
			Description: "List all live terminal sessions",
			Parameters:  []types.Parameter{},
			Returns:     "array",
		},
		{
			ID:          "terminal.get_session",
			Name:        "Get Session",
			Description: "Get information about a terminal session",
			Parameters:  []types.Parameter{sessionParam()},
			Returns:     "session_info",
		},
		{
			ID:          "terminal.kill",
			Name:        "Kill Session",
			Description: "Terminate a terminal session",
			Parameters:  []types.Parameter{sessionParam()},
			Returns:     "boolean",
		},
		{
			ID:          "terminal.detected_url",
			Name:        "Detected URL",
			Description: "Return the most recent URL detected in any session's output",
			Parameters:  []types.Parameter{},
			Returns:     "object",
		},
	}
}

func stringParam(params map[string]interface{}, key string) (string, error) {
	v, ok := params[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func sizeParams(params map[string]interface{}) (Size, bool) {
	cols, okCols := params["cols"].(float64)
	rows, okRows := params["rows"].(float64)
	if !okCols || !okRows || cols < 1 || rows < 1 {
		return Size{}, false
	}
	return Size{Cols: uint16(cols), Rows: uint16(rows)}, true
}

func (p *Provider) createSession(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	opts := CreateOptions{}
	opts.Shell, _ = params["shell"].(string)
	opts.WorkingDir, _ = params["working_dir"].(string)
	if size, ok := sizeParams(params); ok {
		opts.Size = size
	}
	if envMap, ok := params["env"].(map[string]interface{}); ok {
		opts.Env = make(map[string]string, len(envMap))
		for k, v := range envMap {
			if s, ok := v.(string); ok {
				opts.Env[k] = s
			}
		}
	}

	session, err := p.manager.CreateSession(ctx, opts)
	if err != nil {
		return types.Failure(err.Error())
	}

	info := session.Info()
	return types.Success(map[string]interface{}{
		"session_id": info.ID,
		"session":    info,
	})
}

func (p *Provider) execute(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	sessionID, err := stringParam(params, "session_id")
	if err != nil {
		return types.Failure(err.Error())
	}
	command, err := stringParam(params, "command")
	if err != nil {
		return types.Failure(err.Error())
	}

	res, err := p.coordinator.Execute(ctx, sessionID, command, nil)
	if err != nil && res == nil {
		return types.Failure(err.Error())
	}

	data := map[string]interface{}{
		"execution_id": res.ExecutionID,
		"output":       res.Output,
		"exit_code":    res.ExitCode,
		"proxy":        res.Proxy,
		"degraded":     res.Degraded,
		"duration_ms":  res.Duration.Milliseconds(),
	}
	if err != nil {
		msg := err.Error()
		return &types.Result{Success: false, Data: data, Error: &msg}, nil
	}
	return types.Success(data)
}

func (p *Provider) cancel(params map[string]interface{}) (*types.Result, error) {
	sessionID, err := stringParam(params, "session_id")
	if err != nil {
		return types.Failure(err.Error())
	}
	return types.Success(map[string]interface{}{"canceled": p.coordinator.Cancel(sessionID)})
}

func (p *Provider) write(params map[string]interface{}) (*types.Result, error) {
	sessionID, err := stringParam(params, "session_id")
	if err != nil {
		return types.Failure(err.Error())
	}
	input, ok := params["input"].(string)
	if !ok {
		return types.Failure("input is required")
	}

	if err := p.manager.Write(sessionID, []byte(input)); err != nil {
		return types.Failure(err.Error())
	}
	return types.Success(map[string]interface{}{"written": len(input)})
}

func (p *Provider) scrollback(params map[string]interface{}) (*types.Result, error) {
	sessionID, err := stringParam(params, "session_id")
	if err != nil {
		return types.Failure(err.Error())
	}
	session, err := p.manager.Get(sessionID)
	if err != nil {
		return types.Failure(err.Error())
	}

	output := session.Scrollback()
	return types.Success(map[string]interface{}{
		"output":        string(output),
		"output_base64": base64.StdEncoding.EncodeToString(output),
		"length":        len(output),
	})
}

func (p *Provider) resize(params map[string]interface{}) (*types.Result, error) {
	sessionID, err := stringParam(params, "session_id")
	if err != nil {
		return types.Failure(err.Error())
	}
	size, ok := sizeParams(params)
	if !ok {
		return types.Failure("cols and rows are required")
	}

	if err := p.manager.Resize(sessionID, size); err != nil {
		return types.Failure(err.Error())
	}
	return types.Success(map[string]interface{}{"cols": size.Cols, "rows": size.Rows})
}

func (p *Provider) listSessions() (*types.Result, error) {
	sessions := p.manager.ListSessions()
	return types.Success(map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (p *Provider) getSession(params map[string]interface{}) (*types.Result, error) {
	sessionID, err := stringParam(params, "session_id")
	if err != nil {
		return types.Failure(err.Error())
	}
	info, err := p.manager.GetSession(sessionID)
	if err != nil {
		return types.Failure(err.Error())
	}

	data := map[string]interface{}{"session": info}
	if active, ok := p.coordinator.Active(sessionID); ok {
		data["execution"] = active
	}
	return types.Success(data)
}

func (p *Provider) kill(params map[string]interface{}) (*types.Result, error) {
	sessionID, err := stringParam(params, "session_id")
	if err != nil {
		return types.Failure(err.Error())
	}
	if err := p.manager.Kill(sessionID); err != nil {
		return types.Failure(err.Error())
	}
	return types.Success(map[string]interface{}{"killed": true})
}

func (p *Provider) detectedURL() (*types.Result, error) {
	snap := p.manager.DetectedURL().Snapshot()
	return types.Success(map[string]interface{}{
		"url":        snap.URL,
		"session_id": snap.SessionID,
		"updated_at": snap.UpdatedAt,
		"updates":    snap.Updates,
	})
}
