package types

// ExecuteRequest represents a service tool execution request
type ExecuteRequest struct {
	ToolID    string                 `json:"tool_id" binding:"required"`
	Params    map[string]interface{} `json:"params"`
	SessionID *string                `json:"session_id,omitempty"`
}

// CreateSessionRequest opens a new shell session
type CreateSessionRequest struct {
	Shell      string            `json:"shell,omitempty"`
	Args       []string          `json:"args,omitempty"`
	WorkingDir string            `json:"working_dir,omitempty"`
	Cols       uint16            `json:"cols,omitempty"`
	Rows       uint16            `json:"rows,omitempty"`
	Env        map[string]string `json:"env,omitempty"`
}

// ExecRequest runs one command in a session
type ExecRequest struct {
	Command string `json:"command" binding:"required"`
}

// ResizeRequest changes the terminal size
type ResizeRequest struct {
	Cols uint16 `json:"cols" binding:"required,min=1"`
	Rows uint16 `json:"rows" binding:"required,min=1"`
}

// ControlMessage is a JSON control frame on the terminal websocket
type ControlMessage struct {
	Type string `json:"type"`
	Cols uint16 `json:"cols,omitempty"`
	Rows uint16 `json:"rows,omitempty"`
}
