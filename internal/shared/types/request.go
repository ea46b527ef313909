package types

// ExecuteRequest represents a service execution request
type ExecuteRequest struct {
	ToolID string                 `json:"tool_id" binding:"required"`
	Params map[string]interface{} `json:"params"`
}

// CreateTerminalRequest opens a terminal session
type CreateTerminalRequest struct {
	Shell      string            `json:"shell"`
	WorkingDir string            `json:"working_dir"`
	Cols       int               `json:"cols" binding:"omitempty,min=1,max=1000"`
	Rows       int               `json:"rows" binding:"omitempty,min=1,max=1000"`
	Env        map[string]string `json:"env"`
}

// SendTextRequest writes text into a terminal
type SendTextRequest struct {
	Text       string `json:"text" binding:"required"`
	AddNewLine *bool  `json:"add_new_line"`
}

// SendCommandRequest sends a command, optionally waiting for it to finish
type SendCommandRequest struct {
	Command   string   `json:"command" binding:"required"`
	Args      []string `json:"args"`
	Wait      bool     `json:"wait"`
	TimeoutMS int64    `json:"timeout_ms" binding:"min=0"`
}

// ShowRequest reveals a terminal
type ShowRequest struct {
	PreserveFocus bool `json:"preserve_focus"`
}

// ResizeRequest changes terminal dimensions
type ResizeRequest struct {
	Cols int `json:"cols" binding:"required,min=1,max=1000"`
	Rows int `json:"rows" binding:"required,min=1,max=1000"`
}

// CommandResponse reports how a sent command ended
type CommandResponse struct {
	SessionID string `json:"session_id"`
	Command   string `json:"command"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// StreamMessage is a WebSocket frame on a terminal stream
type StreamMessage struct {
	Type     string `json:"type"` // "output", "input", "resize", "ping", "pong", "exit", "error"
	Data     string `json:"data,omitempty"`
	Cols     int    `json:"cols,omitempty"`
	Rows     int    `json:"rows,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
}
