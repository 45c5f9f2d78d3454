// Package ipc carries daemon commands over a unix socket as one JSON line each way.
package ipc

// Request is one client command. SessionID and FilePath are used by start, batch and mode.
type Request struct {
	Command   string `json:"command"`
	SessionID string `json:"session_id,omitempty"`
	FilePath  string `json:"file_path,omitempty"`
}

// Response reports the daemon state after a command.
type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	SessionID string  `json:"session_id,omitempty"`
	Seconds   int     `json:"seconds,omitempty"`
	Muted     bool    `json:"muted,omitempty"`
	Device    string  `json:"device,omitempty"`
	Phase     string  `json:"phase,omitempty"`
	LastError string  `json:"last_error,omitempty"`
	Progress  float64 `json:"progress,omitempty"`
}
