package types

// SuccessEnvelope wraps every 2xx body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error shape. Details only carries data for
// codes that allow it (validation, dependency).
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// SessionInfo describes which cart the caller is bound to.
type SessionInfo struct {
	SessionID     string `json:"sessionId"`
	UserID        string `json:"userId,omitempty"`
	Authenticated bool   `json:"authenticated"`
	Mode          string `json:"mode"`
}

// Readiness is the /health/ready body. Checks maps dependency name to
// "ok" or "unavailable".
type Readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
