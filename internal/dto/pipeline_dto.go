package dto

// ProcessRequest is the body of POST /api/pipeline/v1/process. The
// acting user comes from the JWT, never the body.
type ProcessRequest struct {
	Body    string                 `json:"body" validate:"required,min=1,max=8000"`
	Context map[string]interface{} `json:"context"`
}

// EvaluateRequest is the body of POST /api/safety/v1/evaluate, the
// standalone pre-flight check.
type EvaluateRequest struct {
	Query   string                 `json:"query" validate:"required,min=1,max=8000"`
	Context map[string]interface{} `json:"context"`
}

// HealthResponse reports liveness plus a few operational gauges.
type HealthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
	CouncilMembers int    `json:"council_members"`
	VaultBackend   string `json:"vault_backend"`
	Timestamp      string `json:"timestamp"`
}
