package schema

// ErrorResponse represents a standard error payload for non-analysis routes.
type ErrorResponse struct {
	Detail string `json:"detail" msgpack:"detail"`
}

// HealthResponse represents the health check response payload.
type HealthResponse struct {
	Status string       `json:"status" msgpack:"status"`
	Model  *ModelHealth `json:"model,omitempty" msgpack:"model,omitempty"`
}

// ModelHealth describes the classifier in a detailed health response.
type ModelHealth struct {
	Status    string   `json:"status" msgpack:"status"`
	Name      string   `json:"name,omitempty" msgpack:"name,omitempty"`
	Backend   string   `json:"backend,omitempty" msgpack:"backend,omitempty"`
	InputDim  int      `json:"input_dim,omitempty" msgpack:"input_dim,omitempty"`
	Labels    []string `json:"labels,omitempty" msgpack:"labels,omitempty"`
	LatencyMs *float64 `json:"latency_ms,omitempty" msgpack:"latency_ms,omitempty"`
	Error     string   `json:"error,omitempty" msgpack:"error,omitempty"`
}

// LivenessResponse is returned by the /test probe.
type LivenessResponse struct {
	Status  string `json:"status" msgpack:"status"`
	Message string `json:"message" msgpack:"message"`
}
