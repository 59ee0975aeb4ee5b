package types

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// Installed models, deduplicated by name.
	Models []Model `json:"models"`
}

// VerifyRequest is the body of POST /verify.
type VerifyRequest struct {
	// Model to verify. If empty, the session's selected model is used.
	// example: llama3.2:latest
	Model string `json:"model,omitempty" example:"llama3.2:latest"`
}

// VerifyResponse reports the outcome of a verification cascade.
type VerifyResponse struct {
	// example: llama3.2:latest
	Model string `json:"model" example:"llama3.2:latest"`
	// example: true
	Verified bool `json:"verified" example:"true"`
	// Check that succeeded: direct_generate, model_info, chat_echo, generate_echo or none.
	// example: model_info
	Method string `json:"method" example:"model_info"`
}

// ReadyRequest is the optional body of POST /ready.
type ReadyRequest struct {
	// Model to switch to. If empty, the usual selection runs.
	// example: gemma3
	Model string `json:"model,omitempty" example:"gemma3"`
}

// SuggestionsRequest is the body of POST /suggestions.
type SuggestionsRequest struct {
	// Free-form context the suggestions should be based on.
	// example: Planning a product launch next month
	Context string `json:"context" example:"Planning a product launch next month"`
}

// AnalysisRequest is the body of POST /analysis.
type AnalysisRequest struct {
	Tasks []Task `json:"tasks"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /readyz.
type StatusResponse struct {
	// Whether the assistant passed connectivity, discovery and verification.
	// example: true
	Ready bool `json:"ready" example:"true"`
	// Daemon base URL.
	// example: http://localhost:11434
	BaseURL string `json:"base_url" example:"http://localhost:11434"`
	// Last probe result: unknown, reachable or unreachable.
	// example: reachable
	Connection string `json:"connection" example:"reachable"`
	// Selected model, if any.
	// example: llama3.2:latest
	Model string `json:"model,omitempty" example:"llama3.2:latest"`
	// Last readiness error, if any.
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
}
