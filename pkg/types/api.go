package types

// PredictRequest represents a prediction request payload.
type PredictRequest struct {
	// Feature vector in the order the models were trained with.
	// example: [12.5, 3.0, 88.1, 0.42]
	Features []float64 `json:"features" example:"[12.5,3.0,88.1,0.42]"`
}

// PredictResponse is returned by POST /predict.
type PredictResponse struct {
	// Combined numeric prediction over the loaded ensemble.
	// example: 142.7
	Prediction float64 `json:"prediction" example:"142.7"`
	// Number of models that contributed to the prediction.
	// example: 3
	ModelsUsed int `json:"models_used" example:"3"`
	// Identifiers of the contributing models.
	// example: ["rf","xgb","lgbm"]
	ModelIDs []string `json:"model_ids" example:"[\"rf\",\"xgb\",\"lgbm\"]"`
}

// ReadyResponse is returned by GET /readyz.
type ReadyResponse struct {
	// True when the dispatcher can serve predictions under its policy.
	// example: true
	Ready bool `json:"ready" example:"true"`
	// Identifiers of currently loaded models.
	// example: ["rf","xgb","lgbm"]
	Loaded []string `json:"loaded" example:"[\"rf\",\"xgb\",\"lgbm\"]"`
}

// ModelsResponse wraps the list of ensemble members returned by GET /models.
type ModelsResponse struct {
	// Configured members with their cache states.
	Models []ArtifactStatus `json:"models"`
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

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Per-artifact cache states.
	Artifacts []ArtifactStatus `json:"artifacts"`
	// Identifiers of currently loaded models.
	Loaded []string `json:"loaded"`
	// Serving policy: serve-degraded or fail-closed.
	// example: fail-closed
	Policy string `json:"policy" example:"fail-closed"`
	// True when the dispatcher can serve predictions.
	// example: true
	Ready bool `json:"ready" example:"true"`
	// Last error observed by the dispatcher, if any.
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
