package types

// Artifact describes one serialized ensemble member in the object store.
// The canonical set comes from configuration and is immutable at runtime.
type Artifact struct {
	// Logical model name.
	// example: xgb
	Name string `json:"name" example:"xgb"`
	// Object key relative to the store prefix.
	// example: models/xgb.json
	Key string `json:"key" example:"models/xgb.json"`
	// Absolute local path the artifact is cached at.
	// example: /var/lib/ensembled/models/xgb.json
	Path string `json:"path" example:"/var/lib/ensembled/models/xgb.json"`
	// Optional pinned SHA-256 of the artifact contents. When set it wins
	// over store-reported checksums.
	SHA256 string `json:"sha256,omitempty"`
}

// ArtifactState is the cache lifecycle state of one artifact.
type ArtifactState string

const (
	ArtifactMissing  ArtifactState = "missing"
	ArtifactFetching ArtifactState = "fetching"
	ArtifactVerified ArtifactState = "verified"
	ArtifactFailed   ArtifactState = "failed"
)

// ArtifactStatus is a read-only projection of one artifact's cache state.
type ArtifactStatus struct {
	// Logical model name.
	// example: xgb
	Name string `json:"name" example:"xgb"`
	// Cache state (missing, fetching, verified, failed).
	// example: verified
	State ArtifactState `json:"state" example:"verified"`
	// Last error observed for this artifact, if any.
	Error string `json:"error,omitempty"`
}

// SwapRequest is the remote command sent by the orchestrator to the swap
// agent on the target instance.
type SwapRequest struct {
	// Image tag to roll out.
	// example: 20240601T120000Z-3f9c2d1
	Tag string `json:"tag" example:"20240601T120000Z-3f9c2d1"`
}

// SwapResult is the structured outcome of a swap attempt.
type SwapResult struct {
	// Outcome status: ok, failed or busy.
	// example: ok
	Status string `json:"status" example:"ok"`
	// Human-readable failure detail when status != ok.
	Detail string `json:"detail,omitempty"`
	// Tag that was serving before this swap.
	// example: 20240530T090000Z-a1b2c3d
	PreviousTag string `json:"previous_tag,omitempty"`
}

const (
	SwapStatusOK     = "ok"
	SwapStatusFailed = "failed"
	SwapStatusBusy   = "busy"
)
