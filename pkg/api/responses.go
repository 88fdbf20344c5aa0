package api

import (
	"github.com/privacyops/maskd/pkg/config"
	"github.com/privacyops/maskd/pkg/database"
	"github.com/privacyops/maskd/pkg/queue"
)

// ErrorResponse is the uniform error body for all endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MaskEmailResponse is returned by POST /api/v1/mask/email. Masked is the
// recognizable display form, Placeholder the non-routable replacement
// address used during record anonymization.
type MaskEmailResponse struct {
	Masked      string `json:"masked"`
	Placeholder string `json:"placeholder"`
}

// MaskFieldsResponse is returned by the field-map masking endpoints.
type MaskFieldsResponse struct {
	Fields map[string]string `json:"fields"`
}

// ScrubTextResponse is returned by POST /api/v1/mask/text.
type ScrubTextResponse struct {
	Text string `json:"text"`
}

// WhoamiResponse is returned by GET /api/v1/whoami/ip. AnonymizedIP is
// null when no request source carried a syntactically valid address.
type WhoamiResponse struct {
	AnonymizedIP *string `json:"anonymized_ip"`
}

// CancelResponse is returned by POST /api/v1/scrub-jobs/:id/cancel.
type CancelResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version"`
	Database      *database.HealthStatus `json:"database"`
	WorkerPool    *queue.PoolHealth      `json:"worker_pool,omitempty"`
	Configuration config.Stats           `json:"configuration"`
}
