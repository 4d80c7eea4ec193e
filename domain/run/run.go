package run

import "time"

// Status of a finished run.
const (
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// Run is the audit record of one pipeline execution.
type Run struct {
	ID         string    `json:"id"`
	Trigger    string    `json:"trigger"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     string    `json:"status"`
	Tables     []string  `json:"tables"`
	Unmatched  int       `json:"unmatched"`
	Unmapped   int       `json:"unmapped"`
	Error      string    `json:"error,omitempty"`
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
