package syncrun

import "time"

// Result is the aggregate outcome of one sync run for one tenant. Partial
// failures never fail the run; callers inspect Errors > 0 to detect a
// degraded pass.
type Result struct {
	CompanyID        string    `json:"company_id"`
	DivisionID       string    `json:"division_id"`
	RecordsProcessed int       `json:"records_processed"`
	Errors           int       `json:"errors"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Result) Degraded() bool {
	return r.Errors > 0
}
