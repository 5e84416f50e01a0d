package models

import "time"

// JobStatus represents the state of a scrape job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the job can no longer change state
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// JobProgress is the live progress snapshot of a running crawl
type JobProgress struct {
	Pages      int    `json:"pages"`       // documents persisted so far
	TotalPages int    `json:"total_pages"` // effective total, clamped to max_pages
	Discovered int    `json:"discovered"`  // all unique URLs ever enqueued
	CurrentURL string `json:"current_url,omitempty"`
}

// Job is the runtime record of a scrape job. The Version row in storage is the
// durable source of truth; a Job adds the cancel handle (owned by the job
// manager) and the unthrottled progress snapshot.
type Job struct {
	ID         string        `json:"id"`
	Library    string        `json:"library"`
	Version    string        `json:"version"` // "" = unversioned
	Options    ScrapeOptions `json:"options"`
	Status     JobStatus     `json:"status"`
	Progress   JobProgress   `json:"progress"`
	CreatedAt  time.Time     `json:"created_at"`
	StartedAt  *time.Time    `json:"started_at,omitempty"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Key returns the serialization key: two jobs with equal keys never run
// concurrently.
func (j *Job) Key() string {
	return j.Library + "@" + j.Version
}
