package crawler

import (
	"errors"
	"time"
)

// ErrJobNotFound is returned when a crawl job ID is unknown.
var ErrJobNotFound = errors.New("crawl job not found")

// JobStatus is the lifecycle state of a background crawl.
type JobStatus string

// Crawl job states.
const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// Terminal reports whether the job can no longer change state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCanceled:
		return true
	default:
		return false
	}
}

// JobParams are the crawl arguments a job was submitted with.
type JobParams struct {
	URLs        []string `json:"urls"`
	MaxPages    int      `json:"max_pages"`
	Concurrency int      `json:"concurrency"`
}

// JobCounters mirror the Result of the crawl run.
type JobCounters struct {
	PagesSucceeded int `json:"pages_succeeded"`
	PagesFailed    int `json:"pages_failed"`
	Discovered     int `json:"discovered"`
}

// CountersFrom converts a crawl Result into job counters.
func CountersFrom(r Result) JobCounters {
	return JobCounters{
		PagesSucceeded: r.Succeeded,
		PagesFailed:    r.Failed,
		Discovered:     r.Discovered,
	}
}

// Job tracks one background crawl.
type Job struct {
	ID        string      `json:"job_id"`
	Status    JobStatus   `json:"status"`
	Params    JobParams   `json:"params"`
	Submitted time.Time   `json:"submitted_at"`
	Started   *time.Time  `json:"started_at,omitempty"`
	Finished  *time.Time  `json:"finished_at,omitempty"`
	Counters  JobCounters `json:"counters"`
	ErrorText string      `json:"error_text,omitempty"`
}
