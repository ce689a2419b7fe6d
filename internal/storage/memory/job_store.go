// Package memory keeps crawl jobs in process memory.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/roosearch/internal/crawler"
)

// ErrJobExists is returned when a job ID is created twice.
var ErrJobExists = errors.New("crawl job already exists")

// JobStore is an in-memory crawl job registry.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]crawler.Job
	now  func() time.Time
}

// NewJobStore constructs a JobStore. A nil now uses the wall clock in UTC.
func NewJobStore(now func() time.Time) *JobStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &JobStore{
		jobs: make(map[string]crawler.Job),
		now:  now,
	}
}

// CreateJob stores a new job. The status defaults to queued.
func (s *JobStore) CreateJob(_ context.Context, job crawler.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return ErrJobExists
	}
	if job.Status == "" {
		job.Status = crawler.JobStatusQueued
	}
	if job.Submitted.IsZero() {
		job.Submitted = s.now()
	}
	job.Params.URLs = append([]string(nil), job.Params.URLs...)
	s.jobs[job.ID] = job
	return nil
}

// UpdateJobStatus updates the status, error text and counters for a job.
// Started is stamped on the first move to running and Finished on the move to
// a terminal state. A terminal job is never changed again.
func (s *JobStore) UpdateJobStatus(
	_ context.Context,
	jobID string,
	status crawler.JobStatus,
	errText string,
	counters crawler.JobCounters,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawler.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return nil
	}
	job.Status = status
	job.ErrorText = errText
	job.Counters = counters
	now := s.now()
	if status == crawler.JobStatusRunning && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if status.Terminal() {
		if job.Started == nil {
			job.Started = pointerTime(now)
		}
		job.Finished = pointerTime(now)
	}
	s.jobs[jobID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (crawler.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawler.Job{}, crawler.ErrJobNotFound
	}
	job.Params.URLs = append([]string(nil), job.Params.URLs...)
	return job, nil
}

// ListJobs returns every job, most recently submitted first.
func (s *JobStore) ListJobs(_ context.Context) []crawler.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawler.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Submitted.Equal(out[j].Submitted) {
			return out[i].Submitted.After(out[j].Submitted)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
