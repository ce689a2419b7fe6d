package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/roosearch/internal/crawler"
	"github.com/JakeFAU/roosearch/internal/metrics"
)

// CrawlCompleted is published when a crawl job reaches a terminal state.
type CrawlCompleted struct {
	JobID      string              `json:"job_id"`
	Status     crawler.JobStatus   `json:"status"`
	Counters   crawler.JobCounters `json:"counters"`
	Documents  int                 `json:"documents"`
	ErrorText  string              `json:"error_text,omitempty"`
	FinishedAt time.Time           `json:"finished_at"`
}

// Attributes labels the Pub/Sub message.
func (c CrawlCompleted) Attributes() map[string]string {
	return map[string]string{"job_id": c.JobID, "status": string(c.Status)}
}

type jobIDKey struct{}

func withJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, jobIDKey{}, id)
}

// JobIDFromContext returns the crawl job a context belongs to, if any.
func JobIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(jobIDKey{}).(string)
	return id
}

// StartCrawl validates the arguments, records a queued job and runs the
// crawl in the background. Zero maxPages or concurrency use the crawler
// defaults.
func (s *Service) StartCrawl(ctx context.Context, seeds []string, maxPages, concurrency int) (string, error) {
	if err := crawler.Validate(seeds, maxPages, concurrency); err != nil {
		return "", err
	}
	if err := s.ctx.Err(); err != nil {
		return "", fmt.Errorf("service is shutting down: %w", err)
	}
	id, err := s.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}
	job := crawler.Job{
		ID:     id,
		Status: crawler.JobStatusQueued,
		Params: crawler.JobParams{
			URLs:        append([]string(nil), seeds...),
			MaxPages:    maxPages,
			Concurrency: concurrency,
		},
		Submitted: s.now(),
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	jobCtx, cancel := context.WithCancel(withJobID(s.ctx, id))
	s.mu.Lock()
	s.cancels[id] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.cancels, id)
			s.mu.Unlock()
			cancel()
		}()
		s.runJob(jobCtx, job)
	}()
	s.logger.Info("crawl job queued", zap.String("job_id", id), zap.Strings("seeds", seeds))
	return id, nil
}

// Job returns the current state of a crawl job.
func (s *Service) Job(ctx context.Context, id string) (crawler.Job, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return crawler.Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

// Jobs lists every known crawl job, newest first.
func (s *Service) Jobs(ctx context.Context) []crawler.Job {
	return s.jobs.ListJobs(ctx)
}

// CancelJob stops a running job from admitting new batches. Pages already
// being fetched finish first. Canceling a finished job is a no-op.
func (s *Service) CancelJob(ctx context.Context, id string) (crawler.Job, error) {
	job, err := s.Job(ctx, id)
	if err != nil {
		return crawler.Job{}, err
	}
	s.mu.Lock()
	cancel, ok := s.cancels[id]
	s.mu.Unlock()
	if ok {
		cancel()
		s.logger.Info("crawl job cancel requested", zap.String("job_id", id))
	}
	return job, nil
}

func (s *Service) runJob(ctx context.Context, job crawler.Job) {
	ctx, span := s.tracer.Start(ctx, "crawl.job", trace.WithAttributes(
		attribute.String("job_id", job.ID),
		attribute.StringSlice("seeds", job.Params.URLs),
	))
	defer span.End()
	logger := s.logger.With(zap.String("job_id", job.ID))
	metrics.IncActiveJobs()
	defer metrics.DecActiveJobs()

	// Status writes use a context that outlives cancellation of the job.
	bg := context.WithoutCancel(ctx)
	if err := s.jobs.UpdateJobStatus(bg, job.ID, crawler.JobStatusRunning, "", crawler.JobCounters{}); err != nil {
		logger.Error("mark job running failed", zap.Error(err))
	}

	res, err := s.crawler.Crawl(ctx, job.Params.URLs, job.Params.MaxPages, job.Params.Concurrency)
	status := crawler.JobStatusSucceeded
	errText := ""
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		status, errText = crawler.JobStatusCanceled, err.Error()
	case err != nil:
		status, errText = crawler.JobStatusFailed, err.Error()
	default:
		if ctx.Err() != nil {
			status, errText = crawler.JobStatusCanceled, ctx.Err().Error()
		}
		if saveErr := s.afterCrawl(bg); saveErr != nil {
			logger.Error("post-crawl snapshot failed", zap.Error(saveErr))
			status, errText = crawler.JobStatusFailed, saveErr.Error()
		}
	}

	counters := crawler.CountersFrom(res)
	if err := s.jobs.UpdateJobStatus(bg, job.ID, status, errText, counters); err != nil {
		logger.Error("mark job finished failed", zap.Error(err))
	}
	metrics.ObserveJob(string(status))
	span.SetAttributes(
		attribute.String("status", string(status)),
		attribute.Int("pages_succeeded", counters.PagesSucceeded),
		attribute.Int("pages_failed", counters.PagesFailed),
	)
	if status == crawler.JobStatusFailed {
		span.SetStatus(codes.Error, errText)
	}
	logger.Info("crawl job finished",
		zap.String("status", string(status)),
		zap.Int("succeeded", counters.PagesSucceeded),
		zap.Int("failed", counters.PagesFailed),
	)
	s.notify(bg, CrawlCompleted{
		JobID:      job.ID,
		Status:     status,
		Counters:   counters,
		Documents:  s.store.DocumentCount(),
		ErrorText:  errText,
		FinishedAt: s.now(),
	})
}

func (s *Service) notify(ctx context.Context, msg CrawlCompleted) {
	if s.publisher == nil {
		return
	}
	id, err := s.publisher.Publish(ctx, s.cfg.CompletionTopic, msg)
	if err != nil {
		s.logger.Warn("publish crawl completion failed", zap.String("job_id", msg.JobID), zap.Error(err))
		return
	}
	s.logger.Debug("crawl completion published", zap.String("job_id", msg.JobID), zap.String("message_id", id))
}
