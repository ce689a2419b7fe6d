// Package service is the surface the HTTP API and CLI call into: crawl jobs,
// single-page crawls, search, stats and snapshot persistence over one shared
// index.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/roosearch/internal/cache"
	"github.com/JakeFAU/roosearch/internal/crawler"
	"github.com/JakeFAU/roosearch/internal/index"
	"github.com/JakeFAU/roosearch/internal/metrics"
	"github.com/JakeFAU/roosearch/internal/ranker"
	"github.com/JakeFAU/roosearch/internal/search"
)

// JobStore persists crawl jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job crawler.Job) error
	UpdateJobStatus(ctx context.Context, jobID string, status crawler.JobStatus, errText string, counters crawler.JobCounters) error
	GetJob(ctx context.Context, jobID string) (crawler.Job, error)
	ListJobs(ctx context.Context) []crawler.Job
}

// IDGenerator mints job IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Publisher sends crawl completion notices.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Mirror receives a copy of every saved snapshot.
type Mirror interface {
	PutObject(ctx context.Context, name string, contentType string, r io.Reader) (string, error)
}

// Config holds service-level settings.
type Config struct {
	SnapshotPath    string
	SaveAfterCrawl  bool
	RankIterations  int
	RankDamping     float64
	PageSize        int
	MaxPageSize     int
	CompletionTopic string
}

func (c Config) withDefaults() Config {
	if c.RankIterations <= 0 {
		c.RankIterations = ranker.DefaultIterations
	}
	if c.RankDamping <= 0 || c.RankDamping >= 1 {
		c.RankDamping = ranker.DefaultDamping
	}
	if c.PageSize <= 0 {
		c.PageSize = search.DefaultPageSize
	}
	if c.MaxPageSize < c.PageSize {
		c.MaxPageSize = c.PageSize
	}
	if c.CompletionTopic == "" {
		c.CompletionTopic = "crawl.completed"
	}
	return c
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCache enables the search result cache.
func WithCache(c *cache.QueryCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithPublisher enables crawl completion notices.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMirror enables snapshot mirroring.
func WithMirror(m Mirror) Option {
	return func(s *Service) { s.mirror = m }
}

// WithClock overrides the job timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTracerProvider sets the provider crawl spans are started from. The
// process-wide provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

const tracerName = "github.com/JakeFAU/roosearch/internal/service"

// Service coordinates the crawler, index, ranker and query engine.
type Service struct {
	cfg       Config
	store     *index.Store
	crawler   *crawler.Crawler
	engine    *search.Engine
	jobs      JobStore
	ids       IDGenerator
	cache     *cache.QueryCache
	publisher Publisher
	mirror    Mirror
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time

	// ctx bounds background jobs; Close cancels it.
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	saveMu  sync.Mutex
	// savedGen is the index generation last written or loaded.
	savedGen atomic.Uint64
}

// New wires a Service.
func New(
	cfg Config,
	store *index.Store,
	c *crawler.Crawler,
	engine *search.Engine,
	jobs JobStore,
	ids IDGenerator,
	opts ...Option,
) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:     cfg.withDefaults(),
		store:   store,
		crawler: c,
		engine:  engine,
		jobs:    jobs,
		ids:     ids,
		logger:  zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
		now:     func() time.Time { return time.Now().UTC() },
		ctx:     ctx,
		cancel:  cancel,
		cancels: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close cancels running jobs and waits for them to wind down.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// Crawl runs a crawl to completion, recomputes ranks and, when configured,
// saves a snapshot.
func (s *Service) Crawl(ctx context.Context, seeds []string, maxPages, concurrency int) (crawler.Result, error) {
	res, err := s.crawler.Crawl(ctx, seeds, maxPages, concurrency)
	if err != nil {
		return res, err
	}
	if err := s.afterCrawl(ctx); err != nil {
		return res, err
	}
	return res, nil
}

// CrawlOne fetches and indexes one URL, then recomputes ranks and saves when
// configured. A failed save is logged and does not fail the crawl.
func (s *Service) CrawlOne(ctx context.Context, url string) (index.Document, error) {
	ctx, span := s.tracer.Start(ctx, "crawl.page", trace.WithAttributes(attribute.String("url", url)))
	defer span.End()
	doc, err := s.crawler.CrawlOne(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return index.Document{}, err
	}
	if err := s.afterCrawl(ctx); err != nil {
		s.logger.Warn("post-crawl snapshot failed", zap.String("url", doc.URL), zap.Error(err))
	}
	return doc, nil
}

func (s *Service) afterCrawl(ctx context.Context) error {
	s.recompute()
	if !s.cfg.SaveAfterCrawl {
		return nil
	}
	if _, err := s.SnapshotSave(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s *Service) recompute() {
	start := time.Now()
	ranker.Recompute(s.store, s.cfg.RankIterations, s.cfg.RankDamping)
	st := s.store.Stats()
	metrics.SetIndexSize(st.DocumentCount, st.TermCount)
	s.logger.Info("ranks recomputed",
		zap.Int("documents", st.DocumentCount),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// Search answers one page of a query, through the cache when one is set.
// A zero pageSize uses the configured default; larger than the maximum is
// clamped.
func (s *Service) Search(ctx context.Context, query string, page, pageSize int) (search.Results, error) {
	start := time.Now()
	// Blank and all-stop-word queries share a cache key, so blank input is
	// rejected before the cache is consulted.
	if strings.TrimSpace(query) == "" {
		metrics.ObserveSearch("invalid", time.Since(start))
		return search.Results{}, search.ErrEmptyQuery
	}
	if pageSize == 0 {
		pageSize = s.cfg.PageSize
	}
	pageSize = min(pageSize, s.cfg.MaxPageSize)

	compute := func() (search.Results, error) {
		return s.engine.Search(ctx, query, page, pageSize)
	}
	var (
		res    search.Results
		err    error
		cached bool
	)
	if s.cache != nil {
		res, cached, err = s.cache.GetOrCompute(ctx, cache.Query{
			Generation: s.store.Generation(),
			Text:       query,
			Page:       page,
			PageSize:   pageSize,
		}, compute)
	} else {
		res, err = compute()
	}

	outcome := "ok"
	switch {
	case errors.Is(err, search.ErrEmptyQuery), errors.Is(err, search.ErrInvalidInput):
		outcome = "invalid"
	case err != nil:
		outcome = "error"
	case cached:
		outcome = "cached"
	}
	metrics.ObserveSearch(outcome, time.Since(start))
	return res, err
}

// Lucky returns up to n random indexed pages. n is clamped to [1, max page size].
func (s *Service) Lucky(n int) search.Results {
	n = max(1, min(n, s.cfg.MaxPageSize))
	return s.engine.Lucky(n)
}

// Stats summarizes the index and the crawl frontier.
type Stats struct {
	TermCount     int   `json:"termCount"`
	DocumentCount int   `json:"documentCount"`
	LinkCount     int   `json:"linkCount"`
	QueueLength   int   `json:"queueLength"`
	CrawledCount  int   `json:"crawledCount"`
	CacheHits     int64 `json:"cacheHits"`
	CacheMisses   int64 `json:"cacheMisses"`
}

// Stats reports current sizes.
func (s *Service) Stats() Stats {
	st := s.store.Stats()
	out := Stats{
		TermCount:     st.TermCount,
		DocumentCount: st.DocumentCount,
		LinkCount:     st.LinkCount,
		QueueLength:   s.crawler.QueueLength(),
		CrawledCount:  s.crawler.CrawledCount(),
	}
	if s.cache != nil {
		out.CacheHits, out.CacheMisses = s.cache.Stats()
	}
	return out
}
