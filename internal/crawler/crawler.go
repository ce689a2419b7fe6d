// Package crawler drains a URL frontier through a Fetcher in bounded
// batches, indexing every fetched page and enqueueing its links.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/roosearch/internal/frontier"
	"github.com/JakeFAU/roosearch/internal/index"
)

// Option customizes a Crawler.
type Option func(*Crawler)

// WithLogger sets the crawler logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver registers the observer told about every attempted page.
func WithObserver(o Observer) Option {
	return func(c *Crawler) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithHostLimiter throttles fetches per host.
func WithHostLimiter(l HostLimiter) Option {
	return func(c *Crawler) {
		c.limiter = l
	}
}

// Crawler owns the frontier for its lifetime: a URL dispatched once is never
// dispatched again by a later run. Runs are serialized.
type Crawler struct {
	cfg      Config
	store    *index.Store
	fetcher  Fetcher
	frontier *frontier.Frontier
	limiter  HostLimiter
	observer Observer
	blocked  *hostBlocklist
	logger   *zap.Logger
	running  chan struct{}
}

// New builds a Crawler that writes into store.
func New(cfg Config, store *index.Store, fetcher Fetcher, opts ...Option) *Crawler {
	cfg = cfg.withDefaults()
	c := &Crawler{
		cfg:      cfg,
		store:    store,
		fetcher:  fetcher,
		frontier: frontier.New(),
		observer: nopObserver{},
		blocked:  newHostBlocklist(cfg.BlockedDomains),
		logger:   zap.NewNop(),
		running:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QueueLength reports URLs waiting in the frontier.
func (c *Crawler) QueueLength() int {
	return c.frontier.Len()
}

// CrawledCount reports URLs dispatched over the crawler's lifetime.
func (c *Crawler) CrawledCount() int {
	return c.frontier.SeenCount()
}

// Validate checks seeds and limits without starting a crawl.
func Validate(seeds []string, maxPages, concurrency int) error {
	if maxPages < 0 || concurrency < 0 {
		return fmt.Errorf("%w: max pages and concurrency must not be negative", ErrInvalidInput)
	}
	_, err := normalizeSeeds(seeds)
	return err
}

type tally struct {
	mu  sync.Mutex
	res Result
}

func (t *tally) succeeded(url string, discovered int) {
	t.mu.Lock()
	t.res.Succeeded++
	t.res.Discovered += discovered
	t.res.Pages = append(t.res.Pages, url)
	t.mu.Unlock()
}

func (t *tally) failed() {
	t.mu.Lock()
	t.res.Failed++
	t.mu.Unlock()
}

func (t *tally) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.res.Succeeded
}

// Crawl discards URLs an earlier run left queued, seeds the frontier and
// drains it in batches of at most concurrency URLs until it is empty,
// maxPages pages have been indexed, or ctx is done.
// Zero maxPages or concurrency fall back to the configured defaults.
// Cancellation stops new batches; fetches already running finish normally.
// Individual fetch failures never abort the crawl.
func (c *Crawler) Crawl(ctx context.Context, seeds []string, maxPages, concurrency int) (Result, error) {
	if err := Validate(seeds, maxPages, concurrency); err != nil {
		return Result{}, err
	}
	normalized, _ := normalizeSeeds(seeds)
	if maxPages == 0 {
		maxPages = c.cfg.MaxPages
	}
	if concurrency == 0 {
		concurrency = c.cfg.Concurrency
	}

	select {
	case c.running <- struct{}{}:
	case <-ctx.Done():
		return Result{}, fmt.Errorf("wait for running crawl: %w", ctx.Err())
	}
	defer func() { <-c.running }()

	// Each run starts from its own seeds; links a stopped run left queued
	// are not carried over, though they may be rediscovered.
	stale := c.frontier.DropPending()
	accepted := c.frontier.Enqueue(c.blocked.allowed(normalized)...)
	c.logger.Info("crawl started",
		zap.Strings("seeds", normalized),
		zap.Int("accepted", accepted),
		zap.Int("dropped_stale", stale),
		zap.Int("max_pages", maxPages),
		zap.Int("concurrency", concurrency),
	)

	t := &tally{res: Result{Pages: []string{}}}
	for ctx.Err() == nil {
		remaining := maxPages - t.count()
		if remaining <= 0 {
			break
		}
		batch := c.frontier.DispatchBatch(min(concurrency, remaining))
		if len(batch) == 0 {
			break
		}
		var g errgroup.Group
		for _, url := range batch {
			g.Go(func() error {
				c.visit(ctx, url, t)
				return nil
			})
		}
		_ = g.Wait()
	}

	res := t.res
	c.logger.Info("crawl finished",
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Int("discovered", res.Discovered),
		zap.Int("queued", c.frontier.Len()),
		zap.Bool("canceled", ctx.Err() != nil),
	)
	return res, nil
}

func (c *Crawler) visit(ctx context.Context, url string, t *tally) {
	defer politePause(ctx, c.cfg.Delay)

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.FetchTimeout)
	defer cancel()
	start := time.Now()
	doc, links, err := c.fetchAndIndex(fetchCtx, url)
	if err != nil {
		t.failed()
		c.logger.Warn("fetch failed",
			zap.String("url", url),
			zap.String("kind", string(err.Kind)),
			zap.Int("status_code", err.StatusCode),
			zap.Error(err),
		)
		c.observer.PageFailed(ctx, url, err, time.Since(start))
		return
	}
	t.succeeded(url, c.frontier.Enqueue(c.blocked.allowed(links)...))
	c.observer.PageIndexed(ctx, doc, time.Since(start))
}

// CrawlOne fetches and indexes a single URL whether or not it was seen
// before, and marks it seen so later crawls skip it. Links are recorded in
// the graph but not enqueued.
func (c *Crawler) CrawlOne(ctx context.Context, rawURL string) (index.Document, error) {
	normalized, err := normalizeSeeds([]string{rawURL})
	if err != nil {
		return index.Document{}, err
	}
	url := normalized[0]
	if c.blocked.blocksURL(url) {
		return index.Document{}, fmt.Errorf("%w: host of %q is blocked", ErrInvalidInput, url)
	}
	c.frontier.MarkSeen(url)

	fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()
	start := time.Now()
	doc, _, fetchErr := c.fetchAndIndex(fetchCtx, url)
	if fetchErr != nil {
		c.logger.Warn("fetch failed",
			zap.String("url", url),
			zap.String("kind", string(fetchErr.Kind)),
			zap.Error(fetchErr),
		)
		c.observer.PageFailed(ctx, url, fetchErr, time.Since(start))
		return index.Document{}, fetchErr
	}
	c.observer.PageIndexed(ctx, doc, time.Since(start))
	return doc, nil
}

// fetchAndIndex fetches url, indexes the page and records its link edges.
// It returns the normalized outbound HTTP(S) links.
func (c *Crawler) fetchAndIndex(ctx context.Context, url string) (index.Document, []string, *FetchError) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, url); err != nil {
			return index.Document{}, nil, ClassifyError(url, err)
		}
	}
	page, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return index.Document{}, nil, ClassifyError(url, err)
	}
	doc, err := c.store.IndexDocument(url, page.Title, page.Text)
	if err != nil {
		return index.Document{}, nil, &FetchError{URL: url, Kind: KindParse, Err: err}
	}

	links := make([]string, 0, len(page.Links))
	for _, raw := range page.Links {
		link, err := ResolveURL(url, raw)
		if err != nil {
			continue
		}
		if err := c.store.AddLinkEdge(url, link); err != nil {
			continue
		}
		links = append(links, link)
	}
	return doc, links, nil
}

// ClassifyError wraps a fetch error in a FetchError, keeping one the fetcher
// already produced.
func ClassifyError(url string, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		if fe.URL == "" {
			fe.URL = url
		}
		return fe
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &FetchError{URL: url, Kind: KindTimeout, Err: err}
	}
	return &FetchError{URL: url, Kind: KindNetwork, Err: err}
}
