package service

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/roosearch/internal/crawler"
	"github.com/JakeFAU/roosearch/internal/index"
	"github.com/JakeFAU/roosearch/internal/metrics"
	"github.com/JakeFAU/roosearch/internal/storage/postgres"
)

// PageLog stores one row per crawl attempt.
type PageLog interface {
	RecordPage(ctx context.Context, rec postgres.PageRecord) error
}

// PageObserver feeds crawl outcomes to metrics and, when set, the page log.
type PageObserver struct {
	log    PageLog
	now    func() time.Time
	logger *zap.Logger
}

// NewPageObserver builds a crawler.Observer. log may be nil.
func NewPageObserver(log PageLog, now func() time.Time, logger *zap.Logger) *PageObserver {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageObserver{log: log, now: now, logger: logger}
}

var _ crawler.Observer = (*PageObserver)(nil)

// PageIndexed records a successful page.
func (o *PageObserver) PageIndexed(ctx context.Context, doc index.Document, elapsed time.Duration) {
	metrics.ObservePage(metrics.SanitizeSite(doc.URL), postgres.StatusIndexed)
	o.record(ctx, postgres.PageRecord{
		JobID:      JobIDFromContext(ctx),
		URL:        doc.URL,
		Title:      doc.Title,
		WordCount:  doc.WordCount,
		Status:     postgres.StatusIndexed,
		StatusCode: http.StatusOK,
		Duration:   elapsed,
		FetchedAt:  o.now(),
	})
}

// PageFailed records a failed attempt.
func (o *PageObserver) PageFailed(ctx context.Context, url string, err *crawler.FetchError, elapsed time.Duration) {
	metrics.ObservePage(metrics.SanitizeSite(url), postgres.StatusFailed)
	metrics.ObserveFetchFailure(string(err.Kind))
	o.record(ctx, postgres.PageRecord{
		JobID:      JobIDFromContext(ctx),
		URL:        url,
		Status:     postgres.StatusFailed,
		ErrorKind:  string(err.Kind),
		StatusCode: err.StatusCode,
		Duration:   elapsed,
		FetchedAt:  o.now(),
	})
}

func (o *PageObserver) record(ctx context.Context, rec postgres.PageRecord) {
	if o.log == nil {
		return
	}
	if err := o.log.RecordPage(context.WithoutCancel(ctx), rec); err != nil {
		o.logger.Warn("page log write failed", zap.String("url", rec.URL), zap.Error(err))
	}
}
