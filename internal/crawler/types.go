package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/roosearch/internal/index"
)

// ErrInvalidInput is returned before any work starts when seeds or limits
// are unusable.
var ErrInvalidInput = errors.New("invalid crawl input")

// Page is what a Fetcher extracts from one URL.
type Page struct {
	URL        string
	StatusCode int
	Title      string
	Text       string
	Links      []string
}

// ErrorKind classifies a fetch failure.
type ErrorKind string

// Fetch failure kinds.
const (
	KindTimeout    ErrorKind = "timeout"
	KindHTTPStatus ErrorKind = "http_status"
	KindNetwork    ErrorKind = "network"
	KindParse      ErrorKind = "parse"
)

// FetchError is the typed failure returned for a URL that could not be
// fetched or parsed. StatusCode is set for KindHTTPStatus.
type FetchError struct {
	URL        string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves one page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// HostLimiter throttles requests per host.
type HostLimiter interface {
	Wait(ctx context.Context, url string) error
}

// Observer is told about every attempted page.
type Observer interface {
	PageIndexed(ctx context.Context, doc index.Document, elapsed time.Duration)
	PageFailed(ctx context.Context, url string, err *FetchError, elapsed time.Duration)
}

// Result summarizes one crawl run. Pages lists the indexed URLs in
// completion order.
type Result struct {
	Succeeded  int      `json:"succeeded"`
	Failed     int      `json:"failed"`
	Discovered int      `json:"discovered"`
	Pages      []string `json:"pages"`
}

type nopObserver struct{}

func (nopObserver) PageIndexed(context.Context, index.Document, time.Duration)      {}
func (nopObserver) PageFailed(context.Context, string, *FetchError, time.Duration) {}
