// Package collyfetcher implements crawler.Fetcher using gocolly and goquery.
package collyfetcher

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/roosearch/internal/crawler"
)

const defaultMaxBodySize = 10 << 20

// Config controls collector behavior.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	MaxBodySize int
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = crawler.DefaultFetchTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	c := colly.NewCollector(colly.Async(false))
	// The crawler owns deduplication; CrawlOne deliberately refetches.
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	c.MaxBodySize = cfg.MaxBodySize
	// Clones share the backend client, so transport and timeout are set once.
	transport := newHTTPTransport()
	c.WithTransport(transport)
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch retrieves url and extracts its title, visible body text and
// absolute outbound links. Failures are *crawler.FetchError values.
func (f *Fetcher) Fetch(ctx context.Context, url string) (crawler.Page, error) {
	var (
		page     crawler.Page
		fetchErr error
	)
	collector := f.buildCollector(url, &page, &fetchErr)
	if err := f.runCollector(ctx, collector, url, &fetchErr); err != nil {
		return crawler.Page{}, err
	}
	return page, nil
}

func (f *Fetcher) buildCollector(url string, page *crawler.Page, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	f.configureCollectorHooks(collector, url, page, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	url string,
	page *crawler.Page,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		parsed, err := parsePage(r)
		if err != nil {
			*fetchErr = err
			return
		}
		*page = parsed
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = &crawler.FetchError{
				URL:        url,
				Kind:       crawler.KindHTTPStatus,
				StatusCode: r.StatusCode,
				Err:        err,
			}
			return
		}
		*fetchErr = crawler.ClassifyError(url, err)
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return crawler.ClassifyError(url, fmt.Errorf("colly fetch canceled: %w", ctx.Err()))
	case err := <-done:
		if *fetchErr != nil {
			return *fetchErr
		}
		if err != nil {
			return crawler.ClassifyError(url, fmt.Errorf("colly visit failed: %w", err))
		}
		return nil
	}
}

func parsePage(r *colly.Response) (crawler.Page, error) {
	pageURL := r.Request.URL.String()
	if ct := r.Headers.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "html") {
		return crawler.Page{}, &crawler.FetchError{
			URL:  pageURL,
			Kind: crawler.KindParse,
			Err:  fmt.Errorf("unsupported content type %q", ct),
		}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	if err != nil {
		return crawler.Page{}, &crawler.FetchError{URL: pageURL, Kind: crawler.KindParse, Err: err}
	}

	page := crawler.Page{
		URL:        pageURL,
		StatusCode: r.StatusCode,
		Title:      strings.TrimSpace(doc.Find("title").First().Text()),
	}
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		abs := r.Request.AbsoluteURL(strings.TrimSpace(href))
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		page.Links = append(page.Links, abs)
	})

	doc.Find("script, style, noscript, template").Remove()
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	page.Text = strings.Join(strings.Fields(body.Text()), " ")
	return page, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
