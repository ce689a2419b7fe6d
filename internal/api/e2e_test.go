package api

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/roosearch/internal/crawler"
	"github.com/JakeFAU/roosearch/internal/id/uuid"
	"github.com/JakeFAU/roosearch/internal/index"
	"github.com/JakeFAU/roosearch/internal/search"
	"github.com/JakeFAU/roosearch/internal/service"
	"github.com/JakeFAU/roosearch/internal/storage/memory"
)

type staticFetcher map[string]crawler.Page

func (f staticFetcher) Fetch(_ context.Context, url string) (crawler.Page, error) {
	page, ok := f[url]
	if !ok {
		return crawler.Page{}, &crawler.FetchError{URL: url, Kind: crawler.KindHTTPStatus, StatusCode: 404}
	}
	return page, nil
}

func TestServer_CrawlThenSearch(t *testing.T) {
	t.Parallel()

	store, err := index.New()
	require.NoError(t, err)
	t.Cleanup(store.Close)
	fetcher := staticFetcher{
		"http://a.test/": {URL: "http://a.test/", Title: "A", Text: "rocket one", Links: []string{"http://b.test/"}},
		"http://b.test/": {URL: "http://b.test/", Title: "B", Text: "rocket two"},
	}
	c := crawler.New(crawler.Config{}, store, fetcher)
	svc := service.New(service.Config{
		SnapshotPath:   filepath.Join(t.TempDir(), "index.json.zst"),
		SaveAfterCrawl: true,
	}, store, c, search.New(store), memory.NewJobStore(nil), uuid.New())
	t.Cleanup(svc.Close)
	h := NewServer(svc, Options{}, nil).Handler()

	rec := do(t, h, http.MethodPost, "/v1/crawls", `{"urls":["http://a.test/"],"max_pages":2}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	jobID := started["job_id"]

	require.Eventually(t, func() bool {
		rec := do(t, h, http.MethodGet, "/v1/crawls/"+jobID, "")
		var body struct {
			Job crawler.Job `json:"job"`
		}
		if rec.Code != http.StatusOK || json.Unmarshal(rec.Body.Bytes(), &body) != nil {
			return false
		}
		return body.Job.Status == crawler.JobStatusSucceeded
	}, 5*time.Second, 10*time.Millisecond)

	rec = do(t, h, http.MethodGet, "/v1/search?q=rocket", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res search.Results
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, 2, res.TotalResults)
	// Equal relevance, so b ranks first on the PageRank it gets from a's link.
	require.Equal(t, "http://b.test/", res.Results[0].URL)
	require.Equal(t, []int{0}, res.Results[0].Positions)
	require.True(t, res.Results[0].Snippet.Words[0].Match)

	rec = do(t, h, http.MethodGet, "/v1/stats", "")
	require.JSONEq(t, `{"termCount":3,"documentCount":2,"linkCount":1,"queueLength":0,"crawledCount":2,"cacheHits":0,"cacheMisses":0}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/v1/crawls/unknown", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
