package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, SanitizeSite(tc.input))
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	first := crawlerPagesTotal
	Init()
	require.Same(t, first, crawlerPagesTotal)
}

func TestObserveHelpers(t *testing.T) {
	ObservePage("https://Obs.example/a", "indexed")
	require.Equal(t, 1.0, testutil.ToFloat64(crawlerPagesTotal.WithLabelValues("obs.example", "indexed")))

	ObserveFetchFailure("timeout")
	ObserveFetchFailure("timeout")
	require.Equal(t, 2.0, testutil.ToFloat64(crawlerFetchFailuresTotal.WithLabelValues("timeout")))

	ObserveSnapshot("save", errors.New("disk full"), time.Millisecond)
	require.Equal(t, 1, testutil.CollectAndCount(snapshotDurationSeconds))

	ObserveCacheLookup(true)
	ObserveCacheLookup(false)
	ObserveCacheLookup(false)
	require.Equal(t, 1.0, testutil.ToFloat64(searchCacheLookupsTotal.WithLabelValues("hit")))
	require.Equal(t, 2.0, testutil.ToFloat64(searchCacheLookupsTotal.WithLabelValues("miss")))

	SetIndexSize(3, 42)
	require.Equal(t, 3.0, testutil.ToFloat64(indexDocuments))
	require.Equal(t, 42.0, testutil.ToFloat64(indexTerms))

	IncActiveJobs()
	IncActiveJobs()
	DecActiveJobs()
	require.Equal(t, 1.0, testutil.ToFloat64(crawlerActiveJobs))
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
