package crawler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHostBlocklist(t *testing.T) {
	t.Parallel()

	bl := newHostBlocklist([]string{"Example.org", "*.ru", ".internal", " ", "*.ru"})
	require.NotNil(t, bl)
	require.Len(t, bl.suffixes, 2)

	tests := []struct {
		host    string
		blocked bool
	}{
		{host: "example.org", blocked: true},
		{host: "sub.example.org", blocked: false},
		{host: "example.ru", blocked: true},
		{host: "deep.sub.ru", blocked: true},
		{host: "ru", blocked: true},
		{host: "svc.internal", blocked: true},
		{host: "example.com", blocked: false},
		{host: "", blocked: false},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.blocked, bl.blocksHost(tt.host))
		})
	}
}

func TestHostBlocklistFiltersURLs(t *testing.T) {
	t.Parallel()

	bl := newHostBlocklist([]string{"*.ru"})
	got := bl.allowed([]string{"http://a.test/", "http://b.ru/x", "http://c.test:8080/"})
	require.Equal(t, []string{"http://a.test/", "http://c.test:8080/"}, got)
}

func TestNilHostBlocklist(t *testing.T) {
	t.Parallel()

	require.Nil(t, newHostBlocklist([]string{"", "  "}))
	var bl *hostBlocklist
	require.False(t, bl.blocksHost("anything"))
	urls := []string{"http://a.test/"}
	require.Equal(t, urls, bl.allowed(urls))
}
