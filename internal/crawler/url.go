package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL standardizes an absolute HTTP(S) URL to avoid duplicates.
// It lowercases the scheme and host, removes default ports, sorts query
// parameters, drops the fragment and turns an empty path into "/".
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	return normalize(u)
}

// ResolveURL resolves ref against base and normalizes the result.
func ResolveURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse link: %w", err)
	}
	return normalize(b.ResolveReference(r))
}

func normalize(u *url.URL) (string, error) {
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("missing host in %q", u.String())
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawQuery = u.Query().Encode()
	return u.String(), nil
}

func normalizeSeeds(seeds []string) ([]string, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: at least one seed url is required", ErrInvalidInput)
	}
	out := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		if strings.TrimSpace(seed) == "" {
			return nil, fmt.Errorf("%w: blank seed url", ErrInvalidInput)
		}
		norm, err := NormalizeURL(seed)
		if err != nil {
			return nil, fmt.Errorf("%w: seed %q: %w", ErrInvalidInput, seed, err)
		}
		out = append(out, norm)
	}
	return out, nil
}
