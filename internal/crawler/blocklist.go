package crawler

import (
	"net/url"
	"slices"
	"strings"
)

// hostBlocklist matches hosts against exact names and "*.suffix" or
// ".suffix" patterns. A nil blocklist blocks nothing.
type hostBlocklist struct {
	exact    map[string]struct{}
	suffixes []string
}

func newHostBlocklist(patterns []string) *hostBlocklist {
	b := &hostBlocklist{exact: make(map[string]struct{})}
	for _, raw := range patterns {
		value := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case value == "":
		case strings.HasPrefix(value, "*."):
			b.addSuffix(value[2:])
		case strings.HasPrefix(value, "."):
			b.addSuffix(value[1:])
		default:
			b.exact[value] = struct{}{}
		}
	}
	if len(b.exact) == 0 && len(b.suffixes) == 0 {
		return nil
	}
	return b
}

func (b *hostBlocklist) addSuffix(suffix string) {
	if suffix != "" && !slices.Contains(b.suffixes, suffix) {
		b.suffixes = append(b.suffixes, suffix)
	}
}

func (b *hostBlocklist) blocksHost(host string) bool {
	if b == nil {
		return false
	}
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return false
	}
	if _, ok := b.exact[host]; ok {
		return true
	}
	for _, suffix := range b.suffixes {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// blocksURL reports whether a normalized URL points at a blocked host.
func (b *hostBlocklist) blocksURL(rawURL string) bool {
	if b == nil {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return b.blocksHost(u.Hostname())
}

// allowed drops URLs on blocked hosts.
func (b *hostBlocklist) allowed(urls []string) []string {
	if b == nil {
		return urls
	}
	out := urls[:0:0]
	for _, u := range urls {
		if !b.blocksURL(u) {
			out = append(out, u)
		}
	}
	return out
}
