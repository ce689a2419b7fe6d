package crawler

import "time"

// Default crawl settings applied when a Config field is left at zero.
const (
	DefaultConcurrency  = 4
	DefaultMaxPages     = 10
	DefaultFetchTimeout = 15 * time.Second
)

// Config holds the settings for a crawl session. It is decoupled from the
// process configuration so the crawler can be tested on its own.
type Config struct {
	Concurrency  int
	MaxPages     int
	Delay        time.Duration
	FetchTimeout time.Duration
	// BlockedDomains lists hosts never fetched: exact names or "*.suffix".
	BlockedDomains []string
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = DefaultFetchTimeout
	}
	if c.Delay < 0 {
		c.Delay = 0
	}
	return c
}
