// Package config loads and validates roosearch configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// ROOSEARCH_CRAWLER_CONCURRENCY.
const EnvPrefix = "ROOSEARCH"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Logging LoggingConfig `mapstructure:"logging"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Index   IndexConfig   `mapstructure:"index"`
	Rank    RankConfig    `mapstructure:"rank"`
	Search  SearchConfig  `mapstructure:"search"`
	Cache   CacheConfig   `mapstructure:"cache"`
	DB      DBConfig      `mapstructure:"db"`
	Storage StorageConfig `mapstructure:"storage"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CrawlerConfig governs the crawl pipeline.
type CrawlerConfig struct {
	Concurrency     int      `mapstructure:"concurrency"`
	MaxPagesDefault int      `mapstructure:"max_pages_default"`
	DelayMs         int      `mapstructure:"delay_ms"`
	UserAgent       string   `mapstructure:"user_agent"`
	MaxBodyBytes    int      `mapstructure:"max_body_bytes"`
	HostRPS         float64  `mapstructure:"host_rps"`
	HostBurst       int      `mapstructure:"host_burst"`
	BlockedDomains  []string `mapstructure:"blocked_domains"`
}

// HTTPConfig configures the page fetch client.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// IndexConfig controls snapshot persistence.
type IndexConfig struct {
	SnapshotPath            string `mapstructure:"snapshot_path"`
	SaveAfterCrawl          bool   `mapstructure:"save_after_crawl"`
	LoadOnStart             bool   `mapstructure:"load_on_start"`
	SnapshotIntervalSeconds int    `mapstructure:"snapshot_interval_seconds"`
}

// RankConfig tunes PageRank.
type RankConfig struct {
	Iterations int     `mapstructure:"iterations"`
	Damping    float64 `mapstructure:"damping"`
}

// SearchConfig sets query defaults.
type SearchConfig struct {
	PageSizeDefault int `mapstructure:"page_size_default"`
	PageSizeMax     int `mapstructure:"page_size_max"`
	SnippetWindow   int `mapstructure:"snippet_window"`
}

// CacheConfig enables the Redis query cache when Addr is set.
type CacheConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	PoolSize   int    `mapstructure:"pool_size"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

// DBConfig enables the Postgres page log when DSN is set.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// StorageConfig enables the GCS snapshot mirror when GCSBucket is set.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for crawl completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("crawler.concurrency", 4)
	v.SetDefault("crawler.max_pages_default", 10)
	v.SetDefault("crawler.delay_ms", 1000)
	v.SetDefault("crawler.user_agent", "roosearch-bot/0.1")
	v.SetDefault("crawler.max_body_bytes", 10<<20)
	v.SetDefault("crawler.host_rps", 0)
	v.SetDefault("crawler.host_burst", 1)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("index.snapshot_path", "index.json.zst")
	v.SetDefault("index.save_after_crawl", true)
	v.SetDefault("index.load_on_start", true)
	v.SetDefault("index.snapshot_interval_seconds", 0)
	v.SetDefault("rank.iterations", 20)
	v.SetDefault("rank.damping", 0.85)
	v.SetDefault("search.page_size_default", 10)
	v.SetDefault("search.page_size_max", 100)
	v.SetDefault("search.snippet_window", 20)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("db.table", "crawled_pages")
	v.SetDefault("storage.prefix", "snapshots")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.Crawler.MaxPagesDefault <= 0 {
		return fmt.Errorf("crawler.max_pages_default must be > 0")
	}
	if c.Crawler.DelayMs < 0 {
		return fmt.Errorf("crawler.delay_ms must be >= 0")
	}
	if c.Crawler.HostRPS < 0 {
		return fmt.Errorf("crawler.host_rps must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Index.SnapshotPath == "" {
		return fmt.Errorf("index.snapshot_path is required")
	}
	if c.Index.SnapshotIntervalSeconds < 0 {
		return fmt.Errorf("index.snapshot_interval_seconds must be >= 0")
	}
	if c.Rank.Iterations <= 0 {
		return fmt.Errorf("rank.iterations must be > 0")
	}
	if c.Rank.Damping <= 0 || c.Rank.Damping >= 1 {
		return fmt.Errorf("rank.damping must be in (0, 1)")
	}
	if c.Search.PageSizeDefault <= 0 || c.Search.PageSizeMax < c.Search.PageSizeDefault {
		return fmt.Errorf("search.page_size_default must be > 0 and <= search.page_size_max")
	}
	if c.Search.SnippetWindow <= 0 {
		return fmt.Errorf("search.snippet_window must be > 0")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// FetchTimeout is the per-page fetch budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// CrawlDelay is the pause a worker takes after each fetch.
func (c Config) CrawlDelay() time.Duration {
	return time.Duration(c.Crawler.DelayMs) * time.Millisecond
}

// SnapshotInterval is the periodic save period; zero disables it.
func (c Config) SnapshotInterval() time.Duration {
	return time.Duration(c.Index.SnapshotIntervalSeconds) * time.Second
}

// CacheTTL is how long cached search pages live.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}
