// Package server builds the application graph from configuration and runs
// the HTTP listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/roosearch/internal/api"
	"github.com/JakeFAU/roosearch/internal/cache"
	"github.com/JakeFAU/roosearch/internal/clock/system"
	"github.com/JakeFAU/roosearch/internal/config"
	"github.com/JakeFAU/roosearch/internal/crawler"
	collyfetcher "github.com/JakeFAU/roosearch/internal/fetcher/colly"
	"github.com/JakeFAU/roosearch/internal/id/uuid"
	"github.com/JakeFAU/roosearch/internal/index"
	"github.com/JakeFAU/roosearch/internal/logging"
	"github.com/JakeFAU/roosearch/internal/policy/ratelimit"
	gcppublisher "github.com/JakeFAU/roosearch/internal/publisher/pubsub"
	"github.com/JakeFAU/roosearch/internal/search"
	"github.com/JakeFAU/roosearch/internal/service"
	gcsstorage "github.com/JakeFAU/roosearch/internal/storage/gcs"
	"github.com/JakeFAU/roosearch/internal/storage/memory"
	pgstore "github.com/JakeFAU/roosearch/internal/storage/postgres"
	"github.com/JakeFAU/roosearch/internal/telemetry"
)

const (
	shutdownTimeout = 10 * time.Second
	serviceName     = "roosearch"
)

// App contains the application's dependencies.
type App struct {
	cfg             config.Config
	logger          *zap.Logger
	tracer          *sdktrace.TracerProvider
	store           *index.Store
	svc             *service.Service
	apiServer       *api.Server
	pageLog         *pgstore.PageLog
	redis           *cache.RedisBackend
	storage         *storage.Client
	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher
}

// Service returns the wired service, for CLI commands that skip HTTP.
func (a *App) Service() *service.Service {
	return a.svc
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Build creates the application's dependencies. Optional backends (Postgres,
// Redis, GCS, Pub/Sub) are only connected when configured.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("snapshot_path", cfg.Index.SnapshotPath),
	)

	if err := app.build(ctx); err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	cfg := a.cfg
	clock := system.New()

	tp, err := telemetry.InitTracerProvider(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("tracer init failed: %w", err)
	}
	a.tracer = tp

	store, err := index.New(index.WithLogger(a.logger.Named("index")), index.WithClock(clock.Now))
	if err != nil {
		return fmt.Errorf("index init failed: %w", err)
	}
	a.store = store

	if err := a.setupDatabase(ctx); err != nil {
		return err
	}
	var pageLog service.PageLog
	if a.pageLog != nil {
		pageLog = a.pageLog
	}

	crawlerOpts := []crawler.Option{
		crawler.WithLogger(a.logger.Named("crawler")),
		crawler.WithObserver(service.NewPageObserver(pageLog, clock.Now, a.logger.Named("pages"))),
	}
	if cfg.Crawler.HostRPS > 0 {
		crawlerOpts = append(crawlerOpts, crawler.WithHostLimiter(ratelimit.New(ratelimit.Config{
			DefaultRPS:   cfg.Crawler.HostRPS,
			DefaultBurst: cfg.Crawler.HostBurst,
		})))
		a.logger.Info("host rate limiter enabled",
			zap.Float64("rps", cfg.Crawler.HostRPS),
			zap.Int("burst", cfg.Crawler.HostBurst),
		)
	}
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:   cfg.Crawler.UserAgent,
		Timeout:     cfg.FetchTimeout(),
		MaxBodySize: cfg.Crawler.MaxBodyBytes,
	})
	a.logger.Info("using colly fetcher", zap.String("user_agent", cfg.Crawler.UserAgent))
	c := crawler.New(crawler.Config{
		Concurrency:    cfg.Crawler.Concurrency,
		MaxPages:       cfg.Crawler.MaxPagesDefault,
		Delay:          cfg.CrawlDelay(),
		FetchTimeout:   cfg.FetchTimeout(),
		BlockedDomains: cfg.Crawler.BlockedDomains,
	}, store, fetcher, crawlerOpts...)

	engine := search.New(store,
		search.WithLogger(a.logger.Named("search")),
		search.WithSnippetWindow(cfg.Search.SnippetWindow),
	)

	svcOpts := []service.Option{
		service.WithLogger(a.logger.Named("service")),
		service.WithClock(clock.Now),
		service.WithTracerProvider(tp),
	}
	if err := a.setupCache(ctx, &svcOpts); err != nil {
		return err
	}
	if err := a.setupStorage(ctx, &svcOpts); err != nil {
		return err
	}
	if err := a.setupPublisher(ctx, &svcOpts); err != nil {
		return err
	}

	a.svc = service.New(service.Config{
		SnapshotPath:   cfg.Index.SnapshotPath,
		SaveAfterCrawl: cfg.Index.SaveAfterCrawl,
		RankIterations: cfg.Rank.Iterations,
		RankDamping:    cfg.Rank.Damping,
		PageSize:       cfg.Search.PageSizeDefault,
		MaxPageSize:    cfg.Search.PageSizeMax,
	}, store, c, engine, memory.NewJobStore(clock.Now), uuid.New(), svcOpts...)

	if cfg.Index.LoadOnStart {
		st, err := a.svc.SnapshotLoad(ctx)
		if err != nil {
			// A corrupt snapshot leaves an empty index; the service still starts.
			a.logger.Warn("snapshot load failed", zap.Error(err))
		} else {
			a.logger.Info("snapshot loaded",
				zap.Int("documents", st.DocumentCount),
				zap.Int("terms", st.TermCount),
			)
		}
	}

	opts := api.Options{RequestTimeout: 2 * cfg.FetchTimeout()}
	if cfg.Auth.Enabled {
		opts.APIKey = cfg.Auth.APIKey
	}
	a.apiServer = api.NewServer(a.svc, opts, a.logger.Named("api"))
	return nil
}

func (a *App) setupDatabase(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		a.logger.Info("no DSN specified, page log disabled")
		return nil
	}
	pageLog, err := pgstore.NewPageLog(ctx, pgstore.PageLogConfig{
		DSN:      a.cfg.DB.DSN,
		Table:    a.cfg.DB.Table,
		MaxConns: a.cfg.DB.MaxConns,
		MinConns: a.cfg.DB.MinConns,
	})
	if err != nil {
		return fmt.Errorf("page log init failed: %w", err)
	}
	a.pageLog = pageLog
	a.logger.Info("page log initialized", zap.String("table", a.cfg.DB.Table))
	return nil
}

func (a *App) setupCache(ctx context.Context, opts *[]service.Option) error {
	if a.cfg.Cache.Addr == "" {
		a.logger.Info("no cache address specified, search cache disabled")
		return nil
	}
	backend, err := cache.NewRedis(ctx, cache.RedisConfig{
		Addr:     a.cfg.Cache.Addr,
		Password: a.cfg.Cache.Password,
		DB:       a.cfg.Cache.DB,
		PoolSize: a.cfg.Cache.PoolSize,
	})
	if err != nil {
		return fmt.Errorf("redis init failed: %w", err)
	}
	a.redis = backend
	*opts = append(*opts, service.WithCache(cache.New(backend, a.cfg.CacheTTL(), a.logger.Named("cache"))))
	a.logger.Info("search cache enabled", zap.String("addr", a.cfg.Cache.Addr), zap.Duration("ttl", a.cfg.CacheTTL()))
	return nil
}

func (a *App) setupStorage(ctx context.Context, opts *[]service.Option) error {
	if a.cfg.Storage.GCSBucket == "" {
		return nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("gcs client init failed: %w", err)
	}
	a.storage = client
	mirror, err := gcsstorage.New(client, gcsstorage.Config{
		Bucket: a.cfg.Storage.GCSBucket,
		Prefix: a.cfg.Storage.Prefix,
	})
	if err != nil {
		return fmt.Errorf("gcs mirror init failed: %w", err)
	}
	*opts = append(*opts, service.WithMirror(mirror))
	a.logger.Info("snapshot mirror enabled", zap.String("bucket", a.cfg.Storage.GCSBucket))
	return nil
}

func (a *App) setupPublisher(ctx context.Context, opts *[]service.Option) error {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Info("no Pub/Sub topic configured, completion notices disabled")
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.pubsubPublisher = client.Publisher(a.cfg.PubSub.TopicName)
	*opts = append(*opts, service.WithPublisher(gcppublisher.New(a.pubsubPublisher)))
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return nil
}

// Run serves HTTP and the periodic snapshot loop until ctx is canceled or
// the process receives SIGINT/SIGTERM, then shuts down.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go a.svc.RunSnapshotLoop(ctx, a.cfg.SnapshotInterval())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.Close()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close stops background jobs and releases every connected backend.
func (a *App) Close() {
	if a.svc != nil {
		a.svc.Close()
	}
	a.closeInfrastructure()
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
}

func (a *App) closeInfrastructure() {
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if a.pageLog != nil {
		a.pageLog.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
}
