// Package app builds the crawl's dependencies from configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/vacation-rental-crawler/internal/api"
	"github.com/JakeFAU/vacation-rental-crawler/internal/checkpoint"
	pgcheckpoint "github.com/JakeFAU/vacation-rental-crawler/internal/checkpoint/postgres"
	"github.com/JakeFAU/vacation-rental-crawler/internal/clock/system"
	"github.com/JakeFAU/vacation-rental-crawler/internal/config"
	"github.com/JakeFAU/vacation-rental-crawler/internal/crawler"
	"github.com/JakeFAU/vacation-rental-crawler/internal/discovery"
	"github.com/JakeFAU/vacation-rental-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/vacation-rental-crawler/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/vacation-rental-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/vacation-rental-crawler/internal/id/uuid"
	"github.com/JakeFAU/vacation-rental-crawler/internal/metrics"
	"github.com/JakeFAU/vacation-rental-crawler/internal/orchestrator"
	"github.com/JakeFAU/vacation-rental-crawler/internal/policy/ratelimit"
	gcppublisher "github.com/JakeFAU/vacation-rental-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/vacation-rental-crawler/internal/readiness"
	"github.com/JakeFAU/vacation-rental-crawler/internal/reviews"
	"github.com/JakeFAU/vacation-rental-crawler/internal/sink"
	pgsink "github.com/JakeFAU/vacation-rental-crawler/internal/sink/postgres"
	gcsstorage "github.com/JakeFAU/vacation-rental-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/vacation-rental-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/vacation-rental-crawler/internal/storage/memory"
	pgstorage "github.com/JakeFAU/vacation-rental-crawler/internal/storage/postgres"
	"github.com/JakeFAU/vacation-rental-crawler/internal/telemetry"
)

const serviceName = "rentalcrawler"

// App contains the crawl's dependencies.
type App struct {
	cfg            config.Config
	logger         *zap.Logger
	runID          string
	tracker        *checkpoint.Tracker
	orch           *orchestrator.Orchestrator
	apiServer      *api.Server
	sink           crawler.RecordSink
	pool           pgstorage.Pool
	storage        *storage.Client
	publisher      *gcppublisher.Publisher
	headless       *headlessfetcher.Fetcher
	tracerShutdown func(context.Context) error
}

// Build creates the crawl's dependencies and restores the checkpoint.
// On error every resource opened so far is released.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	a := &App{cfg: cfg, logger: logger.With(zap.String("run_id", runID)), runID: runID}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()
	a.logger.Info("building crawl",
		zap.String("site", cfg.Site.BaseURL),
		zap.String("checkpoint_backend", cfg.Checkpoint.Backend),
		zap.String("on_structural_fault", cfg.Crawl.OnStructuralFault),
	)

	tp, err := telemetry.InitTracerProvider(ctx, serviceName, runID)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	a.tracerShutdown = tp.Shutdown

	if needsDatabase(cfg) {
		if err = a.setupDatabase(ctx); err != nil {
			return nil, err
		}
	}
	clock := system.New()

	store, err := a.setupCheckpointStore(ctx)
	if err != nil {
		return nil, err
	}
	a.tracker, err = checkpoint.Restore(ctx, store, clock, a.logger.Named("checkpoint"))
	if err != nil {
		return nil, err
	}

	a.sink, err = a.setupSinks(ctx, clock)
	if err != nil {
		return nil, err
	}

	deps, err := a.setupPipeline()
	if err != nil {
		return nil, err
	}
	deps.Sink = a.sink
	deps.Cursor = a.tracker
	deps.Tracer = telemetry.Tracer()
	deps.Logger = a.logger.Named("orchestrator")

	regions := cfg.RegionList()
	a.orch, err = orchestrator.New(orchestrator.Config{
		Regions:           regions,
		OnStructuralFault: cfg.FaultPolicy(),
	}, deps)
	if err != nil {
		return nil, err
	}

	a.apiServer = api.NewServer(a.tracker, api.RunInfo{
		RunID:     runID,
		Regions:   len(regions),
		StartedAt: clock.Now(),
	}, a.logger.Named("api"))
	a.apiServer.SetReady(true)
	return a, nil
}

// RunID identifies this crawl in logs, spans and published events.
func (a *App) RunID() string {
	return a.runID
}

// Handler exposes the status server's routes.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run crawls until the region list is exhausted, a fatal error occurs or
// ctx is canceled. The status server, when enabled, runs alongside.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	var srv *http.Server
	if a.cfg.Server.Enabled {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
			Handler:           a.apiServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http server error", zap.Error(err))
				stop()
			}
		}()
	}

	sum, runErr := a.orch.Run(ctx)
	a.logger.Info("crawl stopped",
		zap.Int("regions_completed", sum.RegionsCompleted),
		zap.Int("regions_skipped", sum.RegionsSkipped),
		zap.Int("listings", sum.Listings),
		zap.Int("reviews", sum.Reviews),
		zap.Error(runErr),
	)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown error", zap.Error(err))
		}
	}
	a.Close(shutdownCtx)
	return runErr
}

// Close releases every resource the App opened. It is safe to call twice.
func (a *App) Close(ctx context.Context) {
	a.closeInfrastructure()
	a.closeObservability(ctx)
}

func (a *App) closeInfrastructure() {
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.logger.Warn("sink close failed", zap.Error(err))
		}
		a.sink = nil
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub publisher close failed", zap.Error(err))
		}
		a.publisher = nil
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.storage = nil
	}
	if a.headless != nil {
		a.headless.Close()
		a.headless = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
		a.tracerShutdown = nil
	}
}

func needsDatabase(cfg config.Config) bool {
	return cfg.Checkpoint.Backend == "postgres" || cfg.Output.Postgres.Enabled
}

func (a *App) setupDatabase(ctx context.Context) error {
	pool, err := pgstorage.NewPool(ctx, pgstorage.PoolConfig{
		DSN:      a.cfg.DB.DSN,
		MaxConns: a.cfg.DB.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("postgres pool init failed: %w", err)
	}
	a.pool = pool
	a.logger.Info("postgres pool initialized")
	return nil
}

func (a *App) setupCheckpointStore(ctx context.Context) (crawler.CheckpointStore, error) {
	switch a.cfg.Checkpoint.Backend {
	case "postgres":
		store, err := pgcheckpoint.NewStore(a.pool, a.cfg.Checkpoint.Table, a.cfg.Checkpoint.Name)
		if err != nil {
			return nil, fmt.Errorf("postgres checkpoint store init failed: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		a.logger.Info("using postgres checkpoint store",
			zap.String("table", a.cfg.Checkpoint.Table),
			zap.String("name", a.cfg.Checkpoint.Name),
		)
		return store, nil
	default:
		store, err := checkpoint.NewFileStore(a.cfg.Checkpoint.Path)
		if err != nil {
			return nil, fmt.Errorf("file checkpoint store init failed: %w", err)
		}
		a.logger.Info("using file checkpoint store", zap.String("path", store.Path()))
		return store, nil
	}
}

func (a *App) setupSinks(ctx context.Context, clock crawler.Clock) (crawler.RecordSink, error) {
	var sinks sink.Multi
	closeAll := func() {
		if err := sinks.Close(); err != nil {
			a.logger.Warn("sink close failed", zap.Error(err))
		}
	}

	if a.cfg.Output.CSV.Enabled {
		csvSink, err := sink.NewCSV(a.cfg.Output.CSV.ListingPath, a.cfg.Output.CSV.ReviewPath)
		if err != nil {
			return nil, fmt.Errorf("csv sink init failed: %w", err)
		}
		sinks = append(sinks, csvSink)
		a.logger.Info("csv output enabled",
			zap.String("listing_path", a.cfg.Output.CSV.ListingPath),
			zap.String("review_path", a.cfg.Output.CSV.ReviewPath),
		)
	}

	blobStore, err := a.setupBlobStore(ctx)
	if err != nil {
		closeAll()
		return nil, err
	}
	if blobStore != nil {
		sinks = append(sinks, sink.NewBlob(blobStore, a.cfg.Output.Blob.Prefix))
	}

	if a.cfg.Output.Postgres.Enabled {
		pg, err := pgsink.New(a.pool, a.cfg.Output.Postgres.ListingTable, a.cfg.Output.Postgres.ReviewTable)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("postgres sink init failed: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, err
		}
		sinks = append(sinks, pg)
		a.logger.Info("postgres output enabled",
			zap.String("listing_table", a.cfg.Output.Postgres.ListingTable),
			zap.String("review_table", a.cfg.Output.Postgres.ReviewTable),
		)
	}

	if len(sinks) == 0 {
		a.logger.Warn("no output configured, listings will be crawled but not stored")
	}

	if a.cfg.PubSub.ProjectID == "" || a.cfg.PubSub.TopicName == "" {
		a.logger.Info("no Pub/Sub topic configured, listing events disabled")
		return sinks, nil
	}
	a.publisher, err = gcppublisher.Connect(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.TopicName)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return sink.NewNotifying(sinks, a.publisher, clock, a.runID, a.logger.Named("notify")), nil
}

func (a *App) setupBlobStore(ctx context.Context) (crawler.BlobStore, error) {
	blob := a.cfg.Output.Blob
	switch blob.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.storage = client
		store, err := gcsstorage.New(client, gcsstorage.Config{Bucket: blob.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Info("using GCS blob output", zap.String("bucket", blob.GCSBucket))
		return store, nil
	case "local":
		store, err := localstorage.New(localstorage.Config{BaseDir: blob.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("using local blob output", zap.String("path", blob.BaseDir))
		return store, nil
	case "memory":
		a.logger.Info("using in-memory blob output")
		return memorystorage.NewBlobStore(), nil
	default:
		return nil, nil
	}
}

// setupPipeline builds the transports and the crawl stages. Detail pages go
// through the headless browser when enabled; search pages and the review
// API always use the plain HTTP transport.
func (a *App) setupPipeline() (orchestrator.Dependencies, error) {
	cfg := a.cfg
	retry := crawler.NewExponentialRetryPolicy(cfg.TransportRetry())
	limiter := ratelimit.New(ratelimit.Config{DefaultRPS: cfg.HTTP.RequestsPerSecond})

	httpFetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.HTTP.UserAgent,
		RespectRobots: cfg.HTTP.RespectRobots,
		Timeout:       cfg.HTTPTimeout(),
	}, retry, limiter, a.logger.Named("transport"))
	a.logger.Info("using colly transport",
		zap.String("user_agent", cfg.HTTP.UserAgent),
		zap.Int("max_attempts", retry.MaxAttempts()),
	)

	var detailFetcher crawler.Fetcher = httpFetcher
	if cfg.Headless.Enabled {
		headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			UserAgent:         cfg.HTTP.UserAgent,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
			ReadyTimeout:      time.Duration(cfg.Headless.ReadyTimeoutSec) * time.Second,
		}, retry, limiter, a.logger.Named("headless"))
		if err != nil {
			return orchestrator.Dependencies{}, fmt.Errorf("headless fetcher init failed: %w", err)
		}
		a.headless = headless
		detailFetcher = headless
		a.logger.Info("using headless transport for detail pages")
	}

	searchURL := crawler.JoinPath(cfg.Site.BaseURL, cfg.Site.SearchPath)
	return orchestrator.Dependencies{
		Discoverer: discovery.New(httpFetcher, searchURL, cfg.Site.Country, a.logger.Named("discovery")),
		Gate: readiness.New(detailFetcher, cfg.Site.BaseURL, readiness.Config{
			MaxAttempts: cfg.Readiness.MaxAttempts,
			Delay:       cfg.ReadinessDelay(),
		}, a.logger.Named("readiness")),
		Extractor: extract.New(a.logger.Named("extract")),
		Reviews: reviews.New(httpFetcher, reviews.Config{
			BaseURL:  cfg.Site.BaseURL,
			Path:     cfg.Site.ReviewPath,
			PageSize: cfg.Site.ReviewPageSize,
			Source:   cfg.Site.ReviewSource,
		}, a.logger.Named("reviews")),
	}, nil
}
