package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/eko/gocache/lib/v4/store"
	"github.com/jon4hz/vaxboard/internal/cache"
	"github.com/jon4hz/vaxboard/internal/config"
	"github.com/jon4hz/vaxboard/internal/database"
	"github.com/jon4hz/vaxboard/internal/dataset"
	"github.com/jon4hz/vaxboard/internal/geo"
	"github.com/jon4hz/vaxboard/internal/scheduler"
	"golang.org/x/sync/errgroup"
)

// Engine owns the local stores of vaxboard and keeps the dataset cache filled.
type Engine struct {
	cfg        *config.Config
	db         database.DB
	dataset    *dataset.Cache
	boundaries *geo.Boundaries
	sources    *dataset.Sources
	scheduler  *scheduler.Scheduler

	snapshotCache *cache.PrefixedCache[dataset.Table]
	boundaryCache *cache.PrefixedCache[json.RawMessage]
}

// New creates a new Engine instance. The credential store is owned by the caller.
func New(cfg *config.Config, db database.DB) (*Engine, error) {
	return NewWithFetcher(cfg, db, dataset.NewHTTPFetcher(cfg.Dataset.Timeout))
}

// NewWithFetcher creates a new Engine that downloads remote documents with fetcher.
func NewWithFetcher(cfg *config.Config, db database.DB, fetcher dataset.Fetcher) (*Engine, error) {
	sched, err := scheduler.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	datasetStore, err := dataset.NewStore(cfg.Database.DatasetPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset store: %w", err)
	}

	backend := cache.New(cfg.Cache)
	ttl := store.WithExpiration(cfg.Cache.TTL)
	snapshotCache := cache.NewPrefixedCache[dataset.Table](backend, cfg.Cache.Type, cache.DatasetCachePrefix, ttl)
	boundaryCache := cache.NewPrefixedCache[json.RawMessage](backend, cfg.Cache.Type, cache.BoundaryCachePrefix, ttl)

	sources := make([]dataset.Source, len(cfg.Dataset.ExtraSources))
	for i, src := range cfg.Dataset.ExtraSources {
		sources[i] = dataset.Source{Label: src.Label, URL: src.URL}
	}

	engine := &Engine{
		cfg:           cfg,
		db:            db,
		dataset:       dataset.NewCache(datasetStore, fetcher, cfg.Dataset.SourceURL, snapshotCache),
		boundaries:    geo.NewBoundaries(fetcher, cfg.Dataset.GeoJSONURL, boundaryCache),
		sources:       dataset.NewSources(fetcher, sources),
		scheduler:     sched,
		snapshotCache: snapshotCache,
		boundaryCache: boundaryCache,
	}

	if err := engine.setupJobs(); err != nil {
		_ = datasetStore.Close()
		return nil, fmt.Errorf("failed to setup jobs: %w", err)
	}

	return engine, nil
}

// Users returns the credential store.
func (e *Engine) Users() database.DB {
	return e.db
}

// Dataset returns the dataset cache.
func (e *Engine) Dataset() *dataset.Cache {
	return e.dataset
}

// Boundaries returns the city boundary lookup.
func (e *Engine) Boundaries() *geo.Boundaries {
	return e.boundaries
}

// Sources returns the availability of the auxiliary documents.
func (e *Engine) Sources() *dataset.Sources {
	return e.sources
}

// GetScheduler returns the scheduler instance for API access.
func (e *Engine) GetScheduler() *scheduler.Scheduler {
	return e.scheduler
}

// Warm fills the dataset cache and the boundary document and checks the
// auxiliary sources concurrently.
// Failures are logged and retried later, they never stop the engine.
func (e *Engine) Warm(ctx context.Context) {
	var g errgroup.Group
	g.Go(func() error {
		if _, err := e.RefreshDataset(ctx); err != nil {
			log.Warn("Dataset is not available yet, will retry", "error", err, "schedule", e.cfg.Dataset.RetrySchedule)
		}
		return nil
	})
	g.Go(func() error {
		if err := e.boundaries.Warm(ctx); err != nil {
			log.Warn("Failed to download boundary document", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		e.sources.Check(ctx)
		return nil
	})
	_ = g.Wait()
}

// RefreshDataset loads the remote dataset if the local cache is still empty.
func (e *Engine) RefreshDataset(ctx context.Context) (int, error) {
	n, err := e.dataset.RefreshIfEmpty(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to refresh dataset: %w", err)
	}
	return n, nil
}

// Run starts the background jobs and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	e.scheduler.Start()
	e.Warm(ctx)

	<-ctx.Done()
	return nil
}

// Close stops the engine and closes the dataset store.
func (e *Engine) Close() error {
	err := e.scheduler.Stop()
	if cerr := e.dataset.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// GetCacheStats returns the hit and miss counters of the read caches.
func (e *Engine) GetCacheStats() []*cache.Stats {
	return []*cache.Stats{
		{
			Stats:     e.snapshotCache.GetStats(),
			CacheName: "dataset",
		},
		{
			Stats:     e.boundaryCache.GetStats(),
			CacheName: "boundary",
		},
	}
}
