package dataset

import (
	"bytes"
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/jon4hz/vaxboard/internal/cache"
	"golang.org/x/sync/singleflight"
)

const snapshotKey = "table"

// Status describes the state of the dataset cache.
type Status struct {
	Populated bool  `json:"populated"`
	Rows      int   `json:"rows"`
	LastLoad  *Load `json:"lastLoad,omitempty"`
}

// Cache fetches the remote document once and serves reads from SQLite afterwards.
type Cache struct {
	store     *Store
	fetcher   Fetcher
	sourceURL string
	snapshot  *cache.PrefixedCache[Table]
	group     singleflight.Group
}

// NewCache creates a dataset cache. snapshot may be nil, reads then always hit SQLite.
func NewCache(store *Store, fetcher Fetcher, sourceURL string, snapshot *cache.PrefixedCache[Table]) *Cache {
	return &Cache{
		store:     store,
		fetcher:   fetcher,
		sourceURL: sourceURL,
		snapshot:  snapshot,
	}
}

// IsPopulated reports whether the data table holds at least one row.
func (c *Cache) IsPopulated(ctx context.Context) (bool, error) {
	return c.store.IsPopulated(ctx)
}

// RefreshIfEmpty loads the remote document into the data table unless it already holds rows.
// A populated table costs a single count and no network I/O. The returned count is the
// number of rows stored after the call.
func (c *Cache) RefreshIfEmpty(ctx context.Context) (int, error) {
	n, err := c.store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Debug("dataset already populated, skipping fetch", "rows", n)
		return n, nil
	}

	v, err, _ := c.group.Do("refresh", func() (any, error) {
		return c.refresh(ctx)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (c *Cache) refresh(ctx context.Context) (int, error) {
	// a previous flight may have finished between the count and the Do call
	n, err := c.store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return n, nil
	}

	runID := uuid.NewString()
	log.Info("fetching dataset", "url", c.sourceURL, "run", runID)

	body, err := c.fetcher.Fetch(ctx, c.sourceURL)
	if err != nil {
		return 0, err
	}

	table, err := Parse(bytes.NewReader(body))
	if err != nil {
		return 0, err
	}

	count, replaced, err := c.store.ReplaceIfEmpty(ctx, table, c.sourceURL, runID)
	if err != nil {
		return 0, err
	}
	if !replaced {
		log.Info("dataset was loaded concurrently, keeping existing rows", "rows", count, "run", runID)
		return count, nil
	}

	c.invalidate(ctx)
	log.Info("dataset loaded", "rows", count, "columns", len(table.Columns), "run", runID)
	return count, nil
}

func (c *Cache) invalidate(ctx context.Context) {
	if c.snapshot == nil {
		return
	}
	if err := c.snapshot.Delete(ctx, snapshotKey); err != nil {
		log.Warn("failed to invalidate dataset snapshot", "error", err)
	}
}

// Table returns the stored table. It never fetches.
func (c *Cache) Table(ctx context.Context) (*Table, error) {
	if c.snapshot != nil {
		cached, err := c.snapshot.Get(ctx, snapshotKey)
		switch {
		case err == nil && len(cached.Rows) > 0:
			return &cached, nil
		case err != nil && !cache.IsNotFound(err):
			log.Warn("failed to read dataset snapshot, falling back to database", "error", err)
		}
	}

	table, err := c.store.Table(ctx)
	if err != nil {
		return nil, err
	}

	if c.snapshot != nil && len(table.Rows) > 0 {
		if err := c.snapshot.Set(ctx, snapshotKey, *table); err != nil {
			log.Warn("failed to cache dataset snapshot", "error", err)
		}
	}
	return table, nil
}

// ReadAll returns every stored row in storage order. It never fetches.
func (c *Cache) ReadAll(ctx context.Context) ([]Row, error) {
	table, err := c.Table(ctx)
	if err != nil {
		return nil, err
	}
	return table.Rows, nil
}

// Status returns the population state and the last successful load.
func (c *Cache) Status(ctx context.Context) (*Status, error) {
	n, err := c.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	load, err := c.store.LastLoad(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{Populated: n > 0, Rows: n, LastLoad: load}, nil
}

// String implements fmt.Stringer for log output.
func (s Status) String() string {
	if !s.Populated {
		return "empty"
	}
	return fmt.Sprintf("%d rows", s.Rows)
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
