// Package cache keeps one loaded survey table per source.
//
// Tables are loaded on first access and kept until Reload or Invalidate is
// called for that source. Concurrent first accesses share a single load.
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"

	"github.com/rmgsl/mapa-od/internal/survey"
)

var log = logrus.WithField("module", "cache")

type entry struct {
	mu      sync.Mutex
	table   *survey.Table
	lastErr error
	loads   int
}

// Cache holds the registered sources and their loaded tables
type Cache struct {
	sources *xsync.MapOf[string, survey.Source]
	entries *xsync.MapOf[string, *entry]
}

// New creates a cache over sources. Later sources replace earlier ones with
// the same ID.
func New(sources ...survey.Source) *Cache {
	c := &Cache{
		sources: xsync.NewMapOf[string, survey.Source](),
		entries: xsync.NewMapOf[string, *entry](),
	}
	for _, src := range sources {
		c.Register(src)
	}
	return c
}

// Register adds or replaces a source and drops any table loaded for its ID
func (c *Cache) Register(src survey.Source) {
	c.sources.Store(src.ID(), src)
	c.entries.Delete(src.ID())
}

// Source returns the registered source for id
func (c *Cache) Source(id string) (survey.Source, error) {
	src, ok := c.sources.Load(id)
	if !ok {
		return nil, &survey.SourceNotFoundError{ID: id}
	}
	return src, nil
}

// IDs returns the registered source IDs, sorted
func (c *Cache) IDs() []string {
	ids := make([]string, 0, c.sources.Size())
	c.sources.Range(func(id string, _ survey.Source) bool {
		ids = append(ids, id)
		return true
	})
	sort.Strings(ids)
	return ids
}

func (c *Cache) entry(id string) *entry {
	e, _ := c.entries.LoadOrStore(id, &entry{})
	return e
}

// Get returns the cached table for id, loading it on first access. A failed
// load is not cached; the next Get tries again.
func (c *Cache) Get(ctx context.Context, id string) (*survey.Table, error) {
	src, err := c.Source(id)
	if err != nil {
		return nil, err
	}

	e := c.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.table != nil {
		return e.table, nil
	}
	return c.load(ctx, src, e)
}

// Reload loads id again and replaces the cached table. When the load fails
// the previous table stays in place and the error is returned.
func (c *Cache) Reload(ctx context.Context, id string) (*survey.Table, error) {
	src, err := c.Source(id)
	if err != nil {
		return nil, err
	}

	e := c.entry(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	return c.load(ctx, src, e)
}

// ReloadAll reloads every registered source and returns the failures by ID
func (c *Cache) ReloadAll(ctx context.Context) map[string]error {
	failed := make(map[string]error)
	for _, id := range c.IDs() {
		if _, err := c.Reload(ctx, id); err != nil {
			failed[id] = err
		}
	}
	return failed
}

// Invalidate drops the cached table for id. The next Get loads it again.
func (c *Cache) Invalidate(id string) {
	c.entries.Delete(id)
	log.Infof("Invalidated survey source %s", id)
}

func (c *Cache) load(ctx context.Context, src survey.Source, e *entry) (*survey.Table, error) {
	start := time.Now()
	table, err := src.Load(ctx)
	e.loads++
	if err != nil {
		e.lastErr = err
		log.Errorf("Failed to load survey source %s: %v", src.ID(), err)
		return nil, err
	}
	table.SourceID = src.ID()
	e.table = table
	e.lastErr = nil
	log.Infof("Loaded survey source %s: %d records in %v (snapshot %s)",
		src.ID(), table.Len(), time.Since(start).Round(time.Millisecond), table.SnapshotID)
	return table, nil
}

// Status describes a source for listings and health checks
type Status struct {
	ID         string     `json:"id"`
	Location   string     `json:"location"`
	Loaded     bool       `json:"loaded"`
	Loading    bool       `json:"loading,omitempty"`
	SnapshotID string     `json:"snapshotId,omitempty"`
	LoadedAt   *time.Time `json:"loadedAt,omitempty"`
	Records    int        `json:"records"`
	Loads      int        `json:"loads"`
	Error      string     `json:"error,omitempty"`
}

// Status reports every registered source without triggering or waiting
// for loads
func (c *Cache) Status() []Status {
	ids := c.IDs()
	statuses := make([]Status, 0, len(ids))
	for _, id := range ids {
		src, ok := c.sources.Load(id)
		if !ok {
			continue
		}
		s := Status{ID: id, Location: src.Location()}
		if e, ok := c.entries.Load(id); ok {
			if !e.mu.TryLock() {
				s.Loading = true
				statuses = append(statuses, s)
				continue
			}
			if e.table != nil {
				loadedAt := e.table.LoadedAt
				s.Loaded = true
				s.SnapshotID = e.table.SnapshotID
				s.LoadedAt = &loadedAt
				s.Records = e.table.Len()
			}
			if e.lastErr != nil {
				s.Error = e.lastErr.Error()
			}
			s.Loads = e.loads
			e.mu.Unlock()
		}
		statuses = append(statuses, s)
	}
	return statuses
}
