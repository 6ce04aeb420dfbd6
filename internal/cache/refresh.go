package cache

import (
	"context"
	"time"

	"github.com/rmgsl/mapa-od/internal/survey"
)

// RefreshStale reloads every loaded source whose table is older than maxAge.
// Sources that were never loaded are left for their first Get.
func (c *Cache) RefreshStale(ctx context.Context, maxAge time.Duration) map[string]error {
	failed := make(map[string]error)
	now := time.Now()
	for _, id := range c.IDs() {
		e, ok := c.entries.Load(id)
		if !ok {
			continue
		}
		e.mu.Lock()
		stale := isStale(e.table, maxAge, now)
		e.mu.Unlock()
		if !stale {
			continue
		}

		log.Infof("Source %s is older than %v, reloading", id, maxAge)
		if _, err := c.Reload(ctx, id); err != nil {
			failed[id] = err
		}
	}
	return failed
}

func isStale(table *survey.Table, maxAge time.Duration, now time.Time) bool {
	if table == nil || maxAge <= 0 {
		return false
	}
	return now.Sub(table.LoadedAt) > maxAge
}

// RunRefresher calls RefreshStale until ctx is cancelled, checking four
// times per maxAge
func (c *Cache) RunRefresher(ctx context.Context, maxAge time.Duration) {
	interval := maxAge / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Infof("Refreshing sources older than %v", maxAge)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for id, err := range c.RefreshStale(ctx, maxAge) {
				log.Warnf("Refresh of %s failed, keeping snapshot: %v", id, err)
			}
		}
	}
}
