package opensearch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	maxConcurrentVersionFetches = 8
	versionFailureTTL           = 30 * time.Second
)

// VersionCache remembers the version reported by each cluster. Lookups fetch
// on miss; Refresh re-reads every cluster. A failed fetch is remembered for
// versionFailureTTL so an unreachable cluster is not re-queried on every
// call. The lock is never held across I/O.
type VersionCache struct {
	mu       sync.RWMutex
	versions map[string]string
	failures map[string]versionFailure
	logger   *slog.Logger
	now      func() time.Time
}

type versionFailure struct {
	err error
	at  time.Time
}

// NewVersionCache returns an empty cache.
func NewVersionCache(logger *slog.Logger) *VersionCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &VersionCache{
		versions: make(map[string]string),
		failures: make(map[string]versionFailure),
		logger:   logger,
		now:      time.Now,
	}
}

// Version returns the cached version of client's cluster, fetching it once on miss.
func (c *VersionCache) Version(ctx context.Context, client *Client) (string, error) {
	c.mu.RLock()
	version, ok := c.versions[client.Name()]
	failure, failed := c.failures[client.Name()]
	c.mu.RUnlock()
	if ok {
		return version, nil
	}
	if failed && c.now().Sub(failure.at) < versionFailureTTL {
		return "", failure.err
	}

	version, err := client.Version(ctx)
	if err != nil {
		err = fmt.Errorf("opensearch: version of cluster %q: %w", client.Name(), err)
		// A canceled caller says nothing about the cluster.
		if ctx.Err() == nil {
			c.fail(client.Name(), err)
		}
		return "", err
	}
	c.store(client.Name(), version)
	return version, nil
}

// Cached returns the version without fetching.
func (c *VersionCache) Cached(cluster string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	version, ok := c.versions[cluster]
	return version, ok
}

// Refresh fetches every cluster's version concurrently. Clusters that fail
// keep their previous entry; the first failure is returned.
func (c *VersionCache) Refresh(ctx context.Context, clients []*Client) error {
	var g errgroup.Group
	g.SetLimit(maxConcurrentVersionFetches)
	for _, client := range clients {
		g.Go(func() error {
			version, err := client.Version(ctx)
			if err != nil {
				c.logger.Warn("fetching cluster version failed", "cluster", client.Name(), "error", err)
				err = fmt.Errorf("opensearch: version of cluster %q: %w", client.Name(), err)
				if ctx.Err() == nil {
					c.fail(client.Name(), err)
				}
				return err
			}
			c.store(client.Name(), version)
			c.logger.Debug("cluster version refreshed", "cluster", client.Name(), "version", version)
			return nil
		})
	}
	return g.Wait()
}

func (c *VersionCache) store(cluster, version string) {
	c.mu.Lock()
	c.versions[cluster] = version
	delete(c.failures, cluster)
	c.mu.Unlock()
}

func (c *VersionCache) fail(cluster string, err error) {
	c.mu.Lock()
	c.failures[cluster] = versionFailure{err: err, at: c.now()}
	c.mu.Unlock()
}
