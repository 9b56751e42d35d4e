package registry

import (
	"context"

	"github.com/samirrijal/pqtiles/internal/core/domain"
	"github.com/samirrijal/pqtiles/internal/core/ports"
	"github.com/samirrijal/pqtiles/internal/pkg/metrics"
)

// CachedLister memoizes a FileLister per registry snapshot. Replacing the
// registry snapshot invalidates every cached list. Failed listings are not
// cached. Returned slices are shared and must not be modified.
type CachedLister struct {
	reg  *Registry
	next ports.FileLister
}

// CachedFiles wraps next with a cache bound to r's snapshots.
func (r *Registry) CachedFiles(next ports.FileLister) *CachedLister {
	return &CachedLister{reg: r, next: next}
}

// Files implements ports.FileLister.
func (c *CachedLister) Files(ctx context.Context, ds domain.DatasetDescriptor) ([]string, error) {
	snap := c.reg.current.Load()
	key := ds.Name + "\x00" + ds.Directory

	if v, ok := snap.files.Load(key); ok {
		metrics.FileListCache.WithLabelValues("hit").Inc()
		return v.([]string), nil
	}
	metrics.FileListCache.WithLabelValues("miss").Inc()

	// The walk is shared by every caller waiting on key, so it runs detached
	// from any single caller's cancellation; each caller still stops waiting
	// when its own ctx ends.
	walkCtx := context.WithoutCancel(ctx)
	ch := snap.flight.DoChan(key, func() (any, error) {
		files, err := c.next.Files(walkCtx, ds)
		if err != nil {
			return nil, err
		}
		snap.files.Store(key, files)
		return files, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]string), nil
	}
}
