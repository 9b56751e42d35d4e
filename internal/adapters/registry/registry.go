// Package registry holds the set of known datasets as an immutable snapshot
// that can be swapped atomically while requests read it.
package registry

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/pqtiles/internal/core/domain"
	"github.com/samirrijal/pqtiles/internal/pkg/metrics"
)

type snapshot struct {
	datasets []domain.DatasetDescriptor
	index    map[string]int

	// file lists memoized for the lifetime of this snapshot
	files  sync.Map
	flight singleflight.Group
}

func newSnapshot(datasets []domain.DatasetDescriptor) *snapshot {
	s := &snapshot{
		datasets: append([]domain.DatasetDescriptor(nil), datasets...),
		index:    make(map[string]int, len(datasets)),
	}
	for i, ds := range s.datasets {
		if first, dup := s.index[ds.Name]; dup {
			slog.Warn("duplicate dataset name, keeping first",
				"dataset", ds.Name, "kept_directory", s.datasets[first].Directory, "ignored_directory", ds.Directory)
			continue
		}
		s.index[ds.Name] = i
	}
	return s
}

// Registry implements ports.DatasetRegistry. Readers never block; Replace
// publishes a whole new snapshot.
type Registry struct {
	current atomic.Pointer[snapshot]
}

// New creates a Registry holding datasets.
func New(datasets []domain.DatasetDescriptor) *Registry {
	r := &Registry{}
	r.Replace(datasets)
	return r
}

// Replace swaps in a new set of datasets. In-flight readers keep the
// snapshot they already loaded. Cached file lists are dropped.
func (r *Registry) Replace(datasets []domain.DatasetDescriptor) {
	r.current.Store(newSnapshot(datasets))
	metrics.RegistryDatasets.Set(float64(len(datasets)))
}

// Reload reads the descriptor file at path and replaces the snapshot.
// On error the current snapshot is left untouched.
func (r *Registry) Reload(path string) error {
	datasets, err := LoadFile(path)
	if err != nil {
		return err
	}
	r.Replace(datasets)
	slog.Info("dataset registry loaded", "path", path, "datasets", len(datasets))
	return nil
}

// Find returns the first dataset registered under name.
func (r *Registry) Find(name string) (domain.DatasetDescriptor, bool) {
	s := r.current.Load()
	i, ok := s.index[name]
	if !ok {
		return domain.DatasetDescriptor{}, false
	}
	return s.datasets[i], true
}

// List returns the datasets in descriptor order, duplicates included.
func (r *Registry) List() []domain.DatasetDescriptor {
	s := r.current.Load()
	return append([]domain.DatasetDescriptor(nil), s.datasets...)
}

// Len is the number of descriptors in the current snapshot.
func (r *Registry) Len() int {
	return len(r.current.Load().datasets)
}
