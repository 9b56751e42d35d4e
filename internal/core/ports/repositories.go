package ports

import (
	"context"

	"github.com/samirrijal/pqtiles/internal/core/domain"
)

// DatasetRegistry is a read-only view of the known datasets.
// Implementations must be safe for concurrent readers.
type DatasetRegistry interface {
	// Find returns the first descriptor registered under name.
	Find(name string) (domain.DatasetDescriptor, bool)
	List() []domain.DatasetDescriptor
}

// PointScanner selects the points of a dataset that fall inside a box.
type PointScanner interface {
	Scan(ctx context.Context, ds domain.DatasetDescriptor, bbox domain.BoundingBox) ([]domain.GeoPoint, error)
}

// FileLister enumerates the data files stored under a dataset's directory.
type FileLister interface {
	Files(ctx context.Context, ds domain.DatasetDescriptor) ([]string, error)
}
