package usecases

import (
	"fmt"

	"github.com/samirrijal/pqtiles/internal/core/domain"
	"github.com/samirrijal/pqtiles/internal/core/ports"
)

// DatasetService exposes the registered datasets.
type DatasetService struct {
	registry ports.DatasetRegistry
}

// NewDatasetService creates a new DatasetService.
func NewDatasetService(registry ports.DatasetRegistry) *DatasetService {
	return &DatasetService{registry: registry}
}

// List returns all datasets in descriptor order.
func (s *DatasetService) List() []domain.DatasetDescriptor {
	return s.registry.List()
}

// Get returns a dataset by name.
func (s *DatasetService) Get(name string) (*domain.DatasetDescriptor, error) {
	ds, ok := s.registry.Find(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrDatasetNotFound, name)
	}
	return &ds, nil
}
