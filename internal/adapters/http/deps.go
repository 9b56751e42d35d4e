package http

import (
	"time"

	"github.com/samirrijal/pqtiles/internal/core/usecases"
)

// DefaultTileTimeout bounds tile generation when Dependencies.TileTimeout is unset.
const DefaultTileTimeout = 20 * time.Second

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Tiles       *usecases.TileService
	Datasets    *usecases.DatasetService
	TileTimeout time.Duration
}

func (d *Dependencies) tileTimeout() time.Duration {
	if d.TileTimeout <= 0 {
		return DefaultTileTimeout
	}
	return d.TileTimeout
}
