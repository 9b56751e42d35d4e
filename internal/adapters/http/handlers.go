package http

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/pqtiles/internal/core/domain"
	"github.com/samirrijal/pqtiles/internal/pkg/logging"
)

const (
	formatMVT     = "mvt"
	formatGeoJSON = "geojson"
)

// TileHandler serves /tiles/:dataset/:z/:x/:y as a Mapbox Vector Tile.
//
// Coordinates that do not parse as unsigned integers are treated as 0. The
// y segment may carry a .pbf or .mvt suffix, or .geojson for the inspection
// view of the same selection.
func TileHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dataset := c.Params("dataset")
		y, format := splitFormat(c.Params("y"))
		addr := domain.TileAddress{
			Z: parseCoord(c.Params("z")),
			X: parseCoord(c.Params("x")),
			Y: parseCoord(y),
		}

		if format == formatGeoJSON {
			return geoJSONTile(c, deps, dataset, addr)
		}

		tile, err := deps.Tiles.GetTile(c.UserContext(), dataset, addr)
		if err != nil {
			logging.FromContext(c.UserContext()).Error("tile generation failed",
				"dataset", dataset, "tile", addr.String(), "error", err)
			return errFromDomain(c, err)
		}

		c.Set(fiber.HeaderContentType, domain.MediaTypeMVT)
		c.Set("X-Tile-Points", strconv.Itoa(tile.Points))
		if tile.Empty() {
			c.Set("Cache-Control", "no-cache")
		}
		return c.Status(fiber.StatusOK).Send(tile.Data)
	}
}

func geoJSONTile(c *fiber.Ctx, deps *Dependencies, dataset string, addr domain.TileAddress) error {
	points, bbox, err := deps.Tiles.Points(c.UserContext(), dataset, addr)
	if err != nil {
		return errFromDomain(c, err)
	}

	fc := geojson.NewFeatureCollection()
	fc.BBox = geojson.NewBBox(bbox.Bound())
	for _, p := range points {
		fc.Append(geojson.NewFeature(p.Point()))
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return errInternal(c, err.Error())
	}
	c.Set(fiber.HeaderContentType, "application/geo+json")
	return c.Send(data)
}

// splitFormat strips a known extension from the y segment.
func splitFormat(seg string) (string, string) {
	dot := strings.LastIndexByte(seg, '.')
	if dot < 0 {
		return seg, formatMVT
	}
	switch strings.ToLower(seg[dot+1:]) {
	case "pbf", "mvt":
		return seg[:dot], formatMVT
	case "geojson", "json":
		return seg[:dot], formatGeoJSON
	default:
		return seg, formatMVT
	}
}

func parseCoord(s string) uint32 {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// ListDatasetsHandler returns the registered datasets.
func ListDatasetsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(paginate(c, deps.Datasets.List()))
	}
}

// GetDatasetHandler returns a single dataset by name.
func GetDatasetHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("name")
		if name == "" {
			return errBadRequest(c, "dataset name is required")
		}
		ds, err := deps.Datasets.Get(name)
		if err != nil {
			return errNotFound(c, "dataset not found")
		}
		return c.JSON(ds)
	}
}
