package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/samirrijal/pqtiles/internal/adapters/mvt"
	"github.com/samirrijal/pqtiles/internal/adapters/parquet"
	"github.com/samirrijal/pqtiles/internal/adapters/registry"
	"github.com/samirrijal/pqtiles/internal/core/domain"
	"github.com/samirrijal/pqtiles/internal/core/usecases"
	"github.com/samirrijal/pqtiles/internal/pkg/config"
	"github.com/samirrijal/pqtiles/internal/pkg/logging"
)

const usage = `usage:
  tiler check                          validate the dataset descriptor file and list data files
  tiler render <dataset> <z> <x> <y>   write one tile to stdout
  tiler inspect <file.pbf|->           decode a tile and print per-layer stats`

func main() {
	if len(os.Args) < 2 {
		log.Fatal(usage)
	}

	// inspect works on tile bytes alone and needs no datasets.
	if os.Args[1] == "inspect" {
		if len(os.Args) != 3 {
			log.Fatal(usage)
		}
		runInspect(os.Args[2])
		return
	}

	cfg, err := config.Load("pqtiles-tiler")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, "text")

	reg := registry.New(nil)
	if err := reg.Reload(cfg.Datasets.DescriptorPath()); err != nil {
		log.Fatalf("datasets: %v", err)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "check":
		runCheck(ctx, reg)
	case "render":
		if len(os.Args) != 6 {
			log.Fatal(usage)
		}
		runRender(ctx, cfg, reg, os.Args[2], os.Args[3:])
	default:
		log.Fatalf("unknown command: %s\n%s", os.Args[1], usage)
	}
}

func runCheck(ctx context.Context, reg *registry.Registry) {
	failed := false
	for _, ds := range reg.List() {
		files, err := parquet.ListFiles(ctx, ds.Directory)
		if err != nil {
			fmt.Printf("FAIL %s: %v\n", ds.Name, err)
			failed = true
			continue
		}
		fmt.Printf("OK   %s: %d files in %s (lon=%s lat=%s)\n", ds.Name, len(files), ds.Directory, ds.LonColumn, ds.LatColumn)
	}
	if failed {
		os.Exit(1)
	}
}

func runRender(ctx context.Context, cfg *config.Config, reg *registry.Registry, dataset string, zxy []string) {
	var coords [3]uint32
	for i, s := range zxy {
		v, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			log.Fatalf("invalid tile coordinate %q: %v", s, err)
		}
		coords[i] = uint32(v)
	}

	encoder, err := mvt.NewEncoder(cfg.Tiles.Extent)
	if err != nil {
		log.Fatalf("encoder: %v", err)
	}
	scanner := parquet.NewScanner(parquet.DirLister{}, parquet.WithConcurrency(cfg.Tiles.ScanConcurrency))

	// Offline rendering always reports failures.
	svc := usecases.NewTileService(reg, scanner, encoder, usecases.TileOptions{
		Policy:    domain.FailFast,
		MaxZoom:   cfg.Tiles.MaxZoom,
		MaxPoints: cfg.Tiles.MaxPoints,
	})

	if _, ok := reg.Find(dataset); !ok {
		log.Fatalf("unknown dataset: %s", dataset)
	}
	tile, err := svc.GetTile(ctx, dataset, domain.TileAddress{Z: coords[0], X: coords[1], Y: coords[2]})
	if err != nil {
		log.Fatalf("render: %v", err)
	}

	if _, err := os.Stdout.Write(tile.Data); err != nil {
		log.Fatalf("write: %v", err)
	}
	fmt.Fprintf(os.Stderr, "%s/%s: %d points, %d bytes\n", dataset, tile.Address, tile.Points, len(tile.Data))

	// Read the payload back so a malformed tile fails the render.
	decoded, err := mvt.Decode(tile.Data)
	if err != nil {
		log.Fatalf("decode rendered tile: %v", err)
	}
	if bad := writeStats(os.Stderr, decoded); bad > 0 {
		log.Fatalf("render: %d vertices outside the tile extent", bad)
	}
}

func runInspect(path string) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		log.Fatalf("read: %v", err)
	}

	tile, err := mvt.Decode(data)
	if err != nil {
		log.Fatalf("decode: %v", err)
	}
	fmt.Printf("%d bytes, %d layers\n", len(data), len(tile.Layers))
	if bad := writeStats(os.Stdout, tile); bad > 0 {
		os.Exit(1)
	}
}

// writeStats prints one line per layer and returns the number of vertices
// found outside their layer's extent.
func writeStats(w io.Writer, tile *mvt.Tile) int {
	bad := 0
	for _, s := range tile.Stats() {
		types := make([]string, 0, len(s.Types))
		for typ, n := range s.Types {
			types = append(types, fmt.Sprintf("%s=%d", typ, n))
		}
		slices.Sort(types)
		fmt.Fprintf(w, "  layer %q v%d extent=%d features=%d vertices=%d [%s]\n",
			s.Name, s.Version, s.Extent, s.Features, s.Vertices, strings.Join(types, " "))
		if s.OutOfExtent > 0 {
			fmt.Fprintf(w, "  layer %q: %d vertices outside extent\n", s.Name, s.OutOfExtent)
		}
		bad += s.OutOfExtent
	}
	return bad
}
