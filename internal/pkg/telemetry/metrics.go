package telemetry

// Span names used for instrumentation.
const (
	SpanTileGenerate = "tile.generate"
	SpanTileEncode   = "tile.encode"
	SpanScanDataset  = "parquet.scan_dataset"
	SpanScanFile     = "parquet.scan_file"
)

// Span attribute keys.
const (
	AttrDataset    = "pqtiles.dataset"
	AttrTile       = "pqtiles.tile"
	AttrFile       = "pqtiles.file"
	AttrFiles      = "pqtiles.files"
	AttrPoints     = "pqtiles.points"
	AttrRowGroups  = "pqtiles.row_groups"
	AttrRowsPruned = "pqtiles.row_groups_pruned"
)
