// Package overlay implements the overlay engine: parsing a
// segmentation protobuf into cells and tissue tiles, deriving raster
// and vector artifacts from it, and serving those artifacts by
// content-addressed overlay id.
package overlay

import "errors"

var (
	ErrFileTooLarge       = errors.New("overlay: payload exceeds maximum size")
	ErrTooManyCells       = errors.New("overlay: cell count exceeds maximum")
	ErrTooManyTiles       = errors.New("overlay: tile count exceeds maximum")
	ErrUnsupportedFormat  = errors.New("overlay: malformed or unsupported protobuf")
	ErrNotFound           = errors.New("overlay: not found")
	ErrSessionNotFound    = errors.New("overlay: session not found")
	ErrTileNotFound       = errors.New("overlay: tile not found")
)

// Limits, per specification §4.2.
const (
	MaxPayloadBytes = 2 << 30 // 2 GiB
	MaxCells        = 50_000_000
	MaxTiles        = 1_000_000
)

const (
	RasterTileSize = 256
	VectorChunkCap = 10000
)

// Point is a 2D floating point coordinate, used for tile-local
// polygon vertices before they are made absolute.
type Point struct {
	X, Y float32
}

// RawTile is one source tile as read off the wire: its grid position
// at the model's inference level, its pixel dimensions, the cell
// polygons detected within it (tile-local coordinates), and its
// tissue classification grid.
type RawTile struct {
	X, Y   int64
	Level  int64
	Width  int64
	Height int64
	Cells  []RawCellPolygon
	Tissue TissueMap
}

// RawCellPolygon is one detected cell as read off the wire, before
// class-id assignment or coordinate transformation.
type RawCellPolygon struct {
	CellType   string
	Confidence float32
	Vertices   []Point
}

// TissueMap is a per-pixel class-id grid, one byte per source pixel;
// 255 marks no-data.
type TissueMap struct {
	Width  int64
	Height int64
	Data   []byte
}

// SlideSegmentationData is the fully-decoded wire payload.
type SlideSegmentationData struct {
	SlideID            string
	SlidePath          string
	MPP                float32
	MaxLevel           int64
	CellModelName      string
	TissueModelName    string
	TissueClassMapping map[uint32]string
	Tiles              []RawTile
}

// Cell is one parsed, absolute-coordinate cell, stored once in a flat
// slice and referenced by index everywhere else (chunks, the spatial
// index).
type Cell struct {
	ClassID    uint32
	Confidence float32
	MinX, MinY float32
	MaxX, MaxY float32
	CentroidX  float32
	CentroidY  float32
	// Vertices holds absolute slide-pixel coordinates as interleaved
	// (x, y) pairs, truncated to i32 — never narrowed further.
	Vertices []int32
}

// CellClass is a discovered cell type, assigned sequential ids in
// order of first sighting.
type CellClass struct {
	ID    uint32
	Name  string
	Color string
}

// TissueClass is a tissue class as declared in the wire payload's
// class mapping.
type TissueClass struct {
	ID    uint32
	Name  string
	Color string
}

// TissueTile is one 224x224 (or source-native) class grid, not yet
// resampled to the served 256x256 raster.
type TissueTile struct {
	TileX, TileY int
	ClassData    []byte
}
