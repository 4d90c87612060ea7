package overlay

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pathcollab/pathcollab/internal/spatial"
)

// RasterTile holds the 256x256 RGBA pixels derived from one tissue
// classification grid.
type RasterTile struct {
	TileX, TileY int
	Pixels       []byte // len == RasterTileSize*RasterTileSize*4
}

type tileKey struct {
	level, x, y int
}

// DerivedOverlay is the immutable artifact produced by Derive: cells
// stored once in a flat slice, raster tiles, the spatial index over
// the cells, and the content hash that identifies this overlay.
type DerivedOverlay struct {
	ContentSHA256 string
	SlideID       string
	CellModel     string
	TissueModel   string
	TileSize      int
	Levels        int

	Cells        []Cell
	CellClasses  []CellClass
	TissueClasses []TissueClass

	raster map[tileKey]RasterTile
	index  *spatial.Index
}

// Derive parses raw bytes into a DerivedOverlay, enforcing cfg's
// limits. levels bounds how many pyramid levels the spatial index's
// tile-bin map is built for.
func Derive(raw []byte, cfg ParseConfig, levels int) (*DerivedOverlay, error) {
	sum := sha256.Sum256(raw)
	contentSHA256 := hex.EncodeToString(sum[:])

	data, err := Parse(raw, cfg)
	if err != nil {
		return nil, err
	}

	classes := newClassTable()
	var cells []Cell
	raster := make(map[tileKey]RasterTile, len(data.Tiles))

	for _, tile := range data.Tiles {
		cells = append(cells, absoluteCells(tile, data.MaxLevel, classes)...)

		if len(tile.Tissue.Data) > 0 {
			rt := resampleTissue(tile.Tissue, int(tile.X), int(tile.Y))
			// Tissue maps are stored at level 0 regardless of the
			// inference level the tile was captured at: the serving
			// API exposes a flat level-0 tile grid for tissue.
			raster[tileKey{level: 0, x: int(tile.X), y: int(tile.Y)}] = rt
		}
	}

	bounds := make([]spatial.CellBounds, len(cells))
	for i, c := range cells {
		bounds[i] = spatial.CellBounds{
			Index: i, MinX: float64(c.MinX), MinY: float64(c.MinY),
			MaxX: float64(c.MaxX), MaxY: float64(c.MaxY),
			CentroidX: float64(c.CentroidX), CentroidY: float64(c.CentroidY),
		}
	}

	tissueClasses := make([]TissueClass, 0, len(data.TissueClassMapping))
	for id, name := range data.TissueClassMapping {
		tissueClasses = append(tissueClasses, TissueClass{ID: id, Name: name, Color: defaultTissueColor(id)})
	}

	return &DerivedOverlay{
		ContentSHA256: contentSHA256,
		SlideID:       data.SlideID,
		CellModel:     data.CellModelName,
		TissueModel:   data.TissueModelName,
		TileSize:      RasterTileSize,
		Levels:        levels,
		Cells:         cells,
		CellClasses:   classes.classes(),
		TissueClasses: tissueClasses,
		raster:        raster,
		index:         spatial.Build(bounds, RasterTileSize, levels),
	}, nil
}

// RasterTile returns the derived RGBA bytes for (level, x, y), or
// false if none were derived for that position.
func (o *DerivedOverlay) RasterTile(level, x, y int) ([]byte, bool) {
	rt, ok := o.raster[tileKey{level: level, x: x, y: y}]
	if !ok {
		return nil, false
	}
	return rt.Pixels, true
}

// VectorChunk returns the (truncated) set of cells binned at (level,
// x, y), per the specification's 10,000-cell-per-tile cap.
func (o *DerivedOverlay) VectorChunk(level, x, y int) []Cell {
	indices := o.index.QueryTile(level, x, y)
	if len(indices) > VectorChunkCap {
		indices = indices[:VectorChunkCap]
	}
	out := make([]Cell, len(indices))
	for i, idx := range indices {
		out[i] = o.Cells[idx]
	}
	return out
}

// QueryViewport returns every cell intersecting the given bounds, up
// to limit (0 uses the spatial index default).
func (o *DerivedOverlay) QueryViewport(minX, minY, maxX, maxY float64, limit int) []Cell {
	indices := o.index.QueryViewport(minX, minY, maxX, maxY, limit)
	out := make([]Cell, len(indices))
	for i, idx := range indices {
		out[i] = o.Cells[idx]
	}
	return out
}

func tissueSrcDim(raw TissueMap) (int, int) {
	if raw.Width > 0 && raw.Height > 0 {
		return int(raw.Width), int(raw.Height)
	}
	// §3: TissueTile is a 224x224 grid when dimensions aren't carried
	// explicitly in the wire payload.
	return 224, 224
}

// resampleTissue nearest-neighbor resamples a source class-id grid to
// the served 256x256 RGBA tile, mapping class byte 255 to fully
// transparent no-data.
func resampleTissue(raw TissueMap, tileX, tileY int) RasterTile {
	srcW, srcH := tissueSrcDim(raw)
	const dstW, dstH = RasterTileSize, RasterTileSize

	pixels := make([]byte, dstW*dstH*4)
	for dy := 0; dy < dstH; dy++ {
		sy := dy * srcH / dstH
		for dx := 0; dx < dstW; dx++ {
			sx := dx * srcW / dstW
			classID := classAt(raw.Data, sx, sy, srcW, srcH)

			var c [4]uint8
			if classID == 255 {
				c = tissuePalette[0]
			} else {
				c = paletteFor(classID)
			}
			off := (dy*dstW + dx) * 4
			pixels[off], pixels[off+1], pixels[off+2], pixels[off+3] = c[0], c[1], c[2], c[3]
		}
	}
	return RasterTile{TileX: tileX, TileY: tileY, Pixels: pixels}
}

func classAt(data []byte, x, y, w, h int) byte {
	if x < 0 || y < 0 || x >= w || y >= h {
		return 255
	}
	idx := y*w + x
	if idx >= len(data) {
		return 255
	}
	return data[idx]
}

func paletteFor(classID byte) [4]uint8 {
	idx := (int(classID) % 8) + 1
	return tissuePalette[idx]
}
