// Package spatial implements the overlay's spatial index: a tile-bin
// map for exact, chunk-aligned lookups and an R-tree for free-form
// viewport queries, both built once over a fixed set of cells and
// never mutated afterward.
package spatial

import (
	"github.com/dhconnelly/rtreego"
)

// DefaultViewportLimit bounds query_viewport results absent an
// explicit caller limit.
const DefaultViewportLimit = 10000

// tileKey identifies one (level, tile_x, tile_y) bin.
type tileKey struct {
	level int
	x     int
	y     int
}

// cellRef wraps a cell index so it can be inserted into the R-tree;
// rtreego dispatches on the Spatial interface via Bounds().
type cellRef struct {
	index int
	rect  rtreego.Rect
}

func (c *cellRef) Bounds() rtreego.Rect { return c.rect }

// Index is the combined tile-bin + R-tree spatial index over one
// overlay's cell set. Cells themselves are never copied into the
// index: every result is an index into the caller's flat cell slice,
// per the arena-addressing convention used throughout the overlay
// engine.
type Index struct {
	bins map[tileKey][]int
	tree *rtreego.Rtree
}

// CellBounds describes the inputs the index needs per cell: its flat
// index and its bounding box in absolute slide pixel coordinates.
type CellBounds struct {
	Index              int
	MinX, MinY         float64
	MaxX, MaxY         float64
	CentroidX, CentroidY float64
}

// Build bulk-loads an Index over cells. tileSize and levels describe
// the pyramid the tile-bin map is built for: a cell is binned into
// level L's map by floor(centroid / (tileSize * 2^L)).
func Build(cells []CellBounds, tileSize int, levels int) *Index {
	bins := make(map[tileKey][]int)
	objs := make([]rtreego.Spatial, 0, len(cells))

	for _, c := range cells {
		for level := 0; level < levels; level++ {
			binSize := float64(tileSize) * float64(uint64(1)<<uint(level))
			tx := int(c.CentroidX / binSize)
			ty := int(c.CentroidY / binSize)
			key := tileKey{level: level, x: tx, y: ty}
			bins[key] = append(bins[key], c.Index)
		}

		w := c.MaxX - c.MinX
		h := c.MaxY - c.MinY
		if w <= 0 {
			w = 1e-6
		}
		if h <= 0 {
			h = 1e-6
		}
		rect, err := rtreego.NewRect(rtreego.Point{c.MinX, c.MinY}, []float64{w, h})
		if err != nil {
			// A degenerate rect (zero or negative length after the
			// epsilon clamp above) cannot happen; skip defensively
			// rather than panic on a single malformed cell.
			continue
		}
		objs = append(objs, &cellRef{index: c.Index, rect: rect})
	}

	// rtreego's variadic NewTree performs an OMT-style bulk load when
	// objects are supplied up front, which is the bulk-load mechanism
	// this index relies on in place of hand-written STR.
	tree := rtreego.NewTree(2, 25, 50, objs...)

	return &Index{bins: bins, tree: tree}
}

// QueryTile returns the cell indices binned at (level, x, y) in
// insertion order. O(1) map lookup.
func (idx *Index) QueryTile(level, x, y int) []int {
	return idx.bins[tileKey{level: level, x: x, y: y}]
}

// QueryViewport returns the indices of every cell whose bounding box
// intersects [minX,minY]-[maxX,maxY], truncated at limit in traversal
// order. limit <= 0 uses DefaultViewportLimit.
func (idx *Index) QueryViewport(minX, minY, maxX, maxY float64, limit int) []int {
	if limit <= 0 {
		limit = DefaultViewportLimit
	}
	w := maxX - minX
	h := maxY - minY
	if w <= 0 || h <= 0 {
		return nil
	}
	rect, err := rtreego.NewRect(rtreego.Point{minX, minY}, []float64{w, h})
	if err != nil {
		return nil
	}

	hits := idx.tree.SearchIntersect(rect)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]int, len(hits))
	for i, h := range hits {
		out[i] = h.(*cellRef).index
	}
	return out
}
