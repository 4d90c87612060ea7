package overlay

// classTable assigns sequential class ids to cell-type strings in
// order of first sighting, per the specification's cell-type
// discovery rule.
type classTable struct {
	ids   map[string]uint32
	order []string
}

func newClassTable() *classTable {
	return &classTable{ids: make(map[string]uint32)}
}

func (t *classTable) idFor(name string) uint32 {
	if id, ok := t.ids[name]; ok {
		return id
	}
	id := uint32(len(t.order))
	t.ids[name] = id
	t.order = append(t.order, name)
	return id
}

func (t *classTable) classes() []CellClass {
	out := make([]CellClass, len(t.order))
	for i, name := range t.order {
		out[i] = CellClass{ID: uint32(i), Name: name, Color: defaultCellColor(uint32(i))}
	}
	return out
}

// tileScale returns the factor that converts a coordinate at the
// tile's inference level up to the slide's native (max) level.
func tileScale(maxLevel, tileLevel int64) float32 {
	if maxLevel == tileLevel {
		return 1.0
	}
	return float32(int64(1) << uint(maxLevel-tileLevel))
}

// absoluteCells converts every polygon in tile from tile-local
// floating point coordinates into absolute slide-pixel cells, using
// classes to assign class ids.
func absoluteCells(tile RawTile, maxLevel int64, classes *classTable) []Cell {
	scale := tileScale(maxLevel, tile.Level)
	originX := float32(tile.X) * float32(tile.Width) * scale
	originY := float32(tile.Y) * float32(tile.Height) * scale

	cells := make([]Cell, 0, len(tile.Cells))
	for _, poly := range tile.Cells {
		if len(poly.Vertices) == 0 {
			continue
		}
		vertices := make([]int32, 0, len(poly.Vertices)*2)
		minX, minY := float32(1e18), float32(1e18)
		maxX, maxY := float32(-1e18), float32(-1e18)
		var sumX, sumY float32

		for _, v := range poly.Vertices {
			absX := originX + v.X*scale
			absY := originY + v.Y*scale
			vertices = append(vertices, int32(absX), int32(absY))
			if absX < minX {
				minX = absX
			}
			if absX > maxX {
				maxX = absX
			}
			if absY < minY {
				minY = absY
			}
			if absY > maxY {
				maxY = absY
			}
			sumX += absX
			sumY += absY
		}

		n := float32(len(poly.Vertices))
		cells = append(cells, Cell{
			ClassID:    classes.idFor(poly.CellType),
			Confidence: poly.Confidence,
			MinX:       minX,
			MinY:       minY,
			MaxX:       maxX,
			MaxY:       maxY,
			CentroidX:  sumX / n,
			CentroidY:  sumY / n,
			Vertices:   vertices,
		})
	}
	return cells
}

// defaultCellColor and defaultTissueColor assign a fixed, readable
// palette by id, cycling if more classes are discovered than colors
// exist.
var cellPalette = []string{
	"#E11D48", "#2563EB", "#059669", "#D97706",
	"#7C3AED", "#DB2777", "#0891B2", "#65A30D",
}

func defaultCellColor(id uint32) string {
	return cellPalette[id%uint32(len(cellPalette))]
}

// tissuePalette is the fixed 9-color palette used when resampling
// tissue class grids to RGBA: 8 classes plus transparent no-data.
var tissuePalette = [9][4]uint8{
	{0, 0, 0, 0},       // 255 = no-data, fully transparent
	{239, 68, 68, 200}, // class 0
	{59, 130, 246, 200},
	{16, 185, 129, 200},
	{245, 158, 11, 200},
	{139, 92, 246, 200},
	{236, 72, 153, 200},
	{6, 182, 212, 200},
	{132, 204, 22, 200},
}

func defaultTissueColor(id uint32) string {
	idx := (id % 8) + 1
	c := tissuePalette[idx]
	return rgbaHex(c)
}

func rgbaHex(c [4]uint8) string {
	const hex = "0123456789abcdef"
	b := make([]byte, 8)
	b[0], b[1] = hex[c[0]>>4], hex[c[0]&0xf]
	b[2], b[3] = hex[c[1]>>4], hex[c[1]&0xf]
	b[4], b[5] = hex[c[2]>>4], hex[c[2]&0xf]
	b[6], b[7] = hex[c[3]>>4], hex[c[3]&0xf]
	return "#" + string(b)
}
