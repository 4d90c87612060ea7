package overlay

import (
	"math"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

// buildMessage assembles a length-prefix-free top-level message from
// a sequence of already-tagged field encoders, mirroring how protowire
// itself is typically driven: append tag, then append value.
type fieldWriter func([]byte) []byte

func buildMessage(fields ...fieldWriter) []byte {
	var b []byte
	for _, f := range fields {
		b = f(b)
	}
	return b
}

func varintField(num protowire.Number, v uint64) fieldWriter {
	return func(b []byte) []byte {
		b = protowire.AppendTag(b, num, protowire.VarintType)
		return protowire.AppendVarint(b, v)
	}
}

func fixed32Field(num protowire.Number, v float32) fieldWriter {
	return func(b []byte) []byte {
		b = protowire.AppendTag(b, num, protowire.Fixed32Type)
		return protowire.AppendFixed32(b, math.Float32bits(v))
	}
}

func stringField(num protowire.Number, s string) fieldWriter {
	return func(b []byte) []byte {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		return protowire.AppendBytes(b, []byte(s))
	}
}

func bytesField(num protowire.Number, v []byte) fieldWriter {
	return func(b []byte) []byte {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		return protowire.AppendBytes(b, v)
	}
}

func messageField(num protowire.Number, inner []byte) fieldWriter {
	return func(b []byte) []byte {
		b = protowire.AppendTag(b, num, protowire.BytesType)
		return protowire.AppendBytes(b, inner)
	}
}

func buildPoint(x, y float32) []byte {
	return buildMessage(fixed32Field(fieldPointX, x), fixed32Field(fieldPointY, y))
}

func buildPolygon(cellType string, confidence float32, pts [][2]float32) []byte {
	fields := []fieldWriter{
		stringField(fieldPolyCellType, cellType),
		fixed32Field(fieldPolyConfidence, confidence),
	}
	for _, p := range pts {
		fields = append(fields, messageField(fieldPolyCoords, buildPoint(p[0], p[1])))
	}
	return buildMessage(fields...)
}

func buildTissueMap(w, h int64, data []byte) []byte {
	return buildMessage(
		bytesField(fieldTissueMapData, data),
		varintField(fieldTissueMapWidth, uint64(w)),
		varintField(fieldTissueMapHeight, uint64(h)),
	)
}

func buildTile(x, y, level, width, height int64, polys [][]byte, tissue []byte) []byte {
	fields := []fieldWriter{
		varintField(fieldTileX, uint64(x)),
		varintField(fieldTileY, uint64(y)),
		varintField(fieldTileLevel, uint64(level)),
		varintField(fieldTileWidth, uint64(width)),
		varintField(fieldTileHeight, uint64(height)),
	}
	for _, p := range polys {
		fields = append(fields, messageField(fieldTileMasks, p))
	}
	if tissue != nil {
		fields = append(fields, messageField(fieldTileTissue, tissue))
	}
	return buildMessage(fields...)
}

func TestParseBasicSlide(t *testing.T) {
	poly := buildPolygon("tumor", 0.9, [][2]float32{{0, 0}, {10, 0}, {10, 10}, {0, 10}})
	tissueData := make([]byte, 224*224)
	tissue := buildTissueMap(224, 224, tissueData)
	tile := buildTile(1, 2, 5, 224, 224, [][]byte{poly}, tissue)

	raw := buildMessage(
		stringField(fieldSlideID, "demo"),
		fixed32Field(fieldMPP, 0.25),
		varintField(fieldMaxLevel, 5),
		stringField(fieldCellModelName, "hovernet"),
		stringField(fieldTissueModelName, "tissue_v1"),
		messageField(fieldTiles, tile),
	)

	data, err := Parse(raw, DefaultParseConfig())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if data.SlideID != "demo" || data.MaxLevel != 5 {
		t.Fatalf("unexpected top-level fields: %+v", data)
	}
	if len(data.Tiles) != 1 {
		t.Fatalf("len(Tiles) = %d, want 1", len(data.Tiles))
	}
	tl := data.Tiles[0]
	if tl.X != 1 || tl.Y != 2 || tl.Level != 5 {
		t.Errorf("tile coords = (%d,%d,%d), want (1,2,5)", tl.X, tl.Y, tl.Level)
	}
	if len(tl.Cells) != 1 || tl.Cells[0].CellType != "tumor" {
		t.Fatalf("unexpected cells: %+v", tl.Cells)
	}
}

func TestParseRejectsOversizedPayload(t *testing.T) {
	cfg := ParseConfig{MaxPayloadBytes: 4, MaxCells: MaxCells, MaxTiles: MaxTiles}
	_, err := Parse(make([]byte, 100), cfg)
	if err == nil {
		t.Fatal("expected an error for oversized payload")
	}
}

func TestParseRejectsTooManyTiles(t *testing.T) {
	tile := buildTile(0, 0, 0, 256, 256, nil, nil)
	raw := buildMessage(
		stringField(fieldSlideID, "demo"),
		messageField(fieldTiles, tile),
		messageField(fieldTiles, tile),
		messageField(fieldTiles, tile),
	)
	cfg := ParseConfig{MaxPayloadBytes: MaxPayloadBytes, MaxCells: MaxCells, MaxTiles: 2}
	_, err := Parse(raw, cfg)
	if err == nil {
		t.Fatal("expected ErrTooManyTiles")
	}
}

func TestAbsoluteCellsAppliesScaleAndOrigin(t *testing.T) {
	// tile at (1,1) level 4, slide max_level 5 -> scale factor 2, tile
	// width/height 224.
	tile := RawTile{
		X: 1, Y: 1, Level: 4, Width: 224, Height: 224,
		Cells: []RawCellPolygon{{CellType: "tumor", Confidence: 1, Vertices: []Point{{X: 0, Y: 0}, {X: 10, Y: 0}}}},
	}
	classes := newClassTable()
	cells := absoluteCells(tile, 5, classes)
	if len(cells) != 1 {
		t.Fatalf("len(cells) = %d, want 1", len(cells))
	}
	// origin = (1*224*2, 1*224*2) = (448, 448); vertex (0,0)*2+origin = (448,448)
	c := cells[0]
	if c.MinX != 448 || c.MinY != 448 {
		t.Errorf("origin not applied: min=(%v,%v)", c.MinX, c.MinY)
	}
	if c.Vertices[0] != 448 || c.Vertices[1] != 448 {
		t.Errorf("vertices = %v, want first pair (448,448)", c.Vertices)
	}
}
