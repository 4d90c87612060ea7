package spatial

import "testing"

func TestQueryTileExactBin(t *testing.T) {
	cells := []CellBounds{
		{Index: 0, MinX: 10, MinY: 10, MaxX: 20, MaxY: 20, CentroidX: 15, CentroidY: 15},
		{Index: 1, MinX: 300, MinY: 300, MaxX: 310, MaxY: 310, CentroidX: 305, CentroidY: 305},
	}
	idx := Build(cells, 256, 3)

	got := idx.QueryTile(0, 0, 0)
	if len(got) != 1 || got[0] != 0 {
		t.Errorf("QueryTile(0,0,0) = %v, want [0]", got)
	}

	got = idx.QueryTile(0, 1, 1)
	if len(got) != 1 || got[0] != 1 {
		t.Errorf("QueryTile(0,1,1) = %v, want [1]", got)
	}
}

func TestQueryViewportFindsOverlapping(t *testing.T) {
	cells := []CellBounds{
		{Index: 0, MinX: 0, MinY: 0, MaxX: 10, MaxY: 10, CentroidX: 5, CentroidY: 5},
		{Index: 1, MinX: 1000, MinY: 1000, MaxX: 1010, MaxY: 1010, CentroidX: 1005, CentroidY: 1005},
	}
	idx := Build(cells, 256, 1)

	got := idx.QueryViewport(0, 0, 20, 20, 0)
	if len(got) != 1 || got[0] != 0 {
		t.Errorf("QueryViewport small box = %v, want [0]", got)
	}
}

func TestQueryViewportFullBoundsIsSupersetOfAnyTile(t *testing.T) {
	cells := make([]CellBounds, 0, 64)
	for i := 0; i < 64; i++ {
		x := float64((i % 8) * 256)
		y := float64((i / 8) * 256)
		cells = append(cells, CellBounds{
			Index: i, MinX: x, MinY: y, MaxX: x + 5, MaxY: y + 5,
			CentroidX: x + 2.5, CentroidY: y + 2.5,
		})
	}
	idx := Build(cells, 256, 1)

	tileHits := idx.QueryTile(0, 0, 0)
	full := idx.QueryViewport(0, 0, 2048, 2048, 10000)

	inFull := make(map[int]bool, len(full))
	for _, i := range full {
		inFull[i] = true
	}
	for _, i := range tileHits {
		if !inFull[i] {
			t.Errorf("cell %d from QueryTile missing from full-bounds QueryViewport", i)
		}
	}
}

func TestQueryViewportRespectsLimit(t *testing.T) {
	cells := make([]CellBounds, 0, 50)
	for i := 0; i < 50; i++ {
		x := float64(i)
		cells = append(cells, CellBounds{Index: i, MinX: x, MinY: x, MaxX: x + 1, MaxY: x + 1, CentroidX: x + 0.5, CentroidY: x + 0.5})
	}
	idx := Build(cells, 256, 1)

	got := idx.QueryViewport(0, 0, 100, 100, 10)
	if len(got) != 10 {
		t.Errorf("len(QueryViewport limit=10) = %d, want 10", len(got))
	}
}
