package overlay

import (
	"os"
	"path/filepath"
	"testing"
)

type fakeSessions struct{ ok bool }

func (f fakeSessions) Exists(string) bool { return f.ok }

func TestUploadOverlayRejectsUnknownSession(t *testing.T) {
	svc := NewService(fakeSessions{ok: false}, 3, nil)
	if _, err := svc.UploadOverlay("nope", sampleRaw()); err != ErrSessionNotFound {
		t.Errorf("UploadOverlay = %v, want ErrSessionNotFound", err)
	}
}

func TestUploadOverlayDeduplicatesByContent(t *testing.T) {
	svc := NewService(fakeSessions{ok: true}, 3, nil)
	raw := sampleRaw()

	r1, err := svc.UploadOverlay("abcd234567", raw)
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	r2, err := svc.UploadOverlay("abcd234567", raw)
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if r1.ContentSHA256 != r2.ContentSHA256 {
		t.Errorf("content hashes differ across identical uploads: %s vs %s", r1.ContentSHA256, r2.ContentSHA256)
	}
	if r1.OverlayID != r2.OverlayID {
		t.Errorf("overlay ids differ across identical uploads in the same session: %s vs %s", r1.OverlayID, r2.OverlayID)
	}
}

func TestGetManifestAndRasterTile(t *testing.T) {
	svc := NewService(fakeSessions{ok: true}, 3, nil)
	res, err := svc.UploadOverlay("abcd234567", sampleRaw())
	if err != nil {
		t.Fatalf("UploadOverlay: %v", err)
	}

	manifest, err := svc.GetManifest(res.OverlayID)
	if err != nil {
		t.Fatalf("GetManifest: %v", err)
	}
	if manifest.CellCount != 1 {
		t.Errorf("CellCount = %d, want 1", manifest.CellCount)
	}

	tile, err := svc.GetRasterTile(res.OverlayID, 0, 0, 0)
	if err != nil {
		t.Fatalf("GetRasterTile: %v", err)
	}
	if len(tile) != RasterTileSize*RasterTileSize*4 {
		t.Errorf("len(tile) = %d, want %d", len(tile), RasterTileSize*RasterTileSize*4)
	}
}

func TestGetManifestUnknownOverlay(t *testing.T) {
	svc := NewService(fakeSessions{ok: true}, 3, nil)
	if _, err := svc.GetManifest("missing"); err != ErrNotFound {
		t.Errorf("GetManifest(missing) = %v, want ErrNotFound", err)
	}
}

func TestGetManifestReportsURLTemplates(t *testing.T) {
	svc := NewService(fakeSessions{ok: true}, 3, func(overlayID string) (string, string) {
		return "/raster/" + overlayID, "/vec/" + overlayID
	})
	res, err := svc.UploadOverlay("abcd234567", sampleRaw())
	if err != nil {
		t.Fatalf("UploadOverlay: %v", err)
	}
	manifest, err := svc.GetManifest(res.OverlayID)
	if err != nil {
		t.Fatalf("GetManifest: %v", err)
	}
	if manifest.RasterURLTempl != "/raster/"+res.OverlayID {
		t.Errorf("RasterURLTempl = %q", manifest.RasterURLTempl)
	}
	if manifest.VectorURLTempl != "/vec/"+res.OverlayID {
		t.Errorf("VectorURLTempl = %q", manifest.VectorURLTempl)
	}
}

func TestDiscoverAndLoadFindsPredervedOverlay(t *testing.T) {
	dir := t.TempDir()
	slideDir := filepath.Join(dir, "demo")
	if err := os.MkdirAll(slideDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(slideDir, "overlays.bin"), sampleRaw(), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := NewService(fakeSessions{ok: true}, 3, nil)
	result, err := svc.DiscoverAndLoad(dir, "demo")
	if err != nil {
		t.Fatalf("DiscoverAndLoad: %v", err)
	}
	if result.CellCount != 1 {
		t.Errorf("CellCount = %d, want 1", result.CellCount)
	}

	manifest, err := svc.GetManifest(result.OverlayID)
	if err != nil {
		t.Fatalf("GetManifest after discovery: %v", err)
	}
	if manifest.ContentSHA256 != result.ContentSHA256 {
		t.Errorf("manifest hash %s != result hash %s", manifest.ContentSHA256, result.ContentSHA256)
	}

	// re-running discovery against the same file resolves to the
	// identical stored artifact rather than erroring or duplicating it.
	again, err := svc.DiscoverAndLoad(dir, "demo")
	if err != nil {
		t.Fatalf("second DiscoverAndLoad: %v", err)
	}
	if again.OverlayID != result.OverlayID {
		t.Errorf("OverlayID changed across repeated discovery: %s vs %s", result.OverlayID, again.OverlayID)
	}
}

func TestDiscoverAndLoadFindsExtensionQualifiedDirectory(t *testing.T) {
	dir := t.TempDir()
	slideDir := filepath.Join(dir, "demo.svs")
	if err := os.MkdirAll(slideDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(slideDir, "cell_masks.bin"), sampleRaw(), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := NewService(fakeSessions{ok: true}, 3, nil)
	result, err := svc.DiscoverAndLoad(dir, "demo")
	if err != nil {
		t.Fatalf("DiscoverAndLoad: %v", err)
	}
	if result.CellCount != 1 {
		t.Errorf("CellCount = %d, want 1", result.CellCount)
	}
}

func TestDiscoverAndLoadNoMatch(t *testing.T) {
	dir := t.TempDir()
	svc := NewService(fakeSessions{ok: true}, 3, nil)
	if _, err := svc.DiscoverAndLoad(dir, "missing-slide"); err == nil {
		t.Error("DiscoverAndLoad with no matching file: want error, got nil")
	}
}

func TestQueryViewportKeepsAbsoluteCoordinatesAtFullPrecision(t *testing.T) {
	// A cell centered well beyond i16 range (32767), carried in a tile
	// that also has a tissue map.
	poly := buildPolygon("tumor", 0.9, [][2]float32{
		{40000, 40000}, {40010, 40000}, {40010, 40010}, {40000, 40010},
	})
	tissueData := make([]byte, 224*224)
	tissue := buildTissueMap(224, 224, tissueData)
	tile := buildTile(0, 0, 0, 224, 224, [][]byte{poly}, tissue)
	raw := buildMessage(
		stringField(fieldSlideID, "demo"),
		varintField(fieldMaxLevel, 0),
		stringField(fieldCellModelName, "hovernet"),
		messageField(fieldTiles, tile),
	)

	svc := NewService(fakeSessions{ok: true}, 3, nil)
	res, err := svc.UploadOverlay("abcd234567", raw)
	if err != nil {
		t.Fatalf("UploadOverlay: %v", err)
	}

	cells, err := svc.QueryViewport(res.OverlayID, 0, 0, 100000, 100000, 10)
	if err != nil {
		t.Fatalf("QueryViewport: %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("len(cells) = %d, want 1", len(cells))
	}
	if cells[0].CentroidX < 32767 {
		t.Errorf("CentroidX = %d, want an absolute coordinate beyond i16 range", cells[0].CentroidX)
	}
}

func TestGetVectorChunkQuantizesConfidence(t *testing.T) {
	svc := NewService(fakeSessions{ok: true}, 3, nil)
	res, err := svc.UploadOverlay("abcd234567", sampleRaw())
	if err != nil {
		t.Fatalf("UploadOverlay: %v", err)
	}
	cells, err := svc.GetVectorChunk(res.OverlayID, 0, 0, 0, 256)
	if err != nil {
		t.Fatalf("GetVectorChunk: %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("len(cells) = %d, want 1", len(cells))
	}
	// confidence 0.9 -> round(0.9*255) = 230
	if cells[0].Confidence8 != 230 {
		t.Errorf("Confidence8 = %d, want 230", cells[0].Confidence8)
	}
}
