package slide

import "context"

import "testing"

func TestSyntheticReaderPyramidShrinksToOnePixel(t *testing.T) {
	r := NewCheckerboardReader(300, 200, 10)
	if r.LevelCount() < 1 {
		t.Fatal("expected at least one level")
	}
	lastW, lastH := r.LevelDimensions(r.LevelCount() - 1)
	if lastW != 1 || lastH != 1 {
		t.Errorf("coarsest level = %dx%d, want 1x1", lastW, lastH)
	}
	w0, h0 := r.LevelDimensions(0)
	if w0 != 300 || h0 != 200 {
		t.Errorf("level 0 = %dx%d, want 300x200", w0, h0)
	}
	if r.LevelDownsample(0) != 1 {
		t.Errorf("level 0 downsample = %v, want 1", r.LevelDownsample(0))
	}
}

func TestSyntheticReaderReadRegionBounds(t *testing.T) {
	r := NewCheckerboardReader(100, 100, 10)
	ctx := context.Background()

	if _, err := r.ReadRegion(ctx, 0, 0, 0, 50, 50); err != nil {
		t.Fatalf("ReadRegion in-bounds: %v", err)
	}
	if _, err := r.ReadRegion(ctx, 0, 90, 90, 50, 50); err == nil {
		t.Error("expected an error reading past the level bounds")
	}
}

func TestSyntheticReaderReadRegionPixelValues(t *testing.T) {
	r := NewCheckerboardReader(4, 4, 4)
	ctx := context.Background()
	region, err := r.ReadRegion(ctx, 0, 0, 0, 4, 4)
	if err != nil {
		t.Fatalf("ReadRegion: %v", err)
	}
	if len(region) != 4*4*4 {
		t.Fatalf("len(region) = %d, want %d", len(region), 4*4*4)
	}
}
