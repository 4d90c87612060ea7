package slide

import (
	"fmt"
	"math"
)

// ErrInvalidLevel and ErrInvalidCoordinates are the tile-serving
// error kinds named in the error handling design.
var (
	ErrInvalidLevel       = fmt.Errorf("slide: invalid level")
	ErrInvalidCoordinates = fmt.Errorf("slide: invalid tile coordinates")
)

// MaxDZILevel returns N = ceil(log2(max(w,h))), the Deep Zoom
// convention's top level for a slide of the given native dimensions.
func MaxDZILevel(width, height int) int {
	m := width
	if height > m {
		m = height
	}
	if m <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(m))))
}

// dziMapping is the result of mapping one DZI tile request onto the
// slide's native pyramid: which native level to read, what region of
// it (in that level's own pixel coordinates), and whether the region
// needs resizing to the target tile size afterward.
type dziMapping struct {
	nativeLevel      int
	regionX, regionY int
	regionW, regionH int
	// targetW, targetH are the tile's final output dimensions: equal
	// to min(tileSize, remaining_width/height) at the requested
	// level. needsResize is false only when the native region already
	// matches these dimensions exactly.
	targetW, targetH int
	needsResize       bool
}

// mapDZITile computes the native-level region to read for a request
// at (level, x, y) against a slide whose native level 0 has
// dimensions maxW x maxH, with levelCount native levels whose
// downsample factors are given by downsampleAt(level).
func mapDZITile(level, x, y, tileSize, maxW, maxH, levelCount int, downsampleAt func(int) float64) (dziMapping, error) {
	n := MaxDZILevel(maxW, maxH)
	if level < 0 || level > n {
		return dziMapping{}, fmt.Errorf("%w: %d not in [0,%d]", ErrInvalidLevel, level, n)
	}

	levelsFromMax := n - level
	dziScale := math.Pow(2, float64(levelsFromMax))

	// Dimensions of the requested DZI level, in that level's own pixels.
	levelW := int(math.Ceil(float64(maxW) / dziScale))
	levelH := int(math.Ceil(float64(maxH) / dziScale))

	originX := x * tileSize
	originY := y * tileSize
	if originX >= levelW || originY >= levelH {
		return dziMapping{}, fmt.Errorf("%w: tile (%d,%d) at level %d exceeds level dimensions %dx%d", ErrInvalidCoordinates, x, y, level, levelW, levelH)
	}

	// Native level whose downsample is the largest value <= dziScale:
	// the least-downsampled (most detailed) level that still covers
	// the requested resolution without upsampling.
	nativeLevel := 0
	nativeDownsample := downsampleAt(0)
	for l := 0; l < levelCount; l++ {
		ds := downsampleAt(l)
		if ds <= dziScale && ds >= nativeDownsample {
			nativeLevel = l
			nativeDownsample = ds
		}
	}

	// regionScale converts a count of DZI-level pixels into the
	// equivalent count of native-level pixels.
	regionScale := dziScale / nativeDownsample

	actualTileW := minInt(tileSize, levelW-originX)
	actualTileH := minInt(tileSize, levelH-originY)

	regionX := int(float64(originX) * regionScale)
	regionY := int(float64(originY) * regionScale)
	regionW := maxInt(int(math.Ceil(float64(actualTileW)*regionScale)), 1)
	regionH := maxInt(int(math.Ceil(float64(actualTileH)*regionScale)), 1)

	// Clamp the read region to the native level's own bounds; rounding
	// in the scale conversions can overshoot by a pixel at the
	// slide's edge.
	nativeW := int(math.Ceil(float64(maxW) / nativeDownsample))
	nativeH := int(math.Ceil(float64(maxH) / nativeDownsample))
	if regionX+regionW > nativeW {
		regionW = maxInt(nativeW-regionX, 1)
	}
	if regionY+regionH > nativeH {
		regionH = maxInt(nativeH-regionY, 1)
	}

	return dziMapping{
		nativeLevel: nativeLevel,
		regionX:     regionX,
		regionY:     regionY,
		regionW:     regionW,
		regionH:     regionH,
		targetW:     actualTileW,
		targetH:     actualTileH,
		needsResize: regionScale > 1.001 || regionW != actualTileW || regionH != actualTileH,
	}, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
