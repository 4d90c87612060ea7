// Package slide implements the tile pipeline: resolving a pyramid
// slide handle, mapping a Deep Zoom tile request onto the slide's
// native pyramid, resampling, and JPEG-encoding the result, with a
// cache in front of the whole pipeline.
package slide

import "context"

// Reader is the slide-reader capability contract every backing slide
// format must satisfy, per the external collaborator contract.
// Implementations decide what "open" means for their format; callers
// never assume a file path.
type Reader interface {
	// LevelCount returns the number of native pyramid levels.
	LevelCount() int
	// LevelDimensions returns the pixel width and height of level.
	LevelDimensions(level int) (width, height int)
	// LevelDownsample returns the downsample factor of level relative
	// to level 0 (the native level with the largest dimensions).
	LevelDownsample(level int) float64
	// ReadRegion reads an RGBA region of the given native level.
	ReadRegion(ctx context.Context, level, x, y, w, h int) ([]byte, error)
	// Property returns a named slide property, if present.
	Property(name string) (string, bool)
	// Close releases any resources the reader holds.
	Close() error
}

// Opener opens a slide by id, returning a Reader. Handle caching
// wraps an Opener; callers never call Opener directly.
type Opener interface {
	Open(ctx context.Context, slideID string) (Reader, error)
}
