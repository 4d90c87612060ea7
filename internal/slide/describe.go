package slide

import (
	"context"
	"fmt"

	"github.com/pathcollab/pathcollab/internal/session"
)

// TileURLFunc builds the tile URL template a client substitutes
// {level}/{x}/{y} into, for a given slide id.
type TileURLFunc func(slideID string) string

// Describer adapts a Pipeline into presence.SlideDescriber: it
// resolves a slide id to the geometry the session store records on
// create_session and change_slide.
type Describer struct {
	pipeline *Pipeline
	tileURL  TileURLFunc
}

// NewDescriber builds a Describer over pipeline, using urlFn to
// render each descriptor's tile URL template.
func NewDescriber(pipeline *Pipeline, urlFn TileURLFunc) *Describer {
	return &Describer{pipeline: pipeline, tileURL: urlFn}
}

// Describe opens slideID (if not already cached) and reports its
// native dimensions, tile size, and DZI level count.
func (d *Describer) Describe(ctx context.Context, slideID string) (session.SlideDescriptor, error) {
	maxLevel, err := d.pipeline.MaxLevel(ctx, slideID)
	if err != nil {
		return session.SlideDescriptor{}, fmt.Errorf("slide: describing %q: %w", slideID, err)
	}

	handle, err := d.pipeline.handles.Get(ctx, slideID)
	if err != nil {
		return session.SlideDescriptor{}, fmt.Errorf("slide: describing %q: %w", slideID, err)
	}
	width, height := handle.LevelDimensions(0)

	return session.SlideDescriptor{
		SlideID:      slideID,
		Width:        width,
		Height:       height,
		TileSize:     d.pipeline.tileSize,
		LevelCount:   maxLevel + 1,
		TileURLTempl: d.tileURL(slideID),
	}, nil
}
