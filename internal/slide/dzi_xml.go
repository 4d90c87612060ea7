package slide

import (
	"context"
	"fmt"
)

// DZIXML renders the Deep Zoom Image XML descriptor OpenSeadragon and
// compatible viewers expect at GET /api/slide/{id}/dzi: the slide's
// native dimensions, tile size, and a fixed zero overlap (tiles are
// served edge-truncated, never overlapping).
func (p *Pipeline) DZIXML(ctx context.Context, slideID string) ([]byte, error) {
	reader, err := p.handles.Get(ctx, slideID)
	if err != nil {
		return nil, fmt.Errorf("slide: describing %q: %w", slideID, err)
	}
	w, h := reader.LevelDimensions(0)

	xml := fmt.Sprintf(
		`<?xml version="1.0" encoding="UTF-8"?>`+
			`<Image TileSize="%d" Overlap="0" Format="jpg" xmlns="http://schemas.microsoft.com/deepzoom/2008">`+
			`<Size Width="%d" Height="%d"/>`+
			`</Image>`,
		p.tileSize, w, h)
	return []byte(xml), nil
}
