package slide

import (
	"context"
	"fmt"
	"image"
	"image/color"
)

// SyntheticReader is a reference Reader implementation: it takes a
// single full-resolution image, already decoded to RGBA, and synthesizes the rest of
// the pyramid by repeated 2x box downsampling, since decoding actual
// whole-slide formats (SVS, NDPI, MRXS...) is out of scope. It exists
// so the tile pipeline has something real to exercise end to end.
type SyntheticReader struct {
	levels []syntheticLevel
	props  map[string]string
}

type syntheticLevel struct {
	width, height int
	downsample    float64
	pix           []byte // RGBA, width*height*4
}

// NewSyntheticReader builds a pyramid from base, a decoded RGBA image
// at native resolution. Levels are synthesized by halving dimensions
// until both are 1px, giving LevelCount() == floor(log2(max(w,h)))+1.
func NewSyntheticReader(base *image.RGBA, props map[string]string) *SyntheticReader {
	w, h := base.Bounds().Dx(), base.Bounds().Dy()
	levels := []syntheticLevel{{width: w, height: h, downsample: 1, pix: rgbaBytes(base)}}

	for levels[len(levels)-1].width > 1 || levels[len(levels)-1].height > 1 {
		prev := levels[len(levels)-1]
		nw, nh := maxInt(prev.width/2, 1), maxInt(prev.height/2, 1)
		levels = append(levels, syntheticLevel{
			width:      nw,
			height:     nh,
			downsample: float64(w) / float64(nw),
			pix:        boxDownsample(prev.pix, prev.width, prev.height, nw, nh),
		})
	}

	if props == nil {
		props = map[string]string{}
	}
	return &SyntheticReader{levels: levels, props: props}
}

// NewCheckerboardReader builds a synthetic slide of the given native
// size with a colored grid pattern, useful for tests and as a demo
// slide when no real imagery is configured.
func NewCheckerboardReader(width, height, cell int) *SyntheticReader {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	palette := []color.RGBA{
		{230, 50, 50, 255}, {50, 140, 230, 255}, {50, 200, 120, 255}, {230, 190, 50, 255},
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			idx := ((x / cell) + (y / cell)) % len(palette)
			img.Set(x, y, palette[idx])
		}
	}
	return NewSyntheticReader(img, map[string]string{"synthetic": "checkerboard"})
}

func (r *SyntheticReader) LevelCount() int { return len(r.levels) }

func (r *SyntheticReader) LevelDimensions(level int) (int, int) {
	if level < 0 || level >= len(r.levels) {
		return 0, 0
	}
	l := r.levels[level]
	return l.width, l.height
}

func (r *SyntheticReader) LevelDownsample(level int) float64 {
	if level < 0 || level >= len(r.levels) {
		return 0
	}
	return r.levels[level].downsample
}

func (r *SyntheticReader) ReadRegion(_ context.Context, level, x, y, w, h int) ([]byte, error) {
	if level < 0 || level >= len(r.levels) {
		return nil, fmt.Errorf("slide: invalid level %d", level)
	}
	l := r.levels[level]
	if x < 0 || y < 0 || w <= 0 || h <= 0 || x+w > l.width || y+h > l.height {
		return nil, fmt.Errorf("slide: region (%d,%d,%dx%d) out of bounds for level %d (%dx%d)", x, y, w, h, level, l.width, l.height)
	}

	out := make([]byte, w*h*4)
	for row := 0; row < h; row++ {
		srcOff := ((y+row)*l.width + x) * 4
		dstOff := row * w * 4
		copy(out[dstOff:dstOff+w*4], l.pix[srcOff:srcOff+w*4])
	}
	return out, nil
}

func (r *SyntheticReader) Property(name string) (string, bool) {
	v, ok := r.props[name]
	return v, ok
}

func (r *SyntheticReader) Close() error { return nil }

func rgbaBytes(img *image.RGBA) []byte {
	if img.Stride == img.Bounds().Dx()*4 {
		return img.Pix
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	out := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		srcOff := y * img.Stride
		dstOff := y * w * 4
		copy(out[dstOff:dstOff+w*4], img.Pix[srcOff:srcOff+w*4])
	}
	return out
}

func boxDownsample(src []byte, sw, sh, dw, dh int) []byte {
	out := make([]byte, dw*dh*4)
	for dy := 0; dy < dh; dy++ {
		sy0 := dy * sh / dh
		sy1 := maxInt((dy+1)*sh/dh, sy0+1)
		for dx := 0; dx < dw; dx++ {
			sx0 := dx * sw / dw
			sx1 := maxInt((dx+1)*sw/dw, sx0+1)

			var r, g, b, a, n int
			for sy := sy0; sy < sy1; sy++ {
				for sx := sx0; sx < sx1; sx++ {
					off := (sy*sw + sx) * 4
					r += int(src[off])
					g += int(src[off+1])
					b += int(src[off+2])
					a += int(src[off+3])
					n++
				}
			}
			off := (dy*dw + dx) * 4
			out[off] = byte(r / n)
			out[off+1] = byte(g / n)
			out[off+2] = byte(b / n)
			out[off+3] = byte(a / n)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
