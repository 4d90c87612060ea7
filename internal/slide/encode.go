package slide

import (
	"bytes"
	"image"
	"image/jpeg"
)

// JPEGEncoder JPEG-encodes RGBA tiles, flattening the alpha channel
// since served slide tiles are always opaque.
type JPEGEncoder struct {
	Quality int // 1-100, default 85
}

func (e JPEGEncoder) Encode(pixels []byte, w, h int) ([]byte, error) {
	quality := e.Quality
	if quality <= 0 {
		quality = 85
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, pixels)
	// Force full opacity; a partially transparent source pixel would
	// otherwise JPEG-encode to a darkened RGB, since image/jpeg reads
	// straight alpha-unaware RGB from the RGBA buffer.
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
