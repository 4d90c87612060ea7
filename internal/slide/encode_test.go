package slide

import (
	"bytes"
	"image/jpeg"
	"testing"
)

func TestJPEGEncoderProducesDecodableImage(t *testing.T) {
	w, h := 16, 12
	pixels := make([]byte, w*h*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i], pixels[i+1], pixels[i+2], pixels[i+3] = 10, 20, 30, 0 // transparent input
	}

	out, err := JPEGEncoder{Quality: 85}.Encode(pixels, w, h)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decoding encoded JPEG: %v", err)
	}
	if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
		t.Errorf("decoded size = %dx%d, want %dx%d", img.Bounds().Dx(), img.Bounds().Dy(), w, h)
	}
}

func TestJPEGEncoderDefaultsQuality(t *testing.T) {
	pixels := make([]byte, 4*4*4)
	if _, err := (JPEGEncoder{}).Encode(pixels, 4, 4); err != nil {
		t.Fatalf("Encode with zero Quality: %v", err)
	}
}
