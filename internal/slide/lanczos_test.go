package slide

import "testing"

func TestLanczos3SameSizeIsIdentity(t *testing.T) {
	src := make([]byte, 4*4*4)
	for i := range src {
		src[i] = byte(i % 256)
	}
	out := lanczos3(src, 4, 4, 4, 4)
	if len(out) != len(src) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(src))
	}
	for i := range src {
		if out[i] != src[i] {
			t.Fatalf("identity resize changed byte %d: %d -> %d", i, src[i], out[i])
		}
	}
}

func TestLanczos3DownsizeProducesCorrectDimensions(t *testing.T) {
	src := make([]byte, 16*16*4)
	for i := range src {
		src[i] = 200
	}
	out := lanczos3(src, 16, 16, 8, 8)
	if len(out) != 8*8*4 {
		t.Fatalf("len(out) = %d, want %d", len(out), 8*8*4)
	}
}

func TestLanczos3PreservesUniformColor(t *testing.T) {
	src := make([]byte, 10*10*4)
	for i := 0; i < len(src); i += 4 {
		src[i], src[i+1], src[i+2], src[i+3] = 100, 150, 200, 255
	}
	out := lanczos3(src, 10, 10, 5, 7)
	for i := 0; i < len(out); i += 4 {
		if out[i] != 100 || out[i+1] != 150 || out[i+2] != 200 || out[i+3] != 255 {
			t.Fatalf("pixel %d = (%d,%d,%d,%d), want (100,150,200,255)", i/4, out[i], out[i+1], out[i+2], out[i+3])
		}
	}
}
