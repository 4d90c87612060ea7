package slide

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileOpener opens a slide by decoding a single image file from disk
// and synthesizing a pyramid over it. It is the reference Opener: it
// stands in for real whole-slide-image decoding (SVS, NDPI, MRXS...),
// which is out of scope.
type FileOpener struct {
	Dir string
}

var slideExtensions = []string{".png", ".jpg", ".jpeg", ".tif", ".tiff"}

func (o FileOpener) Open(_ context.Context, slideID string) (Reader, error) {
	path, err := o.resolve(slideID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("slide: opening %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("slide: decoding %s: %w", path, err)
	}

	rgba := toRGBA(img)
	return NewSyntheticReader(rgba, map[string]string{"source_path": path}), nil
}

func (o FileOpener) resolve(slideID string) (string, error) {
	for _, ext := range slideExtensions {
		p := filepath.Join(o.Dir, slideID+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("slide: no source file for %q under %s", slideID, o.Dir)
}

// ListSlideIDs enumerates the slide ids available under dir: every
// file whose extension is one FileOpener recognizes, named without
// its extension.
func ListSlideIDs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("slide: listing %s: %w", dir, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, known := range slideExtensions {
			if ext == known {
				ids = append(ids, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}
