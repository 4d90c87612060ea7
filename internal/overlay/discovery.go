package overlay

import (
	"fmt"
	"os"
	"path/filepath"
)

// slideExtensions are the extensions probed after the bare slide id,
// per the external collaborator contract.
var slideExtensions = []string{"svs", "tif", "tiff", "ndpi", "mrxs", "scn", "vms"}

// overlayFileNames are the recognized overlay file names, checked in
// this order within each candidate directory.
var overlayFileNames = []string{"overlays.bin", "cell_masks.bin"}

// DiscoverOverlayFile probes overlayDir for a pre-derived overlay file
// belonging to slideID. Candidate directories are slideID itself, then
// slideID with each common slide extension appended (the layout a
// slide importer that mirrors input filenames produces, e.g.
// "overlays/demo.svs/overlays.bin"); each is checked for overlays.bin
// before cell_masks.bin. It returns the first match.
func DiscoverOverlayFile(overlayDir, slideID string) (string, error) {
	dirNames := make([]string, 0, 1+len(slideExtensions))
	dirNames = append(dirNames, slideID)
	for _, ext := range slideExtensions {
		dirNames = append(dirNames, slideID+"."+ext)
	}

	for _, dirName := range dirNames {
		for _, fileName := range overlayFileNames {
			c := filepath.Join(overlayDir, dirName, fileName)
			if _, err := os.Stat(c); err == nil {
				return c, nil
			}
		}
	}
	return "", fmt.Errorf("overlay: no overlay file found for slide %q under %s", slideID, overlayDir)
}
