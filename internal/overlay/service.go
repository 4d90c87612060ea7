package overlay

import (
	"fmt"
	"os"
)

// Manifest is the external description of a stored overlay, as
// returned by GetManifest.
type Manifest struct {
	OverlayID       string
	ContentSHA256   string
	TileSize        int
	Levels          int
	CellClasses     []CellClass
	TissueClasses   []TissueClass
	CellCount       int
	TissueTileCount int
	RasterURLTempl  string
	VectorURLTempl  string
}

// UploadResult is what UploadOverlay reports back to the caller.
type UploadResult struct {
	OverlayID     string
	ContentSHA256 string
	CellCount     int
	TissueTileCount int
}

// SessionLookup is the minimal capability the overlay service needs
// from the session store: confirming a session exists before
// accepting an upload against it.
type SessionLookup interface {
	Exists(sessionID string) bool
}

// URLFunc renders the raster and vector tile URL templates a manifest
// reports for overlayID, mirroring slide.Describer's TileURLFunc. A
// nil URLFunc leaves both templates empty.
type URLFunc func(overlayID string) (rasterURLTempl, vectorURLTempl string)

// Service implements the four overlay HTTP operations over a content
// addressed Store.
type Service struct {
	store    *Store
	sessions SessionLookup
	parseCfg ParseConfig
	levels   int
	urlFn    URLFunc
}

// NewService builds a Service. levels bounds the pyramid depth the
// spatial index's tile-bin map is built for. urlFn may be nil, in
// which case manifests report empty URL templates.
func NewService(sessions SessionLookup, levels int, urlFn URLFunc) *Service {
	return &Service{
		store:    NewStore(),
		sessions: sessions,
		parseCfg: DefaultParseConfig(),
		levels:   levels,
		urlFn:    urlFn,
	}
}

// UploadOverlay derives an overlay from raw bytes and stores it under
// a session-prefixed id. Re-uploading identical bytes, even across
// sessions, returns the same content hash and resolves to the same
// stored artifact.
func (s *Service) UploadOverlay(sessionID string, raw []byte) (UploadResult, error) {
	if !s.sessions.Exists(sessionID) {
		return UploadResult{}, ErrSessionNotFound
	}

	derived, err := Derive(raw, s.parseCfg, s.levels)
	if err != nil {
		return UploadResult{}, err
	}

	overlayID := fmt.Sprintf("%s-%s", sessionID, derived.ContentSHA256[:16])
	stored := s.store.putOrGet(overlayID, derived)

	return UploadResult{
		OverlayID:       overlayID,
		ContentSHA256:   stored.ContentSHA256,
		CellCount:       len(stored.Cells),
		TissueTileCount: len(stored.raster),
	}, nil
}

// DiscoverAndLoad probes overlayDir for a pre-derived overlay belonging
// to slideID (via DiscoverOverlayFile) and, on a match, derives and
// stores it exactly as UploadOverlay would — the only difference is
// the id prefix, since a filesystem-discovered overlay has no upload
// session to scope it to. Re-running it against the same file is safe:
// putOrGet resolves to the already-stored artifact by content hash.
func (s *Service) DiscoverAndLoad(overlayDir, slideID string) (UploadResult, error) {
	path, err := DiscoverOverlayFile(overlayDir, slideID)
	if err != nil {
		return UploadResult{}, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return UploadResult{}, fmt.Errorf("overlay: reading %s: %w", path, err)
	}

	derived, err := Derive(raw, s.parseCfg, s.levels)
	if err != nil {
		return UploadResult{}, err
	}

	overlayID := fmt.Sprintf("slide-%s-%s", slideID, derived.ContentSHA256[:16])
	stored := s.store.putOrGet(overlayID, derived)

	return UploadResult{
		OverlayID:       overlayID,
		ContentSHA256:   stored.ContentSHA256,
		CellCount:       len(stored.Cells),
		TissueTileCount: len(stored.raster),
	}, nil
}

// GetManifest returns the manifest for a previously uploaded overlay.
func (s *Service) GetManifest(overlayID string) (Manifest, error) {
	overlay, ok := s.store.Get(overlayID)
	if !ok {
		return Manifest{}, ErrNotFound
	}
	m := Manifest{
		OverlayID:       overlayID,
		ContentSHA256:   overlay.ContentSHA256,
		TileSize:        overlay.TileSize,
		Levels:          overlay.Levels,
		CellClasses:     overlay.CellClasses,
		TissueClasses:   overlay.TissueClasses,
		CellCount:       len(overlay.Cells),
		TissueTileCount: len(overlay.raster),
	}
	if s.urlFn != nil {
		m.RasterURLTempl, m.VectorURLTempl = s.urlFn(overlayID)
	}
	return m, nil
}

// GetRasterTile returns the derived RGBA bytes at (level, x, y).
func (s *Service) GetRasterTile(overlayID string, level, x, y int) ([]byte, error) {
	overlay, ok := s.store.Get(overlayID)
	if !ok {
		return nil, ErrNotFound
	}
	pixels, ok := overlay.RasterTile(level, x, y)
	if !ok {
		return nil, ErrTileNotFound
	}
	return pixels, nil
}

// VectorCell is the wire shape GetVectorChunk returns per cell: quantized confidence, a tile-relative centroid offset, and
// full-precision absolute vertices.
type VectorCell struct {
	ClassID          uint32
	Confidence8      uint8 // round(confidence * 255)
	CentroidOffsetX  int16 // offset from tile origin; safe because <= tile size
	CentroidOffsetY  int16
	Vertices         []int32
}

// GetVectorChunk returns the (possibly truncated) cells binned at
// (level, x, y).
func (s *Service) GetVectorChunk(overlayID string, level, x, y, tileSize int) ([]VectorCell, error) {
	overlay, ok := s.store.Get(overlayID)
	if !ok {
		return nil, ErrNotFound
	}
	cells := overlay.VectorChunk(level, x, y)
	return toVectorCells(cells, x, y, tileSize), nil
}

// QueryCell is the wire shape QueryViewport returns per cell: unlike
// VectorCell's tile-relative offset (bounded by tile size, safe in
// 16 bits), a viewport query spans the whole slide, so the centroid
// is reported as absolute slide-pixel coordinates at full i32
// precision — slides routinely exceed 32,767 pixels on a side.
type QueryCell struct {
	ClassID     uint32
	Confidence8 uint8 // round(confidence * 255)
	CentroidX   int32
	CentroidY   int32
	Vertices    []int32
}

// QueryViewport returns every cell intersecting the given bounds.
func (s *Service) QueryViewport(overlayID string, minX, minY, maxX, maxY float64, limit int) ([]QueryCell, error) {
	overlay, ok := s.store.Get(overlayID)
	if !ok {
		return nil, ErrNotFound
	}
	cells := overlay.QueryViewport(minX, minY, maxX, maxY, limit)
	return toQueryCells(cells), nil
}

func toVectorCells(cells []Cell, tileX, tileY, tileSize int) []VectorCell {
	originX := float32(tileX * tileSize)
	originY := float32(tileY * tileSize)

	out := make([]VectorCell, len(cells))
	for i, c := range cells {
		out[i] = VectorCell{
			ClassID:         c.ClassID,
			Confidence8:     uint8(c.Confidence*255 + 0.5),
			CentroidOffsetX: int16(c.CentroidX - originX),
			CentroidOffsetY: int16(c.CentroidY - originY),
			Vertices:        c.Vertices,
		}
	}
	return out
}

func toQueryCells(cells []Cell) []QueryCell {
	out := make([]QueryCell, len(cells))
	for i, c := range cells {
		out[i] = QueryCell{
			ClassID:     c.ClassID,
			Confidence8: uint8(c.Confidence*255 + 0.5),
			CentroidX:   int32(c.CentroidX),
			CentroidY:   int32(c.CentroidY),
			Vertices:    c.Vertices,
		}
	}
	return out
}
