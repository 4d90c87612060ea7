package overlay

import (
	"fmt"
)

// ParseConfig bounds the limits enforced during parsing.
type ParseConfig struct {
	MaxPayloadBytes int
	MaxCells        int
	MaxTiles        int
}

// DefaultParseConfig returns the specification's default limits.
func DefaultParseConfig() ParseConfig {
	return ParseConfig{MaxPayloadBytes: MaxPayloadBytes, MaxCells: MaxCells, MaxTiles: MaxTiles}
}

// Parse decodes raw as a SlideSegmentationData message, enforcing the
// configured size and count limits before allocating anything
// proportional to message content.
func Parse(raw []byte, cfg ParseConfig) (SlideSegmentationData, error) {
	if len(raw) > cfg.MaxPayloadBytes {
		return SlideSegmentationData{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(raw), cfg.MaxPayloadBytes)
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return SlideSegmentationData{}, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	data := SlideSegmentationData{TissueClassMapping: make(map[uint32]string)}

	tileCount := 0
	cellCount := 0

	for _, f := range fields {
		switch f.num {
		case fieldSlideID:
			data.SlideID = string(f.bytes)
		case fieldSlidePath:
			data.SlidePath = string(f.bytes)
		case fieldMPP:
			data.MPP = asFloat32(f)
		case fieldMaxLevel:
			data.MaxLevel = int64(f.varint)
		case fieldCellModelName:
			data.CellModelName = string(f.bytes)
		case fieldTissueModelName:
			data.TissueModelName = string(f.bytes)
		case fieldTissueClassMapping:
			id, name, err := parseTissueClassEntry(f.bytes)
			if err != nil {
				return SlideSegmentationData{}, fmt.Errorf("%w: tissue class entry: %v", ErrUnsupportedFormat, err)
			}
			data.TissueClassMapping[id] = name
		case fieldTiles:
			tileCount++
			if tileCount > cfg.MaxTiles {
				return SlideSegmentationData{}, fmt.Errorf("%w: %d tiles exceeds %d", ErrTooManyTiles, tileCount, cfg.MaxTiles)
			}
			tile, err := parseTile(f.bytes)
			if err != nil {
				return SlideSegmentationData{}, fmt.Errorf("%w: tile %d: %v", ErrUnsupportedFormat, tileCount-1, err)
			}
			cellCount += len(tile.Cells)
			if cellCount > cfg.MaxCells {
				return SlideSegmentationData{}, fmt.Errorf("%w: %d cells exceeds %d", ErrTooManyCells, cellCount, cfg.MaxCells)
			}
			data.Tiles = append(data.Tiles, tile)
		}
	}

	return data, nil
}

func parseTissueClassEntry(b []byte) (uint32, string, error) {
	fields, err := decodeFields(b)
	if err != nil {
		return 0, "", err
	}
	var id uint32
	var name string
	for _, f := range fields {
		switch f.num {
		case fieldTissueMapEntryKey:
			id = uint32(f.varint)
		case fieldTissueMapEntryValue:
			name = string(f.bytes)
		}
	}
	return id, name, nil
}

func parseTile(b []byte) (RawTile, error) {
	fields, err := decodeFields(b)
	if err != nil {
		return RawTile{}, err
	}

	var t RawTile
	for _, f := range fields {
		switch f.num {
		case fieldTileX:
			t.X = int64(f.varint)
		case fieldTileY:
			t.Y = int64(f.varint)
		case fieldTileLevel:
			t.Level = int64(f.varint)
		case fieldTileWidth:
			t.Width = int64(f.varint)
		case fieldTileHeight:
			t.Height = int64(f.varint)
		case fieldTileMasks:
			poly, err := parsePolygon(f.bytes)
			if err != nil {
				return RawTile{}, fmt.Errorf("polygon: %w", err)
			}
			t.Cells = append(t.Cells, poly)
		case fieldTileTissue:
			tm, err := parseTissueMap(f.bytes)
			if err != nil {
				return RawTile{}, fmt.Errorf("tissue map: %w", err)
			}
			t.Tissue = tm
		}
	}
	return t, nil
}

func parsePolygon(b []byte) (RawCellPolygon, error) {
	fields, err := decodeFields(b)
	if err != nil {
		return RawCellPolygon{}, err
	}
	var p RawCellPolygon
	for _, f := range fields {
		switch f.num {
		case fieldPolyCellType:
			p.CellType = string(f.bytes)
		case fieldPolyConfidence:
			p.Confidence = asFloat32(f)
		case fieldPolyCoords:
			pt, err := parsePoint(f.bytes)
			if err != nil {
				return RawCellPolygon{}, fmt.Errorf("point: %w", err)
			}
			p.Vertices = append(p.Vertices, pt)
		}
	}
	return p, nil
}

func parsePoint(b []byte) (Point, error) {
	fields, err := decodeFields(b)
	if err != nil {
		return Point{}, err
	}
	var pt Point
	for _, f := range fields {
		switch f.num {
		case fieldPointX:
			pt.X = asFloat32(f)
		case fieldPointY:
			pt.Y = asFloat32(f)
		}
	}
	return pt, nil
}

func parseTissueMap(b []byte) (TissueMap, error) {
	fields, err := decodeFields(b)
	if err != nil {
		return TissueMap{}, err
	}
	var tm TissueMap
	for _, f := range fields {
		switch f.num {
		case fieldTissueMapData:
			tm.Data = f.bytes
		case fieldTissueMapWidth:
			tm.Width = int64(f.varint)
		case fieldTissueMapHeight:
			tm.Height = int64(f.varint)
		}
	}
	return tm, nil
}
