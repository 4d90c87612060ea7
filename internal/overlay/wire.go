package overlay

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire field numbers for the segmentation payload. No .proto source
// was available to generate code from, so these are decoded by hand
// with protowire's low-level primitives.
const (
	fieldSlideID            = 1
	fieldSlidePath          = 2
	fieldMPP                = 3
	fieldMaxLevel           = 4
	fieldCellModelName      = 5
	fieldTissueModelName    = 6
	fieldTissueClassMapping = 7
	fieldTiles              = 8
)

const (
	fieldTissueMapEntryKey   = 1
	fieldTissueMapEntryValue = 2
)

const (
	fieldTileX      = 1
	fieldTileY      = 2
	fieldTileLevel  = 3
	fieldTileWidth  = 4
	fieldTileHeight = 5
	fieldTileMasks  = 6
	fieldTileTissue = 7
)

const (
	fieldPolyCellID     = 1
	fieldPolyCellType   = 2
	fieldPolyConfidence = 3
	fieldPolyCoords     = 4
)

const (
	fieldPointX = 1
	fieldPointY = 2
)

const (
	fieldTissueMapData   = 1
	fieldTissueMapWidth  = 2
	fieldTissueMapHeight = 3
)

// wireField is one decoded top-level field: its number, its wire
// type, and its payload (the decoded varint, the fixed32 value, or the
// length-delimited bytes, by type).
type wireField struct {
	num     protowire.Number
	typ     protowire.Type
	varint  uint64
	fixed32 uint32
	bytes   []byte
}

// decodeFields walks every top-level field of a length-delimited
// protobuf message and returns the varint, fixed32 and
// length-delimited ones in wire order, whatever their field number;
// callers ignore the numbers they don't recognize. Fields of any other
// wire type (fixed64, groups) are consumed and skipped, not returned.
func decodeFields(b []byte) ([]wireField, error) {
	var fields []wireField
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("overlay: malformed field tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		var f wireField
		f.num, f.typ = num, typ

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("overlay: malformed varint field %d: %w", num, protowire.ParseError(n))
			}
			f.varint = v
			b = b[n:]
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return nil, fmt.Errorf("overlay: malformed fixed32 field %d: %w", num, protowire.ParseError(n))
			}
			f.fixed32 = v
			b = b[n:]
		case protowire.Fixed64Type:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("overlay: malformed fixed64 field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("overlay: malformed bytes field %d: %w", num, protowire.ParseError(n))
			}
			f.bytes = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("overlay: malformed field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func asFloat32(f wireField) float32 {
	return math.Float32frombits(f.fixed32)
}
