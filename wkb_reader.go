package geoarrow

import (
	"encoding/binary"
	"math"

	"github.com/apache/arrow/go/v17/arrow/array"
)

const (
	ewkbZFlag    = 0x80000000
	ewkbMFlag    = 0x40000000
	ewkbSRIDFlag = 0x20000000

	// Coordinates are decoded and handed to the visitor in chunks of this
	// many points.
	wkbCoordChunk = 64
)

// WKBReader decodes WKB (ISO and EWKB flavours, either byte order) into
// visitor events. A WKBReader reuses its scratch space between calls and
// must not be shared between goroutines.
type WKBReader struct {
	data    []byte
	pos     int
	depth   int
	scratch []float64
}

// NewWKBReader returns a reader.
func NewWKBReader() *WKBReader {
	return &WKBReader{scratch: make([]float64, 0, wkbCoordChunk*4)}
}

// Read emits one feature for the geometry encoded in data. A nil data is a
// null feature.
func (r *WKBReader) Read(data []byte, v Visitor) error {
	if err := v.FeatStart(); err != nil {
		return err
	}
	if data == nil {
		if err := v.NullFeat(); err != nil {
			return err
		}
		return v.FeatEnd()
	}

	r.data, r.pos, r.depth = data, 0, 0
	err := r.readGeometry(v)
	r.data = nil
	if err != nil {
		return err
	}
	if r.pos != len(data) {
		return newError(ErrDecode, "%d trailing bytes after WKB geometry", len(data)-r.pos)
	}
	return v.FeatEnd()
}

// VisitWKBArray emits one feature per element of arr.
func VisitWKBArray(arr *array.Binary, v Visitor) error {
	r := NewWKBReader()
	for i := 0; i < arr.Len(); i++ {
		var value []byte
		if arr.IsValid(i) {
			value = arr.Value(i)
			if value == nil {
				value = []byte{}
			}
		}
		if err := r.Read(value, v); err != nil {
			return err
		}
	}
	return nil
}

func (r *WKBReader) need(n int, what string) error {
	if len(r.data)-r.pos < n {
		return newError(ErrDecode, "unexpected end of buffer reading %s at byte %d: need %d bytes, have %d",
			what, r.pos, n, len(r.data)-r.pos)
	}
	return nil
}

func (r *WKBReader) readUint32(order binary.ByteOrder, what string) (uint32, error) {
	if err := r.need(4, what); err != nil {
		return 0, err
	}
	v := order.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *WKBReader) readHeader() (binary.ByteOrder, GeometryType, Dimensions, error) {
	if err := r.need(1, "byte order"); err != nil {
		return nil, 0, 0, err
	}
	var order binary.ByteOrder
	switch r.data[r.pos] {
	case 0x00:
		order = binary.BigEndian
	case 0x01:
		order = binary.LittleEndian
	default:
		return nil, 0, 0, newError(ErrDecode, "unrecognized byte order 0x%02x at byte %d", r.data[r.pos], r.pos)
	}
	r.pos++

	code, err := r.readUint32(order, "geometry type")
	if err != nil {
		return nil, 0, 0, err
	}

	hasZ := code&ewkbZFlag != 0
	hasM := code&ewkbMFlag != 0
	if code&ewkbSRIDFlag != 0 {
		if err := r.need(4, "SRID"); err != nil {
			return nil, 0, 0, err
		}
		r.pos += 4
	}
	code &^= ewkbZFlag | ewkbMFlag | ewkbSRIDFlag

	switch code / 1000 {
	case 1:
		hasZ = true
	case 2:
		hasM = true
	case 3:
		hasZ, hasM = true, true
	case 0:
	default:
		return nil, 0, 0, newError(ErrDecode, "unrecognized geometry type code %d", code)
	}
	g := GeometryType(code % 1000)
	if g < GeometryTypePoint || g > GeometryTypeGeometryCollection {
		return nil, 0, 0, newError(ErrDecode, "unrecognized geometry type code %d", code)
	}
	return order, g, dimensionsOf(hasZ, hasM), nil
}

func (r *WKBReader) readGeometry(v Visitor) error {
	if r.depth >= MaxNestingDepth {
		return newError(ErrDecode, "WKB nesting deeper than %d levels", MaxNestingDepth)
	}
	r.depth++
	defer func() { r.depth-- }()

	order, g, dims, err := r.readHeader()
	if err != nil {
		return err
	}
	if err := v.GeomStart(g, dims); err != nil {
		return err
	}

	switch g {
	case GeometryTypePoint:
		if err := r.readPoint(order, dims, v); err != nil {
			return err
		}

	case GeometryTypeLineString:
		if err := r.readSequence(order, dims, v); err != nil {
			return err
		}

	case GeometryTypePolygon:
		rings, err := r.readUint32(order, "ring count")
		if err != nil {
			return err
		}
		for i := uint32(0); i < rings; i++ {
			if err := v.RingStart(); err != nil {
				return err
			}
			if err := r.readSequence(order, dims, v); err != nil {
				return err
			}
			if err := v.RingEnd(); err != nil {
				return err
			}
		}

	default:
		parts, err := r.readUint32(order, "part count")
		if err != nil {
			return err
		}
		for i := uint32(0); i < parts; i++ {
			if err := r.readGeometry(v); err != nil {
				return err
			}
		}
	}
	return v.GeomEnd()
}

// readPoint emits a single coordinate, or nothing when every ordinate is
// NaN (the WKB spelling of POINT EMPTY).
func (r *WKBReader) readPoint(order binary.ByteOrder, dims Dimensions, v Visitor) error {
	n := dims.Count()
	if err := r.need(8*n, "point coordinates"); err != nil {
		return err
	}
	flat := r.decode(order, n)
	empty := true
	for _, f := range flat {
		if !math.IsNaN(f) {
			empty = false
			break
		}
	}
	if empty {
		return nil
	}
	return v.Coords(interleavedCoordView(dims, flat))
}

func (r *WKBReader) readSequence(order binary.ByteOrder, dims Dimensions, v Visitor) error {
	count, err := r.readUint32(order, "coordinate count")
	if err != nil {
		return err
	}
	n := dims.Count()
	if err := r.need(int(count)*8*n, "coordinates"); err != nil {
		return err
	}
	if count == 0 {
		return v.Coords(CoordView{NValues: n, Stride: n, Dims: dims})
	}
	for remaining := int(count); remaining > 0; {
		chunk := remaining
		if chunk > wkbCoordChunk {
			chunk = wkbCoordChunk
		}
		if err := v.Coords(interleavedCoordView(dims, r.decode(order, chunk*n))); err != nil {
			return err
		}
		remaining -= chunk
	}
	return nil
}

// decode reads n float64 values into the scratch buffer.
func (r *WKBReader) decode(order binary.ByteOrder, n int) []float64 {
	r.scratch = r.scratch[:0]
	for i := 0; i < n; i++ {
		r.scratch = append(r.scratch, math.Float64frombits(order.Uint64(r.data[r.pos:])))
		r.pos += 8
	}
	return r.scratch
}
