package geoarrow

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/cockroachdb/errors"
)

var wktGeometryTypes = map[string]GeometryType{
	"POINT":              GeometryTypePoint,
	"LINESTRING":         GeometryTypeLineString,
	"POLYGON":            GeometryTypePolygon,
	"MULTIPOINT":         GeometryTypeMultiPoint,
	"MULTILINESTRING":    GeometryTypeMultiLineString,
	"MULTIPOLYGON":       GeometryTypeMultiPolygon,
	"GEOMETRYCOLLECTION": GeometryTypeGeometryCollection,
}

// WKTReader parses well-known text into visitor events. Keywords are
// case-insensitive and an untagged geometry is XY unless it is nested in a
// tagged one. A WKTReader must not be shared between goroutines.
type WKTReader struct {
	s      string
	pos    int
	depth  int
	coords []float64
}

// NewWKTReader returns a reader.
func NewWKTReader() *WKTReader {
	return &WKTReader{coords: make([]float64, 0, wkbCoordChunk*4)}
}

// Read emits one feature for the geometry in text.
func (r *WKTReader) Read(text string, v Visitor) error {
	if err := v.FeatStart(); err != nil {
		return err
	}
	r.s, r.pos, r.depth = text, 0, 0
	if err := r.readGeometry(v, DimensionsUnknown); err != nil {
		return err
	}
	r.skipSpace()
	if r.pos != len(r.s) {
		return r.errorf("unexpected text after geometry")
	}
	return v.FeatEnd()
}

// VisitWKTArray emits one feature per element of arr. Null elements become
// null features.
func VisitWKTArray(arr *array.String, v Visitor) error {
	r := NewWKTReader()
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			if err := visitNull(v); err != nil {
				return err
			}
			continue
		}
		if err := r.Read(arr.Value(i), v); err != nil {
			return errors.Wrapf(err, "feature %d", i)
		}
	}
	return nil
}

func visitNull(v Visitor) error {
	if err := v.FeatStart(); err != nil {
		return err
	}
	if err := v.NullFeat(); err != nil {
		return err
	}
	return v.FeatEnd()
}

func (r *WKTReader) errorf(format string, args ...interface{}) error {
	context := r.s[r.pos:]
	if len(context) > 20 {
		context = context[:20] + "..."
	}
	return newError(ErrDecode, "%s at byte %d: '%s'", fmt.Sprintf(format, args...), r.pos, context)
}

func (r *WKTReader) skipSpace() {
	for r.pos < len(r.s) {
		switch r.s[r.pos] {
		case ' ', '\t', '\n', '\r':
			r.pos++
		default:
			return
		}
	}
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// peekWord returns the upper-cased keyword at the cursor without consuming
// it.
func (r *WKTReader) peekWord() (string, int) {
	r.skipSpace()
	end := r.pos
	for end < len(r.s) && isWordByte(r.s[end]) {
		end++
	}
	return strings.ToUpper(r.s[r.pos:end]), end
}

func (r *WKTReader) word() string {
	w, end := r.peekWord()
	r.pos = end
	return w
}

// peek returns the next non-space byte or 0 at the end of input.
func (r *WKTReader) peek() byte {
	r.skipSpace()
	if r.pos >= len(r.s) {
		return 0
	}
	return r.s[r.pos]
}

func (r *WKTReader) expect(c byte) error {
	if r.peek() != c {
		return r.errorf("expected '%c'", c)
	}
	r.pos++
	return nil
}

// empty consumes EMPTY if it is next and reports whether it did.
func (r *WKTReader) empty() bool {
	if w, end := r.peekWord(); w == "EMPTY" {
		r.pos = end
		return true
	}
	return false
}

func (r *WKTReader) readGeometry(v Visitor, inherited Dimensions) error {
	if r.depth >= MaxNestingDepth {
		return r.errorf("nesting deeper than %d levels", MaxNestingDepth)
	}
	r.depth++
	defer func() { r.depth-- }()

	name := r.word()
	g, ok := wktGeometryTypes[name]
	if !ok {
		if name == "" {
			return r.errorf("expected geometry type")
		}
		return r.errorf("unrecognized geometry type '%s'", name)
	}

	dims := inherited
	switch w, end := r.peekWord(); w {
	case "Z":
		dims, r.pos = DimensionsXYZ, end
	case "M":
		dims, r.pos = DimensionsXYM, end
	case "ZM":
		dims, r.pos = DimensionsXYZM, end
	}
	if dims == DimensionsUnknown {
		dims = DimensionsXY
	}

	if err := v.GeomStart(g, dims); err != nil {
		return err
	}
	if !r.empty() {
		if err := r.readBody(v, g, dims); err != nil {
			return err
		}
	}
	return v.GeomEnd()
}

// readBody reads the parenthesized contents of a non-empty geometry whose
// GeomStart has already been emitted.
func (r *WKTReader) readBody(v Visitor, g GeometryType, dims Dimensions) error {
	switch g {
	case GeometryTypePoint:
		if err := r.expect('('); err != nil {
			return err
		}
		r.coords = r.coords[:0]
		if err := r.readCoord(dims); err != nil {
			return err
		}
		if err := r.expect(')'); err != nil {
			return err
		}
		return v.Coords(interleavedCoordView(dims, r.coords))

	case GeometryTypeLineString:
		return r.readSequence(v, dims)

	case GeometryTypePolygon:
		return r.readList(func() error {
			if err := v.RingStart(); err != nil {
				return err
			}
			if !r.empty() {
				if err := r.readSequence(v, dims); err != nil {
					return err
				}
			}
			return v.RingEnd()
		})

	case GeometryTypeMultiPoint:
		return r.readList(func() error {
			if err := v.GeomStart(GeometryTypePoint, dims); err != nil {
				return err
			}
			switch {
			case r.empty():
			case r.peek() == '(':
				if err := r.readBody(v, GeometryTypePoint, dims); err != nil {
					return err
				}
			default:
				r.coords = r.coords[:0]
				if err := r.readCoord(dims); err != nil {
					return err
				}
				if err := v.Coords(interleavedCoordView(dims, r.coords)); err != nil {
					return err
				}
			}
			return v.GeomEnd()
		})

	case GeometryTypeMultiLineString, GeometryTypeMultiPolygon:
		child := g.single()
		return r.readList(func() error {
			if err := v.GeomStart(child, dims); err != nil {
				return err
			}
			if !r.empty() {
				if err := r.readBody(v, child, dims); err != nil {
					return err
				}
			}
			return v.GeomEnd()
		})

	case GeometryTypeGeometryCollection:
		return r.readList(func() error {
			return r.readGeometry(v, dims)
		})
	}
	return r.errorf("unexpected geometry type %s", g)
}

// readList reads '(' item (',' item)* ')'.
func (r *WKTReader) readList(item func() error) error {
	if err := r.expect('('); err != nil {
		return err
	}
	for {
		if err := item(); err != nil {
			return err
		}
		switch r.peek() {
		case ',':
			r.pos++
		case ')':
			r.pos++
			return nil
		default:
			return r.errorf("expected ',' or ')'")
		}
	}
}

// readSequence reads a parenthesized coordinate list and emits it in
// chunks.
func (r *WKTReader) readSequence(v Visitor, dims Dimensions) error {
	n := dims.Count()
	r.coords = r.coords[:0]
	err := r.readList(func() error {
		if len(r.coords) == wkbCoordChunk*n {
			if err := v.Coords(interleavedCoordView(dims, r.coords)); err != nil {
				return err
			}
			r.coords = r.coords[:0]
		}
		return r.readCoord(dims)
	})
	if err != nil {
		return err
	}
	return v.Coords(interleavedCoordView(dims, r.coords))
}

// readCoord appends exactly dims.Count() ordinates to r.coords.
func (r *WKTReader) readCoord(dims Dimensions) error {
	for i := 0; i < dims.Count(); i++ {
		f, err := r.number()
		if err != nil {
			return err
		}
		r.coords = append(r.coords, f)
	}
	if c := r.peek(); c != ',' && c != ')' {
		return r.errorf("expected ',' or ')' after %d ordinates", dims.Count())
	}
	return nil
}

func (r *WKTReader) number() (float64, error) {
	r.skipSpace()
	start := r.pos
	for r.pos < len(r.s) {
		c := r.s[r.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == ',' || c == '(' || c == ')' {
			break
		}
		r.pos++
	}
	if start == r.pos {
		return 0, r.errorf("expected number")
	}
	f, err := strconv.ParseFloat(r.s[start:r.pos], 64)
	if err != nil {
		r.pos = start
		return 0, r.errorf("expected number")
	}
	return f, nil
}
