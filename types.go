package geoarrow

import (
	"fmt"
	"strings"
)

// GeometryType identifies the kind of a geometry. The values match the
// base WKB geometry codes.
type GeometryType uint8

const (
	GeometryTypeGeometry GeometryType = iota
	GeometryTypePoint
	GeometryTypeLineString
	GeometryTypePolygon
	GeometryTypeMultiPoint
	GeometryTypeMultiLineString
	GeometryTypeMultiPolygon
	GeometryTypeGeometryCollection
)

var geometryTypeNames = [...]string{
	GeometryTypeGeometry:           "GEOMETRY",
	GeometryTypePoint:              "POINT",
	GeometryTypeLineString:         "LINESTRING",
	GeometryTypePolygon:            "POLYGON",
	GeometryTypeMultiPoint:         "MULTIPOINT",
	GeometryTypeMultiLineString:    "MULTILINESTRING",
	GeometryTypeMultiPolygon:       "MULTIPOLYGON",
	GeometryTypeGeometryCollection: "GEOMETRYCOLLECTION",
}

func (g GeometryType) String() string {
	if int(g) < len(geometryTypeNames) {
		return geometryTypeNames[g]
	}
	return fmt.Sprintf("GeometryType(%d)", uint8(g))
}

// typed reports whether g has a fixed nested-array shape.
func (g GeometryType) typed() bool {
	return g >= GeometryTypePoint && g <= GeometryTypeMultiPolygon
}

// multi returns the multi variant of a single geometry type, or
// GeometryTypeGeometry when g has none.
func (g GeometryType) multi() GeometryType {
	switch g {
	case GeometryTypePoint:
		return GeometryTypeMultiPoint
	case GeometryTypeLineString:
		return GeometryTypeMultiLineString
	case GeometryTypePolygon:
		return GeometryTypeMultiPolygon
	default:
		return GeometryTypeGeometry
	}
}

// single returns the member type of a multi geometry type, or
// GeometryTypeGeometry when g is not a multi type.
func (g GeometryType) single() GeometryType {
	switch g {
	case GeometryTypeMultiPoint:
		return GeometryTypePoint
	case GeometryTypeMultiLineString:
		return GeometryTypeLineString
	case GeometryTypeMultiPolygon:
		return GeometryTypePolygon
	default:
		return GeometryTypeGeometry
	}
}

// ParseGeometryType parses a WKT geometry keyword such as "multipolygon".
func ParseGeometryType(s string) (GeometryType, error) {
	if g, ok := wktGeometryTypes[strings.ToUpper(s)]; ok {
		return g, nil
	}
	return GeometryTypeGeometry, newError(ErrUnsupportedType, "unknown geometry type %q", s)
}

// Dimensions identifies which ordinates a coordinate carries.
type Dimensions uint8

const (
	DimensionsUnknown Dimensions = iota
	DimensionsXY
	DimensionsXYZ
	DimensionsXYM
	DimensionsXYZM
)

var dimensionNames = [...]string{
	DimensionsUnknown: "",
	DimensionsXY:      "xy",
	DimensionsXYZ:     "xyz",
	DimensionsXYM:     "xym",
	DimensionsXYZM:    "xyzm",
}

func (d Dimensions) String() string {
	if int(d) < len(dimensionNames) {
		return dimensionNames[d]
	}
	return fmt.Sprintf("Dimensions(%d)", uint8(d))
}

// ParseDimensions parses "xy", "xyz", "xym" or "xyzm".
func ParseDimensions(s string) (Dimensions, error) {
	for d, name := range dimensionNames {
		if name != "" && strings.EqualFold(name, s) {
			return Dimensions(d), nil
		}
	}
	return DimensionsUnknown, newError(ErrUnsupportedType, "unknown dimensions %q", s)
}

// Count returns the number of ordinates per coordinate, or 0 when d is
// unknown.
func (d Dimensions) Count() int {
	switch d {
	case DimensionsXY:
		return 2
	case DimensionsXYZ, DimensionsXYM:
		return 3
	case DimensionsXYZM:
		return 4
	default:
		return 0
	}
}

// HasZ reports whether d carries a Z ordinate.
func (d Dimensions) HasZ() bool { return d == DimensionsXYZ || d == DimensionsXYZM }

// HasM reports whether d carries an M ordinate.
func (d Dimensions) HasM() bool { return d == DimensionsXYM || d == DimensionsXYZM }

func dimensionsOf(hasZ, hasM bool) Dimensions {
	switch {
	case hasZ && hasM:
		return DimensionsXYZM
	case hasZ:
		return DimensionsXYZ
	case hasM:
		return DimensionsXYM
	default:
		return DimensionsXY
	}
}

// CoordType is the physical layout of coordinates.
type CoordType uint8

const (
	CoordTypeUnknown CoordType = iota
	// CoordTypeSeparate stores each dimension in its own buffer.
	CoordTypeSeparate
	// CoordTypeInterleaved stores all dimensions of a coordinate
	// contiguously in one buffer.
	CoordTypeInterleaved
)

func (c CoordType) String() string {
	switch c {
	case CoordTypeSeparate:
		return "separate"
	case CoordTypeInterleaved:
		return "interleaved"
	default:
		return "unknown"
	}
}

// Type is a compact tag for a geometry type, dimensions and coordinate
// layout. Its value is the ISO WKB code of the geometry and dimensions,
// plus 10000 for interleaved coordinates.
type Type uint32

const (
	TypeUninitialized Type = 0

	TypePoint           Type = 1
	TypeLineString      Type = 2
	TypePolygon         Type = 3
	TypeMultiPoint      Type = 4
	TypeMultiLineString Type = 5
	TypeMultiPolygon    Type = 6

	TypePointZ           Type = 1001
	TypeLineStringZ      Type = 1002
	TypePolygonZ         Type = 1003
	TypeMultiPointZ      Type = 1004
	TypeMultiLineStringZ Type = 1005
	TypeMultiPolygonZ    Type = 1006

	TypePointM           Type = 2001
	TypeLineStringM      Type = 2002
	TypePolygonM         Type = 2003
	TypeMultiPointM      Type = 2004
	TypeMultiLineStringM Type = 2005
	TypeMultiPolygonM    Type = 2006

	TypePointZM           Type = 3001
	TypeLineStringZM      Type = 3002
	TypePolygonZM         Type = 3003
	TypeMultiPointZM      Type = 3004
	TypeMultiLineStringZM Type = 3005
	TypeMultiPolygonZM    Type = 3006

	// Serialized encodings. They have no fixed nested shape and are
	// rejected by ArrayView and Builder.
	TypeWKB      Type = 100001
	TypeLargeWKB Type = 100002
	TypeWKT      Type = 100003
	TypeLargeWKT Type = 100004
)

const interleavedOffset = 10000

// MakeType combines a geometry type, dimensions and coordinate layout into a
// Type. It returns TypeUninitialized when any component is unknown or the
// geometry type has no fixed nested shape.
func MakeType(g GeometryType, d Dimensions, c CoordType) Type {
	if !g.typed() || d == DimensionsUnknown || d > DimensionsXYZM {
		return TypeUninitialized
	}

	t := Type(uint32(g) + 1000*uint32(d-1))
	switch c {
	case CoordTypeSeparate:
		return t
	case CoordTypeInterleaved:
		return t + interleavedOffset
	default:
		return TypeUninitialized
	}
}

// Interleaved returns the interleaved variant of t.
func (t Type) Interleaved() Type {
	if t.CoordType() == CoordTypeSeparate {
		return t + interleavedOffset
	}
	return t
}

// GeometryType returns the geometry component of t.
func (t Type) GeometryType() GeometryType {
	if t >= TypeWKB || t == TypeUninitialized {
		return GeometryTypeGeometry
	}
	return GeometryType(uint32(t) % 1000)
}

// Dimensions returns the dimension component of t.
func (t Type) Dimensions() Dimensions {
	if t >= TypeWKB || t == TypeUninitialized {
		return DimensionsUnknown
	}
	return Dimensions((uint32(t)%interleavedOffset)/1000 + 1)
}

// CoordType returns the coordinate layout of t.
func (t Type) CoordType() CoordType {
	if t >= TypeWKB || t == TypeUninitialized {
		return CoordTypeUnknown
	}
	if t > interleavedOffset {
		return CoordTypeInterleaved
	}
	return CoordTypeSeparate
}

// Valid reports whether t describes one of the typed nested layouts.
func (t Type) Valid() bool {
	if t >= TypeWKB || t == TypeUninitialized {
		return false
	}
	return MakeType(t.GeometryType(), t.Dimensions(), t.CoordType()) == t
}

func (t Type) String() string {
	switch t {
	case TypeWKB:
		return "wkb"
	case TypeLargeWKB:
		return "large_wkb"
	case TypeWKT:
		return "wkt"
	case TypeLargeWKT:
		return "large_wkt"
	}
	if !t.Valid() {
		return fmt.Sprintf("Type(%d)", uint32(t))
	}

	s := t.GeometryType().String()
	switch t.Dimensions() {
	case DimensionsXYZ:
		s += " Z"
	case DimensionsXYM:
		s += " M"
	case DimensionsXYZM:
		s += " ZM"
	}
	if t.CoordType() == CoordTypeInterleaved {
		s += " (interleaved)"
	}
	return s
}

// OffsetLevelCount returns the number of list levels wrapping the
// coordinates of geometry type g: 0 for points, 3 for multipolygons.
// It returns -1 for geometry types without a fixed nested shape.
func OffsetLevelCount(g GeometryType) int {
	switch g {
	case GeometryTypePoint:
		return 0
	case GeometryTypeLineString, GeometryTypeMultiPoint:
		return 1
	case GeometryTypePolygon, GeometryTypeMultiLineString:
		return 2
	case GeometryTypeMultiPolygon:
		return 3
	default:
		return -1
	}
}

// DimensionCount returns the number of ordinates per coordinate for d.
func DimensionCount(d Dimensions) int {
	return d.Count()
}

// CoordinateStride returns the distance, in float64 values, between
// consecutive coordinates of one lane.
func CoordinateStride(d Dimensions, c CoordType) int {
	if c == CoordTypeInterleaved {
		return d.Count()
	}
	return 1
}

// wkbCode returns the ISO WKB geometry code for g and d.
func wkbCode(g GeometryType, d Dimensions) uint32 {
	code := uint32(g)
	switch d {
	case DimensionsXYZ:
		code += 1000
	case DimensionsXYM:
		code += 2000
	case DimensionsXYZM:
		code += 3000
	}
	return code
}
