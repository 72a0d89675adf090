package geoarrow

import (
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
)

// CRS represents a coordinate reference system.
type CRS struct {
	Code        int    // EPSG code (e.g., 4326 for WGS84)
	Name        string // CRS name
	Description string // CRS description
	WKT         string // Well-Known Text representation
}

// WGS84 returns the standard WGS84 CRS (EPSG:4326).
func WGS84() *CRS {
	return &CRS{
		Code: 4326,
		Name: "WGS 84",
	}
}

// Options configures FlatGeobuf writing.
type Options struct {
	Name         string // Layer name
	Description  string // Layer description
	IncludeIndex bool   // Include spatial index (default: true)
	CRS          *CRS   // Coordinate reference system (optional)
}

// DefaultOptions returns default options for writing FlatGeobuf files.
func DefaultOptions() *Options {
	return &Options{
		IncludeIndex: true,
	}
}

// ColumnInfo describes a property column in a FlatGeobuf file. Properties
// are not decoded; the schema is reported for inspection only.
type ColumnInfo struct {
	Name        string // Column name
	Type        string // Column type ("Bool", "Int", "Long", "Double", "String", "Json", etc.)
	Title       string // Column title (human-readable)
	Description string // Column description
	Nullable    bool   // Whether the column can contain null values
}

// Header contains metadata about a FlatGeobuf file.
type Header struct {
	Name          string       // Layer name
	Description   string       // Layer description
	GeometryType  string       // Geometry type ("Point", "Polygon", "Unknown", etc.)
	Dimensions    Dimensions   // Coordinate dimensions of every feature
	FeaturesCount uint64       // Number of features in the file
	Envelope      [4]float64   // Bounding box [minX, minY, maxX, maxY]
	CRS           *CRS         // Coordinate reference system
	HasIndex      bool         // Whether the file has a spatial index
	Columns       []ColumnInfo // Property column schema
}

var fgbGeometryTypes = map[GeometryType]flattypes.GeometryType{
	GeometryTypePoint:              flattypes.GeometryTypePoint,
	GeometryTypeLineString:         flattypes.GeometryTypeLineString,
	GeometryTypePolygon:            flattypes.GeometryTypePolygon,
	GeometryTypeMultiPoint:         flattypes.GeometryTypeMultiPoint,
	GeometryTypeMultiLineString:    flattypes.GeometryTypeMultiLineString,
	GeometryTypeMultiPolygon:       flattypes.GeometryTypeMultiPolygon,
	GeometryTypeGeometryCollection: flattypes.GeometryTypeGeometryCollection,
}

// toFGBGeometryType converts a geometry type to its FlatGeobuf equivalent.
func toFGBGeometryType(g GeometryType) flattypes.GeometryType {
	if t, ok := fgbGeometryTypes[g]; ok {
		return t
	}
	return flattypes.GeometryTypeUnknown
}

// fromFGBGeometryType converts a FlatGeobuf geometry type, reporting false
// for types with no equivalent (curves, surfaces, Unknown).
func fromFGBGeometryType(t flattypes.GeometryType) (GeometryType, bool) {
	for g, ft := range fgbGeometryTypes {
		if ft == t {
			return g, true
		}
	}
	return GeometryTypeGeometry, false
}
