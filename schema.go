package geoarrow

import (
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
)

// Arrow extension metadata keys.
const (
	ExtensionNameKey     = "ARROW:extension:name"
	ExtensionMetadataKey = "ARROW:extension:metadata"
)

var extensionNames = map[GeometryType]string{
	GeometryTypePoint:           "geoarrow.point",
	GeometryTypeLineString:      "geoarrow.linestring",
	GeometryTypePolygon:         "geoarrow.polygon",
	GeometryTypeMultiPoint:      "geoarrow.multipoint",
	GeometryTypeMultiLineString: "geoarrow.multilinestring",
	GeometryTypeMultiPolygon:    "geoarrow.multipolygon",
}

// Names of the list children at each nesting level, outermost first.
var levelNames = map[GeometryType][]string{
	GeometryTypePoint:           nil,
	GeometryTypeLineString:      {"vertices"},
	GeometryTypePolygon:         {"rings", "vertices"},
	GeometryTypeMultiPoint:      {"points"},
	GeometryTypeMultiLineString: {"linestrings", "vertices"},
	GeometryTypeMultiPolygon:    {"polygons", "rings", "vertices"},
}

// SchemaView is the immutable shape description shared by ArrayView and
// Builder.
type SchemaView struct {
	Type         Type
	GeometryType GeometryType
	Dimensions   Dimensions
	CoordType    CoordType
}

// NewSchemaView validates t and expands it into a SchemaView.
func NewSchemaView(t Type) (SchemaView, error) {
	if !t.Valid() {
		return SchemaView{}, newError(ErrUnsupportedType, "unsupported geometry type %s: no fixed nested layout", t)
	}
	return SchemaView{
		Type:         t,
		GeometryType: t.GeometryType(),
		Dimensions:   t.Dimensions(),
		CoordType:    t.CoordType(),
	}, nil
}

// NumOffsets returns the number of list levels above the coordinates.
func (s SchemaView) NumOffsets() int {
	return OffsetLevelCount(s.GeometryType)
}

// NumDimensions returns the number of ordinates per coordinate.
func (s SchemaView) NumDimensions() int {
	return s.Dimensions.Count()
}

// ExtensionName returns the GeoArrow extension name, e.g. "geoarrow.point".
func (s SchemaView) ExtensionName() string {
	return extensionNames[s.GeometryType]
}

// CoordDataType returns the Arrow type of the coordinate container.
func (s SchemaView) CoordDataType() arrow.DataType {
	names := laneNames(s.Dimensions)
	if s.CoordType == CoordTypeInterleaved {
		return arrow.FixedSizeListOfField(int32(len(names)), arrow.Field{
			Name: string(names),
			Type: arrow.PrimitiveTypes.Float64,
		})
	}

	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		fields[i] = arrow.Field{Name: string(name), Type: arrow.PrimitiveTypes.Float64}
	}
	return arrow.StructOf(fields...)
}

// DataType returns the Arrow storage type of arrays with this shape.
func (s SchemaView) DataType() arrow.DataType {
	dt := s.CoordDataType()
	names := levelNames[s.GeometryType]
	for i := len(names) - 1; i >= 0; i-- {
		dt = arrow.ListOfField(arrow.Field{Name: names[i], Type: dt})
	}
	return dt
}

// Field returns a nullable field with the storage type and GeoArrow
// extension metadata.
func (s SchemaView) Field(name string) arrow.Field {
	return arrow.Field{
		Name:     name,
		Type:     s.DataType(),
		Nullable: true,
		Metadata: arrow.NewMetadata(
			[]string{ExtensionNameKey, ExtensionMetadataKey},
			[]string{s.ExtensionName(), "{}"},
		),
	}
}

// SchemaViewFromField derives a SchemaView from a field carrying GeoArrow
// extension metadata. Serialized encodings (geoarrow.wkb, geoarrow.wkt) and
// storage types that do not match the extension name are rejected with
// ErrUnsupportedType.
func SchemaViewFromField(field arrow.Field) (SchemaView, error) {
	idx := field.Metadata.FindKey(ExtensionNameKey)
	if idx < 0 {
		return SchemaView{}, newError(ErrUnsupportedType, "field %q has no %s metadata", field.Name, ExtensionNameKey)
	}
	extName := field.Metadata.Values()[idx]

	geometryType := GeometryTypeGeometry
	for g, name := range extensionNames {
		if name == extName {
			geometryType = g
			break
		}
	}
	if geometryType == GeometryTypeGeometry {
		return SchemaView{}, newError(ErrUnsupportedType, "unsupported geometry type %q in field %q", extName, field.Name)
	}

	dt := field.Type
	for lvl := 0; lvl < OffsetLevelCount(geometryType); lvl++ {
		list, ok := dt.(*arrow.ListType)
		if !ok {
			return SchemaView{}, newError(ErrUnsupportedType,
				"expected list storage at nesting level %d of %s, got %s", lvl, extName, dt)
		}
		dt = list.Elem()
	}

	dims, coordType, err := coordLayout(dt)
	if err != nil {
		return SchemaView{}, err
	}
	return NewSchemaView(MakeType(geometryType, dims, coordType))
}

// coordLayout inspects a coordinate container type.
func coordLayout(dt arrow.DataType) (Dimensions, CoordType, error) {
	switch t := dt.(type) {
	case *arrow.StructType:
		names := make([]string, t.NumFields())
		for i := range names {
			f := t.Field(i)
			if f.Type.ID() != arrow.FLOAT64 {
				return DimensionsUnknown, CoordTypeUnknown, newError(ErrUnsupportedType,
					"coordinate child %q must be float64, got %s", f.Name, f.Type)
			}
			names[i] = strings.ToLower(f.Name)
		}
		dims := dimensionsFromName(strings.Join(names, ""))
		if dims == DimensionsUnknown {
			return dims, CoordTypeUnknown, newError(ErrUnsupportedType,
				"unexpected coordinate struct fields %v", names)
		}
		return dims, CoordTypeSeparate, nil

	case *arrow.FixedSizeListType:
		if t.Elem().ID() != arrow.FLOAT64 {
			return DimensionsUnknown, CoordTypeUnknown, newError(ErrUnsupportedType,
				"interleaved coordinates must be float64, got %s", t.Elem())
		}
		dims := dimensionsFromName(strings.ToLower(t.ElemField().Name))
		if dims == DimensionsUnknown || int32(dims.Count()) != t.Len() {
			switch t.Len() {
			case 2:
				dims = DimensionsXY
			case 3:
				dims = DimensionsXYZ
			case 4:
				dims = DimensionsXYZM
			default:
				return DimensionsUnknown, CoordTypeUnknown, newError(ErrUnsupportedType,
					"unexpected interleaved coordinate size %d", t.Len())
			}
		}
		return dims, CoordTypeInterleaved, nil

	default:
		return DimensionsUnknown, CoordTypeUnknown, newError(ErrUnsupportedType,
			"expected struct or fixed_size_list coordinates, got %s", dt)
	}
}

func dimensionsFromName(name string) Dimensions {
	switch name {
	case "xy":
		return DimensionsXY
	case "xyz":
		return DimensionsXYZ
	case "xym":
		return DimensionsXYM
	case "xyzm":
		return DimensionsXYZM
	default:
		return DimensionsUnknown
	}
}
