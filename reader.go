package geoarrow

import (
	flatgeobuf "github.com/flatgeobuf/flatgeobuf/src/go"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb"
)

// FlatGeobufReader provides read access to a FlatGeobuf file as visitor
// events.
type FlatGeobufReader struct {
	fgb     *flatgeobuf.FlatGeoBuf
	scratch []float64
}

// NewFlatGeobufReader creates a reader from a file path.
// The file is memory-mapped for efficient access.
func NewFlatGeobufReader(path string) (*FlatGeobufReader, error) {
	fgb, err := flatgeobuf.New(path)
	if err != nil {
		return nil, err
	}

	return &FlatGeobufReader{fgb: fgb}, nil
}

// NewFlatGeobufReaderFromData creates a reader from byte data.
func NewFlatGeobufReaderFromData(data []byte) (*FlatGeobufReader, error) {
	fgb, err := flatgeobuf.NewWithData(data)
	if err != nil {
		return nil, err
	}

	return &FlatGeobufReader{fgb: fgb}, nil
}

// Header returns metadata about the FlatGeobuf file.
func (r *FlatGeobufReader) Header() *Header {
	h := r.fgb.Header()
	if h == nil {
		return nil
	}

	header := &Header{
		Name:          string(h.Name()),
		Description:   string(h.Description()),
		Dimensions:    dimensionsOf(h.HasZ(), h.HasM()),
		FeaturesCount: h.FeaturesCount(),
		HasIndex:      h.IndexNodeSize() > 0,
	}

	// Geometry type
	header.GeometryType = flattypes.EnumNamesGeometryType[h.GeometryType()]

	// Envelope
	envLen := h.EnvelopeLength()
	if envLen >= 4 {
		header.Envelope = [4]float64{
			h.Envelope(0),
			h.Envelope(1),
			h.Envelope(2),
			h.Envelope(3),
		}
	}

	// CRS
	var crs flattypes.Crs
	if h.Crs(&crs) != nil {
		header.CRS = &CRS{
			Code:        int(crs.Code()),
			Name:        string(crs.Name()),
			Description: string(crs.Description()),
		}
	}

	// Columns
	colLen := h.ColumnsLength()
	if colLen > 0 {
		header.Columns = make([]ColumnInfo, 0, colLen)
		for i := 0; i < colLen; i++ {
			var col flattypes.Column
			if h.Columns(&col, i) {
				header.Columns = append(header.Columns, ColumnInfo{
					Name:        string(col.Name()),
					Type:        flattypes.EnumNamesColumnType[col.Type()],
					Title:       string(col.Title()),
					Description: string(col.Description()),
					Nullable:    col.Nullable(),
				})
			}
		}
	}

	return header
}

// Visit emits every feature of the file in index order. Iteration goes
// through the spatial index, so a file without one returns ErrNoIndex.
func (r *FlatGeobufReader) Visit(v Visitor) error {
	h := r.fgb.Header()
	if h.FeaturesCount() == 0 {
		return nil
	}
	if h.IndexNodeSize() == 0 {
		return ErrNoIndex
	}
	if h.EnvelopeLength() < 4 {
		return newError(ErrInvalidData, "indexed file without an envelope")
	}
	return r.search(h, h.Envelope(0), h.Envelope(1), h.Envelope(2), h.Envelope(3), v)
}

// Search performs a spatial query using the built-in index and emits the
// features whose bounding boxes intersect bounds.
func (r *FlatGeobufReader) Search(bounds orb.Bound, v Visitor) error {
	h := r.fgb.Header()

	if h.IndexNodeSize() == 0 {
		return ErrNoIndex
	}
	return r.search(h, bounds.Min[0], bounds.Min[1], bounds.Max[0], bounds.Max[1], v)
}

func (r *FlatGeobufReader) search(h *flattypes.Header, minX, minY, maxX, maxY float64, v Visitor) error {
	features, err := r.fgb.Search(minX, minY, maxX, maxY)
	if err != nil {
		return err
	}

	dims := dimensionsOf(h.HasZ(), h.HasM())
	for _, f := range features {
		if err := r.visitFeature(f, h.GeometryType(), dims, v); err != nil {
			return err
		}
	}
	return nil
}

// Close releases resources associated with the reader.
// This is important for memory-mapped files.
func (r *FlatGeobufReader) Close() error {
	// The FlatGeoBuf type doesn't expose a public Close method,
	// but the finalizer will clean up when garbage collected.
	// Setting to nil allows GC to collect it.
	r.fgb = nil
	return nil
}

func (r *FlatGeobufReader) visitFeature(f *flattypes.Feature, headerType flattypes.GeometryType, dims Dimensions, v Visitor) error {
	if err := v.FeatStart(); err != nil {
		return err
	}

	var geomObj flattypes.Geometry
	g := f.Geometry(&geomObj)
	if g == nil {
		if err := v.NullFeat(); err != nil {
			return err
		}
		return v.FeatEnd()
	}

	// Features of a typed layer may leave their own type unset.
	t := g.Type()
	if t == flattypes.GeometryTypeUnknown {
		t = headerType
	}
	if err := r.visitGeometry(g, t, dims, v, 0); err != nil {
		return err
	}
	return v.FeatEnd()
}

// coords copies coordinates [start, end) of g into the reader's scratch
// space and returns an interleaved view over them.
func (r *FlatGeobufReader) coords(g *flattypes.Geometry, start, end int, dims Dimensions) CoordView {
	hasZ := dims.HasZ() && g.ZLength() >= end
	hasM := dims.HasM() && g.MLength() >= end
	dims = dimensionsOf(hasZ, hasM)

	flat := r.scratch[:0]
	for i := start; i < end; i++ {
		flat = append(flat, g.Xy(2*i), g.Xy(2*i+1))
		if hasZ {
			flat = append(flat, g.Z(i))
		}
		if hasM {
			flat = append(flat, g.M(i))
		}
	}
	r.scratch = flat
	return interleavedCoordView(dims, flat)
}

// rings returns the coordinate ranges of the rings or parts of g. A
// geometry without ends is a single range.
func rings(g *flattypes.Geometry) [][2]int {
	n := g.XyLength() / 2
	endsLen := g.EndsLength()
	if endsLen == 0 {
		return [][2]int{{0, n}}
	}

	out := make([][2]int, 0, endsLen)
	start := 0
	for i := 0; i < endsLen; i++ {
		end := int(g.Ends(i))
		if end > n {
			end = n
		}
		if end < start {
			end = start
		}
		out = append(out, [2]int{start, end})
		start = end
	}
	return out
}

func (r *FlatGeobufReader) visitPolygon(g *flattypes.Geometry, dims Dimensions, v Visitor) error {
	if err := v.GeomStart(GeometryTypePolygon, dims); err != nil {
		return err
	}
	if g.XyLength() >= 2 {
		for _, rg := range rings(g) {
			if err := v.RingStart(); err != nil {
				return err
			}
			if err := v.Coords(r.coords(g, rg[0], rg[1], dims)); err != nil {
				return err
			}
			if err := v.RingEnd(); err != nil {
				return err
			}
		}
	}
	return v.GeomEnd()
}

func (r *FlatGeobufReader) visitSequence(gt GeometryType, g *flattypes.Geometry, start, end int, dims Dimensions, v Visitor) error {
	if err := v.GeomStart(gt, dims); err != nil {
		return err
	}
	if err := v.Coords(r.coords(g, start, end, dims)); err != nil {
		return err
	}
	return v.GeomEnd()
}

func (r *FlatGeobufReader) visitGeometry(g *flattypes.Geometry, t flattypes.GeometryType, dims Dimensions, v Visitor, depth int) error {
	if depth >= MaxNestingDepth {
		return newError(ErrDecode, "FlatGeobuf nesting deeper than %d levels", MaxNestingDepth)
	}

	gt, ok := fromFGBGeometryType(t)
	if !ok {
		return newError(ErrUnsupportedType, "unsupported FlatGeobuf geometry type %s", flattypes.EnumNamesGeometryType[t])
	}
	n := g.XyLength() / 2

	switch gt {
	case GeometryTypePoint:
		if n == 0 {
			return r.visitSequence(gt, g, 0, 0, dims, v)
		}
		return r.visitSequence(gt, g, 0, 1, dims, v)

	case GeometryTypeLineString:
		return r.visitSequence(gt, g, 0, n, dims, v)

	case GeometryTypePolygon:
		return r.visitPolygon(g, dims, v)

	case GeometryTypeMultiPoint:
		if err := v.GeomStart(gt, dims); err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := r.visitSequence(GeometryTypePoint, g, i, i+1, dims, v); err != nil {
				return err
			}
		}
		return v.GeomEnd()

	case GeometryTypeMultiLineString:
		if err := v.GeomStart(gt, dims); err != nil {
			return err
		}
		if n > 0 {
			for _, rg := range rings(g) {
				if err := r.visitSequence(GeometryTypeLineString, g, rg[0], rg[1], dims, v); err != nil {
					return err
				}
			}
		}
		return v.GeomEnd()

	case GeometryTypeMultiPolygon:
		if err := v.GeomStart(gt, dims); err != nil {
			return err
		}
		partsLen := g.PartsLength()
		if partsLen == 0 {
			// Fallback: treat as single polygon
			if n > 0 {
				if err := r.visitPolygon(g, dims, v); err != nil {
					return err
				}
			}
			return v.GeomEnd()
		}
		for i := 0; i < partsLen; i++ {
			var part flattypes.Geometry
			if g.Parts(&part, i) {
				if err := r.visitPolygon(&part, dims, v); err != nil {
					return err
				}
			}
		}
		return v.GeomEnd()

	default:
		if err := v.GeomStart(gt, dims); err != nil {
			return err
		}
		for i := 0; i < g.PartsLength(); i++ {
			var part flattypes.Geometry
			if g.Parts(&part, i) {
				if err := r.visitGeometry(&part, part.Type(), dims, v, depth+1); err != nil {
					return err
				}
			}
		}
		return v.GeomEnd()
	}
}
