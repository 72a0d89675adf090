package geoarrow

import (
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/bitutil"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// ArrayView overlays geometry semantics on the buffers of a nested Arrow
// array without copying them. The view borrows the bound array's buffers:
// the array must stay alive (not released) for as long as the view is used.
//
// Once bound, an ArrayView is read only and may be shared between
// goroutines.
type ArrayView struct {
	schemaView SchemaView
	length     int
	validity   []byte
	nOffsets   int
	offsets    [3][]int32
	coords     CoordView
}

// NewArrayView returns an empty, zero-length view for t.
func NewArrayView(t Type) (*ArrayView, error) {
	sv, err := NewSchemaView(t)
	if err != nil {
		return nil, err
	}
	return newArrayView(sv), nil
}

// NewArrayViewFromField returns an empty view for the GeoArrow type
// described by field.
func NewArrayViewFromField(field arrow.Field) (*ArrayView, error) {
	sv, err := SchemaViewFromField(field)
	if err != nil {
		return nil, err
	}
	return newArrayView(sv), nil
}

func newArrayView(sv SchemaView) *ArrayView {
	v := &ArrayView{schemaView: sv, nOffsets: sv.NumOffsets()}
	v.clear()
	return v
}

func (v *ArrayView) clear() {
	sv := v.schemaView
	v.length = 0
	v.validity = nil
	v.offsets = [3][]int32{}
	v.coords = CoordView{
		NValues: sv.NumDimensions(),
		Stride:  CoordinateStride(sv.Dimensions, sv.CoordType),
		Dims:    sv.Dimensions,
	}
}

// SchemaView returns the shape of the view.
func (v *ArrayView) SchemaView() SchemaView { return v.schemaView }

// Length returns the number of features.
func (v *ArrayView) Length() int { return v.length }

// NumOffsets returns the number of offset levels.
func (v *ArrayView) NumOffsets() int { return v.nOffsets }

// Offsets returns the offsets of list level lvl, outermost first.
func (v *ArrayView) Offsets(lvl int) []int32 { return v.offsets[lvl] }

// Validity returns the validity bitmap, or nil when every feature is valid.
func (v *ArrayView) Validity() []byte { return v.validity }

// Coords returns a view over all coordinates of the array.
func (v *ArrayView) Coords() CoordView { return v.coords }

// IsNull reports whether feature i is null.
func (v *ArrayView) IsNull(i int) bool {
	return v.validity != nil && !bitutil.BitIsSet(v.validity, i)
}

// SetArray binds the view to data after checking that its buffers and
// children match the view's shape. Arrays with a non-zero offset are
// rejected with ErrNotSupported; structural mismatches are reported as
// ErrInvalidStructure naming the offending level. On error the view is
// left empty and SetArray may be called again.
func (v *ArrayView) SetArray(data arrow.ArrayData) error {
	v.clear()
	if err := v.bind(data); err != nil {
		v.clear()
		return err
	}
	return nil
}

func (v *ArrayView) bind(data arrow.ArrayData) error {
	if data.Offset() != 0 {
		return newError(ErrNotSupported, "arrays with offset != 0 are not yet supported (offset %d)", data.Offset())
	}

	length := data.Len()
	var validity []byte
	if bufs := data.Buffers(); len(bufs) > 0 && bufs[0] != nil && bufs[0].Len() > 0 {
		validity = bufs[0].Bytes()
		if int64(len(validity)) < bitutil.BytesForBits(int64(length)) {
			return newError(ErrInvalidStructure, "validity bitmap too short for %d features", length)
		}
	}

	level := data
	for lvl := 0; lvl < v.nOffsets; lvl++ {
		bufs := level.Buffers()
		if len(bufs) != 2 {
			return newError(ErrInvalidStructure,
				"unexpected number of buffers in list array at level %d: expected 2, got %d", lvl, len(bufs))
		}
		children := level.Children()
		if len(children) != 1 {
			return newError(ErrInvalidStructure,
				"unexpected number of children in list array at level %d: expected 1, got %d", lvl, len(children))
		}

		offsets, err := int32Values(bufs[1], level.Offset(), level.Len()+1)
		if err != nil {
			return newError(ErrInvalidStructure, "offsets of list array at level %d: %v", lvl, err)
		}
		if level.Len() == 0 {
			offsets = nil
		} else if first, last := offsets[0], offsets[len(offsets)-1]; first < 0 || last < first || int(last) > children[0].Len() {
			return newError(ErrInvalidStructure,
				"offsets of list array at level %d span [%d, %d) but child has length %d", lvl, first, last, children[0].Len())
		}
		for k := 1; k < len(offsets); k++ {
			if offsets[k] < offsets[k-1] {
				return newError(ErrInvalidStructure,
					"offsets of list array at level %d decrease at index %d (%d < %d)", lvl, k, offsets[k], offsets[k-1])
			}
		}
		v.offsets[lvl] = offsets
		level = children[0]
	}

	coords, err := v.bindCoords(level)
	if err != nil {
		return err
	}

	v.coords = coords
	v.validity = validity
	v.length = length
	return nil
}

func (v *ArrayView) bindCoords(data arrow.ArrayData) (CoordView, error) {
	dims := v.schemaView.Dimensions
	n := dims.Count()
	nCoords := data.Len()
	children := data.Children()

	if v.schemaView.CoordType == CoordTypeInterleaved {
		if len(children) != 1 {
			return CoordView{}, newError(ErrInvalidStructure,
				"unexpected number of children for interleaved coordinate array: expected 1, got %d", len(children))
		}
		if fsl, ok := data.DataType().(*arrow.FixedSizeListType); ok && int(fsl.Len()) != n {
			return CoordView{}, newError(ErrInvalidStructure,
				"unexpected interleaved coordinate size: expected %d, got %d", n, fsl.Len())
		}
		child := children[0]
		if len(child.Buffers()) != 2 {
			return CoordView{}, newError(ErrInvalidStructure,
				"unexpected number of buffers for interleaved coordinate array child: expected 2, got %d", len(child.Buffers()))
		}
		flat, err := float64Values(child.Buffers()[1], child.Offset()+data.Offset()*n, nCoords*n)
		if err != nil {
			return CoordView{}, newError(ErrInvalidStructure, "interleaved coordinates: %v", err)
		}
		cv := interleavedCoordView(dims, flat)
		cv.NCoords = nCoords
		return cv, nil
	}

	if len(children) != n {
		return CoordView{}, newError(ErrInvalidStructure,
			"unexpected number of children for struct coordinate array: expected %d, got %d", n, len(children))
	}
	lanes := make([][]float64, n)
	for i, child := range children {
		if len(child.Buffers()) != 2 {
			return CoordView{}, newError(ErrInvalidStructure,
				"unexpected number of buffers for struct coordinate array child %d: expected 2, got %d", i, len(child.Buffers()))
		}
		lane, err := float64Values(child.Buffers()[1], child.Offset()+data.Offset(), nCoords)
		if err != nil {
			return CoordView{}, newError(ErrInvalidStructure, "coordinate child %d: %v", i, err)
		}
		lanes[i] = lane
	}
	cv := separateCoordView(dims, lanes...)
	cv.NCoords = nCoords
	return cv, nil
}

// int32Values reinterprets buf as n int32 values starting at off.
func int32Values(buf *memory.Buffer, off, n int) ([]int32, error) {
	if buf == nil || buf.Len() == 0 {
		if n <= 1 {
			return nil, nil
		}
		return nil, newError(ErrInvalidStructure, "missing buffer for %d values", n)
	}
	values := arrow.Int32Traits.CastFromBytes(buf.Bytes())
	if off+n > len(values) {
		return nil, newError(ErrInvalidStructure, "buffer holds %d values, need %d", len(values), off+n)
	}
	return values[off : off+n], nil
}

// float64Values reinterprets buf as n float64 values starting at off.
func float64Values(buf *memory.Buffer, off, n int) ([]float64, error) {
	if n == 0 {
		return nil, nil
	}
	if buf == nil {
		return nil, newError(ErrInvalidStructure, "missing buffer for %d values", n)
	}
	values := arrow.Float64Traits.CastFromBytes(buf.Bytes())
	if off+n > len(values) {
		return nil, newError(ErrInvalidStructure, "buffer holds %d values, need %d", len(values), off+n)
	}
	return values[off : off+n], nil
}

// VisitFeature emits the events for feature i.
func (v *ArrayView) VisitFeature(i int, visitor Visitor) error {
	return v.Visit(i, 1, visitor)
}

// Visit emits the events for features [offset, offset+length).
func (v *ArrayView) Visit(offset, length int, visitor Visitor) error {
	if offset < 0 || length < 0 || offset+length > v.length {
		return newError(ErrInvalidStructure, "feature range [%d, %d) out of bounds for length %d",
			offset, offset+length, v.length)
	}

	for i := offset; i < offset+length; i++ {
		if err := visitor.FeatStart(); err != nil {
			return err
		}
		if v.IsNull(i) {
			if err := visitor.NullFeat(); err != nil {
				return err
			}
		} else if err := v.visitGeometry(i, visitor); err != nil {
			return err
		}
		if err := visitor.FeatEnd(); err != nil {
			return err
		}
	}
	return nil
}

func (v *ArrayView) visitGeometry(i int, visitor Visitor) error {
	dims := v.schemaView.Dimensions
	switch v.schemaView.GeometryType {
	case GeometryTypePoint:
		return v.visitPoint(i, visitor)

	case GeometryTypeLineString:
		return v.visitSequence(GeometryTypeLineString, 0, i, visitor)

	case GeometryTypePolygon:
		return v.visitPolygon(0, i, visitor)

	case GeometryTypeMultiPoint:
		start, end := v.offsets[0][i], v.offsets[0][i+1]
		if err := visitor.GeomStart(GeometryTypeMultiPoint, dims); err != nil {
			return err
		}
		for j := start; j < end; j++ {
			if err := v.visitPoint(int(j), visitor); err != nil {
				return err
			}
		}
		return visitor.GeomEnd()

	case GeometryTypeMultiLineString:
		start, end := v.offsets[0][i], v.offsets[0][i+1]
		if err := visitor.GeomStart(GeometryTypeMultiLineString, dims); err != nil {
			return err
		}
		for j := start; j < end; j++ {
			if err := v.visitSequence(GeometryTypeLineString, 1, int(j), visitor); err != nil {
				return err
			}
		}
		return visitor.GeomEnd()

	case GeometryTypeMultiPolygon:
		start, end := v.offsets[0][i], v.offsets[0][i+1]
		if err := visitor.GeomStart(GeometryTypeMultiPolygon, dims); err != nil {
			return err
		}
		for j := start; j < end; j++ {
			if err := v.visitPolygon(1, int(j), visitor); err != nil {
				return err
			}
		}
		return visitor.GeomEnd()
	}
	return newError(ErrUnsupportedType, "unsupported geometry type %s", v.schemaView.GeometryType)
}

// visitPoint emits coordinate row as a point. A row of NaN ordinates is an
// empty point.
func (v *ArrayView) visitPoint(row int, visitor Visitor) error {
	if err := visitor.GeomStart(GeometryTypePoint, v.schemaView.Dimensions); err != nil {
		return err
	}
	if !v.coords.allNaN(row) {
		if err := visitor.Coords(v.coords.Slice(row, 1)); err != nil {
			return err
		}
	}
	return visitor.GeomEnd()
}

// visitSequence emits element i of offset level lvl, which must be the
// innermost level, as a geometry made of one coordinate sequence.
func (v *ArrayView) visitSequence(g GeometryType, lvl, i int, visitor Visitor) error {
	start, end := v.offsets[lvl][i], v.offsets[lvl][i+1]
	if err := visitor.GeomStart(g, v.schemaView.Dimensions); err != nil {
		return err
	}
	if err := visitor.Coords(v.coords.Slice(int(start), int(end-start))); err != nil {
		return err
	}
	return visitor.GeomEnd()
}

// visitPolygon emits element i of offset level lvl as a polygon whose rings
// live at level lvl+1.
func (v *ArrayView) visitPolygon(lvl, i int, visitor Visitor) error {
	start, end := v.offsets[lvl][i], v.offsets[lvl][i+1]
	if err := visitor.GeomStart(GeometryTypePolygon, v.schemaView.Dimensions); err != nil {
		return err
	}
	rings := v.offsets[lvl+1]
	for r := start; r < end; r++ {
		if err := visitor.RingStart(); err != nil {
			return err
		}
		cs, ce := rings[r], rings[r+1]
		if err := visitor.Coords(v.coords.Slice(int(cs), int(ce-cs))); err != nil {
			return err
		}
		if err := visitor.RingEnd(); err != nil {
			return err
		}
	}
	return visitor.GeomEnd()
}
