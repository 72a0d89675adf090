package geoarrow

import (
	"encoding/binary"
	"math"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

const wkbLittleEndian = 0x01

// WKBWriter is a Visitor that encodes each feature as little-endian ISO WKB
// and collects the results in an Arrow binary array. Null features become
// null slots.
type WKBWriter struct {
	mem     memory.Allocator
	values  *array.BinaryBuilder
	buf     []byte
	levels  levels
	sizePos []int
	hasGeom bool
	isNull  bool
}

var _ Visitor = (*WKBWriter)(nil)

// NewWKBWriter returns an empty writer. A nil allocator means
// memory.DefaultAllocator.
func NewWKBWriter(mem memory.Allocator) *WKBWriter {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &WKBWriter{
		mem:    mem,
		values: array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary),
	}
}

// Len returns the number of features written so far.
func (w *WKBWriter) Len() int { return w.values.Len() }

// FeatStart implements Visitor.
func (w *WKBWriter) FeatStart() error {
	w.buf = w.buf[:0]
	w.levels.reset()
	w.sizePos = w.sizePos[:0]
	w.hasGeom = false
	w.isNull = false
	return nil
}

// NullFeat implements Visitor.
func (w *WKBWriter) NullFeat() error {
	w.isNull = true
	return nil
}

// GeomStart implements Visitor.
func (w *WKBWriter) GeomStart(g GeometryType, dims Dimensions) error {
	if parent := w.levels.top(); parent != nil {
		parent.count++
	} else if w.hasGeom {
		return newError(ErrSequence, "feature already has a geometry")
	}
	if err := w.levels.push(g, dims); err != nil {
		return err
	}
	w.hasGeom = true

	w.buf = append(w.buf, wkbLittleEndian)
	w.buf = binary.LittleEndian.AppendUint32(w.buf, wkbCode(g, dims))
	if g != GeometryTypePoint {
		w.sizePos = append(w.sizePos, len(w.buf))
		w.buf = binary.LittleEndian.AppendUint32(w.buf, 0)
	}
	return nil
}

// RingStart implements Visitor.
func (w *WKBWriter) RingStart() error {
	parent := w.levels.top()
	if parent == nil {
		return newError(ErrSequence, "ring_start called outside a geometry")
	}
	parent.count++
	if err := w.levels.push(GeometryTypeGeometry, parent.dims); err != nil {
		return err
	}
	w.sizePos = append(w.sizePos, len(w.buf))
	w.buf = binary.LittleEndian.AppendUint32(w.buf, 0)
	return nil
}

// Coords implements Visitor. Ordinates are written in the dimensions of the
// enclosing geometry; missing ordinates are written as NaN.
func (w *WKBWriter) Coords(cv CoordView) error {
	if cv.NCoords == 0 {
		return nil
	}
	top := w.levels.top()
	if top == nil {
		return newError(ErrSequence, "coords called outside a geometry")
	}
	if top.geometryType == GeometryTypePoint && top.count+cv.NCoords > 1 {
		return newError(ErrInvalidStructure, "point with more than one coordinate")
	}
	top.count += cv.NCoords

	lanes := laneMap(cv.dims(), top.dims)
	n := top.dims.Count()
	for row := 0; row < cv.NCoords; row++ {
		for lane := 0; lane < n; lane++ {
			w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(cv.valueOr(row, lanes[lane])))
		}
	}
	return nil
}

// RingEnd implements Visitor.
func (w *WKBWriter) RingEnd() error {
	lv, err := w.levels.pop("ring_end", true)
	if err != nil {
		return err
	}
	w.patchSize(lv.count)
	return nil
}

// GeomEnd implements Visitor. An empty point is written with NaN
// ordinates.
func (w *WKBWriter) GeomEnd() error {
	lv, err := w.levels.pop("geom_end", false)
	if err != nil {
		return err
	}
	if lv.geometryType == GeometryTypePoint {
		if lv.count == 0 {
			for i := 0; i < lv.dims.Count(); i++ {
				w.buf = binary.LittleEndian.AppendUint64(w.buf, math.Float64bits(math.NaN()))
			}
		}
		return nil
	}
	w.patchSize(lv.count)
	return nil
}

func (w *WKBWriter) patchSize(count int) {
	pos := w.sizePos[len(w.sizePos)-1]
	w.sizePos = w.sizePos[:len(w.sizePos)-1]
	binary.LittleEndian.PutUint32(w.buf[pos:], uint32(count))
}

// FeatEnd implements Visitor.
func (w *WKBWriter) FeatEnd() error {
	if w.levels.depth() != 0 {
		return newError(ErrSequence, "feat_end called with %d open levels", w.levels.depth())
	}
	if w.isNull || !w.hasGeom {
		w.values.AppendNull()
		return nil
	}
	w.values.Append(w.buf)
	return nil
}

// Finish returns the encoded features and resets the writer.
func (w *WKBWriter) Finish() (*array.Binary, error) {
	if w.levels.depth() != 0 {
		return nil, newError(ErrSequence, "Finish called with %d open levels", w.levels.depth())
	}
	return w.values.NewBinaryArray(), nil
}

// Release frees the writer's pending output.
func (w *WKBWriter) Release() {
	w.values.Release()
}
