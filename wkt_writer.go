package geoarrow

import (
	"strconv"

	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// WKTOptions configures WKTWriter.
type WKTOptions struct {
	// Precision is the number of significant digits written per ordinate.
	// Negative means the shortest representation that round-trips.
	Precision int
	// FlatMultipoint writes MULTIPOINT (1 2, 3 4) instead of
	// MULTIPOINT ((1 2), (3 4)).
	FlatMultipoint bool
	// MaxElementSize truncates the text of each feature to this many bytes
	// when positive.
	MaxElementSize int
}

// DefaultWKTOptions returns the options used when none are given.
func DefaultWKTOptions() *WKTOptions {
	return &WKTOptions{Precision: 16}
}

// WKTWriter is a Visitor that renders each feature as WKT and collects the
// results in an Arrow string array.
type WKTWriter struct {
	opts    WKTOptions
	values  *array.StringBuilder
	buf     []byte
	levels  levels
	hasGeom bool
	isNull  bool
}

var _ Visitor = (*WKTWriter)(nil)

// NewWKTWriter returns an empty writer. Nil options mean
// DefaultWKTOptions; a nil allocator means memory.DefaultAllocator.
func NewWKTWriter(opts *WKTOptions, mem memory.Allocator) *WKTWriter {
	if opts == nil {
		opts = DefaultWKTOptions()
	}
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &WKTWriter{opts: *opts, values: array.NewStringBuilder(mem)}
}

// Len returns the number of features written so far.
func (w *WKTWriter) Len() int { return w.values.Len() }

// FeatStart implements Visitor.
func (w *WKTWriter) FeatStart() error {
	w.buf = w.buf[:0]
	w.levels.reset()
	w.hasGeom = false
	w.isNull = false
	return nil
}

// NullFeat implements Visitor.
func (w *WKTWriter) NullFeat() error {
	w.isNull = true
	return nil
}

// openChild writes the separator that precedes a child of the innermost
// open level: an opening parenthesis for the first child and a comma
// afterwards.
func (w *WKTWriter) openChild() {
	top := w.levels.top()
	if top.count == 0 {
		if w.named(len(w.levels.stack) - 1) {
			w.buf = append(w.buf, ' ')
		}
		w.buf = append(w.buf, '(')
	} else {
		w.buf = append(w.buf, ", "...)
	}
	top.count++
}

// named reports whether the level at index i printed a type keyword: the
// outermost geometry and the direct children of a collection do.
func (w *WKTWriter) named(i int) bool {
	lv := w.levels.stack[i]
	if lv.geometryType == GeometryTypeGeometry {
		return false
	}
	return i == 0 || w.levels.stack[i-1].geometryType == GeometryTypeGeometryCollection
}

// GeomStart implements Visitor.
func (w *WKTWriter) GeomStart(g GeometryType, dims Dimensions) error {
	parent := w.levels.top()
	if parent == nil && w.hasGeom {
		return newError(ErrSequence, "feature already has a geometry")
	}
	flatPoint := parent != nil && parent.geometryType == GeometryTypeMultiPoint && w.opts.FlatMultipoint
	if parent != nil && !flatPoint {
		w.openChild()
	}
	if err := w.levels.push(g, dims); err != nil {
		return err
	}
	w.hasGeom = true

	if w.named(len(w.levels.stack) - 1) {
		w.buf = append(w.buf, g.String()...)
		switch dims {
		case DimensionsXYZ:
			w.buf = append(w.buf, " Z"...)
		case DimensionsXYM:
			w.buf = append(w.buf, " M"...)
		case DimensionsXYZM:
			w.buf = append(w.buf, " ZM"...)
		}
	}
	return nil
}

// RingStart implements Visitor.
func (w *WKTWriter) RingStart() error {
	parent := w.levels.top()
	if parent == nil {
		return newError(ErrSequence, "ring_start called outside a geometry")
	}
	w.openChild()
	return w.levels.push(GeometryTypeGeometry, parent.dims)
}

// Coords implements Visitor.
func (w *WKTWriter) Coords(cv CoordView) error {
	if cv.NCoords == 0 {
		return nil
	}
	top := w.levels.top()
	if top == nil {
		return newError(ErrSequence, "coords called outside a geometry")
	}

	// In flat multipoint mode the point's coordinates belong to the
	// multipoint's list.
	target := len(w.levels.stack) - 1
	if top.geometryType == GeometryTypePoint && target > 0 && w.opts.FlatMultipoint &&
		w.levels.stack[target-1].geometryType == GeometryTypeMultiPoint {
		target--
	}

	lanes := laneMap(cv.dims(), top.dims)
	n := top.dims.Count()
	for row := 0; row < cv.NCoords; row++ {
		lv := &w.levels.stack[target]
		if lv.count == 0 {
			if w.named(target) {
				w.buf = append(w.buf, ' ')
			}
			w.buf = append(w.buf, '(')
		} else {
			w.buf = append(w.buf, ", "...)
		}
		lv.count++
		if target != len(w.levels.stack)-1 {
			top.count++
		}

		for lane := 0; lane < n; lane++ {
			if lane > 0 {
				w.buf = append(w.buf, ' ')
			}
			w.buf = strconv.AppendFloat(w.buf, cv.valueOr(row, lanes[lane]), 'g', w.opts.Precision, 64)
		}
	}
	return nil
}

func (w *WKTWriter) close(event string, ring bool) error {
	i := len(w.levels.stack) - 1
	if i < 0 {
		return newError(ErrSequence, "%s called with no open geometry or ring (level < 0)", event)
	}
	named := w.named(i)
	lv, err := w.levels.pop(event, ring)
	if err != nil {
		return err
	}

	parent := w.levels.top()
	if lv.geometryType == GeometryTypePoint && parent != nil &&
		parent.geometryType == GeometryTypeMultiPoint && w.opts.FlatMultipoint {
		return nil
	}

	switch {
	case lv.count > 0:
		w.buf = append(w.buf, ')')
	case named:
		w.buf = append(w.buf, " EMPTY"...)
	default:
		w.buf = append(w.buf, "EMPTY"...)
	}
	return nil
}

// RingEnd implements Visitor.
func (w *WKTWriter) RingEnd() error { return w.close("ring_end", true) }

// GeomEnd implements Visitor.
func (w *WKTWriter) GeomEnd() error { return w.close("geom_end", false) }

// FeatEnd implements Visitor.
func (w *WKTWriter) FeatEnd() error {
	if w.levels.depth() != 0 {
		return newError(ErrSequence, "feat_end called with %d open levels", w.levels.depth())
	}
	if w.isNull || !w.hasGeom {
		w.values.AppendNull()
		return nil
	}
	out := w.buf
	if w.opts.MaxElementSize > 0 && len(out) > w.opts.MaxElementSize {
		out = out[:w.opts.MaxElementSize]
	}
	w.values.BinaryBuilder.Append(out)
	return nil
}

// Finish returns the rendered features and resets the writer.
func (w *WKTWriter) Finish() (*array.String, error) {
	if w.levels.depth() != 0 {
		return nil, newError(ErrSequence, "Finish called with %d open levels", w.levels.depth())
	}
	return w.values.NewStringArray(), nil
}

// Release frees the writer's pending output.
func (w *WKTWriter) Release() {
	w.values.Release()
}
