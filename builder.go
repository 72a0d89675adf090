package geoarrow

import (
	"math"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/bitutil"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// Builder assembles a nested GeoArrow array, either from whole buffers with
// AppendBuffer or from visitor events (Builder implements Visitor).
//
// The builder owns every buffer it appends to until Finish hands them to the
// returned array. After Finish the builder must be Reset before it accepts
// more input.
type Builder struct {
	schemaView SchemaView
	mem        memory.Allocator
	nOffsets   int

	validity bitmap
	offsets  []*buffer
	coords   []*buffer

	bulk     bool
	finished bool

	// event state
	inFeature bool
	hasGeom   bool
	isNull    bool
	promoted  bool
	depth     int
	kinds     [MaxNestingDepth + 1]GeometryType
	starts    [MaxNestingDepth + 1]int
}

var _ Visitor = (*Builder)(nil)

// NewBuilder returns an empty builder for t. A nil allocator means
// memory.DefaultAllocator.
func NewBuilder(t Type, mem memory.Allocator) (*Builder, error) {
	sv, err := NewSchemaView(t)
	if err != nil {
		return nil, err
	}
	return newBuilder(sv, mem), nil
}

// NewBuilderFromField returns an empty builder for the GeoArrow type
// described by field.
func NewBuilderFromField(field arrow.Field, mem memory.Allocator) (*Builder, error) {
	sv, err := SchemaViewFromField(field)
	if err != nil {
		return nil, err
	}
	return newBuilder(sv, mem), nil
}

func newBuilder(sv SchemaView, mem memory.Allocator) *Builder {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	b := &Builder{schemaView: sv, mem: mem, nOffsets: sv.NumOffsets()}
	b.allocate()
	return b
}

func (b *Builder) allocate() {
	b.validity = bitmap{buffer: newBuffer(b.mem)}
	b.offsets = make([]*buffer, b.nOffsets)
	for i := range b.offsets {
		b.offsets[i] = newBuffer(b.mem)
	}
	nCoordBuffers := 1
	if b.schemaView.CoordType == CoordTypeSeparate {
		nCoordBuffers = b.schemaView.NumDimensions()
	}
	b.coords = make([]*buffer, nCoordBuffers)
	for i := range b.coords {
		b.coords[i] = newBuffer(b.mem)
	}
}

// SchemaView returns the shape of the arrays this builder produces.
func (b *Builder) SchemaView() SchemaView { return b.schemaView }

// NumBuffers returns the number of buffer slots accepted by AppendBuffer.
func (b *Builder) NumBuffers() int { return 1 + b.nOffsets + len(b.coords) }

// Len returns the number of features appended so far.
func (b *Builder) Len() int {
	if b.nOffsets > 0 {
		return levelLen(b.offsets[0])
	}
	return b.numCoords()
}

// AppendBuffer appends data verbatim to buffer slot i. Slot 0 is the
// validity bitmap, slots 1..NumOffsets are the offset levels (outermost
// first, int32 values), and the remaining slots hold float64 coordinates,
// one per dimension for separate layouts or a single interleaved buffer.
// The buffers are only checked against each other by Finish.
func (b *Builder) AppendBuffer(i int, data []byte) error {
	if b.finished {
		return errFinished()
	}
	if b.inFeature {
		return newError(ErrSequence, "AppendBuffer called inside a feature")
	}
	switch {
	case i == 0:
		b.validity.appendBytes(data)
		b.validity.bits = len(b.validity.Bytes()) * 8
	case i >= 1 && i <= b.nOffsets:
		b.offsets[i-1].appendBytes(data)
	case i > b.nOffsets && i < b.NumBuffers():
		b.coords[i-1-b.nOffsets].appendBytes(data)
	default:
		return newError(ErrInvalidStructure, "buffer slot %d out of range [0, %d)", i, b.NumBuffers())
	}
	b.bulk = true
	return nil
}

func (b *Builder) numCoords() int {
	n := b.coords[0].Len() / arrow.Float64SizeBytes
	if b.schemaView.CoordType == CoordTypeInterleaved {
		n /= b.schemaView.NumDimensions()
	}
	return n
}

// levelLen returns the number of elements described by an offsets buffer.
func levelLen(offsets *buffer) int {
	n := offsets.Len() / arrow.Int32SizeBytes
	if n == 0 {
		return 0
	}
	return n - 1
}

// childLen returns the number of elements below offset level lvl.
func (b *Builder) childLen(lvl int) int {
	if lvl == b.nOffsets-1 {
		return b.numCoords()
	}
	return levelLen(b.offsets[lvl+1])
}

// closeLevel records the current child count as the next offset of lvl.
func (b *Builder) closeLevel(lvl int) {
	if lvl >= b.nOffsets {
		return
	}
	offsets := b.offsets[lvl]
	if offsets.Len() == 0 {
		offsets.appendInt32(0)
	}
	offsets.appendInt32(int32(b.childLen(lvl)))
}

func (b *Builder) appendEmptyPoint() {
	n := b.schemaView.NumDimensions()
	if b.schemaView.CoordType == CoordTypeInterleaved {
		for i, dst := 0, b.coords[0].appendFloat64s(n); i < n; i++ {
			dst[i] = math.NaN()
		}
		return
	}
	for _, lane := range b.coords {
		lane.appendFloat64s(1)[0] = math.NaN()
	}
}

func errFinished() error {
	return newError(ErrSequence, "builder already finished; call Reset before reuse")
}

func (b *Builder) checkEvent() error {
	if b.finished {
		return errFinished()
	}
	if b.bulk {
		return newError(ErrSequence, "cannot mix visitor events with AppendBuffer")
	}
	return nil
}

// FeatStart implements Visitor.
func (b *Builder) FeatStart() error {
	if err := b.checkEvent(); err != nil {
		return err
	}
	if b.inFeature {
		return newError(ErrSequence, "feat_start called inside an open feature")
	}
	b.inFeature = true
	b.hasGeom = false
	b.isNull = false
	b.promoted = false
	b.depth = 0
	return nil
}

// NullFeat implements Visitor.
func (b *Builder) NullFeat() error {
	if err := b.checkEvent(); err != nil {
		return err
	}
	if !b.inFeature || b.hasGeom || b.depth != 0 {
		return newError(ErrSequence, "null_feat must directly follow feat_start")
	}
	b.isNull = true
	return nil
}

// GeomStart implements Visitor. A single geometry is accepted by the
// builder of its multi type and stored as a one-part multi geometry.
func (b *Builder) GeomStart(g GeometryType, dims Dimensions) error {
	if err := b.checkEvent(); err != nil {
		return err
	}
	if !b.inFeature {
		return newError(ErrSequence, "geom_start called outside a feature")
	}

	if b.depth == 0 {
		if b.hasGeom || b.isNull {
			return newError(ErrSequence, "feature already has a geometry")
		}
		want := b.schemaView.GeometryType
		switch {
		case g == want:
		case g.multi() == want:
			b.promoted = true
			b.kinds[0] = want
			b.starts[0] = b.numCoords()
			b.depth = 1
		default:
			return newError(ErrUnsupportedType, "cannot append %s to a %s builder", g, want)
		}
		b.hasGeom = true
	}
	return b.push(g)
}

func (b *Builder) push(g GeometryType) error {
	if b.depth >= MaxNestingDepth {
		return newError(ErrSequence, "maximum nesting depth of %d exceeded", MaxNestingDepth)
	}
	b.kinds[b.depth] = g
	b.starts[b.depth] = b.numCoords()
	b.depth++
	return nil
}

// RingStart implements Visitor.
func (b *Builder) RingStart() error {
	if err := b.checkEvent(); err != nil {
		return err
	}
	if b.depth == 0 {
		return newError(ErrSequence, "ring_start called outside a geometry")
	}
	return b.push(GeometryTypeGeometry)
}

// Coords implements Visitor. Coordinates are converted to the builder's
// dimensions: missing ordinates become NaN and extra ones are dropped.
func (b *Builder) Coords(cv CoordView) error {
	if err := b.checkEvent(); err != nil {
		return err
	}
	if b.depth == 0 {
		return newError(ErrSequence, "coords called outside a geometry")
	}
	if cv.NCoords == 0 {
		return nil
	}

	dims := b.schemaView.Dimensions
	n := dims.Count()
	lanes := laneMap(cv.dims(), dims)
	if b.schemaView.CoordType == CoordTypeInterleaved {
		dst := b.coords[0].appendFloat64s(cv.NCoords * n)
		for row := 0; row < cv.NCoords; row++ {
			for lane := 0; lane < n; lane++ {
				dst[row*n+lane] = cv.valueOr(row, lanes[lane])
			}
		}
		return nil
	}

	for lane := 0; lane < n; lane++ {
		dst := b.coords[lane].appendFloat64s(cv.NCoords)
		for row := range dst {
			dst[row] = cv.valueOr(row, lanes[lane])
		}
	}
	return nil
}

// RingEnd implements Visitor.
func (b *Builder) RingEnd() error {
	return b.end("ring_end", true)
}

// GeomEnd implements Visitor.
func (b *Builder) GeomEnd() error {
	if err := b.end("geom_end", false); err != nil {
		return err
	}
	if b.promoted && b.depth == 1 {
		return b.end("geom_end", false)
	}
	return nil
}

func (b *Builder) end(event string, ring bool) error {
	if err := b.checkEvent(); err != nil {
		return err
	}
	if b.depth == 0 {
		return newError(ErrSequence, "%s called with no open geometry or ring (level < 0)", event)
	}

	lvl := b.depth - 1
	if err := checkEndKind(event, b.kinds[lvl], ring); err != nil {
		return err
	}
	if b.kinds[lvl] == GeometryTypePoint {
		switch added := b.numCoords() - b.starts[lvl]; {
		case added == 0:
			b.appendEmptyPoint()
		case added > 1:
			return newError(ErrInvalidStructure, "point with %d coordinates", added)
		}
	}
	b.closeLevel(lvl)
	b.depth--
	return nil
}

// FeatEnd implements Visitor.
func (b *Builder) FeatEnd() error {
	if err := b.checkEvent(); err != nil {
		return err
	}
	if !b.inFeature {
		return newError(ErrSequence, "feat_end called outside a feature")
	}
	if b.depth != 0 {
		return newError(ErrSequence, "feat_end called with %d open levels", b.depth)
	}
	if !b.hasGeom && !b.isNull {
		return newError(ErrSequence, "feature has neither a geometry nor null_feat")
	}

	if b.isNull {
		if b.nOffsets > 0 {
			b.closeLevel(0)
		} else {
			b.appendEmptyPoint()
		}
	}
	b.validity.appendBit(!b.isNull)
	b.inFeature = false
	return nil
}

// Finish checks the appended buffers against each other and moves them into
// a new array. The builder must be Reset before further use.
func (b *Builder) Finish() (arrow.Array, error) {
	if b.finished {
		return nil, errFinished()
	}
	if b.inFeature {
		return nil, newError(ErrSequence, "Finish called inside an open feature")
	}

	nCoords, err := b.checkCoords()
	if err != nil {
		return nil, err
	}
	for lvl := b.nOffsets - 1; lvl >= 0; lvl-- {
		if err := b.checkOffsets(lvl); err != nil {
			return nil, err
		}
	}

	length := b.Len()
	useValidity := b.validity.Len() > 0 && (b.bulk || b.validity.unset > 0)
	nulls := 0
	if useValidity {
		if int64(b.validity.Len()) < bitutil.BytesForBits(int64(length)) {
			return nil, newError(ErrInvalidStructure,
				"validity bitmap has %d bytes, need %d for %d features",
				b.validity.Len(), bitutil.BytesForBits(int64(length)), length)
		}
		nulls = length - bitutil.CountSetBits(b.validity.Bytes(), 0, length)
	}

	var validityBuf *memory.Buffer
	if useValidity {
		validityBuf = b.validity.take()
		defer validityBuf.Release()
	}

	data := b.finishCoords(nCoords, validityBuf, nulls)
	names := levelNames[b.schemaView.GeometryType]
	for lvl := b.nOffsets - 1; lvl >= 0; lvl-- {
		var levelValidity *memory.Buffer
		levelNulls := 0
		if lvl == 0 {
			levelValidity, levelNulls = validityBuf, nulls
		}

		offsets := b.offsets[lvl].take()
		dt := arrow.ListOfField(arrow.Field{Name: names[lvl], Type: data.DataType()})
		parent := array.NewData(dt, offsets.Len()/arrow.Int32SizeBytes-1,
			[]*memory.Buffer{levelValidity, offsets}, []arrow.ArrayData{data}, levelNulls, 0)
		offsets.Release()
		data.Release()
		data = parent
	}

	arr := array.MakeFromData(data)
	data.Release()
	b.finished = true
	return arr, nil
}

func (b *Builder) checkCoords() (int, error) {
	n := b.schemaView.NumDimensions()
	width := arrow.Float64SizeBytes
	if b.schemaView.CoordType == CoordTypeInterleaved {
		width *= n
	}
	size := b.coords[0].Len()
	for i, c := range b.coords {
		if c.Len()%width != 0 {
			return 0, newError(ErrInvalidStructure,
				"coordinate buffer %d has %d bytes, not a multiple of %d", i, c.Len(), width)
		}
		if c.Len() != size {
			return 0, newError(ErrInvalidStructure,
				"coordinate buffer %d has %d bytes but buffer 0 has %d", i, c.Len(), size)
		}
	}
	return size / width, nil
}

func (b *Builder) checkOffsets(lvl int) error {
	buf := b.offsets[lvl]
	if buf.Len()%arrow.Int32SizeBytes != 0 {
		return newError(ErrInvalidStructure, "offset buffer at level %d has %d bytes", lvl, buf.Len())
	}
	if buf.Len() == 0 {
		buf.appendInt32(0)
	}

	offsets := buf.int32s()
	if offsets[0] < 0 {
		return newError(ErrInvalidStructure, "offset buffer at level %d starts at %d", lvl, offsets[0])
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return newError(ErrInvalidStructure,
				"offsets at level %d decrease at index %d (%d < %d)", lvl, i, offsets[i], offsets[i-1])
		}
	}
	if last, want := int(offsets[len(offsets)-1]), b.childLen(lvl); last != want {
		return newError(ErrInvalidStructure,
			"last offset at level %d is %d but child has length %d", lvl, last, want)
	}
	return nil
}

// finishCoords moves the coordinate buffers into the coordinate container.
// validity is only attached when the coordinates are the top level.
func (b *Builder) finishCoords(nCoords int, validity *memory.Buffer, nulls int) arrow.ArrayData {
	dt := b.schemaView.CoordDataType()
	if b.nOffsets > 0 {
		validity, nulls = nil, 0
	}

	n := b.schemaView.NumDimensions()
	children := make([]arrow.ArrayData, len(b.coords))
	for i, c := range b.coords {
		values := c.take()
		childLen := nCoords
		if b.schemaView.CoordType == CoordTypeInterleaved {
			childLen *= n
		}
		children[i] = array.NewData(arrow.PrimitiveTypes.Float64, childLen,
			[]*memory.Buffer{nil, values}, nil, 0, 0)
		values.Release()
	}

	data := array.NewData(dt, nCoords, []*memory.Buffer{validity}, children, nulls, 0)
	for _, child := range children {
		child.Release()
	}
	return data
}

// Reset discards all appended data and makes the builder reusable.
func (b *Builder) Reset() {
	b.Release()
	b.allocate()
	b.bulk = false
	b.finished = false
	b.inFeature = false
	b.hasGeom = false
	b.isNull = false
	b.promoted = false
	b.depth = 0
}

// Release frees the builder's buffers. The builder must be Reset before it
// is used again.
func (b *Builder) Release() {
	if b.validity.buffer != nil {
		b.validity.release()
	}
	for _, o := range b.offsets {
		o.release()
	}
	for _, c := range b.coords {
		c.release()
	}
	b.finished = true
}
