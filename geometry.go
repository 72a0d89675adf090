package geoarrow

// geometryNode is an owned, in-memory geometry assembled from visitor
// events. Coordinates are interleaved in the node's dimensions.
type geometryNode struct {
	geometryType GeometryType
	dims         Dimensions
	coords       []float64
	ends         []int // polygon ring ends, in coordinates
	parts        []*geometryNode
}

func (n *geometryNode) numCoords() int {
	return len(n.coords) / n.dims.Count()
}

// ring returns the interleaved coordinates of polygon ring i.
func (n *geometryNode) ring(i int) []float64 {
	start := 0
	if i > 0 {
		start = n.ends[i-1]
	}
	stride := n.dims.Count()
	return n.coords[start*stride : n.ends[i]*stride]
}

// geometryCollector is a Visitor that assembles one geometryNode per
// feature and hands it to emit; null features are emitted as nil. Sinks
// producing owned geometry values embed it.
type geometryCollector struct {
	emit     func(*geometryNode) error
	stack    []*geometryNode
	root     *geometryNode
	ringOpen bool
	isNull   bool
}

var _ Visitor = (*geometryCollector)(nil)

func (c *geometryCollector) top() *geometryNode {
	if len(c.stack) == 0 {
		return nil
	}
	return c.stack[len(c.stack)-1]
}

func (c *geometryCollector) depth() int {
	if c.ringOpen {
		return len(c.stack) + 1
	}
	return len(c.stack)
}

// FeatStart implements Visitor.
func (c *geometryCollector) FeatStart() error {
	c.stack = c.stack[:0]
	c.root = nil
	c.ringOpen = false
	c.isNull = false
	return nil
}

// NullFeat implements Visitor.
func (c *geometryCollector) NullFeat() error {
	c.isNull = true
	return nil
}

// GeomStart implements Visitor.
func (c *geometryCollector) GeomStart(g GeometryType, dims Dimensions) error {
	if g < GeometryTypePoint || g > GeometryTypeGeometryCollection {
		return newError(ErrUnsupportedType, "geom_start with geometry type %s", g)
	}
	if c.depth() >= MaxNestingDepth {
		return newError(ErrSequence, "maximum nesting depth of %d exceeded", MaxNestingDepth)
	}
	if dims == DimensionsUnknown {
		dims = DimensionsXY
	}
	n := &geometryNode{geometryType: g, dims: dims}

	parent := c.top()
	switch {
	case parent == nil:
		if c.root != nil {
			return newError(ErrSequence, "feature already has a geometry")
		}
		c.root = n
	case c.ringOpen:
		return newError(ErrSequence, "geom_start called inside a ring")
	case parent.geometryType == GeometryTypeGeometryCollection:
		parent.parts = append(parent.parts, n)
	case parent.geometryType.single() == g:
		// parts of a multi geometry share its layout
		n.dims = parent.dims
		parent.parts = append(parent.parts, n)
	default:
		return newError(ErrInvalidStructure, "%s cannot contain %s", parent.geometryType, g)
	}
	c.stack = append(c.stack, n)
	return nil
}

// RingStart implements Visitor.
func (c *geometryCollector) RingStart() error {
	top := c.top()
	if top == nil || top.geometryType != GeometryTypePolygon || c.ringOpen {
		return newError(ErrSequence, "ring_start called outside a polygon")
	}
	if c.depth() >= MaxNestingDepth {
		return newError(ErrSequence, "maximum nesting depth of %d exceeded", MaxNestingDepth)
	}
	c.ringOpen = true
	return nil
}

// Coords implements Visitor.
func (c *geometryCollector) Coords(cv CoordView) error {
	if cv.NCoords == 0 {
		return nil
	}
	top := c.top()
	if top == nil {
		return newError(ErrSequence, "coords called outside a geometry")
	}
	switch top.geometryType {
	case GeometryTypePoint:
		if top.numCoords()+cv.NCoords > 1 {
			return newError(ErrInvalidStructure, "point with more than one coordinate")
		}
	case GeometryTypeLineString:
	case GeometryTypePolygon:
		if !c.ringOpen {
			return newError(ErrSequence, "polygon coordinates outside a ring")
		}
	default:
		return newError(ErrInvalidStructure, "%s cannot contain coordinates directly", top.geometryType)
	}

	lanes := laneMap(cv.dims(), top.dims)
	n := top.dims.Count()
	for row := 0; row < cv.NCoords; row++ {
		for lane := 0; lane < n; lane++ {
			top.coords = append(top.coords, cv.valueOr(row, lanes[lane]))
		}
	}
	return nil
}

// RingEnd implements Visitor.
func (c *geometryCollector) RingEnd() error {
	if !c.ringOpen {
		return newError(ErrSequence, "ring_end called with no open geometry or ring (level < 0)")
	}
	c.ringOpen = false
	top := c.top()
	top.ends = append(top.ends, top.numCoords())
	return nil
}

// GeomEnd implements Visitor.
func (c *geometryCollector) GeomEnd() error {
	if len(c.stack) == 0 || c.ringOpen {
		return newError(ErrSequence, "geom_end called with no open geometry or ring (level < 0)")
	}
	c.stack = c.stack[:len(c.stack)-1]
	return nil
}

// FeatEnd implements Visitor.
func (c *geometryCollector) FeatEnd() error {
	if c.depth() != 0 {
		return newError(ErrSequence, "feat_end called with %d open levels", c.depth())
	}
	if c.isNull || c.root == nil {
		return c.emit(nil)
	}
	return c.emit(c.root)
}
