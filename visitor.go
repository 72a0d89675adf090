package geoarrow

// Visitor receives the events describing a sequence of features. Readers
// call these methods; writers implement them. A conforming producer emits,
// for every feature:
//
//	FeatStart
//	  NullFeat
//	  | GeomStart (RingStart Coords* RingEnd | Coords | nested GeomStart ... GeomEnd)* GeomEnd
//	FeatEnd
//
// Coords may be called with zero coordinates and any number of times within
// one ring or geometry. Ending a ring or geometry that was never started is
// an ErrSequence error. Any error stops the producer and is returned to its
// caller unchanged.
type Visitor interface {
	FeatStart() error
	NullFeat() error
	GeomStart(geometryType GeometryType, dims Dimensions) error
	RingStart() error
	Coords(coords CoordView) error
	RingEnd() error
	GeomEnd() error
	FeatEnd() error
}

// NoopVisitor implements Visitor by ignoring every event. Embed it to
// implement only the events you care about.
type NoopVisitor struct{}

var _ Visitor = NoopVisitor{}

func (NoopVisitor) FeatStart() error { return nil }
func (NoopVisitor) NullFeat() error { return nil }
func (NoopVisitor) GeomStart(GeometryType, Dimensions) error { return nil }
func (NoopVisitor) RingStart() error { return nil }
func (NoopVisitor) Coords(CoordView) error { return nil }
func (NoopVisitor) RingEnd() error { return nil }
func (NoopVisitor) GeomEnd() error { return nil }
func (NoopVisitor) FeatEnd() error { return nil }

// levels tracks the open geometries and rings of a writer.
type levels struct {
	stack []level
}

type level struct {
	geometryType GeometryType // GeometryTypeGeometry for rings
	dims         Dimensions
	count        int
}

func (l *levels) depth() int { return len(l.stack) }

func (l *levels) reset() { l.stack = l.stack[:0] }

func (l *levels) top() *level {
	if len(l.stack) == 0 {
		return nil
	}
	return &l.stack[len(l.stack)-1]
}

func (l *levels) push(g GeometryType, d Dimensions) error {
	if len(l.stack) >= MaxNestingDepth {
		return newError(ErrSequence, "maximum nesting depth of %d exceeded", MaxNestingDepth)
	}
	l.stack = append(l.stack, level{geometryType: g, dims: d})
	return nil
}

// pop closes the innermost level, which must be a ring when ring is set
// and a geometry otherwise.
func (l *levels) pop(event string, ring bool) (level, error) {
	if len(l.stack) == 0 {
		return level{}, newError(ErrSequence, "%s called with no open geometry or ring (level < 0)", event)
	}
	lv := l.stack[len(l.stack)-1]
	if err := checkEndKind(event, lv.geometryType, ring); err != nil {
		return level{}, err
	}
	l.stack = l.stack[:len(l.stack)-1]
	return lv, nil
}

func checkEndKind(event string, g GeometryType, ring bool) error {
	switch {
	case ring && g != GeometryTypeGeometry:
		return newError(ErrSequence, "%s called while a %s is open", event, g)
	case !ring && g == GeometryTypeGeometry:
		return newError(ErrSequence, "%s called while a ring is open", event)
	}
	return nil
}
