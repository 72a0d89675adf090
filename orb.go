package geoarrow

import (
	"math"

	"github.com/paulmach/orb"
)

// VisitOrb emits one feature for g. A nil geometry is a null feature,
// orb.Ring and orb.Bound are emitted as polygons and an orb.Point with NaN
// ordinates as an empty point.
func VisitOrb(g orb.Geometry, v Visitor) error {
	if err := v.FeatStart(); err != nil {
		return err
	}
	if g == nil {
		if err := v.NullFeat(); err != nil {
			return err
		}
	} else {
		var scratch []float64
		if err := visitOrbGeometry(g, v, &scratch, 0); err != nil {
			return err
		}
	}
	return v.FeatEnd()
}

// orbCoords flattens points into scratch and returns an XY view over it.
func orbCoords(points []orb.Point, scratch *[]float64) CoordView {
	flat := (*scratch)[:0]
	for _, p := range points {
		flat = append(flat, p[0], p[1])
	}
	*scratch = flat
	return interleavedCoordView(DimensionsXY, flat)
}

func visitOrbPoints(g GeometryType, points []orb.Point, v Visitor, scratch *[]float64) error {
	if err := v.GeomStart(g, DimensionsXY); err != nil {
		return err
	}
	if err := v.Coords(orbCoords(points, scratch)); err != nil {
		return err
	}
	return v.GeomEnd()
}

func visitOrbPolygon(p orb.Polygon, v Visitor, scratch *[]float64) error {
	if err := v.GeomStart(GeometryTypePolygon, DimensionsXY); err != nil {
		return err
	}
	for _, r := range p {
		if err := v.RingStart(); err != nil {
			return err
		}
		if err := v.Coords(orbCoords(r, scratch)); err != nil {
			return err
		}
		if err := v.RingEnd(); err != nil {
			return err
		}
	}
	return v.GeomEnd()
}

func visitOrbPoint(p orb.Point, v Visitor, scratch *[]float64) error {
	if math.IsNaN(p[0]) && math.IsNaN(p[1]) {
		return visitOrbPoints(GeometryTypePoint, nil, v, scratch)
	}
	return visitOrbPoints(GeometryTypePoint, []orb.Point{p}, v, scratch)
}

func visitOrbGeometry(g orb.Geometry, v Visitor, scratch *[]float64, depth int) error {
	if depth >= MaxNestingDepth {
		return newError(ErrSequence, "maximum nesting depth of %d exceeded", MaxNestingDepth)
	}

	switch g := g.(type) {
	case orb.Point:
		return visitOrbPoint(g, v, scratch)

	case orb.LineString:
		return visitOrbPoints(GeometryTypeLineString, g, v, scratch)

	case orb.Ring:
		return visitOrbPolygon(orb.Polygon{g}, v, scratch)

	case orb.Polygon:
		return visitOrbPolygon(g, v, scratch)

	case orb.Bound:
		return visitOrbPolygon(g.ToPolygon(), v, scratch)

	case orb.MultiPoint:
		if err := v.GeomStart(GeometryTypeMultiPoint, DimensionsXY); err != nil {
			return err
		}
		for _, p := range g {
			if err := visitOrbPoint(p, v, scratch); err != nil {
				return err
			}
		}
		return v.GeomEnd()

	case orb.MultiLineString:
		if err := v.GeomStart(GeometryTypeMultiLineString, DimensionsXY); err != nil {
			return err
		}
		for _, ls := range g {
			if err := visitOrbPoints(GeometryTypeLineString, ls, v, scratch); err != nil {
				return err
			}
		}
		return v.GeomEnd()

	case orb.MultiPolygon:
		if err := v.GeomStart(GeometryTypeMultiPolygon, DimensionsXY); err != nil {
			return err
		}
		for _, p := range g {
			if err := visitOrbPolygon(p, v, scratch); err != nil {
				return err
			}
		}
		return v.GeomEnd()

	case orb.Collection:
		if err := v.GeomStart(GeometryTypeGeometryCollection, DimensionsXY); err != nil {
			return err
		}
		for _, child := range g {
			if child == nil {
				continue
			}
			if err := visitOrbGeometry(child, v, scratch, depth+1); err != nil {
				return err
			}
		}
		return v.GeomEnd()
	}
	return newError(ErrUnsupportedType, "unsupported orb geometry %T", g)
}

// OrbWriter is a Visitor that materializes each feature as an orb.Geometry.
// Null features become nil entries; Z and M ordinates are dropped.
type OrbWriter struct {
	geometryCollector
	geometries []orb.Geometry
}

// NewOrbWriter returns an empty writer.
func NewOrbWriter() *OrbWriter {
	w := &OrbWriter{}
	w.emit = w.add
	return w
}

func (w *OrbWriter) add(n *geometryNode) error {
	if n == nil {
		w.geometries = append(w.geometries, nil)
		return nil
	}
	w.geometries = append(w.geometries, nodeToOrb(n))
	return nil
}

// Geometries returns the features written so far.
func (w *OrbWriter) Geometries() []orb.Geometry { return w.geometries }

// Reset discards the features written so far.
func (w *OrbWriter) Reset() { w.geometries = nil }

func orbPoints(coords []float64, stride int) []orb.Point {
	points := make([]orb.Point, 0, len(coords)/stride)
	for i := 0; i+1 < len(coords); i += stride {
		points = append(points, orb.Point{coords[i], coords[i+1]})
	}
	return points
}

func nodeToOrbPolygon(n *geometryNode) orb.Polygon {
	poly := make(orb.Polygon, 0, len(n.ends))
	for i := range n.ends {
		poly = append(poly, orb.Ring(orbPoints(n.ring(i), n.dims.Count())))
	}
	return poly
}

func nodeToOrb(n *geometryNode) orb.Geometry {
	stride := n.dims.Count()
	switch n.geometryType {
	case GeometryTypePoint:
		if len(n.coords) == 0 {
			return orb.Point{math.NaN(), math.NaN()}
		}
		return orb.Point{n.coords[0], n.coords[1]}

	case GeometryTypeLineString:
		return orb.LineString(orbPoints(n.coords, stride))

	case GeometryTypePolygon:
		return nodeToOrbPolygon(n)

	case GeometryTypeMultiPoint:
		mp := make(orb.MultiPoint, 0, len(n.parts))
		for _, p := range n.parts {
			mp = append(mp, nodeToOrb(p).(orb.Point))
		}
		return mp

	case GeometryTypeMultiLineString:
		mls := make(orb.MultiLineString, 0, len(n.parts))
		for _, p := range n.parts {
			mls = append(mls, orb.LineString(orbPoints(p.coords, p.dims.Count())))
		}
		return mls

	case GeometryTypeMultiPolygon:
		mp := make(orb.MultiPolygon, 0, len(n.parts))
		for _, p := range n.parts {
			mp = append(mp, nodeToOrbPolygon(p))
		}
		return mp

	default:
		coll := make(orb.Collection, 0, len(n.parts))
		for _, p := range n.parts {
			coll = append(coll, nodeToOrb(p))
		}
		return coll
	}
}
