package geoarrow

import (
	"github.com/cockroachdb/errors"
	"github.com/twpayne/go-geom"
)

func dimensionsFromLayout(l geom.Layout) (Dimensions, error) {
	switch l {
	case geom.XY, geom.NoLayout:
		return DimensionsXY, nil
	case geom.XYZ:
		return DimensionsXYZ, nil
	case geom.XYM:
		return DimensionsXYM, nil
	case geom.XYZM:
		return DimensionsXYZM, nil
	}
	return DimensionsUnknown, newError(ErrUnsupportedType, "unsupported go-geom layout %s", l)
}

func layoutFromDimensions(d Dimensions) geom.Layout {
	switch d {
	case DimensionsXYZ:
		return geom.XYZ
	case DimensionsXYM:
		return geom.XYM
	case DimensionsXYZM:
		return geom.XYZM
	default:
		return geom.XY
	}
}

// VisitGeom emits one feature for g. A nil geometry is a null feature.
// Coordinates are passed to the visitor as views over g's flat coordinate
// slices without copying.
func VisitGeom(g geom.T, v Visitor) error {
	if err := v.FeatStart(); err != nil {
		return err
	}
	if g == nil {
		if err := v.NullFeat(); err != nil {
			return err
		}
	} else if err := visitGeomT(g, v, 0); err != nil {
		return err
	}
	return v.FeatEnd()
}

func visitGeomFlat(gt GeometryType, dims Dimensions, flat []float64, v Visitor) error {
	if err := v.GeomStart(gt, dims); err != nil {
		return err
	}
	if err := v.Coords(interleavedCoordView(dims, flat)); err != nil {
		return err
	}
	return v.GeomEnd()
}

func visitGeomPolygon(p *geom.Polygon, dims Dimensions, v Visitor) error {
	if err := v.GeomStart(GeometryTypePolygon, dims); err != nil {
		return err
	}
	for i := 0; i < p.NumLinearRings(); i++ {
		if err := v.RingStart(); err != nil {
			return err
		}
		if err := v.Coords(interleavedCoordView(dims, p.LinearRing(i).FlatCoords())); err != nil {
			return err
		}
		if err := v.RingEnd(); err != nil {
			return err
		}
	}
	return v.GeomEnd()
}

func visitGeomT(g geom.T, v Visitor, depth int) error {
	if depth >= MaxNestingDepth {
		return newError(ErrSequence, "maximum nesting depth of %d exceeded", MaxNestingDepth)
	}
	dims, err := dimensionsFromLayout(g.Layout())
	if err != nil {
		return err
	}

	switch g := g.(type) {
	case *geom.Point:
		return visitGeomFlat(GeometryTypePoint, dims, g.FlatCoords(), v)

	case *geom.LineString:
		return visitGeomFlat(GeometryTypeLineString, dims, g.FlatCoords(), v)

	case *geom.LinearRing:
		if err := v.GeomStart(GeometryTypePolygon, dims); err != nil {
			return err
		}
		if err := v.RingStart(); err != nil {
			return err
		}
		if err := v.Coords(interleavedCoordView(dims, g.FlatCoords())); err != nil {
			return err
		}
		if err := v.RingEnd(); err != nil {
			return err
		}
		return v.GeomEnd()

	case *geom.Polygon:
		return visitGeomPolygon(g, dims, v)

	case *geom.MultiPoint:
		if err := v.GeomStart(GeometryTypeMultiPoint, dims); err != nil {
			return err
		}
		for i := 0; i < g.NumPoints(); i++ {
			if err := visitGeomFlat(GeometryTypePoint, dims, g.Point(i).FlatCoords(), v); err != nil {
				return err
			}
		}
		return v.GeomEnd()

	case *geom.MultiLineString:
		if err := v.GeomStart(GeometryTypeMultiLineString, dims); err != nil {
			return err
		}
		for i := 0; i < g.NumLineStrings(); i++ {
			if err := visitGeomFlat(GeometryTypeLineString, dims, g.LineString(i).FlatCoords(), v); err != nil {
				return err
			}
		}
		return v.GeomEnd()

	case *geom.MultiPolygon:
		if err := v.GeomStart(GeometryTypeMultiPolygon, dims); err != nil {
			return err
		}
		for i := 0; i < g.NumPolygons(); i++ {
			if err := visitGeomPolygon(g.Polygon(i), dims, v); err != nil {
				return err
			}
		}
		return v.GeomEnd()

	case *geom.GeometryCollection:
		if err := v.GeomStart(GeometryTypeGeometryCollection, dims); err != nil {
			return err
		}
		for i := 0; i < g.NumGeoms(); i++ {
			if err := visitGeomT(g.Geom(i), v, depth+1); err != nil {
				return err
			}
		}
		return v.GeomEnd()
	}
	return newError(ErrUnsupportedType, "unsupported go-geom geometry %T", g)
}

// GeomWriter is a Visitor that materializes each feature as a go-geom
// geometry with the layout of the feature's dimensions. Null features
// become nil entries.
type GeomWriter struct {
	geometryCollector
	geometries []geom.T
}

// NewGeomWriter returns an empty writer.
func NewGeomWriter() *GeomWriter {
	w := &GeomWriter{}
	w.emit = w.add
	return w
}

func (w *GeomWriter) add(n *geometryNode) error {
	if n == nil {
		w.geometries = append(w.geometries, nil)
		return nil
	}
	g, err := nodeToGeom(n)
	if err != nil {
		return err
	}
	w.geometries = append(w.geometries, g)
	return nil
}

// Geometries returns the features written so far.
func (w *GeomWriter) Geometries() []geom.T { return w.geometries }

// Reset discards the features written so far.
func (w *GeomWriter) Reset() { w.geometries = nil }

// flatEnds converts ring ends from coordinates to flat value indices.
func flatEnds(n *geometryNode) []int {
	stride := n.dims.Count()
	ends := make([]int, len(n.ends))
	for i, e := range n.ends {
		ends[i] = e * stride
	}
	return ends
}

func nodeToGeom(n *geometryNode) (geom.T, error) {
	layout := layoutFromDimensions(n.dims)
	switch n.geometryType {
	case GeometryTypePoint:
		if len(n.coords) == 0 {
			return geom.NewPointEmpty(layout), nil
		}
		return geom.NewPointFlat(layout, n.coords), nil

	case GeometryTypeLineString:
		return geom.NewLineStringFlat(layout, n.coords), nil

	case GeometryTypePolygon:
		return geom.NewPolygonFlat(layout, n.coords, flatEnds(n)), nil

	case GeometryTypeMultiPoint:
		mp := geom.NewMultiPoint(layout)
		for _, p := range n.parts {
			pt, err := nodeToGeom(p)
			if err != nil {
				return nil, err
			}
			if err := mp.Push(pt.(*geom.Point)); err != nil {
				return nil, errors.Wrap(err, "building multipoint")
			}
		}
		return mp, nil

	case GeometryTypeMultiLineString:
		mls := geom.NewMultiLineString(layout)
		for _, p := range n.parts {
			if err := mls.Push(geom.NewLineStringFlat(layout, p.coords)); err != nil {
				return nil, errors.Wrap(err, "building multilinestring")
			}
		}
		return mls, nil

	case GeometryTypeMultiPolygon:
		mp := geom.NewMultiPolygon(layout)
		for _, p := range n.parts {
			if err := mp.Push(geom.NewPolygonFlat(layout, p.coords, flatEnds(p))); err != nil {
				return nil, errors.Wrap(err, "building multipolygon")
			}
		}
		return mp, nil

	default:
		coll := geom.NewGeometryCollection()
		for _, p := range n.parts {
			child, err := nodeToGeom(p)
			if err != nil {
				return nil, err
			}
			if err := coll.Push(child); err != nil {
				return nil, errors.Wrap(err, "building geometry collection")
			}
		}
		return coll, nil
	}
}
