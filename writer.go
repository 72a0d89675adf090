package geoarrow

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/flatgeobuf/flatgeobuf/src/go/writer"
	flatbuffers "github.com/google/flatbuffers/go"
)

// FlatGeobufWriter is a Visitor that collects features and writes them as
// a FlatGeobuf file. Null features are skipped since a FlatGeobuf feature
// needs a geometry to be indexed. Only XY coordinates are supported.
type FlatGeobufWriter struct {
	geometryCollector
	features []*geometryNode
}

// NewFlatGeobufWriter returns an empty writer.
func NewFlatGeobufWriter() *FlatGeobufWriter {
	w := &FlatGeobufWriter{}
	w.emit = w.add
	return w
}

func (w *FlatGeobufWriter) add(n *geometryNode) error {
	if n == nil {
		return nil
	}
	if err := checkXY(n); err != nil {
		return err
	}
	w.features = append(w.features, n)
	return nil
}

// checkXY rejects n when it or any of its parts is not XY.
func checkXY(n *geometryNode) error {
	if n.dims != DimensionsXY {
		return newError(ErrUnsupportedType, "FlatGeobuf output supports xy coordinates only, got %s", n.dims)
	}
	for _, part := range n.parts {
		if err := checkXY(part); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of features that will be written.
func (w *FlatGeobufWriter) Len() int { return len(w.features) }

// Write writes the collected features to out.
func (w *FlatGeobufWriter) Write(out io.Writer, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}

	if len(w.features) == 0 {
		return ErrNilGeometry
	}

	// Determine geometry type from first feature
	geomType := toFGBGeometryType(w.features[0].geometryType)

	// Check if all features are the same type
	for _, n := range w.features[1:] {
		if toFGBGeometryType(n.geometryType) != geomType {
			geomType = flattypes.GeometryTypeUnknown
			break
		}
	}

	gen := &nodeFeatureGenerator{nodes: w.features}
	return errors.Wrap(writeWithGenerator(out, gen, geomType, opts), "writing FlatGeobuf")
}

// writeWithGenerator handles the common writing logic.
func writeWithGenerator(
	w io.Writer,
	gen writer.FeatureGenerator,
	geomType flattypes.GeometryType,
	opts *Options,
) error {
	builder := flatbuffers.NewBuilder(4096)

	// Create header
	header := writer.NewHeader(builder)
	header.SetGeometryType(geomType)

	if opts.Name != "" {
		header.SetName(opts.Name)
	}
	if opts.Description != "" {
		header.SetDescription(opts.Description)
	}

	// Set CRS if provided
	if opts.CRS != nil {
		crs := writer.NewCrs(builder)
		crs.SetOrg("EPSG") // Default organization
		if opts.CRS.Code > 0 {
			crs.SetCode(int32(opts.CRS.Code))
		}
		if opts.CRS.Name != "" {
			crs.SetName(opts.CRS.Name)
		}
		if opts.CRS.Description != "" {
			crs.SetDescription(opts.CRS.Description)
		}
		// WKT can be stored in description if needed
		if opts.CRS.WKT != "" && opts.CRS.Description == "" {
			crs.SetDescription(opts.CRS.WKT)
		}
		header.SetCrs(crs)
	}

	fgbWriter := writer.NewWriter(header, opts.IncludeIndex, gen, nil)

	_, err := fgbWriter.Write(w)
	return err
}

// nodeFeatureGenerator generates FlatGeobuf features from collected
// geometries.
type nodeFeatureGenerator struct {
	nodes []*geometryNode
	index int
}

func (g *nodeFeatureGenerator) Generate() *writer.Feature {
	if g.index >= len(g.nodes) {
		return nil
	}

	n := g.nodes[g.index]
	g.index++

	builder := flatbuffers.NewBuilder(1024)
	feature := writer.NewFeature(builder)
	feature.SetGeometry(nodeToFGB(n, builder))

	return feature
}

// nodeToFGB converts a geometry to a FlatGeobuf writer.Geometry. Multi
// points and multi linestrings are flattened into one coordinate array
// with ends; multi polygons and collections use parts.
func nodeToFGB(n *geometryNode, builder *flatbuffers.Builder) *writer.Geometry {
	g := writer.NewGeometry(builder)
	g.SetType(toFGBGeometryType(n.geometryType))

	switch n.geometryType {
	case GeometryTypePoint, GeometryTypeLineString:
		if len(n.coords) > 0 {
			g.SetXY(n.coords)
		}

	case GeometryTypePolygon:
		if len(n.coords) > 0 {
			g.SetXY(n.coords)
			g.SetEnds(fgbEnds(n.ends))
		}

	case GeometryTypeMultiPoint:
		xy := make([]float64, 0, len(n.parts)*2)
		for _, p := range n.parts {
			xy = append(xy, p.coords...)
		}
		if len(xy) > 0 {
			g.SetXY(xy)
		}

	case GeometryTypeMultiLineString:
		var xy []float64
		ends := make([]uint32, 0, len(n.parts))
		for _, p := range n.parts {
			xy = append(xy, p.coords...)
			ends = append(ends, uint32(len(xy)/2))
		}
		if len(xy) > 0 {
			g.SetXY(xy)
			g.SetEnds(ends)
		}

	case GeometryTypeMultiPolygon, GeometryTypeGeometryCollection:
		parts := make([]writer.Geometry, 0, len(n.parts))
		for _, p := range n.parts {
			parts = append(parts, *nodeToFGB(p, builder))
		}
		g.SetParts(parts)
	}

	return g
}

func fgbEnds(ends []int) []uint32 {
	out := make([]uint32, len(ends))
	for i, e := range ends {
		out[i] = uint32(e)
	}
	return out
}
