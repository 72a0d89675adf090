package geoarrow

import (
	"strings"
	"testing"

	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestWKTRoundTrip(t *testing.T) {
	tests := []string{
		"POINT (30 10)",
		"POINT EMPTY",
		"POINT Z (1 2 3)",
		"POINT M (1 2 4)",
		"POINT ZM (1 2 3 4)",
		"LINESTRING (30 10, 10 30, 40 40)",
		"LINESTRING EMPTY",
		"POLYGON ((35 10, 45 45, 15 40, 10 20, 35 10), (20 30, 35 35, 30 20, 20 30))",
		"POLYGON Z EMPTY",
		"MULTIPOINT ((10 40), (40 30), (20 20), (30 10))",
		"MULTIPOINT ((10 40), EMPTY)",
		"MULTILINESTRING ((10 10, 20 20, 10 40), (40 40, 30 30, 40 20, 30 10))",
		"MULTILINESTRING (EMPTY, (1 2, 3 4))",
		"MULTIPOLYGON (((40 40, 20 45, 45 30, 40 40)), ((20 35, 10 30, 10 10, 30 5, 45 20, 20 35), (30 20, 20 15, 20 25, 30 20)))",
		"MULTIPOLYGON ZM (((0 0 1 2, 1 0 1 2, 0 1 1 2, 0 0 1 2)))",
		"GEOMETRYCOLLECTION (POINT (40 10), LINESTRING (10 10, 20 20, 10 40), POLYGON ((40 40, 20 45, 45 30, 40 40)))",
		"GEOMETRYCOLLECTION (GEOMETRYCOLLECTION (POINT (1 2)), MULTIPOINT ((3 4)))",
		"GEOMETRYCOLLECTION EMPTY",
		"GEOMETRYCOLLECTION Z (POINT Z (1 2 3), LINESTRING Z (1 2 3, 4 5 6))",
		"POINT (-1.5 0.001)",
		"POINT (1e+21 -1e-07)",
	}
	for _, text := range tests {
		require.Equal(t, text, roundTripWKT(t, text, nil))
	}
}

func TestWKTReaderLenient(t *testing.T) {
	tests := map[string]string{
		"point(30 10)":                         "POINT (30 10)",
		"  POINT  (  30   10  )  ":             "POINT (30 10)",
		"MultiPoint (1 2, 3 4)":                "MULTIPOINT ((1 2), (3 4))",
		"MULTIPOINT (1 2, (3 4), EMPTY)":       "MULTIPOINT ((1 2), (3 4), EMPTY)",
		"POINT z (1 2 3)":                      "POINT Z (1 2 3)",
		"LINESTRING(1 2,3 4)":                  "LINESTRING (1 2, 3 4)",
		"GEOMETRYCOLLECTION Z (POINT (1 2 3))": "GEOMETRYCOLLECTION Z (POINT Z (1 2 3))",
		"POINT\t(1\n2)":                        "POINT (1 2)",
	}
	for in, want := range tests {
		require.Equal(t, want, roundTripWKT(t, in, nil), in)
	}
}

func TestWKTReaderEvents(t *testing.T) {
	rec := &recordingVisitor{}
	require.NoError(t, NewWKTReader().Read("POLYGON Z ((0 0 0, 1 0 0, 0 1 0, 0 0 0))", rec))
	require.Equal(t, []string{
		"feat_start",
		"geom_start POLYGON xyz",
		"ring_start",
		"coords 4",
		"ring_end",
		"geom_end",
		"feat_end",
	}, rec.events)
}

func TestWKTReaderErrors(t *testing.T) {
	tests := []string{
		"",
		"POINT",
		"POINT (1)",
		"POINT (1 2 3)",
		"POINT Z (1 2)",
		"POINT (1 2",
		"POINT (1 2) extra",
		"POINT (a b)",
		"CIRCULARSTRING (1 2, 3 4)",
		"LINESTRING ()",
		"LINESTRING (1 2 3 4)",
		"POLYGON (1 2, 3 4)",
		"MULTIPOINT ((1 2) (3 4))",
		"GEOMETRYCOLLECTION (1 2)",
		strings.Repeat("GEOMETRYCOLLECTION (", MaxNestingDepth) + "POINT (1 2)" + strings.Repeat(")", MaxNestingDepth),
	}
	for _, text := range tests {
		err := NewWKTReader().Read(text, NoopVisitor{})
		require.Equal(t, StatusDecodeError, StatusOf(err), "%q: %v", text, err)
	}
}

func TestWKTReaderErrorContext(t *testing.T) {
	err := NewWKTReader().Read("POINT (1 2, 3 4)", NoopVisitor{})
	require.Equal(t, StatusDecodeError, StatusOf(err))
	require.Contains(t, err.Error(), "expected ')' at byte 10")
}

func TestWKTReaderPropagatesVisitorErrors(t *testing.T) {
	b, err := NewBuilder(TypePoint, nil)
	require.NoError(t, err)
	defer b.Release()

	err = NewWKTReader().Read("LINESTRING (1 2, 3 4)", b)
	require.True(t, errors.Is(err, ErrUnsupportedType), "%v", err)
}

func TestVisitWKTArray(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	bldr := array.NewStringBuilder(mem)
	defer bldr.Release()
	bldr.Append("POINT (1 2)")
	bldr.AppendNull()
	bldr.Append("POINT (3 4)")
	arr := bldr.NewStringArray()
	defer arr.Release()

	w := NewWKBWriter(mem)
	defer w.Release()
	require.NoError(t, VisitWKTArray(arr, w))
	wkb, err := w.Finish()
	require.NoError(t, err)
	defer wkb.Release()
	require.Equal(t, 3, wkb.Len())
	require.True(t, wkb.IsNull(1))
	require.Equal(t, "POINT (3 4)", wkbToWKT(t, wkb.Value(2)))

	bldr.Append("POINT (1)")
	bad := bldr.NewStringArray()
	defer bad.Release()
	err = VisitWKTArray(bad, NoopVisitor{})
	require.Equal(t, StatusDecodeError, StatusOf(err))
	require.Contains(t, err.Error(), "feature 0")
}

func TestWKTWriterOptions(t *testing.T) {
	t.Run("precision", func(t *testing.T) {
		opts := DefaultWKTOptions()
		opts.Precision = 3
		require.Equal(t, "POINT (3.14 2.72)", roundTripWKT(t, "POINT (3.14159 2.71828)", opts))

		opts.Precision = -1
		require.Equal(t, "POINT (0.1 0.30000000000000004)", roundTripWKT(t, "POINT (0.1 0.30000000000000004)", opts))
	})

	t.Run("flat multipoint", func(t *testing.T) {
		opts := DefaultWKTOptions()
		opts.FlatMultipoint = true
		require.Equal(t, "MULTIPOINT (1 2, 3 4)", roundTripWKT(t, "MULTIPOINT ((1 2), (3 4))", opts))
		require.Equal(t, "MULTIPOINT Z (1 2 3)", roundTripWKT(t, "MULTIPOINT Z ((1 2 3))", opts))
		require.Equal(t, "GEOMETRYCOLLECTION (MULTIPOINT (1 2, 3 4))",
			roundTripWKT(t, "GEOMETRYCOLLECTION (MULTIPOINT ((1 2), (3 4)))", opts))
		require.Equal(t, "MULTIPOINT EMPTY", roundTripWKT(t, "MULTIPOINT EMPTY", opts))
	})

	t.Run("max element size", func(t *testing.T) {
		opts := DefaultWKTOptions()
		opts.MaxElementSize = 10
		require.Equal(t, "LINESTRING", roundTripWKT(t, "LINESTRING (1 2, 3 4)", opts))
		require.Equal(t, "POINT (1 2", roundTripWKT(t, "POINT (1 2)", opts))
	})
}

func TestWKTWriterNulls(t *testing.T) {
	w := NewWKTWriter(nil, nil)
	defer w.Release()
	require.NoError(t, visitNull(w))
	require.NoError(t, NewWKTReader().Read("POINT (1 2)", w))
	require.Equal(t, 2, w.Len())
	require.Equal(t, []string{nullWKT, "POINT (1 2)"}, finishWKT(t, w))
}

func TestWKTWriterSequenceErrors(t *testing.T) {
	w := NewWKTWriter(nil, nil)
	defer w.Release()

	require.NoError(t, w.FeatStart())
	err := w.RingEnd()
	require.Equal(t, StatusSequenceError, StatusOf(err))
	require.Contains(t, err.Error(), "level < 0")
	require.Equal(t, StatusSequenceError, StatusOf(w.GeomEnd()))
	require.Equal(t, StatusSequenceError, StatusOf(w.RingStart()))
	require.Equal(t, StatusSequenceError, StatusOf(w.Coords(interleavedCoordView(DimensionsXY, []float64{1, 2}))))

	require.NoError(t, w.GeomStart(GeometryTypePoint, DimensionsXY))
	require.Equal(t, StatusSequenceError, StatusOf(w.RingEnd()))
	require.Equal(t, StatusSequenceError, StatusOf(w.FeatEnd()))
	_, err = w.Finish()
	require.Equal(t, StatusSequenceError, StatusOf(err))
}
