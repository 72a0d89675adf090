package geoarrow

import (
	"fmt"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func int32Bytes(v ...int32) []byte     { return arrow.Int32Traits.CastToBytes(v) }
func float64Bytes(v ...float64) []byte { return arrow.Float64Traits.CastToBytes(v) }

func TestBuilderEmpty(t *testing.T) {
	for _, typ := range allTypes() {
		t.Run(typ.String(), func(t *testing.T) {
			mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
			defer mem.AssertSize(t, 0)

			b, err := NewBuilder(typ, mem)
			require.NoError(t, err)
			defer b.Release()
			require.Equal(t, typ, b.SchemaView().Type)
			require.Equal(t, 0, b.Len())

			arr, err := b.Finish()
			require.NoError(t, err)
			defer arr.Release()
			require.Equal(t, 0, arr.Len())
			require.True(t, arrow.TypeEqual(b.SchemaView().DataType(), arr.DataType()))

			view, err := NewArrayView(typ)
			require.NoError(t, err)
			require.NoError(t, view.SetArray(arr.Data()))
			require.Equal(t, 0, view.Length())
		})
	}
}

func TestBuilderUnsupportedType(t *testing.T) {
	for _, typ := range []Type{TypeWKB, TypeWKT, TypeUninitialized} {
		_, err := NewBuilder(typ, nil)
		require.Equal(t, StatusUnsupportedType, StatusOf(err), typ.String())
	}
}

func TestBuilderAppendBuffer(t *testing.T) {
	valid := []byte{0b00000001}
	tests := []struct {
		typ     Type
		buffers [][]byte
		want    string
	}{
		{
			typ:     TypePoint,
			buffers: [][]byte{valid, float64Bytes(30, 0, 0), float64Bytes(10, 0, 0)},
			want:    "POINT (30 10)",
		},
		{
			typ: TypeLineString,
			buffers: [][]byte{valid, int32Bytes(0, 2, 2, 2),
				float64Bytes(30, 0), float64Bytes(10, 1)},
			want: "LINESTRING (30 10, 0 1)",
		},
		{
			typ: TypePolygon,
			buffers: [][]byte{valid, int32Bytes(0, 1, 1, 1), int32Bytes(0, 4),
				float64Bytes(1, 2, 4, 1), float64Bytes(2, 3, 5, 2)},
			want: "POLYGON ((1 2, 2 3, 4 5, 1 2))",
		},
		{
			typ: TypeMultiPoint,
			buffers: [][]byte{valid, int32Bytes(0, 2, 2, 2),
				float64Bytes(30, 0), float64Bytes(10, 1)},
			want: "MULTIPOINT ((30 10), (0 1))",
		},
		{
			typ: TypeMultiLineString,
			buffers: [][]byte{valid, int32Bytes(0, 1, 1, 1), int32Bytes(0, 4),
				float64Bytes(1, 2, 4, 1), float64Bytes(2, 3, 5, 2)},
			want: "MULTILINESTRING ((1 2, 2 3, 4 5, 1 2))",
		},
		{
			typ: TypeMultiPolygon,
			buffers: [][]byte{valid, int32Bytes(0, 1, 1, 1), int32Bytes(0, 1), int32Bytes(0, 4),
				float64Bytes(1, 2, 4, 1), float64Bytes(2, 3, 5, 2)},
			want: "MULTIPOLYGON (((1 2, 2 3, 4 5, 1 2)))",
		},
		{
			typ: TypeLineString.Interleaved(),
			buffers: [][]byte{valid, int32Bytes(0, 2, 2, 2),
				float64Bytes(30, 10, 0, 1)},
			want: "LINESTRING (30 10, 0 1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
			defer mem.AssertSize(t, 0)

			b, err := NewBuilder(tt.typ, mem)
			require.NoError(t, err)
			defer b.Release()
			require.Equal(t, len(tt.buffers), b.NumBuffers())

			for i, buf := range tt.buffers {
				require.NoError(t, b.AppendBuffer(i, buf))
			}
			arr, err := b.Finish()
			require.NoError(t, err)
			defer arr.Release()

			require.Equal(t, 3, arr.Len())
			require.Equal(t, 2, arr.NullN())
			require.Equal(t, []string{tt.want, nullWKT, nullWKT}, arrayWKT(t, tt.typ, arr))
		})
	}
}

func TestBuilderAppendBufferChildLengths(t *testing.T) {
	b, err := NewBuilder(TypeMultiPolygon, nil)
	require.NoError(t, err)
	defer b.Release()

	for i, buf := range [][]byte{
		{0b00000001},
		int32Bytes(0, 1, 1, 1),
		int32Bytes(0, 1),
		int32Bytes(0, 4),
		float64Bytes(1, 2, 4, 1),
		float64Bytes(2, 3, 5, 2),
	} {
		require.NoError(t, b.AppendBuffer(i, buf))
	}
	arr, err := b.Finish()
	require.NoError(t, err)
	defer arr.Release()

	polygons := arr.(*array.List).ListValues()
	require.Equal(t, 1, polygons.Len())
	rings := polygons.(*array.List).ListValues()
	require.Equal(t, 1, rings.Len())
	vertices := rings.(*array.List).ListValues()
	require.Equal(t, 4, vertices.Len())
	coords := vertices.(*array.Struct)
	require.Equal(t, 4, coords.Field(0).Len())
	require.Equal(t, 4, coords.Field(1).Len())
}

func TestBuilderAppendBufferErrors(t *testing.T) {
	t.Run("slot", func(t *testing.T) {
		b, err := NewBuilder(TypePoint, nil)
		require.NoError(t, err)
		defer b.Release()
		err = b.AppendBuffer(3, float64Bytes(1))
		require.Equal(t, StatusInvalidStructure, StatusOf(err))
	})

	t.Run("coordinate lengths", func(t *testing.T) {
		b, err := NewBuilder(TypePoint, nil)
		require.NoError(t, err)
		defer b.Release()
		require.NoError(t, b.AppendBuffer(1, float64Bytes(1, 2, 3)))
		require.NoError(t, b.AppendBuffer(2, float64Bytes(1, 2)))
		_, err = b.Finish()
		require.Equal(t, StatusInvalidStructure, StatusOf(err))
	})

	t.Run("last offset", func(t *testing.T) {
		b, err := NewBuilder(TypeLineString, nil)
		require.NoError(t, err)
		defer b.Release()
		require.NoError(t, b.AppendBuffer(1, int32Bytes(0, 3)))
		require.NoError(t, b.AppendBuffer(2, float64Bytes(1, 2)))
		require.NoError(t, b.AppendBuffer(3, float64Bytes(1, 2)))
		_, err = b.Finish()
		require.Equal(t, StatusInvalidStructure, StatusOf(err))
		require.Contains(t, err.Error(), "last offset at level 0 is 3")
	})

	t.Run("decreasing offsets", func(t *testing.T) {
		b, err := NewBuilder(TypeLineString, nil)
		require.NoError(t, err)
		defer b.Release()
		require.NoError(t, b.AppendBuffer(1, int32Bytes(0, 2, 1, 2)))
		require.NoError(t, b.AppendBuffer(2, float64Bytes(1, 2)))
		require.NoError(t, b.AppendBuffer(3, float64Bytes(1, 2)))
		_, err = b.Finish()
		require.Equal(t, StatusInvalidStructure, StatusOf(err))
	})

	t.Run("short validity", func(t *testing.T) {
		b, err := NewBuilder(TypePoint, nil)
		require.NoError(t, err)
		defer b.Release()
		require.NoError(t, b.AppendBuffer(0, []byte{0xff}))
		xs := make([]float64, 9)
		require.NoError(t, b.AppendBuffer(1, float64Bytes(xs...)))
		require.NoError(t, b.AppendBuffer(2, float64Bytes(xs...)))
		_, err = b.Finish()
		require.Equal(t, StatusInvalidStructure, StatusOf(err))
	})
}

var wktDimsSuffix = map[Dimensions]string{
	DimensionsXY:   "",
	DimensionsXYZ:  " Z",
	DimensionsXYM:  " M",
	DimensionsXYZM: " ZM",
}

// sampleWKT returns a geometry of type g in dimensions d whose coordinates
// all differ.
func sampleWKT(g GeometryType, d Dimensions) string {
	templates := map[GeometryType]string{
		GeometryTypePoint:           "POINT%s (C)",
		GeometryTypeLineString:      "LINESTRING%s (C, C, C)",
		GeometryTypePolygon:         "POLYGON%s ((C, C, C, C), (C, C, C, C))",
		GeometryTypeMultiPoint:      "MULTIPOINT%s ((C), (C))",
		GeometryTypeMultiLineString: "MULTILINESTRING%s ((C, C), (C, C, C))",
		GeometryTypeMultiPolygon:    "MULTIPOLYGON%s (((C, C, C, C)), ((C, C, C, C), (C, C, C, C)))",
	}
	suffix := wktDimsSuffix[d]

	text := fmt.Sprintf(templates[g], suffix)
	var b strings.Builder
	i := 0
	for _, r := range text {
		if r != 'C' {
			b.WriteRune(r)
			continue
		}
		i++
		ordinates := []string{fmt.Sprint(i), fmt.Sprint(float64(i) + 0.5), fmt.Sprint(float64(i) + 0.25), fmt.Sprint(float64(i) + 0.75)}
		b.WriteString(strings.Join(ordinates[:d.Count()], " "))
	}
	return b.String()
}

func emptyWKT(g GeometryType, d Dimensions) string {
	return g.String() + wktDimsSuffix[d] + " EMPTY"
}

func TestBuilderEventsRoundTrip(t *testing.T) {
	for _, typ := range allTypes() {
		t.Run(typ.String(), func(t *testing.T) {
			mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
			defer mem.AssertSize(t, 0)

			g, d := typ.GeometryType(), typ.Dimensions()
			want := []string{sampleWKT(g, d), nullWKT, emptyWKT(g, d), sampleWKT(g, d)}

			arr := buildArray(t, typ, mem, want...)
			defer arr.Release()
			require.Equal(t, len(want), arr.Len())
			require.Equal(t, 1, arr.NullN())
			require.Equal(t, want, arrayWKT(t, typ, arr))
		})
	}
}

func TestBuilderNoNullsHasNoValidity(t *testing.T) {
	arr := buildArray(t, TypeLineString, nil, "LINESTRING (1 2, 3 4)", "LINESTRING EMPTY")
	defer arr.Release()
	require.Equal(t, 0, arr.NullN())
	require.Nil(t, arr.Data().Buffers()[0])
}

func TestBuilderPromotesSingleGeometries(t *testing.T) {
	tests := []struct {
		typ      Type
		in, want string
	}{
		{TypeMultiPoint, "POINT (1 2)", "MULTIPOINT ((1 2))"},
		{TypeMultiLineString, "LINESTRING (1 2, 3 4)", "MULTILINESTRING ((1 2, 3 4))"},
		{TypeMultiPolygon, "POLYGON ((0 0, 1 0, 0 1, 0 0))", "MULTIPOLYGON (((0 0, 1 0, 0 1, 0 0)))"},
		{TypeMultiPolygonZ.Interleaved(), "POLYGON Z ((0 0 1, 1 0 1, 0 1 1, 0 0 1))", "MULTIPOLYGON Z (((0 0 1, 1 0 1, 0 1 1, 0 0 1)))"},
	}
	for _, tt := range tests {
		arr := buildArray(t, tt.typ, nil, tt.in, "MULTI"+tt.in[:strings.Index(tt.in, " ")]+" EMPTY")
		require.Equal(t, []string{tt.want, strings.SplitN(tt.want, " (", 2)[0] + " EMPTY"}, arrayWKT(t, tt.typ, arr))
		arr.Release()
	}
}

func TestBuilderConvertsDimensions(t *testing.T) {
	arr := buildArray(t, TypePointZ, nil, "POINT (1 2)", "POINT ZM (1 2 3 4)", "POINT M (1 2 4)")
	defer arr.Release()
	require.Equal(t, []string{"POINT Z (1 2 NaN)", "POINT Z (1 2 3)", "POINT Z (1 2 NaN)"}, arrayWKT(t, TypePointZ, arr))

	arr2 := buildArray(t, TypeLineString.Interleaved(), nil, "LINESTRING ZM (1 2 3 4, 5 6 7 8)")
	defer arr2.Release()
	require.Equal(t, []string{"LINESTRING (1 2, 5 6)"}, arrayWKT(t, TypeLineString.Interleaved(), arr2))
}

func TestBuilderReset(t *testing.T) {
	b, err := NewBuilder(TypePoint, nil)
	require.NoError(t, err)
	defer b.Release()

	r := NewWKTReader()
	require.NoError(t, r.Read("POINT (1 2)", b))
	require.Equal(t, 1, b.Len())
	arr, err := b.Finish()
	require.NoError(t, err)
	arr.Release()

	_, err = b.Finish()
	require.Equal(t, StatusSequenceError, StatusOf(err))
	require.Equal(t, StatusSequenceError, StatusOf(r.Read("POINT (1 2)", b)))

	b.Reset()
	require.NoError(t, r.Read("POINT (3 4)", b))
	arr, err = b.Finish()
	require.NoError(t, err)
	defer arr.Release()
	require.Equal(t, []string{"POINT (3 4)"}, arrayWKT(t, TypePoint, arr))
}

func TestBuilderSequenceErrors(t *testing.T) {
	newBuilder := func(t *testing.T, typ Type) *Builder {
		b, err := NewBuilder(typ, nil)
		require.NoError(t, err)
		t.Cleanup(b.Release)
		return b
	}

	t.Run("mixed input", func(t *testing.T) {
		b := newBuilder(t, TypePoint)
		require.NoError(t, b.AppendBuffer(1, float64Bytes(1)))
		require.Equal(t, StatusSequenceError, StatusOf(b.FeatStart()))
	})

	t.Run("append buffer inside feature", func(t *testing.T) {
		b := newBuilder(t, TypePoint)
		require.NoError(t, b.FeatStart())
		require.Equal(t, StatusSequenceError, StatusOf(b.AppendBuffer(1, float64Bytes(1))))
	})

	t.Run("no geometry", func(t *testing.T) {
		b := newBuilder(t, TypePoint)
		require.NoError(t, b.FeatStart())
		require.Equal(t, StatusSequenceError, StatusOf(b.FeatEnd()))
	})

	t.Run("unbalanced end", func(t *testing.T) {
		b := newBuilder(t, TypePoint)
		require.NoError(t, b.FeatStart())
		err := b.GeomEnd()
		require.Equal(t, StatusSequenceError, StatusOf(err))
		require.Contains(t, err.Error(), "level < 0")
		require.Equal(t, StatusSequenceError, StatusOf(b.RingEnd()))
	})

	t.Run("ring end on point", func(t *testing.T) {
		b := newBuilder(t, TypePoint)
		require.NoError(t, b.FeatStart())
		require.NoError(t, b.GeomStart(GeometryTypePoint, DimensionsXY))
		require.Equal(t, StatusSequenceError, StatusOf(b.RingEnd()))
	})

	t.Run("geom end on open ring", func(t *testing.T) {
		b := newBuilder(t, TypePolygon)
		require.NoError(t, b.FeatStart())
		require.NoError(t, b.GeomStart(GeometryTypePolygon, DimensionsXY))
		require.NoError(t, b.RingStart())
		require.Equal(t, StatusSequenceError, StatusOf(b.GeomEnd()))
	})

	t.Run("empty coords after finish", func(t *testing.T) {
		b := newBuilder(t, TypePoint)
		arr, err := b.Finish()
		require.NoError(t, err)
		arr.Release()
		require.Equal(t, StatusSequenceError, StatusOf(b.Coords(CoordView{})))
	})

	t.Run("empty coords in bulk mode", func(t *testing.T) {
		b := newBuilder(t, TypePoint)
		require.NoError(t, b.AppendBuffer(1, float64Bytes(1)))
		require.Equal(t, StatusSequenceError, StatusOf(b.Coords(CoordView{})))
	})

	t.Run("empty coords outside geometry", func(t *testing.T) {
		b := newBuilder(t, TypePoint)
		require.NoError(t, b.FeatStart())
		require.Equal(t, StatusSequenceError, StatusOf(b.Coords(CoordView{})))
	})

	t.Run("open feature at finish", func(t *testing.T) {
		b := newBuilder(t, TypePoint)
		require.NoError(t, b.FeatStart())
		_, err := b.Finish()
		require.Equal(t, StatusSequenceError, StatusOf(err))
	})

	t.Run("second geometry", func(t *testing.T) {
		b := newBuilder(t, TypePoint)
		require.NoError(t, b.FeatStart())
		require.NoError(t, b.GeomStart(GeometryTypePoint, DimensionsXY))
		require.NoError(t, b.GeomEnd())
		require.Equal(t, StatusSequenceError, StatusOf(b.GeomStart(GeometryTypePoint, DimensionsXY)))
	})

	t.Run("wrong type", func(t *testing.T) {
		b := newBuilder(t, TypePoint)
		require.NoError(t, b.FeatStart())
		err := b.GeomStart(GeometryTypeLineString, DimensionsXY)
		require.True(t, errors.Is(err, ErrUnsupportedType), "%v", err)
	})

	t.Run("point with two coordinates", func(t *testing.T) {
		b := newBuilder(t, TypePoint)
		require.NoError(t, b.FeatStart())
		require.NoError(t, b.GeomStart(GeometryTypePoint, DimensionsXY))
		require.NoError(t, b.Coords(interleavedCoordView(DimensionsXY, []float64{1, 2, 3, 4})))
		require.Equal(t, StatusInvalidStructure, StatusOf(b.GeomEnd()))
	})

	t.Run("nesting depth", func(t *testing.T) {
		b := newBuilder(t, TypeMultiPoint)
		require.NoError(t, b.FeatStart())
		require.NoError(t, b.GeomStart(GeometryTypeMultiPoint, DimensionsXY))
		for i := 1; i < MaxNestingDepth; i++ {
			require.NoError(t, b.GeomStart(GeometryTypePoint, DimensionsXY))
		}
		err := b.GeomStart(GeometryTypePoint, DimensionsXY)
		require.Equal(t, StatusSequenceError, StatusOf(err))
		require.Contains(t, err.Error(), "maximum nesting depth")
	})
}

func TestBuilderFromField(t *testing.T) {
	sv, err := NewSchemaView(TypePolygonZ)
	require.NoError(t, err)
	b, err := NewBuilderFromField(sv.Field("geom"), nil)
	require.NoError(t, err)
	defer b.Release()
	require.Equal(t, TypePolygonZ, b.SchemaView().Type)
	require.Equal(t, 1+2+3, b.NumBuffers())

	_, err = NewBuilderFromField(arrow.Field{Name: "geom", Type: arrow.BinaryTypes.Binary}, nil)
	require.Equal(t, StatusUnsupportedType, StatusOf(err))
}
