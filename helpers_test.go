package geoarrow

import (
	"encoding/hex"
	"strconv"
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/stretchr/testify/require"
)

// nullWKT stands for a null feature in the helpers below.
const nullWKT = "<null>"

// buildArray reads each WKT string into a builder for typ and returns the
// finished array.
func buildArray(t testing.TB, typ Type, mem memory.Allocator, wkts ...string) arrow.Array {
	t.Helper()
	b, err := NewBuilder(typ, mem)
	require.NoError(t, err)
	defer b.Release()

	r := NewWKTReader()
	for _, s := range wkts {
		if s == nullWKT {
			require.NoError(t, visitNull(b))
			continue
		}
		require.NoError(t, r.Read(s, b), s)
	}
	arr, err := b.Finish()
	require.NoError(t, err)
	return arr
}

// arrayWKT renders every feature of arr as WKT.
func arrayWKT(t testing.TB, typ Type, arr arrow.Array) []string {
	t.Helper()
	view, err := NewArrayView(typ)
	require.NoError(t, err)
	require.NoError(t, view.SetArray(arr.Data()))

	w := NewWKTWriter(nil, nil)
	defer w.Release()
	require.NoError(t, view.Visit(0, view.Length(), w))
	return finishWKT(t, w)
}

func finishWKT(t testing.TB, w *WKTWriter) []string {
	t.Helper()
	out, err := w.Finish()
	require.NoError(t, err)
	defer out.Release()

	values := make([]string, out.Len())
	for i := range values {
		if out.IsNull(i) {
			values[i] = nullWKT
		} else {
			values[i] = out.Value(i)
		}
	}
	return values
}

// roundTripWKT reads text and writes it back with opts.
func roundTripWKT(t testing.TB, text string, opts *WKTOptions) string {
	t.Helper()
	w := NewWKTWriter(opts, nil)
	defer w.Release()
	require.NoError(t, NewWKTReader().Read(text, w))
	values := finishWKT(t, w)
	require.Len(t, values, 1)
	return values[0]
}

// wktToWKB encodes text as WKB.
func wktToWKB(t testing.TB, text string) []byte {
	t.Helper()
	w := NewWKBWriter(nil)
	defer w.Release()
	require.NoError(t, NewWKTReader().Read(text, w))
	arr, err := w.Finish()
	require.NoError(t, err)
	defer arr.Release()
	require.Equal(t, 1, arr.Len())
	return append([]byte(nil), arr.Value(0)...)
}

// wkbToWKT decodes data and renders it as WKT.
func wkbToWKT(t testing.TB, data []byte) string {
	t.Helper()
	w := NewWKTWriter(nil, nil)
	defer w.Release()
	require.NoError(t, NewWKBReader().Read(data, w))
	values := finishWKT(t, w)
	require.Len(t, values, 1)
	return values[0]
}

func mustDecodeHex(t testing.TB, s string) []byte {
	t.Helper()
	data, err := hex.DecodeString(s)
	require.NoError(t, err)
	return data
}

// recordingVisitor records every event as a short string.
type recordingVisitor struct {
	events []string
}

func (r *recordingVisitor) FeatStart() error {
	r.events = append(r.events, "feat_start")
	return nil
}

func (r *recordingVisitor) NullFeat() error {
	r.events = append(r.events, "null_feat")
	return nil
}

func (r *recordingVisitor) GeomStart(g GeometryType, d Dimensions) error {
	r.events = append(r.events, "geom_start "+g.String()+" "+d.String())
	return nil
}

func (r *recordingVisitor) RingStart() error {
	r.events = append(r.events, "ring_start")
	return nil
}

func (r *recordingVisitor) Coords(cv CoordView) error {
	r.events = append(r.events, "coords "+strconv.Itoa(cv.NCoords))
	return nil
}

func (r *recordingVisitor) RingEnd() error {
	r.events = append(r.events, "ring_end")
	return nil
}

func (r *recordingVisitor) GeomEnd() error {
	r.events = append(r.events, "geom_end")
	return nil
}

func (r *recordingVisitor) FeatEnd() error {
	r.events = append(r.events, "feat_end")
	return nil
}
