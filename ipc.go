package geoarrow

import (
	"io"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/cockroachdb/errors"
)

// WriteIPC writes arr as a single-column Arrow IPC stream. The column is
// described by field, which should carry the GeoArrow extension metadata
// (see SchemaView.Field).
func WriteIPC(w io.Writer, field arrow.Field, arr arrow.Array) error {
	if !arrow.TypeEqual(field.Type, arr.DataType()) {
		return newError(ErrInvalidStructure, "field type %s does not match array type %s", field.Type, arr.DataType())
	}
	return writeRecord(w, arrow.NewSchema([]arrow.Field{field}, nil), []arrow.Array{arr})
}

func writeRecord(w io.Writer, schema *arrow.Schema, cols []arrow.Array) error {
	rec := array.NewRecord(schema, cols, int64(cols[0].Len()))
	defer rec.Release()

	iw := ipc.NewWriter(w, ipc.WithSchema(schema))
	if err := iw.Write(rec); err != nil {
		_ = iw.Close()
		return errors.Wrap(err, "writing record batch")
	}
	return errors.Wrap(iw.Close(), "closing IPC stream")
}

// ReadIPC reads every record batch of a single-column Arrow IPC stream and
// returns the column's field and one array per batch. The caller owns the
// arrays and must release them. A nil allocator means
// memory.DefaultAllocator.
func ReadIPC(r io.Reader, mem memory.Allocator) (arrow.Field, []arrow.Array, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	rdr, err := ipc.NewReader(r, ipc.WithAllocator(mem))
	if err != nil {
		return arrow.Field{}, nil, errors.Wrap(err, "opening IPC stream")
	}
	defer rdr.Release()

	schema := rdr.Schema()
	if schema.NumFields() != 1 {
		return arrow.Field{}, nil, newError(ErrInvalidStructure, "expected one column, got %d", schema.NumFields())
	}

	var chunks []arrow.Array
	for rdr.Next() {
		col := rdr.Record().Column(0)
		col.Retain()
		chunks = append(chunks, col)
	}
	if err := rdr.Err(); err != nil {
		for _, c := range chunks {
			c.Release()
		}
		return arrow.Field{}, nil, errors.Wrap(err, "reading record batch")
	}
	return schema.Field(0), chunks, nil
}
