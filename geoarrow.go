// Package geoarrow provides a columnar, zero-copy representation of vector
// geometries laid out as nested Arrow arrays, and converts between that
// representation and WKB, WKT, orb, go-geom and FlatGeobuf.
//
// Every format talks to every other format through the Visitor event
// protocol: a reader walks its input and calls the visitor's methods, a
// writer implements Visitor and accumulates output. ArrayView is a reader
// over nested Arrow buffers and Builder is the matching writer.
//
//	b, _ := geoarrow.NewBuilder(geoarrow.TypePolygon, nil)
//	_ = geoarrow.NewWKTReader().Read("POLYGON ((0 0, 1 0, 0 1, 0 0))", b)
//	arr, _ := b.Finish()
//
// None of the types in this package are safe for concurrent mutation.
package geoarrow

import (
	"github.com/cockroachdb/errors"
)

// Error categories. Use errors.Is to test an error against one of these.
var (
	ErrUnsupportedType  = errors.New("geoarrow: unsupported type")
	ErrNotSupported     = errors.New("geoarrow: not supported")
	ErrInvalidStructure = errors.New("geoarrow: invalid structure")
	ErrSequence         = errors.New("geoarrow: invalid visitor sequence")
	ErrDecode           = errors.New("geoarrow: decode error")

	ErrNilGeometry = errors.New("geoarrow: nil geometry")
	ErrInvalidData = errors.New("geoarrow: invalid data")
	ErrNoIndex     = errors.New("geoarrow: file has no spatial index")
)

// MaxNestingDepth is the deepest level of geometry/ring nesting any writer
// in this package accepts.
const MaxNestingDepth = 32

// Status is a machine-checkable classification of an error.
type Status int

const (
	StatusOK Status = iota
	StatusUnsupportedType
	StatusNotSupported
	StatusInvalidStructure
	StatusSequenceError
	StatusDecodeError
	StatusUnknown
)

var statusNames = [...]string{
	StatusOK:               "OK",
	StatusUnsupportedType:  "UnsupportedType",
	StatusNotSupported:     "NotSupported",
	StatusInvalidStructure: "InvalidStructure",
	StatusSequenceError:    "SequenceError",
	StatusDecodeError:      "DecodeError",
	StatusUnknown:          "Unknown",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "Unknown"
	}
	return statusNames[s]
}

// StatusOf classifies err. A nil error is StatusOK.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrUnsupportedType):
		return StatusUnsupportedType
	case errors.Is(err, ErrNotSupported):
		return StatusNotSupported
	case errors.Is(err, ErrInvalidStructure):
		return StatusInvalidStructure
	case errors.Is(err, ErrSequence):
		return StatusSequenceError
	case errors.Is(err, ErrDecode):
		return StatusDecodeError
	default:
		return StatusUnknown
	}
}

// newError returns an error whose message is the formatted text and which
// matches kind under errors.Is.
func newError(kind error, format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), kind)
}
