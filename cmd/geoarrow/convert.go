package main

import (
	"bufio"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	geoarrow "github.com/tingold/orb-geoarrow"
)

const (
	formatWKT    = "wkt"
	formatWKBHex = "wkb-hex"
	formatArrow  = "arrow"
	formatFGB    = "fgb"
)

var convertOpts = struct {
	from, to     string
	geometryType string
	dims         string
	interleaved  bool
	precision    int
	layer        string
}{}

var convertCmd = &cobra.Command{
	Use:   "convert <in> <out>",
	Short: "convert geometries between formats",
	Long: `Reads features from <in> and writes them to <out>. Use - for stdin or
stdout. Text formats (wkt, wkb-hex) hold one feature per line with empty
lines for null features; arrow is an Arrow IPC stream with one GeoArrow
column; fgb is a FlatGeobuf file.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	f := convertCmd.Flags()
	f.StringVar(&convertOpts.from, "from", formatWKT, "input format: wkt, wkb-hex, arrow or fgb")
	f.StringVar(&convertOpts.to, "to", formatArrow, "output format: wkt, wkb-hex, arrow or fgb")
	f.StringVar(&convertOpts.geometryType, "type", "multipolygon", "GeoArrow geometry type for arrow output")
	f.StringVar(&convertOpts.dims, "dims", "xy", "GeoArrow dimensions for arrow output: xy, xyz, xym or xyzm")
	f.BoolVar(&convertOpts.interleaved, "interleaved", false, "write interleaved coordinates for arrow output")
	f.IntVar(&convertOpts.precision, "precision", 16, "significant digits for wkt output")
	f.StringVar(&convertOpts.layer, "layer", "", "layer name for fgb output")
}

// countingVisitor counts the features passing through to the wrapped sink.
type countingVisitor struct {
	geoarrow.Visitor
	features int
}

func (c *countingVisitor) FeatEnd() error {
	c.features++
	return c.Visitor.FeatEnd()
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	return f, errors.Wrapf(err, "opening %s", path)
}

func createOutput(path string) (io.WriteCloser, error) {
	if path == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	return f, errors.Wrapf(err, "creating %s", path)
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// sink is an event consumer that can flush its result once every feature
// has been visited.
type sink struct {
	geoarrow.Visitor
	flush   func(w io.Writer) error
	release func()
}

func newSink(to string) (*sink, error) {
	switch to {
	case formatWKT:
		opts := geoarrow.DefaultWKTOptions()
		opts.Precision = convertOpts.precision
		w := geoarrow.NewWKTWriter(opts, memory.DefaultAllocator)
		return &sink{Visitor: w, release: w.Release, flush: func(out io.Writer) error {
			arr, err := w.Finish()
			if err != nil {
				return err
			}
			defer arr.Release()
			return writeLines(out, arr.Len(), arr.IsNull, arr.Value)
		}}, nil

	case formatWKBHex:
		w := geoarrow.NewWKBWriter(memory.DefaultAllocator)
		return &sink{Visitor: w, release: w.Release, flush: func(out io.Writer) error {
			arr, err := w.Finish()
			if err != nil {
				return err
			}
			defer arr.Release()
			return writeLines(out, arr.Len(), arr.IsNull, func(i int) string {
				return hex.EncodeToString(arr.Value(i))
			})
		}}, nil

	case formatArrow:
		t, err := arrowType()
		if err != nil {
			return nil, err
		}
		b, err := geoarrow.NewBuilder(t, memory.DefaultAllocator)
		if err != nil {
			return nil, err
		}
		return &sink{Visitor: b, release: b.Release, flush: func(out io.Writer) error {
			arr, err := b.Finish()
			if err != nil {
				return err
			}
			defer arr.Release()
			return geoarrow.WriteIPC(out, b.SchemaView().Field("geometry"), arr)
		}}, nil

	case formatFGB:
		w := geoarrow.NewFlatGeobufWriter()
		return &sink{Visitor: w, release: func() {}, flush: func(out io.Writer) error {
			opts := geoarrow.DefaultOptions()
			opts.Name = convertOpts.layer
			return w.Write(out, opts)
		}}, nil
	}
	return nil, errors.Newf("unknown output format %q", to)
}

func arrowType() (geoarrow.Type, error) {
	g, err := geoarrow.ParseGeometryType(convertOpts.geometryType)
	if err != nil {
		return geoarrow.TypeUninitialized, err
	}
	d, err := geoarrow.ParseDimensions(convertOpts.dims)
	if err != nil {
		return geoarrow.TypeUninitialized, err
	}
	c := geoarrow.CoordTypeSeparate
	if convertOpts.interleaved {
		c = geoarrow.CoordTypeInterleaved
	}
	t := geoarrow.MakeType(g, d, c)
	if !t.Valid() {
		return t, errors.Newf("%s %s cannot be stored as a GeoArrow array", g, d)
	}
	return t, nil
}

func writeLines(out io.Writer, n int, isNull func(int) bool, value func(int) string) error {
	w := bufio.NewWriter(out)
	for i := 0; i < n; i++ {
		if !isNull(i) {
			if _, err := w.WriteString(value(i)); err != nil {
				return err
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

// readLines calls fn for every line of r with line endings removed.
func readLines(r io.Reader, fn func(line string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256<<20)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		if err := fn(strings.TrimRight(scanner.Text(), "\r")); err != nil {
			return errors.Wrapf(err, "line %d", lineNo)
		}
	}
	return scanner.Err()
}

func nullFeature(v geoarrow.Visitor) error {
	if err := v.FeatStart(); err != nil {
		return err
	}
	if err := v.NullFeat(); err != nil {
		return err
	}
	return v.FeatEnd()
}

func visitInput(from string, in io.Reader, v geoarrow.Visitor) error {
	switch from {
	case formatWKT:
		r := geoarrow.NewWKTReader()
		return readLines(in, func(line string) error {
			if strings.TrimSpace(line) == "" {
				return nullFeature(v)
			}
			return r.Read(line, v)
		})

	case formatWKBHex:
		r := geoarrow.NewWKBReader()
		return readLines(in, func(line string) error {
			line = strings.TrimSpace(line)
			if line == "" {
				return nullFeature(v)
			}
			data, err := hex.DecodeString(line)
			if err != nil {
				return errors.Mark(errors.Wrap(err, "decoding hex"), geoarrow.ErrDecode)
			}
			return r.Read(data, v)
		})

	case formatArrow:
		field, chunks, err := geoarrow.ReadIPC(in, memory.DefaultAllocator)
		if err != nil {
			return err
		}
		defer func() {
			for _, c := range chunks {
				c.Release()
			}
		}()
		return visitArrow(field, chunks, v)

	case formatFGB:
		data, err := io.ReadAll(in)
		if err != nil {
			return errors.Wrap(err, "reading FlatGeobuf input")
		}
		r, err := geoarrow.NewFlatGeobufReaderFromData(data)
		if err != nil {
			return err
		}
		defer func() { _ = r.Close() }()
		return r.Visit(v)
	}
	return errors.Newf("unknown input format %q", from)
}

func runConvert(cmd *cobra.Command, args []string) error {
	s, err := newSink(convertOpts.to)
	if err != nil {
		return err
	}
	defer s.release()

	in, err := openInput(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	counter := &countingVisitor{Visitor: s.Visitor}
	if err := visitInput(convertOpts.from, in, counter); err != nil {
		return errors.Wrapf(err, "reading %s input", convertOpts.from)
	}
	slog.Debug("read input", slog.String("format", convertOpts.from), slog.Int("features", counter.features))

	out, err := createOutput(args[1])
	if err != nil {
		return err
	}
	if err := s.flush(out); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, "writing %s output", convertOpts.to)
	}
	if err := out.Close(); err != nil {
		return err
	}

	slog.Info("converted",
		slog.String("from", convertOpts.from),
		slog.String("to", convertOpts.to),
		slog.Int("features", counter.features),
	)
	return nil
}

func visitArrow(field arrow.Field, chunks []arrow.Array, v geoarrow.Visitor) error {
	view, err := geoarrow.NewArrayViewFromField(field)
	if err != nil {
		return err
	}
	for i, c := range chunks {
		if err := view.SetArray(c.Data()); err != nil {
			return errors.Wrapf(err, "batch %d", i)
		}
		if err := view.Visit(0, view.Length(), v); err != nil {
			return errors.Wrapf(err, "batch %d", i)
		}
	}
	return nil
}
