package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v17/arrow/memory"
	"github.com/spf13/cobra"

	geoarrow "github.com/tingold/orb-geoarrow"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "describe a GeoArrow IPC stream or FlatGeobuf file",
	Long: `Prints the geometry type, dimensions and feature counts of an Arrow IPC
stream holding one GeoArrow column, or the header of a FlatGeobuf file
(detected by its .fgb extension).`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	in, err := openInput(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out := cmd.OutOrStdout()
	if strings.EqualFold(filepath.Ext(args[0]), ".fgb") {
		return inspectFlatGeobuf(out, in)
	}
	return inspectArrow(out, in)
}

func inspectArrow(out io.Writer, in io.Reader) error {
	field, chunks, err := geoarrow.ReadIPC(in, memory.DefaultAllocator)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range chunks {
			c.Release()
		}
	}()

	view, err := geoarrow.NewArrayViewFromField(field)
	if err != nil {
		return err
	}
	sv := view.SchemaView()

	var length, nulls int
	for _, c := range chunks {
		if err := view.SetArray(c.Data()); err != nil {
			return err
		}
		length += view.Length()
		nulls += c.NullN()
	}

	fmt.Fprintf(out, "column:      %s\n", field.Name)
	fmt.Fprintf(out, "extension:   %s\n", sv.ExtensionName())
	fmt.Fprintf(out, "type:        %s\n", sv.Type)
	fmt.Fprintf(out, "dimensions:  %s\n", sv.Dimensions)
	fmt.Fprintf(out, "coordinates: %s\n", sv.CoordType)
	fmt.Fprintf(out, "batches:     %d\n", len(chunks))
	fmt.Fprintf(out, "features:    %d\n", length)
	fmt.Fprintf(out, "nulls:       %d\n", nulls)
	return nil
}

func inspectFlatGeobuf(out io.Writer, in io.Reader) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	r, err := geoarrow.NewFlatGeobufReaderFromData(data)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	h := r.Header()
	fmt.Fprintf(out, "name:        %s\n", h.Name)
	fmt.Fprintf(out, "type:        %s\n", h.GeometryType)
	fmt.Fprintf(out, "dimensions:  %s\n", h.Dimensions)
	fmt.Fprintf(out, "features:    %d\n", h.FeaturesCount)
	fmt.Fprintf(out, "envelope:    %v\n", h.Envelope)
	fmt.Fprintf(out, "index:       %t\n", h.HasIndex)
	if h.CRS != nil {
		fmt.Fprintf(out, "crs:         EPSG:%d %s\n", h.CRS.Code, h.CRS.Name)
	}
	for _, c := range h.Columns {
		fmt.Fprintf(out, "column:      %s (%s)\n", c.Name, c.Type)
	}
	return nil
}
