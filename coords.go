package geoarrow

import "math"

// CoordView is a borrowed, strided window over coordinate values. Lane i
// holds ordinate i (x, y, then z and/or m in the order given by Dims) and
// the value of coordinate j in lane i is Values[i][j*Stride].
//
// A CoordView never owns its slices; it is only valid for as long as the
// buffers it was taken from.
type CoordView struct {
	Values  [4][]float64
	NCoords int
	NValues int
	Stride  int
	Dims    Dimensions
}

// Value returns ordinate lane of coordinate row.
func (c *CoordView) Value(row, lane int) float64 {
	return c.Values[lane][row*c.Stride]
}

// Slice returns a view of n coordinates starting at start.
func (c CoordView) Slice(start, n int) CoordView {
	out := CoordView{NCoords: n, NValues: c.NValues, Stride: c.Stride, Dims: c.Dims}
	if n == 0 {
		return out
	}
	for i := 0; i < c.NValues; i++ {
		out.Values[i] = c.Values[i][start*c.Stride:]
	}
	return out
}

// separateCoordView builds a view over one slice per dimension.
func separateCoordView(dims Dimensions, lanes ...[]float64) CoordView {
	cv := CoordView{NValues: dims.Count(), Stride: 1, Dims: dims}
	for i := 0; i < cv.NValues && i < len(lanes); i++ {
		cv.Values[i] = lanes[i]
	}
	if len(lanes) > 0 {
		cv.NCoords = len(lanes[0])
	}
	return cv
}

// interleavedCoordView builds a view over a flat x,y[,z][,m] slice.
func interleavedCoordView(dims Dimensions, flat []float64) CoordView {
	n := dims.Count()
	cv := CoordView{NValues: n, Stride: n, Dims: dims}
	if n == 0 || len(flat) < n {
		return cv
	}
	cv.NCoords = len(flat) / n
	for i := 0; i < n; i++ {
		cv.Values[i] = flat[i:]
	}
	return cv
}

// laneMap returns, for each lane of dst, the index of the matching lane in
// src or -1 when src does not carry that ordinate.
func laneMap(src, dst Dimensions) [4]int {
	m := [4]int{-1, -1, -1, -1}
	for i, name := range laneNames(dst) {
		for j, other := range laneNames(src) {
			if name == other {
				m[i] = j
				break
			}
		}
	}
	return m
}

func laneNames(d Dimensions) []byte {
	switch d {
	case DimensionsXYZ:
		return []byte{'x', 'y', 'z'}
	case DimensionsXYM:
		return []byte{'x', 'y', 'm'}
	case DimensionsXYZM:
		return []byte{'x', 'y', 'z', 'm'}
	default:
		return []byte{'x', 'y'}
	}
}

// dims returns Dims, falling back to a guess from NValues.
func (c *CoordView) dims() Dimensions {
	if c.Dims != DimensionsUnknown {
		return c.Dims
	}
	switch c.NValues {
	case 3:
		return DimensionsXYZ
	case 4:
		return DimensionsXYZM
	default:
		return DimensionsXY
	}
}

// valueOr returns the mapped ordinate or NaN when the source lacks it.
func (c *CoordView) valueOr(row, lane int) float64 {
	if lane < 0 {
		return math.NaN()
	}
	return c.Value(row, lane)
}

// allNaN reports whether every ordinate of row is NaN.
func (c *CoordView) allNaN(row int) bool {
	for i := 0; i < c.NValues; i++ {
		if !math.IsNaN(c.Value(row, i)) {
			return false
		}
	}
	return true
}
