package geoarrow

import (
	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/bitutil"
	"github.com/apache/arrow/go/v17/arrow/memory"
)

// buffer is a growable, owned Arrow buffer.
type buffer struct {
	mem memory.Allocator
	buf *memory.Buffer
}

func newBuffer(mem memory.Allocator) *buffer {
	return &buffer{mem: mem, buf: memory.NewResizableBuffer(mem)}
}

func (b *buffer) Len() int { return b.buf.Len() }

func (b *buffer) Bytes() []byte { return b.buf.Bytes() }

// grow extends the buffer by n bytes and returns the new tail. Capacity
// grows geometrically so repeated small appends stay amortized O(1).
func (b *buffer) grow(n int) []byte {
	old := b.buf.Len()
	need := old + n
	if need > b.buf.Cap() {
		newCap := bitutil.NextPowerOf2(need)
		if newCap < 64 {
			newCap = 64
		}
		b.buf.Reserve(newCap)
	}
	b.buf.ResizeNoShrink(need)
	return b.buf.Bytes()[old:need]
}

func (b *buffer) appendBytes(p []byte) {
	copy(b.grow(len(p)), p)
}

func (b *buffer) appendInt32(v int32) {
	arrow.Int32Traits.PutValue(b.grow(arrow.Int32SizeBytes), v)
}

func (b *buffer) int32s() []int32 {
	return arrow.Int32Traits.CastFromBytes(b.buf.Bytes())
}

// appendFloat64s grows the buffer by n values and returns them for filling.
func (b *buffer) appendFloat64s(n int) []float64 {
	return arrow.Float64Traits.CastFromBytes(b.grow(n * arrow.Float64SizeBytes))
}

// take hands the underlying memory to the caller and starts over with an
// empty buffer.
func (b *buffer) take() *memory.Buffer {
	out := b.buf
	b.buf = memory.NewResizableBuffer(b.mem)
	return out
}

func (b *buffer) release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

// bitmap is a growable validity bitmap.
type bitmap struct {
	*buffer
	bits  int
	unset int
}

func (b *bitmap) appendBit(set bool) {
	if need := int(bitutil.BytesForBits(int64(b.bits + 1))); need > b.Len() {
		b.grow(need - b.Len())[0] = 0
	}
	bitutil.SetBitTo(b.Bytes(), b.bits, set)
	if !set {
		b.unset++
	}
	b.bits++
}
