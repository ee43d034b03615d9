package buf

import (
	"errors"
	"fmt"
	"io"
)

// MaxSize is the largest capacity New will hand out.
const MaxSize int64 = 1 << 34

// ErrAllocation is returned when a buffer of the requested capacity cannot be acquired.
var ErrAllocation = errors.New("buf: allocation failed")

// Buffer is an exclusively owned, fixed capacity byte array. Buffer.Release()
// wipes and drops the storage; after that the Buffer is empty and every
// further Release is a no-op.
type Buffer struct {
	v   []byte
	end int
}

// New creates a Buffer with 0 length and the given capacity.
func New(capacity int64) (*Buffer, error) {
	return NewLimited(capacity, MaxSize)
}

// NewLimited is New with a caller supplied upper bound on the capacity.
func NewLimited(capacity, limit int64) (*Buffer, error) {
	if capacity < 0 || capacity > limit || capacity > MaxSize || int64(int(capacity)) != capacity {
		return nil, fmt.Errorf("%w: capacity %d exceeds limit %d", ErrAllocation, capacity, limit)
	}
	return &Buffer{v: make([]byte, capacity)}, nil
}

// Release wipes the content and drops the storage.
func (b *Buffer) Release() {
	if b == nil || b.v == nil {
		return
	}
	clear(b.v)
	b.v = nil
	b.end = 0
}

// Bytes returns the written content of this Buffer.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	return b.v[:b.end]
}

// Len returns the length of the buffer content.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return b.end
}

// Cap returns the allocated capacity.
func (b *Buffer) Cap() int {
	if b == nil {
		return 0
	}
	return len(b.v)
}

// Available returns how many bytes can still be written.
func (b *Buffer) Available() int {
	return b.Cap() - b.Len()
}

// Extend increases the buffer size by n bytes, and returns the extended part.
// It panics if the result size is larger than the capacity.
func (b *Buffer) Extend(n int) []byte {
	end := b.end + n
	if n < 0 || end > len(b.v) {
		panic("extending out of bound")
	}
	ext := b.v[b.end:end]
	b.end = end
	return ext
}

// Write implements io.Writer. It never grows the buffer; a write that does
// not fit returns io.ErrShortWrite after copying what fits.
func (b *Buffer) Write(data []byte) (int, error) {
	nBytes := copy(b.v[b.end:], data)
	b.end += nBytes
	if nBytes < len(data) {
		return nBytes, io.ErrShortWrite
	}
	return nBytes, nil
}

// String returns the string form of this Buffer.
func (b *Buffer) String() string {
	return string(b.Bytes())
}
