package render

import (
	"io"
	"sync"
)

const (
	minPooledCap = 1 * 1024
	maxPooledCap = 64 * 1024
)

var buffers = sync.Pool{
	New: func() interface{} {
		return NewBufferTarget()
	},
}

// GetBuffer returns an empty BufferTarget from a shared pool.
func GetBuffer() *BufferTarget {
	b := buffers.Get().(*BufferTarget)
	b.Reset()

	return b
}

// PutBuffer returns b to the pool. Buffers that grew very large are dropped
// so one oversized render does not pin its memory.
func PutBuffer(b *BufferTarget) {
	if b == nil || b.Cap() > maxPooledCap {
		return
	}
	if b.Cap() < minPooledCap {
		b.buf.Grow(minPooledCap)
	}
	b.Reset()
	buffers.Put(b)
}

// ToString renders r into a string.
func ToString(r Renderable) (string, error) {
	b := GetBuffer()
	defer PutBuffer(b)

	if err := r.RenderTo(b); err != nil {
		return "", err
	}

	return b.String(), nil
}

// ToWriter renders r directly to w.
func ToWriter(r Renderable, w io.Writer) error {
	return r.RenderTo(NewWriterTarget(w))
}
