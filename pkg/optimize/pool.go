// Package optimize holds allocation helpers for the hot datagram
// receive path.
package optimize

import "sync"

// BytePool recycles fixed-size byte slices. Slices are stored by
// pointer so a Put does not itself allocate.
type BytePool struct {
	size int
	pool sync.Pool
}

// NewBytePool builds a pool handing out slices of exactly size bytes.
func NewBytePool(size int) *BytePool {
	p := &BytePool{size: size}
	p.pool.New = func() interface{} {
		b := make([]byte, size)
		return &b
	}
	return p
}

// Get returns a slice of the pool's size. Contents are whatever the
// previous user left there.
func (p *BytePool) Get() []byte {
	return *p.pool.Get().(*[]byte)
}

// Put recycles b. Slices that shrank below the pool size are dropped so
// Get never hands out a short buffer.
func (p *BytePool) Put(b []byte) {
	if cap(b) < p.size {
		return
	}
	b = b[:p.size]
	p.pool.Put(&b)
}
