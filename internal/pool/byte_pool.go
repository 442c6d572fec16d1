package pool

import (
	"bytes"
	"sync"

	"github.com/23skdu/vsakit/internal/metrics"
)

// DefaultMaxRetained is the largest buffer capacity a BytePool keeps.
const DefaultMaxRetained = 4 << 20

// BytePool recycles the buffers that stage encoded transport payloads.
// Buffers that grew beyond maxRetained are dropped on Put so one oversized
// batch does not pin its memory for the rest of a campaign.
type BytePool struct {
	pool        sync.Pool
	maxRetained int
}

// NewBytePool returns a pool retaining buffers up to DefaultMaxRetained.
func NewBytePool() *BytePool {
	return NewBytePoolWithLimit(DefaultMaxRetained)
}

// NewBytePoolWithLimit returns a pool retaining buffers up to maxRetained
// bytes of capacity.
func NewBytePoolWithLimit(maxRetained int) *BytePool {
	return &BytePool{
		pool: sync.Pool{
			New: func() any { return new(bytes.Buffer) },
		},
		maxRetained: maxRetained,
	}
}

// Get returns an empty buffer.
func (p *BytePool) Get() *bytes.Buffer {
	metrics.PoolOperationsTotal.WithLabelValues("bytes", "get").Inc()
	return p.pool.Get().(*bytes.Buffer)
}

// Put resets buf and returns it to the pool unless it is nil or too large.
func (p *BytePool) Put(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	if buf.Cap() > p.maxRetained {
		metrics.PoolOperationsTotal.WithLabelValues("bytes", "discard").Inc()
		return
	}
	buf.Reset()
	metrics.PoolOperationsTotal.WithLabelValues("bytes", "put").Inc()
	p.pool.Put(buf)
}
