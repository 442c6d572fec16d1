package arrowio

import (
	"fmt"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/vsakit/internal/metrics"
)

// boundedAllocator refuses single allocations above limit. A corrupted length
// field in an IPC message would otherwise ask for gigabytes before the short
// read is noticed; the refusal panics and Decode recovers it. Granted bytes
// are counted so decode cost shows up in metrics.
type boundedAllocator struct {
	memory.Allocator
	limit     int
	allocated atomic.Int64
}

type allocationRefused struct {
	size, limit int
}

func (a allocationRefused) String() string {
	return fmt.Sprintf("allocation of %d bytes exceeds payload bound %d", a.size, a.limit)
}

func (b *boundedAllocator) Allocate(size int) []byte {
	if size > b.limit {
		panic(allocationRefused{size: size, limit: b.limit})
	}
	b.track(size)
	return b.Allocator.Allocate(size)
}

func (b *boundedAllocator) Reallocate(size int, buf []byte) []byte {
	if size > b.limit {
		panic(allocationRefused{size: size, limit: b.limit})
	}
	// counted as new bytes; the old size is not known here
	b.track(size)
	return b.Allocator.Reallocate(size, buf)
}

func (b *boundedAllocator) track(size int) {
	b.allocated.Add(int64(size))
	metrics.TransportDecodeBytesTotal.Add(float64(size))
}

// decodeLimit bounds any buffer a well-formed payload of n bytes can need.
func decodeLimit(n int) int {
	return 2*n + 4096
}
