package pool

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/23skdu/vsakit/internal/metrics"
)

// BitmapPool manages a pool of *roaring64.Bitmap index sets. Samplers and
// injectors borrow one per call for their "already used" bookkeeping.
type BitmapPool struct {
	pool sync.Pool
}

var globalBitmapPool = &BitmapPool{
	pool: sync.Pool{
		New: func() any {
			return roaring64.New()
		},
	},
}

// GetBitmap retrieves a cleared bitmap from the global pool.
func GetBitmap() *roaring64.Bitmap {
	return globalBitmapPool.Get()
}

// PutBitmap returns a bitmap to the global pool after clearing it.
func PutBitmap(bm *roaring64.Bitmap) {
	globalBitmapPool.Put(bm)
}

// Get retrieves a cleared bitmap from the pool.
func (p *BitmapPool) Get() *roaring64.Bitmap {
	metrics.PoolOperationsTotal.WithLabelValues("bitmap", "get").Inc()
	return p.pool.Get().(*roaring64.Bitmap)
}

// Put returns a bitmap to the pool.
func (p *BitmapPool) Put(bm *roaring64.Bitmap) {
	if bm != nil {
		bm.Clear()
		metrics.PoolOperationsTotal.WithLabelValues("bitmap", "put").Inc()
		p.pool.Put(bm)
	}
}
