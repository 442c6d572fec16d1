package pool

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/23skdu/vsakit/internal/metrics"
)

func TestBitmapPool(t *testing.T) {
	// 1. Get a bitmap
	bm1 := GetBitmap()
	assert.NotNil(t, bm1)
	assert.Equal(t, uint64(0), bm1.GetCardinality(), "New bitmap should be empty")

	// 2. Modify it
	assert.True(t, bm1.CheckedAdd(1))
	assert.True(t, bm1.CheckedAdd(1<<40))
	assert.False(t, bm1.CheckedAdd(1), "Duplicate add should report false")
	assert.Equal(t, uint64(2), bm1.GetCardinality())

	// 3. Put it back
	PutBitmap(bm1)

	// 4. Get another one (should be reused and cleared)
	bm2 := GetBitmap()
	assert.NotNil(t, bm2)
	assert.Equal(t, uint64(0), bm2.GetCardinality(), "Recycled bitmap should be cleared")
	PutBitmap(bm2)
}

func TestBitmapPool_PutNil(t *testing.T) {
	p := &BitmapPool{}
	assert.NotPanics(t, func() { p.Put(nil) })
}

func TestBytePool(t *testing.T) {
	p := NewBytePool()
	buf := p.Get()
	buf.WriteString("payload")
	p.Put(buf)

	again := p.Get()
	assert.Equal(t, 0, again.Len(), "Recycled buffer should be empty")
	p.Put(nil)
}

func TestBytePool_DiscardsOversized(t *testing.T) {
	p := NewBytePoolWithLimit(16)
	discards := metrics.PoolOperationsTotal.WithLabelValues("bytes", "discard")
	before := testutil.ToFloat64(discards)

	buf := p.Get()
	buf.Write(make([]byte, 64))
	p.Put(buf)

	assert.Equal(t, before+1, testutil.ToFloat64(discards))
	assert.Equal(t, 64, buf.Len(), "Discarded buffer is left untouched")
}
