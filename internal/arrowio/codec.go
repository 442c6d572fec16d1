// Package arrowio encodes batches of sparse vectors as Arrow IPC streams, the
// wire format the engine ingests, so that fault injection can target a
// realistic payload rather than a bare slice.
package arrowio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	kerrors "github.com/23skdu/vsakit/internal/errors"
	"github.com/23skdu/vsakit/internal/metrics"
	"github.com/23skdu/vsakit/internal/pool"
	"github.com/23skdu/vsakit/sparse"
)

var (
	ErrSchemaMismatch = errors.New("payload schema does not match the sparse vector schema")
	ErrMalformed      = errors.New("payload is malformed")
)

// Schema is one row per vector with its positive and negative index lists.
var Schema = arrow.NewSchema([]arrow.Field{
	{Name: "pos", Type: arrow.ListOf(arrow.PrimitiveTypes.Int64)},
	{Name: "neg", Type: arrow.ListOf(arrow.PrimitiveTypes.Int64)},
}, nil)

// eosLen is the size of the end-of-stream marker the stream writer appends.
const eosLen = 8

// Every IPC message frame opens with the continuation token and a
// little-endian metadata length.
const (
	frameHeaderLen    = 8
	continuationToken = 0xFFFFFFFF
)

var endOfStream = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0, 0, 0, 0}

// schemaMessage is the IPC schema message every stream written by Encode
// starts with. Schema is fixed, so so are these bytes.
var schemaMessage = sync.OnceValues(func() ([]byte, error) {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(Schema), ipc.WithAllocator(memory.NewGoAllocator()))
	if err := w.Close(); err != nil {
		return nil, err
	}
	if buf.Len() < eosLen {
		return nil, ErrMalformed
	}
	return bytes.Clone(buf.Bytes()[:buf.Len()-eosLen]), nil
})

// SchemaMessageLen returns the length of the schema message that prefixes
// every encoded payload. Bytes past it belong to record batches.
func SchemaMessageLen() (int, error) {
	msg, err := schemaMessage()
	if err != nil {
		return 0, kerrors.WrapTransportError(err, "arrowio.SchemaMessageLen", "encode schema")
	}
	return len(msg), nil
}

// Codec converts between []sparse.SparseVec and Arrow records/IPC payloads.
// It is safe for concurrent use if its allocator is.
type Codec struct {
	mem     memory.Allocator
	buffers *pool.BytePool
}

// NewCodec returns a codec allocating from mem (Go allocator when nil).
func NewCodec(mem memory.Allocator) *Codec {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Codec{mem: mem, buffers: pool.NewBytePool()}
}

// NewRecord builds a record holding vecs. The caller must Release it.
func (c *Codec) NewRecord(vecs []sparse.SparseVec) arrow.Record {
	b := array.NewRecordBuilder(c.mem, Schema)
	defer b.Release()

	posB := b.Field(0).(*array.ListBuilder)
	negB := b.Field(1).(*array.ListBuilder)
	posV := posB.ValueBuilder().(*array.Int64Builder)
	negV := negB.ValueBuilder().(*array.Int64Builder)

	for _, v := range vecs {
		posB.Append(true)
		for _, idx := range v.Pos {
			posV.Append(int64(idx))
		}
		negB.Append(true)
		for _, idx := range v.Neg {
			negV.Append(int64(idx))
		}
	}
	return b.NewRecord()
}

// Encode serializes vecs into a single-batch Arrow IPC stream.
func (c *Codec) Encode(vecs []sparse.SparseVec) ([]byte, error) {
	rec := c.NewRecord(vecs)
	defer rec.Release()

	buf := c.buffers.Get()
	defer c.buffers.Put(buf)

	w := ipc.NewWriter(buf, ipc.WithSchema(Schema), ipc.WithAllocator(c.mem))
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return nil, kerrors.WrapTransportError(err, "arrowio.Encode", "write record")
	}
	if err := w.Close(); err != nil {
		return nil, kerrors.WrapTransportError(err, "arrowio.Encode", "close writer")
	}
	return bytes.Clone(buf.Bytes()), nil
}

// Decode parses an IPC stream produced by Encode: the schema message, one
// record batch and the end-of-stream marker. A payload whose schema message
// is not the exact encoding of Schema is rejected with ErrSchemaMismatch
// before parsing, and a batch frame that overruns the payload or trailing
// bytes other than the marker yield ErrMalformed. Other corrupted payloads
// return an error; a panic inside the Arrow reader on malformed input is
// recovered and reported as ErrMalformed.
func (c *Codec) Decode(payload []byte) (vecs []sparse.SparseVec, err error) {
	const op = "arrowio.Decode"
	defer func() {
		if r := recover(); r != nil {
			vecs = nil
			err = kerrors.WrapTransportError(ErrMalformed, op, fmt.Sprint(r))
		}
		if err != nil {
			metrics.TransportDecodeErrorsTotal.Inc()
		}
	}()

	// The reader sizes schema slices straight from the flatbuffer without
	// going through the allocator, so a damaged schema message could demand
	// gigabytes. Only the known encoding is ever handed to it.
	want, err := schemaMessage()
	if err != nil {
		return nil, kerrors.WrapTransportError(err, op, "encode schema")
	}
	if !bytes.HasPrefix(payload, want) {
		return nil, kerrors.WrapTransportError(ErrSchemaMismatch, op, "schema message differs from the vector schema")
	}

	// Metadata buffers are sized from the frame header, also outside the
	// allocator, so the batch frame must fit in what is left.
	if err := checkFrame(payload[len(want):]); err != nil {
		return nil, kerrors.WrapTransportError(err, op, "record batch frame")
	}

	src := &countingReader{r: bytes.NewReader(payload)}
	mem := &boundedAllocator{Allocator: c.mem, limit: decodeLimit(len(payload))}
	r, err := ipc.NewReader(src, ipc.WithAllocator(mem))
	if err != nil {
		return nil, kerrors.WrapTransportError(err, op, "open reader")
	}
	defer r.Release()

	if !r.Schema().Equal(Schema) {
		return nil, kerrors.WrapTransportError(ErrSchemaMismatch, op, r.Schema().String())
	}

	// Encode writes exactly one batch. Reading stops there so that no
	// later frame header is trusted.
	if !r.Next() {
		if err := r.Err(); err != nil {
			return nil, kerrors.WrapTransportError(err, op, "read batch")
		}
		return nil, kerrors.WrapTransportError(ErrMalformed, op, "missing record batch")
	}
	vecs, err = RecordToVecs(r.Record())
	if err != nil {
		return nil, err
	}
	if rest := payload[src.n:]; !bytes.Equal(rest, endOfStream) {
		return nil, kerrors.WrapTransportError(ErrMalformed, op, fmt.Sprintf("%d bytes after record batch", len(rest)))
	}
	return vecs, nil
}

// checkFrame rejects a message frame whose header is not a continuation
// token followed by a metadata length that fits in frame.
func checkFrame(frame []byte) error {
	if len(frame) < frameHeaderLen {
		return ErrMalformed
	}
	if binary.LittleEndian.Uint32(frame) != continuationToken {
		return fmt.Errorf("%w: missing continuation token", ErrMalformed)
	}
	metaLen := int32(binary.LittleEndian.Uint32(frame[4:]))
	if metaLen <= 0 || int(metaLen) > len(frame)-frameHeaderLen {
		return fmt.Errorf("%w: metadata length %d", ErrMalformed, metaLen)
	}
	return nil
}

type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += n
	return n, err
}

// RecordToVecs copies the rows of rec into sparse vectors.
func RecordToVecs(rec arrow.Record) ([]sparse.SparseVec, error) {
	const op = "arrowio.RecordToVecs"
	if rec.NumCols() != 2 {
		return nil, kerrors.WrapTransportError(ErrSchemaMismatch, op, fmt.Sprintf("%d columns", rec.NumCols()))
	}

	pos, err := listColumn(rec, 0)
	if err != nil {
		return nil, err
	}
	neg, err := listColumn(rec, 1)
	if err != nil {
		return nil, err
	}

	// The row count comes from batch metadata; the offset buffers come from
	// the body and bound it.
	rows := rec.NumRows()
	if rows < 0 || (rows > 0 && (rows >= int64(len(pos.list.Offsets())) || rows >= int64(len(neg.list.Offsets())))) {
		return nil, kerrors.WrapTransportError(ErrMalformed, op, fmt.Sprintf("%d rows exceed the offset buffers", rows))
	}
	out := make([]sparse.SparseVec, rows)
	for i := range out {
		if out[i].Pos, err = row(pos, i); err != nil {
			return nil, err
		}
		if out[i].Neg, err = row(neg, i); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type listCol struct {
	list   *array.List
	values *array.Int64
}

func listColumn(rec arrow.Record, i int) (listCol, error) {
	list, ok := rec.Column(i).(*array.List)
	if !ok {
		return listCol{}, kerrors.WrapTransportError(ErrSchemaMismatch, "arrowio.RecordToVecs", rec.ColumnName(i)+" is not a list")
	}
	values, ok := list.ListValues().(*array.Int64)
	if !ok {
		return listCol{}, kerrors.WrapTransportError(ErrSchemaMismatch, "arrowio.RecordToVecs", rec.ColumnName(i)+" values are not int64")
	}
	return listCol{list: list, values: values}, nil
}

func row(col listCol, i int) ([]int, error) {
	start, end := col.list.ValueOffsets(i)
	if start < 0 || end < start || end > int64(col.values.Len()) {
		return nil, kerrors.WrapTransportError(ErrMalformed, "arrowio.RecordToVecs", fmt.Sprintf("row %d offsets [%d, %d)", i, start, end))
	}
	out := make([]int, 0, end-start)
	for j := start; j < end; j++ {
		out = append(out, int(col.values.Value(int(j))))
	}
	return out, nil
}
