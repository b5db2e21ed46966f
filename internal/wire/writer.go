// Package wire implements the positional, type-directed codec used to
// serialize and deserialize protocol values to and from growbuf.Buffer
// and byte-slice cursors. There is no schema and no reflection: every
// composite value's field order is fixed by this package, mirroring the
// SUSCAN_PACK/SUSCAN_UNPACK macro pairs of the original protocol.
package wire

import (
	"encoding/binary"
	"math"

	"github.com/cwsl/suscan-remoteclient/internal/growbuf"
)

// Writer serializes primitives into a growbuf.Buffer in the protocol's
// canonical big-endian encoding.
type Writer struct {
	buf *growbuf.Buffer
}

// NewWriter returns a Writer that appends to buf.
func NewWriter(buf *growbuf.Buffer) *Writer {
	return &Writer{buf: buf}
}

func (w *Writer) WriteUint8(v uint8) {
	region := w.buf.Append(1)
	region[0] = v
}

func (w *Writer) WriteUint16(v uint16) {
	region := w.buf.Append(2)
	binary.BigEndian.PutUint16(region, v)
}

func (w *Writer) WriteUint32(v uint32) {
	region := w.buf.Append(4)
	binary.BigEndian.PutUint32(region, v)
}

func (w *Writer) WriteUint64(v uint64) {
	region := w.buf.Append(8)
	binary.BigEndian.PutUint64(region, v)
}

func (w *Writer) WriteInt8(v int8)   { w.WriteUint8(uint8(v)) }
func (w *Writer) WriteInt16(v int16) { w.WriteUint16(uint16(v)) }
func (w *Writer) WriteInt32(v int32) { w.WriteUint32(uint32(v)) }
func (w *Writer) WriteInt64(v int64) { w.WriteUint64(uint64(v)) }

func (w *Writer) WriteFloat32(v float32) {
	w.WriteUint32(math.Float32bits(v))
}

// WriteFloat64 also serves as the encoding for the protocol's "freq"
// type, which is a double on the wire.
func (w *Writer) WriteFloat64(v float64) {
	w.WriteUint64(math.Float64bits(v))
}

func (w *Writer) WriteFreq(v float64) { w.WriteFloat64(v) }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteUint8(1)
	} else {
		w.WriteUint8(0)
	}
}

// WriteString writes s as a uint32 length followed by its raw bytes,
// with no NUL terminator.
func (w *Writer) WriteString(s string) {
	w.WriteUint32(uint32(len(s)))
	region := w.buf.Append(len(s))
	copy(region, s)
}

// WriteBlob writes b as a uint32 length followed by its raw bytes.
func (w *Writer) WriteBlob(b []byte) {
	w.WriteUint32(uint32(len(b)))
	region := w.buf.Append(len(b))
	copy(region, b)
}

// WriteRaw appends the exact bytes of b with no length prefix, for
// fixed-size fields like the auth salt and token.
func (w *Writer) WriteRaw(b []byte) {
	region := w.buf.Append(len(b))
	copy(region, b)
}

// Bytes returns the serialized buffer contents so far.
func (w *Writer) Bytes() []byte {
	return w.buf.Data()
}
