package wire

import (
	"encoding/binary"
	"errors"
	"math"
)

// ErrShortRead is returned when a primitive read would consume bytes
// past the end of the reader's underlying buffer.
var ErrShortRead = errors.New("wire: short read")

// ErrLengthPrefix is returned when a string/blob length prefix claims
// more bytes than remain in the reader.
var ErrLengthPrefix = errors.New("wire: length prefix exceeds remaining buffer")

// Reader deserializes primitives from a byte slice, consuming them
// sequentially from an internal read cursor. It never reads past the
// slice it was constructed with.
type Reader struct {
	data []byte
	pos  int
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, ErrShortRead
	}
	region := r.data[r.pos : r.pos+n]
	r.pos += n
	return region, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	region, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return region[0], nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	region, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(region), nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	region, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(region), nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	region, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(region), nil
}

func (r *Reader) ReadInt8() (int8, error) {
	v, err := r.ReadUint8()
	return int8(v), err
}

func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

func (r *Reader) ReadFreq() (float64, error) { return r.ReadFloat64() }

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadUint8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// ReadString reads a uint32 length prefix followed by that many bytes.
// The length is validated against the remaining buffer before any copy
// is made.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return "", err
	}
	if int(n) > r.Remaining() {
		return "", ErrLengthPrefix
	}
	region, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(region), nil
}

// ReadBlob reads a uint32 length prefix followed by that many raw
// bytes, returned as a fresh copy (not aliasing the reader's buffer).
func (r *Reader) ReadBlob() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if int(n) > r.Remaining() {
		return nil, ErrLengthPrefix
	}
	region, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(region))
	copy(out, region)
	return out, nil
}
