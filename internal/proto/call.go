// Package proto implements the tagged call envelope exchanged between
// client and peer: every variant named in spec.md §3's call table, its
// serialization, and the transfer-of-ownership helpers a Session uses
// to hand payloads to its caller.
package proto

import (
	"errors"
	"fmt"

	"github.com/cwsl/suscan-remoteclient/internal/growbuf"
	"github.com/cwsl/suscan-remoteclient/internal/wire"
)

// Tag identifies a Call's variant.
type Tag uint32

const (
	TagNone Tag = iota
	TagAuthInfo
	TagSourceInfo
	TagSetFrequency
	TagSetGain
	TagSetAntenna
	TagSetBandwidth
	TagSetPPM
	TagSetDCRemove
	TagSetIQReverse
	TagSetAGC
	TagForceEOS
	TagSetSweepStrategy
	TagSetSpectrumPartitioning
	TagSetHopRange
	TagSetBufferingSize
	TagMessage
	TagReqHalt
	TagAuthRejected
)

// ErrInvalidPDU covers every envelope-level decode failure: an unknown
// tag, a truncated field, or a per-variant invariant violation.
var ErrInvalidPDU = errors.New("proto: invalid PDU")

// Call is a tagged union covering every protocol call. Only the fields
// relevant to Tag are meaningful; Go has no destructors, so there is no
// finalize step freeing heap state — the zero value of unused fields is
// simply garbage-collected. The Take*/Deliver* helpers below preserve
// the original's consume-once *contract* (clearing fields after
// transfer) even though nothing requires it for memory safety.
type Call struct {
	Tag Tag

	// TagAuthInfo
	Auth wire.ClientAuth

	// TagSourceInfo
	SourceInfo wire.SourceInfo

	// TagSetFrequency
	Freq    float64
	LNBFreq float64

	// TagSetGain
	GainName  string
	GainValue float64

	// TagSetAntenna
	AntennaName string

	// TagSetBandwidth, TagSetPPM
	FloatValue float64

	// TagSetDCRemove, TagSetIQReverse, TagSetAGC
	BoolValue bool

	// TagSetSweepStrategy, TagSetSpectrumPartitioning
	EnumValue uint8

	// TagSetHopRange
	HopRange wire.HopRange

	// TagSetBufferingSize
	BufferingSize uint32

	// TagMessage
	Message *Message
}

// Init zeroes the envelope and sets its tag, mirroring the original's
// init(tag); Go's zero-valued struct literal already achieves this, so
// Init exists for call-site symmetry with the C API this mirrors.
func (c *Call) Init(tag Tag) {
	*c = Call{Tag: tag}
}

// Serialize encodes c into buf per its tag, in the field order of
// spec.md §3.
func Serialize(buf *growbuf.Buffer, c Call) {
	w := wire.NewWriter(buf)
	w.WriteUint32(uint32(c.Tag))

	switch c.Tag {
	case TagNone, TagForceEOS, TagReqHalt, TagAuthRejected, TagSourceInfo:
		if c.Tag == TagSourceInfo {
			wire.WriteSourceInfo(w, c.SourceInfo)
		}
	case TagAuthInfo:
		wire.WriteClientAuth(w, c.Auth)
	case TagSetFrequency:
		w.WriteFreq(c.Freq)
		w.WriteFreq(c.LNBFreq)
	case TagSetGain:
		w.WriteString(c.GainName)
		w.WriteFloat64(c.GainValue)
	case TagSetAntenna:
		w.WriteString(c.AntennaName)
	case TagSetBandwidth, TagSetPPM:
		w.WriteFloat64(c.FloatValue)
	case TagSetDCRemove, TagSetIQReverse, TagSetAGC:
		w.WriteBool(c.BoolValue)
	case TagSetSweepStrategy, TagSetSpectrumPartitioning:
		w.WriteUint8(c.EnumValue)
	case TagSetHopRange:
		w.WriteFreq(c.HopRange.Min)
		w.WriteFreq(c.HopRange.Max)
	case TagSetBufferingSize:
		w.WriteUint32(c.BufferingSize)
	case TagMessage:
		writeMessage(w, c.Message)
	}
}

// Deserialize decodes a Call from body, validating every per-variant
// invariant spec.md §8 requires (salt/token length, enum bounds,
// hop-range ordering) and rejecting unknown tags.
func Deserialize(body []byte) (Call, error) {
	r := wire.NewReader(body)
	rawTag, err := r.ReadUint32()
	if err != nil {
		return Call{}, fmt.Errorf("%w: %v", ErrInvalidPDU, err)
	}
	tag := Tag(rawTag)

	var c Call
	c.Tag = tag

	switch tag {
	case TagNone, TagForceEOS, TagReqHalt, TagAuthRejected:
		// no payload
	case TagSourceInfo:
		si, err := wire.ReadSourceInfo(r)
		if err != nil {
			return Call{}, fmt.Errorf("%w: source info: %v", ErrInvalidPDU, err)
		}
		if si.SweepStrategy >= 2 || si.SpectrumPartitioning >= 2 {
			return Call{}, fmt.Errorf("%w: source info enum out of range", ErrInvalidPDU)
		}
		if si.HopRange.Min >= si.HopRange.Max {
			return Call{}, fmt.Errorf("%w: source info hop range min >= max", ErrInvalidPDU)
		}
		c.SourceInfo = si
	case TagAuthInfo:
		auth, err := wire.ReadClientAuth(r)
		if err != nil {
			return Call{}, fmt.Errorf("%w: client auth: %v", ErrInvalidPDU, err)
		}
		c.Auth = auth
	case TagSetFrequency:
		if c.Freq, err = r.ReadFreq(); err != nil {
			return Call{}, fmt.Errorf("%w: %v", ErrInvalidPDU, err)
		}
		if c.LNBFreq, err = r.ReadFreq(); err != nil {
			return Call{}, fmt.Errorf("%w: %v", ErrInvalidPDU, err)
		}
	case TagSetGain:
		if c.GainName, err = r.ReadString(); err != nil {
			return Call{}, fmt.Errorf("%w: %v", ErrInvalidPDU, err)
		}
		if c.GainValue, err = r.ReadFloat64(); err != nil {
			return Call{}, fmt.Errorf("%w: %v", ErrInvalidPDU, err)
		}
	case TagSetAntenna:
		if c.AntennaName, err = r.ReadString(); err != nil {
			return Call{}, fmt.Errorf("%w: %v", ErrInvalidPDU, err)
		}
	case TagSetBandwidth, TagSetPPM:
		if c.FloatValue, err = r.ReadFloat64(); err != nil {
			return Call{}, fmt.Errorf("%w: %v", ErrInvalidPDU, err)
		}
	case TagSetDCRemove, TagSetIQReverse, TagSetAGC:
		if c.BoolValue, err = r.ReadBool(); err != nil {
			return Call{}, fmt.Errorf("%w: %v", ErrInvalidPDU, err)
		}
	case TagSetSweepStrategy:
		if c.EnumValue, err = r.ReadUint8(); err != nil {
			return Call{}, fmt.Errorf("%w: %v", ErrInvalidPDU, err)
		}
		if c.EnumValue >= 2 {
			return Call{}, fmt.Errorf("%w: sweep strategy %d >= 2", ErrInvalidPDU, c.EnumValue)
		}
	case TagSetSpectrumPartitioning:
		if c.EnumValue, err = r.ReadUint8(); err != nil {
			return Call{}, fmt.Errorf("%w: %v", ErrInvalidPDU, err)
		}
		if c.EnumValue >= 2 {
			return Call{}, fmt.Errorf("%w: spectrum partitioning %d >= 2", ErrInvalidPDU, c.EnumValue)
		}
	case TagSetHopRange:
		if c.HopRange.Min, err = r.ReadFreq(); err != nil {
			return Call{}, fmt.Errorf("%w: %v", ErrInvalidPDU, err)
		}
		if c.HopRange.Max, err = r.ReadFreq(); err != nil {
			return Call{}, fmt.Errorf("%w: %v", ErrInvalidPDU, err)
		}
		if c.HopRange.Min >= c.HopRange.Max {
			return Call{}, fmt.Errorf("%w: hop range min >= max", ErrInvalidPDU)
		}
	case TagSetBufferingSize:
		if c.BufferingSize, err = r.ReadUint32(); err != nil {
			return Call{}, fmt.Errorf("%w: %v", ErrInvalidPDU, err)
		}
	case TagMessage:
		msg, err := readMessage(r)
		if err != nil {
			return Call{}, fmt.Errorf("%w: message: %v", ErrInvalidPDU, err)
		}
		c.Message = msg
	default:
		return Call{}, fmt.Errorf("%w: unknown tag %d", ErrInvalidPDU, rawTag)
	}

	return c, nil
}
