package wire

import "fmt"

const saltSize = 32

// AuthModeUserPassword and EncryptionNone are the only defined values
// for ServerHello's enum fields; the protocol reserves the rest.
const (
	AuthModeUserPassword uint8 = 1
	EncryptionNone       uint8 = 0
)

// ServerHello is the first PDU body sent by a peer after the control
// connection opens.
type ServerHello struct {
	ServerName     string
	ProtocolMajor  uint8
	ProtocolMinor  uint8
	AuthMode       uint8
	EncryptionType uint8
	Salt           [saltSize]byte
}

// WriteServerHello serializes h's fields in declaration order.
func WriteServerHello(w *Writer, h ServerHello) {
	w.WriteString(h.ServerName)
	w.WriteUint8(h.ProtocolMajor)
	w.WriteUint8(h.ProtocolMinor)
	w.WriteUint8(h.AuthMode)
	w.WriteUint8(h.EncryptionType)
	w.WriteRaw(h.Salt[:])
}

// ReadServerHello deserializes a ServerHello, failing if the salt is
// not exactly 32 bytes.
func ReadServerHello(r *Reader) (ServerHello, error) {
	var h ServerHello
	var err error
	if h.ServerName, err = r.ReadString(); err != nil {
		return h, err
	}
	if h.ProtocolMajor, err = r.ReadUint8(); err != nil {
		return h, err
	}
	if h.ProtocolMinor, err = r.ReadUint8(); err != nil {
		return h, err
	}
	if h.AuthMode, err = r.ReadUint8(); err != nil {
		return h, err
	}
	if h.EncryptionType, err = r.ReadUint8(); err != nil {
		return h, err
	}
	salt, err := r.take(saltSize)
	if err != nil {
		return h, fmt.Errorf("server hello salt: %w", err)
	}
	copy(h.Salt[:], salt)
	return h, nil
}

// ClientAuth is the reply sent by the client after receiving a
// ServerHello.
type ClientAuth struct {
	ClientName    string
	ProtocolMajor uint8
	ProtocolMinor uint8
	User          string
	Token         [saltSize]byte
}

func WriteClientAuth(w *Writer, a ClientAuth) {
	w.WriteString(a.ClientName)
	w.WriteUint8(a.ProtocolMajor)
	w.WriteUint8(a.ProtocolMinor)
	w.WriteString(a.User)
	w.WriteRaw(a.Token[:])
}

func ReadClientAuth(r *Reader) (ClientAuth, error) {
	var a ClientAuth
	var err error
	if a.ClientName, err = r.ReadString(); err != nil {
		return a, err
	}
	if a.ProtocolMajor, err = r.ReadUint8(); err != nil {
		return a, err
	}
	if a.ProtocolMinor, err = r.ReadUint8(); err != nil {
		return a, err
	}
	if a.User, err = r.ReadString(); err != nil {
		return a, err
	}
	token, err := r.take(saltSize)
	if err != nil {
		return a, fmt.Errorf("client auth token: %w", err)
	}
	copy(a.Token[:], token)
	return a, nil
}

// GainDescriptor describes one of a source's named gain controls.
type GainDescriptor struct {
	Name  string
	Min   float64
	Max   float64
	Step  float64
	Value float64
}

func WriteGainDescriptor(w *Writer, g GainDescriptor) {
	w.WriteString(g.Name)
	w.WriteFloat64(g.Min)
	w.WriteFloat64(g.Max)
	w.WriteFloat64(g.Step)
	w.WriteFloat64(g.Value)
}

func ReadGainDescriptor(r *Reader) (GainDescriptor, error) {
	var g GainDescriptor
	var err error
	if g.Name, err = r.ReadString(); err != nil {
		return g, err
	}
	if g.Min, err = r.ReadFloat64(); err != nil {
		return g, err
	}
	if g.Max, err = r.ReadFloat64(); err != nil {
		return g, err
	}
	if g.Step, err = r.ReadFloat64(); err != nil {
		return g, err
	}
	if g.Value, err = r.ReadFloat64(); err != nil {
		return g, err
	}
	return g, nil
}

// HopRange is a min/max frequency pair; SET_HOP_RANGE requires
// Min < Max.
type HopRange struct {
	Min float64
	Max float64
}

// SourceInfo mirrors the subset of suscan_analyzer_source_info that a
// remote client needs to present the same capabilities a local
// analyzer would.
type SourceInfo struct {
	SourceSampRate       uint32
	MeasuredSampRate     float64
	FreqMin              float64
	FreqMax              float64
	Freq                 float64
	LNBFreq              float64
	Bandwidth            float64
	DCRemove             bool
	IQReverse            bool
	AGC                  bool
	RealTime             bool
	Seekable             bool
	HasGain              bool
	HasAntenna           bool
	PermAGC              bool
	Antenna              string
	AntennaList          []string
	Gains                []GainDescriptor
	SweepStrategy        uint8
	SpectrumPartitioning uint8
	HopRange             HopRange
	BufferingSize        uint32
	PPM                  float64
}

func WriteSourceInfo(w *Writer, s SourceInfo) {
	w.WriteUint32(s.SourceSampRate)
	w.WriteFloat64(s.MeasuredSampRate)
	w.WriteFreq(s.FreqMin)
	w.WriteFreq(s.FreqMax)
	w.WriteFreq(s.Freq)
	w.WriteFreq(s.LNBFreq)
	w.WriteFloat64(s.Bandwidth)
	w.WriteBool(s.DCRemove)
	w.WriteBool(s.IQReverse)
	w.WriteBool(s.AGC)
	w.WriteBool(s.RealTime)
	w.WriteBool(s.Seekable)
	w.WriteBool(s.HasGain)
	w.WriteBool(s.HasAntenna)
	w.WriteBool(s.PermAGC)
	w.WriteString(s.Antenna)

	w.WriteUint32(uint32(len(s.AntennaList)))
	for _, a := range s.AntennaList {
		w.WriteString(a)
	}

	w.WriteUint32(uint32(len(s.Gains)))
	for _, g := range s.Gains {
		WriteGainDescriptor(w, g)
	}

	w.WriteUint8(s.SweepStrategy)
	w.WriteUint8(s.SpectrumPartitioning)
	w.WriteFreq(s.HopRange.Min)
	w.WriteFreq(s.HopRange.Max)
	w.WriteUint32(s.BufferingSize)
	w.WriteFloat64(s.PPM)
}

func ReadSourceInfo(r *Reader) (SourceInfo, error) {
	var s SourceInfo
	var err error

	if s.SourceSampRate, err = r.ReadUint32(); err != nil {
		return s, err
	}
	if s.MeasuredSampRate, err = r.ReadFloat64(); err != nil {
		return s, err
	}
	if s.FreqMin, err = r.ReadFreq(); err != nil {
		return s, err
	}
	if s.FreqMax, err = r.ReadFreq(); err != nil {
		return s, err
	}
	if s.Freq, err = r.ReadFreq(); err != nil {
		return s, err
	}
	if s.LNBFreq, err = r.ReadFreq(); err != nil {
		return s, err
	}
	if s.Bandwidth, err = r.ReadFloat64(); err != nil {
		return s, err
	}
	if s.DCRemove, err = r.ReadBool(); err != nil {
		return s, err
	}
	if s.IQReverse, err = r.ReadBool(); err != nil {
		return s, err
	}
	if s.AGC, err = r.ReadBool(); err != nil {
		return s, err
	}
	if s.RealTime, err = r.ReadBool(); err != nil {
		return s, err
	}
	if s.Seekable, err = r.ReadBool(); err != nil {
		return s, err
	}
	if s.HasGain, err = r.ReadBool(); err != nil {
		return s, err
	}
	if s.HasAntenna, err = r.ReadBool(); err != nil {
		return s, err
	}
	if s.PermAGC, err = r.ReadBool(); err != nil {
		return s, err
	}
	if s.Antenna, err = r.ReadString(); err != nil {
		return s, err
	}

	antennaCount, err := r.ReadUint32()
	if err != nil {
		return s, err
	}
	if int(antennaCount) > r.Remaining() {
		return s, ErrLengthPrefix
	}
	s.AntennaList = make([]string, antennaCount)
	for i := range s.AntennaList {
		if s.AntennaList[i], err = r.ReadString(); err != nil {
			return s, err
		}
	}

	gainCount, err := r.ReadUint32()
	if err != nil {
		return s, err
	}
	if int(gainCount) > r.Remaining() {
		return s, ErrLengthPrefix
	}
	s.Gains = make([]GainDescriptor, gainCount)
	for i := range s.Gains {
		if s.Gains[i], err = ReadGainDescriptor(r); err != nil {
			return s, err
		}
	}

	if s.SweepStrategy, err = r.ReadUint8(); err != nil {
		return s, err
	}
	if s.SpectrumPartitioning, err = r.ReadUint8(); err != nil {
		return s, err
	}
	if s.HopRange.Min, err = r.ReadFreq(); err != nil {
		return s, err
	}
	if s.HopRange.Max, err = r.ReadFreq(); err != nil {
		return s, err
	}
	if s.BufferingSize, err = r.ReadUint32(); err != nil {
		return s, err
	}
	if s.PPM, err = r.ReadFloat64(); err != nil {
		return s, err
	}

	return s, nil
}
