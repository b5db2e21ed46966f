package proto

import (
	"fmt"

	"github.com/cwsl/suscan-remoteclient/internal/wire"
)

// MessageKind discriminates the analyzer message embedded in a
// TagMessage call. This is a closed set sufficient for a remote
// client: source metadata, human-readable status (init progress, EOS),
// and a spectrum/channel sample block — enough to round-trip the
// notifications this client actually needs to receive without pulling
// inspector DSP into this module.
type MessageKind uint32

const (
	MessageSourceInfo MessageKind = iota
	MessageStatus
	MessagePSD
)

// StatusKind is the severity of a StatusMessage.
type StatusKind uint8

const (
	StatusProgress StatusKind = iota
	StatusSuccess
	StatusFailure
)

// StatusMessage carries a human-readable init-status or steady-state
// failure notification (spec.md §7: "each source-init event carries a
// kind ... plus a human-readable message").
type StatusMessage struct {
	Kind StatusKind
	Text string
}

// PSDMessage is a spectrum/channel sample block: a timestamp, the
// sample rate it was measured at, and a blob of power bins.
type PSDMessage struct {
	Timestamp  float64
	SampleRate float64
	Bins       []float32
}

// Message is the payload embedded in a TagMessage call.
type Message struct {
	Kind       MessageKind
	SourceInfo wire.SourceInfo
	Status     StatusMessage
	PSD        PSDMessage
}

func writeMessage(w *wire.Writer, m *Message) {
	if m == nil {
		w.WriteUint32(uint32(MessageSourceInfo))
		return
	}
	w.WriteUint32(uint32(m.Kind))
	switch m.Kind {
	case MessageSourceInfo:
		wire.WriteSourceInfo(w, m.SourceInfo)
	case MessageStatus:
		w.WriteUint8(uint8(m.Status.Kind))
		w.WriteString(m.Status.Text)
	case MessagePSD:
		w.WriteFloat64(m.PSD.Timestamp)
		w.WriteFloat64(m.PSD.SampleRate)
		w.WriteUint32(uint32(len(m.PSD.Bins)))
		for _, bin := range m.PSD.Bins {
			w.WriteFloat32(bin)
		}
	}
}

func readMessage(r *wire.Reader) (*Message, error) {
	rawKind, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	kind := MessageKind(rawKind)
	m := &Message{Kind: kind}

	switch kind {
	case MessageSourceInfo:
		si, err := wire.ReadSourceInfo(r)
		if err != nil {
			return nil, fmt.Errorf("source info: %w", err)
		}
		if si.SweepStrategy >= 2 || si.SpectrumPartitioning >= 2 {
			return nil, fmt.Errorf("source info enum out of range")
		}
		if si.HopRange.Min >= si.HopRange.Max {
			return nil, fmt.Errorf("source info hop range min >= max")
		}
		m.SourceInfo = si
	case MessageStatus:
		rawStatusKind, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}
		if rawStatusKind > uint8(StatusFailure) {
			return nil, fmt.Errorf("status kind %d out of range", rawStatusKind)
		}
		m.Status.Kind = StatusKind(rawStatusKind)
		if m.Status.Text, err = r.ReadString(); err != nil {
			return nil, err
		}
	case MessagePSD:
		if m.PSD.Timestamp, err = r.ReadFloat64(); err != nil {
			return nil, err
		}
		if m.PSD.SampleRate, err = r.ReadFloat64(); err != nil {
			return nil, err
		}
		n, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		if int(n) > r.Remaining()/4 {
			return nil, wire.ErrLengthPrefix
		}
		m.PSD.Bins = make([]float32, n)
		for i := range m.PSD.Bins {
			if m.PSD.Bins[i], err = r.ReadFloat32(); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unknown message kind %d", rawKind)
	}

	return m, nil
}
