package proto

import (
	"crypto/sha256"
	"errors"
	"reflect"
	"testing"

	"github.com/cwsl/suscan-remoteclient/internal/growbuf"
	"github.com/cwsl/suscan-remoteclient/internal/wire"
)

func roundTrip(t *testing.T, c Call) Call {
	t.Helper()
	buf := growbuf.New()
	Serialize(buf, c)
	got, err := Deserialize(buf.Data())
	if err != nil {
		t.Fatalf("Deserialize error: %v", err)
	}
	return got
}

func TestCallRoundTripSimpleVariants(t *testing.T) {
	cases := []Call{
		{Tag: TagNone},
		{Tag: TagForceEOS},
		{Tag: TagReqHalt},
		{Tag: TagAuthRejected},
		{Tag: TagSetFrequency, Freq: 14074000, LNBFreq: 9750000000},
		{Tag: TagSetGain, GainName: "LNA", GainValue: 20},
		{Tag: TagSetAntenna, AntennaName: "RX"},
		{Tag: TagSetBandwidth, FloatValue: 3000},
		{Tag: TagSetPPM, FloatValue: 0.5},
		{Tag: TagSetDCRemove, BoolValue: true},
		{Tag: TagSetIQReverse, BoolValue: false},
		{Tag: TagSetAGC, BoolValue: true},
		{Tag: TagSetSweepStrategy, EnumValue: 1},
		{Tag: TagSetSpectrumPartitioning, EnumValue: 0},
		{Tag: TagSetHopRange, HopRange: wire.HopRange{Min: 1e6, Max: 2e6}},
		{Tag: TagSetBufferingSize, BufferingSize: 4096},
	}

	for _, want := range cases {
		got := roundTrip(t, want)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("round trip tag %d: got %+v, want %+v", want.Tag, got, want)
		}
	}
}

func TestCallRoundTripAuthInfo(t *testing.T) {
	var token [32]byte
	for i := range token {
		token[i] = byte(i)
	}
	want := Call{Tag: TagAuthInfo, Auth: wire.ClientAuth{
		ClientName:    "probe-host",
		ProtocolMajor: 1,
		ProtocolMinor: 0,
		User:          "alice",
		Token:         token,
	}}
	got := roundTrip(t, want)
	if got.Auth != want.Auth {
		t.Fatalf("round trip auth: got %+v, want %+v", got.Auth, want.Auth)
	}
}

func TestCallRoundTripSourceInfo(t *testing.T) {
	want := Call{Tag: TagSourceInfo, SourceInfo: wire.SourceInfo{
		SourceSampRate: 1_000_000,
		FreqMin:        0,
		FreqMax:        6e9,
		HasGain:        true,
		AntennaList:    []string{"RX"},
		Gains:          []wire.GainDescriptor{{Name: "LNA", Min: 0, Max: 40, Step: 1, Value: 20}},
		HopRange:       wire.HopRange{Min: 1, Max: 2},
	}}
	got := roundTrip(t, want)
	if got.SourceInfo.SourceSampRate != want.SourceInfo.SourceSampRate {
		t.Fatalf("round trip source info: got %+v, want %+v", got.SourceInfo, want.SourceInfo)
	}
}

func TestDeserializeRejectsUnknownTag(t *testing.T) {
	buf := growbuf.New()
	w := wire.NewWriter(buf)
	w.WriteUint32(9999)

	if _, err := Deserialize(buf.Data()); !errors.Is(err, ErrInvalidPDU) {
		t.Fatalf("Deserialize error = %v, want ErrInvalidPDU", err)
	}
}

func TestDeserializeRejectsSweepStrategyOutOfRange(t *testing.T) {
	buf := growbuf.New()
	w := wire.NewWriter(buf)
	w.WriteUint32(uint32(TagSetSweepStrategy))
	w.WriteUint8(2)

	if _, err := Deserialize(buf.Data()); !errors.Is(err, ErrInvalidPDU) {
		t.Fatalf("Deserialize error = %v, want ErrInvalidPDU", err)
	}
}

func TestDeserializeRejectsSpectrumPartitioningOutOfRange(t *testing.T) {
	buf := growbuf.New()
	w := wire.NewWriter(buf)
	w.WriteUint32(uint32(TagSetSpectrumPartitioning))
	w.WriteUint8(5)

	if _, err := Deserialize(buf.Data()); !errors.Is(err, ErrInvalidPDU) {
		t.Fatalf("Deserialize error = %v, want ErrInvalidPDU", err)
	}
}

func TestDeserializeRejectsHopRangeMinGEMax(t *testing.T) {
	buf := growbuf.New()
	w := wire.NewWriter(buf)
	w.WriteUint32(uint32(TagSetHopRange))
	w.WriteFreq(5e6)
	w.WriteFreq(5e6)

	if _, err := Deserialize(buf.Data()); !errors.Is(err, ErrInvalidPDU) {
		t.Fatalf("Deserialize error = %v, want ErrInvalidPDU", err)
	}
}

func TestTakeSourceInfoClearsTag(t *testing.T) {
	c := Call{Tag: TagSourceInfo, SourceInfo: wire.SourceInfo{SourceSampRate: 1_000_000}}
	si, err := c.TakeSourceInfo()
	if err != nil {
		t.Fatalf("TakeSourceInfo error: %v", err)
	}
	if si.SourceSampRate != 1_000_000 {
		t.Fatalf("TakeSourceInfo SourceSampRate = %d, want 1000000", si.SourceSampRate)
	}
	if c.Tag != TagNone {
		t.Fatalf("Tag after TakeSourceInfo = %d, want TagNone", c.Tag)
	}
}

func TestTakeSourceInfoRejectsWrongTag(t *testing.T) {
	c := Call{Tag: TagNone}
	if _, err := c.TakeSourceInfo(); err == nil {
		t.Fatal("TakeSourceInfo succeeded on TagNone, want error")
	}
}

func TestDeliverMessageClearsTag(t *testing.T) {
	c := Call{Tag: TagMessage, Message: &Message{Kind: MessageStatus, Status: StatusMessage{Kind: StatusSuccess, Text: "ok"}}}
	msg, err := c.DeliverMessage()
	if err != nil {
		t.Fatalf("DeliverMessage error: %v", err)
	}
	if msg.Status.Text != "ok" {
		t.Fatalf("DeliverMessage Status.Text = %q, want %q", msg.Status.Text, "ok")
	}
	if c.Tag != TagNone {
		t.Fatalf("Tag after DeliverMessage = %d, want TagNone", c.Tag)
	}
}

func TestMessageRoundTripStatus(t *testing.T) {
	want := Call{Tag: TagMessage, Message: &Message{
		Kind:   MessageStatus,
		Status: StatusMessage{Kind: StatusFailure, Text: "cannot resolve host"},
	}}
	got := roundTrip(t, want)
	if got.Message.Status != want.Message.Status {
		t.Fatalf("round trip status message: got %+v, want %+v", got.Message.Status, want.Message.Status)
	}
}

func TestMessageRoundTripPSD(t *testing.T) {
	want := Call{Tag: TagMessage, Message: &Message{
		Kind: MessagePSD,
		PSD:  PSDMessage{Timestamp: 123.456, SampleRate: 2_048_000, Bins: []float32{-90.5, -85.2, -60.0}},
	}}
	got := roundTrip(t, want)
	if got.Message.PSD.Timestamp != want.Message.PSD.Timestamp ||
		got.Message.PSD.SampleRate != want.Message.PSD.SampleRate ||
		len(got.Message.PSD.Bins) != len(want.Message.PSD.Bins) {
		t.Fatalf("round trip PSD message: got %+v, want %+v", got.Message.PSD, want.Message.PSD)
	}
	for i := range want.Message.PSD.Bins {
		if got.Message.PSD.Bins[i] != want.Message.PSD.Bins[i] {
			t.Fatalf("PSD bin %d: got %v, want %v", i, got.Message.PSD.Bins[i], want.Message.PSD.Bins[i])
		}
	}
}

// TestAuthTokenVector pins the exact byte sequence spec.md §8 requires:
// for user="alice", password="s3cret", salt=[0x00..0x1F], the token
// equals SHA-256("alice\0s3cret\0" || salt).
func TestAuthTokenVector(t *testing.T) {
	var salt [32]byte
	for i := range salt {
		salt[i] = byte(i)
	}

	got := ComputeAuthToken("alice", "s3cret", salt)

	h := sha256.New()
	h.Write([]byte("alice\x00s3cret\x00"))
	h.Write(salt[:])
	var want [32]byte
	copy(want[:], h.Sum(nil))

	if got != want {
		t.Fatalf("ComputeAuthToken = %x, want %x", got, want)
	}
}

func TestNewServerHelloGeneratesDistinctSalts(t *testing.T) {
	a, err := NewServerHello("suscan-server", 1, 0)
	if err != nil {
		t.Fatalf("NewServerHello error: %v", err)
	}
	b, err := NewServerHello("suscan-server", 1, 0)
	if err != nil {
		t.Fatalf("NewServerHello error: %v", err)
	}
	if a.Salt == b.Salt {
		t.Fatal("two NewServerHello calls produced identical salts")
	}
}
