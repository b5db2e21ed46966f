package remote

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/cwsl/suscan-remoteclient/internal/framing"
	"github.com/cwsl/suscan-remoteclient/internal/growbuf"
	"github.com/cwsl/suscan-remoteclient/internal/proto"
	"github.com/cwsl/suscan-remoteclient/internal/wire"
)

// testPeer is a minimal test-double server implementing just enough of
// the wire protocol to drive the six end-to-end scenarios of
// spec.md §8.
type testPeer struct {
	ln   net.Listener
	t    *testing.T
	salt [32]byte
}

func newTestPeer(t *testing.T) *testPeer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var salt [32]byte
	for i := range salt {
		salt[i] = byte(i)
	}
	return &testPeer{ln: ln, t: t, salt: salt}
}

func (p *testPeer) addr() string {
	return p.ln.Addr().String()
}

func (p *testPeer) close() {
	p.ln.Close()
}

// accept blocks for one connection and runs handler on it.
func (p *testPeer) accept(handler func(conn net.Conn)) {
	go func() {
		conn, err := p.ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}()
}

func (p *testPeer) sendHello(conn net.Conn, major, minor uint8) {
	buf := growbuf.New()
	w := wire.NewWriter(buf)
	wire.WriteServerHello(w, wire.ServerHello{
		ServerName:     "testpeer",
		ProtocolMajor:  major,
		ProtocolMinor:  minor,
		AuthMode:       wire.AuthModeUserPassword,
		EncryptionType: wire.EncryptionNone,
		Salt:           p.salt,
	})
	framing.WritePDU(conn, buf.Data())
}

func (p *testPeer) readAuth(conn net.Conn) (wire.ClientAuth, error) {
	body, err := framing.ReadPDU(conn, nil, 5*time.Second)
	if err != nil {
		return wire.ClientAuth{}, err
	}
	call, err := proto.Deserialize(body)
	if err != nil {
		return wire.ClientAuth{}, err
	}
	return call.Auth, nil
}

func (p *testPeer) sendAuthRejected(conn net.Conn) {
	buf := growbuf.New()
	proto.Serialize(buf, proto.Call{Tag: proto.TagAuthRejected})
	framing.WritePDU(conn, buf.Data())
}

func (p *testPeer) sendSourceInfo(conn net.Conn, sampRate uint32) {
	buf := growbuf.New()
	proto.Serialize(buf, proto.Call{
		Tag: proto.TagSourceInfo,
		SourceInfo: wire.SourceInfo{
			SourceSampRate: sampRate,
			FreqMin:        0,
			FreqMax:        6e9,
			HopRange:       wire.HopRange{Min: 0, Max: 1},
		},
	})
	framing.WritePDU(conn, buf.Data())
}

func (p *testPeer) sendForceEOS(conn net.Conn) {
	buf := growbuf.New()
	proto.Serialize(buf, proto.Call{Tag: proto.TagForceEOS})
	framing.WritePDU(conn, buf.Data())
}

func newTestSink() *ChannelSink {
	return NewChannelSink(32)
}

func waitForEvent(t *testing.T, sink *ChannelSink, kind EventKind) Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-sink.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %v", kind)
		}
	}
}

// waitForFinalStatus skips the handshake's PROGRESS statuses and returns
// its terminal SUCCESS or FAILURE status event.
func waitForFinalStatus(t *testing.T, sink *ChannelSink) Event {
	t.Helper()
	for {
		ev := waitForEvent(t, sink, EventStatus)
		if ev.Status.Kind != proto.StatusProgress {
			return ev
		}
	}
}

func TestSessionHappyPath(t *testing.T) {
	peer := newTestPeer(t)
	defer peer.close()

	peer.accept(func(conn net.Conn) {
		peer.sendHello(conn, 1, 0)
		auth, err := peer.readAuth(conn)
		if err != nil {
			return
		}
		want := proto.ComputeAuthToken("alice", "s3cret", peer.salt)
		if auth.Token != want {
			peer.sendAuthRejected(conn)
			return
		}
		peer.sendSourceInfo(conn, 1_000_000)
		time.Sleep(100 * time.Millisecond)
	})

	sink := newTestSink()
	host, port := splitAddr(t, peer.addr())
	sess, err := NewSession(Config{
		Host: host, Port: port, User: "alice", Password: "s3cret",
		Sink: sink,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer sess.Close()

	ev := waitForEvent(t, sink, EventSourceInfo)
	if ev.SourceInfo.SourceSampRate != 1_000_000 {
		t.Fatalf("sample rate = %d, want 1000000", ev.SourceInfo.SourceSampRate)
	}

	if got := sess.SourceInfo().SourceSampRate; got != 1_000_000 {
		t.Fatalf("cached SourceInfo().SourceSampRate = %d, want 1000000", got)
	}
}

func TestSessionRejected(t *testing.T) {
	peer := newTestPeer(t)
	defer peer.close()

	peer.accept(func(conn net.Conn) {
		peer.sendHello(conn, 1, 0)
		if _, err := peer.readAuth(conn); err != nil {
			return
		}
		peer.sendAuthRejected(conn)
		time.Sleep(100 * time.Millisecond)
	})

	sink := newTestSink()
	host, port := splitAddr(t, peer.addr())
	sess, err := NewSession(Config{
		Host: host, Port: port, User: "alice", Password: "wrong",
		Sink: sink,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer sess.Close()

	ev := waitForFinalStatus(t, sink)
	if ev.Status.Kind != proto.StatusFailure {
		t.Fatalf("status kind = %v, want StatusFailure", ev.Status.Kind)
	}
}

func TestSessionVersionSkew(t *testing.T) {
	peer := newTestPeer(t)
	defer peer.close()

	peer.accept(func(conn net.Conn) {
		peer.sendHello(conn, 0, 0)
		time.Sleep(100 * time.Millisecond)
	})

	sink := newTestSink()
	host, port := splitAddr(t, peer.addr())
	sess, err := NewSession(Config{
		Host: host, Port: port, User: "alice", Password: "s3cret",
		Sink: sink,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer sess.Close()

	ev := waitForFinalStatus(t, sink)
	if ev.Status.Kind != proto.StatusFailure {
		t.Fatalf("status kind = %v, want StatusFailure", ev.Status.Kind)
	}
}

func TestSessionForceEOS(t *testing.T) {
	peer := newTestPeer(t)
	defer peer.close()

	peer.accept(func(conn net.Conn) {
		peer.sendHello(conn, 1, 0)
		if _, err := peer.readAuth(conn); err != nil {
			return
		}
		peer.sendSourceInfo(conn, 1_000_000)
		time.Sleep(20 * time.Millisecond)
		peer.sendForceEOS(conn)
		time.Sleep(100 * time.Millisecond)
	})

	sink := newTestSink()
	host, port := splitAddr(t, peer.addr())
	sess, err := NewSession(Config{
		Host: host, Port: port, User: "alice", Password: "s3cret",
		Sink: sink,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer sess.Close()

	waitForEvent(t, sink, EventSourceInfo)
	waitForEvent(t, sink, EventEOS)
	waitForEvent(t, sink, EventHalt)
}

func TestSessionGracefulDestroyWhileBlockedInRead(t *testing.T) {
	peer := newTestPeer(t)
	defer peer.close()

	peer.accept(func(conn net.Conn) {
		peer.sendHello(conn, 1, 0)
		if _, err := peer.readAuth(conn); err != nil {
			return
		}
		peer.sendSourceInfo(conn, 1_000_000)
		// Then never send anything else: RX blocks in read_pdu forever.
		time.Sleep(5 * time.Second)
	})

	sink := newTestSink()
	host, port := splitAddr(t, peer.addr())
	sess, err := NewSession(Config{
		Host: host, Port: port, User: "alice", Password: "s3cret",
		Sink: sink,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	waitForEvent(t, sink, EventSourceInfo)

	done := make(chan struct{})
	go func() {
		sess.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Close() did not return within budget while RX was blocked in read")
	}
}

func TestSessionRetuneCoalescesAtSessionLevel(t *testing.T) {
	peer := newTestPeer(t)
	defer peer.close()

	freqCalls := make(chan float64, 8)

	peer.accept(func(conn net.Conn) {
		peer.sendHello(conn, 1, 0)
		if _, err := peer.readAuth(conn); err != nil {
			return
		}
		peer.sendSourceInfo(conn, 1_000_000)

		for {
			body, err := framing.ReadPDU(conn, nil, 2*time.Second)
			if err != nil {
				return
			}
			call, err := proto.Deserialize(body)
			if err != nil {
				return
			}
			if call.Tag == proto.TagSetFrequency {
				freqCalls <- call.Freq
			}
		}
	})

	sink := newTestSink()
	host, port := splitAddr(t, peer.addr())
	sess, err := NewSession(Config{
		Host: host, Port: port, User: "alice", Password: "s3cret",
		Sink: sink,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer sess.Close()

	waitForEvent(t, sink, EventSourceInfo)

	sess.SetFrequency(100e6, 0)
	sess.SetFrequency(200e6, 0)

	var last float64
	count := 0
	timeout := time.After(2 * time.Second)
loop:
	for {
		select {
		case f := <-freqCalls:
			last = f
			count++
		case <-time.After(200 * time.Millisecond):
			break loop
		case <-timeout:
			break loop
		}
	}
	if count != 1 {
		t.Fatalf("peer observed %d SET_FREQUENCY calls, want exactly 1", count)
	}
	if last != 200e6 {
		t.Fatalf("final frequency observed by peer = %v, want 200e6", last)
	}
}

func TestSessionRecoversFromStalledBody(t *testing.T) {
	peer := newTestPeer(t)
	defer peer.close()

	peer.accept(func(conn net.Conn) {
		peer.sendHello(conn, 1, 0)
		if _, err := peer.readAuth(conn); err != nil {
			return
		}
		peer.sendSourceInfo(conn, 1_000_000)

		// Announce a PDU with a large body, then stop writing partway
		// through it: the RX loop must time out waiting on the body
		// instead of hanging forever the way it would if the body read
		// reused the header's infinite steady-state timeout.
		header := make([]byte, 8)
		header[0], header[1], header[2], header[3] = 0x53, 0x55, 0x43, 0x4E
		header[4], header[5], header[6], header[7] = 0, 0, 0x10, 0
		conn.Write(header)
		conn.Write(make([]byte, 16))
		time.Sleep(5 * time.Second)
	})

	sink := newTestSink()
	host, port := splitAddr(t, peer.addr())
	sess, err := NewSession(Config{
		Host: host, Port: port, User: "alice", Password: "s3cret",
		BodyTimeout: 100 * time.Millisecond,
		Sink:        sink,
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer sess.Close()

	waitForEvent(t, sink, EventSourceInfo)
	waitForEvent(t, sink, EventHalt)
}

func TestNewSessionRejectsInvalidConfig(t *testing.T) {
	sink := newTestSink()
	_, err := NewSession(Config{Host: "", Port: 1, User: "a", Password: "b", Sink: sink})
	if err == nil {
		t.Fatal("expected error for missing host")
	}
	_, err = NewSession(Config{Host: "h", Port: 0, User: "a", Password: "b", Sink: sink})
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func splitAddr(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("SplitHostPort(%q): %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parsing port %q: %v", portStr, err)
	}
	return host, port
}
