// Package remote implements the session driver (spec.md §4.E): connect
// and authenticate against a peer, run the RX/TX loop pair, and expose
// the same fire-and-forget / coalescing control surface a local
// analyzer would, on top of internal/framing, internal/proto and
// internal/slowpath.
package remote

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cwsl/suscan-remoteclient/internal/growbuf"
	"github.com/cwsl/suscan-remoteclient/internal/framing"
	"github.com/cwsl/suscan-remoteclient/internal/proto"
	"github.com/cwsl/suscan-remoteclient/internal/slowpath"
	"github.com/cwsl/suscan-remoteclient/internal/wire"
)

// ProtocolMajor/ProtocolMinor are the protocol version this client
// speaks; see the version-skew check in connectAndAuth.
const (
	ProtocolMajor uint8 = 1
	ProtocolMinor uint8 = 0
)

const clientNameMaxLen = 63

// ErrAuthRejected is reported (as an Event, not a Go error return) when
// the peer rejects the client's credentials.
var ErrAuthRejected = errors.New("remote: authentication rejected")

// ErrIncompatibleVersion is reported when the peer's protocol major is
// less than this client's.
var ErrIncompatibleVersion = errors.New("remote: incompatible server protocol")

// errInvalidServer covers a hello or auth-reply PDU that doesn't match
// what the handshake expects.
var errInvalidServer = errors.New("remote: connection opened, but host is not a valid analyzer peer")

// Config is the peer-connection configuration a Session is built from.
// internal/config.PeerConfig is the YAML-backed source of these values;
// Session itself has no file-parsing knowledge (spec.md §1 puts config
// parsing out of core scope).
type Config struct {
	Host     string
	Port     int
	User     string
	Password string

	ConnectTimeout time.Duration
	AuthTimeout    time.Duration
	BodyTimeout    time.Duration
	PDUChunkBytes  int

	Metrics Metrics
	Sink    EventSink
}

func (c *Config) validate() error {
	if c.Host == "" {
		return errors.New("remote: host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("remote: port %d out of range [1, 65535]", c.Port)
	}
	if c.User == "" {
		return errors.New("remote: user is required")
	}
	if c.Password == "" {
		return errors.New("remote: password is required")
	}
	if c.Sink == nil {
		return errors.New("remote: sink is required")
	}
	return nil
}

func (c *Config) connectTimeout() time.Duration {
	if c.ConnectTimeout > 0 {
		return c.ConnectTimeout
	}
	return 5 * time.Second
}

func (c *Config) authTimeout() time.Duration {
	if c.AuthTimeout > 0 {
		return c.AuthTimeout
	}
	return 5 * time.Second
}

func (c *Config) bodyTimeout() time.Duration {
	if c.BodyTimeout > 0 {
		return c.BodyTimeout
	}
	return 10 * time.Second
}

func (c *Config) chunkBytes() int {
	if c.PDUChunkBytes > 0 {
		return c.PDUChunkBytes
	}
	return framing.ChunkSize
}

// Session drives one connection to a remote analyzer peer: connect,
// authenticate, then run the RX and TX loops until HALT or an
// unrecoverable transport error. Two goroutines replace the original's
// two POSIX threads; callMu replaces the single mutex-guarded call
// slot; out replaces suscan_mq.
type Session struct {
	id     string
	cfg    Config
	sink   EventSink
	metric Metrics

	cancel chan struct{}
	out    *outQueue

	callMu sync.Mutex
	call   proto.Call

	srcMu sync.RWMutex
	src   wire.SourceInfo

	slow *slowpath.Dispatcher

	rxLaunched chan struct{}
	rxDone     chan struct{}
	txDone     chan struct{}

	conn net.Conn
	// dataConn is reserved for a future second (data) socket; spec.md
	// §9 leaves this unspecified, so it is never dialed or used.
	dataConn net.Conn
}

// NewSession validates cfg, opens the cancellation channel, builds the
// slow-path dispatcher wired to this session's wire sends, and launches
// the TX loop (which itself performs connect-and-auth before launching
// RX), mirroring the constructor's "parse config, open cancel pipe,
// launch TX thread" lifecycle (spec.md §3, "Lifecycle").
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Session{
		id:     uuid.NewString(),
		cfg:    cfg,
		sink:   cfg.Sink,
		metric: cfg.Metrics,
		cancel:     make(chan struct{}),
		out:        newOutQueue(),
		rxLaunched: make(chan struct{}),
		rxDone:     make(chan struct{}),
		txDone:     make(chan struct{}),
	}

	s.slow = slowpath.NewDispatcher()
	s.slow.ApplyGain = func(name string, value float64) {
		s.sendCall(func(c *proto.Call) {
			c.Init(proto.TagSetGain)
			c.GainName = name
			c.GainValue = value
		})
	}
	s.slow.ApplyAntenna = func(name string) {
		s.sendCall(func(c *proto.Call) {
			c.Init(proto.TagSetAntenna)
			c.AntennaName = name
		})
	}
	s.slow.ApplyBandwidth = func(bw float64) {
		s.sendCall(func(c *proto.Call) {
			c.Init(proto.TagSetBandwidth)
			c.FloatValue = bw
		})
	}
	s.slow.ApplyDCRemove = func(on bool) {
		s.sendCall(func(c *proto.Call) {
			c.Init(proto.TagSetDCRemove)
			c.BoolValue = on
		})
	}
	s.slow.ApplyAGC = func(on bool) {
		s.sendCall(func(c *proto.Call) {
			c.Init(proto.TagSetAGC)
			c.BoolValue = on
		})
	}
	s.slow.ApplyFrequency = func(freq, lnbFreq float64) {
		s.sendCall(func(c *proto.Call) {
			c.Init(proto.TagSetFrequency)
			c.Freq = freq
			c.LNBFreq = lnbFreq
		})
	}
	// Inspector overrides have no wire representation in spec.md's
	// call table (inspectors are an explicit Non-goal); leave the
	// terminal callbacks nil by default. A caller that embeds an
	// inspector layer of its own can wire real behavior in via
	// SetInspectorCallbacks.
	if s.metric != nil {
		s.slow.ObserveLatency = s.metric.ObserveSlowPathLatencySeconds
	}

	go s.txLoop()

	return s, nil
}

// SetInspectorCallbacks wires the terminal, hardware-facing callbacks
// for inspector frequency/bandwidth overrides. Both the gating
// (channel-inspection mode) and coalescing are already implemented by
// the slow-path dispatcher regardless of whether these are set; a
// Session with no inspector callbacks simply coalesces overrides that
// go nowhere.
func (s *Session) SetInspectorCallbacks(applyFreq func(handle uint64, freq float64), applyBW func(handle uint64, bw float64)) {
	s.slow.ApplyInspectorFreq = applyFreq
	s.slow.ApplyInspectorBW = applyBW
}

func (s *Session) setConnState(state ConnState) {
	if s.metric != nil {
		s.metric.SetConnState(state)
	}
}

func (s *Session) reportStatus(kind proto.StatusKind, text string) {
	logrus.Printf("remote[%s]: %s", s.id, text)
	s.sink.Deliver(Event{
		Kind:   EventStatus,
		Status: proto.StatusMessage{Kind: kind, Text: text},
	})
}

// connectAndAuth runs the resolve/connect/hello/auth sequence of
// spec.md §4.E, reporting PROGRESS status at each stage and a terminal
// SUCCESS or FAILURE. It returns the live connection on success.
func (s *Session) connectAndAuth() (net.Conn, error) {
	s.setConnState(ConnConnecting)
	s.reportStatus(proto.StatusProgress, "resolving remote host")

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if _, err := net.LookupHost(s.cfg.Host); err != nil {
		err = fmt.Errorf("cannot resolve host: %w", err)
		s.reportStatus(proto.StatusFailure, err.Error())
		return nil, err
	}

	s.reportStatus(proto.StatusProgress, "connecting to control server")
	conn, err := framing.DialCancellable("tcp", addr, s.cancel, s.cfg.connectTimeout())
	if err != nil {
		if errors.Is(err, framing.ErrCancelled) {
			return nil, err
		}
		err = fmt.Errorf("cannot connect to %s: %w", addr, err)
		s.reportStatus(proto.StatusFailure, err.Error())
		return nil, err
	}

	s.setConnState(ConnAuthenticating)
	s.reportStatus(proto.StatusProgress, "authenticating against peer")

	helloBody, err := framing.ReadPDUBody(conn, s.cancel, s.cfg.authTimeout(), s.cfg.bodyTimeout(), s.cfg.chunkBytes())
	if err != nil {
		conn.Close()
		if errors.Is(err, framing.ErrCancelled) {
			return nil, err
		}
		err = fmt.Errorf("connection reset during authentication: %w", err)
		s.reportStatus(proto.StatusFailure, err.Error())
		return nil, err
	}
	hello, err := wire.ReadServerHello(wire.NewReader(helloBody))
	if err != nil {
		conn.Close()
		s.reportStatus(proto.StatusFailure, errInvalidServer.Error())
		return nil, errInvalidServer
	}

	if hello.ProtocolMajor < ProtocolMajor {
		conn.Close()
		s.reportStatus(proto.StatusFailure, ErrIncompatibleVersion.Error())
		return nil, ErrIncompatibleVersion
	}

	token := proto.ComputeAuthToken(s.cfg.User, s.cfg.Password, hello.Salt)
	buf := growbuf.New()
	proto.Serialize(buf, proto.Call{
		Tag: proto.TagAuthInfo,
		Auth: wire.ClientAuth{
			ClientName:    clientName(),
			ProtocolMajor: ProtocolMajor,
			ProtocolMinor: ProtocolMinor,
			User:          s.cfg.User,
			Token:         token,
		},
	})
	if err := framing.WritePDUChunk(conn, buf.Data(), s.cfg.chunkBytes()); err != nil {
		conn.Close()
		err = fmt.Errorf("connection reset during authentication: %w", err)
		s.reportStatus(proto.StatusFailure, err.Error())
		return nil, err
	}

	replyBody, err := framing.ReadPDUBody(conn, s.cancel, s.cfg.authTimeout(), s.cfg.bodyTimeout(), s.cfg.chunkBytes())
	if err != nil {
		conn.Close()
		if errors.Is(err, framing.ErrCancelled) {
			return nil, err
		}
		err = fmt.Errorf("connection reset during authentication: %w", err)
		s.reportStatus(proto.StatusFailure, err.Error())
		return nil, err
	}
	reply, err := proto.Deserialize(replyBody)
	if err != nil {
		conn.Close()
		s.reportStatus(proto.StatusFailure, errInvalidServer.Error())
		return nil, errInvalidServer
	}

	switch reply.Tag {
	case proto.TagAuthRejected:
		conn.Close()
		s.reportStatus(proto.StatusFailure, ErrAuthRejected.Error())
		return nil, ErrAuthRejected
	case proto.TagSourceInfo:
		si, err := reply.TakeSourceInfo()
		if err != nil {
			conn.Close()
			s.reportStatus(proto.StatusFailure, errInvalidServer.Error())
			return nil, errInvalidServer
		}
		s.srcMu.Lock()
		s.src = si
		s.srcMu.Unlock()
		s.setConnState(ConnConnected)
		s.sink.Deliver(Event{Kind: EventSourceInfo, SourceInfo: si})
		s.reportStatus(proto.StatusSuccess, "authenticated")
		return conn, nil
	default:
		conn.Close()
		s.reportStatus(proto.StatusFailure, errInvalidServer.Error())
		return nil, errInvalidServer
	}
}

func clientName() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "suscan-remoteclient"
	}
	if len(name) > clientNameMaxLen {
		name = name[:clientNameMaxLen]
	}
	return name
}

// txLoop performs connect-and-auth, then launches the RX loop and
// drains the outbound queue until HALT, mirroring spec.md's TX-thread
// pseudocode.
func (s *Session) txLoop() {
	defer close(s.txDone)

	conn, err := s.connectAndAuth()
	if err != nil {
		s.setConnState(ConnIdle)
		s.sink.Deliver(Event{Kind: EventHalt})
		return
	}
	s.conn = conn

	go s.rxLoop(conn)
	close(s.rxLaunched)

	for {
		item := s.out.pop()
		if s.metric != nil {
			s.metric.SetQueueDepth(s.out.depth())
		}
		if item.halt {
			break
		}
		if err := framing.WritePDUChunk(conn, item.body, s.cfg.chunkBytes()); err != nil {
			logrus.Printf("remote[%s]: write failed: %v", s.id, err)
			break
		}
		if s.metric != nil {
			s.metric.AddPDUSent()
		}
	}

	s.setConnState(ConnIdle)
	conn.Close()
	s.sink.Deliver(Event{Kind: EventHalt})
}

// rxLoop blocks on reads until a terminal condition (FORCE_EOS, read
// error, or cancellation), converting every received call into cache
// updates and/or a delivered event, per spec.md's RX-thread pseudocode.
// It always poisons the outbound queue with HALT on exit so the TX
// loop wakes up and shuts down too.
func (s *Session) rxLoop(conn net.Conn) {
	defer close(s.rxDone)
	defer s.out.push(outItem{halt: true})

	for {
		body, err := framing.ReadPDUBody(conn, s.cancel, 0, s.cfg.bodyTimeout(), s.cfg.chunkBytes())
		if err != nil {
			if !errors.Is(err, framing.ErrCancelled) {
				logrus.Printf("remote[%s]: read failed: %v", s.id, err)
			}
			return
		}
		if s.metric != nil {
			s.metric.AddPDUReceived()
		}

		call, err := proto.Deserialize(body)
		if err != nil {
			logrus.Printf("remote[%s]: malformed PDU: %v", s.id, err)
			return
		}

		switch call.Tag {
		case proto.TagSourceInfo:
			si, err := call.TakeSourceInfo()
			if err != nil {
				continue
			}
			s.srcMu.Lock()
			s.src = si
			s.srcMu.Unlock()
			s.sink.Deliver(Event{Kind: EventSourceInfo, SourceInfo: si})
		case proto.TagForceEOS:
			s.sink.Deliver(Event{Kind: EventEOS})
			return
		case proto.TagMessage:
			msg, err := call.DeliverMessage()
			if err != nil || msg == nil {
				continue
			}
			if msg.Kind == proto.MessageSourceInfo {
				s.srcMu.Lock()
				s.src = msg.SourceInfo
				s.srcMu.Unlock()
			}
			s.sink.Deliver(messageEvent(msg))
		default:
			// silently accepted, matching spec.md's RX pseudocode
		}
	}
}

func messageEvent(msg *proto.Message) Event {
	switch msg.Kind {
	case proto.MessageSourceInfo:
		return Event{Kind: EventSourceInfo, SourceInfo: msg.SourceInfo}
	case proto.MessagePSD:
		return Event{Kind: EventPSD, PSD: msg.PSD}
	default:
		return Event{Kind: EventStatus, Status: msg.Status}
	}
}

// sendCall acquires the single call slot, lets build populate it,
// serializes it into a fresh buffer, and pushes a copy onto the
// outbound queue — the acquire/mutate/serialize/queue/release pattern
// of spec.md §4.D. It never blocks on I/O: the outbound queue is
// unbounded.
func (s *Session) sendCall(build func(*proto.Call)) {
	s.callMu.Lock()
	s.call = proto.Call{}
	build(&s.call)
	buf := growbuf.New()
	proto.Serialize(buf, s.call)
	body := append([]byte(nil), buf.Data()...)
	s.call = proto.Call{Tag: proto.TagNone}
	s.callMu.Unlock()

	s.out.push(outItem{body: body})
	if s.metric != nil {
		s.metric.SetQueueDepth(s.out.depth())
	}
}

// SourceInfo returns a copy of the cached source info, safe for
// concurrent callers while the RX loop updates it.
func (s *Session) SourceInfo() wire.SourceInfo {
	s.srcMu.RLock()
	defer s.srcMu.RUnlock()
	return s.src
}

// Fire-and-forget control operations: these go over the wire verbatim,
// with no coalescing (spec.md §4.F, "Fire-and-forget pattern").

func (s *Session) SetPPM(ppm float64) {
	s.sendCall(func(c *proto.Call) {
		c.Init(proto.TagSetPPM)
		c.FloatValue = ppm
	})
}

func (s *Session) SetIQReverse(on bool) {
	s.sendCall(func(c *proto.Call) {
		c.Init(proto.TagSetIQReverse)
		c.BoolValue = on
	})
}

// SetSweepStrategy sends SET_SWEEP_STRATEGY; strategy must be < 2.
func (s *Session) SetSweepStrategy(strategy uint8) error {
	if strategy >= 2 {
		return fmt.Errorf("remote: sweep strategy %d >= 2", strategy)
	}
	s.sendCall(func(c *proto.Call) {
		c.Init(proto.TagSetSweepStrategy)
		c.EnumValue = strategy
	})
	return nil
}

// SetSpectrumPartitioning sends SET_SPECTRUM_PARTITIONING; mode must be < 2.
func (s *Session) SetSpectrumPartitioning(mode uint8) error {
	if mode >= 2 {
		return fmt.Errorf("remote: spectrum partitioning %d >= 2", mode)
	}
	s.sendCall(func(c *proto.Call) {
		c.Init(proto.TagSetSpectrumPartitioning)
		c.EnumValue = mode
	})
	return nil
}

// SetHopRange sends SET_HOP_RANGE; min must be < max.
func (s *Session) SetHopRange(min, max float64) error {
	if min >= max {
		return fmt.Errorf("remote: hop range min %v >= max %v", min, max)
	}
	s.sendCall(func(c *proto.Call) {
		c.Init(proto.TagSetHopRange)
		c.HopRange = wire.HopRange{Min: min, Max: max}
	})
	return nil
}

func (s *Session) SetBufferingSize(size uint32) {
	s.sendCall(func(c *proto.Call) {
		c.Init(proto.TagSetBufferingSize)
		c.BufferingSize = size
	})
}

// Write sends an arbitrary analyzer message verbatim (MESSAGE call).
func (s *Session) Write(msg *proto.Message) {
	s.sendCall(func(c *proto.Call) {
		c.Init(proto.TagMessage)
		c.Message = msg
	})
}

// ReqHalt asks the peer to halt (REQ_HALT call); it does not itself
// tear down the local session — call Close for that.
func (s *Session) ReqHalt() {
	s.sendCall(func(c *proto.Call) {
		c.Init(proto.TagReqHalt)
	})
}

// Coalescing slow-path operations (spec.md §4.F, "Coalescing slow
// pattern"): delegate to the slow-path dispatcher, which collapses
// rapid repeated calls into one hardware-facing operation.

func (s *Session) SetFrequency(freq, lnbFreq float64) {
	s.slow.SetFrequency(freq, lnbFreq)
}

func (s *Session) SetGain(name string, value float64) {
	s.slow.SetGain(name, value)
}

func (s *Session) SetAntenna(name string) {
	s.slow.SetAntenna(name)
}

func (s *Session) SetBandwidth(bw float64) {
	s.slow.SetBandwidth(bw)
}

func (s *Session) SetDCRemove(on bool) {
	s.slow.SetDCRemove(on)
}

func (s *Session) SetAGC(on bool) {
	s.slow.SetAGC(on)
}

// SetChannelInspectionMode records whether inspector overrides are
// currently legal; see slowpath.Dispatcher.SetChannelInspectionMode.
func (s *Session) SetChannelInspectionMode(on bool) {
	s.slow.SetChannelInspectionMode(on)
}

func (s *Session) SetInspectorFrequencyOverride(handle uint64, freq float64) error {
	return s.slow.SetInspectorFrequencyOverride(handle, freq)
}

func (s *Session) SetInspectorBandwidthOverride(handle uint64, bw float64) error {
	return s.slow.SetInspectorBandwidthOverride(handle, bw)
}

// Close signals cancellation, waits for RX (if it was ever launched)
// and TX to exit, drains any leftover queued buffers, and stops the
// slow-path worker — the destructor sequence of spec.md §3/§4.E
// translated to channel joins instead of pthread_join.
func (s *Session) Close() {
	close(s.cancel)
	<-s.txDone
	select {
	case <-s.rxLaunched:
		<-s.rxDone
	default:
	}
	s.out.drain()
	s.slow.Close()
}
