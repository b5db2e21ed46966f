// Package slowpath implements the single-worker dispatcher that
// coalesces human-latency control operations (retune, gain, antenna,
// bandwidth, inspector overrides) so they never run on the hot sample
// path. It is grounded on two places in the pack: the hotconf-mutex/
// pending-list coalescing of analyzer/slow.c, and the dedicated-worker,
// single-goroutine-owns-the-hardware-path style of radiod.go's
// RadiodController (there: cmdMu serializes sends to a single
// multicast socket; here: a job channel serializes callbacks onto a
// single goroutine).
package slowpath

import (
	"sync"
	"time"
)

// GainRequest is one pending named-gain change. Gain requests are kept
// as a list, not a single slot, because distinct named gains are
// independent and must all be applied — unlike bandwidth/frequency/
// antenna, where only the latest value matters.
type GainRequest struct {
	Name  string
	Value float64
}

// Dispatcher runs a single goroutine that drains coalesced slow-path
// work. Every coalescing setter method below follows the same shape:
// update the pending slot under hotconfMu, then signal the worker;
// the worker takes the pending value under the mutex, clears it,
// releases the mutex, and only then performs the hardware-facing
// callback — so overlapping rapid UI updates collapse into a single
// reconfiguration instead of one per call.
type Dispatcher struct {
	hotconfMu sync.Mutex

	gainRequests []GainRequest
	antennaReq   string
	antennaDirty bool

	bwReq   float64
	bwDirty bool

	dcRemoveReq   bool
	dcRemoveDirty bool

	agcReq   bool
	agcDirty bool

	freqReq    float64
	lnbFreqReq float64
	freqDirty  bool

	inspectorFreqHandle uint64
	inspectorFreq       float64
	inspectorFreqDirty  bool

	inspectorBWHandle uint64
	inspectorBW       float64
	inspectorBWDirty  bool

	channelInspectionMode bool

	jobs chan func()
	done chan struct{}

	// Callbacks invoked by the worker outside the critical section.
	ApplyGain          func(name string, value float64)
	ApplyAntenna       func(name string)
	ApplyBandwidth     func(bw float64)
	ApplyDCRemove      func(on bool)
	ApplyAGC           func(on bool)
	ApplyFrequency     func(freq, lnbFreq float64)
	ApplyInspectorFreq func(handle uint64, freq float64)
	ApplyInspectorBW   func(handle uint64, bw float64)

	// ObserveLatency, if set, is called with the elapsed time between a
	// job being enqueued and its drain callback returning.
	ObserveLatency func(seconds float64)
}

// NewDispatcher starts the worker goroutine. Call Close to stop it.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		jobs: make(chan func(), 16),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	for {
		select {
		case job := <-d.jobs:
			job()
		case <-d.done:
			for {
				select {
				case job := <-d.jobs:
					job()
				default:
					return
				}
			}
		}
	}
}

// Close stops the worker goroutine. Pending jobs already enqueued are
// allowed to drain; Close does not wait for them.
func (d *Dispatcher) Close() {
	close(d.done)
}

// SetChannelInspectionMode records whether the analyzer is currently in
// channel-inspection mode; inspector overrides are only legal in that
// mode.
func (d *Dispatcher) SetChannelInspectionMode(on bool) {
	d.hotconfMu.Lock()
	d.channelInspectionMode = on
	d.hotconfMu.Unlock()
}

// SetGain queues a named-gain change. The gain list is appended to
// under the hotconf mutex; the worker drains the whole list at once.
func (d *Dispatcher) SetGain(name string, value float64) {
	d.hotconfMu.Lock()
	d.gainRequests = append(d.gainRequests, GainRequest{Name: name, Value: value})
	d.hotconfMu.Unlock()
	d.enqueue(d.drainGains)
}

func (d *Dispatcher) drainGains() {
	d.hotconfMu.Lock()
	pending := d.gainRequests
	d.gainRequests = nil
	d.hotconfMu.Unlock()

	if d.ApplyGain == nil {
		return
	}
	for _, req := range pending {
		d.ApplyGain(req.Name, req.Value)
	}
}

// SetAntenna queues an antenna change; only the latest pending name
// survives if called again before the worker runs.
func (d *Dispatcher) SetAntenna(name string) {
	d.hotconfMu.Lock()
	d.antennaReq = name
	d.antennaDirty = true
	d.hotconfMu.Unlock()
	d.enqueue(d.drainAntenna)
}

func (d *Dispatcher) drainAntenna() {
	d.hotconfMu.Lock()
	if !d.antennaDirty {
		d.hotconfMu.Unlock()
		return
	}
	name := d.antennaReq
	d.antennaDirty = false
	d.hotconfMu.Unlock()

	if d.ApplyAntenna != nil {
		d.ApplyAntenna(name)
	}
}

// SetBandwidth queues a bandwidth change; latest value wins.
func (d *Dispatcher) SetBandwidth(bw float64) {
	d.hotconfMu.Lock()
	d.bwReq = bw
	d.bwDirty = true
	d.hotconfMu.Unlock()
	d.enqueue(d.drainBandwidth)
}

func (d *Dispatcher) drainBandwidth() {
	d.hotconfMu.Lock()
	if !d.bwDirty {
		d.hotconfMu.Unlock()
		return
	}
	bw := d.bwReq
	d.bwDirty = false
	d.hotconfMu.Unlock()

	if d.ApplyBandwidth != nil {
		d.ApplyBandwidth(bw)
	}
}

// SetDCRemove queues a DC-removal toggle; latest value wins.
func (d *Dispatcher) SetDCRemove(on bool) {
	d.hotconfMu.Lock()
	d.dcRemoveReq = on
	d.dcRemoveDirty = true
	d.hotconfMu.Unlock()
	d.enqueue(d.drainDCRemove)
}

func (d *Dispatcher) drainDCRemove() {
	d.hotconfMu.Lock()
	if !d.dcRemoveDirty {
		d.hotconfMu.Unlock()
		return
	}
	on := d.dcRemoveReq
	d.dcRemoveDirty = false
	d.hotconfMu.Unlock()

	if d.ApplyDCRemove != nil {
		d.ApplyDCRemove(on)
	}
}

// SetAGC queues an AGC toggle; latest value wins.
func (d *Dispatcher) SetAGC(on bool) {
	d.hotconfMu.Lock()
	d.agcReq = on
	d.agcDirty = true
	d.hotconfMu.Unlock()
	d.enqueue(d.drainAGC)
}

func (d *Dispatcher) drainAGC() {
	d.hotconfMu.Lock()
	if !d.agcDirty {
		d.hotconfMu.Unlock()
		return
	}
	on := d.agcReq
	d.agcDirty = false
	d.hotconfMu.Unlock()

	if d.ApplyAGC != nil {
		d.ApplyAGC(on)
	}
}

// SetFrequency queues a retune; latest (freq, lnbFreq) wins, so rapid
// successive calls before the worker drains collapse into one
// hardware retune.
func (d *Dispatcher) SetFrequency(freq, lnbFreq float64) {
	d.hotconfMu.Lock()
	d.freqReq = freq
	d.lnbFreqReq = lnbFreq
	d.freqDirty = true
	d.hotconfMu.Unlock()
	d.enqueue(d.drainFrequency)
}

func (d *Dispatcher) drainFrequency() {
	d.hotconfMu.Lock()
	if !d.freqDirty {
		d.hotconfMu.Unlock()
		return
	}
	freq, lnbFreq := d.freqReq, d.lnbFreqReq
	d.freqDirty = false
	d.hotconfMu.Unlock()

	if d.ApplyFrequency != nil {
		d.ApplyFrequency(freq, lnbFreq)
	}
}

// notInspectingError is returned (as ErrNotInspecting) by the
// inspector-override setters when the analyzer is not currently
// inspecting a channel.
type notInspectingError struct{}

func (notInspectingError) Error() string {
	return "slowpath: inspector override requested outside channel-inspection mode"
}

// ErrNotInspecting is the sentinel for notInspectingError.
var ErrNotInspecting error = notInspectingError{}

// SetInspectorFrequencyOverride queues an inspector frequency override.
// It is only legal in channel-inspection mode.
func (d *Dispatcher) SetInspectorFrequencyOverride(handle uint64, freq float64) error {
	d.hotconfMu.Lock()
	if !d.channelInspectionMode {
		d.hotconfMu.Unlock()
		return ErrNotInspecting
	}
	d.inspectorFreqHandle = handle
	d.inspectorFreq = freq
	d.inspectorFreqDirty = true
	d.hotconfMu.Unlock()
	d.enqueue(d.drainInspectorFreq)
	return nil
}

func (d *Dispatcher) drainInspectorFreq() {
	d.hotconfMu.Lock()
	if !d.inspectorFreqDirty {
		d.hotconfMu.Unlock()
		return
	}
	handle, freq := d.inspectorFreqHandle, d.inspectorFreq
	d.inspectorFreqDirty = false
	d.hotconfMu.Unlock()

	if d.ApplyInspectorFreq != nil {
		d.ApplyInspectorFreq(handle, freq)
	}
}

// SetInspectorBandwidthOverride queues an inspector bandwidth override.
// It is only legal in channel-inspection mode.
func (d *Dispatcher) SetInspectorBandwidthOverride(handle uint64, bw float64) error {
	d.hotconfMu.Lock()
	if !d.channelInspectionMode {
		d.hotconfMu.Unlock()
		return ErrNotInspecting
	}
	d.inspectorBWHandle = handle
	d.inspectorBW = bw
	d.inspectorBWDirty = true
	d.hotconfMu.Unlock()
	d.enqueue(d.drainInspectorBW)
	return nil
}

func (d *Dispatcher) drainInspectorBW() {
	d.hotconfMu.Lock()
	if !d.inspectorBWDirty {
		d.hotconfMu.Unlock()
		return
	}
	handle, bw := d.inspectorBWHandle, d.inspectorBW
	d.inspectorBWDirty = false
	d.hotconfMu.Unlock()

	if d.ApplyInspectorBW != nil {
		d.ApplyInspectorBW(handle, bw)
	}
}

// enqueue times job from this call until it returns and reports the
// elapsed duration through ObserveLatency, so the dispatcher's queueing
// delay under load is visible regardless of which drain method ran.
func (d *Dispatcher) enqueue(job func()) {
	enqueuedAt := time.Now()
	d.jobs <- func() {
		job()
		if d.ObserveLatency != nil {
			d.ObserveLatency(time.Since(enqueuedAt).Seconds())
		}
	}
}
