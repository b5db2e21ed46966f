package remote

// ConnState enumerates the connection-state metric's values.
type ConnState int

const (
	ConnIdle ConnState = iota
	ConnConnecting
	ConnAuthenticating
	ConnConnected
)

// Metrics is the narrow set of instrumentation hooks a Session reports
// through. It is satisfied by internal/metrics.Collectors; a nil
// Config.Metrics is valid and every call below is a no-op, so the
// core package never hard-depends on a running Prometheus registry
// (tests construct Sessions with no metrics at all).
type Metrics interface {
	SetConnState(ConnState)
	AddPDUSent()
	AddPDUReceived()
	SetQueueDepth(int)
	ObserveSlowPathLatencySeconds(float64)
}
