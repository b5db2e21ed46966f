package framing

import (
	"context"
	"net"
	"time"
)

// DialCancellable opens a TCP connection to addr, racing the dial
// against cancel and timeout. It is the Go-native equivalent of the
// original's non-blocking connect + poll(writable, cancel_fd): the
// dial itself runs in a goroutine, and whichever of (dial completes,
// cancel closes, timeout elapses) happens first determines the
// outcome. On cancellation or timeout the in-flight dial is abandoned
// via a context cancellation so it cannot leak past this call.
func DialCancellable(network, addr string, cancel <-chan struct{}, timeout time.Duration) (net.Conn, error) {
	ctx := context.Background()
	var cancelFn context.CancelFunc
	if timeout > 0 {
		ctx, cancelFn = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancelFn = context.WithCancel(ctx)
	}
	defer cancelFn()

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultC := make(chan dialResult, 1)

	var dialer net.Dialer
	go func() {
		conn, err := dialer.DialContext(ctx, network, addr)
		resultC <- dialResult{conn, err}
	}()

	select {
	case <-cancel:
		cancelFn()
		res := <-resultC
		if res.conn != nil {
			res.conn.Close()
		}
		return nil, ErrCancelled
	case res := <-resultC:
		if res.err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return nil, ErrTimeout
			}
			return nil, res.err
		}
		return res.conn, nil
	}
}
