package remote

import "sync"

// outItem is one entry on the outbound PDU queue: either a serialized
// call body to write, or the HALT poison pill that tells the TX loop
// to exit.
type outItem struct {
	halt bool
	body []byte
}

// outQueue is the multi-producer/single-consumer unbounded queue
// between caller threads (producers) and the TX loop (the sole
// consumer), replacing suscan_mq. It is mutex+cond guarded rather than
// a Go channel because an unbounded channel does not exist natively
// and the HALT-poisoning shutdown protocol needs a queue that is never
// full and never closed out from under a concurrent push.
type outQueue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []outItem
}

func newOutQueue() *outQueue {
	q := &outQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push enqueues an item and wakes a blocked consumer. Producers never
// block here: growth of the backing slice is the only cost.
func (q *outQueue) push(item outItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.cond.Signal()
}

// pop blocks until an item is available, then returns it in FIFO
// order.
func (q *outQueue) pop() outItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item
}

// depth reports the current queue length, for metrics.
func (q *outQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// drain removes and discards every remaining item, used during
// teardown to match the original destructor's "drains and frees any
// leftover queued buffers" step (Go's GC reclaims the memory; drain
// exists so Close can report an empty queue and so nothing lingers
// referencing a closed connection).
func (q *outQueue) drain() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}
