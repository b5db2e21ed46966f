package proto

import (
	"fmt"

	"github.com/cwsl/suscan-remoteclient/internal/wire"
)

// TakeSourceInfo is valid only when c.Tag == TagSourceInfo. It moves
// the envelope's source info out and resets the envelope's tag to
// TagNone, matching the original's take_source_info contract (minus
// the manual destructor call Go's GC makes unnecessary).
func (c *Call) TakeSourceInfo() (wire.SourceInfo, error) {
	if c.Tag != TagSourceInfo {
		return wire.SourceInfo{}, fmt.Errorf("proto: TakeSourceInfo called with tag %d, want TagSourceInfo", c.Tag)
	}
	si := c.SourceInfo
	*c = Call{Tag: TagNone}
	return si, nil
}

// DeliverMessage is valid only when c.Tag == TagMessage. It hands back
// the embedded Message for the caller to forward (and, if it is a
// MessageSourceInfo, to fold into the session's cache first — that
// ordering is the session driver's responsibility, not this package's),
// and resets the envelope's tag to TagNone.
func (c *Call) DeliverMessage() (*Message, error) {
	if c.Tag != TagMessage {
		return nil, fmt.Errorf("proto: DeliverMessage called with tag %d, want TagMessage", c.Tag)
	}
	msg := c.Message
	*c = Call{Tag: TagNone}
	return msg, nil
}
