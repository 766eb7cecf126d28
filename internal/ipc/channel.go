package ipc

import "github.com/redstone-os/redstone/internal/kobject"

// Channel is a bidirectional pair of ports: each endpoint reads from one port and writes to the
// other, so a message sent on one endpoint is received on the other.
//
// The original's Channel::create_pair is an explicit unimplemented!() (the spec's §9 Open
// Question notes this directly); this package resolves it as two independent ports cross-wired —
// each endpoint owns its own receive port and holds a reference to the peer's — rather than
// inventing shared backing state neither the spec nor the original describe. Closing one
// endpoint's handle closes only that endpoint's receive port; the peer can still drain whatever
// was already queued to it before noticing the channel is one-sided.
type Channel struct {
	koid kobject.KOID
}

func (c *Channel) KOID() kobject.KOID { return c.koid }
func (c *Channel) TypeName() string   { return "channel" }
func (c *Channel) OnFinalRelease()    {}

// Endpoint is one side of a Channel: Send writes to the peer's receive port, Recv reads from its
// own.
type Endpoint struct {
	self *Port
	peer *Port
}

// NewChannelPair creates two cross-wired endpoints, each with its own bounded receive port of the
// given capacity.
func NewChannelPair(capacity int) (a, b *Endpoint) {
	portA := NewPort(capacity)
	portB := NewPort(capacity)

	return &Endpoint{self: portA, peer: portB}, &Endpoint{self: portB, peer: portA}
}

// Send writes msg to the peer endpoint's receive port. hooks, if non-nil, observes a blocking
// send the same way Port.Send does.
func (e *Endpoint) Send(msg Message, nonblock bool, hooks *BlockHooks) error {
	return e.peer.Send(msg, nonblock, hooks)
}

// Recv reads the next message from this endpoint's own receive port. hooks, if non-nil, observes
// a blocking recv the same way Port.Recv does.
func (e *Endpoint) Recv(nonblock bool, hooks *BlockHooks) (Message, error) {
	return e.self.Recv(nonblock, hooks)
}

// Close closes this endpoint's receive port. The peer's Send calls will then fail with
// ErrPortClosed, but the peer can still Recv anything already queued to its own port.
func (e *Endpoint) Close() {
	e.self.Close()
}
