// Package transport defines the message conduit contract between the JSON-RPC
// connection and a physical channel (subprocess stdio, WebSocket, in-memory
// pipe). A transport hides framing: it accepts and delivers whole JSON
// envelopes.
package transport

import (
	"context"
	"encoding/json"
)

// Inbound is one unit delivered by a transport: a decoded JSON envelope or a
// stream-level error. An Inbound with Err != nil does not imply the stream
// ended; termination is signaled by closing the Messages channel.
type Inbound struct {
	Data json.RawMessage
	Err  error
}

// Transport is a bidirectional conduit of JSON envelopes.
//
// Messages returns the inbound stream; the channel is closed when the
// transport shuts down, cleanly or not. Send enqueues one serialized
// envelope; concurrent senders are serialized internally so byte frames never
// interleave. Close is idempotent and terminates the Messages channel.
type Transport interface {
	Messages() <-chan Inbound
	Send(ctx context.Context, data []byte) error
	Close() error
	IsOpen() bool
}

// Opener is implemented by transports that defer establishing the physical
// channel until the client starts. A transport injected already open does not
// need to implement it.
type Opener interface {
	Open(ctx context.Context) error
}
