package transport

import (
	"context"
	"sync"

	"github.com/viant/agentrpc"
)

// PipeTransport is one end of an in-memory transport pair. It is used by
// tests and by embedders that host both peers in one process.
type PipeTransport struct {
	mu       sync.Mutex
	messages chan Inbound
	peer     *PipeTransport
	closed   bool
}

// Pipe creates two connected in-memory transports; whatever one side sends
// the other receives. Closing either end terminates both message streams,
// matching the behavior of a broken socket.
func Pipe() (*PipeTransport, *PipeTransport) {
	a := &PipeTransport{messages: make(chan Inbound, 64)}
	b := &PipeTransport{messages: make(chan Inbound, 64)}
	a.peer = b
	b.peer = a
	return a, b
}

// Messages returns the inbound stream.
func (t *PipeTransport) Messages() <-chan Inbound {
	return t.messages
}

// Send delivers one envelope to the peer.
func (t *PipeTransport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return agentrpc.NewStateError("send on closed transport")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	peer := t.peer
	peer.mu.Lock()
	defer peer.mu.Unlock()
	if peer.closed {
		return agentrpc.NewStateError("peer transport is closed")
	}
	duplicate := make([]byte, len(data))
	copy(duplicate, data)
	peer.messages <- Inbound{Data: duplicate}
	return nil
}

// IsOpen reports whether this end is still usable.
func (t *PipeTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.closed
}

// Close terminates both ends of the pair. It is idempotent.
func (t *PipeTransport) Close() error {
	t.closeEnd()
	t.peer.closeEnd()
	return nil
}

func (t *PipeTransport) closeEnd() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.messages)
}
