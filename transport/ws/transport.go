// Package ws connects to an agent endpoint over WebSocket. Framing is
// delegated to the WebSocket message boundary: each JSON-RPC envelope is one
// text frame, no Content-Length header.
package ws

import (
	"context"
	"sync"

	"github.com/viant/afs/url"
	"github.com/viant/agentrpc"
	"github.com/viant/agentrpc/transport"
	"nhooyr.io/websocket"
)

// Transport is a WebSocket message conduit.
type Transport struct {
	endpoint     string
	readLimit    int64
	dialOptions  *websocket.DialOptions
	conn         *websocket.Conn
	messages     chan transport.Inbound
	logger       agentrpc.Logger
	sendMu       sync.Mutex
	mu           sync.Mutex
	open         bool
	closed       bool
	streamEnd    sync.Once
	cancelReader context.CancelFunc
}

// Option customizes the WebSocket transport.
type Option func(t *Transport)

// WithPath joins a path with the base endpoint URL.
func WithPath(path string) Option {
	return func(t *Transport) {
		t.endpoint = url.Join(t.endpoint, path)
	}
}

// WithReadLimit overrides the maximum inbound frame size in bytes.
func WithReadLimit(limit int64) Option {
	return func(t *Transport) {
		t.readLimit = limit
	}
}

// WithDialOptions sets the options passed to websocket.Dial.
func WithDialOptions(options *websocket.DialOptions) Option {
	return func(t *Transport) {
		t.dialOptions = options
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger agentrpc.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// New creates a transport dialing the supplied endpoint on Open.
func New(endpoint string, options ...Option) *Transport {
	t := &Transport{
		endpoint:  endpoint,
		readLimit: 64 * 1024 * 1024,
		messages:  make(chan transport.Inbound, 64),
		logger:    agentrpc.DefaultLogger,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Open dials the endpoint and starts the read loop.
func (t *Transport) Open(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open {
		return nil
	}
	if t.closed {
		return agentrpc.NewStateError("transport already closed")
	}
	conn, _, err := websocket.Dial(ctx, t.endpoint, t.dialOptions)
	if err != nil {
		return err
	}
	conn.SetReadLimit(t.readLimit)
	t.conn = conn
	readCtx, cancel := context.WithCancel(context.Background())
	t.cancelReader = cancel
	go t.readLoop(readCtx)
	t.open = true
	return nil
}

func (t *Transport) readLoop(ctx context.Context) {
	defer t.closeStream()
	for {
		messageType, data, err := t.conn.Read(ctx)
		if err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if !closed {
				t.logger.Errorf("websocket read failed: %v", err)
			}
			return
		}
		if messageType != websocket.MessageText {
			t.messages <- transport.Inbound{Err: agentrpc.NewParsingError("unexpected binary frame", nil)}
			continue
		}
		t.messages <- transport.Inbound{Data: data}
	}
}

// Messages returns the inbound stream.
func (t *Transport) Messages() <-chan transport.Inbound {
	return t.messages
}

// Send writes one envelope as a text frame; writes are serialized.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	if !t.open || t.closed {
		t.mu.Unlock()
		return agentrpc.NewStateError("transport is not open")
	}
	conn := t.conn
	t.mu.Unlock()

	t.sendMu.Lock()
	defer t.sendMu.Unlock()
	return conn.Write(ctx, websocket.MessageText, data)
}

// IsOpen reports whether the WebSocket is believed to be up.
func (t *Transport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open && !t.closed
}

// Close shuts the WebSocket down and terminates the message stream. Idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn := t.conn
	cancel := t.cancelReader
	t.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "client shutdown")
	} else {
		t.closeStream()
	}
	if cancel != nil {
		cancel()
	}
	return err
}

func (t *Transport) closeStream() {
	t.streamEnd.Do(func() {
		close(t.messages)
	})
}
