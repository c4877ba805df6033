// Package connection layers a bidirectional JSON-RPC 2.0 state machine on a
// transport: it correlates outgoing requests with responses, dispatches
// incoming requests and notifications to registered handlers, applies
// per-request timeouts and fans out a close to every outstanding awaiter.
package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/agentrpc"
	"github.com/viant/agentrpc/transport"
)

// RequestHandler serves one incoming request; the returned value is
// marshalled as the result. Returning a *agentrpc.Error forwards its code,
// message and data verbatim; any other error is wrapped as an internal error.
type RequestHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// NotificationHandler consumes one incoming notification; a returned error is
// reported through the connection's error callback and never terminates the
// message loop.
type NotificationHandler func(ctx context.Context, notification *agentrpc.Notification) error

// Connection is the JSON-RPC state machine. It holds a non-owning handle to
// the transport, but owns the inbound subscription and the pending map, and
// closes the transport as part of its own close cascade.
type Connection struct {
	transport      transport.Transport
	logger         agentrpc.Logger
	requestTimeout time.Duration

	mu             sync.Mutex
	pending        map[string]*roundTrip
	handlers       map[string]RequestHandler
	notifications  map[string]NotificationHandler
	onNotification NotificationHandler
	onError        func(error)
	onClose        func()
	closed         bool
}

// Option customizes a Connection.
type Option func(c *Connection)

// WithLogger sets the diagnostic logger.
func WithLogger(logger agentrpc.Logger) Option {
	return func(c *Connection) {
		c.logger = logger
	}
}

// WithRequestTimeout sets the default timeout applied by Send.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Connection) {
		c.requestTimeout = timeout
	}
}

// WithErrorHandler installs the callback receiving handler and routing
// failures that must not break the message loop.
func WithErrorHandler(onError func(error)) Option {
	return func(c *Connection) {
		c.onError = onError
	}
}

// WithCloseHandler installs the callback fired exactly once when the
// connection closes, whether asked to or because the transport stream ended.
func WithCloseHandler(onClose func()) Option {
	return func(c *Connection) {
		c.onClose = onClose
	}
}

// WithNotificationListener installs a catch-all invoked for every incoming
// notification in addition to any method-specific handler.
func WithNotificationListener(listener NotificationHandler) Option {
	return func(c *Connection) {
		c.onNotification = listener
	}
}

// New creates a connection on an open transport and starts its message loop.
func New(t transport.Transport, options ...Option) *Connection {
	c := &Connection{
		transport:      t,
		logger:         agentrpc.DefaultLogger,
		requestTimeout: 60 * time.Second,
		pending:        map[string]*roundTrip{},
		handlers:       map[string]RequestHandler{},
		notifications:  map[string]NotificationHandler{},
	}
	for _, opt := range options {
		opt(c)
	}
	go c.readLoop()
	return c
}

// RegisterHandler registers the handler serving incoming requests for method.
func (c *Connection) RegisterHandler(method string, handler RequestHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[method] = handler
}

// RegisterNotification registers the handler for incoming notifications for method.
func (c *Connection) RegisterNotification(method string, handler NotificationHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications[method] = handler
}

// IsClosed reports whether the close cascade has run.
func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Send issues a request and waits for its response with the default timeout.
func (c *Connection) Send(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	return c.SendWithTimeout(ctx, method, params, c.requestTimeout)
}

// SendWithTimeout issues a request with an explicit timeout. On timeout the
// awaiter is removed and a late response is silently dropped; other in-flight
// requests are unaffected.
func (c *Connection) SendWithTimeout(ctx context.Context, method string, params interface{}, timeout time.Duration) (json.RawMessage, error) {
	request, err := agentrpc.NewRequest(method, params)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	request.Id = id
	trip := newRoundTrip(request)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, agentrpc.NewStateError("send %q on closed connection", method)
	}
	c.pending[id] = trip
	c.mu.Unlock()

	if err = c.sendMessage(ctx, agentrpc.NewRequestMessage(request)); err != nil {
		c.removePending(id)
		return nil, fmt.Errorf("failed to send request %q: %w", method, err)
	}
	response, err := trip.wait(ctx, timeout)
	if err != nil {
		c.removePending(id)
		return nil, err
	}
	if response.Error != nil {
		return nil, response.Error
	}
	return response.Result, nil
}

// Notify issues a notification; no awaiter is registered.
func (c *Connection) Notify(ctx context.Context, method string, params interface{}) error {
	notification, err := agentrpc.NewNotification(method, params)
	if err != nil {
		return err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return agentrpc.NewStateError("notify %q on closed connection", method)
	}
	c.mu.Unlock()
	return c.sendMessage(ctx, agentrpc.NewNotificationMessage(notification))
}

// Close runs the close cascade: fails every outstanding awaiter, closes the
// transport and fires the close callback. It is idempotent.
func (c *Connection) Close() error {
	return c.shutdown()
}

func (c *Connection) sendMessage(ctx context.Context, message *agentrpc.Message) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return c.transport.Send(ctx, data)
}

func (c *Connection) readLoop() {
	for inbound := range c.transport.Messages() {
		if inbound.Err != nil {
			c.reportError(inbound.Err)
			continue
		}
		c.handle(context.Background(), inbound.Data)
	}
	// the transport stream ended, expectedly or not; run the same cascade
	_ = c.shutdown()
}

func (c *Connection) handle(ctx context.Context, data []byte) {
	switch agentrpc.TypeOf(data) {
	case agentrpc.MessageTypeResponse:
		c.handleResponse(data)
	case agentrpc.MessageTypeRequest:
		request := &agentrpc.Request{}
		if err := json.Unmarshal(data, request); err != nil {
			c.reportError(fmt.Errorf("failed to parse request: %w", err))
			return
		}
		// served off the loop so a handler may issue requests back
		// through this connection; the reply is sent from the same
		// goroutine that served the call
		go c.serveRequest(ctx, request)
	case agentrpc.MessageTypeNotification:
		notification := &agentrpc.Notification{}
		if err := json.Unmarshal(data, notification); err != nil {
			c.reportError(fmt.Errorf("failed to parse notification: %w", err))
			return
		}
		c.serveNotification(ctx, notification)
	default:
		c.logger.Errorf("dropped message with neither id nor method: %s", data)
	}
}

func (c *Connection) handleResponse(data []byte) {
	response := &agentrpc.Response{}
	if err := json.Unmarshal(data, response); err != nil {
		c.reportError(fmt.Errorf("failed to parse response: %w", err))
		return
	}
	trip := c.removePending(idKey(response.Id))
	if trip == nil {
		// stale: the awaiter timed out or was never ours
		return
	}
	if response.Error != nil {
		trip.setError(response.Error)
		return
	}
	trip.setResponse(response)
}

func (c *Connection) serveRequest(ctx context.Context, request *agentrpc.Request) {
	c.mu.Lock()
	handler, ok := c.handlers[request.Method]
	c.mu.Unlock()
	var response *agentrpc.Response
	if !ok {
		response = agentrpc.NewErrorResponse(request.Id, agentrpc.NewMethodNotFound(request.Method))
	} else {
		response = c.invoke(ctx, request, handler)
	}
	if err := c.sendMessage(ctx, agentrpc.NewResponseMessage(response)); err != nil {
		// the remote will time out; surface locally without breaking the loop
		c.reportError(fmt.Errorf("failed to reply to %q: %w", request.Method, err))
	}
}

func (c *Connection) invoke(ctx context.Context, request *agentrpc.Request, handler RequestHandler) *agentrpc.Response {
	result, err := handler(ctx, request.Params)
	if err != nil {
		rpcErr := &agentrpc.Error{}
		if !errors.As(err, &rpcErr) {
			rpcErr = agentrpc.NewInternalError(fmt.Sprintf("Internal error: %v", err))
		}
		return agentrpc.NewErrorResponse(request.Id, rpcErr)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return agentrpc.NewErrorResponse(request.Id, agentrpc.NewInternalError(fmt.Sprintf("Internal error: %v", err)))
	}
	return agentrpc.NewResponse(request.Id, data)
}

func (c *Connection) serveNotification(ctx context.Context, notification *agentrpc.Notification) {
	c.mu.Lock()
	handler := c.notifications[notification.Method]
	catchAll := c.onNotification
	c.mu.Unlock()
	if handler != nil {
		if err := handler(ctx, notification); err != nil {
			c.reportError(fmt.Errorf("notification %q handler: %w", notification.Method, err))
		}
	}
	if catchAll != nil {
		if err := catchAll(ctx, notification); err != nil {
			c.reportError(fmt.Errorf("notification %q listener: %w", notification.Method, err))
		}
	}
}

func (c *Connection) removePending(id string) *roundTrip {
	c.mu.Lock()
	defer c.mu.Unlock()
	trip, ok := c.pending[id]
	if !ok {
		return nil
	}
	delete(c.pending, id)
	return trip
}

func (c *Connection) shutdown() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	outstanding := make([]*roundTrip, 0, len(c.pending))
	for _, trip := range c.pending {
		outstanding = append(outstanding, trip)
	}
	c.pending = map[string]*roundTrip{}
	onClose := c.onClose
	c.mu.Unlock()

	for _, trip := range outstanding {
		trip.setError(agentrpc.NewStateError("connection closed while awaiting %q", trip.request.Method))
	}
	err := c.transport.Close()
	if onClose != nil {
		onClose()
	}
	return err
}

func (c *Connection) reportError(err error) {
	c.mu.Lock()
	onError := c.onError
	c.mu.Unlock()
	if onError != nil {
		onError(err)
		return
	}
	c.logger.Errorf("connection: %v", err)
}

func idKey(id agentrpc.RequestId) string {
	switch actual := id.(type) {
	case string:
		return actual
	default:
		return fmt.Sprintf("%v", actual)
	}
}
