// Package client is the top level SDK surface: it owns the connection to one
// agent process, performs the start handshake, keeps the registry of live
// sessions and routes every server initiated callback to the session it
// belongs to.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cskr/pubsub"
	"github.com/viant/agentrpc"
	"github.com/viant/agentrpc/connection"
	"github.com/viant/agentrpc/schema"
	"github.com/viant/agentrpc/transport"
	"golang.org/x/sync/singleflight"
)

// State is the client lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

const (
	methodPing                 = "ping"
	methodStatusGet            = "status.get"
	methodAuthGetStatus        = "auth.getStatus"
	methodModelsList           = "models.list"
	methodToolsList            = "tools.list"
	methodAccountGetQuota      = "account.getQuota"
	methodSessionCreate        = "session.create"
	methodSessionResume        = "session.resume"
	methodSessionList          = "session.list"
	methodSessionDelete        = "session.delete"
	methodSessionGetLastId     = "session.getLastId"
	methodSessionGetForeground = "session.getForeground"
	methodSessionSetForeground = "session.setForeground"
	methodSessionSend          = "session.send"
	methodSessionGetMessages   = "session.getMessages"
	methodSessionAbort         = "session.abort"
	methodSessionDestroy       = "session.destroy"
	methodModelGetCurrent      = "session.model.getCurrent"
	methodModelSwitchTo        = "session.model.switchTo"
	methodModeGet              = "session.mode.get"
	methodModeSet              = "session.mode.set"
	methodPlanRead             = "session.plan.read"
	methodPlanUpdate           = "session.plan.update"
	methodPlanDelete           = "session.plan.delete"
	methodWorkspaceListFiles   = "session.workspace.listFiles"
	methodWorkspaceReadFile    = "session.workspace.readFile"
	methodWorkspaceCreateFile  = "session.workspace.createFile"
	methodFleetStart           = "session.fleet.start"
	methodSessionEvent         = "session.event"
	methodSessionLifecycle     = "session.lifecycle"
	methodToolCall             = "tool.call"
	methodPermissionRequest    = "permission.request"
	methodUserInputRequest     = "userInput.request"
	methodHooksInvoke          = "hooks.invoke"
)

const (
	destroyAttempts  = 3
	destroyBackoff   = 100 * time.Millisecond
	topicLifecycle   = "lifecycle"
	lifecycleBuffer  = 64
	restartDeadline  = time.Minute
	defaultRPCWindow = 60 * time.Second
)

// StateListener observes client state transitions.
type StateListener func(state State)

// ErrorListener receives routing and handler errors that fail no particular
// call.
type ErrorListener func(err error)

// ToolHandler serves one incoming tool call. A returned error is converted to
// a failure tool result, never to a JSON-RPC error.
type ToolHandler func(ctx context.Context, call *schema.ToolCall) (*schema.ToolResult, error)

// PermissionHandler answers one permission request.
type PermissionHandler func(ctx context.Context, request *schema.PermissionRequest) (*schema.PermissionResult, error)

// UserInputHandler answers one user input request.
type UserInputHandler func(ctx context.Context, request *schema.UserInputRequest) (*schema.UserInputResponse, error)

// HookHandler runs one hook invocation.
type HookHandler func(ctx context.Context, invocation *schema.HookInvocation) (*schema.HookResult, error)

// LifecycleEvent announces a session appearing or disappearing on the agent
// side, including sessions this client never created.
type LifecycleEvent struct {
	SessionId string `json:"sessionId"`
	Phase     string `json:"phase"`
}

// Client talks to one agent process.
type Client struct {
	transport      transport.Transport
	ownsTransport  bool
	buildTransport func() transport.Transport
	autoRestart    bool
	autoStart      bool
	requestTimeout time.Duration
	logger         agentrpc.Logger
	onState        StateListener
	onError        ErrorListener
	tools          map[string]ToolHandler
	toolDefs       []schema.ToolDefinition
	lifecycle      *pubsub.PubSub

	mu       sync.Mutex
	state    State
	conn     *connection.Connection
	sessions map[string]*Session
	stopping bool

	modelsMu   sync.Mutex
	modelCache []schema.ModelInfo
	hasModels  bool
	flight     singleflight.Group
}

// New creates a client; no connection is made until Start.
func New(options ...Option) *Client {
	c := &Client{
		state:          StateDisconnected,
		requestTimeout: defaultRPCWindow,
		logger:         agentrpc.DefaultLogger,
		tools:          map[string]ToolHandler{},
		sessions:       map[string]*Session{},
		lifecycle:      pubsub.New(lifecycleBuffer),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the handshake completed and the connection is up.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Start opens the transport, builds the connection and performs the ping
// handshake. Starting a connected client is a no-op.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConnected {
		c.mu.Unlock()
		return nil
	}
	if c.transport == nil {
		if c.buildTransport == nil {
			c.mu.Unlock()
			return agentrpc.NewStateError("no transport configured")
		}
		c.transport = c.buildTransport()
	}
	trans := c.transport
	c.mu.Unlock()

	c.setState(StateConnecting)
	if opener, ok := trans.(transport.Opener); ok && !trans.IsOpen() {
		if err := opener.Open(ctx); err != nil {
			c.setState(StateError)
			return fmt.Errorf("failed to open transport: %w", err)
		}
	}
	conn := connection.New(trans,
		connection.WithLogger(c.logger),
		connection.WithRequestTimeout(c.requestTimeout),
		connection.WithErrorHandler(c.reportError),
		connection.WithCloseHandler(c.handleConnectionClose),
	)
	c.registerCallbacks(conn)
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if err := c.handshake(ctx, conn); err != nil {
		_ = conn.Close()
		c.setState(StateError)
		return err
	}
	c.setState(StateConnected)
	return nil
}

func (c *Client) handshake(ctx context.Context, conn *connection.Connection) error {
	raw, err := conn.Send(ctx, methodPing, nil)
	if err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}
	ping := &schema.PingResult{}
	if err = json.Unmarshal(raw, ping); err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}
	if ping.ProtocolVersion == nil {
		return agentrpc.NewStateError("Protocol version mismatch: expected %v, got none", agentrpc.ProtocolVersion)
	}
	if *ping.ProtocolVersion != agentrpc.ProtocolVersion {
		return agentrpc.NewStateError("Protocol version mismatch: expected %v, got %v", agentrpc.ProtocolVersion, *ping.ProtocolVersion)
	}
	return nil
}

// Stop destroys every live session, each with up to three attempts and
// exponential backoff, then closes the connection. Sessions are torn down
// locally even when their destroy RPC keeps failing; collected errors are
// joined.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.stopping {
		c.mu.Unlock()
		return nil
	}
	c.stopping = true
	conn := c.conn
	sessions := c.sessionSnapshot()
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.stopping = false
		c.mu.Unlock()
	}()

	var errs []error
	for _, session := range sessions {
		if err := session.destroy(ctx, destroyAttempts); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy session %v: %w", session.Id(), err))
		}
	}
	c.clearModels()
	if conn != nil {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
	} else {
		c.setState(StateDisconnected)
	}
	return errors.Join(errs...)
}

// ForceStop tears everything down locally without any destroy RPCs.
func (c *Client) ForceStop(ctx context.Context) error {
	c.mu.Lock()
	c.stopping = true
	conn := c.conn
	sessions := c.sessionSnapshot()
	c.sessions = map[string]*Session{}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.stopping = false
		c.mu.Unlock()
	}()

	c.clearModels()
	// synthetic destruction first; the close cascade re-running it is a no-op
	for _, session := range sessions {
		session.handleConnectionClose()
	}
	if conn != nil {
		return conn.Close()
	}
	c.setState(StateDisconnected)
	return nil
}

// CreateSession creates a new agent session. The advertised tool list merges
// client level tools first, then session level ones, de-duplicated by name.
func (c *Client) CreateSession(ctx context.Context, config *schema.SessionConfig, options ...SessionOption) (*Session, error) {
	return c.openSession(ctx, methodSessionCreate, "", config, options)
}

// ResumeSession reattaches to an existing session by id.
func (c *Client) ResumeSession(ctx context.Context, sessionId string, config *schema.SessionConfig, options ...SessionOption) (*Session, error) {
	return c.openSession(ctx, methodSessionResume, sessionId, config, options)
}

func (c *Client) openSession(ctx context.Context, method, resume string, config *schema.SessionConfig, options []SessionOption) (*Session, error) {
	if err := c.ensureStarted(ctx); err != nil {
		return nil, err
	}
	if config == nil {
		config = &schema.SessionConfig{}
	}
	session := newSession(c, config, options...)
	params := *config
	params.Resume = resume
	params.Tools = mergeTools(c.toolDefs, config.Tools, session.toolDefs)
	handle := &schema.SessionHandle{}
	if err := c.call(ctx, method, &params, handle); err != nil {
		return nil, err
	}
	if handle.SessionId == "" {
		return nil, agentrpc.NewStateError("%v returned no session id", method)
	}
	session.bind(handle)
	c.mu.Lock()
	c.sessions[handle.SessionId] = session
	c.mu.Unlock()
	return session, nil
}

// mergeTools concatenates tool declaration tiers and drops later duplicates
// by name; the earliest tier keeps the name.
func mergeTools(tiers ...[]schema.ToolDefinition) []schema.ToolDefinition {
	var result []schema.ToolDefinition
	seen := map[string]bool{}
	for _, tier := range tiers {
		for _, definition := range tier {
			if seen[definition.Name] {
				continue
			}
			seen[definition.Name] = true
			result = append(result, definition)
		}
	}
	return result
}

// Session returns the live session with the supplied id, or nil.
func (c *Client) Session(sessionId string) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[sessionId]
}

// Sessions returns every live session known to this client.
func (c *Client) Sessions() []*Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionSnapshot()
}

func (c *Client) sessionSnapshot() []*Session {
	result := make([]*Session, 0, len(c.sessions))
	for _, session := range c.sessions {
		result = append(result, session)
	}
	return result
}

func (c *Client) removeSession(sessionId string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionId)
}

// Lifecycle subscribes to session lifecycle announcements; the second return
// cancels the subscription and closes the channel.
func (c *Client) Lifecycle() (<-chan LifecycleEvent, func()) {
	sub := c.lifecycle.Sub(topicLifecycle)
	out := make(chan LifecycleEvent, lifecycleBuffer)
	go func() {
		defer close(out)
		for message := range sub {
			out <- message.(LifecycleEvent)
		}
	}()
	return out, func() {
		c.lifecycle.Unsub(sub, topicLifecycle)
	}
}

// Ping issues a bare ping outside the handshake.
func (c *Client) Ping(ctx context.Context) (*schema.PingResult, error) {
	result := &schema.PingResult{}
	if err := c.call(ctx, methodPing, nil, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Status fetches the agent process status.
func (c *Client) Status(ctx context.Context) (*schema.StatusInfo, error) {
	result := &schema.StatusInfo{}
	if err := c.call(ctx, methodStatusGet, nil, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AuthStatus reports the agent's authentication state.
func (c *Client) AuthStatus(ctx context.Context) (*schema.AuthStatus, error) {
	result := &schema.AuthStatus{}
	if err := c.call(ctx, methodAuthGetStatus, nil, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Models returns the model catalogue; the first fetch is cached and
// concurrent fetches collapse into a single request.
func (c *Client) Models(ctx context.Context) ([]schema.ModelInfo, error) {
	return c.models(ctx, false)
}

// RefreshModels drops the cached catalogue and fetches it again.
func (c *Client) RefreshModels(ctx context.Context) ([]schema.ModelInfo, error) {
	return c.models(ctx, true)
}

func (c *Client) models(ctx context.Context, refresh bool) ([]schema.ModelInfo, error) {
	if refresh {
		c.clearModels()
		// detach from any fetch already in flight; it predates the
		// invalidation and must not satisfy this refresh
		c.flight.Forget(methodModelsList)
	} else {
		c.modelsMu.Lock()
		if c.hasModels {
			cached := c.modelCache
			c.modelsMu.Unlock()
			return cached, nil
		}
		c.modelsMu.Unlock()
	}
	value, err, _ := c.flight.Do(methodModelsList, func() (interface{}, error) {
		c.modelsMu.Lock()
		if c.hasModels {
			cached := c.modelCache
			c.modelsMu.Unlock()
			return cached, nil
		}
		c.modelsMu.Unlock()
		list := &schema.ModelList{}
		if err := c.call(ctx, methodModelsList, nil, list); err != nil {
			return nil, err
		}
		c.modelsMu.Lock()
		c.modelCache = list.Models
		c.hasModels = true
		c.modelsMu.Unlock()
		return list.Models, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]schema.ModelInfo), nil
}

func (c *Client) clearModels() {
	c.modelsMu.Lock()
	c.modelCache = nil
	c.hasModels = false
	c.modelsMu.Unlock()
}

// Tools lists the tools the agent itself offers.
func (c *Client) Tools(ctx context.Context) ([]schema.ToolDefinition, error) {
	result := struct {
		Tools []schema.ToolDefinition `json:"tools"`
	}{}
	if err := c.call(ctx, methodToolsList, nil, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// Quota fetches the account usage quota.
func (c *Client) Quota(ctx context.Context) (*schema.QuotaInfo, error) {
	result := &schema.QuotaInfo{}
	if err := c.call(ctx, methodAccountGetQuota, nil, result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListSessions lists the sessions the agent knows about, created by this
// client or not.
func (c *Client) ListSessions(ctx context.Context) ([]schema.SessionInfo, error) {
	result := struct {
		Sessions []schema.SessionInfo `json:"sessions"`
	}{}
	if err := c.call(ctx, methodSessionList, nil, &result); err != nil {
		return nil, err
	}
	return result.Sessions, nil
}

// DeleteSession removes a persisted session on the agent side.
func (c *Client) DeleteSession(ctx context.Context, sessionId string) error {
	return c.call(ctx, methodSessionDelete, sessionRef(sessionId), nil)
}

// LastSessionId returns the id of the most recent session.
func (c *Client) LastSessionId(ctx context.Context) (string, error) {
	result := struct {
		SessionId string `json:"sessionId"`
	}{}
	if err := c.call(ctx, methodSessionGetLastId, nil, &result); err != nil {
		return "", err
	}
	return result.SessionId, nil
}

// ForegroundSession returns the id of the agent's foreground session.
func (c *Client) ForegroundSession(ctx context.Context) (string, error) {
	result := struct {
		SessionId string `json:"sessionId"`
	}{}
	if err := c.call(ctx, methodSessionGetForeground, nil, &result); err != nil {
		return "", err
	}
	return result.SessionId, nil
}

// SetForegroundSession makes the supplied session the agent's foreground one.
func (c *Client) SetForegroundSession(ctx context.Context, sessionId string) error {
	return c.call(ctx, methodSessionSetForeground, sessionRef(sessionId), nil)
}

func sessionRef(sessionId string) map[string]string {
	return map[string]string{"sessionId": sessionId}
}

func (c *Client) ensureStarted(ctx context.Context) error {
	if c.State() == StateConnected {
		return nil
	}
	if !c.autoStart {
		return agentrpc.NewStateError("client is not connected")
	}
	return c.Start(ctx)
}

func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return agentrpc.NewStateError("client is not connected")
	}
	raw, err := conn.Send(ctx, method, params)
	if err != nil {
		return err
	}
	if result == nil || len(raw) == 0 {
		return nil
	}
	if err = json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("failed to parse %q result: %w", method, err)
	}
	return nil
}

// handleConnectionClose is the connection's close callback: it empties the
// session registry, tears every session down locally and, for a client owned
// transport that dropped unexpectedly, schedules one restart.
func (c *Client) handleConnectionClose() {
	c.mu.Lock()
	sessions := c.sessionSnapshot()
	c.sessions = map[string]*Session{}
	restart := c.state == StateConnected && c.autoRestart && c.ownsTransport && !c.stopping
	c.conn = nil
	if c.ownsTransport {
		c.transport = nil
	}
	c.mu.Unlock()

	c.clearModels()
	for _, session := range sessions {
		session.handleConnectionClose()
	}
	c.setState(StateDisconnected)
	if restart {
		go c.restart()
	}
}

func (c *Client) restart() {
	ctx, cancel := context.WithTimeout(context.Background(), restartDeadline)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		c.reportError(fmt.Errorf("restart failed: %w", err))
		c.setState(StateDisconnected)
	}
}

func (c *Client) setState(state State) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	listener := c.onState
	c.mu.Unlock()
	if listener != nil {
		listener(state)
	}
}

func (c *Client) reportError(err error) {
	c.mu.Lock()
	listener := c.onError
	c.mu.Unlock()
	if listener != nil {
		listener(err)
		return
	}
	c.logger.Errorf("client: %v", err)
}
