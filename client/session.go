package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/cskr/pubsub"
	"github.com/viant/agentrpc"
	"github.com/viant/agentrpc/event"
	"github.com/viant/agentrpc/schema"
)

const (
	topicEvents = "events"
	eventBuffer = 64
)

// EventHandler consumes one session event.
type EventHandler func(evt event.Event)

// Session is one live agent session. Events reach subscribers in three tiers,
// in order: the broadcast channel, persistent handlers in registration order,
// then one-shot handlers.
type Session struct {
	client        *Client
	sessionId     string
	workspacePath string
	config        *schema.SessionConfig

	tools       map[string]ToolHandler
	configTools map[string]ToolHandler
	toolDefs    []schema.ToolDefinition
	permission  PermissionHandler
	userInput   UserInputHandler
	hooks       HookHandler

	mu           sync.Mutex
	destroyed    bool
	destroyDone  chan struct{}
	destroyErr   error
	handlers     []*handlerEntry
	onceHandlers []EventHandler
	hub          *pubsub.PubSub
	torndown     sync.Once
}

type handlerEntry struct {
	eventType string
	handler   EventHandler
}

func newSession(client *Client, config *schema.SessionConfig, options ...SessionOption) *Session {
	s := &Session{
		client:      client,
		config:      config,
		tools:       map[string]ToolHandler{},
		configTools: map[string]ToolHandler{},
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Session) bind(handle *schema.SessionHandle) {
	s.sessionId = handle.SessionId
	s.workspacePath = handle.WorkspacePath
}

// Id returns the agent assigned session id.
func (s *Session) Id() string {
	return s.sessionId
}

// WorkspacePath returns the workspace directory the agent assigned.
func (s *Session) WorkspacePath() string {
	return s.workspacePath
}

// Config returns the configuration the session was created with.
func (s *Session) Config() *schema.SessionConfig {
	return s.config
}

// IsDestroyed reports whether the session was torn down.
func (s *Session) IsDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.destroyed
}

// OnEvent registers a persistent handler for every event; the returned
// function unregisters it.
func (s *Session) OnEvent(handler EventHandler) func() {
	return s.subscribe("", handler)
}

// OnEventType registers a persistent handler invoked only for events of the
// supplied type.
func (s *Session) OnEventType(eventType string, handler EventHandler) func() {
	return s.subscribe(eventType, handler)
}

func (s *Session) subscribe(eventType string, handler EventHandler) func() {
	entry := &handlerEntry{eventType: eventType, handler: handler}
	s.mu.Lock()
	s.handlers = append(s.handlers, entry)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, candidate := range s.handlers {
			if candidate == entry {
				s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
				return
			}
		}
	}
}

// OnceEvent registers a handler removed after its first delivery.
func (s *Session) OnceEvent(handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onceHandlers = append(s.onceHandlers, handler)
}

// Events returns a buffered broadcast channel of session events; it is closed
// when the session is destroyed. Each call returns an independent stream. A
// consumer that stops draining loses events once its buffers fill; handler
// delivery is unaffected.
func (s *Session) Events() <-chan event.Event {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		closed := make(chan event.Event)
		close(closed)
		return closed
	}
	if s.hub == nil {
		s.hub = pubsub.New(eventBuffer)
	}
	sub := s.hub.Sub(topicEvents)
	s.mu.Unlock()

	out := make(chan event.Event, eventBuffer)
	go func() {
		defer close(out)
		for message := range sub {
			out <- message.(event.Event)
		}
	}()
	return out
}

// RegisterTool adds a session-local tool after creation; the agent is not
// re-advertised, the handler only serves incoming calls.
func (s *Session) RegisterTool(name string, handler ToolHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[name] = handler
}

// dispatch delivers one event to all three subscriber tiers. Handler sets are
// snapshotted before any callback runs, so handlers may re-subscribe or
// unsubscribe without affecting the in-flight delivery.
func (s *Session) dispatch(evt event.Event) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	hub := s.hub
	persistent := make([]*handlerEntry, len(s.handlers))
	copy(persistent, s.handlers)
	once := s.onceHandlers
	s.onceHandlers = nil
	s.mu.Unlock()

	if hub != nil {
		// non-blocking: an abandoned, saturated stream loses events
		// instead of stalling delivery to everyone else
		hub.TryPub(evt, topicEvents)
	}
	for _, entry := range persistent {
		if entry.eventType == "" || entry.eventType == evt.EventType() {
			entry.handler(evt)
		}
	}
	for _, handler := range once {
		handler(evt)
	}
}

// callTool resolves the handler for one incoming tool call, checking the
// session-local tools, then handlers bound to the config tool list, then the
// client level tools. A missing tool and a handler error both become failure
// results, never transport errors.
func (s *Session) callTool(ctx context.Context, call *schema.ToolCall) *schema.ToolResult {
	s.mu.Lock()
	handler, ok := s.tools[call.ToolName]
	if !ok {
		handler, ok = s.configTools[call.ToolName]
	}
	s.mu.Unlock()
	if !ok {
		s.client.mu.Lock()
		handler, ok = s.client.tools[call.ToolName]
		s.client.mu.Unlock()
	}
	if !ok {
		return schema.NewFailureResult("Unknown tool: "+call.ToolName, "")
	}
	result, err := handler(ctx, call)
	if err != nil {
		return schema.NewFailureResult(err.Error(), "")
	}
	if result == nil {
		return schema.NewSuccessResult("")
	}
	return result
}

// handlePermission answers one permission request; without a handler every
// request is denied.
func (s *Session) handlePermission(ctx context.Context, request *schema.PermissionRequest) (*schema.PermissionResult, error) {
	if s.permission == nil {
		return &schema.PermissionResult{Kind: "denied", Reason: "no permission handler registered"}, nil
	}
	return s.permission(ctx, request)
}

func (s *Session) handleUserInput(ctx context.Context, request *schema.UserInputRequest) (*schema.UserInputResponse, error) {
	if s.userInput == nil {
		return nil, fmt.Errorf("no user input handler registered for session %v", s.sessionId)
	}
	return s.userInput(ctx, request)
}

func (s *Session) handleHook(ctx context.Context, invocation *schema.HookInvocation) (*schema.HookResult, error) {
	if s.hooks == nil {
		return nil, nil
	}
	return s.hooks(ctx, invocation)
}

// SendOption customizes one prompt.
type SendOption func(p *schema.SendParams)

// WithAttachments attaches files or references to the prompt.
func WithAttachments(attachments ...schema.Attachment) SendOption {
	return func(p *schema.SendParams) {
		p.Attachments = append(p.Attachments, attachments...)
	}
}

// WithMode overrides the session mode for this prompt only.
func WithMode(mode string) SendOption {
	return func(p *schema.SendParams) {
		p.Mode = mode
	}
}

// Send submits a prompt and returns the message id the agent assigned; the
// response arrives later as session events.
func (s *Session) Send(ctx context.Context, prompt string, options ...SendOption) (string, error) {
	params := &schema.SendParams{SessionId: s.sessionId, Prompt: prompt}
	for _, opt := range options {
		opt(params)
	}
	result := &schema.SendResult{}
	if err := s.call(ctx, methodSessionSend, params, result); err != nil {
		return "", err
	}
	return result.MessageId, nil
}

// Abort interrupts whatever the agent is doing for this session.
func (s *Session) Abort(ctx context.Context) error {
	return s.call(ctx, methodSessionAbort, s.ref(), nil)
}

// Messages fetches the session transcript.
func (s *Session) Messages(ctx context.Context) ([]schema.MessageRecord, error) {
	result := struct {
		Messages []schema.MessageRecord `json:"messages"`
	}{}
	if err := s.call(ctx, methodSessionGetMessages, s.ref(), &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

// Model returns the model currently serving the session.
func (s *Session) Model(ctx context.Context) (*schema.ModelInfo, error) {
	result := &schema.ModelInfo{}
	if err := s.call(ctx, methodModelGetCurrent, s.ref(), result); err != nil {
		return nil, err
	}
	return result, nil
}

// SwitchModel changes the model serving the session.
func (s *Session) SwitchModel(ctx context.Context, modelId string) error {
	return s.call(ctx, methodModelSwitchTo, map[string]string{"sessionId": s.sessionId, "modelId": modelId}, nil)
}

// Mode returns the current session mode.
func (s *Session) Mode(ctx context.Context) (string, error) {
	result := struct {
		Mode string `json:"mode"`
	}{}
	if err := s.call(ctx, methodModeGet, s.ref(), &result); err != nil {
		return "", err
	}
	return result.Mode, nil
}

// SetMode changes the session mode.
func (s *Session) SetMode(ctx context.Context, mode string) error {
	return s.call(ctx, methodModeSet, map[string]string{"sessionId": s.sessionId, "mode": mode}, nil)
}

// Plan reads the session plan document.
func (s *Session) Plan(ctx context.Context) (*schema.Plan, error) {
	result := &schema.Plan{}
	if err := s.call(ctx, methodPlanRead, s.ref(), result); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdatePlan replaces the session plan document.
func (s *Session) UpdatePlan(ctx context.Context, content string) error {
	return s.call(ctx, methodPlanUpdate, map[string]string{"sessionId": s.sessionId, "content": content}, nil)
}

// DeletePlan removes the session plan document.
func (s *Session) DeletePlan(ctx context.Context) error {
	return s.call(ctx, methodPlanDelete, s.ref(), nil)
}

// ListFiles lists workspace entries under the supplied path.
func (s *Session) ListFiles(ctx context.Context, path string) ([]schema.WorkspaceFile, error) {
	result := struct {
		Files []schema.WorkspaceFile `json:"files"`
	}{}
	if err := s.call(ctx, methodWorkspaceListFiles, map[string]string{"sessionId": s.sessionId, "path": path}, &result); err != nil {
		return nil, err
	}
	return result.Files, nil
}

// ReadFile fetches one workspace file; content travels base64 encoded.
func (s *Session) ReadFile(ctx context.Context, path string) ([]byte, error) {
	result := struct {
		Content string `json:"content"`
	}{}
	if err := s.call(ctx, methodWorkspaceReadFile, map[string]string{"sessionId": s.sessionId, "path": path}, &result); err != nil {
		return nil, err
	}
	data, err := base64.StdEncoding.DecodeString(result.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %v content: %w", path, err)
	}
	return data, nil
}

// CreateFile writes one workspace file; content travels base64 encoded.
func (s *Session) CreateFile(ctx context.Context, path string, content []byte) error {
	params := map[string]string{
		"sessionId": s.sessionId,
		"path":      path,
		"content":   base64.StdEncoding.EncodeToString(content),
	}
	return s.call(ctx, methodWorkspaceCreateFile, params, nil)
}

// StartFleet launches a worker fleet for this session.
func (s *Session) StartFleet(ctx context.Context, config *schema.FleetConfig) error {
	params := struct {
		SessionId string `json:"sessionId"`
		*schema.FleetConfig
	}{SessionId: s.sessionId, FleetConfig: config}
	return s.call(ctx, methodFleetStart, &params, nil)
}

// Destroy ends the session: one session.destroy RPC, then local teardown. The
// first call installs a shared completion every later or concurrent call
// awaits; the destroy RPC runs at most once and its failure never prevents
// local teardown.
func (s *Session) Destroy(ctx context.Context) error {
	return s.destroy(ctx, 1)
}

func (s *Session) destroy(ctx context.Context, attempts int) error {
	s.mu.Lock()
	if s.destroyDone != nil {
		done := s.destroyDone
		s.mu.Unlock()
		<-done
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.destroyErr
	}
	done := make(chan struct{})
	s.destroyDone = done
	s.destroyed = true
	s.mu.Unlock()

	err := s.destroyRPC(ctx, attempts)
	s.teardown()
	s.mu.Lock()
	s.destroyErr = err
	s.mu.Unlock()
	close(done)
	return err
}

func (s *Session) destroyRPC(ctx context.Context, attempts int) error {
	backoff := destroyBackoff
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err = s.client.call(ctx, methodSessionDestroy, s.ref(), nil); err == nil {
			return nil
		}
	}
	return err
}

// handleConnectionClose tears the session down locally; the connection is
// gone, no RPC is attempted and Destroy calls racing with it settle on the
// same completion.
func (s *Session) handleConnectionClose() {
	s.mu.Lock()
	if s.destroyDone == nil {
		done := make(chan struct{})
		close(done)
		s.destroyDone = done
		s.destroyed = true
	}
	s.mu.Unlock()
	s.teardown()
}

func (s *Session) teardown() {
	s.torndown.Do(func() {
		s.mu.Lock()
		hub := s.hub
		s.hub = nil
		s.handlers = nil
		s.onceHandlers = nil
		s.mu.Unlock()
		if hub != nil {
			hub.Shutdown()
		}
		s.client.removeSession(s.sessionId)
	})
}

func (s *Session) ref() map[string]string {
	return map[string]string{"sessionId": s.sessionId}
}

func (s *Session) call(ctx context.Context, method string, params, result interface{}) error {
	s.mu.Lock()
	destroyed := s.destroyed
	s.mu.Unlock()
	if destroyed {
		return agentrpc.NewStateError("%v on destroyed session %v", method, s.sessionId)
	}
	return s.client.call(ctx, method, params, result)
}
