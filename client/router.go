package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/viant/agentrpc"
	"github.com/viant/agentrpc/connection"
	"github.com/viant/agentrpc/event"
	"github.com/viant/agentrpc/schema"
)

func (c *Client) registerCallbacks(conn *connection.Connection) {
	conn.RegisterNotification(methodSessionEvent, c.onSessionEvent)
	conn.RegisterNotification(methodSessionLifecycle, c.onSessionLifecycle)
	conn.RegisterHandler(methodToolCall, c.onToolCall)
	conn.RegisterHandler(methodPermissionRequest, c.onPermissionRequest)
	conn.RegisterHandler(methodUserInputRequest, c.onUserInputRequest)
	conn.RegisterHandler(methodHooksInvoke, c.onHooksInvoke)
}

// onSessionEvent routes one event notification. The params either carry the
// event inline or wrap it as {"sessionId":...,"event":{...}}; an explicit
// envelope session id wins over one embedded in the event payload.
func (c *Client) onSessionEvent(ctx context.Context, notification *agentrpc.Notification) error {
	if len(notification.Params) == 0 {
		return fmt.Errorf("session.event without params")
	}
	envelope := struct {
		SessionId string          `json:"sessionId"`
		Event     json.RawMessage `json:"event"`
	}{}
	if err := json.Unmarshal(notification.Params, &envelope); err != nil {
		return fmt.Errorf("failed to parse session.event: %w", err)
	}
	payload := json.RawMessage(notification.Params)
	if len(envelope.Event) > 0 {
		payload = envelope.Event
	}
	evt, err := event.Parse(payload)
	if err != nil {
		return err
	}
	sessionId := envelope.SessionId
	if sessionId == "" {
		sessionId = embeddedSessionId(payload)
	}
	if sessionId == "" {
		return fmt.Errorf("event %q carries no session id", evt.EventType())
	}
	session := c.Session(sessionId)
	if session == nil {
		return fmt.Errorf("unknown session %q for event %q", sessionId, evt.EventType())
	}
	session.dispatch(evt)
	return nil
}

func embeddedSessionId(payload []byte) string {
	probe := struct {
		SessionId string `json:"sessionId"`
		Data      struct {
			SessionId string `json:"sessionId"`
		} `json:"data"`
	}{}
	_ = json.Unmarshal(payload, &probe)
	if probe.SessionId != "" {
		return probe.SessionId
	}
	return probe.Data.SessionId
}

func (c *Client) onSessionLifecycle(ctx context.Context, notification *agentrpc.Notification) error {
	announcement := LifecycleEvent{}
	if err := json.Unmarshal(notification.Params, &announcement); err != nil {
		return fmt.Errorf("failed to parse session.lifecycle: %w", err)
	}
	c.lifecycle.TryPub(announcement, topicLifecycle)
	return nil
}

// onToolCall serves an incoming tool.call. Tool failures travel inside the
// result payload; only routing failures become JSON-RPC errors.
func (c *Client) onToolCall(ctx context.Context, params json.RawMessage) (interface{}, error) {
	call := &schema.ToolCall{}
	session, err := c.targetSession(params, call, func() string { return call.SessionId })
	if err != nil {
		return nil, err
	}
	result := session.callTool(ctx, call)
	return map[string]interface{}{"result": result}, nil
}

func (c *Client) onPermissionRequest(ctx context.Context, params json.RawMessage) (interface{}, error) {
	request := &schema.PermissionRequest{}
	session, err := c.targetSession(params, request, func() string { return request.SessionId })
	if err != nil {
		return nil, err
	}
	result, err := session.handlePermission(ctx, request)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"result": result}, nil
}

func (c *Client) onUserInputRequest(ctx context.Context, params json.RawMessage) (interface{}, error) {
	request := &schema.UserInputRequest{}
	session, err := c.targetSession(params, request, func() string { return request.SessionId })
	if err != nil {
		return nil, err
	}
	return session.handleUserInput(ctx, request)
}

// onHooksInvoke runs a hook; when no hook handler is configured or the hook
// fails, the reply is an empty object so the agent proceeds unhindered.
func (c *Client) onHooksInvoke(ctx context.Context, params json.RawMessage) (interface{}, error) {
	invocation := &schema.HookInvocation{}
	session, err := c.targetSession(params, invocation, func() string { return invocation.SessionId })
	if err != nil {
		return nil, err
	}
	result, err := session.handleHook(ctx, invocation)
	if err != nil {
		c.reportError(fmt.Errorf("hook %q failed: %w", invocation.Hook, err))
		return map[string]interface{}{}, nil
	}
	if result == nil {
		return map[string]interface{}{}, nil
	}
	return map[string]interface{}{"output": result}, nil
}

// targetSession parses callback params and resolves the session they address.
func (c *Client) targetSession(params json.RawMessage, target interface{}, sessionId func() string) (*Session, error) {
	if len(params) == 0 {
		return nil, agentrpc.NewInvalidParamsError("Missing params")
	}
	if err := json.Unmarshal(params, target); err != nil {
		return nil, agentrpc.NewInvalidParamsError(fmt.Sprintf("Invalid params: %v", err))
	}
	id := sessionId()
	if id == "" {
		return nil, agentrpc.NewInvalidParamsError("Missing sessionId")
	}
	session := c.Session(id)
	if session == nil {
		return nil, agentrpc.NewInvalidRequest("Unknown session: " + id)
	}
	return session, nil
}
