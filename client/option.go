package client

import (
	"time"

	"github.com/viant/agentrpc"
	"github.com/viant/agentrpc/schema"
	"github.com/viant/agentrpc/transport"
	"github.com/viant/agentrpc/transport/stdio"
	"github.com/viant/agentrpc/transport/ws"
)

// Option customizes a Client.
type Option func(c *Client)

// WithTransport injects an externally owned transport. The client never
// restarts a transport it did not build.
func WithTransport(t transport.Transport) Option {
	return func(c *Client) {
		c.transport = t
		c.ownsTransport = false
		c.buildTransport = nil
	}
}

// WithCommand makes the client spawn the agent CLI over stdio; the client
// owns the transport and may restart it.
func WithCommand(command string, options ...stdio.Option) Option {
	return func(c *Client) {
		c.ownsTransport = true
		c.buildTransport = func() transport.Transport {
			return stdio.New(command, options...)
		}
	}
}

// WithEndpoint makes the client dial the agent over WebSocket; the client
// owns the transport and may restart it.
func WithEndpoint(endpoint string, options ...ws.Option) Option {
	return func(c *Client) {
		c.ownsTransport = true
		c.buildTransport = func() transport.Transport {
			return ws.New(endpoint, options...)
		}
	}
}

// WithAutoRestart enables a single opportunistic restart when a client-owned
// transport closes unexpectedly.
func WithAutoRestart(enabled bool) Option {
	return func(c *Client) {
		c.autoRestart = enabled
	}
}

// WithAutoStart makes session-creating operations start the client when it is
// not yet connected instead of failing.
func WithAutoStart(enabled bool) Option {
	return func(c *Client) {
		c.autoStart = enabled
	}
}

// WithRequestTimeout sets the default timeout for client to server requests.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.requestTimeout = timeout
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger agentrpc.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithStateListener installs the callback fired at every state transition.
func WithStateListener(listener StateListener) Option {
	return func(c *Client) {
		c.onState = listener
	}
}

// WithErrorListener installs the callback receiving routing and handler
// errors that do not fail any particular call.
func WithErrorListener(listener ErrorListener) Option {
	return func(c *Client) {
		c.onError = listener
	}
}

// WithTool registers a client-level tool; it is offered to every session and
// serves as the last lookup tier for incoming tool calls.
func WithTool(definition schema.ToolDefinition, handler ToolHandler) Option {
	return func(c *Client) {
		c.toolDefs = append(c.toolDefs, definition)
		c.tools[definition.Name] = handler
	}
}

// SessionOption customizes a Session at creation time.
type SessionOption func(s *Session)

// WithSessionTool registers a session-local tool; it wins over config and
// client level tools of the same name.
func WithSessionTool(definition schema.ToolDefinition, handler ToolHandler) SessionOption {
	return func(s *Session) {
		s.toolDefs = append(s.toolDefs, definition)
		s.tools[definition.Name] = handler
	}
}

// WithConfigToolHandler binds a handler to a tool declared in the session
// config tool list.
func WithConfigToolHandler(name string, handler ToolHandler) SessionOption {
	return func(s *Session) {
		s.configTools[name] = handler
	}
}

// WithPermissionHandler installs the session permission handler; without one
// every permission request is denied.
func WithPermissionHandler(handler PermissionHandler) SessionOption {
	return func(s *Session) {
		s.permission = handler
	}
}

// WithUserInputHandler installs the session user-input handler.
func WithUserInputHandler(handler UserInputHandler) SessionOption {
	return func(s *Session) {
		s.userInput = handler
	}
}

// WithHookHandler installs the session hooks handler.
func WithHookHandler(handler HookHandler) SessionOption {
	return func(s *Session) {
		s.hooks = handler
	}
}
