// Package schema holds the inert value objects exchanged with the agent
// process: session configuration, tool definitions, callback payloads and
// metadata records. The SDK forwards these without interpreting them; JSON
// encoding follows an omit-when-empty discipline throughout.
package schema

import (
	"encoding/json"
)

// PingResult is the payload of the start handshake response.
type PingResult struct {
	ProtocolVersion *int   `json:"protocolVersion,omitempty"`
	Version         string `json:"version,omitempty"`
}

// StatusInfo describes the agent process status.
type StatusInfo struct {
	Version         string `json:"version,omitempty"`
	ProtocolVersion int    `json:"protocolVersion,omitempty"`
	Uptime          int64  `json:"uptime,omitempty"`
	ActiveSessions  int    `json:"activeSessions,omitempty"`
}

// AuthStatus describes the authentication state of the agent process; the SDK
// never drives authentication, it only reports.
type AuthStatus struct {
	Authenticated bool   `json:"authenticated"`
	Account       string `json:"account,omitempty"`
	Plan          string `json:"plan,omitempty"`
}

// QuotaInfo reports account usage quotas.
type QuotaInfo struct {
	Used      float64 `json:"used,omitempty"`
	Limit     float64 `json:"limit,omitempty"`
	ResetsAt  string  `json:"resetsAt,omitempty"`
	Unlimited bool    `json:"unlimited,omitempty"`
}

// ModelInfo describes one model offered by the agent.
type ModelInfo struct {
	Id            string   `json:"id"`
	Name          string   `json:"name,omitempty"`
	Provider      string   `json:"provider,omitempty"`
	ContextWindow int      `json:"contextWindow,omitempty"`
	Capabilities  []string `json:"capabilities,omitempty"`
	Default       bool     `json:"default,omitempty"`
}

// ModelList is the result of models.list.
type ModelList struct {
	Models []ModelInfo `json:"models"`
}

// ToolDefinition declares a client-side tool to the agent. InputSchema is a
// JSON schema object forwarded verbatim.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"inputSchema,omitempty"`
}

// SessionConfig carries the session creation parameters. Zero values are
// omitted from the wire form.
type SessionConfig struct {
	Model         string            `json:"model,omitempty"`
	Mode          string            `json:"mode,omitempty"`
	SystemPrompt  string            `json:"systemPrompt,omitempty"`
	WorkspacePath string            `json:"workspacePath,omitempty"`
	Tools         []ToolDefinition  `json:"tools,omitempty"`
	Env           map[string]string `json:"env,omitempty"`
	Resume        string            `json:"resume,omitempty"`
}

// SessionHandle is the result of session.create and session.resume.
type SessionHandle struct {
	SessionId     string `json:"sessionId"`
	WorkspacePath string `json:"workspacePath,omitempty"`
}

// SessionInfo describes one known session in session.list results.
type SessionInfo struct {
	SessionId string `json:"sessionId"`
	Title     string `json:"title,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	Model     string `json:"model,omitempty"`
	Mode      string `json:"mode,omitempty"`
}

// Attachment is one prompt attachment; Content carries inline data when the
// attachment was loaded locally.
type Attachment struct {
	Type     string `json:"type,omitempty"`
	URL      string `json:"url,omitempty"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Content  string `json:"content,omitempty"`
}

// SendParams is the session.send parameter object.
type SendParams struct {
	SessionId   string       `json:"sessionId"`
	Prompt      string       `json:"prompt"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Mode        string       `json:"mode,omitempty"`
}

// SendResult carries the message id the agent assigned to the prompt.
type SendResult struct {
	MessageId string `json:"messageId"`
}

// MessageRecord is one entry of session.getMessages.
type MessageRecord struct {
	Id        string `json:"id"`
	Role      string `json:"role,omitempty"`
	Content   string `json:"content,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Plan is the session plan document.
type Plan struct {
	Content   string `json:"content,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// WorkspaceFile describes one file under the session workspace.
type WorkspaceFile struct {
	Path       string `json:"path"`
	Size       int64  `json:"size,omitempty"`
	ModifiedAt string `json:"modifiedAt,omitempty"`
	Directory  bool   `json:"directory,omitempty"`
}

// FleetConfig is the session.fleet.start parameter payload.
type FleetConfig struct {
	Size int    `json:"size,omitempty"`
	Task string `json:"task,omitempty"`
}

// ToolCall is the payload of an incoming tool.call request.
type ToolCall struct {
	SessionId  string          `json:"sessionId"`
	ToolName   string          `json:"toolName"`
	ToolCallId string          `json:"toolCallId"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
}

// PermissionRequest is the payload of an incoming permission.request.
type PermissionRequest struct {
	SessionId  string          `json:"sessionId"`
	ToolName   string          `json:"toolName,omitempty"`
	ToolCallId string          `json:"toolCallId,omitempty"`
	Kind       string          `json:"kind,omitempty"`
	Detail     json.RawMessage `json:"detail,omitempty"`
}

// PermissionResult answers a permission.request; Kind is "approved" or
// "denied".
type PermissionResult struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason,omitempty"`
}

// UserInputRequest is the payload of an incoming userInput.request.
type UserInputRequest struct {
	SessionId string   `json:"sessionId"`
	Prompt    string   `json:"prompt,omitempty"`
	Choices   []string `json:"choices,omitempty"`
	Secret    bool     `json:"secret,omitempty"`
}

// UserInputResponse answers a userInput.request.
type UserInputResponse struct {
	Value     string `json:"value"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

// HookInvocation is the payload of an incoming hooks.invoke.
type HookInvocation struct {
	SessionId string          `json:"sessionId"`
	Hook      string          `json:"hook"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// HookResult is the output of a hook execution.
type HookResult struct {
	Decision string          `json:"decision,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}
