package agentrpc

import (
	"encoding/json"
	"errors"
)

// MessageType is an enumeration of the types of messages in the JSON-RPC protocol.
type MessageType string

const (
	MessageTypeRequest      MessageType = "request"
	MessageTypeNotification MessageType = "notification"
	MessageTypeResponse     MessageType = "response"
	MessageTypeUnknown      MessageType = "unknown"
)

// Message is a wrapper around the different types of JSON-RPC messages (Request, Notification, Response).
type Message struct {
	Type                MessageType
	JsonRpcRequest      *Request
	JsonRpcNotification *Notification
	JsonRpcResponse     *Response
}

// Method returns the method of the underlying message, or an empty string for responses.
func (m *Message) Method() string {
	switch m.Type {
	case MessageTypeRequest:
		return m.JsonRpcRequest.Method
	case MessageTypeNotification:
		return m.JsonRpcNotification.Method
	default:
		return ""
	}
}

// MarshalJSON is a custom JSON marshaler for the Message type.
func (m *Message) MarshalJSON() ([]byte, error) {
	switch m.Type {
	case MessageTypeRequest:
		return json.Marshal(m.JsonRpcRequest)
	case MessageTypeNotification:
		return json.Marshal(m.JsonRpcNotification)
	case MessageTypeResponse:
		return json.Marshal(m.JsonRpcResponse)
	default:
		return nil, errors.New("unknown message type, couldn't marshal")
	}
}

// NewNotificationMessage creates a new JSON-RPC message of type Notification.
func NewNotificationMessage(notification *Notification) *Message {
	return &Message{
		Type:                MessageTypeNotification,
		JsonRpcNotification: notification,
	}
}

// NewRequestMessage creates a new JSON-RPC message of type Request.
func NewRequestMessage(request *Request) *Message {
	return &Message{
		Type:           MessageTypeRequest,
		JsonRpcRequest: request,
	}
}

// NewResponseMessage creates a new JSON-RPC message of type Response.
func NewResponseMessage(response *Response) *Message {
	return &Message{
		Type:            MessageTypeResponse,
		JsonRpcResponse: response,
	}
}

type probe struct {
	Id     RequestId        `json:"id"`
	Method string           `json:"method"`
	Result *json.RawMessage `json:"result"`
	Error  *Error           `json:"error"`
}

// TypeOf classifies a raw JSON-RPC envelope. A message carrying an id
// together with a result or error is a response to one of our requests; a
// method with an id is an incoming request; a method without an id is a
// notification. Anything else is unknown and gets logged and dropped by the
// connection.
func TypeOf(data []byte) MessageType {
	p := &probe{}
	if err := json.Unmarshal(data, p); err != nil {
		return MessageTypeUnknown
	}
	switch {
	case p.Id != nil && (p.Result != nil || p.Error != nil):
		return MessageTypeResponse
	case p.Method != "" && p.Id != nil:
		return MessageTypeRequest
	case p.Method != "":
		return MessageTypeNotification
	}
	return MessageTypeUnknown
}
