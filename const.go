package agentrpc

// Version is the JSON-RPC protocol version.
const Version = "2.0"

// ProtocolVersion is the agent protocol revision this SDK speaks. The server
// reports its own revision in the ping result during the start handshake; a
// mismatch (or an absent value) fails the handshake.
const ProtocolVersion = 2

const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)
