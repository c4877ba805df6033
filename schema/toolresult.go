package schema

import "encoding/json"

const (
	resultTypeSuccess = "success"
	resultTypeFailure = "failure"
)

// Binary is an opaque binary artifact attached to an object tool result.
type Binary struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

// ToolResult is the outcome of a client-side tool invocation. It is a sum of
// three shapes - success, failure and object - each with a canonical wire
// form the agent expects; use the constructors rather than building the
// struct directly.
type ToolResult struct {
	TextResultForLlm string                 `json:"textResultForLlm"`
	ResultType       string                 `json:"resultType"`
	Err              string                 `json:"error,omitempty"`
	ToolTelemetry    map[string]interface{} `json:"toolTelemetry"`
	Binaries         []Binary               `json:"binaries,omitempty"`
	SessionLog       string                 `json:"sessionLog,omitempty"`
}

// NewSuccessResult creates a success result carrying the text shown to the model.
func NewSuccessResult(text string) *ToolResult {
	return &ToolResult{
		TextResultForLlm: text,
		ResultType:       resultTypeSuccess,
		ToolTelemetry:    map[string]interface{}{},
	}
}

// NewFailureResult creates a failure result. textForLlm overrides what the
// model sees; when empty the error text is used.
func NewFailureResult(errMessage, textForLlm string) *ToolResult {
	if textForLlm == "" {
		textForLlm = errMessage
	}
	return &ToolResult{
		TextResultForLlm: textForLlm,
		ResultType:       resultTypeFailure,
		Err:              errMessage,
		ToolTelemetry:    map[string]interface{}{},
	}
}

// NewObjectResult creates a result with an explicit result type and optional
// artifacts; nil optional fields are omitted from the wire form.
func NewObjectResult(text, kind string) *ToolResult {
	return &ToolResult{
		TextResultForLlm: text,
		ResultType:       kind,
		ToolTelemetry:    map[string]interface{}{},
	}
}

// WithError attaches an error to an object result.
func (r *ToolResult) WithError(errMessage string) *ToolResult {
	r.Err = errMessage
	return r
}

// WithTelemetry attaches telemetry to the result.
func (r *ToolResult) WithTelemetry(telemetry map[string]interface{}) *ToolResult {
	r.ToolTelemetry = telemetry
	return r
}

// WithBinaries attaches binary artifacts to the result.
func (r *ToolResult) WithBinaries(binaries ...Binary) *ToolResult {
	r.Binaries = binaries
	return r
}

// WithSessionLog attaches a session log excerpt to the result.
func (r *ToolResult) WithSessionLog(sessionLog string) *ToolResult {
	r.SessionLog = sessionLog
	return r
}

// IsFailure reports whether the result is a failure.
func (r *ToolResult) IsFailure() bool {
	return r.ResultType == resultTypeFailure
}

// MarshalJSON keeps toolTelemetry present (as {}) even when empty; the agent
// requires the field on success and failure results.
func (r *ToolResult) MarshalJSON() ([]byte, error) {
	type alias ToolResult
	clone := alias(*r)
	if clone.ToolTelemetry == nil {
		clone.ToolTelemetry = map[string]interface{}{}
	}
	return json.Marshal(&clone)
}
