package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError string
		verify    func(t *testing.T, evt Event)
	}{
		{
			name:  "assistant message",
			input: `{"id":"e1","type":"assistant.message","timestamp":"2026-08-26T10:00:00Z","content":"hello"}`,
			verify: func(t *testing.T, evt Event) {
				message, ok := evt.(*AssistantMessage)
				require.True(t, ok)
				assert.Equal(t, "hello", message.Content)
				assert.Equal(t, "e1", message.EventBase().Id)
			},
		},
		{
			name:  "delta",
			input: `{"id":"e2","type":"assistant.message_delta","deltaContent":"Wo"}`,
			verify: func(t *testing.T, evt Event) {
				delta, ok := evt.(*AssistantMessageDelta)
				require.True(t, ok)
				assert.Equal(t, "Wo", delta.DeltaContent)
			},
		},
		{
			name:  "nested data layout",
			input: `{"id":"e3","type":"assistant.message","data":{"content":"nested"}}`,
			verify: func(t *testing.T, evt Event) {
				message, ok := evt.(*AssistantMessage)
				require.True(t, ok)
				assert.Equal(t, "nested", message.Content)
			},
		},
		{
			name:  "flat field wins over nested",
			input: `{"id":"e4","type":"assistant.message","content":"flat","data":{"content":"nested"}}`,
			verify: func(t *testing.T, evt Event) {
				assert.Equal(t, "flat", evt.(*AssistantMessage).Content)
			},
		},
		{
			name:      "missing required field",
			input:     `{"id":"e5","type":"assistant.message"}`,
			wantError: `missing required field "content"`,
		},
		{
			name:  "session start carries its own sessionId",
			input: `{"id":"e6","type":"session.start","sessionId":"s1"}`,
			verify: func(t *testing.T, evt Event) {
				assert.Equal(t, "s1", evt.(*SessionStart).SessionId)
			},
		},
		{
			name:  "session error",
			input: `{"id":"e7","type":"session.error","message":"rate limit"}`,
			verify: func(t *testing.T, evt Event) {
				assert.Equal(t, "rate limit", evt.(*SessionError).Message)
			},
		},
		{
			name:  "unknown discriminator preserves raw",
			input: `{"id":"e8","type":"totally.new","extra":42}`,
			verify: func(t *testing.T, evt Event) {
				unknown, ok := evt.(*Unknown)
				require.True(t, ok)
				assert.Equal(t, "totally.new", unknown.EventType())
				assert.JSONEq(t, `{"id":"e8","type":"totally.new","extra":42}`, string(unknown.Raw))
			},
		},
		{
			name:      "missing discriminator",
			input:     `{"id":"e9"}`,
			wantError: "missing type",
		},
		{
			name:  "ephemeral flag",
			input: `{"id":"e10","type":"assistant.streaming_delta","deltaContent":"x","ephemeral":true}`,
			verify: func(t *testing.T, evt Event) {
				assert.True(t, evt.EventBase().Ephemeral)
			},
		},
		{
			name:  "tool execution complete",
			input: `{"id":"e11","type":"tool.execution_complete","toolCallId":"tc1","result":{"ok":true}}`,
			verify: func(t *testing.T, evt Event) {
				complete := evt.(*ToolExecutionComplete)
				assert.Equal(t, "tc1", complete.ToolCallId)
				assert.JSONEq(t, `{"ok":true}`, string(complete.Result))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := Parse([]byte(tt.input))
			if tt.wantError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantError)
				return
			}
			require.NoError(t, err)
			tt.verify(t, evt)
		})
	}
}
