package event

import "encoding/json"

// Session lifecycle discriminators.
const (
	TypeSessionStart                = "session.start"
	TypeSessionResume               = "session.resume"
	TypeSessionError                = "session.error"
	TypeSessionIdle                 = "session.idle"
	TypeSessionShutdown             = "session.shutdown"
	TypeSessionTitleChanged         = "session.title_changed"
	TypeSessionModelChange          = "session.model_change"
	TypeSessionModeChanged          = "session.mode_changed"
	TypeSessionPlanChanged          = "session.plan_changed"
	TypeSessionTruncation           = "session.truncation"
	TypeSessionInfo                 = "session.info"
	TypeSessionWarning              = "session.warning"
	TypeSessionHandoff              = "session.handoff"
	TypeSessionWorkspaceFileChanged = "session.workspace_file_changed"
	TypeSessionSnapshotRewind       = "session.snapshot_rewind"
	TypeSessionContextChanged       = "session.context_changed"
	TypeSessionUsageInfo            = "session.usage_info"
	TypeSessionCompactionStart      = "session.compaction_start"
	TypeSessionCompactionComplete   = "session.compaction_complete"
	TypeSessionTaskComplete         = "session.task_complete"
)

// Message and assistant discriminators.
const (
	TypeUserMessage             = "user.message"
	TypeSystemMessage           = "system.message"
	TypePendingMessagesModified = "pending_messages.modified"

	TypeAssistantTurnStart      = "assistant.turn_start"
	TypeAssistantIntent         = "assistant.intent"
	TypeAssistantReasoning      = "assistant.reasoning"
	TypeAssistantReasoningDelta = "assistant.reasoning_delta"
	TypeAssistantStreamingDelta = "assistant.streaming_delta"
	TypeAssistantMessage        = "assistant.message"
	TypeAssistantMessageDelta   = "assistant.message_delta"
	TypeAssistantTurnEnd        = "assistant.turn_end"
	TypeAssistantUsage          = "assistant.usage"
	TypeAssistantThinking       = "assistant.thinking"

	TypeAbort = "abort"
)

// Tool, skill, subagent and hook discriminators.
const (
	TypeToolUserRequested           = "tool.user_requested"
	TypeToolCall                    = "tool.call"
	TypeToolExecutionStart          = "tool.execution_start"
	TypeToolExecutionPartialResult  = "tool.execution_partial_result"
	TypeToolExecutionProgress       = "tool.execution_progress"
	TypeToolExecutionComplete       = "tool.execution_complete"
	TypeSkillInvoked                = "skill.invoked"
	TypeSubagentStarted             = "subagent.started"
	TypeSubagentCompleted           = "subagent.completed"
	TypeSubagentFailed              = "subagent.failed"
	TypeSubagentSelected            = "subagent.selected"
	TypeHookStart                   = "hook.start"
	TypeHookEnd                     = "hook.end"
)

// SessionStart announces a new session; its sessionId lives in the payload
// itself, not only on the routing envelope.
type SessionStart struct {
	Base
	SessionId string `json:"sessionId"`
}

// SessionResume announces a resumed session.
type SessionResume struct {
	Base
	SessionId string `json:"sessionId"`
}

// SessionError reports a session-level failure.
type SessionError struct {
	Base
	Message string `json:"message"`
}

// SessionIdle marks that the agent finished reacting to the latest input.
type SessionIdle struct {
	Base
}

// SessionShutdown announces the session is going away.
type SessionShutdown struct {
	Base
	Reason string `json:"reason,omitempty"`
}

// SessionTitleChanged carries the new session title.
type SessionTitleChanged struct {
	Base
	Title string `json:"title"`
}

// SessionModelChange reports the active model changed.
type SessionModelChange struct {
	Base
	Model string `json:"model"`
}

// SessionModeChanged reports the session mode changed.
type SessionModeChanged struct {
	Base
	Mode string `json:"mode"`
}

// SessionPlanChanged reports the plan document changed.
type SessionPlanChanged struct {
	Base
	Plan string `json:"plan,omitempty"`
}

// SessionTruncation reports history truncation.
type SessionTruncation struct {
	Base
	DroppedMessages int `json:"droppedMessages,omitempty"`
}

// SessionInfo is an informational message.
type SessionInfo struct {
	Base
	Message string `json:"message,omitempty"`
}

// SessionWarning is a warning message.
type SessionWarning struct {
	Base
	Message string `json:"message,omitempty"`
}

// SessionHandoff reports the session moved to another agent.
type SessionHandoff struct {
	Base
	Target string `json:"target,omitempty"`
}

// SessionWorkspaceFileChanged reports a file change under the workspace.
type SessionWorkspaceFileChanged struct {
	Base
	Path string `json:"path"`
}

// SessionSnapshotRewind reports the session rewound to a snapshot.
type SessionSnapshotRewind struct {
	Base
	SnapshotId string `json:"snapshotId,omitempty"`
}

// SessionContextChanged carries an opaque context update.
type SessionContextChanged struct {
	Base
	Context json.RawMessage `json:"context,omitempty"`
}

// SessionUsageInfo carries usage counters.
type SessionUsageInfo struct {
	Base
	Usage json.RawMessage `json:"usage,omitempty"`
}

// SessionCompactionStart marks the beginning of history compaction.
type SessionCompactionStart struct {
	Base
}

// SessionCompactionComplete marks the end of history compaction.
type SessionCompactionComplete struct {
	Base
}

// SessionTaskComplete reports a background task finished.
type SessionTaskComplete struct {
	Base
	TaskId string `json:"taskId,omitempty"`
}

// UserMessage echoes a user prompt into the stream.
type UserMessage struct {
	Base
	Content string `json:"content"`
}

// SystemMessage carries a system-injected message.
type SystemMessage struct {
	Base
	Content string `json:"content,omitempty"`
}

// PendingMessagesModified reports queued user messages changed.
type PendingMessagesModified struct {
	Base
	Count int `json:"count,omitempty"`
}

// AssistantTurnStart marks the beginning of an assistant turn.
type AssistantTurnStart struct {
	Base
}

// AssistantIntent reports what the assistant is about to do.
type AssistantIntent struct {
	Base
	Intent string `json:"intent,omitempty"`
}

// AssistantReasoning carries a complete reasoning block.
type AssistantReasoning struct {
	Base
	Content string `json:"content,omitempty"`
}

// AssistantReasoningDelta is a streamed reasoning fragment.
type AssistantReasoningDelta struct {
	Base
	DeltaContent string `json:"deltaContent"`
}

// AssistantStreamingDelta is a streamed raw output fragment.
type AssistantStreamingDelta struct {
	Base
	DeltaContent string `json:"deltaContent"`
}

// AssistantMessage carries a complete assistant message.
type AssistantMessage struct {
	Base
	Content string `json:"content"`
}

// AssistantMessageDelta is a streamed assistant message fragment; fragments
// concatenate in arrival order.
type AssistantMessageDelta struct {
	Base
	DeltaContent string `json:"deltaContent"`
}

// AssistantTurnEnd marks the end of an assistant turn.
type AssistantTurnEnd struct {
	Base
}

// AssistantUsage carries per-turn token usage.
type AssistantUsage struct {
	Base
	InputTokens  int `json:"inputTokens,omitempty"`
	OutputTokens int `json:"outputTokens,omitempty"`
}

// AssistantThinking carries a thinking block.
type AssistantThinking struct {
	Base
	Content string `json:"content,omitempty"`
}

// Abort reports the current turn was aborted.
type Abort struct {
	Base
	Reason string `json:"reason,omitempty"`
}

// ToolUserRequested reports the user asked for a tool run.
type ToolUserRequested struct {
	Base
	ToolName string `json:"toolName"`
}

// ToolCall mirrors a tool invocation into the event stream.
type ToolCall struct {
	Base
	ToolName   string          `json:"toolName"`
	ToolCallId string          `json:"toolCallId"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
}

// ToolExecutionStart marks a tool execution starting.
type ToolExecutionStart struct {
	Base
	ToolCallId string `json:"toolCallId"`
	ToolName   string `json:"toolName,omitempty"`
}

// ToolExecutionPartialResult streams partial tool output.
type ToolExecutionPartialResult struct {
	Base
	ToolCallId string `json:"toolCallId"`
	Content    string `json:"content,omitempty"`
}

// ToolExecutionProgress streams tool progress.
type ToolExecutionProgress struct {
	Base
	ToolCallId string  `json:"toolCallId"`
	Progress   float64 `json:"progress,omitempty"`
}

// ToolExecutionComplete marks a tool execution finished.
type ToolExecutionComplete struct {
	Base
	ToolCallId string          `json:"toolCallId"`
	Result     json.RawMessage `json:"result,omitempty"`
}

// SkillInvoked reports a skill ran.
type SkillInvoked struct {
	Base
	Skill string `json:"skill,omitempty"`
}

// SubagentStarted reports a subagent started.
type SubagentStarted struct {
	Base
	SubagentId string `json:"subagentId,omitempty"`
}

// SubagentCompleted reports a subagent finished.
type SubagentCompleted struct {
	Base
	SubagentId string `json:"subagentId,omitempty"`
}

// SubagentFailed reports a subagent failure.
type SubagentFailed struct {
	Base
	SubagentId string `json:"subagentId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SubagentSelected reports a subagent was chosen.
type SubagentSelected struct {
	Base
	SubagentId string `json:"subagentId,omitempty"`
}

// HookStart marks a hook invocation starting.
type HookStart struct {
	Base
	Hook string `json:"hook"`
}

// HookEnd marks a hook invocation finished.
type HookEnd struct {
	Base
	Hook string `json:"hook"`
}

func init() {
	register(TypeSessionStart, []string{"sessionId"}, func(data []byte) (Event, error) {
		e := &SessionStart{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionResume, []string{"sessionId"}, func(data []byte) (Event, error) {
		e := &SessionResume{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionError, []string{"message"}, func(data []byte) (Event, error) {
		e := &SessionError{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionIdle, nil, func(data []byte) (Event, error) {
		e := &SessionIdle{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionShutdown, nil, func(data []byte) (Event, error) {
		e := &SessionShutdown{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionTitleChanged, []string{"title"}, func(data []byte) (Event, error) {
		e := &SessionTitleChanged{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionModelChange, []string{"model"}, func(data []byte) (Event, error) {
		e := &SessionModelChange{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionModeChanged, []string{"mode"}, func(data []byte) (Event, error) {
		e := &SessionModeChanged{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionPlanChanged, nil, func(data []byte) (Event, error) {
		e := &SessionPlanChanged{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionTruncation, nil, func(data []byte) (Event, error) {
		e := &SessionTruncation{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionInfo, nil, func(data []byte) (Event, error) {
		e := &SessionInfo{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionWarning, nil, func(data []byte) (Event, error) {
		e := &SessionWarning{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionHandoff, nil, func(data []byte) (Event, error) {
		e := &SessionHandoff{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionWorkspaceFileChanged, []string{"path"}, func(data []byte) (Event, error) {
		e := &SessionWorkspaceFileChanged{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionSnapshotRewind, nil, func(data []byte) (Event, error) {
		e := &SessionSnapshotRewind{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionContextChanged, nil, func(data []byte) (Event, error) {
		e := &SessionContextChanged{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionUsageInfo, nil, func(data []byte) (Event, error) {
		e := &SessionUsageInfo{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionCompactionStart, nil, func(data []byte) (Event, error) {
		e := &SessionCompactionStart{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionCompactionComplete, nil, func(data []byte) (Event, error) {
		e := &SessionCompactionComplete{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSessionTaskComplete, nil, func(data []byte) (Event, error) {
		e := &SessionTaskComplete{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeUserMessage, []string{"content"}, func(data []byte) (Event, error) {
		e := &UserMessage{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSystemMessage, nil, func(data []byte) (Event, error) {
		e := &SystemMessage{}
		return e, json.Unmarshal(data, e)
	})
	register(TypePendingMessagesModified, nil, func(data []byte) (Event, error) {
		e := &PendingMessagesModified{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeAssistantTurnStart, nil, func(data []byte) (Event, error) {
		e := &AssistantTurnStart{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeAssistantIntent, nil, func(data []byte) (Event, error) {
		e := &AssistantIntent{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeAssistantReasoning, nil, func(data []byte) (Event, error) {
		e := &AssistantReasoning{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeAssistantReasoningDelta, []string{"deltaContent"}, func(data []byte) (Event, error) {
		e := &AssistantReasoningDelta{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeAssistantStreamingDelta, []string{"deltaContent"}, func(data []byte) (Event, error) {
		e := &AssistantStreamingDelta{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeAssistantMessage, []string{"content"}, func(data []byte) (Event, error) {
		e := &AssistantMessage{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeAssistantMessageDelta, []string{"deltaContent"}, func(data []byte) (Event, error) {
		e := &AssistantMessageDelta{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeAssistantTurnEnd, nil, func(data []byte) (Event, error) {
		e := &AssistantTurnEnd{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeAssistantUsage, nil, func(data []byte) (Event, error) {
		e := &AssistantUsage{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeAssistantThinking, nil, func(data []byte) (Event, error) {
		e := &AssistantThinking{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeAbort, nil, func(data []byte) (Event, error) {
		e := &Abort{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeToolUserRequested, []string{"toolName"}, func(data []byte) (Event, error) {
		e := &ToolUserRequested{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeToolCall, []string{"toolName", "toolCallId"}, func(data []byte) (Event, error) {
		e := &ToolCall{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeToolExecutionStart, []string{"toolCallId"}, func(data []byte) (Event, error) {
		e := &ToolExecutionStart{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeToolExecutionPartialResult, []string{"toolCallId"}, func(data []byte) (Event, error) {
		e := &ToolExecutionPartialResult{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeToolExecutionProgress, []string{"toolCallId"}, func(data []byte) (Event, error) {
		e := &ToolExecutionProgress{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeToolExecutionComplete, []string{"toolCallId"}, func(data []byte) (Event, error) {
		e := &ToolExecutionComplete{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSkillInvoked, nil, func(data []byte) (Event, error) {
		e := &SkillInvoked{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSubagentStarted, nil, func(data []byte) (Event, error) {
		e := &SubagentStarted{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSubagentCompleted, nil, func(data []byte) (Event, error) {
		e := &SubagentCompleted{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSubagentFailed, nil, func(data []byte) (Event, error) {
		e := &SubagentFailed{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeSubagentSelected, nil, func(data []byte) (Event, error) {
		e := &SubagentSelected{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeHookStart, []string{"hook"}, func(data []byte) (Event, error) {
		e := &HookStart{}
		return e, json.Unmarshal(data, e)
	})
	register(TypeHookEnd, []string{"hook"}, func(data []byte) (Event, error) {
		e := &HookEnd{}
		return e, json.Unmarshal(data, e)
	})
}
