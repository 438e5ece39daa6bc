// Package protocol defines the wire envelope and the typed events exchanged
// with the diagnosis backend over the event stream.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the unit of wire communication in both directions.
type Envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewEnvelope builds an outbound envelope with the current UTC timestamp.
func NewEnvelope(msgType string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	return Envelope{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}, nil
}

// Backend → client event types.
const (
	TypeAgentMessage         = "agent_message"
	TypeActionProposal       = "action_proposal"
	TypeDiagnosisStatus      = "diagnosis_status"
	TypeTimelineUpdate       = "timeline_update"
	TypeConfidenceUpdate     = "confidence_update"
	TypeConfirmationRequired = "confirmation_required"
	TypeError                = "error"
	TypeTraceStart           = "agent_trace_start"
	TypeTraceStep            = "agent_trace_step"
	TypeTraceComplete        = "agent_trace_complete"
)

// Client → backend command types.
const (
	TypeStartDiagnosis       = "start_diagnosis"
	TypeStopDiagnosis        = "stop_diagnosis"
	TypeApproveAction        = "approve_action"
	TypeRejectAction         = "reject_action"
	TypePauseDiagnosis       = "pause_diagnosis"
	TypeResumeDiagnosis      = "resume_diagnosis"
	TypeConfirmationResponse = "confirmation_response"
)

// Agent message categories.
const (
	CategoryInfo       = "info"
	CategoryHypothesis = "hypothesis"
	CategoryAction     = "action"
	CategoryEvidence   = "evidence"
	CategoryDecision   = "decision"
	CategoryError      = "error"
)

// Risk levels attached to proposals and confirmations.
const (
	RiskLow      = "low"
	RiskMedium   = "medium"
	RiskHigh     = "high"
	RiskCritical = "critical"
)

// Backend → client payloads.

// AgentMessage is one utterance attributed to an agent during a session.
type AgentMessage struct {
	ID        string `json:"id"`
	Agent     string `json:"agent"`
	Timestamp string `json:"timestamp"`
	Content   string `json:"content"`
	Category  string `json:"type"`
}

// ActionProposal is a remediation the backend wants an operator to approve.
type ActionProposal struct {
	ID                   string `json:"id"`
	Title                string `json:"title"`
	Description          string `json:"description"`
	Confidence           int    `json:"confidence"`
	RiskLevel            string `json:"riskLevel,omitempty"`
	RequiresConfirmation bool   `json:"requiresConfirmation,omitempty"`
	CanBeInterrupted     bool   `json:"canBeInterrupted,omitempty"`
}

// DiagnosisStatus reports the backend's view of the running diagnosis.
type DiagnosisStatus struct {
	Status      string `json:"status"`
	Progress    int    `json:"progress,omitempty"`
	CurrentStep string `json:"currentStep,omitempty"`
}

// TimelineStep is one entry in the diagnosis timeline.
type TimelineStep struct {
	ID       int    `json:"id"`
	Step     string `json:"step"`
	Status   string `json:"status"`
	Duration string `json:"duration,omitempty"`
	Agent    string `json:"agent,omitempty"`
	Output   string `json:"output,omitempty"`
}

// TimelineUpdate replaces the session's timeline wholesale.
type TimelineUpdate struct {
	Timeline []TimelineStep `json:"timeline"`
}

// ConfidenceUpdate carries the session confidence percentage (0-100).
type ConfidenceUpdate struct {
	Confidence int `json:"confidence"`
}

// ConfirmationOption is one selectable answer to a confirmation request.
type ConfirmationOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Confirmation is a blocking request for a human decision.
type Confirmation struct {
	ID            string               `json:"id"`
	ActionID      string               `json:"actionId"`
	Message       string               `json:"message"`
	Description   string               `json:"description,omitempty"`
	Options       []ConfirmationOption `json:"options,omitempty"`
	DefaultOption string               `json:"defaultOption,omitempty"`
	RiskLevel     string               `json:"riskLevel,omitempty"`
	Timeout       int                  `json:"timeout,omitempty"`
}

// ErrorNotice is an application-level error event. Its content is logged,
// not retained in session state.
type ErrorNotice struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// TokenUsage counts tokens flowing into and out of a model call.
type TokenUsage struct {
	Input  int `json:"input"`
	Output int `json:"output"`
}

// SubtaskProgress reports how many subtasks a trace has finished.
type SubtaskProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// TraceStart announces a new agent execution. ParentID is empty for roots.
type TraceStart struct {
	AgentID   string           `json:"agentId"`
	AgentName string           `json:"agentName"`
	ParentID  string           `json:"parentId,omitempty"`
	StartTime string           `json:"startTime"`
	Task      string           `json:"taskDescription,omitempty"`
	Subtasks  *SubtaskProgress `json:"subtasks,omitempty"`
}

// Execution step kinds.
const (
	StepTaskReceived  = "task_received"
	StepLLMThinking   = "llm_thinking"
	StepToolCall      = "tool_call"
	StepAgentDispatch = "agent_dispatch"
)

// TraceStep records one action within a running trace. Fields beyond the
// common set are populated per step kind.
type TraceStep struct {
	AgentID   string `json:"agentId"`
	ID        string `json:"id"`
	Kind      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Duration  int64  `json:"duration,omitempty"` // milliseconds

	// task_received
	Input string `json:"input,omitempty"`

	// llm_thinking
	Content string      `json:"content,omitempty"`
	Tokens  *TokenUsage `json:"tokens,omitempty"`
	Cost    float64     `json:"cost,omitempty"`

	// tool_call
	ToolName   string          `json:"toolName,omitempty"`
	ToolInput  json.RawMessage `json:"toolInput,omitempty"`
	ToolOutput json.RawMessage `json:"toolOutput,omitempty"`
	Status     string          `json:"status,omitempty"` // success | failed

	// agent_dispatch
	TargetAgentID   string `json:"targetAgentId,omitempty"`
	TargetAgentName string `json:"targetAgentName,omitempty"`
	Task            string `json:"taskDescription,omitempty"`
}

// TraceComplete finalizes a trace with authoritative totals.
type TraceComplete struct {
	AgentID     string     `json:"agentId"`
	Status      string     `json:"status"` // success | failed
	EndTime     string     `json:"endTime"`
	Duration    int64      `json:"duration"` // milliseconds
	TotalTokens TokenUsage `json:"totalTokens"`
	Error       string     `json:"error,omitempty"`
}

// Client → backend payloads.

// StartDiagnosisCommand asks the backend to begin a diagnosis run.
type StartDiagnosisCommand struct {
	AgentType   string         `json:"agent_type"`
	Symptom     string         `json:"symptom"`
	Description string         `json:"description"`
	Context     map[string]any `json:"context,omitempty"`
}

// StopDiagnosisCommand stops the active run.
type StopDiagnosisCommand struct {
	Reason string `json:"reason,omitempty"`
}

// ActionCommand approves or rejects the standing action proposal.
type ActionCommand struct {
	ActionID string `json:"actionId"`
	Reason   string `json:"reason,omitempty"`
}

// ConfirmationResponseCommand answers a pending confirmation.
type ConfirmationResponseCommand struct {
	ConfirmationID string `json:"confirmationId"`
	Response       any    `json:"response"`
}
