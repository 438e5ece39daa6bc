// Package command translates operator intents into outbound envelopes.
package command

import (
	"github.com/starhyc/problem-diagnosis-assistant/internal/protocol"
)

// Sender writes a typed envelope to the backend. Satisfied by
// transport.Channel; tests use a fake.
type Sender interface {
	Send(msgType string, data any) error
}

// Emitter is a thin, stateless translation layer over a Sender. Every
// operation is fire-and-forget: success is inferred only from subsequently
// arriving events.
type Emitter struct {
	sender Sender
}

// NewEmitter wraps the given sender.
func NewEmitter(s Sender) *Emitter {
	return &Emitter{sender: s}
}

// StartDiagnosis asks the backend to begin a run.
func (e *Emitter) StartDiagnosis(agentType, symptom, description string, ctx map[string]any) error {
	return e.sender.Send(protocol.TypeStartDiagnosis, protocol.StartDiagnosisCommand{
		AgentType:   agentType,
		Symptom:     symptom,
		Description: description,
		Context:     ctx,
	})
}

// StopDiagnosis stops the active run.
func (e *Emitter) StopDiagnosis(reason string) error {
	return e.sender.Send(protocol.TypeStopDiagnosis, protocol.StopDiagnosisCommand{Reason: reason})
}

// ApproveAction approves the standing action proposal.
func (e *Emitter) ApproveAction(actionID string) error {
	return e.sender.Send(protocol.TypeApproveAction, protocol.ActionCommand{ActionID: actionID})
}

// RejectAction rejects the standing action proposal with an optional reason.
func (e *Emitter) RejectAction(actionID, reason string) error {
	return e.sender.Send(protocol.TypeRejectAction, protocol.ActionCommand{ActionID: actionID, Reason: reason})
}

// PauseDiagnosis is reserved; no UI control is wired to it yet.
func (e *Emitter) PauseDiagnosis() error {
	return e.sender.Send(protocol.TypePauseDiagnosis, struct{}{})
}

// ResumeDiagnosis is reserved; no UI control is wired to it yet.
func (e *Emitter) ResumeDiagnosis() error {
	return e.sender.Send(protocol.TypeResumeDiagnosis, struct{}{})
}

// RespondToConfirmation answers a pending confirmation. Response may be a
// plain accept/reject value or an edited-parameters object.
func (e *Emitter) RespondToConfirmation(confirmationID string, response any) error {
	return e.sender.Send(protocol.TypeConfirmationResponse, protocol.ConfirmationResponseCommand{
		ConfirmationID: confirmationID,
		Response:       response,
	})
}
