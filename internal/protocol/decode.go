package protocol

import (
	"encoding/json"
	"fmt"
)

// Event is the decoded form of an inbound envelope. The concrete type is one
// of the payload structs in this package, or Unknown for unrecognized tags.
// The set is closed: consumers switch over every variant.
type Event interface {
	eventType() string
}

func (AgentMessage) eventType() string    { return TypeAgentMessage }
func (ActionProposal) eventType() string  { return TypeActionProposal }
func (DiagnosisStatus) eventType() string { return TypeDiagnosisStatus }
func (TimelineUpdate) eventType() string  { return TypeTimelineUpdate }
func (ConfidenceUpdate) eventType() string {
	return TypeConfidenceUpdate
}
func (Confirmation) eventType() string  { return TypeConfirmationRequired }
func (ErrorNotice) eventType() string   { return TypeError }
func (TraceStart) eventType() string    { return TypeTraceStart }
func (TraceStep) eventType() string     { return TypeTraceStep }
func (TraceComplete) eventType() string { return TypeTraceComplete }

// Unknown stands in for any envelope whose type tag is not recognized.
// It is dropped by consumers after a log line; receiving one is not an error.
type Unknown struct {
	Type string
}

func (u Unknown) eventType() string { return u.Type }

// Decode parses an inbound envelope into its typed event. An unrecognized
// type tag yields Unknown, nil; a malformed payload yields an error.
func Decode(env Envelope) (Event, error) {
	switch env.Type {
	case TypeAgentMessage:
		return decodeAs[AgentMessage](env)
	case TypeActionProposal:
		return decodeAs[ActionProposal](env)
	case TypeDiagnosisStatus:
		return decodeAs[DiagnosisStatus](env)
	case TypeTimelineUpdate:
		return decodeAs[TimelineUpdate](env)
	case TypeConfidenceUpdate:
		return decodeAs[ConfidenceUpdate](env)
	case TypeConfirmationRequired:
		return decodeAs[Confirmation](env)
	case TypeError:
		return decodeAs[ErrorNotice](env)
	case TypeTraceStart:
		return decodeAs[TraceStart](env)
	case TypeTraceStep:
		return decodeAs[TraceStep](env)
	case TypeTraceComplete:
		return decodeAs[TraceComplete](env)
	default:
		return Unknown{Type: env.Type}, nil
	}
}

func decodeAs[T Event](env Envelope) (Event, error) {
	var payload T
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Type, err)
		}
	}
	return payload, nil
}
