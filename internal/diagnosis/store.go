package diagnosis

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starhyc/problem-diagnosis-assistant/internal/command"
	"github.com/starhyc/problem-diagnosis-assistant/internal/protocol"
	"github.com/starhyc/problem-diagnosis-assistant/internal/trace"
)

// ErrEmptySymptom is returned by Start before any network call is made.
var ErrEmptySymptom = errors.New("symptom must not be empty")

// ErrNoProposal is returned when approving or rejecting without a standing
// action proposal.
var ErrNoProposal = errors.New("no standing action proposal")

// actionPlaceholder stands in for a real action identifier; the backend
// resolves approve/reject against its current proposal.
const actionPlaceholder = "current-action"

// Starter issues the backend start request. Satisfied by api.Client.
type Starter interface {
	StartDiagnosis(ctx context.Context, agentType, symptom, description string) error
}

// Recorder archives finished cases. Satisfied by archive.Store.
type Recorder interface {
	RecordCase(c Case, traces []trace.Trace) error
}

// Store owns the single active-or-last case and the trace forest, and
// mediates start/stop commands. All mutation flows through HandleEnvelope
// or the explicit command methods; reads return copies.
type Store struct {
	mu           sync.Mutex
	kase         *Case
	running      bool
	proposal     *Proposal
	confirmation *protocol.Confirmation
	agentType    string

	traces   *trace.Reconciler
	emitter  *command.Emitter
	backend  Starter
	recorder Recorder
	now      func() time.Time

	changed chan struct{}
}

// NewStore wires a store to its command emitter. backend and recorder may
// be nil; the corresponding calls are skipped.
func NewStore(emitter *command.Emitter, backend Starter, recorder Recorder) *Store {
	return &Store{
		traces:    trace.NewReconciler(),
		emitter:   emitter,
		backend:   backend,
		recorder:  recorder,
		agentType: DefaultAgentType,
		now:       time.Now,
		changed:   make(chan struct{}, 1),
	}
}

// Changes signals after each applied mutation. The channel is coalescing:
// a slow reader sees at least one signal, not one per event.
func (s *Store) Changes() <-chan struct{} { return s.changed }

func (s *Store) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// HandleEnvelope decodes and applies one inbound envelope. It never returns
// an error: faults are absorbed and logged so one bad event cannot break the
// dispatch loop. Intended to be registered via transport.Channel.OnMessage.
func (s *Store) HandleEnvelope(env protocol.Envelope) {
	ev, err := protocol.Decode(env)
	if err != nil {
		slog.Warn("Dropping malformed event", "type", env.Type, "error", err)
		return
	}
	s.HandleEvent(ev)
}

// HandleEvent applies one decoded event. Each event is applied fully before
// the next; readers never observe a partial update.
func (s *Store) HandleEvent(ev protocol.Event) {
	s.mu.Lock()
	switch e := ev.(type) {
	case protocol.AgentMessage:
		if s.kase != nil {
			if e.ID == "" {
				e.ID = uuid.NewString()
			}
			s.kase.Messages = append(s.kase.Messages, Message{
				ID:        e.ID,
				Agent:     e.Agent,
				Timestamp: e.Timestamp,
				Content:   e.Content,
				Category:  e.Category,
			})
		}

	case protocol.ActionProposal:
		s.proposal = &Proposal{Title: e.Title, Confidence: e.Confidence}

	case protocol.DiagnosisStatus:
		s.running = e.Status == "running"
		if s.kase != nil {
			if mapped, ok := mapBackendStatus(e.Status); ok {
				s.kase.Status = mapped
			}
		}
		s.recordIfFinished()

	case protocol.TimelineUpdate:
		if s.kase != nil {
			s.kase.Timeline = make([]TimelineStep, 0, len(e.Timeline))
			for _, ts := range e.Timeline {
				s.kase.Timeline = append(s.kase.Timeline, TimelineStep{
					ID:       ts.ID,
					Step:     ts.Step,
					Status:   ts.Status,
					Duration: ts.Duration,
					Agent:    ts.Agent,
					Output:   ts.Output,
				})
			}
		}

	case protocol.ConfidenceUpdate:
		if s.kase != nil {
			s.kase.Confidence = e.Confidence
		}

	case protocol.Confirmation:
		if s.confirmation != nil {
			slog.Warn("Replacing unresolved confirmation", "old", s.confirmation.ID, "new", e.ID)
		}
		s.confirmation = &e

	case protocol.ErrorNotice:
		slog.Error("Backend reported error", "message", e.Message, "code", e.Code)
		s.running = false

	case protocol.TraceStart:
		s.mu.Unlock()
		s.traces.ApplyStart(e)
		s.notify()
		return

	case protocol.TraceStep:
		s.mu.Unlock()
		s.traces.ApplyStep(e)
		s.notify()
		return

	case protocol.TraceComplete:
		s.mu.Unlock()
		s.traces.ApplyComplete(e)
		s.notify()
		return

	case protocol.Unknown:
		slog.Debug("Dropping unrecognized event", "type", e.Type)
		s.mu.Unlock()
		return

	default:
		slog.Debug("Dropping unhandled event", "type", ev)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.notify()
}

// Start begins a new diagnosis session. The local case is created
// optimistically before the backend acknowledges; if the backend rejects the
// start synchronously, the case is marked failed and the running flag
// cleared, but the case itself is not retracted.
func (s *Store) Start(ctx context.Context, agentType, symptom, description string) error {
	symptom = strings.TrimSpace(symptom)
	if symptom == "" {
		return ErrEmptySymptom
	}
	if agentType == "" {
		agentType = DefaultAgentType
	}

	now := s.now()
	s.mu.Lock()
	s.kase = &Case{
		ID:          NewCaseID(agentType, now),
		Symptom:     symptom,
		Description: description,
		Status:      StatusInvestigating,
		LeadAgent:   agentType,
		Confidence:  0,
		Messages:    []Message{},
		Timeline:    []TimelineStep{},
		CreatedAt:   now,
	}
	s.running = true
	s.proposal = nil
	s.confirmation = nil
	s.agentType = agentType
	s.mu.Unlock()
	s.traces.Clear()
	s.notify()

	if s.backend != nil {
		if err := s.backend.StartDiagnosis(ctx, agentType, symptom, description); err != nil {
			s.mu.Lock()
			s.running = false
			if s.kase != nil {
				s.kase.Status = StatusFailed
			}
			s.mu.Unlock()
			s.notify()
			return err
		}
	}

	if err := s.emitter.StartDiagnosis(agentType, symptom, description, nil); err != nil {
		slog.Warn("Start command not delivered", "error", err)
	}
	return nil
}

// Stop sends the stop command and clears the running flag immediately,
// without waiting for backend acknowledgment.
func (s *Store) Stop() {
	if err := s.emitter.StopDiagnosis("User stopped"); err != nil {
		slog.Warn("Stop command not delivered", "error", err)
	}
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.notify()
}

// Approve accepts the standing proposal and optimistically resolves the case.
func (s *Store) Approve() error {
	s.mu.Lock()
	if s.proposal == nil {
		s.mu.Unlock()
		return ErrNoProposal
	}
	s.proposal = nil
	if s.kase != nil {
		s.kase.Status = StatusResolved
	}
	s.recordIfFinished()
	s.mu.Unlock()
	s.notify()

	if err := s.emitter.ApproveAction(actionPlaceholder); err != nil {
		slog.Warn("Approve command not delivered", "error", err)
	}
	return nil
}

// Reject declines the standing proposal.
func (s *Store) Reject() error {
	s.mu.Lock()
	if s.proposal == nil {
		s.mu.Unlock()
		return ErrNoProposal
	}
	s.proposal = nil
	s.mu.Unlock()
	s.notify()

	if err := s.emitter.RejectAction(actionPlaceholder, "User rejected"); err != nil {
		slog.Warn("Reject command not delivered", "error", err)
	}
	return nil
}

// RespondToConfirmation answers and clears the pending confirmation
// regardless of response content.
func (s *Store) RespondToConfirmation(id string, response any) {
	if err := s.emitter.RespondToConfirmation(id, response); err != nil {
		slog.Warn("Confirmation response not delivered", "error", err)
	}
	s.mu.Lock()
	s.confirmation = nil
	s.mu.Unlock()
	s.notify()
}

// Current returns a copy of the active-or-last case.
func (s *Store) Current() (Case, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.kase == nil {
		return Case{}, false
	}
	c := *s.kase
	c.Messages = append([]Message(nil), s.kase.Messages...)
	c.Timeline = append([]TimelineStep(nil), s.kase.Timeline...)
	return c, true
}

// IsRunning reports whether a diagnosis is in flight.
func (s *Store) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Proposal returns a copy of the standing proposal, if any.
func (s *Store) Proposal() (Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.proposal == nil {
		return Proposal{}, false
	}
	return *s.proposal, true
}

// Confirmation returns a copy of the single pending confirmation, if any.
func (s *Store) Confirmation() (protocol.Confirmation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmation == nil {
		return protocol.Confirmation{}, false
	}
	return *s.confirmation, true
}

// SetAgentType picks the lead agent for subsequent sessions. Invalid types
// are ignored.
func (s *Store) SetAgentType(agentType string) {
	if !ValidAgentType(agentType) {
		return
	}
	s.mu.Lock()
	s.agentType = agentType
	s.mu.Unlock()
}

// AgentType returns the agent type of the current session.
func (s *Store) AgentType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agentType
}

// Traces exposes the trace forest for read-side consumers.
func (s *Store) Traces() *trace.Reconciler { return s.traces }

// recordIfFinished archives the case on reaching a terminal status.
// Best-effort; the caller holds s.mu.
func (s *Store) recordIfFinished() {
	if s.recorder == nil || s.kase == nil || !s.kase.Status.Terminal() {
		return
	}
	c := *s.kase
	c.Messages = append([]Message(nil), s.kase.Messages...)
	c.Timeline = append([]TimelineStep(nil), s.kase.Timeline...)
	go func() {
		if err := s.recorder.RecordCase(c, s.traces.All()); err != nil {
			slog.Warn("Case archive write failed", "case", c.ID, "error", err)
		}
	}()
}
