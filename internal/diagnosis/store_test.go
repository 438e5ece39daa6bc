package diagnosis

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/starhyc/problem-diagnosis-assistant/internal/command"
	"github.com/starhyc/problem-diagnosis-assistant/internal/protocol"
)

type nullSender struct{ sent []string }

func (n *nullSender) Send(msgType string, data any) error {
	n.sent = append(n.sent, msgType)
	return nil
}

type fakeBackend struct {
	calls int
	err   error
}

func (f *fakeBackend) StartDiagnosis(ctx context.Context, agentType, symptom, description string) error {
	f.calls++
	return f.err
}

func newTestStore() (*Store, *nullSender, *fakeBackend) {
	sender := &nullSender{}
	backend := &fakeBackend{}
	store := NewStore(command.NewEmitter(sender), backend, nil)
	return store, sender, backend
}

func TestStartCreatesOptimisticCase(t *testing.T) {
	store, _, _ := newTestStore()

	if err := store.Start(context.Background(), "diagnosis", "MySQL pool exhausted", "desc"); err != nil {
		t.Fatalf("start: %v", err)
	}

	c, ok := store.Current()
	if !ok {
		t.Fatal("no case after start")
	}
	if !regexp.MustCompile(`^CASE-DIAGNOSIS-\d+$`).MatchString(c.ID) {
		t.Errorf("case id %q does not match CASE-DIAGNOSIS-<digits>", c.ID)
	}
	if c.Status != StatusInvestigating {
		t.Errorf("status = %s, want investigating", c.Status)
	}
	if !store.IsRunning() {
		t.Error("expected running")
	}
	if len(c.Messages) != 0 || len(c.Timeline) != 0 {
		t.Error("expected empty messages and timeline")
	}
	if c.Confidence != 0 {
		t.Errorf("confidence = %d, want 0", c.Confidence)
	}
}

func TestStartEmptySymptomFailsFast(t *testing.T) {
	store, _, backend := newTestStore()

	err := store.Start(context.Background(), "diagnosis", "   ", "desc")
	if !errors.Is(err, ErrEmptySymptom) {
		t.Fatalf("expected ErrEmptySymptom, got %v", err)
	}
	if backend.calls != 0 {
		t.Error("no network call may happen for an empty symptom")
	}
	if _, ok := store.Current(); ok {
		t.Error("no case may be created for an empty symptom")
	}
}

func TestStartBackendRejectionReconciled(t *testing.T) {
	store, _, backend := newTestStore()
	backend.err = errors.New("503 backend down")

	if err := store.Start(context.Background(), "diagnosis", "symptom", ""); err == nil {
		t.Fatal("expected start error")
	}
	if store.IsRunning() {
		t.Error("running flag must clear on rejection")
	}
	c, ok := store.Current()
	if !ok {
		t.Fatal("optimistic case must not be retracted")
	}
	if c.Status != StatusFailed {
		t.Errorf("rejected start must mark the case failed, got %s", c.Status)
	}
}

func TestStartClearsTraceForest(t *testing.T) {
	store, _, _ := newTestStore()

	store.HandleEvent(protocol.TraceStart{AgentID: "a1", AgentName: "plan-agent"})
	store.HandleEvent(protocol.TraceStart{AgentID: "a2", ParentID: "a1"})
	store.Traces().Select("a2")
	if store.Traces().Len() != 2 {
		t.Fatalf("precondition: expected 2 traces")
	}

	if err := store.Start(context.Background(), "qa", "new problem", ""); err != nil {
		t.Fatalf("start: %v", err)
	}
	if store.Traces().Len() != 0 {
		t.Error("trace forest must be empty after a new start")
	}
	if store.Traces().Selected() != "" {
		t.Error("selection must be cleared after a new start")
	}
}

func TestAgentMessageAppended(t *testing.T) {
	store, _, _ := newTestStore()
	store.Start(context.Background(), "diagnosis", "symptom", "")

	store.HandleEvent(protocol.AgentMessage{ID: "m1", Agent: "log-agent", Content: "checking logs", Category: "info"})
	store.HandleEvent(protocol.AgentMessage{ID: "m2", Agent: "plan-agent", Content: "hypothesis: pool", Category: "hypothesis"})

	c, _ := store.Current()
	if len(c.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(c.Messages))
	}
	if c.Messages[1].Category != "hypothesis" {
		t.Errorf("unexpected category %q", c.Messages[1].Category)
	}
}

func TestMessageWithoutCaseDropped(t *testing.T) {
	store, _, _ := newTestStore()
	store.HandleEvent(protocol.AgentMessage{ID: "m1", Agent: "a", Content: "x"})
	if _, ok := store.Current(); ok {
		t.Fatal("message must not conjure a case")
	}
}

func TestTimelineReplacedWholesale(t *testing.T) {
	store, _, _ := newTestStore()
	store.Start(context.Background(), "diagnosis", "symptom", "")

	store.HandleEvent(protocol.TimelineUpdate{Timeline: []protocol.TimelineStep{
		{ID: 1, Step: "collect", Status: "completed"},
		{ID: 2, Step: "analyze", Status: "active"},
	}})
	store.HandleEvent(protocol.TimelineUpdate{Timeline: []protocol.TimelineStep{
		{ID: 1, Step: "collect", Status: "completed"},
	}})

	c, _ := store.Current()
	if len(c.Timeline) != 1 {
		t.Fatalf("timeline must be replaced, not merged; got %d entries", len(c.Timeline))
	}
}

func TestConfidenceAndStatusUpdates(t *testing.T) {
	store, _, _ := newTestStore()
	store.Start(context.Background(), "diagnosis", "symptom", "")

	store.HandleEvent(protocol.ConfidenceUpdate{Confidence: 85})
	store.HandleEvent(protocol.DiagnosisStatus{Status: "completed"})

	c, _ := store.Current()
	if c.Confidence != 85 {
		t.Errorf("confidence = %d", c.Confidence)
	}
	if c.Status != StatusResolved {
		t.Errorf("status = %s, want resolved", c.Status)
	}
	if store.IsRunning() {
		t.Error("completed status must clear running")
	}
}

func TestSecondConfirmationReplacesFirst(t *testing.T) {
	store, _, _ := newTestStore()
	store.Start(context.Background(), "diagnosis", "symptom", "")

	store.HandleEvent(protocol.Confirmation{ID: "c1", Message: "restart db?"})
	store.HandleEvent(protocol.Confirmation{ID: "c2", Message: "scale pool?"})

	conf, ok := store.Confirmation()
	if !ok {
		t.Fatal("expected pending confirmation")
	}
	if conf.ID != "c2" {
		t.Errorf("expected latest confirmation retained, got %q", conf.ID)
	}
}

func TestRespondClearsConfirmation(t *testing.T) {
	store, sender, _ := newTestStore()
	store.Start(context.Background(), "diagnosis", "symptom", "")
	store.HandleEvent(protocol.Confirmation{ID: "c1", Message: "restart db?"})

	store.RespondToConfirmation("c1", "reject")

	if _, ok := store.Confirmation(); ok {
		t.Error("confirmation must clear regardless of response content")
	}
	found := false
	for _, typ := range sender.sent {
		if typ == protocol.TypeConfirmationResponse {
			found = true
		}
	}
	if !found {
		t.Error("confirmation response was never sent")
	}
}

func TestErrorEventClearsRunningOnly(t *testing.T) {
	store, _, _ := newTestStore()
	store.Start(context.Background(), "diagnosis", "symptom", "")

	store.HandleEvent(protocol.ErrorNotice{Message: "agent crashed"})

	if store.IsRunning() {
		t.Error("error event must clear running")
	}
	c, ok := store.Current()
	if !ok {
		t.Fatal("case must survive an error event")
	}
	if c.Status != StatusInvestigating {
		t.Errorf("error event must not change case status, got %s", c.Status)
	}
}

func TestApproveResolvesOptimistically(t *testing.T) {
	store, sender, _ := newTestStore()
	store.Start(context.Background(), "diagnosis", "symptom", "")

	if err := store.Approve(); !errors.Is(err, ErrNoProposal) {
		t.Fatalf("approve without proposal must fail, got %v", err)
	}

	store.HandleEvent(protocol.ActionProposal{Title: "Increase max_connections", Confidence: 92})
	if err := store.Approve(); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if _, ok := store.Proposal(); ok {
		t.Error("proposal must clear on approve")
	}
	c, _ := store.Current()
	if c.Status != StatusResolved {
		t.Errorf("approve must resolve optimistically, got %s", c.Status)
	}
	found := false
	for _, typ := range sender.sent {
		if typ == protocol.TypeApproveAction {
			found = true
		}
	}
	if !found {
		t.Error("approve command was never sent")
	}
}

func TestRejectClearsProposalOnly(t *testing.T) {
	store, _, _ := newTestStore()
	store.Start(context.Background(), "diagnosis", "symptom", "")
	store.HandleEvent(protocol.ActionProposal{Title: "Restart", Confidence: 40})

	if err := store.Reject(); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, ok := store.Proposal(); ok {
		t.Error("proposal must clear on reject")
	}
	c, _ := store.Current()
	if c.Status != StatusInvestigating {
		t.Errorf("reject must not change case status, got %s", c.Status)
	}
}

func TestStopClearsRunningImmediately(t *testing.T) {
	store, sender, _ := newTestStore()
	store.Start(context.Background(), "diagnosis", "symptom", "")

	store.Stop()
	if store.IsRunning() {
		t.Error("stop must clear running without waiting for acknowledgment")
	}
	found := false
	for _, typ := range sender.sent {
		if typ == protocol.TypeStopDiagnosis {
			found = true
		}
	}
	if !found {
		t.Error("stop command was never sent")
	}
}

func TestHandleEnvelopeUnknownTypeHarmless(t *testing.T) {
	store, _, _ := newTestStore()
	store.Start(context.Background(), "diagnosis", "symptom", "")

	store.HandleEnvelope(protocol.Envelope{Type: "heartbeat"})
	store.HandleEnvelope(protocol.Envelope{Type: protocol.TypeConfidenceUpdate, Data: []byte(`{"confidence":"oops"}`)})

	if !store.IsRunning() {
		t.Error("junk envelopes must not disturb session state")
	}
}
