package trace

import (
	"fmt"
	"testing"
	"time"

	"github.com/starhyc/problem-diagnosis-assistant/internal/protocol"
)

func start(id, parent string) protocol.TraceStart {
	return protocol.TraceStart{
		AgentID:   id,
		AgentName: id,
		ParentID:  parent,
		StartTime: "2026-08-28T10:00:00Z",
	}
}

func TestRootOrderFollowsArrival(t *testing.T) {
	r := NewReconciler()
	r.ApplyStart(start("a1", ""))
	r.ApplyStart(start("b1", "a1"))
	r.ApplyStart(start("a2", ""))
	r.ApplyStart(start("a3", ""))

	roots := r.Roots()
	want := []string{"a1", "a2", "a3"}
	if len(roots) != len(want) {
		t.Fatalf("expected %d roots, got %v", len(want), roots)
	}
	for i := range want {
		if roots[i] != want[i] {
			t.Errorf("root[%d] = %q, want %q", i, roots[i], want[i])
		}
	}
}

func TestChildrenDerivedFromParentID(t *testing.T) {
	r := NewReconciler()
	r.ApplyStart(start("a1", ""))
	r.ApplyStart(start("a2", "a1"))

	roots := r.Roots()
	if len(roots) != 1 || roots[0] != "a1" {
		t.Fatalf("expected roots [a1], got %v", roots)
	}
	children := r.Children("a1")
	if len(children) != 1 || children[0].ID != "a2" {
		t.Fatalf("expected children [a2], got %v", children)
	}
	if len(r.Children("a2")) != 0 {
		t.Error("leaf must have no children")
	}
}

func TestStatusMonotonic(t *testing.T) {
	r := NewReconciler()
	r.ApplyStart(start("a1", ""))
	r.ApplyComplete(protocol.TraceComplete{AgentID: "a1", Status: "success", Duration: 100})

	// A duplicate start and a second completion must not regress the status.
	r.ApplyStart(start("a1", ""))
	r.ApplyComplete(protocol.TraceComplete{AgentID: "a1", Status: "failed", Duration: 999})

	tr, ok := r.Get("a1")
	if !ok {
		t.Fatal("trace missing")
	}
	if tr.Status != StatusSuccess {
		t.Errorf("status regressed to %s", tr.Status)
	}
	if tr.Duration != 100*time.Millisecond {
		t.Errorf("duration overwritten: %v", tr.Duration)
	}
}

func TestCompleteForUnknownTraceIsInvisible(t *testing.T) {
	r := NewReconciler()
	r.ApplyComplete(protocol.TraceComplete{AgentID: "ghost", Status: "success"})
	if _, ok := r.Get("ghost"); ok {
		t.Fatal("completion alone must not create a trace")
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty forest, got %d", r.Len())
	}
}

func TestRunningTokensThenAuthoritativeTotals(t *testing.T) {
	r := NewReconciler()
	r.ApplyStart(start("a1", ""))
	r.ApplyStep(protocol.TraceStep{
		AgentID: "a1", ID: "s1", Kind: protocol.StepLLMThinking,
		Tokens: &protocol.TokenUsage{Input: 10, Output: 5},
	})
	r.ApplyStep(protocol.TraceStep{
		AgentID: "a1", ID: "s2", Kind: protocol.StepLLMThinking,
		Tokens: &protocol.TokenUsage{Input: 7, Output: 3},
	})

	tr, _ := r.Get("a1")
	if got := tr.LiveTokens(); got != (Tokens{Input: 17, Output: 8}) {
		t.Fatalf("running sum = %+v, want {17 8}", got)
	}

	r.ApplyComplete(protocol.TraceComplete{
		AgentID: "a1", Status: "success", Duration: 3200,
		TotalTokens: protocol.TokenUsage{Input: 20, Output: 8},
	})
	tr, _ = r.Get("a1")
	if got := tr.LiveTokens(); got != (Tokens{Input: 20, Output: 8}) {
		t.Fatalf("authoritative totals = %+v, want {20 8}", got)
	}
}

func TestOrphanStepsReplayedOnStart(t *testing.T) {
	r := NewReconciler()
	r.ApplyStep(protocol.TraceStep{AgentID: "a1", ID: "s1", Kind: protocol.StepTaskReceived, Input: "task"})
	r.ApplyStep(protocol.TraceStep{AgentID: "a1", ID: "s2", Kind: protocol.StepToolCall, ToolName: "query_db"})

	if _, ok := r.Get("a1"); ok {
		t.Fatal("steps alone must not create a trace")
	}

	r.ApplyStart(start("a1", ""))
	tr, ok := r.Get("a1")
	if !ok {
		t.Fatal("trace missing after start")
	}
	if len(tr.Steps) != 2 || tr.Steps[0].ID != "s1" || tr.Steps[1].ID != "s2" {
		t.Fatalf("buffered steps not replayed in order: %+v", tr.Steps)
	}
}

func TestOrphanCompleteReplayedOnStart(t *testing.T) {
	r := NewReconciler()
	r.ApplyComplete(protocol.TraceComplete{
		AgentID: "a1", Status: "failed", Duration: 50, Error: "timeout",
	})
	r.ApplyStart(start("a1", ""))

	tr, _ := r.Get("a1")
	if tr.Status != StatusFailed || tr.Err != "timeout" {
		t.Fatalf("buffered completion not applied: %+v", tr)
	}
}

func TestOrphanBufferBounded(t *testing.T) {
	r := NewReconciler()
	for i := 0; i < maxOrphanEventsPerAgent+8; i++ {
		r.ApplyStep(protocol.TraceStep{AgentID: "a1", ID: fmt.Sprintf("s%d", i), Kind: protocol.StepLLMThinking})
	}
	r.ApplyStart(start("a1", ""))

	tr, _ := r.Get("a1")
	if len(tr.Steps) != maxOrphanEventsPerAgent {
		t.Fatalf("expected buffer capped at %d, got %d", maxOrphanEventsPerAgent, len(tr.Steps))
	}
	// Oldest events are the ones discarded.
	if tr.Steps[0].ID != "s8" {
		t.Errorf("expected oldest dropped, first step is %s", tr.Steps[0].ID)
	}
}

func TestStepAfterTerminalDropped(t *testing.T) {
	r := NewReconciler()
	r.ApplyStart(start("a1", ""))
	r.ApplyComplete(protocol.TraceComplete{AgentID: "a1", Status: "success"})
	r.ApplyStep(protocol.TraceStep{AgentID: "a1", ID: "late", Kind: protocol.StepLLMThinking})

	tr, _ := r.Get("a1")
	if len(tr.Steps) != 0 {
		t.Fatalf("step after completion must be dropped, got %d steps", len(tr.Steps))
	}
}

func TestSelectionDefaultsToFirstRoot(t *testing.T) {
	r := NewReconciler()
	if r.Selected() != "" {
		t.Fatal("fresh reconciler must have no selection")
	}
	r.ApplyStart(start("a1", ""))
	if r.Selected() != "a1" {
		t.Fatalf("selection not defaulted, got %q", r.Selected())
	}
	// Later events never steal the selection.
	r.ApplyStart(start("a2", ""))
	if r.Selected() != "a1" {
		t.Fatalf("selection moved to %q", r.Selected())
	}
	// Selecting an unknown id is permitted; Get just yields nothing.
	r.Select("nope")
	if _, ok := r.Get(r.Selected()); ok {
		t.Fatal("expected no trace for unknown selection")
	}
}

func TestClearDiscardsEverything(t *testing.T) {
	r := NewReconciler()
	r.ApplyStart(start("a1", ""))
	r.ApplyStart(start("a2", "a1"))
	r.ApplyStep(protocol.TraceStep{AgentID: "orphan", ID: "s1"})
	r.Select("a2")

	r.Clear()

	if r.Len() != 0 || len(r.Roots()) != 0 || r.Selected() != "" {
		t.Fatal("clear must discard forest and selection")
	}
	// The orphan buffer is gone too: a late start finds nothing to replay.
	r.ApplyStart(start("orphan", ""))
	tr, _ := r.Get("orphan")
	if len(tr.Steps) != 0 {
		t.Fatal("orphan buffer survived clear")
	}
}

func TestElapsedFrozenAfterCompletion(t *testing.T) {
	r := NewReconciler()
	r.ApplyStart(protocol.TraceStart{AgentID: "a1", AgentName: "a1", StartTime: "2026-08-28T10:00:00Z"})

	startAt, _ := time.Parse(time.RFC3339, "2026-08-28T10:00:00Z")
	tr, _ := r.Get("a1")
	if got := tr.ElapsedAt(startAt.Add(4 * time.Second)); got != 4*time.Second {
		t.Fatalf("running elapsed = %v, want 4s", got)
	}

	r.ApplyComplete(protocol.TraceComplete{AgentID: "a1", Status: "success", Duration: 15200})
	tr, _ = r.Get("a1")
	if got := tr.ElapsedAt(startAt.Add(time.Hour)); got != 15200*time.Millisecond {
		t.Fatalf("terminal elapsed = %v, want 15.2s", got)
	}
}

func TestElapsedPure(t *testing.T) {
	now := time.Now()
	if Elapsed(time.Time{}, now) != 0 {
		t.Error("zero start must yield 0")
	}
	if Elapsed(now.Add(time.Second), now) != 0 {
		t.Error("future start must yield 0")
	}
	if Elapsed(now.Add(-3*time.Second), now) != 3*time.Second {
		t.Error("expected 3s")
	}
}
