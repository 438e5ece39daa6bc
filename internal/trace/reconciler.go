// Package trace reconciles the stream of agent trace events into a
// consistent forest of execution traces with derived live metrics.
package trace

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/starhyc/problem-diagnosis-assistant/internal/protocol"
)

// Status of a single trace. Transitions move only forward along
// pending -> running -> {success, failed}.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

var statusRank = map[Status]int{
	StatusPending: 0,
	StatusRunning: 1,
	StatusSuccess: 2,
	StatusFailed:  2,
}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Tokens is an accumulated token count pair.
type Tokens struct {
	Input  int
	Output int
}

// Add returns the element-wise sum.
func (t Tokens) Add(o Tokens) Tokens {
	return Tokens{Input: t.Input + o.Input, Output: t.Output + o.Output}
}

// Step is one recorded action within a trace, normalized from the wire shape.
type Step struct {
	ID        string
	Kind      string
	Timestamp string
	Duration  time.Duration

	Input   string
	Content string
	Tokens  *Tokens
	Cost    float64

	ToolName   string
	ToolInput  string
	ToolOutput string
	Status     string

	TargetAgentID   string
	TargetAgentName string
	Task            string
}

// Trace is one node in the agent execution forest. Children are not stored;
// they are derived by indexing all traces on ParentID.
type Trace struct {
	ID       string
	Name     string
	ParentID string
	Status   Status

	StartTime time.Time
	EndTime   time.Time
	// Duration is authoritative only once the trace is terminal.
	Duration time.Duration
	// Totals is authoritative only once the trace is terminal.
	Totals Tokens

	Steps    []Step
	Err      string
	Task     string
	Subtasks *protocol.SubtaskProgress
}

// LiveTokens returns the displayed token counts: the running sum over steps
// while the trace runs, the authoritative completion totals once terminal.
func (t *Trace) LiveTokens() Tokens {
	if t.Status.Terminal() {
		return t.Totals
	}
	var sum Tokens
	for _, s := range t.Steps {
		if s.Tokens != nil {
			sum = sum.Add(*s.Tokens)
		}
	}
	return sum
}

// ElapsedAt returns the displayed elapsed time at the given instant: frozen
// to the reported duration once terminal, now-start while running. The
// caller owns the recompute cadence.
func (t *Trace) ElapsedAt(now time.Time) time.Duration {
	if t.Status.Terminal() {
		return t.Duration
	}
	if t.StartTime.IsZero() || now.Before(t.StartTime) {
		return 0
	}
	return now.Sub(t.StartTime)
}

// Elapsed is the pure form of the elapsed-time computation.
func Elapsed(start, now time.Time) time.Duration {
	if start.IsZero() || now.Before(start) {
		return 0
	}
	return now.Sub(start)
}

// Orphan buffering bounds. Step and complete events that arrive before
// their trace's start event wait here until the start shows up.
const (
	maxOrphanEventsPerAgent = 32
	maxOrphanAgents         = 64
)

type orphanEvent struct {
	step     *protocol.TraceStep
	complete *protocol.TraceComplete
}

// Reconciler builds the trace forest from start/step/complete events.
// All mutation goes through the Apply methods; reads return copies, so a
// reader always sees a fully-applied prior event, never a partial update.
type Reconciler struct {
	mu       sync.RWMutex
	traces   map[string]*Trace
	rootIDs  []string
	order    []string
	selected string
	orphans  map[string][]orphanEvent
	now      func() time.Time
}

// NewReconciler creates an empty reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{
		traces:  make(map[string]*Trace),
		orphans: make(map[string][]orphanEvent),
		now:     time.Now,
	}
}

// ApplyStart creates a trace. A start for an already-known id is ignored:
// identifiers are unique within a run.
func (r *Reconciler) ApplyStart(ev protocol.TraceStart) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyStart(ev)
}

func (r *Reconciler) applyStart(ev protocol.TraceStart) {
	if ev.AgentID == "" {
		slog.Warn("Trace start without agent id dropped")
		return
	}
	if _, exists := r.traces[ev.AgentID]; exists {
		slog.Warn("Duplicate trace start ignored", "agent", ev.AgentID)
		return
	}

	t := &Trace{
		ID:        ev.AgentID,
		Name:      ev.AgentName,
		ParentID:  ev.ParentID,
		Status:    StatusRunning,
		StartTime: parseEventTime(ev.StartTime, r.now()),
		Task:      ev.Task,
		Subtasks:  ev.Subtasks,
	}
	r.traces[ev.AgentID] = t
	r.order = append(r.order, ev.AgentID)
	if ev.ParentID == "" {
		r.rootIDs = append(r.rootIDs, ev.AgentID)
	}
	if r.selected == "" && len(r.rootIDs) > 0 {
		r.selected = r.rootIDs[0]
	}

	// Replay anything that raced ahead of this start, in arrival order.
	if buffered, ok := r.orphans[ev.AgentID]; ok {
		delete(r.orphans, ev.AgentID)
		for _, o := range buffered {
			if o.step != nil {
				r.applyStep(*o.step)
			}
			if o.complete != nil {
				r.applyComplete(*o.complete)
			}
		}
	}
}

// ApplyStep appends a step to its trace. A step for a not-yet-started trace
// is buffered and replayed once the start event arrives.
func (r *Reconciler) ApplyStep(ev protocol.TraceStep) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyStep(ev)
}

func (r *Reconciler) applyStep(ev protocol.TraceStep) {
	t, ok := r.traces[ev.AgentID]
	if !ok {
		r.buffer(ev.AgentID, orphanEvent{step: &ev})
		return
	}
	if t.Status.Terminal() {
		slog.Warn("Step for terminal trace dropped", "agent", ev.AgentID, "step", ev.ID)
		return
	}
	t.Steps = append(t.Steps, normalizeStep(ev))
}

// ApplyComplete finalizes a trace. Completion is terminal: the reported
// duration and token totals override anything derived from steps. For an
// unknown trace id the event is buffered; visible state is unaffected.
func (r *Reconciler) ApplyComplete(ev protocol.TraceComplete) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyComplete(ev)
}

func (r *Reconciler) applyComplete(ev protocol.TraceComplete) {
	t, ok := r.traces[ev.AgentID]
	if !ok {
		r.buffer(ev.AgentID, orphanEvent{complete: &ev})
		return
	}

	next := StatusSuccess
	if ev.Status == string(StatusFailed) {
		next = StatusFailed
	}
	if statusRank[next] <= statusRank[t.Status] && t.Status.Terminal() {
		slog.Warn("Completion for already-terminal trace ignored", "agent", ev.AgentID)
		return
	}

	t.Status = next
	t.EndTime = parseEventTime(ev.EndTime, r.now())
	t.Duration = time.Duration(ev.Duration) * time.Millisecond
	t.Totals = Tokens{Input: ev.TotalTokens.Input, Output: ev.TotalTokens.Output}
	t.Err = ev.Error
}

func (r *Reconciler) buffer(agentID string, ev orphanEvent) {
	if _, ok := r.orphans[agentID]; !ok && len(r.orphans) >= maxOrphanAgents {
		slog.Warn("Orphan buffer full, dropping event", "agent", agentID)
		return
	}
	buf := r.orphans[agentID]
	if len(buf) >= maxOrphanEventsPerAgent {
		buf = buf[1:]
	}
	r.orphans[agentID] = append(buf, ev)
}

// Get returns a copy of the trace with the given id.
func (r *Reconciler) Get(id string) (Trace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.traces[id]
	if !ok {
		return Trace{}, false
	}
	return copyTrace(t), true
}

// Roots returns the root trace ids in arrival order.
func (r *Reconciler) Roots() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.rootIDs))
	copy(out, r.rootIDs)
	return out
}

// Children returns copies of the traces whose parent is the given id, in
// start-event arrival order.
func (r *Reconciler) Children(id string) []Trace {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Trace
	for _, tid := range r.order {
		if t := r.traces[tid]; t.ParentID == id && id != "" {
			out = append(out, copyTrace(t))
		}
	}
	return out
}

// All returns copies of every known trace, in arrival order.
func (r *Reconciler) All() []Trace {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Trace, 0, len(r.order))
	for _, tid := range r.order {
		out = append(out, copyTrace(r.traces[tid]))
	}
	return out
}

// Len returns the number of known traces.
func (r *Reconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.traces)
}

// Select marks a trace for detailed viewing. Selecting an id with no trace
// is permitted and simply yields nothing on Get.
func (r *Reconciler) Select(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = id
}

// Selected returns the currently selected trace id, or "".
func (r *Reconciler) Selected() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selected
}

// Tokens aggregated across the whole forest, for the run summary line.
func (r *Reconciler) TotalTokens() Tokens {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum Tokens
	for _, t := range r.traces {
		sum = sum.Add(t.LiveTokens())
	}
	return sum
}

// Clear discards the entire forest, orphan buffer and selection. Called when
// a new diagnosis session starts; no trace data survives across sessions.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = make(map[string]*Trace)
	r.rootIDs = nil
	r.order = nil
	r.selected = ""
	r.orphans = make(map[string][]orphanEvent)
}

func copyTrace(t *Trace) Trace {
	out := *t
	out.Steps = make([]Step, len(t.Steps))
	copy(out.Steps, t.Steps)
	if t.Subtasks != nil {
		st := *t.Subtasks
		out.Subtasks = &st
	}
	return out
}

func normalizeStep(ev protocol.TraceStep) Step {
	s := Step{
		ID:              ev.ID,
		Kind:            ev.Kind,
		Timestamp:       ev.Timestamp,
		Duration:        time.Duration(ev.Duration) * time.Millisecond,
		Input:           ev.Input,
		Content:         ev.Content,
		Cost:            ev.Cost,
		ToolName:        ev.ToolName,
		ToolInput:       string(ev.ToolInput),
		ToolOutput:      string(ev.ToolOutput),
		Status:          ev.Status,
		TargetAgentID:   ev.TargetAgentID,
		TargetAgentName: ev.TargetAgentName,
		Task:            ev.Task,
	}
	if ev.Tokens != nil {
		s.Tokens = &Tokens{Input: ev.Tokens.Input, Output: ev.Tokens.Output}
	}
	return s
}

// parseEventTime parses the wire timestamp, falling back to the local clock
// when the backend sends something unparseable.
func parseEventTime(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts
		}
	}
	return fallback
}

// SortedByStart is a helper for views that want a stable chronological
// ordering across the forest.
func SortedByStart(traces []Trace) []Trace {
	out := make([]Trace, len(traces))
	copy(out, traces)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}
