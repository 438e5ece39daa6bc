// Package diagnosis owns the client-side state of a diagnosis session and
// applies the events streamed from the backend.
package diagnosis

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a case.
type Status string

const (
	StatusPending       Status = "pending"
	StatusInvestigating Status = "investigating"
	StatusResolved      Status = "resolved"
	StatusFailed        Status = "failed"
)

// Terminal reports whether the case has finished.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusFailed
}

// Message is one utterance attributed to an agent. Messages are append-only
// within a session; ordering is arrival order.
type Message struct {
	ID        string
	Agent     string
	Timestamp string
	Content   string
	Category  string
}

// TimelineStep is one entry in the high-level diagnosis timeline. The
// backend replaces the whole sequence on each timeline update.
type TimelineStep struct {
	ID       int
	Step     string
	Status   string
	Duration string
	Agent    string
	Output   string
}

// Proposal is the standing remediation proposal awaiting operator approval.
type Proposal struct {
	Title      string
	Confidence int
}

// Case is one active or completed diagnosis session.
type Case struct {
	ID          string
	Symptom     string
	Description string
	Status      Status
	LeadAgent   string
	Confidence  int
	Messages    []Message
	Timeline    []TimelineStep
	CreatedAt   time.Time
}

// NewCaseID builds the locally generated case identifier,
// CASE-<AGENT_TYPE_UPPERCASE>-<unix millis>.
func NewCaseID(agentType string, now time.Time) string {
	return fmt.Sprintf("CASE-%s-%d", strings.ToUpper(agentType), now.UnixMilli())
}

// mapBackendStatus translates the backend's run status vocabulary into case
// lifecycle states. Unknown values leave the case status untouched.
func mapBackendStatus(s string) (Status, bool) {
	switch s {
	case "pending":
		return StatusPending, true
	case "running", "paused":
		return StatusInvestigating, true
	case "completed":
		return StatusResolved, true
	case "failed", "interrupted":
		return StatusFailed, true
	default:
		return "", false
	}
}
