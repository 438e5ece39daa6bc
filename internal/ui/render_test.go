package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/starhyc/problem-diagnosis-assistant/internal/protocol"
	"github.com/starhyc/problem-diagnosis-assistant/internal/trace"
)

func TestFormatElapsed(t *testing.T) {
	for _, tc := range []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{-5 * time.Second, "0s"},
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m05s"},
		{time.Hour + 12*time.Minute, "1h12m"},
	} {
		if got := formatElapsed(tc.d); got != tc.want {
			t.Errorf("formatElapsed(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestConfirmationAnswer(t *testing.T) {
	bare := protocol.Confirmation{ID: "c1"}
	if got := confirmationAnswer(bare, -1); got != true {
		t.Errorf("bare confirmation answer = %v, want true", got)
	}

	withOpts := protocol.Confirmation{
		ID: "c2",
		Options: []protocol.ConfirmationOption{
			{Label: "Restart", Value: "restart"},
			{Label: "Skip", Value: "skip"},
		},
	}
	if got := confirmationAnswer(withOpts, 1); got != "skip" {
		t.Errorf("option answer = %v, want skip", got)
	}
	if got := confirmationAnswer(withOpts, -1); got != "restart" {
		t.Errorf("fallback answer = %v, want first option", got)
	}

	withDefault := withOpts
	withDefault.DefaultOption = "skip"
	if got := confirmationAnswer(withDefault, -1); got != "skip" {
		t.Errorf("default answer = %v, want skip", got)
	}
	if got := confirmationAnswer(withDefault, 99); got != "skip" {
		t.Errorf("out-of-range answer = %v, want default", got)
	}
}

func TestRenderTraceShowsLiveTokens(t *testing.T) {
	tr := trace.Trace{
		ID:        "root",
		Name:      "Coordinator",
		Status:    trace.StatusRunning,
		StartTime: time.Now().Add(-10 * time.Second),
		Steps: []trace.Step{
			{Kind: "llm_thinking", Tokens: &trace.Tokens{Input: 17, Output: 8}},
		},
	}
	out := renderTrace(tr, time.Now(), 0, false)
	if !strings.Contains(out, "Coordinator") {
		t.Errorf("missing agent name: %q", out)
	}
	if !strings.Contains(out, "17/8 tok") {
		t.Errorf("missing live token counts: %q", out)
	}
}

func TestRenderTraceTerminalUsesAuthoritativeTotals(t *testing.T) {
	tr := trace.Trace{
		ID:       "root",
		Name:     "Coordinator",
		Status:   trace.StatusSuccess,
		Duration: 15 * time.Second,
		Totals:   trace.Tokens{Input: 20, Output: 8},
		Steps: []trace.Step{
			{Kind: "llm_thinking", Tokens: &trace.Tokens{Input: 17, Output: 8}},
		},
	}
	out := renderTrace(tr, time.Now(), 0, false)
	if !strings.Contains(out, "20/8 tok") {
		t.Errorf("terminal trace should show completion totals: %q", out)
	}
	if !strings.Contains(out, "15s") {
		t.Errorf("terminal trace should show frozen duration: %q", out)
	}
}

func TestFirstLineTruncates(t *testing.T) {
	if got := firstLine("alpha\nbeta"); got != "alpha" {
		t.Errorf("firstLine = %q", got)
	}
	long := strings.Repeat("x", 200)
	if got := firstLine(long); len(got) != 120 || !strings.HasSuffix(got, "...") {
		t.Errorf("long line not truncated: len=%d", len(got))
	}
}
