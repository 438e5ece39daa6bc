package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/starhyc/problem-diagnosis-assistant/internal/diagnosis"
	"github.com/starhyc/problem-diagnosis-assistant/internal/trace"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cases.db"))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleCase() diagnosis.Case {
	return diagnosis.Case{
		ID:          "CASE-DIAGNOSIS-1724800000000",
		Symptom:     "db connection pool exhausted",
		Description: "orders service timing out",
		Status:      diagnosis.StatusResolved,
		Confidence:  87,
		CreatedAt:   time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC),
		Messages: []diagnosis.Message{
			{Agent: "Coordinator", Category: "message", Content: "starting investigation", Timestamp: "2026-08-27T10:00:01Z"},
			{Agent: "LogAnalyzer", Category: "finding", Content: "max_connections reached", Timestamp: "2026-08-27T10:00:09Z"},
		},
	}
}

func TestRecordAndRecall(t *testing.T) {
	s := openTestStore(t)

	traces := []trace.Trace{
		{ID: "root", Name: "Coordinator", Status: trace.StatusSuccess,
			Duration: 15 * time.Second, Totals: trace.Tokens{Input: 120, Output: 48}},
		{ID: "child", Name: "LogAnalyzer", ParentID: "root", Status: trace.StatusSuccess,
			Duration: 9 * time.Second, Totals: trace.Tokens{Input: 60, Output: 12},
			Steps: []trace.Step{{ID: "s1", Kind: "tool_call"}}},
	}
	if err := s.RecordCase(sampleCase(), traces); err != nil {
		t.Fatalf("record: %v", err)
	}

	cases, err := s.RecentCases(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(cases) != 1 {
		t.Fatalf("expected 1 case, got %d", len(cases))
	}
	c := cases[0]
	if c.CaseID != "CASE-DIAGNOSIS-1724800000000" || c.Status != "resolved" {
		t.Errorf("unexpected case: %+v", c)
	}
	if c.AgentType != "diagnosis" {
		t.Errorf("agent type = %q", c.AgentType)
	}

	msgs, err := s.CaseMessages(c.CaseID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 || msgs[1].AgentName != "LogAnalyzer" {
		t.Errorf("unexpected messages: %+v", msgs)
	}

	sums, err := s.TraceSummaries(c.CaseID)
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(sums) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(sums))
	}
	if sums[0].InputTokens != 120 || sums[0].OutputTokens != 48 {
		t.Errorf("root tokens = %d/%d", sums[0].InputTokens, sums[0].OutputTokens)
	}
	if sums[1].ParentID != "root" || sums[1].StepCount != 1 {
		t.Errorf("child summary = %+v", sums[1])
	}
}

func TestReRecordReplacesPreviousRows(t *testing.T) {
	s := openTestStore(t)

	c := sampleCase()
	if err := s.RecordCase(c, nil); err != nil {
		t.Fatalf("first record: %v", err)
	}
	c.Status = diagnosis.StatusFailed
	c.Messages = c.Messages[:1]
	if err := s.RecordCase(c, nil); err != nil {
		t.Fatalf("second record: %v", err)
	}

	cases, _ := s.RecentCases(10)
	if len(cases) != 1 {
		t.Fatalf("expected 1 case after re-record, got %d", len(cases))
	}
	if cases[0].Status != "failed" {
		t.Errorf("status = %q", cases[0].Status)
	}
	msgs, _ := s.CaseMessages(c.ID)
	if len(msgs) != 1 {
		t.Errorf("expected 1 message after re-record, got %d", len(msgs))
	}
}

func TestSearchCases(t *testing.T) {
	s := openTestStore(t)

	a := sampleCase()
	b := sampleCase()
	b.ID = "CASE-QA-1724800099000"
	b.Symptom = "checkout latency spike"
	if err := s.RecordCase(a, nil); err != nil {
		t.Fatal(err)
	}
	if err := s.RecordCase(b, nil); err != nil {
		t.Fatal(err)
	}

	hits, err := s.SearchCases("latency", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].CaseID != "CASE-QA-1724800099000" {
		t.Errorf("unexpected hits: %+v", hits)
	}

	all, _ := s.SearchCases("", 10)
	if len(all) != 2 {
		t.Errorf("empty term should match all, got %d", len(all))
	}
}

func TestAgentTypeFromCaseID(t *testing.T) {
	for _, tc := range []struct {
		id, want string
	}{
		{"CASE-DIAGNOSIS-1724800000000", "diagnosis"},
		{"CASE-LOG_ANALYSIS-1724800000000", "log_analysis"},
		{"bogus", ""},
		{"SESSION-X-1", ""},
	} {
		if got := agentTypeFromCaseID(tc.id); got != tc.want {
			t.Errorf("agentTypeFromCaseID(%q) = %q, want %q", tc.id, got, tc.want)
		}
	}
}
