package archive

import "time"

// CaseRecord is a persisted diagnosis case.
type CaseRecord struct {
	ID          int64     `json:"id"`
	CaseID      string    `json:"case_id"`
	AgentType   string    `json:"agent_type"`
	Symptom     string    `json:"symptom"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Confidence  float64   `json:"confidence"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// MessageRecord is a single agent message archived with its case.
type MessageRecord struct {
	ID        int64     `json:"id"`
	CaseID    string    `json:"case_id"`
	AgentName string    `json:"agent_name"`
	Category  string    `json:"category"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TraceSummary is the per-agent rollup stored with a finished case.
type TraceSummary struct {
	ID           int64  `json:"id"`
	CaseID       string `json:"case_id"`
	AgentID      string `json:"agent_id"`
	AgentName    string `json:"agent_name"`
	ParentID     string `json:"parent_id"`
	Status       string `json:"status"`
	DurationMs   int64  `json:"duration_ms"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	StepCount    int    `json:"step_count"`
}

const Schema = `
CREATE TABLE IF NOT EXISTS cases (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	case_id TEXT UNIQUE NOT NULL,
	agent_type TEXT NOT NULL,
	symptom TEXT NOT NULL,
	description TEXT DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	confidence REAL NOT NULL DEFAULT 0,
	started_at DATETIME,
	finished_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_cases_status ON cases(status);
CREATE INDEX IF NOT EXISTS idx_cases_created ON cases(created_at);

CREATE TABLE IF NOT EXISTS case_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	case_id TEXT NOT NULL,
	agent_name TEXT,
	category TEXT,
	content TEXT NOT NULL,
	timestamp DATETIME
);
CREATE INDEX IF NOT EXISTS idx_case_messages_case ON case_messages(case_id);

CREATE TABLE IF NOT EXISTS trace_summaries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	case_id TEXT NOT NULL,
	agent_id TEXT NOT NULL,
	agent_name TEXT,
	parent_id TEXT DEFAULT '',
	status TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	step_count INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_trace_summaries_case ON trace_summaries(case_id);
CREATE INDEX IF NOT EXISTS idx_trace_summaries_agent ON trace_summaries(agent_id);
`
