// Package archive persists finished diagnosis cases to a local sqlite file
// so the operator can browse past incidents offline.
package archive

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/starhyc/problem-diagnosis-assistant/internal/diagnosis"
	"github.com/starhyc/problem-diagnosis-assistant/internal/trace"
)

// Store wraps the sqlite case archive.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the archive at the given path.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordCase archives a finished case with its messages and a per-agent
// rollup of the trace forest. Re-recording the same case id replaces the
// previous rows.
func (s *Store) RecordCase(c diagnosis.Case, traces []trace.Trace) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin archive tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cases WHERE case_id = ?`, c.ID); err != nil {
		return fmt.Errorf("clear previous case: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM case_messages WHERE case_id = ?`, c.ID); err != nil {
		return fmt.Errorf("clear previous messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM trace_summaries WHERE case_id = ?`, c.ID); err != nil {
		return fmt.Errorf("clear previous summaries: %w", err)
	}

	finishedAt := time.Now().UTC()
	_, err = tx.Exec(`
		INSERT INTO cases (case_id, agent_type, symptom, description, status, confidence, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, agentTypeFromCaseID(c.ID), c.Symptom, c.Description,
		string(c.Status), float64(c.Confidence), c.CreatedAt.UTC(), finishedAt)
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}

	for _, m := range c.Messages {
		if _, err := tx.Exec(`
			INSERT INTO case_messages (case_id, agent_name, category, content, timestamp)
			VALUES (?, ?, ?, ?, ?)`,
			c.ID, m.Agent, m.Category, m.Content, m.Timestamp); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	for i := range traces {
		tr := &traces[i]
		tok := tr.LiveTokens()
		if _, err := tx.Exec(`
			INSERT INTO trace_summaries (case_id, agent_id, agent_name, parent_id, status, duration_ms, input_tokens, output_tokens, step_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, tr.ID, tr.Name, tr.ParentID, string(tr.Status),
			tr.Duration.Milliseconds(), tok.Input, tok.Output, len(tr.Steps)); err != nil {
			return fmt.Errorf("insert trace summary: %w", err)
		}
	}

	return tx.Commit()
}

// RecentCases returns the newest archived cases, most recent first.
func (s *Store) RecentCases(limit int) ([]CaseRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, case_id, agent_type, symptom, description, status, confidence, started_at, finished_at, created_at
		FROM cases ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()
	return scanCases(rows)
}

// SearchCases matches symptom or description against the given term.
func (s *Store) SearchCases(term string, limit int) ([]CaseRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + strings.TrimSpace(term) + "%"
	rows, err := s.db.Query(`
		SELECT id, case_id, agent_type, symptom, description, status, confidence, started_at, finished_at, created_at
		FROM cases
		WHERE symptom LIKE ? OR description LIKE ?
		ORDER BY created_at DESC LIMIT ?`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("search cases: %w", err)
	}
	defer rows.Close()
	return scanCases(rows)
}

// CaseMessages returns the archived messages of a case in arrival order.
func (s *Store) CaseMessages(caseID string) ([]MessageRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, case_id, agent_name, category, content, timestamp
		FROM case_messages WHERE case_id = ? ORDER BY id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []MessageRecord
	for rows.Next() {
		var m MessageRecord
		var ts sql.NullString
		if err := rows.Scan(&m.ID, &m.CaseID, &m.AgentName, &m.Category, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if ts.Valid {
			m.Timestamp, _ = time.Parse(time.RFC3339, ts.String)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// TraceSummaries returns the per-agent rollup of an archived case.
func (s *Store) TraceSummaries(caseID string) ([]TraceSummary, error) {
	rows, err := s.db.Query(`
		SELECT id, case_id, agent_id, agent_name, parent_id, status, duration_ms, input_tokens, output_tokens, step_count
		FROM trace_summaries WHERE case_id = ? ORDER BY id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("query trace summaries: %w", err)
	}
	defer rows.Close()

	var out []TraceSummary
	for rows.Next() {
		var t TraceSummary
		if err := rows.Scan(&t.ID, &t.CaseID, &t.AgentID, &t.AgentName, &t.ParentID,
			&t.Status, &t.DurationMs, &t.InputTokens, &t.OutputTokens, &t.StepCount); err != nil {
			return nil, fmt.Errorf("scan trace summary: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanCases(rows *sql.Rows) ([]CaseRecord, error) {
	var out []CaseRecord
	for rows.Next() {
		var c CaseRecord
		var started, finished sql.NullTime
		if err := rows.Scan(&c.ID, &c.CaseID, &c.AgentType, &c.Symptom, &c.Description,
			&c.Status, &c.Confidence, &started, &finished, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		if started.Valid {
			c.StartedAt = started.Time
		}
		if finished.Valid {
			c.FinishedAt = finished.Time
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// agentTypeFromCaseID recovers the agent type embedded in locally generated
// case ids (CASE-<TYPE>-<millis>). Unknown shapes yield the empty string.
func agentTypeFromCaseID(id string) string {
	parts := strings.Split(id, "-")
	if len(parts) < 3 || parts[0] != "CASE" {
		return ""
	}
	return strings.ToLower(strings.Join(parts[1:len(parts)-1], "-"))
}
