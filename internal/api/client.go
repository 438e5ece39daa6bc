// Package api wraps the diagnosis backend's REST surface. All calls are
// read-only or fire-and-forget; session state is driven by the event stream,
// not by these responses.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenSource supplies the bearer token for authenticated requests.
// A nil or empty result sends the request unauthenticated.
type TokenSource func() string

// StatusError reports a non-2xx backend response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the backend REST API.
type Client struct {
	baseURL    string
	token      TokenSource
	httpClient *http.Client
}

// NewClient creates a client for the given base URL, e.g.
// http://localhost:8000/api/v1. token may be nil.
func NewClient(baseURL string, token TokenSource) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Login authenticates and returns the token plus operator profile. The
// caller is responsible for persisting the token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var out LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", LoginRequest{Username: username, Password: password}, &out); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &out, nil
}

// Logout invalidates the server-side session. Best-effort.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// CurrentUser returns the profile behind the stored token.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out); err != nil {
		return nil, fmt.Errorf("current user: %w", err)
	}
	return &out, nil
}

// Dashboard returns the dashboard page payload.
func (c *Client) Dashboard(ctx context.Context) (*DashboardData, error) {
	var out DashboardData
	if err := c.do(ctx, http.MethodGet, "/dashboard", nil, &out); err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}
	return &out, nil
}

// Investigation returns the investigation workbench bootstrap payload.
func (c *Client) Investigation(ctx context.Context) (*InvestigationData, error) {
	var out InvestigationData
	if err := c.do(ctx, http.MethodGet, "/investigation", nil, &out); err != nil {
		return nil, fmt.Errorf("investigation: %w", err)
	}
	return &out, nil
}

// StartDiagnosis issues the backend start request. The acknowledgment body
// is opaque and discarded; progress arrives over the event stream.
func (c *Client) StartDiagnosis(ctx context.Context, agentType, symptom, description string) error {
	req := StartDiagnosisRequest{AgentType: agentType, Symptom: symptom, Description: description}
	if err := c.do(ctx, http.MethodPost, "/investigation/start", req, nil); err != nil {
		return fmt.Errorf("start diagnosis: %w", err)
	}
	return nil
}

// StopDiagnosis stops the active run.
func (c *Client) StopDiagnosis(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/investigation/stop", nil, nil); err != nil {
		return fmt.Errorf("stop diagnosis: %w", err)
	}
	return nil
}

// ApproveAction approves the backend's current action proposal.
func (c *Client) ApproveAction(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/investigation/action/approve", nil, nil); err != nil {
		return fmt.Errorf("approve action: %w", err)
	}
	return nil
}

// RejectAction rejects the backend's current action proposal.
func (c *Client) RejectAction(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/investigation/action/reject", nil, nil); err != nil {
		return fmt.Errorf("reject action: %w", err)
	}
	return nil
}

// KnowledgeGraph returns the knowledge graph.
func (c *Client) KnowledgeGraph(ctx context.Context) (*KnowledgeGraph, error) {
	var out KnowledgeGraph
	if err := c.do(ctx, http.MethodGet, "/knowledge/graph", nil, &out); err != nil {
		return nil, fmt.Errorf("knowledge graph: %w", err)
	}
	return &out, nil
}

// HistoricalCases lists resolved cases in the knowledge base.
func (c *Client) HistoricalCases(ctx context.Context) ([]HistoricalCase, error) {
	var out []HistoricalCase
	if err := c.do(ctx, http.MethodGet, "/knowledge/cases", nil, &out); err != nil {
		return nil, fmt.Errorf("historical cases: %w", err)
	}
	return out, nil
}

// HistoricalCase returns one resolved case by id.
func (c *Client) HistoricalCase(ctx context.Context, id string) (*HistoricalCase, error) {
	var out HistoricalCase
	if err := c.do(ctx, http.MethodGet, "/knowledge/cases/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, fmt.Errorf("historical case %s: %w", id, err)
	}
	return &out, nil
}

// SearchKnowledge queries the knowledge base.
func (c *Client) SearchKnowledge(ctx context.Context, query string) ([]HistoricalCase, error) {
	var out []HistoricalCase
	path := "/knowledge/cases?q=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("knowledge search: %w", err)
	}
	return out, nil
}

// Settings returns the admin settings payload.
func (c *Client) Settings(ctx context.Context) (*SettingsData, error) {
	var out SettingsData
	if err := c.do(ctx, http.MethodGet, "/settings/", nil, &out); err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return &out, nil
}

// UpdateRedline toggles one redline rule.
func (c *Client) UpdateRedline(ctx context.Context, id string, enabled bool) error {
	body := map[string]bool{"enabled": enabled}
	if err := c.do(ctx, http.MethodPut, "/settings/redlines/"+url.PathEscape(id), body, nil); err != nil {
		return fmt.Errorf("update redline %s: %w", id, err)
	}
	return nil
}

// TestTool asks the backend to probe one diagnostic tool's connectivity.
func (c *Client) TestTool(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodPost, "/settings/tools/"+url.PathEscape(id)+"/test", nil, nil); err != nil {
		return fmt.Errorf("test tool %s: %w", id, err)
	}
	return nil
}

// PreviewMasking runs the configured masking rules over a sample text.
func (c *Client) PreviewMasking(ctx context.Context, sample string) (string, error) {
	var out struct {
		Masked string `json:"masked"`
	}
	body := map[string]string{"text": sample}
	if err := c.do(ctx, http.MethodPost, "/settings/mask", body, &out); err != nil {
		return "", fmt.Errorf("preview masking: %w", err)
	}
	return out.Masked, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
