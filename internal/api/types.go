package api

// Shapes of the backend REST resources. The backend owns these contracts;
// fields the client does not use are omitted.

// LoginRequest authenticates an operator.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// User is the authenticated operator profile.
type User struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
}

// LoginResponse carries the bearer token and the operator profile.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

// DashboardStats summarizes platform activity.
type DashboardStats struct {
	ActiveTasks       int     `json:"active_tasks"`
	SuccessRate       float64 `json:"success_rate"`
	AvgResolutionTime string  `json:"avg_resolution_time"`
	TotalCases        int     `json:"total_cases"`
}

// CaseSummary is one row in the recent-cases list.
type CaseSummary struct {
	ID         string `json:"id"`
	Symptom    string `json:"symptom"`
	Status     string `json:"status"`
	LeadAgent  string `json:"lead_agent"`
	Timestamp  string `json:"timestamp"`
	Confidence int    `json:"confidence"`
}

// AgentInfo describes one backend agent.
type AgentInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Color       string `json:"color"`
	Description string `json:"description"`
}

// SystemHealth is one monitored subsystem's health row.
type SystemHealth struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Latency string `json:"latency"`
}

// DashboardData is the dashboard page payload.
type DashboardData struct {
	Stats        DashboardStats          `json:"stats"`
	RecentCases  []CaseSummary           `json:"recent_cases"`
	SystemHealth map[string]SystemHealth `json:"system_health"`
	Agents       []AgentInfo             `json:"agents"`
}

// TopologyNode is one node in the service topology graph.
type TopologyNode struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// TopologyEdge links two topology nodes.
type TopologyEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// HypothesisNode is one node in the hypothesis tree.
type HypothesisNode struct {
	ID          string           `json:"id"`
	Label       string           `json:"label"`
	Type        string           `json:"type"`
	Probability float64          `json:"probability,omitempty"`
	Status      string           `json:"status,omitempty"`
	Evidence    []string         `json:"evidence,omitempty"`
	Children    []HypothesisNode `json:"children,omitempty"`
}

// InvestigationData bootstraps the investigation workbench.
type InvestigationData struct {
	Agents         []AgentInfo    `json:"agents"`
	SampleLogs     string         `json:"sample_logs"`
	TopologyNodes  []TopologyNode `json:"topology_nodes"`
	TopologyEdges  []TopologyEdge `json:"topology_edges"`
	HypothesisTree struct {
		Root HypothesisNode `json:"root"`
	} `json:"hypothesis_tree"`
}

// StartDiagnosisRequest begins a diagnosis run over REST.
type StartDiagnosisRequest struct {
	AgentType   string         `json:"agent_type"`
	Symptom     string         `json:"symptom"`
	Description string         `json:"description"`
	Files       []FileRef      `json:"files,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

// FileRef names one uploaded input file for a run.
type FileRef struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// KnowledgeNode is one node in the knowledge graph.
type KnowledgeNode struct {
	ID    string  `json:"id"`
	Type  string  `json:"type"`
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// KnowledgeEdge is one labeled relation in the knowledge graph.
type KnowledgeEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// KnowledgeGraph is the full graph payload.
type KnowledgeGraph struct {
	Nodes []KnowledgeNode `json:"nodes"`
	Edges []KnowledgeEdge `json:"edges"`
}

// HistoricalCase is one resolved case in the knowledge base.
type HistoricalCase struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Symptom    string   `json:"symptom"`
	RootCause  string   `json:"root_cause"`
	Resolution string   `json:"resolution"`
	Tags       []string `json:"tags"`
	ResolvedAt string   `json:"resolved_at"`
}

// LLMProvider is one configured model provider.
type LLMProvider struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIBase  string `json:"api_base,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// ToolSetting is one diagnostic tool's admin configuration.
type ToolSetting struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
	RiskTier    int    `json:"risk_tier"`
}

// MaskingRule redacts sensitive values before they reach a model.
type MaskingRule struct {
	ID      string `json:"id"`
	Pattern string `json:"pattern"`
	Replace string `json:"replace"`
	Enabled bool   `json:"enabled"`
}

// Redline is a hard limit the diagnosis agents may never cross.
type Redline struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

// SettingsData is the admin settings page payload.
type SettingsData struct {
	Providers    []LLMProvider `json:"providers"`
	Tools        []ToolSetting `json:"tools"`
	MaskingRules []MaskingRule `json:"masking_rules"`
	Redlines     []Redline     `json:"redlines"`
}
