package diagnosis

// AgentType describes one selectable diagnosis mode.
type AgentType struct {
	ID          string
	Name        string
	Description string
}

// AgentTypes is the catalog of modes the backend accepts.
var AgentTypes = []AgentType{
	{ID: "diagnosis", Name: "Diagnosis", Description: "Multi-agent incident diagnosis"},
	{ID: "qa", Name: "Q&A", Description: "Knowledge-backed question answering"},
	{ID: "log_analysis", Name: "Log Analysis", Description: "Log file analysis"},
}

// DefaultAgentType is used when the operator does not pick one.
const DefaultAgentType = "diagnosis"

// ValidAgentType reports whether id names a known agent type.
func ValidAgentType(id string) bool {
	for _, at := range AgentTypes {
		if at.ID == id {
			return true
		}
	}
	return false
}
