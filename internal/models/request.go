package models

// QueryRequest for POST /api/v1/query (caller-supplied SQL)
type QueryRequest struct {
	SQL string `json:"sql"`
	// Review forces the reviewer regardless of statement complexity.
	Review bool `json:"review"`
}

// ReviewRequest for POST /api/v1/review
type ReviewRequest struct {
	SQL string `json:"sql"`
}

// AgentRequest for POST /api/v1/query-agent
type AgentRequest struct {
	Prompt  string `json:"prompt"`
	Timeout int    `json:"timeout"` // seconds
}

func (r *AgentRequest) SetDefaults(fallback int) {
	if r.Timeout == 0 {
		r.Timeout = fallback
	}
	if r.Timeout < 10 {
		r.Timeout = 10
	}
	if r.Timeout > 600 {
		r.Timeout = 600
	}
}

// SubmitOptions tunes one statement submission.
type SubmitOptions struct {
	// ForceReview runs the reviewer even for simple statements.
	ForceReview bool
	// Source names the caller (api, agent, mcp, cli) in logs.
	Source string
}
