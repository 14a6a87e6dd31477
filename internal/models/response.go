package models

import (
	"github.com/cortexai/querygate/internal/audit"
	"github.com/cortexai/querygate/internal/catalog"
	"github.com/cortexai/querygate/internal/review"
)

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// TablesResponse is returned by GET /api/v1/tables
type TablesResponse struct {
	Status  string   `json:"status"`
	Dataset string   `json:"dataset"`
	Tables  []string `json:"tables"`
}

// SchemaResponse is returned by GET /api/v1/tables/{table}
type SchemaResponse struct {
	Status string `json:"status"`
	*catalog.Entry
}

// ReviewResponse is returned by POST /api/v1/review
type ReviewResponse struct {
	Status  string         `json:"status"`
	Complex bool           `json:"complex"`
	Signals []string       `json:"signals,omitempty"`
	Verdict review.Verdict `json:"review"`
}

// AgentResponse is returned by POST /api/v1/query-agent
type AgentResponse struct {
	Status       string         `json:"status"`
	TurnID       string         `json:"turn_id"`
	Prompt       string         `json:"prompt"`
	GeneratedSQL *string        `json:"generated_sql,omitempty"`
	Explanation  *string        `json:"explanation,omitempty"`
	Result       *Envelope      `json:"result"`
	Metadata     map[string]any `json:"agent_metadata"`
}

// AuditRecordsResponse is returned by GET /api/v1/audit/records
type AuditRecordsResponse struct {
	Status  string         `json:"status"`
	Count   int            `json:"count"`
	Records []audit.Record `json:"records"`
}
