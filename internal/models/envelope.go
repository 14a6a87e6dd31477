package models

import (
	"encoding/json"
	"fmt"

	"github.com/cortexai/querygate/internal/executor"
	"github.com/cortexai/querygate/internal/review"
	"github.com/cortexai/querygate/internal/security"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusBlocked = "blocked"
)

// Envelope is the result of one submitted statement. Its JSON form has
// exactly one of three shapes selected by Status:
//
//	{status:"blocked", reason, keyword}
//	{status:"error", message}
//	{status:"success", row_count, results, truncated}
//
// plus optional invocation_id, warnings, review and columns.
type Envelope struct {
	Status string

	Reason  string
	Keyword string

	Message string

	RowCount  int
	Results   []map[string]any
	Truncated bool
	Columns   []string

	InvocationID string
	Warnings     []string
	Review       *review.Verdict
}

func Blocked(v security.AdmissionVerdict) *Envelope {
	return &Envelope{Status: StatusBlocked, Reason: security.BlockedRefusal, Keyword: v.Keyword()}
}

func Failed(message string) *Envelope {
	return &Envelope{Status: StatusError, Message: message}
}

// FromResult converts an executor result.
func FromResult(r *executor.Result) *Envelope {
	if !r.OK() {
		return Failed(r.Message)
	}
	results := r.Rows
	if results == nil {
		results = []map[string]any{}
	}
	return &Envelope{
		Status:    StatusSuccess,
		RowCount:  r.RowCount,
		Results:   results,
		Truncated: r.Truncated,
		Columns:   r.Columns,
	}
}

func (e *Envelope) AuditStatus() string { return e.Status }

func (e *Envelope) String() string {
	switch e.Status {
	case StatusSuccess:
		return fmt.Sprintf("success: %d rows (truncated=%t)", e.RowCount, e.Truncated)
	case StatusBlocked:
		return "blocked: keyword " + e.Keyword
	default:
		return "error: " + e.Message
	}
}

type blockedJSON struct {
	Status       string `json:"status"`
	Reason       string `json:"reason"`
	Keyword      string `json:"keyword"`
	InvocationID string `json:"invocation_id,omitempty"`
}

type errorJSON struct {
	Status       string          `json:"status"`
	Message      string          `json:"message"`
	InvocationID string          `json:"invocation_id,omitempty"`
	Warnings     []string        `json:"warnings,omitempty"`
	Review       *review.Verdict `json:"review,omitempty"`
}

type successJSON struct {
	Status       string           `json:"status"`
	RowCount     int              `json:"row_count"`
	Results      []map[string]any `json:"results"`
	Truncated    bool             `json:"truncated"`
	Columns      []string         `json:"columns,omitempty"`
	InvocationID string           `json:"invocation_id,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
	Review       *review.Verdict  `json:"review,omitempty"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	switch e.Status {
	case StatusBlocked:
		return json.Marshal(blockedJSON{
			Status:       e.Status,
			Reason:       e.Reason,
			Keyword:      e.Keyword,
			InvocationID: e.InvocationID,
		})
	case StatusSuccess:
		results := e.Results
		if results == nil {
			results = []map[string]any{}
		}
		return json.Marshal(successJSON{
			Status:       e.Status,
			RowCount:     e.RowCount,
			Results:      results,
			Truncated:    e.Truncated,
			Columns:      e.Columns,
			InvocationID: e.InvocationID,
			Warnings:     e.Warnings,
			Review:       e.Review,
		})
	case StatusError:
		return json.Marshal(errorJSON{
			Status:       e.Status,
			Message:      e.Message,
			InvocationID: e.InvocationID,
			Warnings:     e.Warnings,
			Review:       e.Review,
		})
	}
	return nil, fmt.Errorf("envelope: unknown status %q", e.Status)
}

// UnmarshalJSON accepts any of the three shapes.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	var raw struct {
		Status       string           `json:"status"`
		Reason       string           `json:"reason"`
		Keyword      string           `json:"keyword"`
		Message      string           `json:"message"`
		RowCount     int              `json:"row_count"`
		Results      []map[string]any `json:"results"`
		Truncated    bool             `json:"truncated"`
		Columns      []string         `json:"columns"`
		InvocationID string           `json:"invocation_id"`
		Warnings     []string         `json:"warnings"`
		Review       *review.Verdict  `json:"review"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch raw.Status {
	case StatusSuccess, StatusError, StatusBlocked:
	default:
		return fmt.Errorf("envelope: unknown status %q", raw.Status)
	}
	*e = Envelope(raw)
	return nil
}
