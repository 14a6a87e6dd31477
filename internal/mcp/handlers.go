package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cortexai/querygate/internal/catalog"
	"github.com/cortexai/querygate/internal/models"
	"github.com/cortexai/querygate/internal/review"
)

type ListTablesInput struct{}

type ListTablesOutput struct {
	Dataset string   `json:"dataset"`
	Tables  []string `json:"tables"`
}

type GetSchemaInput struct {
	TableName string `json:"table_name" jsonschema:"table name, e.g. orders"`
}

type GetSchemaOutput struct {
	Table     string           `json:"table"`
	TableRef  string           `json:"table_ref"`
	Columns   []catalog.Column `json:"columns"`
	TotalRows int64            `json:"total_rows"`
}

type ReviewSQLInput struct {
	SQL string `json:"sql" jsonschema:"the SQL statement to review"`
}

type ReviewSQLOutput struct {
	Verdict    string   `json:"verdict"`
	Findings   []string `json:"findings,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Notes      []string `json:"notes,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
	Complex    bool     `json:"complex"`
	Signals    []string `json:"signals,omitempty"`
}

type ExecuteSQLInput struct {
	SQL    string `json:"sql" jsonschema:"the SQL SELECT statement to run"`
	Review bool   `json:"review,omitempty" jsonschema:"run the advisory reviewer even for simple statements"`
}

// ExecuteSQLOutput flattens the caller envelope.
type ExecuteSQLOutput struct {
	Status       string           `json:"status"`
	Reason       string           `json:"reason,omitempty"`
	Keyword      string           `json:"keyword,omitempty"`
	Message      string           `json:"message,omitempty"`
	RowCount     int              `json:"row_count,omitempty"`
	Results      []map[string]any `json:"results,omitempty"`
	Truncated    bool             `json:"truncated,omitempty"`
	Columns      []string         `json:"columns,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
	InvocationID string           `json:"invocation_id,omitempty"`
}

// MarshalJSON always writes row_count, results and truncated for a success.
func (o ExecuteSQLOutput) MarshalJSON() ([]byte, error) {
	type plain ExecuteSQLOutput
	if o.Status != models.StatusSuccess {
		return json.Marshal(plain(o))
	}
	results := o.Results
	if results == nil {
		results = []map[string]any{}
	}
	return json.Marshal(struct {
		plain
		RowCount  int              `json:"row_count"`
		Results   []map[string]any `json:"results"`
		Truncated bool             `json:"truncated"`
	}{plain(o), o.RowCount, results, o.Truncated})
}

type AskInput struct {
	Prompt string `json:"prompt" jsonschema:"the business question"`
}

type AskOutput struct {
	TurnID      string           `json:"turn_id"`
	SQL         string           `json:"sql,omitempty"`
	Explanation string           `json:"explanation,omitempty"`
	Result      ExecuteSQLOutput `json:"result"`
}

func (s *Server) handleListTables(ctx context.Context, _ *mcpsdk.CallToolRequest, _ ListTablesInput) (*mcpsdk.CallToolResult, ListTablesOutput, error) {
	tables, err := s.gate.ListTables(turn(ctx))
	if err != nil {
		return nil, ListTablesOutput{}, fmt.Errorf("list tables failed: %s", catalog.KindOf(err))
	}
	if tables == nil {
		tables = []string{}
	}
	return nil, ListTablesOutput{Dataset: s.gate.Dataset(), Tables: tables}, nil
}

func (s *Server) handleGetSchema(ctx context.Context, _ *mcpsdk.CallToolRequest, in GetSchemaInput) (*mcpsdk.CallToolResult, GetSchemaOutput, error) {
	if strings.TrimSpace(in.TableName) == "" {
		return nil, GetSchemaOutput{}, fmt.Errorf("table_name is required")
	}
	entry, err := s.gate.GetSchema(turn(ctx), in.TableName)
	if err != nil {
		if catalog.KindOf(err) == catalog.KindNotFound {
			return nil, GetSchemaOutput{}, fmt.Errorf("table %q not found", in.TableName)
		}
		return nil, GetSchemaOutput{}, fmt.Errorf("get schema failed: %s", catalog.KindOf(err))
	}
	return nil, GetSchemaOutput{
		Table:     entry.Table,
		TableRef:  entry.Ref,
		Columns:   entry.Columns,
		TotalRows: entry.RowCount,
	}, nil
}

func (s *Server) handleReviewSQL(ctx context.Context, _ *mcpsdk.CallToolRequest, in ReviewSQLInput) (*mcpsdk.CallToolResult, ReviewSQLOutput, error) {
	if strings.TrimSpace(in.SQL) == "" {
		return nil, ReviewSQLOutput{}, fmt.Errorf("sql is required")
	}
	v := s.gate.ReviewSQL(turn(ctx), in.SQL)
	c := s.policy.Assess(in.SQL)
	return nil, reviewOutput(v, c), nil
}

func reviewOutput(v review.Verdict, c review.ComplexityResult) ReviewSQLOutput {
	return ReviewSQLOutput{
		Verdict:    string(v.Kind),
		Findings:   v.Findings,
		Reason:     v.Reason,
		Notes:      v.Notes,
		Suggestion: v.Suggestion,
		Complex:    c.Complex,
		Signals:    c.Signals,
	}
}

func (s *Server) handleExecuteSQL(ctx context.Context, _ *mcpsdk.CallToolRequest, in ExecuteSQLInput) (*mcpsdk.CallToolResult, ExecuteSQLOutput, error) {
	if strings.TrimSpace(in.SQL) == "" {
		return nil, ExecuteSQLOutput{}, fmt.Errorf("sql is required")
	}
	env := s.gate.Submit(turn(ctx), in.SQL, models.SubmitOptions{ForceReview: in.Review, Source: "mcp"})
	out := envelopeOutput(env)
	if env.Status != models.StatusSuccess {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleAsk(ctx context.Context, _ *mcpsdk.CallToolRequest, in AskInput) (*mcpsdk.CallToolResult, AskOutput, error) {
	if strings.TrimSpace(in.Prompt) == "" {
		return nil, AskOutput{}, fmt.Errorf("prompt is required")
	}
	res := s.gate.HandleTurn(turn(ctx), in.Prompt)
	out := AskOutput{
		TurnID:      res.TurnID,
		SQL:         res.SQL,
		Explanation: res.Explanation,
		Result:      envelopeOutput(res.Envelope),
	}
	if res.Envelope.Status != models.StatusSuccess {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func envelopeOutput(env *models.Envelope) ExecuteSQLOutput {
	out := ExecuteSQLOutput{
		Status:       env.Status,
		InvocationID: env.InvocationID,
		Warnings:     env.Warnings,
	}
	switch env.Status {
	case models.StatusBlocked:
		out.Reason, out.Keyword = env.Reason, env.Keyword
	case models.StatusError:
		out.Message = env.Message
	default:
		out.RowCount = env.RowCount
		out.Results = env.Results
		if out.Results == nil {
			out.Results = []map[string]any{}
		}
		out.Truncated = env.Truncated
		out.Columns = env.Columns
	}
	return out
}
