// Package tools defines the functions the generator model may call during a
// turn. Every tool goes through a Gate, which audits and admits the call.
package tools

import (
	"context"
	"encoding/json"

	"github.com/cortexai/querygate/internal/catalog"
	"github.com/cortexai/querygate/internal/models"
	"github.com/cortexai/querygate/internal/review"
)

const (
	NameListTables = "list_tables"
	NameGetSchema  = "get_schema"
	NameExecuteSQL = "execute_sql"
	NameReviewSQL  = "review_sql"
)

// Tool represents a callable function the LLM can invoke
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Execute     func(ctx context.Context, input map[string]any) (string, error)
}

// Gate is the audited surface tools call into.
type Gate interface {
	Dataset() string
	ListTables(ctx context.Context) ([]string, error)
	GetSchema(ctx context.Context, table string) (*catalog.Entry, error)
	ReviewSQL(ctx context.Context, sql string) review.Verdict
	Submit(ctx context.Context, sql string, opts models.SubmitOptions) *models.Envelope
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func stringArg(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}
